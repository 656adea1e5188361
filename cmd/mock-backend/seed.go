package main

import (
	"fmt"

	"github.com/gestionnegocio/console/internal/access"
	"github.com/gestionnegocio/console/internal/catalog"
	"github.com/gestionnegocio/console/internal/mockapi"
	"github.com/gestionnegocio/console/pkg/models"
)

const demoPassword = "demo"

var demoUsers = []mockapi.User{
	{ID: 1, Name: "Sofía Superadmin", Email: "super@demo.co", RoleID: access.RoleSuperAdmin},
	{ID: 2, Name: "Andrés Administrador", Email: "admin@demo.co", RoleID: access.RoleAdmin, OrganizationID: 1},
	{ID: 3, Name: "Elena Empleada", Email: "empleado@demo.co", RoleID: access.RoleEmployee, OrganizationID: 1},
}

// demoRecords holds a few rows per resource, keyed by resource name
var demoRecords = map[string][]map[string]any{
	"clientes": {
		{"tipo_documento_id": 1, "numero_documento": "900123456", "nombre_razon_social": "Ferretería El Tornillo", "email": "compras@tornillo.co", "direccion": "Calle 10 # 4-21", "celular": "3001234567", "tipos_persona_id": 2, "regimen_tributario_id": 1, "moneda_principal_id": 1},
		{"tipo_documento_id": 2, "numero_documento": "1020304050", "nombre_razon_social": "Laura Gómez", "email": "laura@correo.co", "direccion": "Carrera 7 # 45-10", "celular": "3109876543", "tipos_persona_id": 1, "regimen_tributario_id": 2, "moneda_principal_id": 1},
		{"tipo_documento_id": 1, "numero_documento": "800765432", "nombre_razon_social": "Panadería La Espiga", "direccion": "Avenida 3 # 12-80", "tipos_persona_id": 2, "regimen_tributario_id": 1, "moneda_principal_id": 1},
	},
	"proveedores": {
		{"numero_documento": "901112223", "nombre_razon_social": "Distribuidora Andina", "email": "ventas@andina.co", "direccion": "Zona Industrial Bodega 4", "tipos_persona_id": 2, "regimen_tributario_id": 1, "moneda_principal_id": 1, "forma_pago_id": 2, "permitir_venta": true},
	},
	"empleados": {
		{"tipo_documento_id": 2, "numero_documento": "52111222", "nombre_razon_social": "Elena Ruiz", "email": "elena@demo.co", "celular": "3155550000", "departamento_id": 5, "ciudad_id": 1},
	},
	"sucursales": {
		{"nombre": "Principal", "direccion": "Calle 10 # 4-21", "telefonos": "6041234567", "prefijo_transacciones": "PRI", "sucursal_principal": true, "activa": true},
		{"nombre": "Norte", "direccion": "Avenida 80 # 30-15", "prefijo_transacciones": "NOR", "sucursal_principal": false, "activa": true},
	},
	"bodegas": {
		{"sucursal_id": 1, "nombre": "Bodega central", "bodega_por_defecto": true, "estado": true},
		{"sucursal_id": 2, "nombre": "Bodega norte", "bodega_por_defecto": false, "estado": true},
	},
	"cajas": {
		{"sucursal_id": 1, "nombre": "Caja 1", "estado": true, "vigencia": true},
	},
	"centros-costos": {
		{"codigo": "100", "nombre": "Administración", "nivel": "PRINCIPAL", "permite_ingresos": false, "estado": true},
		{"codigo": "110", "nombre": "Ventas mostrador", "nivel": "SUBCENTRO", "padre_id": 1, "permite_ingresos": true, "estado": true},
	},
	"tiendas-virtuales": {
		{"nombre": "Tienda en línea", "plataforma": "Shopify", "url": "https://tienda.demo.co", "estado": true},
	},
	"numeraciones": {
		{"tipo_transaccion": "FACTURA", "nombre_personalizado": "Factura de venta", "titulo_transaccion": "Factura electrónica de venta", "prefijo": "FE", "numeracion_inicial": 1, "numeracion_final": 5000, "numeracion_siguiente": 1, "mostrar_info_numeracion": true, "numeracion_por_defecto": true, "transaccion_electronica": true},
	},
	"roles": {
		{"nombre": "Superadministrador", "descripcion": "Acceso a todas las organizaciones"},
		{"nombre": "Administrador", "descripcion": "Gestiona su organización"},
		{"nombre": "Empleado", "descripcion": "Opera clientes y proveedores"},
	},
	"permisos": {
		{"nombre": "clientes.editar"},
		{"nombre": "inventario.ver"},
	},
	"planes": {
		{"nombre_plan": "Básico", "max_usuarios": 3, "max_sucursales": 1, "precio": 49000},
		{"nombre_plan": "Empresarial", "max_usuarios": 25, "max_sucursales": 10, "precio": 189000},
	},
}

// seedDemo registers the demo accounts and fills every collection of the
// default organization
func seedDemo(backend *mockapi.Server) error {
	for _, u := range demoUsers {
		u.Password = demoPassword
		if err := backend.AddUser(u); err != nil {
			return fmt.Errorf("failed to add user %s: %w", u.Email, err)
		}
		if _, err := backend.Seed("/users", map[string]any{
			"nombre": u.Name, "email": u.Email, "rol_id": u.RoleID, "organizacion_id": u.OrganizationID, "estado": true,
		}); err != nil {
			return err
		}
	}

	owner := models.Identity{OrganizationID: catalog.DefaultOrganizationID}
	for name, rows := range demoRecords {
		e, ok := catalog.Lookup(name)
		if !ok {
			return fmt.Errorf("unknown resource %q", name)
		}
		for _, row := range rows {
			if _, err := backend.Seed(e.CollectionPath(owner), row); err != nil {
				return fmt.Errorf("failed to seed %s: %w", name, err)
			}
		}
	}
	return nil
}
