package catalog

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gestionnegocio/console/internal/access"
	"github.com/gestionnegocio/console/pkg/models"
)

// DefaultOrganizationID is used for organization-scoped entities when the
// signed-in user has no organization
const DefaultOrganizationID int64 = 1

// orgPlaceholder is replaced with the organization id in entity paths
const orgPlaceholder = "{org}"

// FieldKind selects how a form value is parsed
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldNumber
	FieldBool
	FieldSecret
)

// Field is one editable attribute of an entity
type Field struct {
	Key      string
	Label    string
	Kind     FieldKind
	Required bool
	// CreateOnly fields are left out of updates when empty (passwords)
	CreateOnly bool
}

// Parse converts form input into the value sent to the backend.
// Empty optional input yields nil so that the key can be omitted.
func (f Field) Parse(input string) (any, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		if f.Required {
			return nil, fmt.Errorf("%s es obligatorio", f.Label)
		}
		return nil, nil
	}

	switch f.Kind {
	case FieldNumber:
		if n, err := strconv.ParseInt(input, 10, 64); err == nil {
			return n, nil
		}
		x, err := strconv.ParseFloat(input, 64)
		if err != nil {
			return nil, fmt.Errorf("%s debe ser un número", f.Label)
		}
		return x, nil
	case FieldBool:
		switch strings.ToLower(input) {
		case "si", "sí", "s", "true", "1", "yes", "y":
			return true, nil
		case "no", "n", "false", "0":
			return false, nil
		default:
			return nil, fmt.Errorf("%s debe ser sí o no", f.Label)
		}
	default:
		return input, nil
	}
}

// Column is one column of the list table
type Column struct {
	Key   string
	Title string
	Width int
}

// Entity describes one manageable resource of the backend
type Entity struct {
	Name         string // command line name
	Title        string
	Path         string // collection path, may contain {org}
	UpdateMethod string
	Columns      []Column
	Fields       []Field
	Allowed      []int64
}

// OrgScoped reports whether the entity lives under an organization
func (e Entity) OrgScoped() bool {
	return strings.Contains(e.Path, orgPlaceholder)
}

// CollectionPath returns the list path for the given identity
func (e Entity) CollectionPath(identity models.Identity) string {
	if !e.OrgScoped() {
		return e.Path
	}
	return strings.ReplaceAll(e.Path, orgPlaceholder, strconv.FormatInt(OrganizationOf(identity), 10))
}

// OrganizationOf returns the identity's organization, falling back to the default one
func OrganizationOf(identity models.Identity) int64 {
	if identity.OrganizationID > 0 {
		return identity.OrganizationID
	}
	return DefaultOrganizationID
}

// BuildPayload parses form input into a payload. When editing, create-only
// fields left blank are omitted.
func (e Entity) BuildPayload(input map[string]string, editing bool) (models.Payload, error) {
	payload := models.Payload{}
	for _, f := range e.Fields {
		raw := input[f.Key]
		if editing && f.CreateOnly && strings.TrimSpace(raw) == "" {
			continue
		}
		field := f
		if editing && f.CreateOnly {
			field.Required = false
		}
		v, err := field.Parse(raw)
		if err != nil {
			return nil, err
		}
		if v != nil {
			payload[f.Key] = v
		}
	}
	return payload, nil
}

// FormValues returns the current values of a record as form input
func (e Entity) FormValues(r models.Record) map[string]string {
	values := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if f.Kind == FieldSecret {
			continue
		}
		values[f.Key] = r.Value(f.Key)
	}
	return values
}

var (
	allRoles   = []int64{access.RoleSuperAdmin, access.RoleAdmin, access.RoleEmployee}
	adminRoles = []int64{access.RoleSuperAdmin, access.RoleAdmin}
	superAdmin = []int64{access.RoleSuperAdmin}
)

func text(key, label string, required bool) Field {
	return Field{Key: key, Label: label, Kind: FieldText, Required: required}
}

func number(key, label string, required bool) Field {
	return Field{Key: key, Label: label, Kind: FieldNumber, Required: required}
}

func flag(key, label string) Field {
	return Field{Key: key, Label: label, Kind: FieldBool, Required: true}
}

var entities = []Entity{
	{
		Name: "clientes", Title: "Clientes", Path: "/clientes", UpdateMethod: http.MethodPatch,
		Columns: []Column{{"id", "ID", 6}, {"numero_documento", "Documento", 14}, {"nombre_razon_social", "Nombre / Razón social", 32}, {"email", "Email", 26}, {"celular", "Celular", 14}},
		Fields: []Field{
			number("tipo_documento_id", "Tipo de documento", true),
			text("numero_documento", "Número de documento", true),
			text("nombre_razon_social", "Nombre o razón social", true),
			text("email", "Email", false),
			text("direccion", "Dirección", true),
			text("celular", "Celular", false),
			number("tipos_persona_id", "Tipo de persona", true),
			number("regimen_tributario_id", "Régimen tributario", true),
			number("moneda_principal_id", "Moneda principal", true),
		},
		Allowed: allRoles,
	},
	{
		Name: "proveedores", Title: "Proveedores", Path: "/proveedores", UpdateMethod: http.MethodPut,
		Columns: []Column{{"id", "ID", 6}, {"numero_documento", "Documento", 14}, {"nombre_razon_social", "Nombre / Razón social", 32}, {"email", "Email", 26}, {"permitir_venta", "Venta", 6}},
		Fields: []Field{
			text("numero_documento", "Número de documento", true),
			text("nombre_razon_social", "Nombre o razón social", true),
			text("email", "Email", false),
			text("direccion", "Dirección", true),
			number("tipos_persona_id", "Tipo de persona", true),
			number("regimen_tributario_id", "Régimen tributario", true),
			number("moneda_principal_id", "Moneda principal", true),
			number("forma_pago_id", "Forma de pago", true),
			flag("permitir_venta", "Permitir venta"),
		},
		Allowed: allRoles,
	},
	{
		Name: "empleados", Title: "Empleados", Path: "/empleados", UpdateMethod: http.MethodPut,
		Columns: []Column{{"id", "ID", 6}, {"numero_documento", "Documento", 14}, {"nombre_razon_social", "Nombre", 32}, {"email", "Email", 26}, {"celular", "Celular", 14}},
		Fields: []Field{
			number("tipo_documento_id", "Tipo de documento", true),
			text("numero_documento", "Número de documento", true),
			text("nombre_razon_social", "Nombre", true),
			text("email", "Email", false),
			text("celular", "Celular", false),
			number("departamento_id", "Departamento", true),
			number("ciudad_id", "Ciudad", true),
		},
		Allowed: adminRoles,
	},
	{
		Name: "sucursales", Title: "Sucursales", Path: "/organizations/{org}/sucursales", UpdateMethod: http.MethodPatch,
		Columns: []Column{{"id", "ID", 6}, {"nombre", "Nombre", 28}, {"direccion", "Dirección", 28}, {"sucursal_principal", "Principal", 9}, {"activa", "Activa", 7}},
		Fields: []Field{
			text("nombre", "Nombre", true),
			text("direccion", "Dirección", false),
			text("telefonos", "Teléfonos", false),
			text("prefijo_transacciones", "Prefijo de transacciones", false),
			flag("sucursal_principal", "Sucursal principal"),
			flag("activa", "Activa"),
		},
		Allowed: adminRoles,
	},
	{
		Name: "bodegas", Title: "Bodegas", Path: "/organizations/{org}/bodegas", UpdateMethod: http.MethodPut,
		Columns: []Column{{"id", "ID", 6}, {"nombre", "Nombre", 28}, {"sucursal", "Sucursal", 24}, {"bodega_por_defecto", "Por defecto", 11}, {"estado", "Activa", 7}},
		Fields: []Field{
			number("sucursal_id", "Sucursal", true),
			text("nombre", "Nombre", true),
			flag("bodega_por_defecto", "Bodega por defecto"),
			flag("estado", "Activa"),
		},
		Allowed: adminRoles,
	},
	{
		Name: "cajas", Title: "Cajas", Path: "/organizations/{org}/cajas", UpdateMethod: http.MethodPut,
		Columns: []Column{{"id", "ID", 6}, {"nombre", "Nombre", 28}, {"sucursal", "Sucursal", 24}, {"estado", "Activa", 7}, {"vigencia", "Vigente", 8}},
		Fields: []Field{
			number("sucursal_id", "Sucursal", true),
			text("nombre", "Nombre", true),
			flag("estado", "Activa"),
			flag("vigencia", "Vigente"),
		},
		Allowed: adminRoles,
	},
	{
		Name: "centros-costos", Title: "Centros de costos", Path: "/organizations/{org}/centros_costos", UpdateMethod: http.MethodPut,
		Columns: []Column{{"id", "ID", 6}, {"codigo", "Código", 10}, {"nombre", "Nombre", 28}, {"nivel", "Nivel", 10}, {"estado", "Activo", 7}},
		Fields: []Field{
			text("codigo", "Código", true),
			text("nombre", "Nombre", true),
			text("nivel", "Nivel (PRINCIPAL o SUBCENTRO)", false),
			number("padre_id", "Centro padre", false),
			flag("permite_ingresos", "Permite ingresos"),
			flag("estado", "Activo"),
		},
		Allowed: adminRoles,
	},
	{
		Name: "tiendas-virtuales", Title: "Tiendas virtuales", Path: "/organizations/{org}/tiendas_virtuales", UpdateMethod: http.MethodPut,
		Columns: []Column{{"id", "ID", 6}, {"nombre", "Nombre", 24}, {"plataforma", "Plataforma", 14}, {"url", "URL", 30}, {"estado", "Activa", 7}},
		Fields: []Field{
			text("nombre", "Nombre", true),
			text("plataforma", "Plataforma", false),
			text("url", "URL", false),
			number("centro_costo_id", "Centro de costo", false),
			flag("estado", "Activa"),
		},
		Allowed: adminRoles,
	},
	{
		Name: "numeraciones", Title: "Numeración de transacciones", Path: "/organizations/{org}/numeraciones", UpdateMethod: http.MethodPut,
		Columns: []Column{{"id", "ID", 6}, {"nombre_personalizado", "Nombre", 24}, {"prefijo", "Prefijo", 8}, {"numeracion_siguiente", "Siguiente", 10}, {"transaccion_electronica", "Electrónica", 11}},
		Fields: []Field{
			text("tipo_transaccion", "Tipo de transacción", false),
			text("nombre_personalizado", "Nombre", true),
			text("titulo_transaccion", "Título", true),
			text("prefijo", "Prefijo", false),
			number("numeracion_inicial", "Numeración inicial", true),
			number("numeracion_final", "Numeración final", true),
			number("numeracion_siguiente", "Numeración siguiente", true),
			flag("mostrar_info_numeracion", "Mostrar información de numeración"),
			flag("numeracion_por_defecto", "Numeración por defecto"),
			flag("transaccion_electronica", "Transacción electrónica"),
		},
		Allowed: adminRoles,
	},
	{
		Name: "usuarios", Title: "Usuarios", Path: "/users", UpdateMethod: http.MethodPatch,
		Columns: []Column{{"id", "ID", 6}, {"nombre", "Nombre", 24}, {"email", "Email", 28}, {"rol_id", "Rol", 5}, {"estado", "Estado", 10}},
		Fields: []Field{
			text("nombre", "Nombre", true),
			text("email", "Email", true),
			{Key: "password", Label: "Contraseña", Kind: FieldSecret, Required: true, CreateOnly: true},
			number("rol_id", "Rol", true),
			number("organizacion_id", "Organización", false),
		},
		Allowed: adminRoles,
	},
	{
		Name: "roles", Title: "Roles", Path: "/roles", UpdateMethod: http.MethodPut,
		Columns: []Column{{"id", "ID", 6}, {"nombre", "Nombre", 24}, {"descripcion", "Descripción", 40}},
		Fields: []Field{
			text("nombre", "Nombre", true),
			text("descripcion", "Descripción", false),
		},
		Allowed: adminRoles,
	},
	{
		Name: "permisos", Title: "Permisos", Path: "/permissions", UpdateMethod: http.MethodPut,
		Columns: []Column{{"id", "ID", 6}, {"nombre", "Nombre", 24}, {"descripcion", "Descripción", 40}},
		Fields: []Field{
			text("nombre", "Nombre", true),
			text("descripcion", "Descripción", false),
		},
		Allowed: adminRoles,
	},
	{
		Name: "planes", Title: "Planes", Path: "/planes", UpdateMethod: http.MethodPut,
		Columns: []Column{{"id", "ID", 6}, {"nombre_plan", "Plan", 20}, {"max_usuarios", "Usuarios", 9}, {"max_sucursales", "Sucursales", 10}, {"precio", "Precio", 12}},
		Fields: []Field{
			text("nombre_plan", "Nombre del plan", true),
			number("max_usuarios", "Máximo de usuarios", true),
			number("max_empleados", "Máximo de empleados", false),
			number("max_sucursales", "Máximo de sucursales", false),
			number("precio", "Precio", false),
			number("duracion_dias", "Duración en días", false),
			flag("soporte_prioritario", "Soporte prioritario"),
			flag("uso_ilimitado_funciones", "Uso ilimitado de funciones"),
		},
		Allowed: superAdmin,
	},
}

// All returns every entity in menu order
func All() []Entity {
	return append([]Entity(nil), entities...)
}

// Lookup finds an entity by its command line name
func Lookup(name string) (Entity, bool) {
	for _, e := range entities {
		if e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}

// Names returns the command line names of all entities
func Names() []string {
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	return names
}

// Visible returns the entities the guard lets the current session open
func Visible(guard *access.Guard) []Entity {
	var out []Entity
	for _, e := range entities {
		if guard.Allows(e.Allowed) {
			out = append(out, e)
		}
	}
	return out
}
