package catalog

import (
	"testing"

	"github.com/gestionnegocio/console/internal/access"
	"github.com/gestionnegocio/console/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Entries(t *testing.T) {
	all := All()
	assert.Len(t, all, 13)

	seen := map[string]bool{}
	for _, e := range all {
		assert.False(t, seen[e.Name], "duplicate entity %s", e.Name)
		seen[e.Name] = true
		assert.NotEmpty(t, e.Title)
		assert.NotEmpty(t, e.Columns, e.Name)
		assert.NotEmpty(t, e.Fields, e.Name)
		assert.NotEmpty(t, e.Allowed, e.Name)
	}

	planes, ok := Lookup("planes")
	require.True(t, ok)
	assert.Equal(t, []int64{access.RoleSuperAdmin}, planes.Allowed)

	_, ok = Lookup("facturas")
	assert.False(t, ok)
}

func TestEntity_CollectionPath(t *testing.T) {
	bodegas, _ := Lookup("bodegas")
	clientes, _ := Lookup("clientes")

	assert.True(t, bodegas.OrgScoped())
	assert.False(t, clientes.OrgScoped())

	assert.Equal(t, "/organizations/7/bodegas", bodegas.CollectionPath(models.Identity{OrganizationID: 7}))
	assert.Equal(t, "/organizations/1/bodegas", bodegas.CollectionPath(models.Identity{}), "falls back to the default organization")
	assert.Equal(t, "/clientes", clientes.CollectionPath(models.Identity{OrganizationID: 7}))
}

func TestField_Parse(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		input   string
		want    any
		wantErr bool
	}{
		{"text", text("nombre", "Nombre", true), " Bodega ", "Bodega", false},
		{"required blank", text("nombre", "Nombre", true), "  ", nil, true},
		{"optional blank", text("email", "Email", false), "", nil, false},
		{"integer", number("sucursal_id", "Sucursal", true), "12", int64(12), false},
		{"decimal", number("precio", "Precio", false), "19.5", 19.5, false},
		{"not a number", number("precio", "Precio", false), "abc", nil, true},
		{"bool yes", flag("estado", "Activa"), "sí", true, false},
		{"bool no", flag("estado", "Activa"), "No", false, false},
		{"bool invalid", flag("estado", "Activa"), "tal vez", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.field.Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntity_BuildPayload(t *testing.T) {
	usuarios, _ := Lookup("usuarios")
	input := map[string]string{"nombre": "Ana", "email": "ana@x.com", "rol_id": "2"}

	_, err := usuarios.BuildPayload(input, false)
	assert.Error(t, err, "password is required on create")

	payload, err := usuarios.BuildPayload(input, true)
	require.NoError(t, err)
	assert.Equal(t, models.Payload{"nombre": "Ana", "email": "ana@x.com", "rol_id": int64(2)}, payload)

	input["password"] = "secreta"
	payload, err = usuarios.BuildPayload(input, false)
	require.NoError(t, err)
	assert.Equal(t, "secreta", payload["password"])
}

func TestEntity_FormValues(t *testing.T) {
	usuarios, _ := Lookup("usuarios")
	rec := models.Record{ID: 3, Fields: map[string]any{"nombre": "Ana", "password": "x", "rol_id": "2"}}

	values := usuarios.FormValues(rec)
	assert.Equal(t, "Ana", values["nombre"])
	assert.NotContains(t, values, "password")
}
