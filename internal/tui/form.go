package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/gestionnegocio/console/internal/catalog"
)

// loginModel is the sign-in surface
type loginModel struct {
	form       *huh.Form
	email      *string
	password   *string
	err        string
	submitting bool
}

func newLoginModel(email, errMsg string) loginModel {
	l := loginModel{email: new(string), password: new(string), err: errMsg}
	*l.email = email

	l.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Correo electrónico").
				Value(l.email).
				Validate(requiredText("Ingresa tu correo")),
			huh.NewInput().
				Title("Contraseña").
				EchoMode(huh.EchoModePassword).
				Value(l.password).
				Validate(requiredText("Ingresa tu contraseña")),
		).Title("Iniciar sesión"),
	).WithShowHelp(false)
	return l
}

func (l loginModel) emailValue() string {
	if l.email == nil {
		return ""
	}
	return *l.email
}

func requiredText(msg string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(msg)
		}
		return nil
	}
}

// recordForm is the create or edit modal of a list screen
type recordForm struct {
	entity  catalog.Entity
	form    *huh.Form
	values  map[string]*string
	editing bool
}

func newRecordForm(entity catalog.Entity, initial map[string]string, editing bool) *recordForm {
	r := &recordForm{
		entity:  entity,
		values:  make(map[string]*string, len(entity.Fields)),
		editing: editing,
	}

	fields := make([]huh.Field, 0, len(entity.Fields))
	for _, f := range entity.Fields {
		v := new(string)
		*v = initial[f.Key]
		r.values[f.Key] = v
		fields = append(fields, formField(f, v, editing))
	}

	title := "Nuevo registro · " + entity.Title
	if editing {
		title = "Editar registro · " + entity.Title
	}
	r.form = huh.NewForm(huh.NewGroup(fields...).Title(title)).WithShowHelp(true)
	return r
}

func formField(f catalog.Field, v *string, editing bool) huh.Field {
	switch f.Kind {
	case catalog.FieldBool:
		if *v == "" {
			*v = "sí"
		}
		return huh.NewSelect[string]().
			Title(f.Label).
			Options(huh.NewOptions("sí", "no")...).
			Value(v)
	case catalog.FieldSecret:
		input := huh.NewInput().
			Title(f.Label).
			EchoMode(huh.EchoModePassword).
			Value(v).
			Validate(fieldValidator(f, editing))
		if editing {
			input = input.Description("Déjala vacía para conservar la actual")
		}
		return input
	default:
		return huh.NewInput().
			Title(f.Label).
			Value(v).
			Validate(fieldValidator(f, editing))
	}
}

func fieldValidator(f catalog.Field, editing bool) func(string) error {
	return func(s string) error {
		if editing && f.CreateOnly && strings.TrimSpace(s) == "" {
			return nil
		}
		_, err := f.Parse(s)
		return err
	}
}

// input returns the entered values keyed by field
func (r *recordForm) input() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = *v
	}
	return out
}

// reopen rebuilds the form with the entered values so it can be submitted again
func (r *recordForm) reopen() *recordForm {
	return newRecordForm(r.entity, r.input(), r.editing)
}
