package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Identity represents the user resolved from a valid credential
type Identity struct {
	ID             int64
	DisplayName    string
	Email          string
	RoleID         int64
	OrganizationID int64 // zero when the user belongs to no organization
}

// Payload is the field map sent to the backend on create and update
type Payload map[string]any

// Record represents one row of an entity list as returned by the backend.
// Field layouts are entity specific, so the raw fields are kept as decoded.
type Record struct {
	ID     int64
	Fields map[string]any
}

// ResourceID returns the backend identifier of the record
func (r Record) ResourceID() int64 {
	return r.ID
}

// Value returns the display form of a field, or an empty string if absent
func (r Record) Value(key string) string {
	v, ok := r.Fields[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "sí"
		}
		return "no"
	case json.Number:
		return val.String()
	case map[string]any:
		// Nested relations such as {"id": 3, "nombre": "Centro"}
		if name, ok := val["nombre"]; ok {
			return fmt.Sprint(name)
		}
		return fmt.Sprint(val)
	default:
		return fmt.Sprint(val)
	}
}

// UnmarshalJSON decodes a backend object keeping every field and extracting the id
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return err
	}

	r.Fields = fields
	r.ID = 0
	if raw, ok := fields["id"]; ok {
		switch id := raw.(type) {
		case json.Number:
			n, err := id.Int64()
			if err != nil {
				return fmt.Errorf("invalid record id %q: %w", id.String(), err)
			}
			r.ID = n
		case string:
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid record id %q: %w", id, err)
			}
			r.ID = n
		}
	}
	return nil
}

// MarshalJSON encodes the record back into its flat backend form
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID
	return json.Marshal(out)
}
