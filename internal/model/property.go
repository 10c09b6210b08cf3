package model

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/mrjoshuak/nlecore/internal/store"
)

// PropertyType is the §3 Property value type tag.
type PropertyType string

const (
	PropertyTypeString PropertyType = "STRING"
	PropertyTypeNumber PropertyType = "NUMBER"
	PropertyTypeBool   PropertyType = "BOOL"
)

// Property is the §3 Property entity: a JSON-encoded {value: …} row attached
// to a clip.
type Property struct {
	ID            string
	ClipID        string
	PropertyName  string
	PropertyValue string // JSON-encoded {"value": ...}
	PropertyType  PropertyType
	DefaultValue  string // JSON-encoded, may be empty
}

// LoadProperty loads one property by clip id and name, returning (nil, nil)
// if it does not exist.
func LoadProperty(g *store.Gateway, clipID, name string) (*Property, error) {
	stmt, err := g.Prepare(`SELECT id, clip_id, property_name, property_value, property_type,
		default_value FROM properties WHERE clip_id = ? AND property_name = ?`)
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()
	stmt.Bind(1, clipID)
	stmt.Bind(2, name)

	has, err := stmt.Next()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	var p Property
	var def sql.NullString
	_ = stmt.Value(0, &p.ID)
	_ = stmt.Value(1, &p.ClipID)
	_ = stmt.Value(2, &p.PropertyName)
	_ = stmt.Value(3, &p.PropertyValue)
	var typ string
	_ = stmt.Value(4, &typ)
	p.PropertyType = PropertyType(typ)
	_ = stmt.Value(5, &def)
	if def.Valid {
		p.DefaultValue = def.String
	}
	return &p, nil
}

// PropertiesForClip returns every property attached to clipID.
func PropertiesForClip(g *store.Gateway, clipID string) ([]*Property, error) {
	stmt, err := g.Prepare(`SELECT id, clip_id, property_name, property_value, property_type,
		default_value FROM properties WHERE clip_id = ?`)
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()
	stmt.Bind(1, clipID)

	var out []*Property
	for {
		has, err := stmt.Next()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		var p Property
		var def sql.NullString
		var typ string
		_ = stmt.Value(0, &p.ID)
		_ = stmt.Value(1, &p.ClipID)
		_ = stmt.Value(2, &p.PropertyName)
		_ = stmt.Value(3, &p.PropertyValue)
		_ = stmt.Value(4, &typ)
		p.PropertyType = PropertyType(typ)
		_ = stmt.Value(5, &def)
		if def.Valid {
			p.DefaultValue = def.String
		}
		out = append(out, &p)
	}
	return out, nil
}

// Save upserts the property, keyed by (ClipID, PropertyName).
func (p *Property) Save(g *store.Gateway) error {
	if p.ID == "" {
		existing, err := LoadProperty(g, p.ClipID, p.PropertyName)
		if err != nil {
			return err
		}
		if existing != nil {
			p.ID = existing.ID
		} else {
			p.ID = uuid.NewString()
		}
	}
	stmt, err := g.Prepare(`INSERT INTO properties (id, clip_id, property_name, property_value,
		property_type, default_value) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET property_value=excluded.property_value,
			property_type=excluded.property_type, default_value=excluded.default_value`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.Bind(1, p.ID)
	stmt.Bind(2, p.ClipID)
	stmt.Bind(3, p.PropertyName)
	stmt.Bind(4, p.PropertyValue)
	stmt.Bind(5, string(p.PropertyType))
	var def any
	if p.DefaultValue != "" {
		def = p.DefaultValue
	}
	stmt.Bind(6, def)
	_, err = stmt.Exec()
	return err
}

// Delete removes the property row.
func (p *Property) Delete(g *store.Gateway) error {
	stmt, err := g.Prepare(`DELETE FROM properties WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.Bind(1, p.ID)
	_, err = stmt.Exec()
	return err
}

// DeleteClipProperties removes every property attached to clipID. Property
// deletion is explicit to the clip's lifecycle (§3), so callers that delete
// a clip must call this themselves.
func DeleteClipProperties(g *store.Gateway, clipID string) error {
	stmt, err := g.Prepare(`DELETE FROM properties WHERE clip_id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.Bind(1, clipID)
	_, err = stmt.Exec()
	return err
}

// CopyProperties clones every property of srcClipID onto dstClipID, per the
// "copied from master clip to timeline clip on insert/overwrite" rule (§3).
func CopyProperties(g *store.Gateway, srcClipID, dstClipID string) error {
	props, err := PropertiesForClip(g, srcClipID)
	if err != nil {
		return err
	}
	for _, p := range props {
		copy := &Property{
			ClipID:        dstClipID,
			PropertyName:  p.PropertyName,
			PropertyValue: p.PropertyValue,
			PropertyType:  p.PropertyType,
			DefaultValue:  p.DefaultValue,
		}
		if err := copy.Save(g); err != nil {
			return err
		}
	}
	return nil
}
