package model

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/mrjoshuak/nlecore/internal/cmderr"
	"github.com/mrjoshuak/nlecore/internal/store"
)

// Bin is the §3 Bin entity, forming a tree rooted at the project.
type Bin struct {
	ID          string
	ProjectID   string
	ParentID    *string
	Name        string
	InsertIndex int
}

// LoadBin loads a bin by id, returning *cmderr.EntityNotFound if absent.
func LoadBin(g *store.Gateway, id string) (*Bin, error) {
	b, err := LoadBinOptional(g, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, &cmderr.EntityNotFound{Kind: "bin", ID: id}
	}
	return b, nil
}

// LoadBinOptional loads a bin by id, returning (nil, nil) if absent.
func LoadBinOptional(g *store.Gateway, id string) (*Bin, error) {
	stmt, err := g.Prepare(`SELECT id, project_id, parent_id, name, insert_index FROM bins WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()
	stmt.Bind(1, id)

	has, err := stmt.Next()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	var b Bin
	var parent sql.NullString
	_ = stmt.Value(0, &b.ID)
	_ = stmt.Value(1, &b.ProjectID)
	_ = stmt.Value(2, &parent)
	_ = stmt.Value(3, &b.Name)
	_ = stmt.Value(4, &b.InsertIndex)
	if parent.Valid {
		b.ParentID = &parent.String
	}
	return &b, nil
}

// Save inserts or updates the bin.
func (b *Bin) Save(g *store.Gateway) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	stmt, err := g.Prepare(`INSERT INTO bins (id, project_id, parent_id, name, insert_index)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET parent_id=excluded.parent_id, name=excluded.name,
			insert_index=excluded.insert_index`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.Bind(1, b.ID)
	stmt.Bind(2, b.ProjectID)
	stmt.Bind(3, nullable(b.ParentID))
	stmt.Bind(4, b.Name)
	stmt.Bind(5, b.InsertIndex)
	_, err = stmt.Exec()
	return err
}

// Delete removes the bin row.
func (b *Bin) Delete(g *store.Gateway) error {
	stmt, err := g.Prepare(`DELETE FROM bins WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.Bind(1, b.ID)
	_, err = stmt.Exec()
	return err
}

// BinSnapshot is an immutable copy of a Bin's field values.
type BinSnapshot Bin

// Snapshot captures the bin's current field values.
func (b *Bin) Snapshot() BinSnapshot { return BinSnapshot(*b) }

// Restore overwrites b's fields from snap and re-saves it.
func (b *Bin) Restore(g *store.Gateway, snap BinSnapshot) error {
	*b = Bin(snap)
	return b.Save(g)
}

// Project is the minimal §3/§6 projects row: id, name, and an opaque
// settings blob the UI owns.
type Project struct {
	ID       string
	Name     string
	Settings string // JSON, opaque to the core
}

// LoadProject loads a project by id, returning *cmderr.EntityNotFound if
// absent.
func LoadProject(g *store.Gateway, id string) (*Project, error) {
	stmt, err := g.Prepare(`SELECT id, name, settings FROM projects WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()
	stmt.Bind(1, id)

	has, err := stmt.Next()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, &cmderr.EntityNotFound{Kind: "project", ID: id}
	}
	var p Project
	_ = stmt.Value(0, &p.ID)
	_ = stmt.Value(1, &p.Name)
	_ = stmt.Value(2, &p.Settings)
	return &p, nil
}

// Save inserts or updates the project.
func (p *Project) Save(g *store.Gateway) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Settings == "" {
		p.Settings = "{}"
	}
	stmt, err := g.Prepare(`INSERT INTO projects (id, name, settings) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, settings=excluded.settings`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.Bind(1, p.ID)
	stmt.Bind(2, p.Name)
	stmt.Bind(3, p.Settings)
	_, err = stmt.Exec()
	return err
}

// Delete removes the project row.
func (p *Project) Delete(g *store.Gateway) error {
	stmt, err := g.Prepare(`DELETE FROM projects WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	stmt.Bind(1, p.ID)
	_, err = stmt.Exec()
	return err
}
