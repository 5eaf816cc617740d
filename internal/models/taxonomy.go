// Package models defines the domain types for taxport.
package models

// Category is a top-level entry of the core categories file. Each one
// becomes a concept scheme in the export.
type Category struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Node is a subcategory, possibly nesting further subcategories.
type Node struct {
	ID                string   `yaml:"id" json:"id"`
	Name              string   `yaml:"name" json:"name"`
	Description       string   `yaml:"description,omitempty" json:"description,omitempty"`
	AlternativeLabels []string `yaml:"alternativeLabels,omitempty" json:"alternativeLabels,omitempty"`
	Subcategories     []Node   `yaml:"subcategories,omitempty" json:"subcategories,omitempty"`
}

// Tree is one subcategory file: a forest of nodes owned by the category
// named in Parent.
type Tree struct {
	Parent        string `yaml:"parent" json:"parent"`
	Subcategories []Node `yaml:"subcategories" json:"subcategories"`
	// Source is the file the tree was read from, relative to the source root.
	Source string `yaml:"-" json:"-"`
}

// Sys is the vendor system envelope carrying an entity id.
type Sys struct {
	ID string `json:"id"`
}

// Ref links to another entity by id.
type Ref struct {
	Sys Sys `json:"sys"`
}

// NewRef returns a Ref to id.
func NewRef(id string) Ref {
	return Ref{Sys: Sys{ID: id}}
}

// Scheme is the exported form of a Category.
type Scheme struct {
	Sys         Sys    `json:"sys"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Concept is the exported, flattened form of a Node.
type Concept struct {
	Sys            Sys      `json:"sys"`
	PreferredLabel string   `json:"preferredLabel"`
	Description    string   `json:"description"`
	InScheme       []Ref    `json:"inScheme"`
	Broader        []Ref    `json:"broader"`
	AltLabels      []string `json:"altLabels,omitempty"`
}

// SchemeID returns the owning scheme id, or "" when the concept has none.
func (c Concept) SchemeID() string {
	if len(c.InScheme) == 0 {
		return ""
	}
	return c.InScheme[0].Sys.ID
}

// BroaderID returns the parent concept id, or "" for a top-level concept.
func (c Concept) BroaderID() string {
	if len(c.Broader) == 0 {
		return ""
	}
	return c.Broader[0].Sys.ID
}
