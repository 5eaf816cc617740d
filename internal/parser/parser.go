// Package parser decodes and validates the YAML taxonomy source documents.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/taxport/internal/models"
)

// CategoriesDocument is the layout of the core categories file.
type CategoriesDocument struct {
	Categories []models.Category `yaml:"categories"`
}

// Validate checks every category has an id and a name.
func (d *CategoriesDocument) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Categories, validation.NotNil, validation.Each(validation.By(checkCategory))),
	)
}

// ParseCategories decodes a core categories document.
func ParseCategories(data []byte) ([]models.Category, error) {
	var doc CategoriesDocument
	if err := decode(data, &doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc.Categories, nil
}

// ParseTree decodes a subcategory file. source is recorded on the tree.
// A missing parent is allowed; its concepts belong to no scheme.
func ParseTree(data []byte, source string) (models.Tree, error) {
	var tree models.Tree
	if err := decode(data, &tree); err != nil {
		return models.Tree{}, err
	}
	if err := checkNodes(tree.Subcategories, "subcategories"); err != nil {
		return models.Tree{}, err
	}
	tree.Source = source
	return tree, nil
}

func decode(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty document")
		}
		return err
	}
	return nil
}

func checkCategory(value any) error {
	c, ok := value.(models.Category)
	if !ok {
		return fmt.Errorf("unexpected category type %T", value)
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Name, validation.Required),
	)
}

// checkNodes validates a node list recursively; path locates failures.
func checkNodes(nodes []models.Node, path string) error {
	for i := range nodes {
		n := &nodes[i]
		at := fmt.Sprintf("%s[%d]", path, i)
		if err := validation.ValidateStruct(n,
			validation.Field(&n.ID, validation.Required),
			validation.Field(&n.Name, validation.Required),
		); err != nil {
			return fmt.Errorf("%s: %w", at, err)
		}
		if err := checkNodes(n.Subcategories, at+".subcategories"); err != nil {
			return err
		}
	}
	return nil
}
