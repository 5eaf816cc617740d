// Package flatten turns a category list plus subcategory trees into the
// flat scheme/concept lists of the vendor taxonomy format.
package flatten

import (
	"github.com/starford/taxport/internal/models"
)

// SchemeCount is the number of concepts emitted for one scheme.
type SchemeCount struct {
	SchemeID string
	Count    int
}

// Stats summarises a flatten pass.
type Stats struct {
	TotalConcepts int
	// ConceptsPerScheme is ordered by first appearance of the scheme among
	// the input trees.
	ConceptsPerScheme []SchemeCount
	MaxDepth          int
}

// Result is the output of Flatten.
type Result struct {
	Schemes  []models.Scheme
	Concepts []models.Concept
	Stats    Stats
}

// Flatten copies categories into schemes and walks every tree depth-first
// in input order. Node ids share one namespace across all trees: the first
// occurrence wins and a repeated id is dropped together with its subtree.
func Flatten(categories []models.Category, trees []models.Tree) *Result {
	schemes := make([]models.Scheme, 0, len(categories))
	for _, c := range categories {
		schemes = append(schemes, models.Scheme{
			Sys:         models.Sys{ID: c.ID},
			Name:        c.Name,
			Description: c.Description,
		})
	}

	w := newWalker()
	for _, tree := range trees {
		w.count(tree.Parent, 0)
		w.walk(tree.Subcategories, tree.Parent, "", 1)
	}

	return &Result{
		Schemes:  schemes,
		Concepts: w.concepts,
		Stats: Stats{
			TotalConcepts:     len(w.concepts),
			ConceptsPerScheme: w.schemeCounts(),
			MaxDepth:          w.maxDepth,
		},
	}
}

// walker owns the state accumulated across all trees of one Flatten call.
type walker struct {
	processed map[string]struct{}
	perScheme map[string]int
	order     []string
	concepts  []models.Concept
	maxDepth  int
}

func newWalker() *walker {
	return &walker{
		processed: make(map[string]struct{}),
		perScheme: make(map[string]int),
		concepts:  []models.Concept{},
	}
}

func (w *walker) count(schemeID string, n int) {
	if _, ok := w.perScheme[schemeID]; !ok {
		w.order = append(w.order, schemeID)
	}
	w.perScheme[schemeID] += n
}

// walk emits nodes at depth. Entering a list counts as reaching depth even
// when it is empty or holds only duplicates.
func (w *walker) walk(nodes []models.Node, schemeID, parentID string, depth int) {
	if depth > w.maxDepth {
		w.maxDepth = depth
	}
	for _, n := range nodes {
		if _, seen := w.processed[n.ID]; seen {
			continue
		}
		w.count(schemeID, 1)
		w.concepts = append(w.concepts, newConcept(n, schemeID, parentID))
		w.processed[n.ID] = struct{}{}
		if n.Subcategories != nil {
			w.walk(n.Subcategories, schemeID, n.ID, depth+1)
		}
	}
}

func (w *walker) schemeCounts() []SchemeCount {
	out := make([]SchemeCount, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, SchemeCount{SchemeID: id, Count: w.perScheme[id]})
	}
	return out
}

func newConcept(n models.Node, schemeID, parentID string) models.Concept {
	c := models.Concept{
		Sys:            models.Sys{ID: n.ID},
		PreferredLabel: n.Name,
		Description:    n.Description,
		InScheme:       []models.Ref{},
		Broader:        []models.Ref{},
	}
	if schemeID != "" {
		c.InScheme = []models.Ref{models.NewRef(schemeID)}
	}
	if parentID != "" {
		c.Broader = []models.Ref{models.NewRef(parentID)}
	}
	if len(n.AlternativeLabels) > 0 {
		c.AltLabels = append([]string(nil), n.AlternativeLabels...)
	}
	return c
}
