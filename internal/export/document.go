// Package export builds, checks and encodes the vendor taxonomy import
// document.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/taxport/internal/flatten"
	"github.com/starford/taxport/internal/models"
)

const (
	// FormatVersion is the taxonomy format the document targets.
	FormatVersion = "2025-04"
	// CompatibilityVersion is the vendor API version the document was
	// produced against.
	CompatibilityVersion = "2025-04-11"

	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Document is the import file handed to the vendor tooling.
type Document struct {
	Taxonomy Taxonomy `json:"taxonomy"`
	Metadata Metadata `json:"metadata"`
}

// Taxonomy is the vendor payload.
type Taxonomy struct {
	Version        string           `json:"version"`
	Concepts       []models.Concept `json:"concepts"`
	ConceptSchemes []models.Scheme  `json:"conceptSchemes"`
}

// Metadata summarises the run that produced the document.
type Metadata struct {
	TotalConcepts        int          `json:"totalConcepts"`
	ConceptsPerScheme    SchemeCounts `json:"conceptsPerScheme"`
	MaxDepth             int          `json:"maxDepth"`
	GeneratedAt          string       `json:"generatedAt"`
	CompatibilityVersion string       `json:"compatibilityVersion"`
}

// Build assembles a Document from a flatten result. now is recorded as the
// generation time.
func Build(r *flatten.Result, now time.Time) *Document {
	concepts := r.Concepts
	if concepts == nil {
		concepts = []models.Concept{}
	}
	schemes := r.Schemes
	if schemes == nil {
		schemes = []models.Scheme{}
	}
	return &Document{
		Taxonomy: Taxonomy{
			Version:        FormatVersion,
			Concepts:       concepts,
			ConceptSchemes: schemes,
		},
		Metadata: Metadata{
			TotalConcepts:        r.Stats.TotalConcepts,
			ConceptsPerScheme:    SchemeCounts(r.Stats.ConceptsPerScheme),
			MaxDepth:             r.Stats.MaxDepth,
			GeneratedAt:          now.UTC().Format(timestampLayout),
			CompatibilityVersion: CompatibilityVersion,
		},
	}
}

// Marshal encodes d as two-space indented JSON with a trailing newline.
func Marshal(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("export: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a previously written document.
func Unmarshal(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("export: decode: %w", err)
	}
	return &d, nil
}

// SchemeCounts is an ordered scheme → count mapping, encoded as a JSON
// object whose keys keep their order.
type SchemeCounts []flatten.SchemeCount

// MarshalJSON implements json.Marshaler.
func (s SchemeCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sc := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sc.SchemeID)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", sc.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping key order.
func (s *SchemeCounts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("export: conceptsPerScheme: expected object")
	}
	out := SchemeCounts{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var n int
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("export: conceptsPerScheme[%q]: %w", key, err)
		}
		out = append(out, flatten.SchemeCount{SchemeID: key, Count: n})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}
