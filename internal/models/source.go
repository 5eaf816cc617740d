package models

import "time"

// SourceMeta describes one source file found under the source root.
type SourceMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
