// Package models defines the records the replica server persists.
package models

import "time"

// Entity is the replicated copy of a client note.
type Entity struct {
	ID     string
	Title  string
	Body   string
	Tags   []string
	Pinned bool
	// Attributes is the raw JSON object stored in the JSONB column.
	Attributes []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// DeviceID is the device that sent the winning write.
	DeviceID string
}
