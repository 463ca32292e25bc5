package models

import "time"

// Attachment is the replicated metadata of a client file. The bytes live in
// object storage under StorageKey.
type Attachment struct {
	ID            string
	OwnerEntityID string
	OriginalName  string
	SizeBytes     int64
	ContentType   string
	IntegrityHash string
	// StorageKey is assigned by the server on first upsert and never changes.
	StorageKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeviceID   string
}
