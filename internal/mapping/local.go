package mapping

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/models"
)

// EntityRow mirrors the entities table column for column.
type EntityRow struct {
	ID           string
	Title        string
	Body         string
	Tags         string
	Attributes   string
	Pinned       int64
	CreatedAt    int64
	UpdatedAt    int64
	SyncState    int64
	SyncPriority int64
	Revision     int64
}

// AttachmentRow mirrors the attachments table column for column.
type AttachmentRow struct {
	ID            string
	OwnerEntityID sql.NullString
	OriginalName  string
	StorageName   string
	SizeBytes     int64
	ContentType   string
	IntegrityHash string
	CreatedAt     int64
	UpdatedAt     int64
	SyncState     int64
	SyncPriority  int64
	Revision      int64
}

// ToLocalFormat encodes e for storage in SQLite.
func ToLocalFormat(e models.Entity) (EntityRow, error) {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return EntityRow{}, fmt.Errorf("encode tags: %w", err)
	}

	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return EntityRow{}, fmt.Errorf("encode attributes: %w", err)
	}

	return EntityRow{
		ID:           e.ID,
		Title:        e.Title,
		Body:         e.Body,
		Tags:         string(tagsJSON),
		Attributes:   string(attrsJSON),
		Pinned:       boolToInt(e.Pinned),
		CreatedAt:    toMillis(e.CreatedAt),
		UpdatedAt:    toMillis(e.UpdatedAt),
		SyncState:    int64(e.SyncState),
		SyncPriority: int64(e.SyncPriority.OrDefault()),
		Revision:     e.Revision,
	}, nil
}

// FromLocalFormat decodes a row read from SQLite.
func FromLocalFormat(r EntityRow) (models.Entity, error) {
	e := models.Entity{
		ID: r.ID,
		Payload: models.Payload{
			Title:  r.Title,
			Body:   r.Body,
			Pinned: r.Pinned != 0,
		},
		CreatedAt:    fromMillis(r.CreatedAt),
		UpdatedAt:    fromMillis(r.UpdatedAt),
		SyncState:    models.SyncState(r.SyncState),
		SyncPriority: models.Priority(r.SyncPriority),
		Revision:     r.Revision,
	}

	e.Tags = []string{}
	if r.Tags != "" {
		if err := json.Unmarshal([]byte(r.Tags), &e.Tags); err != nil {
			return models.Entity{}, fmt.Errorf("decode tags of %s: %w", r.ID, err)
		}
	}
	if r.Attributes != "" && r.Attributes != "{}" {
		if err := json.Unmarshal([]byte(r.Attributes), &e.Attributes); err != nil {
			return models.Entity{}, fmt.Errorf("decode attributes of %s: %w", r.ID, err)
		}
	}
	return e, nil
}

// AttachmentToLocal encodes a for storage in SQLite.
func AttachmentToLocal(a models.Attachment) AttachmentRow {
	return AttachmentRow{
		ID:            a.ID,
		OwnerEntityID: sql.NullString{String: a.OwnerEntityID, Valid: a.OwnerEntityID != ""},
		OriginalName:  a.OriginalName,
		StorageName:   a.StorageName,
		SizeBytes:     a.SizeBytes,
		ContentType:   a.ContentType,
		IntegrityHash: a.IntegrityHash,
		CreatedAt:     toMillis(a.CreatedAt),
		UpdatedAt:     toMillis(a.UpdatedAt),
		SyncState:     int64(a.SyncState),
		SyncPriority:  int64(a.SyncPriority.OrDefault()),
		Revision:      a.Revision,
	}
}

// AttachmentFromLocal decodes an attachment row read from SQLite.
func AttachmentFromLocal(r AttachmentRow) models.Attachment {
	return models.Attachment{
		ID:            r.ID,
		OwnerEntityID: r.OwnerEntityID.String,
		OriginalName:  r.OriginalName,
		StorageName:   r.StorageName,
		SizeBytes:     r.SizeBytes,
		ContentType:   r.ContentType,
		IntegrityHash: r.IntegrityHash,
		CreatedAt:     fromMillis(r.CreatedAt),
		UpdatedAt:     fromMillis(r.UpdatedAt),
		SyncState:     models.SyncState(r.SyncState),
		SyncPriority:  models.Priority(r.SyncPriority),
		Revision:      r.Revision,
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
