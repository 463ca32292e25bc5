package mapping

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/models"
)

// RemoteRecord is a record in the replica's native representation. Values are
// limited to what a JSON document (and structpb) can carry: nil, bool,
// numbers, string, []any and map[string]any.
type RemoteRecord map[string]any

// ID returns the "id" field, or "" when absent.
func (r RemoteRecord) ID() string {
	s, _ := r["id"].(string)
	return s
}

// ToRemoteFormat converts an entity for replication.
func ToRemoteFormat(e models.Entity) RemoteRecord {
	tags := make([]any, 0, len(e.Tags))
	for _, t := range e.Tags {
		tags = append(tags, t)
	}

	attrs := map[string]any{}
	for k, v := range e.Attributes {
		attrs[k] = v
	}

	return RemoteRecord{
		"id":         e.ID,
		"title":      e.Title,
		"body":       e.Body,
		"tags":       tags,
		"pinned":     e.Pinned,
		"attributes": attrs,
		"created_at": formatTime(e.CreatedAt),
		"updated_at": formatTime(e.UpdatedAt),
	}
}

// FromRemoteFormat decodes a replicated entity. Local-only fields are left at
// their zero values: sync state is never taken from the remote side.
func FromRemoteFormat(r RemoteRecord) (models.Entity, error) {
	var e models.Entity
	var err error

	if e.ID, err = requiredString(r, "id"); err != nil {
		return e, err
	}
	if e.Title, err = optionalString(r, "title"); err != nil {
		return e, err
	}
	if e.Body, err = optionalString(r, "body"); err != nil {
		return e, err
	}
	if e.Tags, err = stringList(r, "tags"); err != nil {
		return e, err
	}
	if v, ok := r["pinned"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return e, fieldError("pinned", "want bool, got %T", v)
		}
		e.Pinned = b
	}
	if v, ok := r["attributes"]; ok && v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			return e, fieldError("attributes", "want object, got %T", v)
		}
		if len(m) > 0 {
			e.Attributes = m
		}
	}
	if e.CreatedAt, err = timeField(r, "created_at"); err != nil {
		return e, err
	}
	if e.UpdatedAt, err = timeField(r, "updated_at"); err != nil {
		return e, err
	}
	return e, nil
}

// AttachmentToRemote converts attachment metadata for replication.
func AttachmentToRemote(a models.Attachment) RemoteRecord {
	var owner any
	if a.OwnerEntityID != "" {
		owner = a.OwnerEntityID
	}
	return RemoteRecord{
		"id":              a.ID,
		"owner_entity_id": owner,
		"original_name":   a.OriginalName,
		"size_bytes":      a.SizeBytes,
		"content_type":    a.ContentType,
		"integrity_hash":  a.IntegrityHash,
		"created_at":      formatTime(a.CreatedAt),
		"updated_at":      formatTime(a.UpdatedAt),
	}
}

// AttachmentFromRemote decodes replicated attachment metadata. StorageName is
// a client-side concern and is not part of the remote shape.
func AttachmentFromRemote(r RemoteRecord) (models.Attachment, error) {
	var a models.Attachment
	var err error

	if a.ID, err = requiredString(r, "id"); err != nil {
		return a, err
	}
	if a.OwnerEntityID, err = optionalString(r, "owner_entity_id"); err != nil {
		return a, err
	}
	if a.OriginalName, err = requiredString(r, "original_name"); err != nil {
		return a, err
	}
	if a.ContentType, err = optionalString(r, "content_type"); err != nil {
		return a, err
	}
	if a.IntegrityHash, err = optionalString(r, "integrity_hash"); err != nil {
		return a, err
	}
	if a.SizeBytes, err = int64Field(r, "size_bytes"); err != nil {
		return a, err
	}
	if a.CreatedAt, err = timeField(r, "created_at"); err != nil {
		return a, err
	}
	if a.UpdatedAt, err = timeField(r, "updated_at"); err != nil {
		return a, err
	}
	return a, nil
}

// LastWriteWins reports whether an incoming write stamped incoming should
// replace a stored version stamped stored. Ties go to the incoming write so
// that replaying the same record is idempotent.
func LastWriteWins(incoming, stored time.Time) bool {
	return !incoming.Before(stored)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func fieldError(field, format string, args ...any) error {
	return fmt.Errorf("remote record: field %q: %s", field, fmt.Sprintf(format, args...))
}

func requiredString(r RemoteRecord, field string) (string, error) {
	s, err := optionalString(r, field)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fieldError(field, "missing")
	}
	return s, nil
}

func optionalString(r RemoteRecord, field string) (string, error) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fieldError(field, "want string, got %T", v)
	}
	return s, nil
}

func stringList(r RemoteRecord, field string) ([]string, error) {
	out := []string{}
	switch v := r[field].(type) {
	case nil:
		return out, nil
	case []string:
		return append(out, v...), nil
	case []any:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fieldError(field, "item %d: want string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fieldError(field, "want array, got %T", v)
	}
}

func int64Field(r RemoteRecord, field string) (int64, error) {
	switch v := r[field].(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	default:
		return 0, fieldError(field, "want number, got %T", v)
	}
}

func timeField(r RemoteRecord, field string) (time.Time, error) {
	switch v := r[field].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, fieldError(field, "%v", err)
		}
		return t.UTC(), nil
	default:
		return time.Time{}, fieldError(field, "want RFC 3339 string, got %T", v)
	}
}
