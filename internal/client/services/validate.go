package services

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/models"
)

const (
	MaxTitleLength     = 256
	MaxBodyBytes       = 1 << 20
	MaxTags            = 32
	MaxTagLength       = 64
	MaxAttributesBytes = 64 << 10
)

// normalizePayload validates p and returns a copy with trimmed title and a
// deduplicated tag set in first-seen order.
func normalizePayload(p models.Payload) (models.Payload, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return p, common.Invalid("title", "is required")
	}
	if utf8.RuneCountInString(p.Title) > MaxTitleLength {
		return p, common.Invalid("title", "longer than %d characters", MaxTitleLength)
	}
	if !utf8.ValidString(p.Title) || !utf8.ValidString(p.Body) {
		return p, common.Invalid("payload", "must be valid UTF-8")
	}
	if len(p.Body) > MaxBodyBytes {
		return p, common.Invalid("body", "larger than %d bytes", MaxBodyBytes)
	}

	if len(p.Tags) > MaxTags {
		return p, common.Invalid("tags", "more than %d tags", MaxTags)
	}
	seen := make(map[string]struct{}, len(p.Tags))
	tags := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		t = strings.TrimSpace(t)
		if t == "" {
			return p, common.Invalid("tags", "must not contain empty tags")
		}
		if !utf8.ValidString(t) {
			return p, common.Invalid("tags", "must be valid UTF-8")
		}
		if utf8.RuneCountInString(t) > MaxTagLength {
			return p, common.Invalid("tags", "tag %q longer than %d characters", t, MaxTagLength)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	p.Tags = tags

	if p.Attributes != nil {
		b, err := json.Marshal(p.Attributes)
		if err != nil {
			return p, common.Invalid("attributes", "not JSON-encodable: %v", err)
		}
		if len(b) > MaxAttributesBytes {
			return p, common.Invalid("attributes", "larger than %d bytes", MaxAttributesBytes)
		}
	}
	return p, nil
}

func validatePriority(p models.Priority) error {
	if p != 0 && !p.Valid() {
		return common.Invalid("priority", "unknown value %d", int(p))
	}
	return nil
}

func requireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return common.Invalid(field, "is required")
	}
	return nil
}
