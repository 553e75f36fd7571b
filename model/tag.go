package model

import (
	"strings"
	"time"
)

// Tag is a user-defined label attached to routes. Names are unique and
// stored lower-cased so "Hiking" and "hiking" are the same tag.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeTagName trims and lower-cases a raw tag name. An empty result
// means the input was not a usable tag.
func NormalizeTagName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// SplitTagNames parses a comma-separated tag list into normalized,
// deduplicated names, preserving first-seen order.
func SplitTagNames(input string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, part := range strings.Split(input, ",") {
		name := NormalizeTagName(part)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
