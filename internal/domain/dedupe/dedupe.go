// Package dedupe suppresses repeated alerts, both inside one detection run
// and across runs through the cooldown policy.
package dedupe

import (
	"context"
	"strings"
	"sync"

	"github.com/okian/patternwatch/internal/domain/model"
)

// Deduper records seen keys for the lifetime of one detection run.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool
}

// Key builds the dedup key for an alert type, subject user and optional
// related entity.
func Key(t model.AlertType, userID, entityID string) string {
	var b strings.Builder
	b.Grow(len(t) + len(userID) + len(entityID) + 2)
	b.WriteString(string(t))
	b.WriteByte('|')
	b.WriteString(userID)
	if entityID != "" {
		b.WriteByte('|')
		b.WriteString(entityID)
	}
	return b.String()
}

// inMemoryDeduper keeps keys in a map guarded by a mutex.
type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemoryDeduper creates an empty run-scoped deduper.
func NewInMemoryDeduper() Deduper {
	return &inMemoryDeduper{seen: make(map[string]struct{})}
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}
