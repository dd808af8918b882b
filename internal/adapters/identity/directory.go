// Package identity resolves acting parties and issues the bearer tokens that carry them.
package identity

import (
	"context"
	"strings"

	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/ports/secondary"
)

// Entry describes one known actor.
type Entry struct {
	Role        string `mapstructure:"role" yaml:"role"`
	DisplayName string `mapstructure:"display_name" yaml:"display_name"`
}

// Directory implements secondary.IdentityResolver over a fixed actor table,
// typically loaded from the `directory` config section.
// The table is fixed at construction, so lookups need no locking.
type Directory struct {
	entries map[string]Entry
}

// NewDirectory creates a directory from actor id to entry.
func NewDirectory(entries map[string]Entry) *Directory {
	d := &Directory{entries: make(map[string]Entry, len(entries))}
	for id, e := range entries {
		d.entries[strings.TrimSpace(id)] = e
	}
	return d
}

// ResolveActor returns the actor's role and display name.
func (d *Directory) ResolveActor(ctx context.Context, actorID string) (*secondary.ActorRecord, error) {
	e, ok := d.entries[strings.TrimSpace(actorID)]
	if !ok {
		return nil, &issue.NotFoundError{Entity: "actor", ID: actorID}
	}
	name := e.DisplayName
	if name == "" {
		name = actorID
	}
	return &secondary.ActorRecord{ID: actorID, Role: strings.ToLower(e.Role), DisplayName: name}, nil
}

// Ensure Directory implements the interface
var _ secondary.IdentityResolver = (*Directory)(nil)
