// Package updates contains the update orchestration core: the transaction
// coordinator state machine, the update catalog, EULA negotiation, and the
// aggregate snapshot published to consumers.
package updates

import (
	"sort"

	"github.com/updatewatch/agent/internal/pk"
)

// Category buckets an available update for counting and display.
type Category int

const (
	CategoryOther Category = iota
	CategoryBugfix
	CategoryImportant
	CategorySecurity
)

func (c Category) String() string {
	switch c {
	case CategoryBugfix:
		return "bugfix"
	case CategoryImportant:
		return "important"
	case CategorySecurity:
		return "security"
	default:
		return "other"
	}
}

// categoryFor maps the daemon's package info onto a catalog category.
func categoryFor(info pk.Info) Category {
	switch info {
	case pk.InfoSecurity:
		return CategorySecurity
	case pk.InfoImportant:
		return CategoryImportant
	case pk.InfoBugfix:
		return CategoryBugfix
	default:
		return CategoryOther
	}
}

// PackageEntry is one available update. The ID uniquely encodes
// name, version, architecture and repository.
type PackageEntry struct {
	ID       string
	Summary  string
	Category Category
}

// Catalog accumulates package entries during one enumeration pass. Readers
// never see the working set; only Commit publishes a snapshot.
type Catalog struct {
	working map[string]PackageEntry
}

func NewCatalog() *Catalog {
	return &Catalog{working: make(map[string]PackageEntry)}
}

// BeginPass clears the working set for a new enumeration.
func (c *Catalog) BeginPass() {
	c.working = make(map[string]PackageEntry)
}

// Record inserts or overwrites an entry by id. Re-reporting an id with an
// updated summary replaces the previous entry.
func (c *Catalog) Record(entry PackageEntry) {
	c.working[entry.ID] = entry
}

// Commit freezes the working set into an immutable snapshot with derived
// counts and display order.
func (c *Catalog) Commit() CatalogSnapshot {
	snap := CatalogSnapshot{entries: make(map[string]PackageEntry, len(c.working))}
	for id, entry := range c.working {
		snap.entries[id] = entry
		switch entry.Category {
		case CategorySecurity:
			snap.security = append(snap.security, id)
		case CategoryImportant:
			snap.important = append(snap.important, id)
		default:
			snap.other = append(snap.other, id)
		}
	}
	sort.Strings(snap.security)
	sort.Strings(snap.important)
	sort.Strings(snap.other)
	return snap
}

// CatalogSnapshot is the committed, read-only view of one enumeration pass.
// The zero value is a valid empty snapshot.
type CatalogSnapshot struct {
	entries   map[string]PackageEntry
	security  []string
	important []string
	other     []string
}

func (s CatalogSnapshot) Count() int          { return len(s.entries) }
func (s CatalogSnapshot) SecurityCount() int  { return len(s.security) }
func (s CatalogSnapshot) ImportantCount() int { return len(s.important) }
func (s CatalogSnapshot) OtherCount() int     { return len(s.other) }

// IsUpToDate reports whether no updates are available.
func (s CatalogSnapshot) IsUpToDate() bool {
	return len(s.entries) == 0
}

// Entry looks up one package by id.
func (s CatalogSnapshot) Entry(id string) (PackageEntry, bool) {
	entry, ok := s.entries[id]
	return entry, ok
}

// Packages returns a fresh id→summary map for external consumers.
func (s CatalogSnapshot) Packages() map[string]string {
	out := make(map[string]string, len(s.entries))
	for id, entry := range s.entries {
		out[id] = entry.Summary
	}
	return out
}

// DisplayOrder returns package ids in stable presentation order: security
// first, then important, then everything else.
func (s CatalogSnapshot) DisplayOrder() []string {
	out := make([]string, 0, len(s.entries))
	out = append(out, s.security...)
	out = append(out, s.important...)
	out = append(out, s.other...)
	return out
}
