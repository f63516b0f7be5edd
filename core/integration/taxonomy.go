// Copyright 2026 The Roguelike Authors
// This file is part of the roguelike library.
//
// The roguelike library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The roguelike library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the roguelike library. If not, see <http://www.gnu.org/licenses/>.

package integration

import (
	"fmt"
	"strings"
)

// ImplementationStatus records how far along a cataloged system is. It is
// purely descriptive; the taxonomy never drives runtime behavior.
type ImplementationStatus uint8

const (
	StatusPlanned ImplementationStatus = iota
	StatusInProgress
	StatusImplemented
	StatusDeprecated
)

func (s ImplementationStatus) String() string {
	switch s {
	case StatusPlanned:
		return "planned"
	case StatusInProgress:
		return "in-progress"
	case StatusImplemented:
		return "implemented"
	case StatusDeprecated:
		return "deprecated"
	default:
		return "unknown"
	}
}

func (s ImplementationStatus) valid() bool { return s <= StatusDeprecated }

// TaxonomyRecord is one entry in the static System Taxonomy catalog. It is
// intentionally decoupled from Registry: the taxonomy is a descriptive
// sidecar, not a live mirror of registered systems, and is never reconciled
// against the Registry's own ids.
type TaxonomyRecord struct {
	Name           string
	Description    string
	Type           SystemType
	Priority       Priority
	Capabilities   Capability
	Implementation ImplementationStatus
}

// Taxonomy is a validated, append-only catalog of known systems.
type Taxonomy struct {
	records []TaxonomyRecord
	byName  map[string]int
}

// NewTaxonomy builds an empty catalog.
func NewTaxonomy() *Taxonomy {
	return &Taxonomy{byName: make(map[string]int)}
}

// Add validates and appends one record, rejecting duplicate names and
// out-of-range enum values.
func (t *Taxonomy) Add(rec TaxonomyRecord) error {
	if rec.Name == "" {
		return fmt.Errorf("%w: taxonomy record must have a name", ErrWrongState)
	}
	if _, exists := t.byName[rec.Name]; exists {
		return fmt.Errorf("%w: taxonomy name %q already cataloged", ErrDuplicateId, rec.Name)
	}
	if !rec.Type.valid() {
		return fmt.Errorf("%w: invalid taxonomy type %d for %q", ErrWrongState, rec.Type, rec.Name)
	}
	if !rec.Priority.valid() {
		return fmt.Errorf("%w: invalid taxonomy priority %d for %q", ErrWrongState, rec.Priority, rec.Name)
	}
	if !rec.Implementation.valid() {
		return fmt.Errorf("%w: invalid implementation status %d for %q", ErrWrongState, rec.Implementation, rec.Name)
	}
	t.byName[rec.Name] = len(t.records)
	t.records = append(t.records, rec)
	return nil
}

// Get looks a record up by name.
func (t *Taxonomy) Get(name string) (TaxonomyRecord, bool) {
	idx, ok := t.byName[name]
	if !ok {
		return TaxonomyRecord{}, false
	}
	return t.records[idx], true
}

// Len returns the number of cataloged records.
func (t *Taxonomy) Len() int { return len(t.records) }

// CountByType tallies records per SystemType.
func (t *Taxonomy) CountByType() map[SystemType]int {
	out := make(map[SystemType]int)
	for _, r := range t.records {
		out[r.Type]++
	}
	return out
}

// CountByPriority tallies records per Priority.
func (t *Taxonomy) CountByPriority() map[Priority]int {
	out := make(map[Priority]int)
	for _, r := range t.records {
		out[r.Priority]++
	}
	return out
}

// CountByCapability tallies records declaring each individual capability bit.
func (t *Taxonomy) CountByCapability() map[Capability]int {
	out := make(map[Capability]int)
	for _, r := range t.records {
		for _, e := range capabilityNames {
			if r.Capabilities&e.bit != 0 {
				out[e.bit]++
			}
		}
	}
	return out
}

// Report renders a human-readable summary of the whole catalog.
func (t *Taxonomy) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "System Taxonomy (%d known systems)\n", len(t.records))
	for _, r := range t.records {
		fmt.Fprintf(&b, "  %-24s type=%-14s priority=%-9s status=%-12s caps=%s\n",
			r.Name, r.Type, r.Priority, r.Implementation, r.Capabilities)
		if r.Description != "" {
			fmt.Fprintf(&b, "      %s\n", r.Description)
		}
	}
	return b.String()
}
