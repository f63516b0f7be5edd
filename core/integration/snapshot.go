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

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/ChubbyChuckles/Roguelike-sub007/core/integration/ihash"
)

// CaptureFunc returns a freshly allocated owned buffer and the version it
// represents. The Snapshot Manager takes ownership of the returned slice.
type CaptureFunc func() (data []byte, version uint32, err error)

// RestoreFunc adopts a previously captured buffer. It does not return
// ownership of data back to the manager.
type RestoreFunc func(data []byte, version uint32) error

// SnapshotDescriptor registers one system's capture/restore contract.
type SnapshotDescriptor struct {
	SystemId SystemId
	Name     string
	MaxSize  int // 0 means unlimited

	Capture CaptureFunc // mandatory
	Restore RestoreFunc // optional; Restore fails with ErrNoRestoreCallback if nil
}

// Snapshot is an immutable, versioned byte-image of one system's state.
type Snapshot struct {
	SystemId  SystemId
	Name      string
	Version   uint32
	Hash      uint64
	Size      int
	Data      []byte
	Timestamp uint64 // monotonically increasing capture index, not wall time
}

// ByteRange is a half-open [Offset, Offset+Length) span within a snapshot.
type ByteRange struct {
	Offset int
	Length int
}

// SnapshotDelta transforms one snapshot's bytes into another's.
type SnapshotDelta struct {
	SystemId      SystemId
	BaseVersion   uint32
	TargetVersion uint32
	Ranges        []ByteRange
	Data          []byte // concatenated replacement bytes, in Ranges order
}

type snapshotEntry struct {
	desc    SnapshotDescriptor
	current *Snapshot
}

// SnapshotManager owns the current versioned byte-image of every registered
// system and builds/applies byte-range deltas between images.
type SnapshotManager struct {
	capacity int
	entries  map[SystemId]*snapshotEntry

	captureCounter uint64

	totalCaptures    uint64
	totalBytesStored uint64

	// dependsAfter[id] lists systems that must be captured before id, for
	// PlanOrder's "captures-after" adjacency.
	dependsAfter map[SystemId][]SystemId
}

const defaultSnapshotCapacity = 64

// NewSnapshotManager creates an empty manager with the given slot capacity;
// 0 selects the default of 64.
func NewSnapshotManager(capacity int) *SnapshotManager {
	if capacity <= 0 {
		capacity = defaultSnapshotCapacity
	}
	return &SnapshotManager{
		capacity:     capacity,
		entries:      make(map[SystemId]*snapshotEntry),
		dependsAfter: make(map[SystemId][]SystemId),
	}
}

// Register adds a system's capture/restore contract.
func (m *SnapshotManager) Register(desc SnapshotDescriptor) error {
	if len(m.entries) >= m.capacity {
		return ErrCapacityExhausted
	}
	if _, exists := m.entries[desc.SystemId]; exists {
		return ErrDuplicateId
	}
	if desc.Capture == nil {
		return fmt.Errorf("%w: capture callback required for system %d", ErrWrongState, desc.SystemId)
	}
	m.entries[desc.SystemId] = &snapshotEntry{desc: desc}
	return nil
}

// Capture invokes the registered capture callback and installs the result as
// the system's current snapshot, subject to the max-size and monotonic
// version rules.
func (m *SnapshotManager) Capture(id SystemId) error {
	e, ok := m.entries[id]
	if !ok {
		return ErrUnknownId
	}
	data, version, err := e.desc.Capture()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	if e.desc.MaxSize > 0 && len(data) > e.desc.MaxSize {
		snapshotTooLarge.Inc(1)
		return ErrTooLarge
	}
	if e.current != nil && version <= e.current.Version {
		// Old snapshot retained untouched.
		snapshotStale.Inc(1)
		return ErrStaleVersion
	}

	m.captureCounter++
	e.current = &Snapshot{
		SystemId:  id,
		Name:      e.desc.Name,
		Version:   version,
		Hash:      ihash.FNV1a64(data),
		Size:      len(data),
		Data:      data,
		Timestamp: m.captureCounter,
	}
	m.totalCaptures++
	m.totalBytesStored += uint64(len(data))
	snapshotCaptures.Inc(1)
	snapshotBytesStored.Update(int64(m.totalBytesStored))
	return nil
}

// Get returns the current snapshot for a system, if any.
func (m *SnapshotManager) Get(id SystemId) (*Snapshot, bool) {
	e, ok := m.entries[id]
	if !ok || e.current == nil {
		return nil, false
	}
	return e.current, true
}

// Restore invokes the system's restore callback with the given snapshot's
// bytes. The manager's own bookkeeping (current snapshot) is not mutated.
func (m *SnapshotManager) Restore(id SystemId, snap *Snapshot) error {
	e, ok := m.entries[id]
	if !ok {
		return ErrUnknownId
	}
	if e.desc.Restore == nil {
		return ErrNoRestoreCallback
	}
	if snap.SystemId != id {
		return fmt.Errorf("%w: snapshot belongs to system %d, not %d", ErrMismatchedBase, snap.SystemId, id)
	}
	return e.desc.Restore(snap.Data, snap.Version)
}

// Rehash recomputes FNV-1a 64 over a snapshot's data.
func (m *SnapshotManager) Rehash(snap *Snapshot) uint64 {
	return ihash.FNV1a64(snap.Data)
}

// DeltaBuild scans base and target byte-wise, grouping contiguous differing
// runs into ranges, and appends any trailing bytes beyond base's length.
// It is deterministic: identical inputs produce an identical delta.
func (m *SnapshotManager) DeltaBuild(base, target *Snapshot) (*SnapshotDelta, error) {
	if base.SystemId != target.SystemId {
		return nil, fmt.Errorf("%w: base and target system ids differ", ErrMismatchedBase)
	}
	if base.Version >= target.Version {
		return nil, fmt.Errorf("%w: base version %d must be less than target version %d", ErrMismatchedBase, base.Version, target.Version)
	}

	delta := &SnapshotDelta{
		SystemId:      base.SystemId,
		BaseVersion:   base.Version,
		TargetVersion: target.Version,
	}

	shared := len(base.Data)
	if len(target.Data) < shared {
		shared = len(target.Data)
	}

	i := 0
	for i < shared {
		if base.Data[i] == target.Data[i] {
			i++
			continue
		}
		start := i
		for i < shared && base.Data[i] != target.Data[i] {
			i++
		}
		delta.Ranges = append(delta.Ranges, ByteRange{Offset: start, Length: i - start})
		delta.Data = append(delta.Data, target.Data[start:i]...)
	}

	if len(target.Data) > len(base.Data) {
		delta.Ranges = append(delta.Ranges, ByteRange{Offset: len(base.Data), Length: len(target.Data) - len(base.Data)})
		delta.Data = append(delta.Data, target.Data[len(base.Data):]...)
	}

	return delta, nil
}

// DeltaApply reconstructs target bytes from base plus a delta. It requires
// delta.BaseVersion == base.Version and returns MismatchedBase if any range
// falls outside the allocated buffer.
func (m *SnapshotManager) DeltaApply(base *Snapshot, delta *SnapshotDelta) (newData []byte, newHash uint64, err error) {
	if delta.BaseVersion != base.Version {
		return nil, 0, fmt.Errorf("%w: delta base version %d does not match snapshot version %d", ErrMismatchedBase, delta.BaseVersion, base.Version)
	}

	size := len(base.Data)
	for _, r := range delta.Ranges {
		if end := r.Offset + r.Length; end > size {
			size = end
		}
	}

	buf := make([]byte, size)
	copy(buf, base.Data)

	cursor := 0
	for _, r := range delta.Ranges {
		end := r.Offset + r.Length
		if end > size || r.Offset < 0 || r.Length < 0 {
			return nil, 0, fmt.Errorf("%w: range [%d,%d) exceeds buffer of size %d", ErrMismatchedBase, r.Offset, end, size)
		}
		if cursor+r.Length > len(delta.Data) {
			return nil, 0, fmt.Errorf("%w: delta payload shorter than ranges declare", ErrMismatchedBase)
		}
		copy(buf[r.Offset:end], delta.Data[cursor:cursor+r.Length])
		cursor += r.Length
	}

	return buf, ihash.FNV1a64(buf), nil
}

// DeclareDependency records that id's capture should happen after "after"'s
// capture, for PlanOrder.
func (m *SnapshotManager) DeclareDependency(id, after SystemId) {
	m.dependsAfter[id] = append(m.dependsAfter[id], after)
}

// PlanOrder returns a topological capture order over declared dependencies,
// failing with ErrCycleDetected if one exists.
func (m *SnapshotManager) PlanOrder() ([]SystemId, error) {
	admitted := make(map[SystemId]bool, len(m.entries))
	var order []SystemId

	// Ascending-id frontier so ties between independent systems resolve the
	// same way every run.
	remaining := maps.Keys(m.entries)
	slices.Sort(remaining)

	for len(remaining) > 0 {
		progressed := false
		next := remaining[:0:0]
		for _, id := range remaining {
			ready := true
			for _, dep := range m.dependsAfter[id] {
				if !admitted[dep] {
					ready = false
					break
				}
			}
			if ready {
				admitted[id] = true
				order = append(order, id)
				progressed = true
			} else {
				next = append(next, id)
			}
		}
		remaining = next
		if !progressed {
			return nil, ErrCycleDetected
		}
	}
	return order, nil
}

// Stats returns the running totals of successful captures and bytes stored.
func (m *SnapshotManager) Stats() (totalCaptures, totalBytesStored uint64) {
	return m.totalCaptures, m.totalBytesStored
}
