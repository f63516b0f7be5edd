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

	"github.com/ethereum/go-ethereum/log"
)

// ParticipantId identifies a transaction participant for rollback mapping.
// Defined here (rather than in transaction.go) because the Rollback Manager
// is the first consumer; the Transaction Manager reuses this type.
type ParticipantId uint32

type ringEntry struct {
	version uint32
	hash    uint64
	size    int
	data    []byte
}

type rollbackRing struct {
	capacity int
	head     int
	count    int
	entries  []ringEntry

	// overwrites counts consecutive pushes that evicted an older entry;
	// once it covers a full turn of a below-ceiling ring, the manager warns
	// that history is being lost (once per saturation episode).
	overwrites int
	satWarned  bool
}

func newRollbackRing(capacity int) *rollbackRing {
	return &rollbackRing{capacity: capacity, entries: make([]ringEntry, capacity)}
}

// push writes newest-first by rotating head modulo capacity.
func (r *rollbackRing) push(e ringEntry) {
	r.entries[r.head] = e
	r.head = (r.head + 1) % r.capacity
	if r.count < r.capacity {
		r.count++
	}
}

// at resolves the entry `steps` back from the most recent (steps=0 is the
// latest capture), per the newest-first (head-1-i) mod capacity rule.
func (r *rollbackRing) at(steps int) (ringEntry, bool) {
	if steps < 0 || steps >= r.count {
		return ringEntry{}, false
	}
	idx := ((r.head-1-steps)%r.capacity + r.capacity) % r.capacity
	return r.entries[idx], true
}

// RollbackEvent records one rollback action in the global event log.
type RollbackEvent struct {
	Seq            uint64
	SystemId       SystemId
	VersionBefore  uint32
	VersionAfter   uint32
	AutoTriggered  bool
	ParticipantId  ParticipantId
	HasParticipant bool
	Ts             uint64
}

// RollbackStats accumulates lifetime counters across all rings.
type RollbackStats struct {
	CheckpointsCaptured uint64
	RestoresPerformed   uint64
	ValidationFailures  uint64
	PartialRollbacks    uint64
	AutoRollbacks       uint64
	SystemsRewound      uint64
	BytesRewound        uint64
}

// RollbackManager keeps a bounded ring of captured snapshots per system and
// restores them on demand, either by explicit step-back or automatically
// from a transaction abort. Ring entries hold full byte copies; delta-form
// entries are deliberately not supported.
type RollbackManager struct {
	snapshots *SnapshotManager
	clock     Clock
	log       log.Logger

	rings        map[SystemId]*rollbackRing
	participants map[ParticipantId]SystemId

	events   []RollbackEvent
	eventCap int
	seq      uint64

	stats RollbackStats
}

const (
	defaultRollbackEventCap = 256
	maxRingCapacity         = 16
)

// NewRollbackManager creates a Rollback Manager bound to a SnapshotManager,
// whose Capture/Restore it drives. A nil logger selects log.Root().
func NewRollbackManager(snapshots *SnapshotManager, clock Clock, logger log.Logger) *RollbackManager {
	if logger == nil {
		logger = log.Root()
	}
	return &RollbackManager{
		snapshots:    snapshots,
		clock:        clock,
		log:          logger,
		rings:        make(map[SystemId]*rollbackRing),
		participants: make(map[ParticipantId]SystemId),
		eventCap:     defaultRollbackEventCap,
	}
}

// Configure allocates a per-system ring of the given capacity (1..16),
// discarding prior contents.
func (m *RollbackManager) Configure(id SystemId, capacity int) error {
	if capacity < 1 || capacity > maxRingCapacity {
		return fmt.Errorf("%w: ring capacity must be in [1,%d], got %d", ErrWrongState, maxRingCapacity, capacity)
	}
	m.rings[id] = newRollbackRing(capacity)
	return nil
}

func (m *RollbackManager) appendEvent(e RollbackEvent) {
	m.seq++
	e.Seq = m.seq
	e.Ts = m.clock.now()
	if m.eventCap > 0 && len(m.events) >= m.eventCap {
		m.events = m.events[1:]
	}
	m.events = append(m.events, e)
}

// Capture snapshots the system via the Snapshot Manager and copies the
// result into the ring's head slot.
func (m *RollbackManager) Capture(id SystemId) error {
	ring, ok := m.rings[id]
	if !ok {
		return ErrNotConfigured
	}
	if err := m.snapshots.Capture(id); err != nil {
		return err
	}
	snap, ok := m.snapshots.Get(id)
	if !ok {
		return ErrCaptureFailed
	}
	full := ring.count == ring.capacity
	ring.push(ringEntry{
		version: snap.Version,
		hash:    snap.Hash,
		size:    snap.Size,
		data:    append([]byte(nil), snap.Data...),
	})
	if full {
		ring.overwrites++
		if !ring.satWarned && ring.capacity < maxRingCapacity && ring.overwrites >= ring.capacity {
			m.log.Warn("rollback ring saturated, oldest checkpoints are being overwritten",
				"system", id, "capacity", ring.capacity)
			ring.satWarned = true
		}
	}
	m.stats.CheckpointsCaptured++
	rollbackCheckpoints.Inc(1)
	return nil
}

// CaptureResult reports one system's outcome within a CaptureMulti call.
type CaptureResult struct {
	SystemId SystemId
	Err      error
}

// CaptureMulti captures each listed system; failures are reported per
// system rather than aborting the whole batch.
func (m *RollbackManager) CaptureMulti(ids []SystemId) []CaptureResult {
	results := make([]CaptureResult, 0, len(ids))
	for _, id := range ids {
		results = append(results, CaptureResult{SystemId: id, Err: m.Capture(id)})
	}
	return results
}

// StepBack restores the entry `steps` captures behind the most recent one.
func (m *RollbackManager) StepBack(id SystemId, steps int) error {
	ring, ok := m.rings[id]
	if !ok {
		return ErrNotConfigured
	}
	entry, ok := ring.at(steps)
	if !ok {
		return ErrNotEnoughHistory
	}

	before, hadBefore := m.snapshots.Get(id)
	synthetic := &Snapshot{SystemId: id, Version: entry.version, Hash: entry.hash, Size: entry.size, Data: entry.data}
	if err := m.snapshots.Restore(id, synthetic); err != nil {
		return err
	}

	var versionBefore uint32
	if hadBefore {
		versionBefore = before.Version
	}
	m.appendEvent(RollbackEvent{SystemId: id, VersionBefore: versionBefore, VersionAfter: entry.version, AutoTriggered: false})
	m.stats.RestoresPerformed++
	m.stats.SystemsRewound++
	m.stats.BytesRewound += uint64(entry.size)
	rollbackRestores.Inc(1)
	return nil
}

// Partial performs an independent StepBack per (id, steps) pair in one call.
func (m *RollbackManager) Partial(ids []SystemId, steps []int) []CaptureResult {
	results := make([]CaptureResult, 0, len(ids))
	rewound := false
	for i, id := range ids {
		s := 0
		if i < len(steps) {
			s = steps[i]
		}
		err := m.StepBack(id, s)
		if err == nil {
			rewound = true
		}
		results = append(results, CaptureResult{SystemId: id, Err: err})
	}
	if rewound {
		m.stats.PartialRollbacks++
	}
	return results
}

// MapParticipant associates a transaction participant with a system for
// auto-rollback. Many participants may map to the same system.
func (m *RollbackManager) MapParticipant(pid ParticipantId, sid SystemId) {
	m.participants[pid] = sid
}

// AutoForParticipant re-applies the mapped system's latest capture; invoked
// from the Transaction Manager's abort path.
func (m *RollbackManager) AutoForParticipant(pid ParticipantId) error {
	sid, ok := m.participants[pid]
	if !ok {
		return ErrUnknownId
	}
	ring, ok := m.rings[sid]
	if !ok {
		return ErrNotConfigured
	}
	entry, ok := ring.at(0)
	if !ok {
		return ErrNotEnoughHistory
	}

	before, hadBefore := m.snapshots.Get(sid)
	synthetic := &Snapshot{SystemId: sid, Version: entry.version, Hash: entry.hash, Size: entry.size, Data: entry.data}
	if err := m.snapshots.Restore(sid, synthetic); err != nil {
		return err
	}
	var versionBefore uint32
	if hadBefore {
		versionBefore = before.Version
	}
	m.appendEvent(RollbackEvent{SystemId: sid, VersionBefore: versionBefore, VersionAfter: entry.version, AutoTriggered: true, ParticipantId: pid, HasParticipant: true})
	m.stats.RestoresPerformed++
	m.stats.AutoRollbacks++
	m.stats.SystemsRewound++
	m.stats.BytesRewound += uint64(entry.size)
	rollbackRestores.Inc(1)
	rollbackAutoRestores.Inc(1)
	return nil
}

// Purge frees all ring entries for a system.
func (m *RollbackManager) Purge(id SystemId) {
	if ring, ok := m.rings[id]; ok {
		ring.head = 0
		ring.count = 0
		ring.overwrites = 0
		ring.satWarned = false
		ring.entries = make([]ringEntry, ring.capacity)
	}
}

// Stats returns a copy of the running rollback statistics.
func (m *RollbackManager) Stats() RollbackStats { return m.stats }

// Events returns the rollback event log in append order.
func (m *RollbackManager) Events() []RollbackEvent { return m.events }

// ringCount reports how many entries are currently stored for a system,
// used by tests to assert the capacity bound.
func (m *RollbackManager) ringCount(id SystemId) int {
	if ring, ok := m.rings[id]; ok {
		return ring.count
	}
	return 0
}
