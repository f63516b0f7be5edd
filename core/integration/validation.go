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
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Severity classifies a validator or cross-rule outcome.
type Severity uint8

const (
	SeverityOk Severity = iota
	SeverityWarn
	SeverityCorrupt
)

func (s Severity) String() string {
	switch s {
	case SeverityOk:
		return "ok"
	case SeverityWarn:
		return "warn"
	case SeverityCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// ValidationResult is what a validator or cross-rule callback returns.
type ValidationResult struct {
	Severity Severity
	Code     uint32
	Message  string
}

// ValidateFunc inspects one system's current state.
type ValidateFunc func() ValidationResult

// RepairFunc attempts to fix a Corrupt system, given the failing code.
type RepairFunc func(code uint32) error

// CrossRuleFunc inspects state spanning multiple systems.
type CrossRuleFunc func() ValidationResult

type validatorEntry struct {
	validate ValidateFunc
	repair   RepairFunc
	lastHash uint64
	hasHash  bool
}

type crossRuleEntry struct {
	name string
	rule CrossRuleFunc
}

// ValidationEvent is one row in the validation event log.
type ValidationEvent struct {
	Seq             uint64
	Tick            uint64
	SystemId        int64 // -1 for cross-rule events
	Severity        Severity
	Code            uint32
	Message         string
	RepairAttempted bool
	RepairSuccess   bool
}

// ValidationStats accumulates lifetime counters across all runs.
type ValidationStats struct {
	Warnings         uint64
	Corruptions      uint64
	RepairsAttempted uint64
	RepairsSucceeded uint64
	SkippedUnchanged uint64
}

// ValidationManager schedules per-system validators and cross-system rules,
// skipping systems whose snapshot hash has not changed since the last run.
type ValidationManager struct {
	snapshots *SnapshotManager

	systems    map[SystemId]*validatorEntry
	crossRules []crossRuleEntry

	intervalTicks  uint64
	lastRunTick    uint64
	pendingTrigger bool

	events   []ValidationEvent
	eventCap int
	seq      uint64

	stats ValidationStats

	// changed accumulates the systems that had a current snapshot and whose
	// validator ran (was not skipped as unchanged) during the most recent
	// RunNow. Systems validated without any snapshot are not included.
	// Exposed via Changed so callers can react to "what moved this tick"
	// without re-deriving it from the event log.
	changed mapset.Set[SystemId]
}

const defaultValidationEventCap = 256

// NewValidationManager creates a manager bound to the Snapshot Manager it
// reads current snapshots from for hash-based skip detection.
func NewValidationManager(snapshots *SnapshotManager) *ValidationManager {
	return &ValidationManager{
		snapshots: snapshots,
		systems:   make(map[SystemId]*validatorEntry),
		eventCap:  defaultValidationEventCap,
		changed:   mapset.NewThreadUnsafeSet[SystemId](),
	}
}

// RegisterSystem adds a per-system validator, rejecting duplicates.
func (m *ValidationManager) RegisterSystem(id SystemId, validate ValidateFunc, repair RepairFunc) error {
	if _, exists := m.systems[id]; exists {
		return ErrDuplicateId
	}
	m.systems[id] = &validatorEntry{validate: validate, repair: repair}
	return nil
}

// RegisterCrossRule adds a global rule not tied to a single system id.
func (m *ValidationManager) RegisterCrossRule(name string, rule CrossRuleFunc) {
	m.crossRules = append(m.crossRules, crossRuleEntry{name: name, rule: rule})
}

// SetInterval configures the scheduled-run cadence; 0 disables scheduled
// runs (explicit Trigger/RunNow calls still work).
func (m *ValidationManager) SetInterval(ticks uint64) {
	m.intervalTicks = ticks
}

// Trigger marks a pending run to occur on the next Tick regardless of
// interval.
func (m *ValidationManager) Trigger() {
	m.pendingTrigger = true
}

// Tick runs validation immediately if a trigger is pending, or once enough
// ticks have elapsed since the last run.
func (m *ValidationManager) Tick(currentTick uint64) {
	shouldRun := m.pendingTrigger
	if !shouldRun && m.intervalTicks > 0 && currentTick-m.lastRunTick >= m.intervalTicks {
		shouldRun = true
	}
	if !shouldRun {
		return
	}
	m.pendingTrigger = false
	m.lastRunTick = currentTick
	m.RunNow(false, currentTick)
}

func (m *ValidationManager) appendEvent(e ValidationEvent, tick uint64) {
	m.seq++
	e.Seq = m.seq
	e.Tick = tick
	if m.eventCap > 0 && len(m.events) >= m.eventCap {
		m.events = m.events[1:]
	}
	m.events = append(m.events, e)
}

// RunNow validates every registered system (skipping unchanged ones unless
// forceAll) and then every cross-rule, recording one event per invocation.
func (m *ValidationManager) RunNow(forceAll bool, tick uint64) {
	m.changed.Clear()
	// Systems run in ascending id order so the event log is reproducible
	// across runs, not subject to map iteration order.
	ids := maps.Keys(m.systems)
	slices.Sort(ids)
	for _, id := range ids {
		entry := m.systems[id]
		snap, ok := m.snapshots.Get(id)
		if ok && !forceAll && entry.hasHash && snap.Hash == entry.lastHash {
			m.stats.SkippedUnchanged++
			validationSkipped.Inc(1)
			continue
		}
		if ok {
			entry.lastHash = snap.Hash
			entry.hasHash = true
			m.changed.Add(id)
		}

		result := entry.validate()
		ev := ValidationEvent{SystemId: int64(id), Severity: result.Severity, Code: result.Code, Message: truncateMessage(result.Message)}

		switch result.Severity {
		case SeverityWarn:
			m.stats.Warnings++
			validationWarnings.Inc(1)
		case SeverityCorrupt:
			m.stats.Corruptions++
			validationCorruptions.Inc(1)
			if entry.repair != nil {
				ev.RepairAttempted = true
				m.stats.RepairsAttempted++
				if err := entry.repair(result.Code); err == nil {
					ev.RepairSuccess = true
					m.stats.RepairsSucceeded++
					validationRepairs.Inc(1)
				}
			}
		}
		m.appendEvent(ev, tick)
	}

	for _, cr := range m.crossRules {
		result := cr.rule()
		ev := ValidationEvent{SystemId: -1, Severity: result.Severity, Code: result.Code, Message: truncateMessage(result.Message)}
		switch result.Severity {
		case SeverityWarn:
			m.stats.Warnings++
			validationWarnings.Inc(1)
		case SeverityCorrupt:
			m.stats.Corruptions++
			validationCorruptions.Inc(1)
		}
		m.appendEvent(ev, tick)
	}
}

// Reset clears all registrations, events, and statistics.
func (m *ValidationManager) Reset() {
	m.systems = make(map[SystemId]*validatorEntry)
	m.crossRules = nil
	m.events = nil
	m.stats = ValidationStats{}
	m.intervalTicks = 0
	m.lastRunTick = 0
	m.pendingTrigger = false
	m.changed.Clear()
}

// Changed returns the set of system ids that had a current snapshot and whose
// validator actually ran (i.e. was not skipped as unchanged) during the most
// recent RunNow. Systems validated without any snapshot are not included.
func (m *ValidationManager) Changed() mapset.Set[SystemId] { return m.changed.Clone() }

// Events returns the validation event log in append order.
func (m *ValidationManager) Events() []ValidationEvent { return m.events }

// Stats returns a copy of the running validation statistics.
func (m *ValidationManager) Stats() ValidationStats { return m.stats }
