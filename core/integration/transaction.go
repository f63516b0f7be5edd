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

	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Isolation selects the read/commit consistency check a transaction applies.
type Isolation uint8

const (
	ReadCommitted Isolation = iota
	RepeatableRead
)

func (i Isolation) String() string {
	switch i {
	case ReadCommitted:
		return "read-committed"
	case RepeatableRead:
		return "repeatable-read"
	default:
		return "unknown"
	}
}

// TransactionState is a transaction's position in the 2PC state machine.
type TransactionState uint8

const (
	TxUnused TransactionState = iota
	TxActive
	TxPreparing
	TxCommitting
	TxCommitted
	TxAborted
	TxTimedOut
)

func (s TransactionState) String() string {
	switch s {
	case TxUnused:
		return "unused"
	case TxActive:
		return "active"
	case TxPreparing:
		return "preparing"
	case TxCommitting:
		return "committing"
	case TxCommitted:
		return "committed"
	case TxAborted:
		return "aborted"
	case TxTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// TransactionId identifies a transaction; first valid id is 1.
type TransactionId uint64

// Participant is a subsystem taking part in a transaction. Each callback
// closes over the participant's own state, the same closures-over-callbacks
// idiom used by SystemDescriptor.
type Participant struct {
	Id      ParticipantId
	Name    string
	Prepare func(tx TransactionId) (version uint32, err error)
	Commit  func(tx TransactionId) error
	Abort   func(tx TransactionId) error // optional; nil is a no-op
	Version func() uint32
}

// TransactionRecord is the bookkeeping the manager keeps for one transaction.
type TransactionRecord struct {
	Id        TransactionId
	State     TransactionState
	Isolation Isolation
	TimeoutMs uint64
	StartMs   uint64

	// CorrelationID is an opaque id external callers can thread through logs
	// and traces to tie a transaction to the request that started it; the
	// Core never interprets it.
	CorrelationID uuid.UUID

	marked map[ParticipantId]bool

	readVersions    map[ParticipantId]uint32
	prepareVersions map[ParticipantId]uint32

	AbortReason string
}

// MarkedParticipants returns the participant ids marked on this transaction,
// in ascending id order.
func (r *TransactionRecord) MarkedParticipants() []ParticipantId {
	out := maps.Keys(r.marked)
	slices.Sort(out)
	return out
}

// LogEntry is one state transition appended to the transaction log.
type LogEntry struct {
	TxId              TransactionId
	FromState         TransactionState
	ToState           TransactionState
	Ts                uint64
	Isolation         Isolation
	ParticipantsCount int
}

// TransactionStats accumulates lifetime counters across all transactions.
type TransactionStats struct {
	Started             uint64
	ActivePeak          uint64
	Committed           uint64
	Aborted             uint64
	Timeouts            uint64
	IsolationViolations uint64
	PrepareFailures     uint64
	RollbackInvocations uint64
}

// TransactionManager coordinates multi-participant two-phase commit. On
// abort, it drives the Rollback Manager's AutoForParticipant for every
// marked participant that has a mapping.
type TransactionManager struct {
	clock    Clock
	rollback *RollbackManager

	participants map[ParticipantId]*Participant
	// order preserves participant registration order so prepare/commit/abort
	// iterate deterministically.
	order []ParticipantId

	records  map[TransactionId]*TransactionRecord
	nextTxId TransactionId

	logCap int
	log    []LogEntry

	stats TransactionStats
}

const defaultTransactionLogCap = 256

// NewTransactionManager creates a manager bound to an (optional) Rollback
// Manager; rollback may be nil if no system uses auto-rollback mapping.
func NewTransactionManager(clock Clock, rollback *RollbackManager) *TransactionManager {
	return &TransactionManager{
		clock:        clock,
		rollback:     rollback,
		participants: make(map[ParticipantId]*Participant),
		records:      make(map[TransactionId]*TransactionRecord),
		nextTxId:     1,
		logCap:       defaultTransactionLogCap,
	}
}

// SetLogCapacity configures the bounded transaction log; 0 disables logging.
func (m *TransactionManager) SetLogCapacity(n int) {
	m.logCap = n
	m.log = nil
}

// RegisterParticipant adds a participant. on_abort may be nil (no-op).
func (m *TransactionManager) RegisterParticipant(p Participant) error {
	if _, exists := m.participants[p.Id]; exists {
		return ErrDuplicateId
	}
	if p.Prepare == nil || p.Commit == nil {
		return fmt.Errorf("%w: prepare/commit callbacks required for participant %d", ErrWrongState, p.Id)
	}
	cp := p
	m.participants[p.Id] = &cp
	m.order = append(m.order, p.Id)
	return nil
}

func (m *TransactionManager) appendLog(e LogEntry) {
	if m.logCap == 0 {
		return
	}
	e.Ts = m.clock.now()
	if len(m.log) >= m.logCap {
		m.log = m.log[1:]
	}
	m.log = append(m.log, e)
}

func (m *TransactionManager) transition(rec *TransactionRecord, to TransactionState) {
	m.appendLog(LogEntry{
		TxId:              rec.Id,
		FromState:         rec.State,
		ToState:           to,
		Isolation:         rec.Isolation,
		ParticipantsCount: len(rec.marked),
	})
	rec.State = to
}

// Begin allocates a new transaction in the Active state.
func (m *TransactionManager) Begin(isolation Isolation, timeoutMs uint64) TransactionId {
	id := m.nextTxId
	m.nextTxId++
	rec := &TransactionRecord{
		Id:              id,
		State:           TxActive,
		Isolation:       isolation,
		TimeoutMs:       timeoutMs,
		StartMs:         m.clock.now(),
		CorrelationID:   uuid.New(),
		marked:          make(map[ParticipantId]bool),
		readVersions:    make(map[ParticipantId]uint32),
		prepareVersions: make(map[ParticipantId]uint32),
	}
	m.records[id] = rec
	m.stats.Started++
	txStarted.Inc(1)
	active := uint64(0)
	for _, r := range m.records {
		if r.State == TxActive || r.State == TxPreparing || r.State == TxCommitting {
			active++
		}
	}
	if active > m.stats.ActivePeak {
		m.stats.ActivePeak = active
	}
	return id
}

func (m *TransactionManager) get(id TransactionId) (*TransactionRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrUnknownId
	}
	return rec, nil
}

// Mark sets a participant's bit on the transaction. Requires Active state.
func (m *TransactionManager) Mark(id TransactionId, pid ParticipantId) error {
	rec, err := m.get(id)
	if err != nil {
		return err
	}
	if rec.State != TxActive {
		return fmt.Errorf("%w: cannot mark on transaction in state %s", ErrWrongState, rec.State)
	}
	if _, ok := m.participants[pid]; !ok {
		return ErrUnknownId
	}
	rec.marked[pid] = true
	return nil
}

// markedOrder returns marked participant ids in ascending registration order.
func (m *TransactionManager) markedOrder(rec *TransactionRecord) []ParticipantId {
	out := make([]ParticipantId, 0, len(rec.marked))
	for _, pid := range m.order {
		if rec.marked[pid] {
			out = append(out, pid)
		}
	}
	return out
}

// Read calls get_version on a participant; under RepeatableRead the observed
// version is recorded for later comparison at Commit.
func (m *TransactionManager) Read(id TransactionId, pid ParticipantId) (uint32, error) {
	rec, err := m.get(id)
	if err != nil {
		return 0, err
	}
	p, ok := m.participants[pid]
	if !ok {
		return 0, ErrUnknownId
	}
	version := p.Version()
	if rec.Isolation == RepeatableRead {
		rec.readVersions[pid] = version
	}
	return version, nil
}

// Commit runs the 2PC sequence: timeout check, isolation check, prepare
// phase, commit phase.
func (m *TransactionManager) Commit(id TransactionId) error {
	rec, err := m.get(id)
	if err != nil {
		return err
	}
	if rec.State != TxActive {
		return fmt.Errorf("%w: cannot commit transaction in state %s", ErrWrongState, rec.State)
	}

	if rec.TimeoutMs > 0 {
		now := m.clock.now()
		if now-rec.StartMs > rec.TimeoutMs {
			m.transition(rec, TxTimedOut)
			m.stats.Timeouts++
			txTimedOut.Inc(1)
			return ErrTimedOut
		}
	}

	if rec.Isolation == RepeatableRead {
		for _, pid := range m.markedOrder(rec) {
			readVersion, read := rec.readVersions[pid]
			if !read {
				continue
			}
			if current := m.participants[pid].Version(); current != readVersion {
				m.stats.IsolationViolations++
				txIsolationViolations.Inc(1)
				m.abort(rec, "isolation violation")
				return ErrIsolationViolation
			}
		}
	}

	m.transition(rec, TxPreparing)
	for _, pid := range m.markedOrder(rec) {
		p := m.participants[pid]
		version, err := p.Prepare(id)
		if err != nil {
			m.stats.PrepareFailures++
			m.abort(rec, truncateMessage(fmt.Sprintf("prepare failure: %v", err)))
			return &PrepareFailedError{ParticipantId: pid, Message: truncateMessage(err.Error())}
		}
		rec.prepareVersions[pid] = version
	}

	m.transition(rec, TxCommitting)
	for _, pid := range m.markedOrder(rec) {
		p := m.participants[pid]
		if err := p.Commit(id); err != nil {
			m.abort(rec, truncateMessage(fmt.Sprintf("commit failure: %v", err)))
			return fmt.Errorf("%w: participant %d: %v", ErrCommitFailed, pid, err)
		}
	}

	m.transition(rec, TxCommitted)
	m.stats.Committed++
	txCommitted.Inc(1)
	return nil
}

// Abort is idempotent and invokes every marked participant's abort callback,
// including ones whose prepare was never reached, so cleanup is uniform.
func (m *TransactionManager) Abort(id TransactionId, reason string) error {
	rec, err := m.get(id)
	if err != nil {
		return err
	}
	if rec.State == TxCommitted || rec.State == TxAborted {
		return nil
	}
	m.abort(rec, reason)
	return nil
}

func (m *TransactionManager) abort(rec *TransactionRecord, reason string) {
	rec.AbortReason = truncateMessage(reason)
	for _, pid := range m.markedOrder(rec) {
		p := m.participants[pid]
		if p.Abort != nil {
			_ = p.Abort(rec.Id)
		}
	}
	m.transition(rec, TxAborted)
	m.stats.Aborted++
	m.stats.RollbackInvocations++
	txAborted.Inc(1)

	if m.rollback != nil {
		for _, pid := range m.markedOrder(rec) {
			_ = m.rollback.AutoForParticipant(pid)
		}
	}
}

// State returns a transaction's current state.
func (m *TransactionManager) State(id TransactionId) (TransactionState, error) {
	rec, err := m.get(id)
	if err != nil {
		return TxUnused, err
	}
	return rec.State, nil
}

// Record exposes a transaction's record for inspection; callers must not
// mutate it.
func (m *TransactionManager) Record(id TransactionId) (*TransactionRecord, error) {
	return m.get(id)
}

// Log returns the bounded transaction log in append order.
func (m *TransactionManager) Log() []LogEntry { return m.log }

// Stats returns a copy of the running transaction statistics.
func (m *TransactionManager) Stats() TransactionStats { return m.stats }
