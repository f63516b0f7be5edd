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
	"errors"
	"testing"
)

func alwaysOkParticipant(id ParticipantId, name string) Participant {
	return Participant{
		Id:      id,
		Name:    name,
		Prepare: func(TransactionId) (uint32, error) { return 1, nil },
		Commit:  func(TransactionId) error { return nil },
		Abort:   func(TransactionId) error { return nil },
		Version: func() uint32 { return 1 },
	}
}

func TestTwoPhaseCommitHappyPath(t *testing.T) {
	tm := NewTransactionManager(Clock(nil), nil)
	if err := tm.RegisterParticipant(alwaysOkParticipant(11, "a")); err != nil {
		t.Fatalf("register 11: %v", err)
	}
	if err := tm.RegisterParticipant(alwaysOkParticipant(12, "b")); err != nil {
		t.Fatalf("register 12: %v", err)
	}

	tx := tm.Begin(ReadCommitted, 1000)
	if err := tm.Mark(tx, 11); err != nil {
		t.Fatalf("mark 11: %v", err)
	}
	if err := tm.Mark(tx, 12); err != nil {
		t.Fatalf("mark 12: %v", err)
	}
	if err := tm.Commit(tx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	state, _ := tm.State(tx)
	if state != TxCommitted {
		t.Fatalf("expected Committed, got %s", state)
	}
	stats := tm.Stats()
	if stats.Started != 1 || stats.Committed != 1 || stats.Aborted != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRepeatableReadDetectsExternalVersionBump(t *testing.T) {
	tm := NewTransactionManager(Clock(nil), nil)
	version1 := uint32(1)
	version2 := uint32(1)
	abortedCount := map[ParticipantId]int{}

	p1 := Participant{
		Id: 1, Name: "p1",
		Prepare: func(TransactionId) (uint32, error) { return version1, nil },
		Commit:  func(TransactionId) error { return nil },
		Abort:   func(TransactionId) error { abortedCount[1]++; return nil },
		Version: func() uint32 { return version1 },
	}
	p2 := Participant{
		Id: 2, Name: "p2",
		Prepare: func(TransactionId) (uint32, error) { return version2, nil },
		Commit:  func(TransactionId) error { return nil },
		Abort:   func(TransactionId) error { abortedCount[2]++; return nil },
		Version: func() uint32 { return version2 },
	}
	_ = tm.RegisterParticipant(p1)
	_ = tm.RegisterParticipant(p2)

	tx := tm.Begin(RepeatableRead, 100)
	_ = tm.Mark(tx, 1)
	_ = tm.Mark(tx, 2)
	if _, err := tm.Read(tx, 1); err != nil {
		t.Fatalf("read 1: %v", err)
	}
	if _, err := tm.Read(tx, 2); err != nil {
		t.Fatalf("read 2: %v", err)
	}

	version2 = 2 // externally bumped

	if err := tm.Commit(tx); !errors.Is(err, ErrIsolationViolation) {
		t.Fatalf("expected ErrIsolationViolation, got %v", err)
	}
	state, _ := tm.State(tx)
	if state != TxAborted {
		t.Fatalf("expected Aborted, got %s", state)
	}
	if tm.Stats().IsolationViolations != 1 {
		t.Fatalf("expected IsolationViolations==1, got %d", tm.Stats().IsolationViolations)
	}
	if abortedCount[1] != 1 || abortedCount[2] != 1 {
		t.Fatalf("expected each marked participant's on_abort invoked once, got %+v", abortedCount)
	}
}

func TestAbortTriggersAutoRollback(t *testing.T) {
	sm := NewSnapshotManager(0)
	value := 0
	registerMutableSystem(t, sm, 201, &value)

	rb := NewRollbackManager(sm, Clock(nil), nil)
	_ = rb.Configure(201, 4)
	rb.MapParticipant(31, 201)

	value = 100
	_ = rb.Capture(201)
	value = -5
	_ = rb.Capture(201)
	value = -124 // scribble

	tm := NewTransactionManager(Clock(nil), rb)
	p30 := alwaysOkParticipant(30, "ok")
	p31 := Participant{
		Id:      31,
		Name:    "fails-prepare",
		Prepare: func(TransactionId) (uint32, error) { return 0, errors.New("boom") },
		Commit:  func(TransactionId) error { return nil },
		Abort:   func(TransactionId) error { return nil },
		Version: func() uint32 { return 0 },
	}
	_ = tm.RegisterParticipant(p30)
	_ = tm.RegisterParticipant(p31)

	tx := tm.Begin(ReadCommitted, 1000)
	_ = tm.Mark(tx, 30)
	_ = tm.Mark(tx, 31)

	if err := tm.Commit(tx); err == nil {
		t.Fatalf("expected commit to fail")
	}
	state, _ := tm.State(tx)
	if state != TxAborted {
		t.Fatalf("expected Aborted, got %s", state)
	}
	if rb.Stats().AutoRollbacks < 1 {
		t.Fatalf("expected at least one auto-rollback")
	}
	if rb.Stats().RestoresPerformed < 1 {
		t.Fatalf("expected at least one restore performed")
	}
	if value != -5 {
		t.Fatalf("expected value restored to -5, got %d", value)
	}

	events := rb.Events()
	last := events[len(events)-1]
	if last.SystemId != 201 || !last.AutoTriggered {
		t.Fatalf("expected auto-triggered event for system 201, got %+v", last)
	}
}

func TestCommitRespectsTimeout(t *testing.T) {
	now := uint64(0)
	clock := Clock(func() uint64 { return now })
	tm := NewTransactionManager(clock, nil)
	_ = tm.RegisterParticipant(alwaysOkParticipant(1, "a"))

	tx := tm.Begin(ReadCommitted, 50)
	_ = tm.Mark(tx, 1)
	now = 200

	if err := tm.Commit(tx); !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	state, _ := tm.State(tx)
	if state != TxTimedOut {
		t.Fatalf("expected TimedOut, got %s", state)
	}
}

func TestAbortIsIdempotent(t *testing.T) {
	tm := NewTransactionManager(Clock(nil), nil)
	_ = tm.RegisterParticipant(alwaysOkParticipant(1, "a"))
	tx := tm.Begin(ReadCommitted, 0)
	_ = tm.Mark(tx, 1)
	_ = tm.Commit(tx)

	if err := tm.Abort(tx, "late abort"); err != nil {
		t.Fatalf("abort after commit should be a no-op, got %v", err)
	}
	state, _ := tm.State(tx)
	if state != TxCommitted {
		t.Fatalf("expected state to remain Committed, got %s", state)
	}
}

func TestDeterministicLogAndStats(t *testing.T) {
	run := func() ([]LogEntry, TransactionStats) {
		tm := NewTransactionManager(Clock(nil), nil)
		_ = tm.RegisterParticipant(alwaysOkParticipant(1, "a"))
		_ = tm.RegisterParticipant(alwaysOkParticipant(2, "b"))

		tx1 := tm.Begin(ReadCommitted, 0)
		_ = tm.Mark(tx1, 1)
		_ = tm.Commit(tx1)

		tx2 := tm.Begin(ReadCommitted, 0)
		_ = tm.Mark(tx2, 2)
		_ = tm.Abort(tx2, "manual")

		return tm.Log(), tm.Stats()
	}

	log1, stats1 := run()
	log2, stats2 := run()

	if len(log1) != len(log2) {
		t.Fatalf("expected identical log lengths, got %d vs %d", len(log1), len(log2))
	}
	for i := range log1 {
		if log1[i] != log2[i] {
			t.Fatalf("log entry %d differs: %+v vs %+v", i, log1[i], log2[i])
		}
	}
	if stats1 != stats2 {
		t.Fatalf("expected identical stats, got %+v vs %+v", stats1, stats2)
	}
}
