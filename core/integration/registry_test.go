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
	"strings"
	"testing"
)

func testDescriptor(name string, hardDeps ...SystemId) SystemDescriptor {
	state := 0
	return SystemDescriptor{
		Name:             name,
		Version:          "1.0.0",
		Type:             TypeContent,
		Priority:         PriorityImportant,
		Capabilities:     CapRequiresUpdate,
		HardDependencies: hardDeps,
		Init:             func() error { state = 1; return nil },
		Update:           func(dtMs uint64) { state += int(dtMs) },
		Shutdown:         func() { state = 0 },
		GetState:         func() any { return state },
	}
}

func failingInitDescriptor(name string) SystemDescriptor {
	d := testDescriptor(name)
	d.Init = func() error { return errors.New("boom") }
	return d
}

func newTestRegistry(t *testing.T) (*Registry, *uint64) {
	t.Helper()
	var now uint64
	clock := Clock(func() uint64 { return now })
	return NewRegistry(0, clock, nil), &now
}

func TestRegisterAssignsSequentialIds(t *testing.T) {
	r, _ := newTestRegistry(t)
	id1, err := r.Register(testDescriptor("alpha"))
	if err != nil {
		t.Fatalf("register alpha: %v", err)
	}
	id2, err := r.Register(testDescriptor("beta"))
	if err != nil {
		t.Fatalf("register beta: %v", err)
	}
	if id1 == InvalidSystemId || id2 == InvalidSystemId || id1 == id2 {
		t.Fatalf("expected distinct valid ids, got %d %d", id1, id2)
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Register(testDescriptor("alpha")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := r.Register(testDescriptor("alpha")); !errors.Is(err, ErrDuplicateId) {
		t.Fatalf("expected ErrDuplicateId, got %v", err)
	}
}

func TestRegisterCapacityExhausted(t *testing.T) {
	r := NewRegistry(1, Clock(nil), nil)
	if _, err := r.Register(testDescriptor("alpha")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := r.Register(testDescriptor("beta")); !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("expected ErrCapacityExhausted, got %v", err)
	}
}

func TestDependencyOrderingAndCycles(t *testing.T) {
	r, _ := newTestRegistry(t)
	a, _ := r.Register(testDescriptor("a"))
	b, _ := r.Register(testDescriptor("b", a))
	_, _ = r.Register(testDescriptor("c", b))

	if err := r.ValidateDependencies(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := r.BuildDependencyGraph(); err != nil {
		t.Fatalf("build graph: %v", err)
	}
	order := r.orderedIds()
	pos := make(map[SystemId]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos[a] > pos[b] {
		t.Fatalf("expected a before b in topological order")
	}
}

func TestUnknownHardDependencyRejected(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Register(testDescriptor("a", SystemId(999))); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.ValidateDependencies(); !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}
}

func TestCycleDetected(t *testing.T) {
	r, _ := newTestRegistry(t)
	// Register a depends on a not-yet-existing b, then b depends on a: a cycle.
	bID := SystemId(2) // will be b's id since a gets 1
	a, _ := r.Register(testDescriptor("a", bID))
	_, _ = r.Register(testDescriptor("b", a))

	if err := r.ValidateDependencies(); !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
	if err := r.BuildDependencyGraph(); !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected from BuildDependencyGraph, got %v", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _ := r.Register(testDescriptor("alpha"))

	if err := r.InitializeSystem(id); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	e, _ := r.Entry(id)
	if e.State != Running {
		t.Fatalf("expected Running, got %s", e.State)
	}
	if !r.IsSystemHealthy(id) {
		t.Fatalf("expected healthy system")
	}

	if err := r.PauseSystem(id); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if e.State != Paused {
		t.Fatalf("expected Paused, got %s", e.State)
	}
	if r.IsSystemHealthy(id) {
		t.Fatalf("paused system should not be reported healthy")
	}

	if err := r.ResumeSystem(id); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if e.State != Running {
		t.Fatalf("expected Running after resume, got %s", e.State)
	}

	if err := r.ShutdownSystem(id); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if e.State != Shutdown {
		t.Fatalf("expected Shutdown, got %s", e.State)
	}
}

func TestInitializeFailureSetsFailedState(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _ := r.Register(failingInitDescriptor("broken"))

	if err := r.InitializeSystem(id); err == nil {
		t.Fatalf("expected init to fail")
	}
	e, _ := r.Entry(id)
	if e.State != Failed {
		t.Fatalf("expected Failed, got %s", e.State)
	}
	if e.Health.ErrorCount != 1 {
		t.Fatalf("expected ErrorCount 1, got %d", e.Health.ErrorCount)
	}
}

func TestRestartBackoffDoublesOnFailure(t *testing.T) {
	r, now := newTestRegistry(t)
	id, _ := r.Register(failingInitDescriptor("broken"))
	e, _ := r.Entry(id)

	*now += initialBackoffMs // let the registration-time backoff window lapse
	if err := r.RestartSystem(id); err == nil {
		t.Fatalf("expected restart to fail")
	}
	if e.RestartBackoffMs != initialBackoffMs*2 {
		t.Fatalf("expected backoff doubled to %d, got %d", initialBackoffMs*2, e.RestartBackoffMs)
	}

	// Retrying before the backoff elapses is refused.
	if err := r.RestartSystem(id); !errors.Is(err, ErrBackoffActive) {
		t.Fatalf("expected ErrBackoffActive, got %v", err)
	}

	*now += e.RestartBackoffMs
	if err := r.RestartSystem(id); err == nil {
		t.Fatalf("expected second restart to fail again")
	}
	if e.RestartBackoffMs != initialBackoffMs*4 {
		t.Fatalf("expected backoff doubled again to %d, got %d", initialBackoffMs*4, e.RestartBackoffMs)
	}
}

func TestRestartBackoffCapsAtMax(t *testing.T) {
	r, now := newTestRegistry(t)
	id, _ := r.Register(failingInitDescriptor("broken"))
	e, _ := r.Entry(id)

	for i := 0; i < 20; i++ {
		_ = r.RestartSystem(id)
		*now += e.RestartBackoffMs
	}
	if e.RestartBackoffMs != maxBackoffMs {
		t.Fatalf("expected backoff capped at %d, got %d", maxBackoffMs, e.RestartBackoffMs)
	}
}

func TestRestartBackoffResetsOnSuccess(t *testing.T) {
	r, now := newTestRegistry(t)
	id, _ := r.Register(testDescriptor("alpha"))
	e, _ := r.Entry(id)

	if err := r.InitializeSystem(id); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	*now += initialBackoffMs
	if err := r.RestartSystem(id); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if e.RestartBackoffMs != initialBackoffMs {
		t.Fatalf("expected backoff reset to %d, got %d", initialBackoffMs, e.RestartBackoffMs)
	}
}

func TestUpdateDrivesRunningSystemsOnly(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _ := r.Register(testDescriptor("alpha"))
	r.Update(16) // not yet running, should be a no-op

	if err := r.InitializeSystem(id); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	r.Update(16)
	e, _ := r.Entry(id)
	if got := e.Descriptor.GetState().(int); got != 1+16 {
		t.Fatalf("expected state 17, got %d", got)
	}
	if r.updateCallCount != 1 {
		t.Fatalf("expected 1 update call, got %d", r.updateCallCount)
	}
}

func TestReportsContainSystemNames(t *testing.T) {
	r, _ := newTestRegistry(t)
	id, _ := r.Register(testDescriptor("alpha"))
	_ = r.InitializeSystem(id)
	_ = r.BuildDependencyGraph()

	for _, report := range []string{
		r.GetHealthReport(),
		r.GetCapabilityMatrix(),
		r.GenerateInitReport(),
		r.AnalyzeResourceUsage(),
	} {
		if report == "" {
			t.Fatalf("expected non-empty report")
		}
	}
	if !strings.Contains(r.GetHealthReport(), "alpha") {
		t.Fatalf("expected health report to mention system name")
	}
}

func TestUnknownIdOperations(t *testing.T) {
	r, _ := newTestRegistry(t)
	bogus := SystemId(42)
	if err := r.InitializeSystem(bogus); !errors.Is(err, ErrUnknownId) {
		t.Fatalf("expected ErrUnknownId, got %v", err)
	}
	if err := r.ShutdownSystem(bogus); !errors.Is(err, ErrUnknownId) {
		t.Fatalf("expected ErrUnknownId, got %v", err)
	}
	if r.IsSystemHealthy(bogus) {
		t.Fatalf("unknown system should not be healthy")
	}
}
