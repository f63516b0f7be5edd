// Copyright 2026 The Roguelike Authors
// This file is part of roguelike.
//
// roguelike is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// roguelike is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with roguelike. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"github.com/ethereum/go-ethereum/log"
)

// DaemonPhase represents the daemon's operational phase, layered on top of
// the per-system lifecycle states the Registry tracks.
type DaemonPhase string

const (
	PhaseInitializing DaemonPhase = "initializing"
	PhaseReady        DaemonPhase = "ready"
	PhaseDegraded     DaemonPhase = "degraded"
)

// PhaseTracker derives the daemon's overall readiness from whether every
// registered subsystem is healthy and whether validation found corruption
// this tick. It is informational only; it never drives manager behavior.
type PhaseTracker struct {
	current      DaemonPhase
	readyMinTick uint64
	healthyTicks uint64
}

// NewPhaseTracker creates a tracker that reports Ready only after the
// daemon has been continuously healthy for readyMinTicks ticks.
func NewPhaseTracker(readyMinTicks uint64) *PhaseTracker {
	return &PhaseTracker{current: PhaseInitializing, readyMinTick: readyMinTicks}
}

// Update advances the phase based on this tick's conditions.
func (pt *PhaseTracker) Update(allHealthy bool, corruptionSeen bool) {
	prev := pt.current

	if !allHealthy || corruptionSeen {
		pt.current = PhaseDegraded
		pt.healthyTicks = 0
	} else {
		pt.healthyTicks++
		if pt.healthyTicks >= pt.readyMinTick {
			pt.current = PhaseReady
		} else if pt.current == PhaseDegraded {
			// Recovering: stay out of Ready until the streak rebuilds.
			pt.current = PhaseInitializing
		}
	}

	if prev != pt.current {
		log.Info("coresim phase transition", "from", prev, "to", pt.current)
	}
}

// Current returns the current daemon phase.
func (pt *PhaseTracker) Current() DaemonPhase {
	return pt.current
}
