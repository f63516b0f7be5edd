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
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Runner drives App.Step on a ticker: Start spawns the loop goroutine, Stop
// closes it down and waits. The managers themselves stay single-threaded and
// cooperative; Runner is purely the daemon's outer scheduling harness and
// never calls into them concurrently with itself.
type Runner struct {
	cfg *Config
	app *App

	stopCh  chan struct{}
	doneCh  chan struct{} // closed when loop() returns, for any reason
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	maxTicks uint64 // 0 = run until stopped
	ticks    uint64
}

// NewRunner wires a Runner around an already-constructed App.
func NewRunner(cfg *Config, app *App, maxTicks uint64) *Runner {
	return &Runner{cfg: cfg, app: app, maxTicks: maxTicks, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
}

// Done returns a channel closed once the tick loop has returned, whether
// because Stop was called or because maxTicks was reached on its own.
func (r *Runner) Done() <-chan struct{} { return r.doneCh }

// Start begins the tick loop in its own goroutine.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("runner already running")
	}
	r.running = true
	r.wg.Add(1)
	go r.loop()
	return nil
}

// Stop signals the loop to exit and waits for it to finish.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}
	close(r.stopCh)
	r.wg.Wait()
	r.running = false
	return nil
}

func (r *Runner) loop() {
	defer r.wg.Done()
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	dtMs := uint64(r.cfg.TickInterval / time.Millisecond)
	if dtMs == 0 {
		dtMs = 1
	}

	for {
		select {
		case <-r.stopCh:
			log.Info("coresim loop stopping", "ticks", r.ticks)
			return
		case <-ticker.C:
			r.app.Step(dtMs)
			r.ticks++
			if r.maxTicks > 0 && r.ticks >= r.maxTicks {
				log.Info("coresim reached tick limit", "ticks", r.ticks)
				return
			}
		}
	}
}
