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
	"time"
)

// Config holds the coresim daemon configuration.
type Config struct {
	TickInterval     time.Duration
	RollbackCapacity int
	ValidationTicks  uint64
	LogLevel         string
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick-interval must be > 0")
	}
	if c.RollbackCapacity < 1 || c.RollbackCapacity > 16 {
		return fmt.Errorf("rollback-capacity must be in [1,16], got %d", c.RollbackCapacity)
	}
	return nil
}
