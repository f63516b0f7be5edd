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

// Clock returns monotonic milliseconds. The managers never read wall-clock
// time directly; every one that needs "now" takes one of these so tests can
// drive deterministic timing. The zero value (nil Clock) behaves as a clock
// fixed at 0.
type Clock func() uint64

func (c Clock) now() uint64 {
	if c == nil {
		return 0
	}
	return c()
}
