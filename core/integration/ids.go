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

// SystemId is a small dense integer identifying a registered subsystem.
// It is 1-origin; 0 (InvalidSystemId) is reserved and never assigned.
type SystemId uint32

// InvalidSystemId is the reserved zero value; no system is ever assigned it.
const InvalidSystemId SystemId = 0

// idAllocator hands out sequential SystemIds starting at 1, shared by any
// manager that mints its own ids (the Registry is the canonical minter; the
// Snapshot/Rollback/Validation managers receive ids already minted by the
// Registry and never allocate their own).
type idAllocator struct {
	next SystemId
}

func newIDAllocator() *idAllocator {
	return &idAllocator{next: 1}
}

func (a *idAllocator) allocate() SystemId {
	id := a.next
	a.next++
	return id
}
