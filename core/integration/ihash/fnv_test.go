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

package ihash

import "testing"

func TestFNV1a64Deterministic(t *testing.T) {
	data := []byte("the quick brown fox")
	h1 := FNV1a64(data)
	h2 := FNV1a64(append([]byte(nil), data...))
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %x != %x", h1, h2)
	}
}

func TestFNV1a64KnownVector(t *testing.T) {
	// FNV-1a 64-bit of the empty string is the offset basis.
	const offsetBasis64 = 0xcbf29ce484222325
	if got := FNV1a64(nil); got != offsetBasis64 {
		t.Fatalf("FNV1a64(nil) = %x, want %x", got, uint64(offsetBasis64))
	}
}

func TestFNV1a32KnownVector(t *testing.T) {
	const offsetBasis32 = 0x811c9dc5
	if got := FNV1a32(nil); got != offsetBasis32 {
		t.Fatalf("FNV1a32(nil) = %x, want %x", got, offsetBasis32)
	}
}

func TestFNV1aSensitiveToContent(t *testing.T) {
	a := FNV1a64([]byte("abc"))
	b := FNV1a64([]byte("abd"))
	if a == b {
		t.Fatalf("expected different hashes for different inputs")
	}
}
