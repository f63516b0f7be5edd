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

// coresim wires the Integration Core managers to a handful of illustrative
// game subsystems, exercising every manager end-to-end the way the real
// game's registration code would.
package main

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	integration "github.com/ChubbyChuckles/Roguelike-sub007/core/integration"
)

// rlpPriceEntry is the RLP-encodable representation of one vendor's price
// list row.
type rlpPriceEntry struct {
	ItemID   uint32
	CopperEa uint32
}

// VendorPricing is a dynamic merchant price cache: a system whose state is
// a small map, captured/restored via RLP-encoded snapshots.
type VendorPricing struct {
	version uint32
	prices  map[uint32]uint32 // itemID -> price in copper
}

func NewVendorPricing() *VendorPricing {
	return &VendorPricing{prices: make(map[uint32]uint32)}
}

func (v *VendorPricing) SetPrice(itemID, copperEa uint32) {
	v.prices[itemID] = copperEa
	v.version++
}

func (v *VendorPricing) Price(itemID uint32) (uint32, bool) {
	p, ok := v.prices[itemID]
	return p, ok
}

func (v *VendorPricing) snapshotBytes() ([]byte, error) {
	ids := make([]uint32, 0, len(v.prices))
	for id := range v.prices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]rlpPriceEntry, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, rlpPriceEntry{ItemID: id, CopperEa: v.prices[id]})
	}
	return rlp.EncodeToBytes(rows)
}

func (v *VendorPricing) loadSnapshotBytes(data []byte) error {
	var rows []rlpPriceEntry
	if err := rlp.DecodeBytes(data, &rows); err != nil {
		return err
	}
	prices := make(map[uint32]uint32, len(rows))
	for _, r := range rows {
		prices[r.ItemID] = r.CopperEa
	}
	v.prices = prices
	return nil
}

// Descriptor builds the SystemDescriptor/SnapshotDescriptor pair for this
// subsystem, with callbacks closing over its own fields.
func (v *VendorPricing) Descriptor(id integration.SystemId) (integration.SystemDescriptor, integration.SnapshotDescriptor) {
	sys := integration.SystemDescriptor{
		Name:         "vendor-pricing",
		Version:      "1.0.0",
		Type:         integration.TypeContent,
		Priority:     integration.PriorityImportant,
		Capabilities: integration.CapRequiresUpdate | integration.CapSerializable,
		Init:         func() error { return nil },
		Update:       func(dtMs uint64) {},
		Shutdown:     func() {},
		GetState:     func() any { return v.prices },
	}
	snap := integration.SnapshotDescriptor{
		SystemId: id,
		Name:     "vendor-pricing",
		Capture: func() ([]byte, uint32, error) {
			data, err := v.snapshotBytes()
			return data, v.version, err
		},
		Restore: func(data []byte, _ uint32) error { return v.loadSnapshotBytes(data) },
	}
	return sys, snap
}

// EquipmentStats is an equipment stat cache keyed by item instance id. The
// instance id is a common.Hash (not a small integer) so that this demo
// subsystem exercises the Snapshot Manager with realistic opaque-identifier
// payloads, the way the wider game's Equipment stat cache would address an
// item instance by a content-derived id rather than a dense counter.
type EquipmentStats struct {
	version uint32
	stats   map[common.Hash]int32 // instanceID -> aggregate power rating
}

func NewEquipmentStats() *EquipmentStats {
	return &EquipmentStats{stats: make(map[common.Hash]int32)}
}

func (e *EquipmentStats) SetPower(instanceID common.Hash, power int32) {
	e.stats[instanceID] = power
	e.version++
}

// rlpEquipEntry carries Power as its two's-complement uint32 bit pattern,
// since rlp encodes only unsigned integers.
type rlpEquipEntry struct {
	InstanceID common.Hash
	Power      uint32
}

func (e *EquipmentStats) snapshotBytes() ([]byte, error) {
	ids := make([]common.Hash, 0, len(e.stats))
	for id := range e.stats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	rows := make([]rlpEquipEntry, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, rlpEquipEntry{InstanceID: id, Power: uint32(e.stats[id])})
	}
	return rlp.EncodeToBytes(rows)
}

func (e *EquipmentStats) loadSnapshotBytes(data []byte) error {
	var rows []rlpEquipEntry
	if err := rlp.DecodeBytes(data, &rows); err != nil {
		return err
	}
	stats := make(map[common.Hash]int32, len(rows))
	for _, r := range rows {
		stats[r.InstanceID] = int32(r.Power)
	}
	e.stats = stats
	return nil
}

func (e *EquipmentStats) Descriptor(id integration.SystemId) (integration.SystemDescriptor, integration.SnapshotDescriptor) {
	sys := integration.SystemDescriptor{
		Name:         "equipment-stats",
		Version:      "1.0.0",
		Type:         integration.TypeContent,
		Priority:     integration.PriorityImportant,
		Capabilities: integration.CapRequiresUpdate | integration.CapSerializable,
		Init:         func() error { return nil },
		Update:       func(dtMs uint64) {},
		Shutdown:     func() {},
		GetState:     func() any { return e.stats },
	}
	snap := integration.SnapshotDescriptor{
		SystemId: id,
		Name:     "equipment-stats",
		Capture: func() ([]byte, uint32, error) {
			data, err := e.snapshotBytes()
			return data, e.version, err
		},
		Restore: func(data []byte, _ uint32) error { return e.loadSnapshotBytes(data) },
	}
	return sys, snap
}

// SaveSection is one entry of a save file's versioned section table, each
// guarded by a CRC32 checksum.
type SaveSection struct {
	Name    string
	Version uint32
	Payload []byte
}

// SaveTable is the versioned section table a Save Manager would persist.
type SaveTable struct {
	version  uint32
	sections map[string]SaveSection
}

func NewSaveTable() *SaveTable {
	return &SaveTable{sections: make(map[string]SaveSection)}
}

func (t *SaveTable) PutSection(name string, payload []byte) {
	t.sections[name] = SaveSection{Name: name, Version: t.version + 1, Payload: payload}
	t.version++
}

func (t *SaveTable) Checksum(name string) (uint32, bool) {
	s, ok := t.sections[name]
	if !ok {
		return 0, false
	}
	return crc32.ChecksumIEEE(s.Payload), true
}

type rlpSaveSection struct {
	Name    string
	Version uint32
	Payload []byte
	CRC32   uint32
}

func (t *SaveTable) snapshotBytes() ([]byte, error) {
	names := make([]string, 0, len(t.sections))
	for n := range t.sections {
		names = append(names, n)
	}
	sort.Strings(names)
	rows := make([]rlpSaveSection, 0, len(names))
	for _, n := range names {
		s := t.sections[n]
		rows = append(rows, rlpSaveSection{Name: s.Name, Version: s.Version, Payload: s.Payload, CRC32: crc32.ChecksumIEEE(s.Payload)})
	}
	return rlp.EncodeToBytes(rows)
}

func (t *SaveTable) loadSnapshotBytes(data []byte) error {
	var rows []rlpSaveSection
	if err := rlp.DecodeBytes(data, &rows); err != nil {
		return err
	}
	sections := make(map[string]SaveSection, len(rows))
	for _, r := range rows {
		if crc32.ChecksumIEEE(r.Payload) != r.CRC32 {
			return fmt.Errorf("save section %q failed checksum verification", r.Name)
		}
		sections[r.Name] = SaveSection{Name: r.Name, Version: r.Version, Payload: r.Payload}
	}
	t.sections = sections
	return nil
}

func (t *SaveTable) Descriptor(id integration.SystemId) (integration.SystemDescriptor, integration.SnapshotDescriptor) {
	sys := integration.SystemDescriptor{
		Name:         "save-section-table",
		Version:      "1.0.0",
		Type:         integration.TypeInfrastructure,
		Priority:     integration.PriorityCritical,
		Capabilities: integration.CapSerializable,
		Init:         func() error { return nil },
		Update:       func(dtMs uint64) {},
		Shutdown:     func() {},
		GetState:     func() any { return t.sections },
	}
	snap := integration.SnapshotDescriptor{
		SystemId: id,
		Name:     "save-section-table",
		Capture: func() ([]byte, uint32, error) {
			data, err := t.snapshotBytes()
			return data, t.version, err
		},
		Restore: func(data []byte, _ uint32) error { return t.loadSnapshotBytes(data) },
	}
	return sys, snap
}
