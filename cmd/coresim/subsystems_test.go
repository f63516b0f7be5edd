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
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func testConfig() *Config {
	return &Config{
		TickInterval:     100 * time.Millisecond,
		RollbackCapacity: 4,
		ValidationTicks:  5,
		LogLevel:         "info",
	}
}

func TestNewAppRegistersAllDemoSubsystems(t *testing.T) {
	app, err := NewApp(testConfig())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if !app.registry.IsSystemHealthy(app.vendorID) {
		t.Fatalf("vendor-pricing should be running after NewApp")
	}
	if !app.registry.IsSystemHealthy(app.equipmentID) {
		t.Fatalf("equipment-stats should be running after NewApp")
	}
	if !app.registry.IsSystemHealthy(app.saveID) {
		t.Fatalf("save-section-table should be running after NewApp")
	}
	if app.taxonomy.Len() != 3 {
		t.Fatalf("expected 3 taxonomy records, got %d", app.taxonomy.Len())
	}
}

func TestStepCapturesRollbackCheckpoints(t *testing.T) {
	app, err := NewApp(testConfig())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	app.vendor.SetPrice(1, 50)
	app.Step(16)
	stats := app.rollback.Stats()
	if stats.CheckpointsCaptured == 0 {
		t.Fatalf("expected at least one rollback checkpoint after Step")
	}
}

func TestVendorPriceSnapshotRoundTrip(t *testing.T) {
	app, err := NewApp(testConfig())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	app.vendor.SetPrice(7, 120)
	if err := app.snapshots.Capture(app.vendorID); err != nil {
		t.Fatalf("capture: %v", err)
	}
	snap, ok := app.snapshots.Get(app.vendorID)
	if !ok {
		t.Fatalf("expected a current snapshot for vendor-pricing")
	}

	app.vendor.SetPrice(7, 999) // mutate live state
	if err := app.snapshots.Restore(app.vendorID, snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	price, ok := app.vendor.Price(7)
	if !ok || price != 120 {
		t.Fatalf("expected restored price 120, got %d (ok=%v)", price, ok)
	}
}

func TestEquipmentStatsKeyedByHash(t *testing.T) {
	app, err := NewApp(testConfig())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	instance := common.HexToHash("0xabc123")
	app.equipment.SetPower(instance, 42)
	if err := app.snapshots.Capture(app.equipmentID); err != nil {
		t.Fatalf("capture: %v", err)
	}
	data, err := app.equipment.snapshotBytes()
	if err != nil {
		t.Fatalf("snapshotBytes: %v", err)
	}
	fresh := NewEquipmentStats()
	if err := fresh.loadSnapshotBytes(data); err != nil {
		t.Fatalf("loadSnapshotBytes: %v", err)
	}
	if p := fresh.stats[instance]; p != 42 {
		t.Fatalf("expected power 42 for instance, got %d", p)
	}
}

func TestSaveTableRejectsCorruptedSection(t *testing.T) {
	table := NewSaveTable()
	table.PutSection("inventory", []byte("payload"))
	data, err := table.snapshotBytes()
	if err != nil {
		t.Fatalf("snapshotBytes: %v", err)
	}
	data[len(data)-1] ^= 0xFF // flip the last encoded byte, part of the stored CRC32

	fresh := NewSaveTable()
	if err := fresh.loadSnapshotBytes(data); err == nil {
		t.Fatalf("expected checksum mismatch to be rejected")
	}
}

func TestValidationCrossRuleWarnsOnEmptySaveTable(t *testing.T) {
	app, err := NewApp(testConfig())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	app.validation.Trigger()
	app.validation.Tick(1)
	if app.validation.Stats().Warnings == 0 {
		t.Fatalf("expected the save-table-nonempty cross-rule to warn while empty")
	}
}

func TestRunnerStopsAtMaxTicks(t *testing.T) {
	app, err := NewApp(testConfig())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	cfg := testConfig()
	cfg.TickInterval = 5 * time.Millisecond
	runner := NewRunner(cfg, app, 3)
	if err := runner.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-runner.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not stop at max ticks within timeout")
	}
	if err := runner.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
