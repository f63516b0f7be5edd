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
	"errors"

	"github.com/ethereum/go-ethereum/log"

	integration "github.com/ChubbyChuckles/Roguelike-sub007/core/integration"
)

// App wires the five Integration Core managers to the illustrative game
// subsystems defined in subsystems.go, the way the real game's bootstrap
// code would.
type App struct {
	nowMs uint64
	clock integration.Clock

	registry   *integration.Registry
	snapshots  *integration.SnapshotManager
	rollback   *integration.RollbackManager
	txManager  *integration.TransactionManager
	validation *integration.ValidationManager
	taxonomy   *integration.Taxonomy

	vendor    *VendorPricing
	equipment *EquipmentStats
	saveTable *SaveTable

	vendorID    integration.SystemId
	equipmentID integration.SystemId
	saveID      integration.SystemId

	phase           *PhaseTracker
	lastCorruptions uint64

	tick uint64
}

// NewApp constructs and registers every manager and subsystem in
// Registry-then-Snapshot-then-Rollback-then-Validation order.
func NewApp(cfg *Config) (*App, error) {
	a := &App{
		snapshots: integration.NewSnapshotManager(0),
		taxonomy:  integration.NewTaxonomy(),
		vendor:    NewVendorPricing(),
		equipment: NewEquipmentStats(),
		saveTable: NewSaveTable(),
		phase:     NewPhaseTracker(3),
	}
	a.clock = integration.Clock(func() uint64 { return a.nowMs })
	a.registry = integration.NewRegistry(0, a.clock, log.Root())
	a.rollback = integration.NewRollbackManager(a.snapshots, a.clock, log.Root())
	a.txManager = integration.NewTransactionManager(a.clock, a.rollback)
	a.validation = integration.NewValidationManager(a.snapshots)

	vendorSys, vendorSnap := a.vendor.Descriptor(0)
	equipSys, equipSnap := a.equipment.Descriptor(0)
	saveSys, saveSnap := a.saveTable.Descriptor(0)

	var err error
	if a.vendorID, err = a.registry.Register(vendorSys); err != nil {
		return nil, err
	}
	if a.equipmentID, err = a.registry.Register(equipSys); err != nil {
		return nil, err
	}
	if a.saveID, err = a.registry.Register(saveSys); err != nil {
		return nil, err
	}

	vendorSnap.SystemId = a.vendorID
	equipSnap.SystemId = a.equipmentID
	saveSnap.SystemId = a.saveID
	if err := a.snapshots.Register(vendorSnap); err != nil {
		return nil, err
	}
	if err := a.snapshots.Register(equipSnap); err != nil {
		return nil, err
	}
	if err := a.snapshots.Register(saveSnap); err != nil {
		return nil, err
	}

	if err := a.rollback.Configure(a.vendorID, cfg.RollbackCapacity); err != nil {
		return nil, err
	}
	if err := a.rollback.Configure(a.equipmentID, cfg.RollbackCapacity); err != nil {
		return nil, err
	}
	if err := a.rollback.Configure(a.saveID, cfg.RollbackCapacity); err != nil {
		return nil, err
	}

	_ = a.validation.RegisterSystem(a.vendorID, func() integration.ValidationResult {
		return integration.ValidationResult{Severity: integration.SeverityOk}
	}, nil)
	_ = a.validation.RegisterSystem(a.equipmentID, func() integration.ValidationResult {
		return integration.ValidationResult{Severity: integration.SeverityOk}
	}, nil)
	a.validation.RegisterCrossRule("save-table-nonempty", func() integration.ValidationResult {
		if len(a.saveTable.sections) == 0 {
			return integration.ValidationResult{Severity: integration.SeverityWarn, Code: 1, Message: "save table has no sections yet"}
		}
		return integration.ValidationResult{Severity: integration.SeverityOk}
	})
	a.validation.SetInterval(cfg.ValidationTicks)

	for _, rec := range []integration.TaxonomyRecord{
		{Name: "vendor-pricing", Description: "Dynamic merchant price cache", Type: integration.TypeContent, Priority: integration.PriorityImportant, Capabilities: integration.CapSerializable, Implementation: integration.StatusImplemented},
		{Name: "equipment-stats", Description: "Equipment stat cache", Type: integration.TypeContent, Priority: integration.PriorityImportant, Capabilities: integration.CapSerializable, Implementation: integration.StatusImplemented},
		{Name: "save-section-table", Description: "Save file section table with CRC32 guards", Type: integration.TypeInfrastructure, Priority: integration.PriorityCritical, Capabilities: integration.CapSerializable, Implementation: integration.StatusImplemented},
	} {
		if err := a.taxonomy.Add(rec); err != nil {
			return nil, err
		}
	}

	if err := a.registry.BuildDependencyGraph(); err != nil {
		return nil, err
	}
	if err := a.registry.ValidateDependencies(); err != nil {
		return nil, err
	}

	for _, id := range []integration.SystemId{a.vendorID, a.equipmentID, a.saveID} {
		if err := a.registry.InitializeSystem(id); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Step advances the whole Core by one tick: the registry's update loop,
// a rollback checkpoint of every tracked system, and a validation tick.
func (a *App) Step(dtMs uint64) {
	a.nowMs += dtMs
	a.registry.Update(dtMs)
	for _, id := range []integration.SystemId{a.vendorID, a.equipmentID, a.saveID} {
		err := a.rollback.Capture(id)
		if err != nil && !errors.Is(err, integration.ErrStaleVersion) {
			// A stale version just means the subsystem hasn't changed since
			// its last checkpoint; anything else is worth surfacing.
			log.Warn("rollback checkpoint failed", "system", id, "err", err)
		}
	}
	a.tick++
	a.validation.Tick(a.tick)

	allHealthy := true
	for _, id := range []integration.SystemId{a.vendorID, a.equipmentID, a.saveID} {
		if !a.registry.IsSystemHealthy(id) {
			allHealthy = false
			break
		}
	}
	corruptions := a.validation.Stats().Corruptions
	a.phase.Update(allHealthy, corruptions > a.lastCorruptions)
	a.lastCorruptions = corruptions
}

// Phase reports the daemon's current readiness phase.
func (a *App) Phase() DaemonPhase { return a.phase.Current() }

// HealthReport renders the Registry's human-readable health summary for the
// currently wired demo subsystems.
func (a *App) HealthReport() string { return a.registry.GetHealthReport() }

// TaxonomyReport renders the descriptive System Taxonomy catalog.
func (a *App) TaxonomyReport() string { return a.taxonomy.Report() }
