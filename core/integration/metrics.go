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

import "github.com/ethereum/go-ethereum/metrics"

// Package-level registered metrics, one block per manager, using flat
// "path/like/this" metric names rather than labeled vectors.
var (
	registrySystemsRegistered = metrics.NewRegisteredGauge("integration/registry/systems", nil)
	registryRestarts          = metrics.NewRegisteredCounter("integration/registry/restarts", nil)
	registryInitFailures      = metrics.NewRegisteredCounter("integration/registry/init_failures", nil)
	registryUpdateTimer       = metrics.NewRegisteredTimer("integration/registry/update", nil)

	snapshotCaptures    = metrics.NewRegisteredCounter("integration/snapshot/captures", nil)
	snapshotStale       = metrics.NewRegisteredCounter("integration/snapshot/stale_rejected", nil)
	snapshotTooLarge    = metrics.NewRegisteredCounter("integration/snapshot/too_large_rejected", nil)
	snapshotBytesStored = metrics.NewRegisteredGauge("integration/snapshot/bytes_stored", nil)

	rollbackCheckpoints  = metrics.NewRegisteredCounter("integration/rollback/checkpoints", nil)
	rollbackRestores     = metrics.NewRegisteredCounter("integration/rollback/restores", nil)
	rollbackAutoRestores = metrics.NewRegisteredCounter("integration/rollback/auto_restores", nil)

	txStarted             = metrics.NewRegisteredCounter("integration/tx/started", nil)
	txCommitted           = metrics.NewRegisteredCounter("integration/tx/committed", nil)
	txAborted             = metrics.NewRegisteredCounter("integration/tx/aborted", nil)
	txTimedOut            = metrics.NewRegisteredCounter("integration/tx/timed_out", nil)
	txIsolationViolations = metrics.NewRegisteredCounter("integration/tx/isolation_violations", nil)

	validationWarnings    = metrics.NewRegisteredCounter("integration/validation/warnings", nil)
	validationCorruptions = metrics.NewRegisteredCounter("integration/validation/corruptions", nil)
	validationRepairs     = metrics.NewRegisteredCounter("integration/validation/repairs_succeeded", nil)
	validationSkipped     = metrics.NewRegisteredCounter("integration/validation/skipped_unchanged", nil)
)
