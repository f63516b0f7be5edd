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

import (
	"fmt"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// SystemType classifies a registered subsystem for reporting purposes.
type SystemType uint8

const (
	TypeCore SystemType = iota
	TypeContent
	TypeUI
	TypeInfrastructure
)

func (t SystemType) String() string {
	switch t {
	case TypeCore:
		return "core"
	case TypeContent:
		return "content"
	case TypeUI:
		return "ui"
	case TypeInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

func (t SystemType) valid() bool { return t <= TypeInfrastructure }

// Priority orders systems for reporting and restart preference; it does not
// itself gate initialization order (hard dependencies do that).
type Priority uint8

const (
	PriorityCritical Priority = iota
	PriorityImportant
	PriorityOptional
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityImportant:
		return "important"
	case PriorityOptional:
		return "optional"
	default:
		return "unknown"
	}
}

func (p Priority) valid() bool { return p <= PriorityOptional }

// Capability is a bitset describing declarative features of a system.
type Capability uint16

const (
	CapProvidesEntities Capability = 1 << iota
	CapConsumesEvents
	CapProducesEvents
	CapRequiresRendering
	CapRequiresUpdate
	CapConfigurable
	CapSerializable
	CapHotReloadable
)

var capabilityNames = []struct {
	bit  Capability
	name string
}{
	{CapProvidesEntities, "ProvidesEntities"},
	{CapConsumesEvents, "ConsumesEvents"},
	{CapProducesEvents, "ProducesEvents"},
	{CapRequiresRendering, "RequiresRendering"},
	{CapRequiresUpdate, "RequiresUpdate"},
	{CapConfigurable, "Configurable"},
	{CapSerializable, "Serializable"},
	{CapHotReloadable, "HotReloadable"},
}

func (c Capability) String() string {
	var names []string
	for _, e := range capabilityNames {
		if c&e.bit != 0 {
			names = append(names, e.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// LifecycleState is a system's position in the registry state machine.
type LifecycleState uint8

const (
	Uninitialized LifecycleState = iota
	Initializing
	Running
	Paused
	Shutdown
	Failed
)

func (s LifecycleState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Shutdown:
		return "shutdown"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// SystemDescriptor is the registration-time contract for a subsystem.
// Callbacks close over the subsystem's own concrete state: a subsystem
// author constructs a descriptor with closures already bound to its fields,
// rather than passing an opaque state parameter through every call.
type SystemDescriptor struct {
	Name    string
	Version string

	Type         SystemType
	Priority     Priority
	Capabilities Capability

	HardDependencies []SystemId
	SoftDependencies []SystemId

	// Mandatory.
	Init     func() error
	Update   func(dtMs uint64)
	Shutdown func()
	GetState func() any

	// Optional; nil means unsupported.
	SetConfig   func(cfg any) error
	Serialize   func() ([]byte, error)
	Deserialize func(data []byte) error
	DebugInfo   func() string
}

// Health carries the runtime counters for one registered system.
type Health struct {
	UptimeS      uint64
	ErrorCount   uint32
	RestartCount uint32
	LastUpdateMs uint64
	Responsive   bool
}

// SystemEntry is the runtime record for a registered system.
type SystemEntry struct {
	Id         SystemId
	Descriptor SystemDescriptor
	State      LifecycleState
	Health     Health

	LastRestartMs    uint64
	RestartBackoffMs uint64

	runningSinceMs uint64
}

const (
	defaultRegistryCapacity = 32
	initialBackoffMs        = 1000
	maxBackoffMs            = 60000
)

// Registry holds the typed, dependency-ordered catalog of live subsystems
// and drives their lifecycle. It is single-threaded cooperative: Update and
// every lifecycle transition run to completion before returning.
type Registry struct {
	capacity int
	clock    Clock
	log      log.Logger

	idAlloc *idAllocator
	entries map[SystemId]*SystemEntry
	names   map[string]SystemId
	order   []SystemId // topological order from BuildDependencyGraph; nil until built

	averageUpdateMs float64
	maxUpdateMs     float64
	updateCallCount uint64
}

// NewRegistry creates a Registry with the given capacity; 0 selects the
// default of 32.
func NewRegistry(capacity int, clock Clock, logger log.Logger) *Registry {
	if capacity <= 0 {
		capacity = defaultRegistryCapacity
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Registry{
		capacity: capacity,
		clock:    clock,
		log:      logger,
		idAlloc:  newIDAllocator(),
		entries:  make(map[SystemId]*SystemEntry),
		names:    make(map[string]SystemId),
	}
}

// Register validates and adds a new system, returning its assigned id.
func (r *Registry) Register(desc SystemDescriptor) (SystemId, error) {
	if len(r.entries) >= r.capacity {
		return InvalidSystemId, ErrCapacityExhausted
	}
	if desc.Name == "" {
		return InvalidSystemId, fmt.Errorf("%w: system name must not be empty", ErrDuplicateId)
	}
	if _, exists := r.names[desc.Name]; exists {
		return InvalidSystemId, fmt.Errorf("%w: system name %q already registered", ErrDuplicateId, desc.Name)
	}
	if desc.Init == nil || desc.Update == nil || desc.Shutdown == nil || desc.GetState == nil {
		return InvalidSystemId, fmt.Errorf("%w: mandatory callback missing for %q", ErrWrongState, desc.Name)
	}
	if !desc.Type.valid() {
		return InvalidSystemId, fmt.Errorf("%w: invalid system type %d", ErrWrongState, desc.Type)
	}
	if !desc.Priority.valid() {
		return InvalidSystemId, fmt.Errorf("%w: invalid priority %d", ErrWrongState, desc.Priority)
	}

	desc.HardDependencies = dedupDependencies(desc.HardDependencies)
	desc.SoftDependencies = dedupDependencies(desc.SoftDependencies)

	id := r.idAlloc.allocate()
	entry := &SystemEntry{
		Id:               id,
		Descriptor:       desc,
		State:            Uninitialized,
		RestartBackoffMs: initialBackoffMs,
		LastRestartMs:    r.clock.now(),
	}
	r.entries[id] = entry
	r.names[desc.Name] = id
	registrySystemsRegistered.Update(int64(len(r.entries)))
	r.log.Debug("registered system", "id", id, "name", desc.Name, "type", desc.Type, "priority", desc.Priority)
	return id, nil
}

// dedupDependencies collapses a declared dependency list to its distinct
// members via set algebra, preserving first-seen order. A subsystem author
// listing the same hard dependency twice (e.g. through composed descriptor
// builders) should not pay for it twice in ValidateDependencies/DFS walks.
func dedupDependencies(deps []SystemId) []SystemId {
	if len(deps) == 0 {
		return deps
	}
	seen := mapset.NewThreadUnsafeSet[SystemId]()
	out := make([]SystemId, 0, len(deps))
	for _, d := range deps {
		if seen.Contains(d) {
			continue
		}
		seen.Add(d)
		out = append(out, d)
	}
	return out
}

func (r *Registry) get(id SystemId) (*SystemEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrUnknownId
	}
	return e, nil
}

// ValidateDependencies rejects unknown hard dependencies and warns (without
// failing) about unknown soft dependencies; it also detects cycles via
// per-node DFS, independent of BuildDependencyGraph's admission stall check.
func (r *Registry) ValidateDependencies() error {
	for _, e := range r.entries {
		for _, dep := range e.Descriptor.HardDependencies {
			if _, ok := r.entries[dep]; !ok {
				return fmt.Errorf("%w: system %q hard-depends on unknown id %d", ErrUnknownDependency, e.Descriptor.Name, dep)
			}
		}
		for _, dep := range e.Descriptor.SoftDependencies {
			if _, ok := r.entries[dep]; !ok {
				r.log.Warn("unknown soft dependency", "system", e.Descriptor.Name, "dependsOn", dep)
			}
		}
	}
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[SystemId]int, len(r.entries))
	var visit func(id SystemId) error
	visit = func(id SystemId) error {
		switch color[id] {
		case gray:
			return ErrCycleDetected
		case black:
			return nil
		}
		color[id] = gray
		for _, dep := range r.entries[id].Descriptor.HardDependencies {
			if _, ok := r.entries[dep]; !ok {
				continue // already reported above
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}
	for id := range r.entries {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// BuildDependencyGraph computes a topological order over hard dependencies
// by repeatedly admitting systems whose hard dependencies are all already
// admitted. A stall before every system is admitted means a cycle exists.
func (r *Registry) BuildDependencyGraph() error {
	admitted := make(map[SystemId]bool, len(r.entries))
	var order []SystemId

	remaining := maps.Keys(r.entries)
	// Sort the initial frontier so that, within each admitted layer, ties
	// between mutually independent systems resolve by ascending SystemId
	// rather than Go's unspecified map iteration order.
	slices.Sort(remaining)

	for len(remaining) > 0 {
		progressed := false
		next := remaining[:0:0]
		for _, id := range remaining {
			ready := true
			for _, dep := range r.entries[id].Descriptor.HardDependencies {
				if !admitted[dep] {
					ready = false
					break
				}
			}
			if ready {
				admitted[id] = true
				order = append(order, id)
				progressed = true
			} else {
				next = append(next, id)
			}
		}
		remaining = next
		if !progressed {
			return ErrCycleDetected
		}
	}

	r.order = order
	return nil
}

// orderedIds returns the topological order if built, otherwise a stable
// (but otherwise arbitrary) iteration order over all registered systems.
func (r *Registry) orderedIds() []SystemId {
	if r.order != nil {
		return r.order
	}
	ids := maps.Keys(r.entries)
	slices.Sort(ids)
	return ids
}

// InitializeSystem transitions a system from Uninitialized or Failed into
// Running, or into Failed on init failure.
func (r *Registry) InitializeSystem(id SystemId) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}
	if e.State != Uninitialized && e.State != Failed {
		return fmt.Errorf("%w: cannot initialize system %q from state %s", ErrWrongState, e.Descriptor.Name, e.State)
	}
	e.State = Initializing
	if err := e.Descriptor.Init(); err != nil {
		e.State = Failed
		e.Health.ErrorCount++
		registryInitFailures.Inc(1)
		r.log.Warn("system init failed", "id", id, "name", e.Descriptor.Name, "err", err)
		return err
	}
	e.State = Running
	e.LastRestartMs = r.clock.now()
	e.runningSinceMs = e.LastRestartMs
	e.Health.RestartCount++
	e.RestartBackoffMs = initialBackoffMs
	e.Health.Responsive = true
	r.log.Info("system running", "id", id, "name", e.Descriptor.Name)
	return nil
}

// ShutdownSystem is permitted from Running or Paused, and is idempotent
// when the system is already Shutdown or Uninitialized.
func (r *Registry) ShutdownSystem(id SystemId) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}
	switch e.State {
	case Shutdown, Uninitialized:
		return nil
	case Running, Paused:
		e.Descriptor.Shutdown()
		e.State = Shutdown
		r.log.Info("system shutdown", "id", id, "name", e.Descriptor.Name)
		return nil
	default:
		return fmt.Errorf("%w: cannot shut down system %q from state %s", ErrWrongState, e.Descriptor.Name, e.State)
	}
}

// PauseSystem is permitted only from Running.
func (r *Registry) PauseSystem(id SystemId) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}
	if e.State != Running {
		return fmt.Errorf("%w: cannot pause system %q from state %s", ErrWrongState, e.Descriptor.Name, e.State)
	}
	e.State = Paused
	return nil
}

// ResumeSystem is permitted only from Paused.
func (r *Registry) ResumeSystem(id SystemId) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}
	if e.State != Paused {
		return fmt.Errorf("%w: cannot resume system %q from state %s", ErrWrongState, e.Descriptor.Name, e.State)
	}
	e.State = Running
	return nil
}

// RestartSystem shuts a system down and re-initializes it, gated by
// exponential backoff: doubling on every failed restart, capped at
// maxBackoffMs, reset to initialBackoffMs by a successful Initialize.
func (r *Registry) RestartSystem(id SystemId) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}
	now := r.clock.now()
	if now-e.LastRestartMs < e.RestartBackoffMs {
		return ErrBackoffActive
	}
	if e.State == Running || e.State == Paused {
		if err := r.ShutdownSystem(id); err != nil {
			return err
		}
	}
	e.State = Uninitialized
	registryRestarts.Inc(1)
	if err := r.InitializeSystem(id); err != nil {
		e.RestartBackoffMs *= 2
		if e.RestartBackoffMs > maxBackoffMs {
			e.RestartBackoffMs = maxBackoffMs
		}
		r.log.Warn("system restart failed, backoff increased", "id", id, "name", e.Descriptor.Name, "backoffMs", e.RestartBackoffMs)
		return err
	}
	return nil
}

// Update advances every Running system in topological order, measuring wall
// time for performance metrics and updating health counters.
func (r *Registry) Update(dtMs uint64) {
	for _, id := range r.orderedIds() {
		e := r.entries[id]
		if e.State != Running {
			continue
		}
		start := time.Now()
		e.Descriptor.Update(dtMs)
		elapsed := time.Since(start)
		registryUpdateTimer.Update(elapsed)
		elapsedMs := float64(elapsed.Microseconds()) / 1000.0

		r.updateCallCount++
		r.averageUpdateMs += (elapsedMs - r.averageUpdateMs) / float64(r.updateCallCount)
		if elapsedMs > r.maxUpdateMs {
			r.maxUpdateMs = elapsedMs
		}

		e.Health.LastUpdateMs = r.clock.now()
		e.Health.Responsive = true
		if e.runningSinceMs > 0 {
			nowMs := r.clock.now()
			if nowMs >= e.runningSinceMs {
				e.Health.UptimeS = (nowMs - e.runningSinceMs) / 1000
			}
		}
	}
}

// IsSystemHealthy reports whether a system is Running and responsive.
func (r *Registry) IsSystemHealthy(id SystemId) bool {
	e, err := r.get(id)
	if err != nil {
		return false
	}
	return e.State == Running && e.Health.Responsive
}

// Entry returns a copy-free pointer to the live entry for inspection; callers
// must not mutate it.
func (r *Registry) Entry(id SystemId) (*SystemEntry, error) {
	return r.get(id)
}

// GetHealthReport renders a human-readable per-system health summary.
func (r *Registry) GetHealthReport() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Health Report (%d systems)\n", len(r.entries))
	for _, id := range r.orderedIds() {
		e := r.entries[id]
		fmt.Fprintf(&b, "  [%d] %-24s state=%-13s uptime=%ds errors=%d restarts=%d responsive=%v\n",
			e.Id, e.Descriptor.Name, e.State, e.Health.UptimeS, e.Health.ErrorCount, e.Health.RestartCount, e.Health.Responsive)
	}
	return b.String()
}

// GetCapabilityMatrix renders which systems declare which capabilities.
func (r *Registry) GetCapabilityMatrix() string {
	var b strings.Builder
	b.WriteString("Capability Matrix\n")
	for _, id := range r.orderedIds() {
		e := r.entries[id]
		fmt.Fprintf(&b, "  %-24s %s\n", e.Descriptor.Name, e.Descriptor.Capabilities)
	}
	return b.String()
}

// GenerateInitReport renders the topological initialization order alongside
// current state, useful for startup diagnostics.
func (r *Registry) GenerateInitReport() string {
	var b strings.Builder
	b.WriteString("Initialization Report\n")
	for i, id := range r.orderedIds() {
		e := r.entries[id]
		fmt.Fprintf(&b, "  %2d. %-24s type=%-14s priority=%-9s state=%s\n", i+1, e.Descriptor.Name, e.Descriptor.Type, e.Descriptor.Priority, e.State)
	}
	return b.String()
}

// AnalyzeResourceUsage renders aggregate update-loop performance counters.
func (r *Registry) AnalyzeResourceUsage() string {
	return fmt.Sprintf("Resource Usage: calls=%d avgUpdateMs=%.3f maxUpdateMs=%.3f",
		r.updateCallCount, r.averageUpdateMs, r.maxUpdateMs)
}
