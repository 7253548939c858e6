package placement

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-set/v3"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fleetplacer/core/internal/dedupe"
	"github.com/fleetplacer/core/internal/ratelimit"
	"github.com/fleetplacer/core/pkg/lease"
	"github.com/fleetplacer/core/pkg/ports"
)

// ExclusiveHostConstraintName is the synthetic hard-constraint name
// surfaced when a host is held exclusively by a prior assignment. It
// replaces the source's "detect by constraint class name" trick (flagged
// in SPEC_FULL.md's design notes) with a plain boolean on TaskRequest plus
// this fixed name for the resulting ConstraintFailure.
const ExclusiveHostConstraintName = "exclusive-host"

// softConstraintWeight is the W in finalFit = (softFit*W + fit*(100-W))/100.
const softConstraintWeight = 75.0

// RejectCallback is invoked whenever a lease is rejected: offered while
// the machine is disabled, swept away by a bulk/forced expiry,
// time-expired by ExpireLimitedLeases, or dropped by SetDisabledUntil.
type RejectCallback func(l lease.Lease)

// MachineState owns the mutable resource state of a single worker
// machine: consolidated leases, used/total resource counters, a port
// pool, pending expiry/unassign queues, and the in-progress iteration's
// assignment results. Every exported method is a single logical critical
// section; callers may invoke them concurrently across different
// MachineStates, but must serialize access to one MachineState (the
// "single writer per machine" rule in SPEC_FULL.md §7).
type MachineState struct {
	mu sync.Mutex

	hostname string
	currVMID string

	leaseIndex *lease.Index
	vmIndex    *lease.Index
	tracker    TaskTracker

	leasesMap  map[string]lease.Lease
	leaseOrder []string // insertion order, for deterministic port concatenation

	portPool *ports.Pool

	totalCPU, totalMemory, totalNetwork, totalDisk float64
	usedCPU, usedMemory, usedNetwork, usedDisk     float64

	attributes lease.Attributes

	pendingExpire  *set.Set[string]
	expireAllLatch atomic.Bool
	unassignQueue  []string

	prevAssigned map[string]PreviouslyAssignedTask

	iterationResults map[string]*TaskAssignmentResult

	disabledUntil   time.Time
	exclusiveTaskID string

	leaseOfferExpiry time.Duration
	includeDisk      bool
	rejectCallback   RejectCallback
	clock            func() time.Time

	logger  *zap.Logger
	changed *dedupe.ChangeMonitor
}

// Option configures a MachineState at construction time.
type Option func(*MachineState)

// WithLogger attaches a structured logger; defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(m *MachineState) { m.logger = l }
}

// WithRejectCallback sets the callback invoked for every rejected lease.
func WithRejectCallback(cb RejectCallback) Option {
	return func(m *MachineState) { m.rejectCallback = cb }
}

// WithLeaseOfferExpiry sets the age past which ExpireLimitedLeases
// considers a lease eligible for rejection. Defaults to 5 minutes.
func WithLeaseOfferExpiry(d time.Duration) Option {
	return func(m *MachineState) { m.leaseOfferExpiry = d }
}

// WithIncludeDiskInStatus controls whether ResourceStatus reports disk.
// See the Open Question recorded in DESIGN.md.
func WithIncludeDiskInStatus(include bool) Option {
	return func(m *MachineState) { m.includeDisk = include }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *MachineState) { m.clock = now }
}

// NewMachineState constructs an empty MachineState for hostname.
// leaseIndex and vmIndex are the process-wide shared indices described in
// SPEC_FULL.md §4/§7; tracker is the external cluster-wide task tracker
// (may be nil, in which case Assign/PrepareForScheduling skip it).
func NewMachineState(hostname string, leaseIndex, vmIndex *lease.Index, tracker TaskTracker, opts ...Option) *MachineState {
	m := &MachineState{
		hostname:         hostname,
		leaseIndex:       leaseIndex,
		vmIndex:          vmIndex,
		tracker:          tracker,
		leasesMap:        make(map[string]lease.Lease),
		portPool:         ports.New(),
		pendingExpire:    set.New[string](0),
		prevAssigned:     make(map[string]PreviouslyAssignedTask),
		iterationResults: make(map[string]*TaskAssignmentResult),
		leaseOfferExpiry: 5 * time.Minute,
		logger:           zap.NewNop(),
		changed:          dedupe.NewChangeMonitor(time.Hour),
		clock:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Hostname returns the machine's hostname.
func (m *MachineState) Hostname() string { return m.hostname }

func (m *MachineState) now() time.Time { return m.clock() }

// AddLease ingests a resource offer. It returns (accepted, err): err is
// non-nil only for ErrDuplicateLease (a programmer error, fatal to this
// call only); accepted is false when the machine is currently disabled
// (the offer was rejected, not an error).
func (m *MachineState) AddLease(l lease.Lease) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.VMID != "" && l.VMID != m.currVMID {
		m.currVMID = l.VMID
		m.vmIndex.Set(l.VMID, m.hostname)
	}

	if m.now().Before(m.disabledUntil) {
		m.reject(l)
		return false, nil
	}

	if _, exists := m.leasesMap[l.LeaseID]; exists {
		return false, fmt.Errorf("%w: %s", ErrDuplicateLease, l.LeaseID)
	}

	m.leasesMap[l.LeaseID] = l
	m.leaseOrder = append(m.leaseOrder, l.LeaseID)
	m.leaseIndex.Set(l.LeaseID, m.hostname)
	m.attributes = l.Attributes.Clone()
	m.recomputeAggregates()
	return true, nil
}

// ExpireLease defers removal of leaseId to the next RemoveExpiredLeases
// call.
func (m *MachineState) ExpireLease(leaseID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingExpire.Insert(leaseID)
}

// ExpireAllLeases latches a bulk expiry for the next RemoveExpiredLeases
// call.
func (m *MachineState) ExpireAllLeases() {
	m.expireAllLatch.Store(true)
}

// MarkTaskForUnassign queues taskId for removal on the next
// PrepareForScheduling call.
func (m *MachineState) MarkTaskForUnassign(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unassignQueue = append(m.unassignQueue, taskID)
}

// RemoveExpiredLeases drains the pending expiry queue (and the bulk-expiry
// latch) and removes the corresponding leases. Bulk expiry fires the
// reject callback for every removed lease; individual-id expiry does not.
func (m *MachineState) RemoveExpiredLeases(force bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.pendingExpire
	m.pendingExpire = set.New[string](0)
	expireAll := m.expireAllLatch.Swap(false) || force

	if expireAll {
		for _, id := range append([]string{}, m.leaseOrder...) {
			m.removeLeaseLocked(id, true)
		}
		return
	}
	for _, id := range ids.Slice() {
		if _, ok := m.leasesMap[id]; ok {
			m.removeLeaseLocked(id, false)
		}
	}
}

// ExpireLimitedLeases removes every lease older than the configured
// offer-expiry window, subject to rejectLimiter's cluster-wide cap, and
// returns the number of leases actually rejected. A lease whose rejection
// the limiter denies simply remains and is retried on a later tick --
// RejectLimiterDenied is expected behavior, not an error.
func (m *MachineState) ExpireLimitedLeases(rejectLimiter *ratelimit.RejectLimiter) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.leaseOfferExpiry)
	rejected := 0
	for _, id := range append([]string{}, m.leaseOrder...) {
		l, ok := m.leasesMap[id]
		if !ok || !l.OfferedAt.Before(cutoff) {
			continue
		}
		if !rejectLimiter.TryReject() {
			continue
		}
		m.removeLeaseLocked(id, true)
		rejected++
	}
	return rejected
}

// removeLeaseLocked removes a lease from the machine's bookkeeping,
// optionally firing the reject callback. Caller must hold m.mu.
func (m *MachineState) removeLeaseLocked(leaseID string, fireReject bool) {
	l, ok := m.leasesMap[leaseID]
	if !ok {
		return
	}
	delete(m.leasesMap, leaseID)
	m.leaseOrder = removeString(m.leaseOrder, leaseID)
	m.leaseIndex.Remove(leaseID)
	m.recomputeAggregates()
	if fireReject {
		m.reject(l)
	}
}

func (m *MachineState) reject(l lease.Lease) {
	if m.changed.HasChanged("disabled:"+m.hostname, m.disabledUntil) {
		m.logger.Info("rejecting lease", zap.String("hostname", m.hostname), zap.String("lease", l.LeaseID))
	}
	if m.rejectCallback != nil {
		m.rejectCallback(l)
	}
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// recomputeAggregates rebuilds totals and the port pool's ranges from the
// current lease map, in insertion order, so port concatenation order stays
// deterministic across additions and removals. It uses portPool.Rebuild
// rather than Clear+Add: Clear would also reset the usedPorts cursor, and
// a lease added or expired mid-iteration -- after some ports have already
// been consumed via ConsumeNext -- must not rewind that cursor, or the next
// ConsumeNext would hand out an already-allocated port. Caller must hold
// m.mu.
func (m *MachineState) recomputeAggregates() {
	m.totalCPU, m.totalMemory, m.totalNetwork, m.totalDisk = 0, 0, 0, 0
	var ranges []ports.Range
	for _, id := range m.leaseOrder {
		l := m.leasesMap[id]
		m.totalCPU += l.CPUCores
		m.totalMemory += l.MemoryMB
		m.totalNetwork += l.NetworkMbps
		m.totalDisk += l.DiskMB
		ranges = append(ranges, l.PortRanges...)
	}
	m.portPool.Rebuild(ranges...)
}

// ResetResources zeroes totals and used counters, clears the port pool's
// usedPorts cursor, and re-folds every surviving lease. This is a fresh-
// iteration reset, so unlike recomputeAggregates it is safe -- and
// required -- to rewind usedPorts here. Attributes are left untouched:
// they persist until a fresh offer overwrites them.
func (m *MachineState) ResetResources() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usedCPU, m.usedMemory, m.usedNetwork, m.usedDisk = 0, 0, 0, 0
	m.portPool.Clear()
	m.recomputeAggregates()
}

// UpdateTotalLeaseView publishes an immutable snapshot of the machine's
// current totals, for readers outside the single-writer scheduling loop.
func (m *MachineState) UpdateTotalLeaseView() lease.TotalLeaseView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalLeaseViewLocked()
}

func (m *MachineState) totalLeaseViewLocked() lease.TotalLeaseView {
	return lease.TotalLeaseView{
		Hostname:    m.hostname,
		CPUCores:    m.totalCPU,
		MemoryMB:    m.totalMemory,
		NetworkMbps: m.totalNetwork,
		DiskMB:      m.totalDisk,
		PortRanges:  m.portPool.Ranges(),
		Attributes:  m.attributes.Clone(),
	}
}

// SetDisabledUntil disables the machine until t, then rejects and removes
// every lease currently held. Safe to call between scheduling iterations
// (SPEC_FULL.md §7); callers must not call it mid-iteration against a
// machine they are actively assigning to.
func (m *MachineState) SetDisabledUntil(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabledUntil = t
	for _, id := range append([]string{}, m.leaseOrder...) {
		m.removeLeaseLocked(id, true)
	}
}

// Enable clears any disabled-until deadline immediately.
func (m *MachineState) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabledUntil = time.Time{}
}

// IsActive reports whether the machine is not currently disabled.
func (m *MachineState) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.now().Before(m.disabledUntil)
}

// IsAssignableNow reports whether the machine can accept a new
// (non-exclusive-sticky) assignment right now: active, and either holding
// no exclusive task or not yet exclusively claimed.
func (m *MachineState) IsAssignableNow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.now().Before(m.disabledUntil) && m.exclusiveTaskID == ""
}

// buildSnapshotLocked captures the read-only view handed to constraint
// evaluators and fitness functions. Caller must hold m.mu. A snapshot,
// not a live reference, so evaluators can't reenter MachineState's mutex
// and so the view is consistent for the whole evaluation.
func (m *MachineState) buildSnapshotLocked() *vmStateSnapshot {
	current := lo.FilterMap(lo.Values(m.iterationResults), func(r *TaskAssignmentResult, _ int) (PreviouslyAssignedTask, bool) {
		if !r.Successful {
			return PreviouslyAssignedTask{}, false
		}
		return PreviouslyAssignedTask{
			TaskID:      r.Request.TaskID,
			CPUCores:    r.Request.CPUCores,
			MemoryMB:    r.Request.MemoryMB,
			NetworkMbps: r.Request.NetworkMbps,
			DiskMB:      r.Request.DiskMB,
			Ports:       r.Request.Ports,
		}, true
	})
	running := lo.Values(m.prevAssigned)
	return &vmStateSnapshot{
		hostname: m.hostname,
		current:  current,
		running:  running,
		total:    m.totalLeaseViewLocked(),
		used: ResourceVector{
			CPUCores:    m.usedCPU,
			MemoryMB:    m.usedMemory,
			NetworkMbps: m.usedNetwork,
			DiskMB:      m.usedDisk,
			Ports:       m.portPool.UsedPorts(),
		},
	}
}

// TryAssign evaluates whether req can be placed on this machine right
// now, without mutating any state. Evaluation order: lease presence,
// exclusivity, hard constraints, resource feasibility, fitness, soft
// constraints.
func (m *MachineState) TryAssign(req *TaskRequest, fitnessFn FitnessFn) *TaskAssignmentResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.leasesMap) == 0 {
		return nil
	}

	if m.exclusiveTaskID != "" {
		return &TaskAssignmentResult{
			Request:  req,
			Hostname: m.hostname,
			ConstraintFailure: &ConstraintFailure{
				Name:   ExclusiveHostConstraintName,
				Reason: fmt.Sprintf("host exclusively held by task %s", m.exclusiveTaskID),
			},
		}
	}

	snapshot := m.buildSnapshotLocked()

	for _, ce := range req.HardConstraints {
		if ok, reason := ce.Evaluate(req, snapshot, m.tracker); !ok {
			return &TaskAssignmentResult{
				Request:           req,
				Hostname:          m.hostname,
				ConstraintFailure: &ConstraintFailure{Name: ce.Name(), Reason: reason},
			}
		}
	}

	// Resource feasibility is checked across all five dimensions at once
	// and every failing one is reported, not just the first -- multierr
	// accumulates them the same way AltScheduler accumulates per-candidate
	// rejection reasons in the teacher.
	var combined error
	if remaining := m.totalCPU - m.usedCPU; req.CPUCores > remaining {
		combined = multierr.Append(combined, AssignmentFailure{DimCPU, req.CPUCores, m.usedCPU, m.totalCPU})
	}
	if remaining := m.totalMemory - m.usedMemory; req.MemoryMB > remaining {
		combined = multierr.Append(combined, AssignmentFailure{DimMemory, req.MemoryMB, m.usedMemory, m.totalMemory})
	}
	if remaining := m.totalNetwork - m.usedNetwork; req.NetworkMbps > remaining {
		combined = multierr.Append(combined, AssignmentFailure{DimNetwork, req.NetworkMbps, m.usedNetwork, m.totalNetwork})
	}
	if remaining := m.totalDisk - m.usedDisk; req.DiskMB > remaining {
		combined = multierr.Append(combined, AssignmentFailure{DimDisk, req.DiskMB, m.usedDisk, m.totalDisk})
	}
	if req.Ports > 0 && !m.portPool.HasPorts(req.Ports) {
		combined = multierr.Append(combined, AssignmentFailure{
			Dimension: DimPorts,
			Requested: float64(req.Ports),
			Used:      float64(m.portPool.UsedPorts()),
			Total:     float64(m.portPool.TotalPorts()),
		})
	}
	if combined != nil {
		errs := multierr.Errors(combined)
		failures := make([]AssignmentFailure, len(errs))
		for i, e := range errs {
			failures[i] = e.(AssignmentFailure)
		}
		return &TaskAssignmentResult{Request: req, Hostname: m.hostname, ResourceFailures: failures}
	}

	fit := fitnessFn(req, snapshot, m.tracker)
	if fit == 0 {
		return &TaskAssignmentResult{
			Request:          req,
			Hostname:         m.hostname,
			Fitness:          0,
			ResourceFailures: []AssignmentFailure{{Dimension: DimFitness}},
		}
	}

	finalFit := fit
	if len(req.SoftConstraints) > 0 {
		var sum float64
		for _, sc := range req.SoftConstraints {
			sum += sc.Score(req, snapshot, m.tracker)
		}
		softFit := sum / float64(len(req.SoftConstraints))
		finalFit = (softFit*softConstraintWeight + fit*(100-softConstraintWeight)) / 100
	}

	return &TaskAssignmentResult{Request: req, Hostname: m.hostname, Successful: true, Fitness: finalFit}
}

// Assign commits a successful TryAssign result: reserves resources,
// allocates ports, and tells the task tracker about the new assignment.
// It returns an error when result is nil or not successful, and for
// port-pool exhaustion, which is an invariant breach (TryAssign should
// have already confirmed HasPorts) and fatal to this call.
func (m *MachineState) Assign(result *TaskAssignmentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if result == nil || !result.Successful {
		return fmt.Errorf("placement: Assign requires a successful TaskAssignmentResult")
	}
	req := result.Request

	assignedPorts := make([]int, 0, req.Ports)
	for i := 0; i < req.Ports; i++ {
		p, err := m.portPool.ConsumeNext()
		if err != nil {
			return fmt.Errorf("placement: %w", err)
		}
		assignedPorts = append(assignedPorts, p)
	}

	m.usedCPU += req.CPUCores
	m.usedMemory += req.MemoryMB
	m.usedNetwork += req.NetworkMbps
	m.usedDisk += req.DiskMB
	result.AssignedPorts = assignedPorts

	if m.tracker != nil {
		if err := m.tracker.TrackAssignment(req.TaskID, m.hostname); err != nil {
			m.logger.Warn("task tracker rejected assignment as duplicate",
				zap.String("task", req.TaskID), zap.String("hostname", m.hostname), zap.Error(err))
		}
	}

	if req.IsExclusive {
		m.exclusiveTaskID = req.TaskID
	}

	m.iterationResults[req.RequestID] = result
	return nil
}

// PrepareForScheduling drains the unassign queue -- untracking each task,
// dropping it from the previously-assigned map, and clearing the
// exclusive marker if it matches -- then clears the in-progress
// iteration map.
func (m *MachineState) PrepareForScheduling() {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := m.unassignQueue
	m.unassignQueue = nil
	for _, taskID := range queue {
		if m.tracker != nil {
			m.tracker.Untrack(taskID)
		}
		delete(m.prevAssigned, taskID)
		if m.exclusiveTaskID == taskID {
			m.exclusiveTaskID = ""
		}
	}
	m.iterationResults = make(map[string]*TaskAssignmentResult)
}

// ResetAndHarvestSuccessful selects the successful entries of the
// in-progress iteration map. It returns nil if none were recorded.
// Otherwise it returns a VMAssignmentResult referencing this host and a
// snapshot of all leases held, folds the successful assignments into the
// previously-assigned map for future ticks, unlinks every held lease id
// from the shared index, and clears the lease and iteration maps.
func (m *MachineState) ResetAndHarvestSuccessful() *VMAssignmentResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var successful []*TaskAssignmentResult
	for _, r := range m.iterationResults {
		if r.Successful {
			successful = append(successful, r)
		}
	}
	if len(successful) == 0 {
		return nil
	}

	leasesSnap := make([]lease.Lease, 0, len(m.leasesMap))
	for _, id := range m.leaseOrder {
		leasesSnap = append(leasesSnap, m.leasesMap[id])
		m.leaseIndex.Remove(id)
	}

	for _, r := range successful {
		m.prevAssigned[r.Request.TaskID] = PreviouslyAssignedTask{
			TaskID:      r.Request.TaskID,
			CPUCores:    r.Request.CPUCores,
			MemoryMB:    r.Request.MemoryMB,
			NetworkMbps: r.Request.NetworkMbps,
			DiskMB:      r.Request.DiskMB,
			Ports:       r.Request.Ports,
		}
	}

	m.leasesMap = make(map[string]lease.Lease)
	m.leaseOrder = nil
	m.iterationResults = make(map[string]*TaskAssignmentResult)
	// Every lease is gone, so unlike the mid-iteration churn
	// recomputeAggregates otherwise guards against, it's correct -- and
	// necessary -- to rewind usedPorts here: nothing is left to hold the
	// ports consumed this iteration, and the next iteration's offers
	// start from an empty pool.
	m.portPool.Clear()
	m.recomputeAggregates()

	return &VMAssignmentResult{Hostname: m.hostname, Leases: leasesSnap, Successful: successful}
}

// MaxResources sums previously-assigned task demands plus the machine's
// current total lease resources, as a sizing hint for the autoscaler's
// shortfall estimation. Port accounting here is deliberately exclusive
// (end - beg), matching the ambiguity recorded in SPEC_FULL.md/DESIGN.md:
// the behavior this was distilled from does the same, and "correcting" it
// would silently change scale-up sizing.
func (m *MachineState) MaxResources() ResourceVector {
	m.mu.Lock()
	defer m.mu.Unlock()

	rv := ResourceVector{
		CPUCores:    m.totalCPU,
		MemoryMB:    m.totalMemory,
		NetworkMbps: m.totalNetwork,
		DiskMB:      m.totalDisk,
	}
	for _, t := range m.prevAssigned {
		rv.CPUCores += t.CPUCores
		rv.MemoryMB += t.MemoryMB
		rv.NetworkMbps += t.NetworkMbps
		rv.DiskMB += t.DiskMB
		rv.Ports += t.Ports
	}
	for _, r := range m.portPool.Ranges() {
		rv.Ports += r.End - r.Begin
	}
	return rv
}

// ResourceStatus reports used/total resources. Disk is included only if
// the machine was constructed with WithIncludeDiskInStatus(true).
func (m *MachineState) ResourceStatus() ResourceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs := ResourceStatus{
		TotalCPU:     m.totalCPU,
		UsedCPU:      m.usedCPU,
		TotalMemory:  m.totalMemory,
		UsedMemory:   m.usedMemory,
		TotalNetwork: m.totalNetwork,
		UsedNetwork:  m.usedNetwork,
		IncludesDisk: m.includeDisk,
	}
	if m.includeDisk {
		rs.TotalDisk = m.totalDisk
		rs.UsedDisk = m.usedDisk
	}
	return rs
}

// CompareTo orders machines by descending total CPU, with machines
// holding no leases sorted after machines holding at least one.
func (m *MachineState) CompareTo(other *MachineState) int {
	first, second := m, other
	if first.hostname > second.hostname {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	if first != second {
		second.mu.Lock()
		defer second.mu.Unlock()
	}

	mEmpty := len(m.leasesMap) == 0
	oEmpty := len(other.leasesMap) == 0
	if mEmpty != oEmpty {
		if mEmpty {
			return 1
		}
		return -1
	}
	switch {
	case m.totalCPU > other.totalCPU:
		return -1
	case m.totalCPU < other.totalCPU:
		return 1
	default:
		return 0
	}
}

// vmStateSnapshot is the immutable, point-in-time VMCurrentState handed
// to constraint evaluators and fitness functions -- the same "anonymous
// lease-view object becomes a snapshot record" treatment SPEC_FULL.md's
// design notes call for applied to TotalLeaseView.
type vmStateSnapshot struct {
	hostname string
	current  []PreviouslyAssignedTask
	running  []PreviouslyAssignedTask
	total    lease.TotalLeaseView
	used     ResourceVector
}

func (s *vmStateSnapshot) Hostname() string { return s.hostname }
func (s *vmStateSnapshot) CurrentlyAssignedTasks() []PreviouslyAssignedTask {
	return s.current
}
func (s *vmStateSnapshot) RunningTasks() []PreviouslyAssignedTask { return s.running }
func (s *vmStateSnapshot) TotalResources() lease.TotalLeaseView   { return s.total }
func (s *vmStateSnapshot) UsedResources() ResourceVector          { return s.used }
