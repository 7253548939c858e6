// Package placement implements the per-machine assignment engine:
// MachineState consolidates resource offers, evaluates hard and soft
// placement constraints, scores fitness, and commits task assignments.
package placement

import (
	"errors"
	"fmt"

	"github.com/fleetplacer/core/pkg/lease"
)

// ErrDuplicateLease is returned by MachineState.AddLease when the leaseId
// is already present in the machine's lease map. It is a programmer error:
// fatal to that one call, but not to the MachineState.
var ErrDuplicateLease = errors.New("placement: duplicate lease id")

// ErrDuplicateTask is the sentinel a TaskTracker should wrap when
// TrackAssignment is called for a task it already believes is assigned
// elsewhere. MachineState.Assign logs this, it does not propagate it.
var ErrDuplicateTask = errors.New("placement: task already tracked")

// Dimension names a resource axis a task can fail to fit against.
type Dimension int

const (
	DimCPU Dimension = iota
	DimMemory
	DimNetwork
	DimDisk
	DimPorts
	DimFitness
)

func (d Dimension) String() string {
	switch d {
	case DimCPU:
		return "cpu"
	case DimMemory:
		return "memory"
	case DimNetwork:
		return "network"
	case DimDisk:
		return "disk"
	case DimPorts:
		return "ports"
	case DimFitness:
		return "fitness"
	default:
		return "unknown"
	}
}

// AssignmentFailure records a single resource dimension that a task
// request could not fit, with enough context (requested/used/total) for a
// caller to explain the rejection without re-deriving it.
type AssignmentFailure struct {
	Dimension Dimension
	Requested float64
	Used      float64
	Total     float64
}

func (f AssignmentFailure) Error() string {
	return fmt.Sprintf("%s: requested %.2f, used %.2f of %.2f", f.Dimension, f.Requested, f.Used, f.Total)
}

// ConstraintFailure records a hard-constraint rejection by name and
// human-readable reason.
type ConstraintFailure struct {
	Name   string
	Reason string
}

func (f ConstraintFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Name, f.Reason)
}

// PreviouslyAssignedTask is the resource footprint of a task already
// committed to a machine in an earlier scheduling iteration (a "running"
// task, as opposed to one assigned within the current iteration).
type PreviouslyAssignedTask struct {
	TaskID      string
	CPUCores    float64
	MemoryMB    float64
	NetworkMbps float64
	DiskMB      float64
	Ports       int
}

// ResourceVector is a plain resource amount tuple, used by MaxResources to
// report the largest resource footprint a machine could ever offer.
type ResourceVector struct {
	CPUCores    float64
	MemoryMB    float64
	NetworkMbps float64
	DiskMB      float64
	Ports       int
}

// ResourceStatus is a used/total snapshot for scheduler-side reporting.
// Disk is omitted unless MachineState was constructed with
// WithIncludeDiskInStatus(true) -- see the Open Question recorded in
// DESIGN.md: the source this engine was distilled from omits disk from
// its resource-status reporter despite tracking it everywhere else, and
// re-implementations are told to preserve or fix that omission behind a
// flag rather than silently pick one.
type ResourceStatus struct {
	TotalCPU     float64
	UsedCPU      float64
	TotalMemory  float64
	UsedMemory   float64
	TotalNetwork float64
	UsedNetwork  float64
	IncludesDisk bool
	TotalDisk    float64
	UsedDisk     float64
}

// TaskRequest is a single task's declared resource needs and placement
// constraints, as handed to MachineState.TryAssign by the (external)
// scheduler loop.
//
// RequestID must be stable and unique per request: two textually-equal
// requests submitted separately must still map to distinct slots in
// MachineState's per-iteration result map, so identity is carried
// explicitly rather than inferred from the request's contents or its
// pointer (a request may legitimately be copied/retried by the caller).
type TaskRequest struct {
	RequestID       string
	TaskID          string
	CPUCores        float64
	MemoryMB        float64
	NetworkMbps     float64
	DiskMB          float64
	Ports           int
	IsExclusive     bool
	HardConstraints []ConstraintEvaluator
	SoftConstraints []SoftConstraint
}

// SoftConstraint is a named weighted preference. Unlike a hard
// ConstraintEvaluator it never causes a rejection -- its Score folds into
// the blended fitness value computed by TryAssign.
type SoftConstraint struct {
	Name  string
	Score FitnessFn
}

// FitnessFn scores how good a machine is for a task, in [0, 1]; 1 is
// perfect, 0 means reject. The same function shape is reused for both the
// global fitness function and each SoftConstraint's Score.
type FitnessFn func(req *TaskRequest, vmState VMCurrentState, tracker TaskTrackerState) float64

// ConstraintEvaluator is a hard placement predicate: if it fails,
// placement is forbidden outright. Evaluated in declaration order; the
// first failure short-circuits the remaining evaluators.
type ConstraintEvaluator interface {
	Name() string
	Evaluate(req *TaskRequest, vmState VMCurrentState, tracker TaskTrackerState) (ok bool, reason string)
}

// VMCurrentState is the per-machine view a constraint evaluator or
// fitness function sees: this tick's in-progress assignments plus the
// tasks already running from prior iterations, and the machine's
// consolidated resources.
type VMCurrentState interface {
	Hostname() string
	CurrentlyAssignedTasks() []PreviouslyAssignedTask
	RunningTasks() []PreviouslyAssignedTask
	TotalResources() lease.TotalLeaseView
	UsedResources() ResourceVector
}

// TaskTrackerState is the cluster-wide, read-only view of task placement
// a constraint evaluator or fitness function may need -- e.g. "is this
// task, or another task from the same job, already running somewhere in
// the cluster?" The tracker itself (indexing running/assigned tasks
// cluster-wide) is an external collaborator; this is its contract, not
// its implementation.
type TaskTrackerState interface {
	AssignedHosts(taskID string) []string
}

// TaskTracker is the mutating surface MachineState.Assign uses to publish
// a newly committed assignment to the cluster-wide tracker.
type TaskTracker interface {
	TaskTrackerState
	// TrackAssignment records that taskID has been assigned to hostname.
	// It should return an error wrapping ErrDuplicateTask if the tracker
	// already believes taskID is assigned elsewhere; MachineState logs
	// such an error, it does not propagate it.
	TrackAssignment(taskID, hostname string) error
	// Untrack removes taskID from the tracker, called when a task is
	// unassigned (MachineState.PrepareForScheduling).
	Untrack(taskID string)
}

// TaskAssignmentResult is the outcome of one MachineState.TryAssign call.
// Per SPEC_FULL.md §9's "data as errors" design, a rejection is not an
// error -- it is this struct with Successful false and exactly one of
// ConstraintFailure or ResourceFailures populated, describing why.
type TaskAssignmentResult struct {
	Request  *TaskRequest
	Hostname string

	Successful bool
	Fitness    float64

	// AssignedPorts is populated by Assign, never by TryAssign.
	AssignedPorts []int

	// ConstraintFailure is set when a hard ConstraintEvaluator rejected
	// the request (including the synthetic exclusive-host constraint).
	ConstraintFailure *ConstraintFailure

	// ResourceFailures lists every resource dimension the request could
	// not fit, or a single DimFitness entry if every dimension fit but
	// the fitness function returned 0.
	ResourceFailures []AssignmentFailure
}

// VMAssignmentResult is the output of MachineState.ResetAndHarvestSuccessful:
// the leases consumed by this iteration's successful assignments, bundled
// with those assignments, for the scheduler to turn into launch commands.
type VMAssignmentResult struct {
	Hostname   string
	Leases     []lease.Lease
	Successful []*TaskAssignmentResult
}
