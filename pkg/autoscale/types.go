// Package autoscale implements the control loop that turns idle-machine
// counts and placement failures into scale actions: per-rule cooldowns
// and hysteresis bands, shortfall-driven urgent scale-up, and balanced
// victim selection for scale-down.
package autoscale

import (
	"time"

	"github.com/fleetplacer/core/pkg/lease"
	"github.com/fleetplacer/core/pkg/placement"
)

// ScaleType records which direction a ScalingActivity last moved, or
// ScaleNone if it has never fired.
type ScaleType int

const (
	ScaleNone ScaleType = iota
	ScaleUpType
	ScaleDownType
)

func (t ScaleType) String() string {
	switch t {
	case ScaleUpType:
		return "up"
	case ScaleDownType:
		return "down"
	default:
		return "none"
	}
}

// AutoScaleRule is the per-group configuration referenced by a tick.
// IdleMachineTooSmall lets the caller exclude undersized idle hosts from
// a group's idle count (e.g. a host too small to ever take the group's
// workload should not count toward maxIdleHostsToKeep).
type AutoScaleRule struct {
	RuleName            string
	MinIdleHostsToKeep  int
	MaxIdleHostsToKeep  int
	CoolDown            time.Duration
	IdleMachineTooSmall func(l lease.Lease) bool
}

func (r AutoScaleRule) idleMachineTooSmall(l lease.Lease) bool {
	if r.IdleMachineTooSmall == nil {
		return false
	}
	return r.IdleMachineTooSmall(l)
}

// ScalingActivity is the persistent-across-ticks bookkeeping for one
// rule: the last time each direction fired, and a summary of the most
// recent action.
type ScalingActivity struct {
	ScaleUpAt      time.Time
	ScaleDownAt    time.Time
	LastShortfall  int
	LastScaledCount int
	LastType       ScaleType
}

// newScalingActivity seeds a rule's activity with a synthetic past
// timestamp so its first allowed action fires min(120s, coolDown) from
// now, rather than immediately at process start or after a full cooldown.
func newScalingActivity(now time.Time, coolDown time.Duration) *ScalingActivity {
	delay := 120 * time.Second
	if coolDown < delay {
		delay = coolDown
	}
	seed := now.Add(-coolDown + delay)
	return &ScalingActivity{ScaleUpAt: seed, ScaleDownAt: seed}
}

// HostAttributeGroup is the transient, per-tick view of one rule: its
// idle candidate leases and the shortfall estimate written in by the
// ShortfallEvaluator.
type HostAttributeGroup struct {
	Name       string
	Rule       AutoScaleRule
	IdleLeases []lease.Lease
	Shortfall  int
}

// AutoscalerInput is one tick's worth of scheduler-observed state: the
// leases known to be idle (no task assigned) and the tasks that failed
// to place, each with the per-machine reasons it failed.
type AutoscalerInput struct {
	IdleLeases []lease.Lease
	Failures   map[string][]placement.AssignmentFailure
}

// AutoScaleAction is the broadcast output of a tick: exactly one of
// ScaleUp or ScaleDown is populated.
type AutoScaleAction struct {
	RuleName string

	IsScaleUp bool
	Count     int // ScaleUp only, >= 1

	HostIdentifiers []string // ScaleDown only, non-empty

	// TickID correlates every action emitted within one call to
	// Autoscaler.Tick, for log correlation across a burst of
	// scale actions.
	TickID string
}

// ShortfallEvaluator estimates, for each named group, how many
// additional machines would be needed to place the tasks in failures.
// Absent keys in the returned map are treated as zero. The core treats
// this as an opaque oracle (spec §4.4) -- only the shape is normative.
type ShortfallEvaluator func(groupNames []string, failures map[string][]placement.AssignmentFailure) map[string]int
