package autoscale

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleetplacer/core/pkg/placement"
)

// errStreamClosed is the sentinel Run's retry loop treats as a
// recoverable upstream error: the input channel closed without the
// context being cancelled, so the embedder is expected to hand back a
// fresh one via subscribe.
var errStreamClosed = errors.New("autoscale: input stream closed")

// MachineLookup resolves a hostname to the MachineState the scheduler is
// using for it, so the autoscaler can disable victims it selects for
// scale-down. A missing hostname is not an error: the host may already
// have been evicted by the scheduler.
type MachineLookup func(hostname string) (*placement.MachineState, bool)

// Autoscaler is the per-process control loop described in spec.md §4.3:
// it owns one ScalingActivity per configured AutoScaleRule and, on each
// tick, partitions idle leases into groups, consults the
// ShortfallEvaluator, and emits at most one AutoScaleAction per group.
type Autoscaler struct {
	mu sync.Mutex

	rules          []AutoScaleRule
	activities     map[string]*ScalingActivity
	lastGroupSetAt time.Time

	partitionAttr   string
	mapHostnameAttr string
	balanceAttr     string

	evaluator ShortfallEvaluator
	machines  MachineLookup

	broadcaster *ActionBroadcaster
	clock       func() time.Time
	logger      *zap.Logger
}

// Option configures an Autoscaler at construction time.
type Option func(*Autoscaler)

// WithShortfallEvaluator installs the oracle consulted each tick. If
// unset, shortfall evaluation is treated as disabled and every group's
// shortfall stays 0.
func WithShortfallEvaluator(e ShortfallEvaluator) Option {
	return func(a *Autoscaler) { a.evaluator = e }
}

// WithMapHostnameAttributeName sets the optional attribute whose value is
// used as a scale-down victim's terminate identifier.
func WithMapHostnameAttributeName(name string) Option {
	return func(a *Autoscaler) { a.mapHostnameAttr = name }
}

// WithScaleDownBalanceAttributeName sets the optional attribute
// balanced victim selection buckets by. If unset, every host buckets
// under "default".
func WithScaleDownBalanceAttributeName(name string) Option {
	return func(a *Autoscaler) { a.balanceAttr = name }
}

// WithLogger attaches a structured logger; defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(a *Autoscaler) { a.logger = l }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(a *Autoscaler) { a.clock = now }
}

// NewAutoscaler constructs an Autoscaler. partitionAttributeName is
// required: it names the lease attribute used to assign an idle lease to
// a rule's group.
func NewAutoscaler(rules []AutoScaleRule, partitionAttributeName string, machines MachineLookup, opts ...Option) *Autoscaler {
	a := &Autoscaler{
		partitionAttr: partitionAttributeName,
		machines:      machines,
		activities:    make(map[string]*ScalingActivity),
		broadcaster:   NewActionBroadcaster(),
		clock:         time.Now,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	// Initial construction is not a "group set changed" event: leave
	// lastGroupSetAt at its zero value so each rule's synthetic initial
	// cooldown governs the first allowed action, not this timestamp.
	// SetRules, called later to reconfigure, is what bumps the fence.
	//
	// The synthetic cooldown itself must be seeded here, at boot, using
	// a.clock() -- not lazily on first Tick -- per spec §4.3 step 1
	// ("rather than immediately at boot"): seeding it relative to the
	// first observed tick would let a delayed first tick push the whole
	// window forward by that same delay.
	a.rules = rules
	for _, rule := range rules {
		a.activities[rule.RuleName] = newScalingActivity(a.clock(), rule.CoolDown)
	}
	return a
}

// SetRules replaces the active rule set and bumps the global
// "group set changed" fence, resetting every rule's cooldown gate --
// spec.md §4.3's "activeVmGroups.lastSetAt" behavior.
func (a *Autoscaler) SetRules(rules []AutoScaleRule) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rules = rules
	a.lastGroupSetAt = a.clock()
}

// Actions returns a channel, buffered to 32 actions, that receives the
// AutoScaleAction values emitted from this point on. An action emitted
// while the buffer is full is dropped for this channel.
func (a *Autoscaler) Actions() <-chan AutoScaleAction {
	return a.broadcaster.Subscribe(32)
}

// Tick runs one full pass of the pipeline in spec.md §4.3 steps 1-7
// against input, emitting zero or more AutoScaleAction values onto the
// broadcaster.
func (a *Autoscaler) Tick(input AutoscalerInput) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock()
	tickID := uuid.NewString()

	groupNames := make([]string, 0, len(a.rules))
	groups := make(map[string]*HostAttributeGroup, len(a.rules))
	for _, rule := range a.rules {
		if _, ok := a.activities[rule.RuleName]; !ok {
			a.activities[rule.RuleName] = newScalingActivity(now, rule.CoolDown)
		}
		groups[rule.RuleName] = &HostAttributeGroup{Name: rule.RuleName, Rule: rule}
		groupNames = append(groupNames, rule.RuleName)
	}

	if a.evaluator != nil {
		shortfalls := a.evaluator(groupNames, input.Failures)
		for name, g := range groups {
			g.Shortfall = shortfalls[name]
		}
	}

	for _, l := range input.IdleLeases {
		v, ok := l.Attributes[a.partitionAttr]
		if !ok {
			continue
		}
		g, ok := groups[v.AsString()]
		if !ok || g.Rule.idleMachineTooSmall(l) {
			continue
		}
		g.IdleLeases = append(g.IdleLeases, l)
	}

	for _, name := range groupNames {
		a.processGroup(now, tickID, groups[name])
	}
}

func (a *Autoscaler) processGroup(now time.Time, tickID string, g *HostAttributeGroup) {
	activity := a.activities[g.Name]
	idleCount := len(g.IdleLeases)

	excess := idleCount - g.Rule.MaxIdleHostsToKeep
	if g.Shortfall > 0 {
		excess = 0
	}

	canScaleDown := now.After(maxTime(a.lastGroupSetAt, activity.ScaleDownAt, activity.ScaleUpAt).Add(g.Rule.CoolDown))
	canScaleUp := now.After(maxTime(a.lastGroupSetAt, activity.ScaleUpAt).Add(g.Rule.CoolDown))

	switch {
	case excess > 0 && canScaleDown:
		a.scaleDown(now, tickID, g, activity, excess)
	case g.Shortfall > 0 || (excess <= 0 && canScaleUp):
		a.scaleUp(now, tickID, g, activity, idleCount, excess, canScaleUp)
	}
}

func (a *Autoscaler) scaleDown(now time.Time, tickID string, g *HostAttributeGroup, activity *ScalingActivity, excess int) {
	victims := selectBalancedVictims(g.IdleLeases, excess, a.balanceAttr, a.mapHostnameAttr)
	if len(victims) == 0 {
		return
	}

	ids := make([]string, 0, len(victims))
	for _, v := range victims {
		if ms, ok := a.machines(v.hostname); ok {
			ms.SetDisabledUntil(now.Add(g.Rule.CoolDown))
		}
		ids = append(ids, v.terminateID)
	}

	activity.ScaleDownAt = now
	activity.LastShortfall = g.Shortfall
	activity.LastScaledCount = len(victims)
	activity.LastType = ScaleDownType

	a.logger.Info("scaling down", zap.String("rule", g.Name), zap.Int("count", len(victims)), zap.String("tick", tickID))
	a.broadcaster.publish(AutoScaleAction{RuleName: g.Name, IsScaleUp: false, HostIdentifiers: ids, TickID: tickID})
}

func (a *Autoscaler) scaleUp(now time.Time, tickID string, g *HostAttributeGroup, activity *ScalingActivity, idleCount, excess int, canScaleUp bool) {
	if g.Shortfall <= 0 && idleCount >= g.Rule.MinIdleHostsToKeep {
		return
	}

	headroom := 0
	if excess <= 0 && canScaleUp {
		headroom = g.Rule.MaxIdleHostsToKeep - idleCount
	}
	amount := headroom
	if g.Shortfall > amount {
		amount = g.Shortfall
	}
	if amount < 1 {
		// A sane rule config (minIdleHostsToKeep <= maxIdleHostsToKeep)
		// cannot reach this with shortfall == 0; guard against an
		// inverted config emitting a spec-violating zero-count action.
		return
	}

	activity.ScaleUpAt = now
	activity.LastShortfall = g.Shortfall
	activity.LastScaledCount = amount
	activity.LastType = ScaleUpType

	a.logger.Info("scaling up", zap.String("rule", g.Name), zap.Int("count", amount), zap.String("tick", tickID))
	a.broadcaster.publish(AutoScaleAction{RuleName: g.Name, IsScaleUp: true, Count: amount, TickID: tickID})
}

func maxTime(times ...time.Time) time.Time {
	m := times[0]
	for _, t := range times[1:] {
		if t.After(m) {
			m = t
		}
	}
	return m
}

// Run consumes AutoscalerInput ticks until ctx is cancelled. subscribe
// opens the input stream; Run wraps ingestion in retry.Do so that a
// closed channel (the embedder's signal of an upstream error) triggers a
// log-and-resubscribe instead of returning -- the explicit-loop
// replacement for the source's self-healing reactive pipeline (spec.md §9).
func (a *Autoscaler) Run(ctx context.Context, subscribe func(ctx context.Context) (<-chan AutoscalerInput, error)) error {
	err := retry.Do(
		func() error {
			ch, err := subscribe(ctx)
			if err != nil {
				return err
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case input, ok := <-ch:
					if !ok {
						return errStreamClosed
					}
					a.Tick(input)
				}
			}
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.OnRetry(func(n uint, err error) {
			a.logger.Warn("autoscaler input stream error, resubscribing", zap.Uint("attempt", n), zap.Error(err))
		}),
	)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
