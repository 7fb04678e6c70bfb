// Package scheduler decides, once per poll tick, whether "now" is the
// moment to fire the trigger transaction, and enforces at-most-once-per-
// epoch firing.
//
// Reactive policies fire just after an epoch boundary, inside a window of
// configured width. Preemptive policies fire just before the boundary,
// within a configured lead, targeting the upcoming epoch. Each flavour
// exists in an on-chain and a local variant depending on which clock it
// trusts.
package scheduler

import (
	"fmt"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-epoch-trigger/chaintime"
)

// Policy selects the firing rule. Exactly one policy is active per run.
type Policy int

const (
	// ReactiveOnChain fires when the chain sample sits within the window
	// after an epoch start.
	ReactiveOnChain Policy = iota

	// ReactiveLocal is ReactiveOnChain evaluated on the locally
	// extrapolated clock.
	ReactiveLocal

	// PreemptiveOnChain fires when the chain sample sits within the lead
	// before the next epoch start, targeting that next epoch.
	PreemptiveOnChain

	// PreemptiveLocal is PreemptiveOnChain evaluated on the local clock.
	PreemptiveLocal
)

func (p Policy) String() string {
	switch p {
	case ReactiveOnChain:
		return "reactive-onchain"
	case ReactiveLocal:
		return "reactive-local"
	case PreemptiveOnChain:
		return "preemptive-onchain"
	case PreemptiveLocal:
		return "preemptive-local"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// PolicyFromString parses the configuration spelling of a Policy.
func PolicyFromString(s string) (Policy, error) {
	switch s {
	case "reactive-onchain":
		return ReactiveOnChain, nil
	case "reactive-local":
		return ReactiveLocal, nil
	case "preemptive-onchain":
		return PreemptiveOnChain, nil
	case "preemptive-local":
		return PreemptiveLocal, nil
	}
	return 0, fmt.Errorf("unknown trigger policy %q", s)
}

// Local reports whether the policy reads the local clock rather than the
// chain sample.
func (p Policy) Local() bool {
	return p == ReactiveLocal || p == PreemptiveLocal
}

// Config parameterizes the active policy. Window applies to reactive
// policies, Lead to preemptive ones; the other field is ignored.
type Config struct {
	Policy Policy
	Window time.Duration
	Lead   time.Duration
}

// Validate rejects configurations that can never fire.
func (c Config) Validate() error {
	switch c.Policy {
	case ReactiveOnChain, ReactiveLocal:
		if c.Window <= 0 {
			return fmt.Errorf("policy %v requires a positive window, got %v", c.Policy, c.Window)
		}
	case PreemptiveOnChain, PreemptiveLocal:
		if c.Lead <= 0 {
			return fmt.Errorf("policy %v requires a positive lead, got %v", c.Policy, c.Lead)
		}
	default:
		return fmt.Errorf("unknown trigger policy %v", c.Policy)
	}
	return nil
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Fire   bool
	Target idx.Epoch
}

// Scheduler holds the fired-epoch mark across ticks. The mark only ever
// advances; a transiently failed submission leaves it untouched so the
// same window can be retried on a later tick.
type Scheduler struct {
	cfg      Config
	fired    idx.Epoch
	hasFired bool
}

func New(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{cfg: cfg}, nil
}

// Config returns the active policy configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// FiredMark returns the highest epoch fired for this run, and whether
// anything has fired yet.
func (s *Scheduler) FiredMark() (idx.Epoch, bool) {
	return s.fired, s.hasFired
}

// Evaluate applies the decision table for the active policy against the
// given clock views. It never mutates the fired mark; callers mark a fire
// only after the submission was actually attempted.
func (s *Scheduler) Evaluate(onChain chaintime.EpochSample, local chaintime.LocalView) Decision {
	var (
		epoch     idx.Epoch
		intoEpoch time.Duration
		untilNext time.Duration
	)
	if s.cfg.Policy.Local() {
		epoch, intoEpoch, untilNext = local.Epoch, local.IntoEpoch, local.UntilNext
	} else {
		epoch, intoEpoch, untilNext = onChain.Epoch, onChain.IntoEpoch, onChain.UntilNext()
	}

	var d Decision
	switch s.cfg.Policy {
	case ReactiveOnChain, ReactiveLocal:
		if intoEpoch <= s.cfg.Window {
			d = Decision{Fire: true, Target: epoch}
		}
	case PreemptiveOnChain, PreemptiveLocal:
		if untilNext <= s.cfg.Lead {
			d = Decision{Fire: true, Target: epoch + 1}
		}
	}

	// At most one dispatch per target epoch: anything at or below the mark
	// has already been fired this run.
	if d.Fire && s.hasFired && d.Target <= s.fired {
		return Decision{}
	}
	return d
}

// MarkFired records that the trigger was dispatched for target. The mark
// is monotonically non-decreasing; a stale target is ignored.
func (s *Scheduler) MarkFired(target idx.Epoch) {
	if s.hasFired && target <= s.fired {
		return
	}
	s.fired = target
	s.hasFired = true
}
