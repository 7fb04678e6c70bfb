package integration

import (
	"fmt"
	"time"

	"github.com/rony4d/go-epoch-trigger/fees"
	"github.com/rony4d/go-epoch-trigger/scheduler"
)

// Package integration provides run profiles for the trigger bot. Profiles
// bundle the timing and bidding knobs into named presets (conservative,
// aggressive, race) so operators can pick a posture without tuning a dozen
// flags.
//
// Usage:
//   p := integration.ConservativeProfile() // for a first deployment
//   p := integration.AggressiveProfile()   // for contested networks
//   p := integration.RaceProfile()         // for heavily contested networks
//
// Each profile returns a Profile struct that the launcher merges into its
// config before explicit flag overrides are applied.

// Profile captures the tunable parameters that vary across run postures.
// It intentionally excludes fields that identify a deployment (endpoints,
// contract addresses, keys) so profiles stay about behaviour only.
type Profile struct {
	Name         string           // human-readable identifier (e.g. "conservative", "race")
	Policy       scheduler.Policy // when to fire relative to the epoch boundary
	Window       time.Duration    // post-boundary firing window (reactive policies)
	Lead         time.Duration    // pre-boundary firing lead (preemptive policies)
	PollInterval time.Duration    // main loop tick cadence

	FeeMode         fees.Mode // bidding strategy
	FeePercent      int64     // markup for the percentage strategy
	EscalatePercent int64     // per-retry bump after rejection; 0 disables

	PreferRelays bool // whether relay submission should be used when endpoints exist
}

func DefaultProfile() Profile {

	return Profile{
		Name:            "default",
		Policy:          scheduler.ReactiveOnChain, // trust the chain's own reading of its position
		Window:          15 * time.Second,          // wide enough to survive a slow poll or two
		Lead:            5 * time.Second,
		PollInterval:    2 * time.Second,
		FeeMode:         fees.ModeNetwork, // pay what the network asks, no markup
		FeePercent:      10,
		EscalatePercent: 0,     // a rejected attempt retries at the same bid
		PreferRelays:    false, // public mempool submission
	}
}

// ConservativeProfile returns a posture optimized for a first deployment
// or an uncontested network: cheap, patient, and observable.
//
// Trade-offs:
//   - The wide window means a competitor who fires first wins the epoch
//   - Network-priced bids save gas but never outbid anyone
func ConservativeProfile() Profile {
	p := DefaultProfile()
	p.Name = "conservative"
	p.Window = 30 * time.Second // patient: fire any time in the first half minute
	p.PollInterval = 5 * time.Second
	return p
}

// AggressiveProfile returns a posture for networks where other bots
// compete for the same trigger: local-clock timing, marked-up bids, and
// escalation on rejection.
//
// Trade-offs:
//   - Local-clock timing can fire on a stale extrapolation if the chain stalls
//   - Markup and escalation spend more gas per epoch
func AggressiveProfile() Profile {
	p := DefaultProfile()
	p.Name = "aggressive"
	p.Policy = scheduler.ReactiveLocal // don't wait for the chain to confirm the boundary
	p.Window = 10 * time.Second
	p.PollInterval = time.Second
	p.FeeMode = fees.ModePercentage
	p.FeePercent = 20      // outbid the network estimate by a fifth
	p.EscalatePercent = 15 // and keep climbing while attempts bounce
	return p
}

// RaceProfile returns the all-out posture: fire before the boundary so the
// transaction is already in flight when the epoch rolls, submit through
// private relays, and bid half again over the network estimate.
//
// Trade-offs:
//   - Preemptive firing wastes a transaction whenever the boundary estimate drifts
//   - Relay submission depends on relay uptime during the narrow window
//   - By far the most expensive posture per epoch
func RaceProfile() Profile {
	p := DefaultProfile()
	p.Name = "race"
	p.Policy = scheduler.PreemptiveLocal
	p.Lead = 3 * time.Second // in flight just ahead of the boundary
	p.PollInterval = 500 * time.Millisecond
	p.FeeMode = fees.ModePercentage
	p.FeePercent = 50
	p.EscalatePercent = 25
	p.PreferRelays = true
	return p
}

// ProfileByName looks up a profile by its string identifier. Returns an
// error if the name is unrecognized. This helper enables CLI flags like
// --profile=race to select a posture dynamically.
func ProfileByName(name string) (Profile, error) {
	switch name {
	case "conservative":
		return ConservativeProfile(), nil
	case "aggressive":
		return AggressiveProfile(), nil
	case "race":
		return RaceProfile(), nil
	case "default":
		return DefaultProfile(), nil
	default:
		return Profile{}, fmt.Errorf("unknown profile: %q (valid: conservative, aggressive, race, default)", name)
	}
}
