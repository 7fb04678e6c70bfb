package launcher

import (
	"time"
)

// Defaults bundles the baseline configuration values the launcher uses
// before network presets, profiles and flags override them.

type Defaults struct {
	Chain   ChainDefaults
	Trigger TriggerDefaults
	Fees    FeeDefaults
	Relay   RelayDefaults
	Logging LoggingDefaults
}

// ChainDefaults captures connectivity settings.

type ChainDefaults struct {
	ReadEndpoint string        //	JSON-RPC endpoint for chain reads (headers, fee history, balances, contract calls). Point it at a node you trust to have a fresh head; a lagging read endpoint makes every timing decision late.
	RPCTimeout   time.Duration //	Upper bound for a single JSON-RPC round trip. Calls that exceed it are abandoned and the tick carries on with cached data where possible.
}

// TriggerDefaults tunes the firing loop before any profile or flag is applied.
type TriggerDefaults struct {
	Policy       string        //	Firing policy name. Reactive policies fire just after a boundary, preemptive ones just before it; each comes in an on-chain and a local-clock variant.
	Window       time.Duration //	Width of the post-boundary window for reactive policies. Wider windows tolerate slow polling but risk firing after a competitor already has.
	Lead         time.Duration //	How far before the boundary preemptive policies fire. Too large wastes gas on reverts, too small misses the boundary entirely.
	PollInterval time.Duration //	Tick cadence of the main loop. Must be comfortably smaller than Window, otherwise whole windows pass between ticks.
}

// FeeDefaults tunes gas bidding.
type FeeDefaults struct {
	Strategy        string //	Fee strategy name (network, fixed, additive, percentage).
	Percent         uint64 //	Markup for the percentage strategy.
	EscalatePercent uint64 //	Per-retry bump after a rejected submission; 0 disables escalation.
}

// RelayDefaults tunes private relay submission.
type RelayDefaults struct {
	Timeout time.Duration //	Per-relay dispatch timeout. A relay that cannot answer within it is counted as refused for that round.
}

// LoggingDefaults controls log verbosity/format.
type LoggingDefaults struct {
	Verbosity int    //	Log level numeric (0=fatal, 1=error, 2=warn, 3=info, 4=debug, 5=trace).
	Format    string //	Log output format (text vs json).
	Color     bool   //	Whether to use ANSI color codes in logs (helpful on terminals, best disabled when piping to files).
}

// DefaultConfig returns a fully populated Defaults instance.

func DefaultConfig() Defaults {
	return Defaults{
		Chain: ChainDefaults{
			ReadEndpoint: "http://127.0.0.1:18545",
			RPCTimeout:   30 * time.Second,
		},
		Trigger: TriggerDefaults{
			Policy:       "reactive-onchain",
			Window:       15 * time.Second,
			Lead:         5 * time.Second,
			PollInterval: 2 * time.Second,
		},
		Fees: FeeDefaults{
			Strategy:        "network",
			Percent:         10,
			EscalatePercent: 0,
		},
		Relay: RelayDefaults{
			Timeout: 3 * time.Second,
		},
		Logging: LoggingDefaults{
			Verbosity: 3,
			Format:    "text",
			Color:     true,
		},
	}
}
