package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// TriggerFlags holds the scheduling and claiming knobs of the firing loop.

func TriggerFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "trigger.policy",
			Usage: "Firing policy (reactive-onchain|reactive-local|preemptive-onchain|preemptive-local)",
			Value: "reactive-onchain",
		},
		cli.DurationFlag{
			Name:  "trigger.window",
			Usage: "Width of the post-boundary firing window (reactive policies)",
			Value: 15 * time.Second,
		},
		cli.DurationFlag{
			Name:  "trigger.lead",
			Usage: "How long before the boundary to fire (preemptive policies)",
			Value: 5 * time.Second,
		},
		cli.DurationFlag{
			Name:  "poll.interval",
			Usage: "Main loop tick interval",
			Value: 2 * time.Second,
		},
		cli.StringFlag{
			Name:  "claim.ceiling",
			Usage: "Maximum reward balance (wei) a single claim may sweep (preset default when empty)",
		},
		cli.StringFlag{
			Name:  "balance.floor",
			Usage: "Wallet balance (wei) below which the loop warns about gas funds",
		},
		cli.StringFlag{
			Name:  "profile",
			Usage: "Run profile preset (conservative|aggressive|race), applied before explicit flags",
		},
	}
}
