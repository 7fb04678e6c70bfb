package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// FeeFlags isolates gas bidding knobs.

func FeeFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "fee.strategy",
			Usage: "Fee strategy (network|fixed|additive|percentage)",
			Value: "network",
		},
		cli.StringFlag{
			Name:  "fee.manual",
			Usage: "Manual bid in wei (fixed strategy)",
		},
		cli.StringFlag{
			Name:  "fee.add",
			Usage: "Wei added on top of the network estimate (additive strategy)",
		},
		cli.Uint64Flag{
			Name:  "fee.percent",
			Usage: "Percent added on top of the network estimate (percentage strategy)",
			Value: 10,
		},
		cli.Uint64Flag{
			Name:  "fee.escalate",
			Usage: "Percent bump applied per failed attempt within an epoch (0 disables)",
		},
		cli.StringFlag{
			Name:  "fee.maxcap",
			Usage: "Hard ceiling in wei that escalation never crosses",
		},
	}
}
