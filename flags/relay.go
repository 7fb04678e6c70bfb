package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// RelayFlags covers private relay (bundle) submission.

func RelayFlags() []cli.Flag {
	return []cli.Flag{
		cli.BoolFlag{
			Name:  "relay.enabled",
			Usage: "Submit through private relays instead of the public mempool",
		},
		cli.StringSliceFlag{
			Name:  "relay.endpoint",
			Usage: "Relay endpoint URL (repeatable)",
		},
		cli.DurationFlag{
			Name:  "relay.timeout",
			Usage: "Per-relay submission timeout",
			Value: 3 * time.Second,
		},
		cli.StringFlag{
			Name:  "relay.authkey",
			Usage: "Hex-encoded private key used to sign relay auth headers (defaults to the trigger key)",
		},
	}
}
