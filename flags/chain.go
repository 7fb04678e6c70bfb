package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// ChainFlags covers chain connectivity and contract configuration.

func ChainFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "rpc.read",
			Usage: "JSON-RPC endpoint used for chain reads (headers, fees, balances)",
			Value: "http://127.0.0.1:18545",
		},
		cli.StringFlag{
			Name:  "rpc.write",
			Usage: "JSON-RPC endpoint used for transaction broadcast (defaults to rpc.read)",
		},
		cli.Uint64Flag{
			Name:  "chainid",
			Usage: "Chain ID override (defaults to the network preset)",
		},
		cli.StringFlag{
			Name:  "contract.rewarder",
			Usage: "Address of the reward/trigger contract",
		},
		cli.StringFlag{
			Name:  "contract.beacon",
			Usage: "Address of the chain-time beacon contract (slot model only)",
		},
		cli.StringFlag{
			Name:  "key",
			Usage: "Hex-encoded private key of the trigger wallet",
		},
	}
}

// EpochFlags isolates the chain-time model knobs.
func EpochFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "epoch.model",
			Usage: "Chain-time model (genesis|blockcount|slot)",
		},
		cli.Uint64Flag{
			Name:  "epoch.genesis",
			Usage: "Genesis timestamp (unix seconds) for the genesis model",
		},
		cli.DurationFlag{
			Name:  "epoch.duration",
			Usage: "Epoch duration for the genesis model",
		},
		cli.Uint64Flag{
			Name:  "epoch.blocks",
			Usage: "Blocks per epoch for the blockcount model",
		},
		cli.DurationFlag{
			Name:  "epoch.blocktime",
			Usage: "Average seconds per block for the blockcount model",
		},
	}
}
