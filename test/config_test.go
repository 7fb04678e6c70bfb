package test

import (
	"testing"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-epoch-trigger/cmd/trigger/launcher"
	"github.com/rony4d/go-epoch-trigger/fees"
	"github.com/rony4d/go-epoch-trigger/flags"
	"github.com/rony4d/go-epoch-trigger/scheduler"
)

// testKey is a throwaway wallet key; MakeAllConfigs refuses to run without one.
const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

// helper to run MakeAllConfigs with a synthetic CLI context.

func runConfigFromArgs(t *testing.T, args []string) (launcher.Config, error) {

	t.Helper()

	app := cli.NewApp()

	app.HideHelp = true
	app.HideVersion = true

	// Register every flag group the real launcher registers.

	app.Flags = append(app.Flags, flags.CommonFlags()...)
	app.Flags = append(app.Flags, flags.ChainFlags()...)
	app.Flags = append(app.Flags, flags.EpochFlags()...)
	app.Flags = append(app.Flags, flags.TriggerFlags()...)
	app.Flags = append(app.Flags, flags.FeeFlags()...)
	app.Flags = append(app.Flags, flags.RelayFlags()...)

	var got launcher.Config
	var gotErr error

	app.Action = func(c *cli.Context) error {
		got, gotErr = launcher.MakeAllConfigs(c)
		return nil
	}

	if err := app.Run(append([]string{"epoch-trigger"}, args...)); err != nil {
		t.Fatalf("app.Run failed: %v", err)
	}
	return got, gotErr
}

// TestMakeAllConfigs_flagOverrides verifies that the command-line flags we
// declare correctly override the corresponding fields in the aggregated
// Config struct. Each sub-test feeds custom CLI arguments into a synthetic
// app, invokes launcher.MakeAllConfigs, and checks the bits of the resulting
// struct that should have changed.
func TestMakeAllConfigs_flagOverrides(t *testing.T) {

	tests := []struct {
		name string                                  // descriptive name for the scenario
		args []string                                // CLI arguments to feed into MakeAllConfigs
		want func(t *testing.T, cfg launcher.Config) // assertion helper examining the final config
	}{
		{
			name: "endpoints and chain id",
			args: []string{"--key", testKey, "--rpc.read", "http://10.0.0.1:8545", "--rpc.write", "http://10.0.0.2:8545", "--chainid", "777"},
			want: func(t *testing.T, cfg launcher.Config) {
				if cfg.Chain.ReadEndpoint != "http://10.0.0.1:8545" {
					t.Fatalf("ReadEndpoint = %q, want the rpc.read override", cfg.Chain.ReadEndpoint)
				}
				if cfg.WriteEndpointOrRead() != "http://10.0.0.2:8545" {
					t.Fatalf("WriteEndpoint = %q, want the rpc.write override", cfg.WriteEndpointOrRead())
				}
				if cfg.ChainIDBig().Uint64() != 777 {
					t.Fatalf("ChainID = %d, want 777", cfg.ChainIDBig().Uint64())
				}
			},
		},

		{
			name: "write endpoint falls back to read",
			args: []string{"--key", testKey, "--rpc.read", "http://10.0.0.1:8545"},
			want: func(t *testing.T, cfg launcher.Config) {
				if cfg.WriteEndpointOrRead() != "http://10.0.0.1:8545" {
					t.Fatalf("WriteEndpoint = %q, want fallback to rpc.read", cfg.WriteEndpointOrRead())
				}
				// chain id falls back to the network preset (main = 250)
				if cfg.ChainIDBig().Uint64() != 0xfa {
					t.Fatalf("ChainID = %d, want preset 250", cfg.ChainIDBig().Uint64())
				}
			},
		},

		{
			name: "epoch model override",
			args: []string{"--key", testKey, "--epoch.model", "blockcount", "--epoch.blocks", "300", "--epoch.blocktime", "2s"},
			want: func(t *testing.T, cfg launcher.Config) {
				if cfg.Rules.Epochs.Model.String() != "blockcount" {
					t.Fatalf("Model = %v, want blockcount", cfg.Rules.Epochs.Model)
				}
				if cfg.Rules.Epochs.BlocksPerEpoch != 300 {
					t.Fatalf("BlocksPerEpoch = %d, want 300", cfg.Rules.Epochs.BlocksPerEpoch)
				}
				if cfg.Rules.Epochs.SecondsPerBlock != 2*time.Second {
					t.Fatalf("SecondsPerBlock = %v, want 2s", cfg.Rules.Epochs.SecondsPerBlock)
				}
			},
		},

		{
			name: "trigger and fee overrides",
			args: []string{"--key", testKey, "--trigger.policy", "preemptive-local", "--trigger.lead", "3s",
				"--fee.strategy", "fixed", "--fee.manual", "5000000000", "--fee.escalate", "25", "--fee.maxcap", "90000000000"},
			want: func(t *testing.T, cfg launcher.Config) {
				if cfg.Trigger.Policy != scheduler.PreemptiveLocal {
					t.Fatalf("Policy = %v, want preemptive-local", cfg.Trigger.Policy)
				}
				if cfg.Trigger.Lead != 3*time.Second {
					t.Fatalf("Lead = %v, want 3s", cfg.Trigger.Lead)
				}
				if cfg.Fees.Strategy.Mode != fees.ModeFixed {
					t.Fatalf("Mode = %v, want fixed", cfg.Fees.Strategy.Mode)
				}
				if cfg.Fees.Strategy.ManualWei.Int64() != 5_000_000_000 {
					t.Fatalf("ManualWei = %v, want 5 gwei", cfg.Fees.Strategy.ManualWei)
				}
				if cfg.Fees.EscalatePercent != 25 {
					t.Fatalf("EscalatePercent = %d, want 25", cfg.Fees.EscalatePercent)
				}
				if cfg.Fees.MaxFeeCapWei.Int64() != 90_000_000_000 {
					t.Fatalf("MaxFeeCapWei = %v, want 90 gwei", cfg.Fees.MaxFeeCapWei)
				}
			},
		},

		{
			name: "relay flags",
			args: []string{"--key", testKey, "--relay.enabled",
				"--relay.endpoint", "https://relay-a.example", "--relay.endpoint", "https://relay-b.example",
				"--relay.timeout", "5s"},
			want: func(t *testing.T, cfg launcher.Config) {
				if !cfg.Relay.Enabled {
					t.Fatal("Relay.Enabled = false, want true")
				}
				if len(cfg.Relay.Endpoints) != 2 || cfg.Relay.Endpoints[1] != "https://relay-b.example" {
					t.Fatalf("Endpoints = %#v, want two entries", cfg.Relay.Endpoints)
				}
				if cfg.Relay.Timeout != 5*time.Second {
					t.Fatalf("Timeout = %v, want 5s", cfg.Relay.Timeout)
				}
			},
		},

		{
			name: "profile applies before explicit flags",
			args: []string{"--key", testKey, "--profile", "race", "--poll.interval", "1s",
				"--relay.endpoint", "https://relay-a.example"},
			want: func(t *testing.T, cfg launcher.Config) {
				// profile fields stick where no flag overrides them
				if cfg.Trigger.Policy != scheduler.PreemptiveLocal {
					t.Fatalf("Policy = %v, want race profile's preemptive-local", cfg.Trigger.Policy)
				}
				if cfg.Fees.Strategy.Mode != fees.ModePercentage || cfg.Fees.Strategy.Percent != 50 {
					t.Fatalf("Strategy = %+v, want race profile's percentage/50", cfg.Fees.Strategy)
				}
				// explicit flag wins over the profile
				if cfg.Trigger.PollInterval != time.Second {
					t.Fatalf("PollInterval = %v, want flag override 1s", cfg.Trigger.PollInterval)
				}
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := runConfigFromArgs(t, test.args)
			if err != nil {
				t.Fatalf("MakeAllConfigs failed: %v", err)
			}
			test.want(t, cfg)
			t.Logf("args = %#v", test.args) //	NOTE: this will only be printed if the test fails
		})

	}

}

// TestMakeAllConfigs_rejectsBrokenConfigs verifies that configs which cannot
// possibly run are refused before any connection is attempted.
func TestMakeAllConfigs_rejectsBrokenConfigs(t *testing.T) {

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing key", args: []string{"--rpc.read", "http://10.0.0.1:8545"}},
		{name: "unknown network", args: []string{"--key", testKey, "--network", "moonnet"}},
		{name: "unknown policy", args: []string{"--key", testKey, "--trigger.policy", "psychic"}},
		{name: "malformed wei", args: []string{"--key", testKey, "--fee.manual", "five gwei"}},
		{name: "relay without endpoints", args: []string{"--key", testKey, "--relay.enabled"}},
		{name: "slot model without beacon", args: []string{"--key", testKey, "--epoch.model", "slot"}},
		{name: "bad rewarder address", args: []string{"--key", testKey, "--contract.rewarder", "0x123"}},
		{name: "unknown profile", args: []string{"--key", testKey, "--profile", "yolo"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := runConfigFromArgs(t, test.args)
			if err == nil {
				t.Fatalf("MakeAllConfigs accepted a broken config: args = %#v", test.args)
			}
		})
	}

}
