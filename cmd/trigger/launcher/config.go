// This file maps CLI context to the launcher config struct.

package launcher

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-epoch-trigger/chaintime"
	"github.com/rony4d/go-epoch-trigger/fees"
	"github.com/rony4d/go-epoch-trigger/integration"
	"github.com/rony4d/go-epoch-trigger/networks"
	"github.com/rony4d/go-epoch-trigger/scheduler"
)

// Config aggregates every subsystem's configuration the launcher needs.
type Config struct {
	// Rules carries the network preset (epoch geometry, contract
	// addresses, economy floors) after flag overrides.
	Rules networks.Rules

	Chain   ChainConfig
	Trigger TriggerConfig
	Fees    FeeConfig
	Relay   RelayConfig
	Claims  ClaimConfig
	Logging LoggingConfig
}

type ChainConfig struct {
	ReadEndpoint  string
	WriteEndpoint string // empty means ReadEndpoint
	ChainID       uint64 // 0 means Rules.NetworkID
	KeyHex        string
	RPCTimeout    time.Duration
}

type TriggerConfig struct {
	Policy       scheduler.Policy
	Window       time.Duration
	Lead         time.Duration
	PollInterval time.Duration
}

type FeeConfig struct {
	Strategy        fees.Strategy
	EscalatePercent int64
	MaxFeeCapWei    *big.Int // nil means uncapped
}

type RelayConfig struct {
	Enabled    bool
	Endpoints  []string
	Timeout    time.Duration
	AuthKeyHex string // empty means Chain.KeyHex
}

type ClaimConfig struct {
	CeilingWei      *big.Int // nil means Rules.Economy default
	BalanceFloorWei *big.Int // nil means Rules.Economy default
}

type LoggingConfig struct {
	Verbosity int
	Format    string
	Color     bool
	SentryDSN string
}

// -----------------------------------------------------------------------------
// Default config + builders
// -----------------------------------------------------------------------------

func defaultConfig(rules networks.Rules) Config {
	d := DefaultConfig()
	return Config{
		Rules: rules,
		Chain: ChainConfig{
			ReadEndpoint: d.Chain.ReadEndpoint,
			RPCTimeout:   d.Chain.RPCTimeout,
		},
		Trigger: TriggerConfig{
			Policy:       scheduler.ReactiveOnChain,
			Window:       d.Trigger.Window,
			Lead:         d.Trigger.Lead,
			PollInterval: d.Trigger.PollInterval,
		},
		Fees: FeeConfig{
			Strategy: fees.Strategy{
				Mode:    fees.ModeNetwork,
				Percent: int64(d.Fees.Percent),
			},
			EscalatePercent: int64(d.Fees.EscalatePercent),
		},
		Relay: RelayConfig{
			Timeout: d.Relay.Timeout,
		},
		Claims: ClaimConfig{
			CeilingWei:      rules.Economy.DefaultClaimCeilingWei,
			BalanceFloorWei: rules.Economy.DefaultBalanceFloorWei,
		},
		Logging: LoggingConfig{
			Verbosity: d.Logging.Verbosity,
			Format:    d.Logging.Format,
			Color:     d.Logging.Color,
		},
	}
}

// MakeAllConfigs merges the network preset, the optional run profile, and
// CLI flag overrides into a single config struct, then validates it.

func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	rules, ok := networks.RulesByName(ctx.String("network"))
	if !ok {
		return Config{}, fmt.Errorf("unknown network %q (valid: main, test, fake)", ctx.String("network"))
	}
	cfg := defaultConfig(rules.Copy())

	if name := ctx.String("profile"); name != "" {
		profile, err := integration.ProfileByName(name)
		if err != nil {
			return Config{}, err
		}
		applyProfile(&cfg, profile)
	}

	if err := applyCLIOverrides(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyProfile merges a run profile into the config. Profiles sit between
// the network preset and explicit flags in precedence.
func applyProfile(cfg *Config, p integration.Profile) {
	cfg.Trigger.Policy = p.Policy
	cfg.Trigger.Window = p.Window
	cfg.Trigger.Lead = p.Lead
	cfg.Trigger.PollInterval = p.PollInterval
	cfg.Fees.Strategy.Mode = p.FeeMode
	cfg.Fees.Strategy.Percent = p.FeePercent
	cfg.Fees.EscalatePercent = p.EscalatePercent
	if p.PreferRelays {
		cfg.Relay.Enabled = true
	}
}

// -----------------------------------------------------------------------------
// CLI wiring
// -----------------------------------------------------------------------------

func applyCLIOverrides(ctx *cli.Context, cfg *Config) error {
	if ctx.IsSet("rpc.read") {
		cfg.Chain.ReadEndpoint = ctx.String("rpc.read")
	}
	if ctx.IsSet("rpc.write") {
		cfg.Chain.WriteEndpoint = ctx.String("rpc.write")
	}
	if ctx.IsSet("rpc.timeout") {
		cfg.Chain.RPCTimeout = ctx.Duration("rpc.timeout")
	}
	if ctx.IsSet("chainid") {
		cfg.Chain.ChainID = ctx.Uint64("chainid")
	}
	if ctx.IsSet("key") {
		cfg.Chain.KeyHex = ctx.String("key")
	}

	if ctx.IsSet("contract.rewarder") {
		addr, err := parseAddress(ctx.String("contract.rewarder"))
		if err != nil {
			return fmt.Errorf("contract.rewarder: %w", err)
		}
		cfg.Rules.Contracts.Rewarder = addr
	}
	if ctx.IsSet("contract.beacon") {
		addr, err := parseAddress(ctx.String("contract.beacon"))
		if err != nil {
			return fmt.Errorf("contract.beacon: %w", err)
		}
		cfg.Rules.Contracts.Beacon = addr
	}

	if ctx.IsSet("epoch.model") {
		model, err := chaintime.ModelFromString(ctx.String("epoch.model"))
		if err != nil {
			return err
		}
		cfg.Rules.Epochs.Model = model
	}
	if ctx.IsSet("epoch.genesis") {
		cfg.Rules.Epochs.Genesis = time.Unix(int64(ctx.Uint64("epoch.genesis")), 0)
	}
	if ctx.IsSet("epoch.duration") {
		cfg.Rules.Epochs.Duration = ctx.Duration("epoch.duration")
	}
	if ctx.IsSet("epoch.blocks") {
		cfg.Rules.Epochs.BlocksPerEpoch = ctx.Uint64("epoch.blocks")
	}
	if ctx.IsSet("epoch.blocktime") {
		cfg.Rules.Epochs.SecondsPerBlock = ctx.Duration("epoch.blocktime")
	}

	if ctx.IsSet("trigger.policy") {
		policy, err := scheduler.PolicyFromString(ctx.String("trigger.policy"))
		if err != nil {
			return err
		}
		cfg.Trigger.Policy = policy
	}
	if ctx.IsSet("trigger.window") {
		cfg.Trigger.Window = ctx.Duration("trigger.window")
	}
	if ctx.IsSet("trigger.lead") {
		cfg.Trigger.Lead = ctx.Duration("trigger.lead")
	}
	if ctx.IsSet("poll.interval") {
		cfg.Trigger.PollInterval = ctx.Duration("poll.interval")
	}

	if ctx.IsSet("fee.strategy") {
		mode, err := fees.ModeFromString(ctx.String("fee.strategy"))
		if err != nil {
			return err
		}
		cfg.Fees.Strategy.Mode = mode
	}
	if ctx.IsSet("fee.manual") {
		wei, err := parseWei(ctx.String("fee.manual"))
		if err != nil {
			return fmt.Errorf("fee.manual: %w", err)
		}
		cfg.Fees.Strategy.ManualWei = wei
	}
	if ctx.IsSet("fee.add") {
		wei, err := parseWei(ctx.String("fee.add"))
		if err != nil {
			return fmt.Errorf("fee.add: %w", err)
		}
		cfg.Fees.Strategy.AddWei = wei
	}
	if ctx.IsSet("fee.percent") {
		cfg.Fees.Strategy.Percent = int64(ctx.Uint64("fee.percent"))
	}
	if ctx.IsSet("fee.escalate") {
		cfg.Fees.EscalatePercent = int64(ctx.Uint64("fee.escalate"))
	}
	if ctx.IsSet("fee.maxcap") {
		wei, err := parseWei(ctx.String("fee.maxcap"))
		if err != nil {
			return fmt.Errorf("fee.maxcap: %w", err)
		}
		cfg.Fees.MaxFeeCapWei = wei
	}

	if ctx.IsSet("relay.enabled") {
		cfg.Relay.Enabled = ctx.Bool("relay.enabled")
	}
	if ctx.IsSet("relay.endpoint") {
		cfg.Relay.Endpoints = ctx.StringSlice("relay.endpoint")
	}
	if ctx.IsSet("relay.timeout") {
		cfg.Relay.Timeout = ctx.Duration("relay.timeout")
	}
	if ctx.IsSet("relay.authkey") {
		cfg.Relay.AuthKeyHex = ctx.String("relay.authkey")
	}

	if ctx.IsSet("claim.ceiling") {
		wei, err := parseWei(ctx.String("claim.ceiling"))
		if err != nil {
			return fmt.Errorf("claim.ceiling: %w", err)
		}
		cfg.Claims.CeilingWei = wei
	}
	if ctx.IsSet("balance.floor") {
		wei, err := parseWei(ctx.String("balance.floor"))
		if err != nil {
			return fmt.Errorf("balance.floor: %w", err)
		}
		cfg.Claims.BalanceFloorWei = wei
	}

	if ctx.IsSet("log.format") {
		cfg.Logging.Format = ctx.String("log.format")
	}
	if ctx.IsSet("log.verbosity") {
		cfg.Logging.Verbosity = ctx.Int("log.verbosity")
	}
	if ctx.IsSet("log.color") {
		cfg.Logging.Color = ctx.Bool("log.color")
	}
	if ctx.IsSet("sentry.dsn") {
		cfg.Logging.SentryDSN = ctx.String("sentry.dsn")
	}
	return nil
}

// Validate rejects configs that cannot possibly run before any connection
// is attempted.
func (cfg Config) Validate() error {
	if cfg.Chain.ReadEndpoint == "" {
		return fmt.Errorf("rpc.read endpoint is required")
	}
	if cfg.Chain.KeyHex == "" {
		return fmt.Errorf("a trigger wallet key is required (--key)")
	}
	if cfg.Rules.Contracts.Rewarder == (common.Address{}) {
		return fmt.Errorf("a rewarder contract address is required (--contract.rewarder)")
	}
	switch cfg.Rules.Epochs.Model {
	case chaintime.ModelGenesis:
		if cfg.Rules.Epochs.Genesis.IsZero() || cfg.Rules.Epochs.Duration <= 0 {
			return fmt.Errorf("genesis model requires epoch.genesis and a positive epoch.duration")
		}
	case chaintime.ModelBlockCount:
		if cfg.Rules.Epochs.BlocksPerEpoch == 0 || cfg.Rules.Epochs.SecondsPerBlock <= 0 {
			return fmt.Errorf("blockcount model requires epoch.blocks and a positive epoch.blocktime")
		}
	case chaintime.ModelSlot:
		if cfg.Rules.Contracts.Beacon == (common.Address{}) {
			return fmt.Errorf("slot model requires a beacon contract address (--contract.beacon)")
		}
	}
	if cfg.Relay.Enabled && len(cfg.Relay.Endpoints) == 0 {
		return fmt.Errorf("relay submission enabled but no relay.endpoint given")
	}
	// scheduler.New re-checks window/lead, but fail early with a flag name
	if cfg.Trigger.PollInterval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	sc := scheduler.Config{Policy: cfg.Trigger.Policy, Window: cfg.Trigger.Window, Lead: cfg.Trigger.Lead}
	if err := sc.Validate(); err != nil {
		return err
	}
	return nil
}

// ChainIDBig resolves the effective chain ID: the explicit flag when set,
// the network preset otherwise.
func (cfg Config) ChainIDBig() *big.Int {
	if cfg.Chain.ChainID != 0 {
		return new(big.Int).SetUint64(cfg.Chain.ChainID)
	}
	return new(big.Int).SetUint64(cfg.Rules.NetworkID)
}

// WriteEndpointOrRead resolves the broadcast endpoint, falling back to the
// read endpoint when no dedicated one is configured.
func (cfg Config) WriteEndpointOrRead() string {
	if cfg.Chain.WriteEndpoint != "" {
		return cfg.Chain.WriteEndpoint
	}
	return cfg.Chain.ReadEndpoint
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func parseWei(raw string) (*big.Int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty wei amount")
	}
	out, ok := new(big.Int).SetString(s, 10)
	if !ok || out.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount %q", raw)
	}
	return out, nil
}

func parseAddress(raw string) (common.Address, error) {
	s := strings.TrimSpace(raw)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(s), nil
}
