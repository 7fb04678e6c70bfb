// Package networks defines the per-network parameter sets the bot can be
// pointed at. A Rules value bundles everything that varies between
// deployments of the same reward contract family: chain identity, epoch
// geometry, contract addresses, and economic floors.
//
// Three presets exist: a production mainnet, a testnet with identical
// geometry, and a fakenet with short epochs for local testing. A custom
// deployment starts from a preset and overrides fields through flags.
package networks

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/rony4d/go-epoch-trigger/chaintime"
)

// Network identification constants.
const (
	// MainNetworkID is the chain ID for mainnet (0xfa = 250).
	MainNetworkID uint64 = 0xfa

	// TestNetworkID is the chain ID for testnet (0xfa2 = 4002).
	TestNetworkID uint64 = 0xfa2

	// FakeNetworkID is the chain ID for local/fake networks (0xfa3 = 4003).
	FakeNetworkID uint64 = 0xfa3
)

// Rules describes one network deployment end to end.
type Rules struct {
	Name      string
	NetworkID uint64

	// Epochs describes how chain time maps onto epochs.
	Epochs EpochRules

	// Contracts holds the collaborator contract addresses.
	Contracts ContractRules

	// Economy holds fee and claim guards.
	Economy EconomyRules
}

// EpochRules carries the parameters of the active chain-time model. Only
// the fields matching Model are read.
type EpochRules struct {
	// Model selects which derivation the oracle runs.
	Model chaintime.Model

	// Genesis and Duration feed the genesis-time model.
	Genesis  time.Time
	Duration time.Duration

	// BlocksPerEpoch and SecondsPerBlock feed the block-count model.
	BlocksPerEpoch  uint64
	SecondsPerBlock time.Duration
}

// ContractRules holds the on-chain collaborators.
type ContractRules struct {
	// Rewarder is the reward/trigger contract (always required).
	Rewarder common.Address

	// Beacon is the chain-time oracle contract (slot model only).
	Beacon common.Address
}

// EconomyRules holds the economic guard rails.
type EconomyRules struct {
	// MinTipWei is the lowest priority fee worth bidding on this network;
	// bids below it are raised to it before submission.
	MinTipWei *big.Int

	// DefaultClaimCeilingWei bounds a single claim when the operator does
	// not configure one.
	DefaultClaimCeilingWei *big.Int

	// DefaultBalanceFloorWei is the native-balance level below which the
	// loop warns about running out of gas money.
	DefaultBalanceFloorWei *big.Int
}

// MainNetRules returns the production configuration: 4 hour epochs
// anchored on the mainnet genesis timestamp.
func MainNetRules() Rules {
	return Rules{
		Name:      "main",
		NetworkID: MainNetworkID,
		Epochs: EpochRules{
			Model:    chaintime.ModelGenesis,
			Genesis:  time.Unix(1608639300, 0), // mainnet launch instant
			Duration: 4 * time.Hour,
		},
		Contracts: ContractRules{
			Rewarder: common.HexToAddress("0xFC00FACE00000000000000000000000000000000"),
		},
		Economy: defaultEconomyRules(),
	}
}

// TestNetRules returns the testnet configuration. Same geometry as
// mainnet so timing behaviour reproduces faithfully.
func TestNetRules() Rules {
	return Rules{
		Name:      "test",
		NetworkID: TestNetworkID,
		Epochs: EpochRules{
			Model:    chaintime.ModelGenesis,
			Genesis:  time.Unix(1606845000, 0),
			Duration: 4 * time.Hour,
		},
		Contracts: ContractRules{
			Rewarder: common.HexToAddress("0xFC00FACE00000000000000000000000000000000"),
		},
		Economy: defaultEconomyRules(),
	}
}

// FakeNetRules returns the local-testing configuration: block-count
// epochs a few minutes long so windows come around quickly.
func FakeNetRules() Rules {
	return Rules{
		Name:      "fake",
		NetworkID: FakeNetworkID,
		Epochs: EpochRules{
			Model:           chaintime.ModelBlockCount,
			BlocksPerEpoch:  200,
			SecondsPerBlock: 3 * time.Second,
		},
		Contracts: ContractRules{
			Rewarder: common.HexToAddress("0xFC00FACE00000000000000000000000000000000"),
		},
		Economy: defaultEconomyRules(),
	}
}

func defaultEconomyRules() EconomyRules {
	return EconomyRules{
		MinTipWei:              big.NewInt(params.GWei),            // 1 gwei
		DefaultClaimCeilingWei: weiFromTokens(10_000),              // far above any plausible single earning
		DefaultBalanceFloorWei: new(big.Int).SetUint64(params.Ether / 10), // 0.1 native token
	}
}

// weiFromTokens converts whole native tokens to wei.
func weiFromTokens(tokens int64) *big.Int {
	out := new(big.Int).SetUint64(params.Ether)
	return out.Mul(out, big.NewInt(tokens))
}

// RulesByName resolves a preset by its configuration spelling.
func RulesByName(name string) (Rules, bool) {
	switch name {
	case "main":
		return MainNetRules(), true
	case "test":
		return TestNetRules(), true
	case "fake":
		return FakeNetRules(), true
	}
	return Rules{}, false
}

// Copy creates a deep copy of Rules; the big.Int fields would otherwise
// be shared and mutated through either copy.
func (r Rules) Copy() Rules {
	cp := r
	if r.Economy.MinTipWei != nil {
		cp.Economy.MinTipWei = new(big.Int).Set(r.Economy.MinTipWei)
	}
	if r.Economy.DefaultClaimCeilingWei != nil {
		cp.Economy.DefaultClaimCeilingWei = new(big.Int).Set(r.Economy.DefaultClaimCeilingWei)
	}
	if r.Economy.DefaultBalanceFloorWei != nil {
		cp.Economy.DefaultBalanceFloorWei = new(big.Int).Set(r.Economy.DefaultBalanceFloorWei)
	}
	return cp
}

// String returns a JSON representation for logging and config dumps.
func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}
