// Package rewarder wraps the reward/trigger contract surface the bot talks
// to. The contract's internal accounting is outside this repo; only four
// entry points matter here:
//   - triggerAction(): the state-changing call that earns the reward when
//     executed inside the epoch window
//   - rewardsOf(address): accrued claimable balance of a wallet
//   - claimRewards(): sweeps the caller's accrued balance
//   - rewardsAvailable(): pending work indicator; zero means a trigger
//     right now would be a no-op
package rewarder

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ContractABI is the JSON ABI for the reward/trigger surface.
const ContractABI = `[
	{"inputs":[],"name":"triggerAction","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"rewardsOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"claimRewards","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"rewardsAvailable","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Gas limits for the two state-changing calls. Generous fixed limits are
// used instead of per-tick estimation: the window is seconds wide and an
// estimation round-trip costs more than the over-reservation.
const (
	TriggerGasLimit uint64 = 500_000
	ClaimGasLimit   uint64 = 200_000
)

var parsedABI abi.ABI

func init() {
	a, err := abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		panic(err)
	}
	for _, name := range []string{"triggerAction", "rewardsOf", "claimRewards", "rewardsAvailable"} {
		if _, ok := a.Methods[name]; !ok {
			panic("rewarder ABI is missing method " + name)
		}
	}
	parsedABI = a
}

// Caller is the read-only slice of an RPC client the wrapper needs for
// view calls. *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Rewarder binds the contract address to a caller.
type Rewarder struct {
	addr   common.Address
	caller Caller
}

func New(addr common.Address, caller Caller) *Rewarder {
	return &Rewarder{addr: addr, caller: caller}
}

// Address returns the bound contract address.
func (r *Rewarder) Address() common.Address { return r.addr }

// TriggerCallData returns the calldata for triggerAction(). The submitter
// wraps it in a transaction; this package never signs or sends.
func TriggerCallData() []byte {
	data, err := parsedABI.Pack("triggerAction")
	if err != nil {
		panic(err) // no-arg pack over a verified ABI cannot fail
	}
	return data
}

// ClaimCallData returns the calldata for claimRewards().
func ClaimCallData() []byte {
	data, err := parsedABI.Pack("claimRewards")
	if err != nil {
		panic(err)
	}
	return data
}

// RewardsOf reads the accrued claimable balance of account, in the chain's
// smallest unit.
func (r *Rewarder) RewardsOf(ctx context.Context, account common.Address) (*big.Int, error) {
	data, err := parsedABI.Pack("rewardsOf", account)
	if err != nil {
		return nil, err
	}
	out, err := r.call(ctx, data)
	if err != nil {
		return nil, err
	}
	return unpackUint256(out, "rewardsOf")
}

// RewardsAvailable reads the pending-work indicator. Zero means a trigger
// right now earns nothing.
func (r *Rewarder) RewardsAvailable(ctx context.Context) (*big.Int, error) {
	data, err := parsedABI.Pack("rewardsAvailable")
	if err != nil {
		return nil, err
	}
	out, err := r.call(ctx, data)
	if err != nil {
		return nil, err
	}
	return unpackUint256(out, "rewardsAvailable")
}

func (r *Rewarder) call(ctx context.Context, data []byte) ([]byte, error) {
	return r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.addr, Data: data}, nil)
}

func unpackUint256(out []byte, method string) (*big.Int, error) {
	vals, err := parsedABI.Unpack(method, out)
	if err != nil {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}
