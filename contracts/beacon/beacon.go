// Package beacon wraps the chain-time oracle contract used by slot-model
// deployments. The contract exposes the slot counter and the epoch
// geometry; the bot only ever reads it.
package beacon

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ContractABI is the JSON ABI for the beacon read surface.
const ContractABI = `[
	{"inputs":[],"name":"currentSlot","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"slotDurationSeconds","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"slotsPerEpoch","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"activeAttesterCount","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"isRewardsClaimable","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"}
]`

var parsedABI abi.ABI

func init() {
	a, err := abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		panic(err)
	}
	parsedABI = a
}

// Caller is the read-only slice of an RPC client the wrapper needs.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Beacon binds the contract address to a caller. It satisfies
// chaintime.SlotReader.
type Beacon struct {
	addr   common.Address
	caller Caller
}

func New(addr common.Address, caller Caller) *Beacon {
	return &Beacon{addr: addr, caller: caller}
}

// Address returns the bound contract address.
func (b *Beacon) Address() common.Address { return b.addr }

// CurrentSlot reads the chain's running slot counter.
func (b *Beacon) CurrentSlot(ctx context.Context) (uint64, error) {
	return b.readUint64(ctx, "currentSlot")
}

// SlotDurationSeconds reads the wall-clock length of one slot.
func (b *Beacon) SlotDurationSeconds(ctx context.Context) (uint64, error) {
	return b.readUint64(ctx, "slotDurationSeconds")
}

// SlotsPerEpoch reads how many slots one epoch spans.
func (b *Beacon) SlotsPerEpoch(ctx context.Context) (uint64, error) {
	return b.readUint64(ctx, "slotsPerEpoch")
}

// ActiveAttesterCount reads how many attesters are currently registered.
// Informational; logged for operator visibility.
func (b *Beacon) ActiveAttesterCount(ctx context.Context) (uint64, error) {
	return b.readUint64(ctx, "activeAttesterCount")
}

// IsRewardsClaimable reads whether the contract currently allows claims.
func (b *Beacon) IsRewardsClaimable(ctx context.Context) (bool, error) {
	out, err := b.call(ctx, "isRewardsClaimable")
	if err != nil {
		return false, err
	}
	vals, err := parsedABI.Unpack("isRewardsClaimable", out)
	if err != nil {
		return false, err
	}
	return vals[0].(bool), nil
}

func (b *Beacon) call(ctx context.Context, method string) ([]byte, error) {
	data, err := parsedABI.Pack(method)
	if err != nil {
		return nil, err
	}
	return b.caller.CallContract(ctx, ethereum.CallMsg{To: &b.addr, Data: data}, nil)
}

func (b *Beacon) readUint64(ctx context.Context, method string) (uint64, error) {
	out, err := b.call(ctx, method)
	if err != nil {
		return 0, err
	}
	vals, err := parsedABI.Unpack(method, out)
	if err != nil {
		return 0, err
	}
	return vals[0].(*big.Int).Uint64(), nil
}
