// Package fees turns current network fee data into the priority/base fee
// pair the bot bids for inclusion with. All arithmetic is integer big.Int
// in wei; floating point would drift once values reach real mainnet fee
// levels.
package fees

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

// Fallback constants used by the network-default strategy when the node
// reports nothing usable for a field.
var (
	// DefaultTipWei is the priority fee used when the node reports a
	// nil/zero tip and no legacy gas price either. 2 gwei.
	DefaultTipWei = new(big.Int).SetUint64(2 * params.GWei)

	// DefaultMaxFeeWei is the fee cap used when the node reports neither a
	// base fee nor a legacy gas price. 100 gwei.
	DefaultMaxFeeWei = new(big.Int).SetUint64(100 * params.GWei)
)

// Mode selects the escalation strategy applied on top of the network
// readings.
type Mode int

const (
	// ModeNetwork passes the network-reported values through unchanged,
	// with documented fallbacks for missing fields.
	ModeNetwork Mode = iota

	// ModeFixed ignores the network and bids a manually configured value
	// for both fields.
	ModeFixed

	// ModeAdditive bids the network values plus a constant addend.
	ModeAdditive

	// ModePercentage bids the network values scaled by (100+percent)/100,
	// integer division, floor.
	ModePercentage
)

func (m Mode) String() string {
	switch m {
	case ModeNetwork:
		return "network"
	case ModeFixed:
		return "fixed"
	case ModeAdditive:
		return "additive"
	case ModePercentage:
		return "percentage"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ModeFromString parses the configuration spelling of a Mode.
func ModeFromString(s string) (Mode, error) {
	switch s {
	case "network":
		return ModeNetwork, nil
	case "fixed":
		return ModeFixed, nil
	case "additive":
		return ModeAdditive, nil
	case "percentage":
		return ModePercentage, nil
	}
	return 0, fmt.Errorf("unknown fee strategy %q", s)
}

// Strategy is a Mode plus its parameter. Only the field matching the mode
// is read.
type Strategy struct {
	Mode Mode

	// ManualWei is the bid for both fields under ModeFixed.
	ManualWei *big.Int

	// AddWei is the constant addend under ModeAdditive.
	AddWei *big.Int

	// Percent is the markup under ModePercentage (20 means +20%).
	Percent int64
}

// Bid is the fee pair attached to a transaction, in wei.
type Bid struct {
	MaxFee         *big.Int
	MaxPriorityFee *big.Int
}

// NetworkData holds the raw fee readings from the node. Nil fields mean
// the node did not report them.
type NetworkData struct {
	TipCap   *big.Int // eth_maxPriorityFeePerGas
	BaseFee  *big.Int // head block base fee
	GasPrice *big.Int // legacy eth_gasPrice
}

// Source reads NetworkData off an RPC client. Individual read failures are
// tolerated and surface as nil fields; Estimate falls back from there.
type Source struct {
	client FeeReader
}

// FeeReader is the slice of an RPC client the Source needs.
// *ethclient.Client satisfies it.
type FeeReader interface {
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

func NewSource(client FeeReader) *Source {
	return &Source{client: client}
}

// Read gathers the current fee picture. It only errors when every reading
// failed; a partial picture is still usable.
func (s *Source) Read(ctx context.Context) (NetworkData, error) {
	var d NetworkData
	failures := 0

	if tip, err := s.client.SuggestGasTipCap(ctx); err == nil {
		d.TipCap = tip
	} else {
		failures++
	}
	if h, err := s.client.HeaderByNumber(ctx, nil); err == nil && h != nil {
		d.BaseFee = h.BaseFee
	} else {
		failures++
	}
	if gp, err := s.client.SuggestGasPrice(ctx); err == nil {
		d.GasPrice = gp
	} else {
		failures++
	}

	if failures == 3 {
		return NetworkData{}, errors.New("all fee readings failed")
	}
	return d, nil
}

// Estimate converts network fee data into a Bid under the given strategy.
// Pure integer arithmetic; the inputs are never mutated.
func Estimate(d NetworkData, s Strategy) (Bid, error) {
	switch s.Mode {
	case ModeFixed:
		if s.ManualWei == nil || s.ManualWei.Sign() < 0 {
			return Bid{}, errors.New("fixed fee strategy requires a non-negative manual value")
		}
		return Bid{
			MaxFee:         new(big.Int).Set(s.ManualWei),
			MaxPriorityFee: new(big.Int).Set(s.ManualWei),
		}, nil

	case ModeNetwork:
		return networkBid(d), nil

	case ModeAdditive:
		if s.AddWei == nil || s.AddWei.Sign() < 0 {
			return Bid{}, errors.New("additive fee strategy requires a non-negative addend")
		}
		b := networkBid(d)
		b.MaxFee.Add(b.MaxFee, s.AddWei)
		b.MaxPriorityFee.Add(b.MaxPriorityFee, s.AddWei)
		return b, nil

	case ModePercentage:
		if s.Percent < 0 {
			return Bid{}, errors.New("percentage fee strategy requires a non-negative percent")
		}
		b := networkBid(d)
		b.MaxFee = scalePercent(b.MaxFee, s.Percent)
		b.MaxPriorityFee = scalePercent(b.MaxPriorityFee, s.Percent)
		return b, nil
	}
	return Bid{}, fmt.Errorf("unknown fee mode %v", s.Mode)
}

// networkBid derives the pass-through pair. The fee cap follows the usual
// 2*baseFee+tip headroom formula so the bid survives a few base fee
// increases while it waits in flight.
//
// Fallback chain per field:
//   - tip: reported tip -> half the legacy gas price -> DefaultTipWei
//   - cap: 2*baseFee+tip -> legacy gas price (if >= tip) -> DefaultMaxFeeWei
func networkBid(d NetworkData) Bid {
	tip := new(big.Int)
	switch {
	case d.TipCap != nil && d.TipCap.Sign() > 0:
		tip.Set(d.TipCap)
	case d.GasPrice != nil && d.GasPrice.Sign() > 0:
		tip.Div(d.GasPrice, big.NewInt(2))
	default:
		tip.Set(DefaultTipWei)
	}

	cap := new(big.Int)
	switch {
	case d.BaseFee != nil && d.BaseFee.Sign() > 0:
		cap.Mul(d.BaseFee, big.NewInt(2))
		cap.Add(cap, tip)
	case d.GasPrice != nil && d.GasPrice.Sign() > 0 && d.GasPrice.Cmp(tip) >= 0:
		cap.Set(d.GasPrice)
	default:
		cap.Set(DefaultMaxFeeWei)
	}

	// The cap bounds the tip by definition of EIP-1559.
	if cap.Cmp(tip) < 0 {
		cap.Set(tip)
	}
	return Bid{MaxFee: cap, MaxPriorityFee: tip}
}

func scalePercent(x *big.Int, percent int64) *big.Int {
	out := new(big.Int).Mul(x, big.NewInt(100+percent))
	return out.Div(out, big.NewInt(100))
}

// Escalate bumps the priority fee by percent and raises the fee cap to
// keep covering it, clamped at capWei when non-nil. Used when a rejected
// submission is retried within the same firing window.
func Escalate(b Bid, percent int64, capWei *big.Int) Bid {
	tip := scalePercent(b.MaxPriorityFee, percent)
	fee := new(big.Int).Set(b.MaxFee)
	bump := new(big.Int).Sub(tip, b.MaxPriorityFee)
	fee.Add(fee, bump)

	if capWei != nil && capWei.Sign() > 0 && fee.Cmp(capWei) > 0 {
		fee.Set(capWei)
	}
	if tip.Cmp(fee) > 0 {
		tip.Set(fee)
	}
	return Bid{MaxFee: fee, MaxPriorityFee: tip}
}
