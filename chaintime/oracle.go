package chaintime

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrChainUnavailable is returned when the node cannot be reached or
	// reports fields that make no sense (zero epoch length, nil header).
	ErrChainUnavailable = errors.New("chain unavailable")

	// ErrBeforeGenesis is returned by the genesis-time model when the chain
	// head's timestamp predates the configured genesis instant.
	ErrBeforeGenesis = errors.New("head timestamp before genesis")
)

// Model selects which of the three equivalent epoch derivations the oracle
// runs. Exactly one model is active per deployment; they differ only in
// which chain quantity anchors the arithmetic.
type Model int

const (
	// ModelGenesis derives the epoch from the head block timestamp measured
	// against a known genesis instant and a fixed epoch duration.
	ModelGenesis Model = iota

	// ModelBlockCount derives the epoch from the head block number with a
	// fixed number of blocks per epoch and a fixed seconds-per-block.
	ModelBlockCount

	// ModelSlot derives the epoch from a slot counter exposed by an
	// on-chain beacon contract (slots per epoch x slot duration).
	ModelSlot
)

func (m Model) String() string {
	switch m {
	case ModelGenesis:
		return "genesis"
	case ModelBlockCount:
		return "blockcount"
	case ModelSlot:
		return "slot"
	}
	return fmt.Sprintf("model(%d)", int(m))
}

// ModelFromString parses the configuration spelling of a Model.
func ModelFromString(s string) (Model, error) {
	switch s {
	case "genesis":
		return ModelGenesis, nil
	case "blockcount":
		return ModelBlockCount, nil
	case "slot":
		return ModelSlot, nil
	}
	return 0, fmt.Errorf("unknown epoch model %q", s)
}

// HeadReader is the narrow slice of an RPC client the header-based models
// need. *ethclient.Client satisfies it.
type HeadReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// SlotReader exposes the beacon contract surface the slot model needs.
// contracts/beacon.Beacon satisfies it.
type SlotReader interface {
	CurrentSlot(ctx context.Context) (uint64, error)
	SlotDurationSeconds(ctx context.Context) (uint64, error)
	SlotsPerEpoch(ctx context.Context) (uint64, error)
}

// Oracle reads the chain and reduces it to an EpochSample. It has no side
// effects and keeps no state between calls.
type Oracle struct {
	model Model

	heads HeadReader
	slots SlotReader

	// genesis model
	genesis     time.Time
	epochLength time.Duration

	// block-count model
	blocksPerEpoch  uint64
	secondsPerBlock time.Duration

	// now is stubbed in tests; it stamps SampledAt only, never feeds the
	// epoch arithmetic.
	now func() time.Time
}

// NewGenesisOracle builds an oracle for the genesis+fixed-duration model.
func NewGenesisOracle(heads HeadReader, genesis time.Time, epochLength time.Duration) *Oracle {
	return &Oracle{
		model:       ModelGenesis,
		heads:       heads,
		genesis:     genesis,
		epochLength: epochLength,
		now:         time.Now,
	}
}

// NewBlockCountOracle builds an oracle for the fixed-blocks-per-epoch model.
func NewBlockCountOracle(heads HeadReader, blocksPerEpoch uint64, secondsPerBlock time.Duration) *Oracle {
	return &Oracle{
		model:           ModelBlockCount,
		heads:           heads,
		blocksPerEpoch:  blocksPerEpoch,
		secondsPerBlock: secondsPerBlock,
		now:             time.Now,
	}
}

// NewSlotOracle builds an oracle for the beacon slot-counter model.
func NewSlotOracle(slots SlotReader) *Oracle {
	return &Oracle{
		model: ModelSlot,
		slots: slots,
		now:   time.Now,
	}
}

// Model returns the derivation model the oracle was built with.
func (o *Oracle) Model() Model { return o.model }

// Sample reads the chain once and derives the current epoch position.
// It fails with ErrChainUnavailable when the read fails or yields
// inconsistent fields, and with ErrBeforeGenesis under the genesis model
// when the head predates the genesis instant.
func (o *Oracle) Sample(ctx context.Context) (EpochSample, error) {
	var (
		s   EpochSample
		err error
	)
	switch o.model {
	case ModelGenesis:
		s, err = o.sampleGenesis(ctx)
	case ModelBlockCount:
		s, err = o.sampleBlockCount(ctx)
	case ModelSlot:
		s, err = o.sampleSlot(ctx)
	default:
		return EpochSample{}, fmt.Errorf("%w: unknown model %v", ErrChainUnavailable, o.model)
	}
	if err != nil {
		return EpochSample{}, err
	}
	if !s.Valid() {
		return EpochSample{}, fmt.Errorf("%w: derived sample out of range (into=%v length=%v)",
			ErrChainUnavailable, s.IntoEpoch, s.EpochLength)
	}
	return s, nil
}

func (o *Oracle) head(ctx context.Context) (*types.Header, error) {
	h, err := o.heads.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: head read: %v", ErrChainUnavailable, err)
	}
	if h == nil || h.Number == nil {
		return nil, fmt.Errorf("%w: nil head", ErrChainUnavailable)
	}
	return h, nil
}

func (o *Oracle) sampleGenesis(ctx context.Context) (EpochSample, error) {
	if o.epochLength <= 0 {
		return EpochSample{}, fmt.Errorf("%w: epoch length %v", ErrChainUnavailable, o.epochLength)
	}
	h, err := o.head(ctx)
	if err != nil {
		return EpochSample{}, err
	}
	headTime := time.Unix(int64(h.Time), 0)
	if headTime.Before(o.genesis) {
		return EpochSample{}, fmt.Errorf("%w: head=%v genesis=%v", ErrBeforeGenesis, headTime.UTC(), o.genesis.UTC())
	}
	elapsed := headTime.Sub(o.genesis)
	return EpochSample{
		Epoch:       idx.Epoch(elapsed / o.epochLength),
		IntoEpoch:   elapsed % o.epochLength,
		EpochLength: o.epochLength,
		SampledAt:   o.now(),
	}, nil
}

func (o *Oracle) sampleBlockCount(ctx context.Context) (EpochSample, error) {
	if o.blocksPerEpoch == 0 || o.secondsPerBlock <= 0 {
		return EpochSample{}, fmt.Errorf("%w: blocksPerEpoch=%d secondsPerBlock=%v",
			ErrChainUnavailable, o.blocksPerEpoch, o.secondsPerBlock)
	}
	h, err := o.head(ctx)
	if err != nil {
		return EpochSample{}, err
	}
	n := h.Number.Uint64()
	return EpochSample{
		Epoch:       idx.Epoch(n / o.blocksPerEpoch),
		IntoEpoch:   time.Duration(n%o.blocksPerEpoch) * o.secondsPerBlock,
		EpochLength: time.Duration(o.blocksPerEpoch) * o.secondsPerBlock,
		SampledAt:   o.now(),
	}, nil
}

func (o *Oracle) sampleSlot(ctx context.Context) (EpochSample, error) {
	slot, err := o.slots.CurrentSlot(ctx)
	if err != nil {
		return EpochSample{}, fmt.Errorf("%w: currentSlot: %v", ErrChainUnavailable, err)
	}
	slotDur, err := o.slots.SlotDurationSeconds(ctx)
	if err != nil {
		return EpochSample{}, fmt.Errorf("%w: slotDuration: %v", ErrChainUnavailable, err)
	}
	perEpoch, err := o.slots.SlotsPerEpoch(ctx)
	if err != nil {
		return EpochSample{}, fmt.Errorf("%w: slotsPerEpoch: %v", ErrChainUnavailable, err)
	}
	if slotDur == 0 || perEpoch == 0 {
		return EpochSample{}, fmt.Errorf("%w: slotDuration=%d slotsPerEpoch=%d",
			ErrChainUnavailable, slotDur, perEpoch)
	}
	d := time.Duration(slotDur) * time.Second
	return EpochSample{
		Epoch:       idx.Epoch(slot / perEpoch),
		IntoEpoch:   time.Duration(slot%perEpoch) * d,
		EpochLength: time.Duration(perEpoch) * d,
		SampledAt:   o.now(),
	}, nil
}
