package chaintime

import (
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
)

// LocalView is the locally extrapolated counterpart of an EpochSample.
// It is derived, never read from the chain.
type LocalView struct {
	Epoch     idx.Epoch
	IntoEpoch time.Duration
	UntilNext time.Duration
}

// LocalClock anchors a wall-clock instant to the epoch position reported by
// the most recent chain sample and extrapolates between samples with plain
// arithmetic on elapsed time.
//
// The clock is owned and mutated by the single tick loop only; it requires
// no locking.
type LocalClock struct {
	anchorAt    time.Time
	anchorInto  time.Duration
	epochLength time.Duration
	epoch       idx.Epoch
	anchored    bool
}

// Reanchor unconditionally overwrites the anchor with a fresh chain sample.
// Called on every tick that manages a successful chain read.
func (c *LocalClock) Reanchor(s EpochSample) {
	c.anchorAt = s.SampledAt
	c.anchorInto = s.IntoEpoch
	c.epochLength = s.EpochLength
	c.epoch = s.Epoch
	c.anchored = true
}

// Anchored reports whether the clock has seen at least one sample.
// Before the first anchor, extrapolation is meaningless.
func (c *LocalClock) Anchored() bool { return c.anchored }

// Extrapolate projects the anchored epoch position forward to now.
//
// When the elapsed time rolls past one or more full epoch lengths, the
// epoch number advances by the integer number of elapsed lengths and the
// remainder becomes the new position. The projection never moves backward:
// a wall clock reading earlier than the anchor is clamped to the anchor.
func (c *LocalClock) Extrapolate(now time.Time) (LocalView, bool) {
	if !c.anchored || c.epochLength <= 0 {
		return LocalView{}, false
	}
	elapsed := now.Sub(c.anchorAt)
	if elapsed < 0 {
		elapsed = 0
	}
	pos := c.anchorInto + elapsed
	rolled := pos / c.epochLength
	pos -= rolled * c.epochLength
	return LocalView{
		Epoch:     c.epoch + idx.Epoch(rolled),
		IntoEpoch: pos,
		UntilNext: c.epochLength - pos,
	}, true
}

// Drift measures how far the local extrapolation disagrees with a fresh
// chain sample at the sample's own timestamp. Positive means the local
// clock ran ahead of the chain. Reported for operator visibility before
// the sample re-anchors the clock.
func (c *LocalClock) Drift(s EpochSample) (time.Duration, bool) {
	v, ok := c.Extrapolate(s.SampledAt)
	if !ok || v.Epoch != s.Epoch {
		return 0, false
	}
	return v.IntoEpoch - s.IntoEpoch, true
}
