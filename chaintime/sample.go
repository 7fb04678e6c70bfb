// Package chaintime derives the bot's notion of "where are we inside the
// current epoch" from two clocks: the authoritative chain head (Oracle) and
// a locally extrapolated clock anchored to the last chain reading
// (LocalClock).
//
// The chain is the source of truth but is expensive and rate-limited to
// query, and its head can lag real time by a block or two. The local clock
// fills the gaps between chain readings with plain wall-clock arithmetic,
// and is re-anchored on every fresh reading so drift stays bounded.
package chaintime

import (
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
)

// EpochSample is one authoritative reading of the chain's epoch position.
// Samples are immutable; a fresh one is taken on every poll tick and the
// previous one is kept only as a fallback for ticks where the chain read
// fails.
type EpochSample struct {
	// Epoch is the epoch number the chain head falls into.
	Epoch idx.Epoch

	// IntoEpoch is the elapsed time since the start of Epoch.
	// Invariant: 0 <= IntoEpoch < EpochLength.
	IntoEpoch time.Duration

	// EpochLength is the full duration of one epoch on this network.
	EpochLength time.Duration

	// SampledAt is the local wall-clock instant the reading was taken.
	// It is the anchor point for local extrapolation, not a chain value.
	SampledAt time.Time
}

// UntilNext returns the time remaining until the next epoch boundary,
// as seen by this sample.
func (s EpochSample) UntilNext() time.Duration {
	return s.EpochLength - s.IntoEpoch
}

// Valid reports whether the sample satisfies the position invariant.
// A sample violating it indicates an inconsistent chain read and must not
// be used for scheduling.
func (s EpochSample) Valid() bool {
	return s.EpochLength > 0 && s.IntoEpoch >= 0 && s.IntoEpoch < s.EpochLength
}
