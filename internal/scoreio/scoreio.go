// Package scoreio defines the Score import external interface (spec.md §6
// "Score import (external)"): a stream of pitched events per part, ordered
// top to bottom, that any importer produces and the rest of this module
// consumes identically regardless of source format.
package scoreio

import (
	"math/big"

	"westerline/internal/context"
	"westerline/internal/pitch"
)

// Event is one pitched event as supplied by score import: a spelled pitch,
// a rational onset offset and duration in quarter notes, a measure index,
// and a tie flag (spec.md §6).
type Event struct {
	Pitch       pitch.Pitch
	OnsetOffset *big.Rat
	Duration    *big.Rat
	Measure     int
	TiedToNext  bool
}

// Importer reads a score from some external representation into parts of
// Event, top part first.
type Importer interface {
	Import(path string) ([][]Event, error)
}

// ToRawEvents converts one part's imported events into the context
// package's RawEvent form, the input to context.BuildPart.
func ToRawEvents(events []Event) []context.RawEvent {
	raw := make([]context.RawEvent, len(events))
	for i, e := range events {
		raw[i] = context.RawEvent{
			Pitch:       e.Pitch,
			OnsetOffset: e.OnsetOffset,
			Duration:    e.Duration,
			Measure:     e.Measure,
			TiedToNext:  e.TiedToNext,
		}
	}
	return raw
}
