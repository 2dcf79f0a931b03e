// Package context builds the Global Context Builder's output (spec.md §2.4):
// per-event index/scale-degree/consecutions, per-part species detection,
// and per-measure local harmonic context for third-species parsing.
package context

import (
	"fmt"
	"math/big"
	"sort"

	"westerline/internal/csd"
	"westerline/internal/pitch"
)

// Manner classifies how one event is approached from, or departs to, its
// neighbor (spec.md §4.3 "Consecutions").
type Manner int

const (
	Same Manner = iota
	Step
	Skip
)

func (m Manner) String() string {
	switch m {
	case Same:
		return "same"
	case Step:
		return "step"
	default:
		return "skip"
	}
}

// Dir is the signed direction of an approach or departure.
type Dir int

const (
	NoDir Dir = iota
	Up
	Down
)

func (d Dir) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "none"
	}
}

// Consecutions is the left (approach) and right (departure) classification
// of a single event, per spec.md §4.3.
type Consecutions struct {
	LeftType       Manner
	LeftDirection  Dir
	RightType      Manner
	RightDirection Dir
}

// RawEvent is the input form of a pitched event, as supplied by score
// import (spec.md §6): a pitch, a rational onset offset and duration in
// quarter notes, a measure index, and a tie flag.
type RawEvent struct {
	Pitch       pitch.Pitch
	OnsetOffset *big.Rat
	Duration    *big.Rat
	Measure     int
	TiedToNext  bool
}

// Event is a pitched event enriched with its index, scale-degree, and
// consecutions (spec.md §3 "Pitch event E").
type Event struct {
	Index        int
	Pitch        pitch.Pitch
	OnsetOffset  *big.Rat
	Duration     *big.Rat
	Measure      int
	TiedToNext   bool
	CSD          csd.CSD
	Consecutions Consecutions
}

// Species is the rhythmic category governing which parser/checker rules
// apply (spec.md §4.4, GLOSSARY "Species").
type Species int

const (
	Species1 Species = iota + 1
	Species2
	Species3
	Species4
	Species5
)

// Part is an ordered sequence of events, its detected species, and an
// error collector for parse diagnostics (spec.md §3 "Part").
type Part struct {
	Events  []Event
	Species Species
	Errors  []PartError
}

// PartError is a diagnostic keyed by event index (spec.md §7 "Parse
// errors").
type PartError struct {
	EventIndex int
	Message    string
}

func (e PartError) Error() string { return e.Message }

// MeasureHarmony is the active triad context for one measure, derived in
// BuildLocalHarmony (spec.md §4.7). Root/Third/Fifth are scale-degree
// residues (0..6) relative to the global key; Empty is true when no
// consistent triadic reading could be derived (e.g. the first measure of
// an unaccompanied analysis).
type MeasureHarmony struct {
	Measure int
	Root    int
	Third   int
	Fifth   int
	Empty   bool
}

// BuildPart computes CSDs and consecutions for a raw event sequence in key
// k, returning the resulting Part. A pitch that fails the scale-degree
// mapper produces a PartError rather than aborting the whole part, so that
// later parse stages can report the shallowest failure (spec.md §4.5
// "Termination").
func BuildPart(raw []RawEvent, k csd.Key) *Part {
	p := &Part{Events: make([]Event, len(raw))}
	for i, r := range raw {
		ev := Event{
			Index:       i,
			Pitch:       r.Pitch,
			OnsetOffset: r.OnsetOffset,
			Duration:    r.Duration,
			Measure:     r.Measure,
			TiedToNext:  r.TiedToNext,
		}
		degree, err := csd.Map(r.Pitch, k)
		if err != nil {
			p.Errors = append(p.Errors, PartError{
				EventIndex: i,
				Message: fmt.Sprintf("the non-tonic-triad pitch %s in measure %d cannot be generated: %v",
					r.Pitch.String(), r.Measure, err),
			})
		}
		ev.CSD = degree
		p.Events[i] = ev
	}
	computeConsecutions(p.Events)
	p.Species = detectSpecies(raw)
	return p
}

func computeConsecutions(events []Event) {
	for i := range events {
		if i > 0 {
			m, d := classify(events[i-1].CSD.Value, events[i].CSD.Value)
			events[i].Consecutions.LeftType = m
			events[i].Consecutions.LeftDirection = d
			events[i-1].Consecutions.RightType = m
			events[i-1].Consecutions.RightDirection = d
		}
	}
}

func classify(fromValue, toValue int) (Manner, Dir) {
	delta := toValue - fromValue
	dir := NoDir
	if delta > 0 {
		dir = Up
	} else if delta < 0 {
		dir = Down
	}
	switch {
	case delta == 0:
		return Same, dir
	case delta == 1 || delta == -1:
		return Step, dir
	default:
		return Skip, dir
	}
}

// detectSpecies infers species from the per-measure count of onsets,
// following spec.md §4.4: 1/measure -> 1st, 2/measure -> 2nd, 4/measure ->
// 3rd, syncopated ties -> 4th, a mix of the above -> 5th.
func detectSpecies(raw []RawEvent) Species {
	counts := map[int]int{}
	measures := []int{}
	hasTie := false
	for _, r := range raw {
		if counts[r.Measure] == 0 {
			measures = append(measures, r.Measure)
		}
		counts[r.Measure]++
		if r.TiedToNext {
			hasTie = true
		}
	}
	sort.Ints(measures)

	distinct := map[int]bool{}
	for _, m := range measures {
		distinct[counts[m]] = true
	}
	if hasTie && len(distinct) <= 2 {
		return Species4
	}
	if len(distinct) > 1 {
		return Species5
	}
	switch {
	case distinct[1]:
		return Species1
	case distinct[2]:
		return Species2
	case distinct[4]:
		return Species3
	default:
		return Species5
	}
}

// BuildLocalHarmony derives the per-measure active triad from the downbeat
// pitches sounding across all parts (spec.md §4.7). It is used only by the
// parser in species 3 and above.
func BuildLocalHarmony(parts []*Part, k csd.Key) []MeasureHarmony {
	downbeats := map[int][]csd.CSD{}
	var measures []int
	for _, part := range parts {
		for _, ev := range part.Events {
			if ev.OnsetOffset != nil && ev.OnsetOffset.Sign() == 0 {
				if _, seen := downbeats[ev.Measure]; !seen {
					measures = append(measures, ev.Measure)
				}
				downbeats[ev.Measure] = append(downbeats[ev.Measure], ev.CSD)
			}
		}
	}
	sort.Ints(measures)

	result := make([]MeasureHarmony, 0, len(measures))
	for _, m := range measures {
		residues := map[int]bool{}
		for _, d := range downbeats[m] {
			residues[d.Residue()] = true
		}
		h := triadFromResidues(residues)
		h.Measure = m
		result = append(result, h)
	}
	return result
}

// triadFromResidues tries to read a consonant triad (root-third-fifth, in
// any inversion) out of the given set of scale-degree residues.
func triadFromResidues(residues map[int]bool) MeasureHarmony {
	for root := 0; root < 7; root++ {
		third := (root + 2) % 7
		fifth := (root + 4) % 7
		if residues[root] && residues[third] && residues[fifth] {
			return MeasureHarmony{Root: root, Third: third, Fifth: fifth}
		}
	}
	// No complete triad on the downbeat: report Empty. No reading is
	// derived from later stepwise resolutions, and the parser skips its
	// harmonic check for such a measure.
	return MeasureHarmony{Empty: true}
}
