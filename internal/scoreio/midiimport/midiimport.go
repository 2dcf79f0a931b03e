// Package midiimport implements a scoreio.Importer that reads a Standard
// MIDI File, the default way this module accepts a score (spec.md §6
// "Score import (external)"). It is grounded on the teacher's own SMF
// handling in midi/generator.go, read in reverse: that file builds an SMF
// track-by-track with gitlab.com/gomidi/midi/v2/smf; this one walks an SMF
// the same library reads back, track-by-track, into pitched events.
package midiimport

import (
	"fmt"
	"math/big"

	"gitlab.com/gomidi/midi/v2/smf"

	"westerline/internal/pitch"
	"westerline/internal/scoreio"
)

// Importer reads one track per part, in file order (top to bottom, per
// spec.md §6), assuming (as the teacher's own generator does for writing)
// a 4/4 time signature and one monophonic line per track.
type Importer struct{}

// Import implements scoreio.Importer.
func (Importer) Import(path string) ([][]scoreio.Event, error) {
	rd, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("midiimport: reading %s: %w", path, err)
	}
	ticksPerQuarter, err := quarterTicks(rd.TimeFormat)
	if err != nil {
		return nil, fmt.Errorf("midiimport: %s: %w", path, err)
	}

	var parts [][]scoreio.Event
	for _, track := range rd.Tracks {
		events, err := trackToLine(track, ticksPerQuarter)
		if err != nil {
			return nil, fmt.Errorf("midiimport: %s: %w", path, err)
		}
		if len(events) == 0 {
			continue
		}
		parts = append(parts, events)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("midiimport: %s contains no note events", path)
	}
	return parts, nil
}

func quarterTicks(tf smf.TimeFormat) (uint32, error) {
	mt, ok := tf.(smf.MetricTicks)
	if !ok {
		return 0, fmt.Errorf("only metric-ticks SMF files are supported")
	}
	return uint32(mt.Ticks4th()), nil
}

// trackToLine converts one SMF track into a monophonic sequence of events,
// assuming 4/4 (ticksPerBar = 4*ticksPerQuarter, the same assumption the
// teacher's generator hard-codes when writing chord tracks).
func trackToLine(track smf.Track, ticksPerQuarter uint32) ([]scoreio.Event, error) {
	ticksPerBar := 4 * ticksPerQuarter
	var events []scoreio.Event
	var tick uint32
	openNote := -1
	var openTick uint32

	for _, te := range track {
		tick += te.Delta
		var ch, key, vel uint8
		switch {
		case te.Message.GetNoteOn(&ch, &key, &vel) && vel > 0:
			if openNote >= 0 {
				return nil, fmt.Errorf("overlapping notes in one track at tick %d (a line must be monophonic)", tick)
			}
			openNote = int(key)
			openTick = tick
		case te.Message.GetNoteOff(&ch, &key, &vel), te.Message.GetNoteOn(&ch, &key, &vel) && vel == 0:
			if openNote < 0 || int(key) != openNote {
				continue
			}
			onsetQuarters := big.NewRat(int64(openTick), int64(ticksPerQuarter))
			durationQuarters := big.NewRat(int64(tick-openTick), int64(ticksPerQuarter))
			measure := int(openTick / ticksPerBar)
			onsetInMeasure := new(big.Rat).Sub(onsetQuarters, big.NewRat(int64(measure)*4, 1))
			events = append(events, scoreio.Event{
				Pitch:       noteToPitch(key),
				OnsetOffset: onsetInMeasure,
				Duration:    durationQuarters,
				Measure:     measure,
			})
			openNote = -1
		}
	}
	if openNote >= 0 {
		return nil, fmt.Errorf("track has a note-on with no matching note-off")
	}
	return events, nil
}

// pitchSpelling is the sharps-only letter/accidental pair for each pitch
// class 0..11 relative to C. MIDI carries no spelling information, so this
// is the importer's own simplifying convention (documented as an Open
// Question in DESIGN.md), not a property of internal/pitch.
var pitchSpelling = [12]struct {
	letter byte
	acc    int
}{
	{'C', 0}, {'C', 1}, {'D', 0}, {'D', 1}, {'E', 0}, {'F', 0},
	{'F', 1}, {'G', 0}, {'G', 1}, {'A', 0}, {'A', 1}, {'B', 0},
}

// noteToPitch converts a MIDI key number (60 = middle C = C4) to a spelled
// pitch.Pitch.
func noteToPitch(note uint8) pitch.Pitch {
	rel := int(note) - 60
	pc := posMod(rel, 12)
	octave := 4 + floorDiv(rel, 12)
	s := pitchSpelling[pc]
	return pitch.Pitch{Letter: s.letter, Accidental: s.acc, Octave: octave}
}

func posMod(x, n int) int {
	m := x % n
	if m < 0 {
		m += n
	}
	return m
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
