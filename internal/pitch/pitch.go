// Package pitch provides the pitch-name and diatonic-interval arithmetic that
// the rest of this module treats as a narrow, swappable primitive layer (see
// SPEC_FULL.md, "Pitch/Interval Primitives").
package pitch

import (
	"fmt"
	"strconv"
	"strings"
)

// letterSemitone is the semitone offset of each natural letter above C.
var letterSemitone = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// letterOrder gives each letter's position in the diatonic alphabet, C=0.
var letterOrder = map[byte]int{
	'C': 0, 'D': 1, 'E': 2, 'F': 3, 'G': 4, 'A': 5, 'B': 6,
}

var orderLetter = [7]byte{'C', 'D', 'E', 'F', 'G', 'A', 'B'}

// Pitch is a spelled pitch: a letter name, an accidental (in semitones,
// negative for flats), and an octave number (scientific pitch notation,
// middle C = C4).
type Pitch struct {
	Letter     byte
	Accidental int
	Octave     int
}

// ParsePitch parses strings like "C4", "F#3", "Bb5", "Eb-1". The accidental
// run may contain multiple '#'/'b' characters ("Cx" style double sharps are
// written "C##").
func ParsePitch(s string) (Pitch, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return Pitch{}, fmt.Errorf("pitch: empty string")
	}
	letter := byte(strings.ToUpper(s[:1])[0])
	if _, ok := letterOrder[letter]; !ok {
		return Pitch{}, fmt.Errorf("pitch: invalid letter name %q", s[:1])
	}
	rest := s[1:]
	acc := 0
	i := 0
	for i < len(rest) && (rest[i] == '#' || rest[i] == 'b') {
		if rest[i] == '#' {
			acc++
		} else {
			acc--
		}
		i++
	}
	octStr := rest[i:]
	if octStr == "" {
		return Pitch{}, fmt.Errorf("pitch: missing octave in %q", s)
	}
	oct, err := strconv.Atoi(octStr)
	if err != nil {
		return Pitch{}, fmt.Errorf("pitch: invalid octave in %q: %w", s, err)
	}
	return Pitch{Letter: letter, Accidental: acc, Octave: oct}, nil
}

// MustParsePitch is ParsePitch, panicking on error. Intended for fixtures and
// tests, not for untrusted input.
func MustParsePitch(s string) Pitch {
	p, err := ParsePitch(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Semitone returns the absolute semitone number with C4 = 48 as the origin
// (an arbitrary but stable reference; only differences between Semitone
// values are meaningful).
func (p Pitch) Semitone() int {
	return letterSemitone[p.Letter] + p.Accidental + (p.Octave-4)*12 + 48
}

// DiatonicStep returns the absolute, octave-extended letter position, with
// C4 = 28 as the origin. It ignores accidentals, so C4 and C#4 share a step.
// Differences between DiatonicStep values count generic (diatonic) interval
// distance, e.g. step(E4)-step(C4) == 2 (a third).
func (p Pitch) DiatonicStep() int {
	return letterOrder[p.Letter] + (p.Octave-4)*7 + 28
}

// String renders the pitch back to the letter+accidental+octave form
// ParsePitch accepts.
func (p Pitch) String() string {
	acc := ""
	if p.Accidental > 0 {
		acc = strings.Repeat("#", p.Accidental)
	} else if p.Accidental < 0 {
		acc = strings.Repeat("b", -p.Accidental)
	}
	return fmt.Sprintf("%c%s%d", p.Letter, acc, p.Octave)
}

// Equal reports whether two pitches name the same letter, accidental and
// octave (not merely the same sounding pitch — use Semitone for that).
func (p Pitch) Equal(o Pitch) bool {
	return p.Letter == o.Letter && p.Accidental == o.Accidental && p.Octave == o.Octave
}

// SamePitchClass reports whether two pitches sound the same modulo octave.
func (p Pitch) SamePitchClass(o Pitch) bool {
	return posMod(p.Semitone(), 12) == posMod(o.Semitone(), 12)
}

// Interval is a generic (letter-counted) interval between two pitches,
// together with the chromatic (semitone) distance that realizes it. Number
// follows common-practice naming: 1 = unison, 2 = second, ... Quality is the
// signed deviation in semitones from the diatonic/perfect-or-major size, so a
// minor third is {Number: 3, Quality: -1} and an augmented fourth is
// {Number: 4, Quality: 1}.
type Interval struct {
	Number  int // 1-based generic size; negative for descending intervals
	Quality int // semitone deviation from the unaltered diatonic interval
}

// IntervalBetween computes the interval from a to b (b above a when positive).
func IntervalBetween(a, b Pitch) Interval {
	diatonic := b.DiatonicStep() - a.DiatonicStep()
	chromatic := b.Semitone() - a.Semitone()
	sign := 1
	if diatonic < 0 {
		sign = -1
	}
	absDiatonic := diatonic * sign
	number := absDiatonic + 1
	naturalSemitones := diatonicSizeSemitones(absDiatonic % 7) + (absDiatonic/7)*12
	quality := (chromatic * sign) - naturalSemitones
	if sign < 0 {
		number = -number
	}
	return Interval{Number: number, Quality: quality}
}

// diatonicSizeSemitones gives the semitone size of an unaltered ascending
// generic interval 0..6 (0=unison .. 6=seventh) measured from a major scale.
func diatonicSizeSemitones(genericSize int) int {
	majorScaleSemis := [7]int{0, 2, 4, 5, 7, 9, 11}
	return majorScaleSemis[genericSize]
}

// AbsNumber returns the unsigned generic interval size (third, fifth, ...).
func (iv Interval) AbsNumber() int {
	if iv.Number < 0 {
		return -iv.Number
	}
	return iv.Number
}

// IsStep reports whether the interval is a generic second (a diatonic step);
// unisons are reported by IsUnison, not here.
func (iv Interval) IsStep() bool {
	return iv.AbsNumber() == 2
}

// IsUnison reports a generic unison (same letter), regardless of accidental.
func (iv Interval) IsUnison() bool {
	return iv.AbsNumber() == 1
}

// Transpose returns the pitch obtained by moving p up (or down, if steps is
// negative) by the given number of diatonic steps within the given key's
// scale-letter spelling convention, adjusted by semitones to land exactly
// semitoneDelta chromatic steps away. It is used by the CSD mapper to
// reconstruct a pitch from a scale degree value.
func Transpose(p Pitch, diatonicSteps int, semitoneDelta int) Pitch {
	newStepAbs := p.DiatonicStep() + diatonicSteps
	letterIdx := posMod(newStepAbs, 7)
	octave := floorDiv(newStepAbs-28, 7) + 4
	letter := orderLetter[letterIdx]
	base := Pitch{Letter: letter, Accidental: 0, Octave: octave}
	wantSemitone := p.Semitone() + semitoneDelta
	base.Accidental = wantSemitone - base.Semitone()
	return base
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
