// Package keyfinder implements the Key Finder (spec.md §4.2): it infers a
// global key from the raw pitch content of one or more parts, or validates
// a user-supplied key against the same two filters.
package keyfinder

import (
	"fmt"
	"strings"

	"westerline/internal/context"
	"westerline/internal/csd"
	"westerline/internal/pitch"
)

// scale-degree residues that belong to a tonic triad.
func isTriadResidue(residue int) bool {
	return residue == 0 || residue == 2 || residue == 4
}

// majorSpelling and minorSpelling give a conventional, double-accidental-free
// letter spelling for each of the 12 pitch classes. Only the pitch class
// (not the spelling) drives the filters below, so these tables exist purely
// so Key.String() prints something a reader would recognize, the same way
// theory.NoteNames does for the teacher's chord/scale display.
var majorSpelling = [12]string{"C", "Db", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}
var minorSpelling = [12]string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "G#", "A", "Bb", "B"}

func candidateKeys() []csd.Key {
	keys := make([]csd.Key, 0, 24)
	for pc := 0; pc < 12; pc++ {
		keys = append(keys, csd.Key{Tonic: spellTonic(majorSpelling[pc]), Mode: csd.Major})
		keys = append(keys, csd.Key{Tonic: spellTonic(minorSpelling[pc]), Mode: csd.Minor})
	}
	return keys
}

func spellTonic(name string) pitch.Pitch {
	return pitch.MustParsePitch(name + "4")
}

func pitchClass(p pitch.Pitch) int {
	return posMod(p.Semitone(), 12)
}

func posMod(x, n int) int {
	m := x % n
	if m < 0 {
		m += n
	}
	return m
}

// triadPitchClasses returns the root/third/fifth pitch classes of k's tonic
// triad.
func triadPitchClasses(k csd.Key) (root, third, fifth int) {
	root = pitchClass(k.Tonic)
	if k.Mode == csd.Minor {
		third = posMod(root+3, 12)
	} else {
		third = posMod(root+4, 12)
	}
	fifth = posMod(root+7, 12)
	return
}

// passesScaleFilter checks spec.md §4.2 "Scale/terminal filter" for one part
// against candidate key k: the first and last events must be tonic-triad
// pitches, every pitch must belong to k's scale, and every leap (skip
// consecution) must have at least one triad-pitch endpoint (the weak leap
// test).
func passesScaleFilter(raw []context.RawEvent, k csd.Key) bool {
	if len(raw) == 0 {
		return false
	}
	degrees := make([]csd.CSD, len(raw))
	for i, r := range raw {
		d, err := csd.Map(r.Pitch, k)
		if err != nil {
			return false
		}
		degrees[i] = d
	}
	if !isTriadResidue(degrees[0].Residue()) || !isTriadResidue(degrees[len(degrees)-1].Residue()) {
		return false
	}
	for i := 0; i+1 < len(raw); i++ {
		iv := pitch.IntervalBetween(raw[i].Pitch, raw[i+1].Pitch)
		if iv.IsStep() || iv.IsUnison() {
			continue
		}
		if !isTriadResidue(degrees[i].Residue()) && !isTriadResidue(degrees[i+1].Residue()) {
			return false
		}
	}
	return true
}

// hangingPitchClasses computes the set of pitch classes not closed off by a
// subsequent same-pitch or stepwise successor (spec.md §4.2 "Hanging-note
// filter"). This is key-independent: it is computed once per part and
// reused across every candidate.
func hangingPitchClasses(raw []context.RawEvent) map[int]bool {
	hanging := map[int]bool{}
	for i, r := range raw {
		pc := pitchClass(r.Pitch)
		if i == len(raw)-1 {
			hanging[pc] = true
			continue
		}
		next := raw[i+1]
		if pc == pitchClass(next.Pitch) {
			continue
		}
		if pitch.IntervalBetween(r.Pitch, next.Pitch).IsStep() {
			continue
		}
		hanging[pc] = true
	}
	return hanging
}

// passesHangingFilter checks that k's tonic triad (in any incomplete form —
// a bare tonic, a fifth or fourth, a third, or the full triad) covers every
// hanging pitch class.
func passesHangingFilter(hanging map[int]bool, k csd.Key) bool {
	root, third, fifth := triadPitchClasses(k)
	for pc := range hanging {
		if pc != root && pc != third && pc != fifth {
			return false
		}
	}
	return true
}

// endsOnTonic reports whether part's last event is a tonic-degree pitch
// under k. Used for tie-breaking (spec.md §4.2).
func endsOnTonic(raw []context.RawEvent, k csd.Key) bool {
	if len(raw) == 0 {
		return false
	}
	d, err := csd.Map(raw[len(raw)-1].Pitch, k)
	return err == nil && d.Residue() == 0
}

// FindKey infers the global key from parts' raw pitch content, per spec.md
// §4.2. Each of the 24 candidate tonic/mode pairs must pass both filters
// against every part; ties are broken by how many parts end on the
// candidate's tonic, then by preferring major. An error is returned if no
// candidate survives, or if more than one remains after tie-breaking.
func FindKey(parts [][]context.RawEvent) (csd.Key, error) {
	var surviving []csd.Key
	hangingByPart := make([]map[int]bool, len(parts))
	for i, p := range parts {
		hangingByPart[i] = hangingPitchClasses(p)
	}
	for _, k := range candidateKeys() {
		ok := true
		for i, p := range parts {
			if !passesScaleFilter(p, k) || !passesHangingFilter(hangingByPart[i], k) {
				ok = false
				break
			}
		}
		if ok {
			surviving = append(surviving, k)
		}
	}
	if len(surviving) == 0 {
		return csd.Key{}, fmt.Errorf("no key satisfies the scale and hanging-note filters for every part")
	}
	if len(surviving) == 1 {
		return surviving[0], nil
	}
	return breakTie(surviving, parts)
}

// breakTie implements spec.md §4.2's tie-break rule: prefer the candidate(s)
// with the most parts ending on their tonic degree, then prefer major on a
// same-tonic mode tie; otherwise the key is genuinely ambiguous.
func breakTie(candidates []csd.Key, parts [][]context.RawEvent) (csd.Key, error) {
	bestCount := -1
	var best []csd.Key
	for _, k := range candidates {
		count := 0
		for _, p := range parts {
			if endsOnTonic(p, k) {
				count++
			}
		}
		switch {
		case count > bestCount:
			bestCount = count
			best = []csd.Key{k}
		case count == bestCount:
			best = append(best, k)
		}
	}
	if len(best) == 1 {
		return best[0], nil
	}
	if sameTonic, ok := sameTonicDifferentMode(best); ok {
		for _, k := range sameTonic {
			if k.Mode == csd.Major {
				return k, nil
			}
		}
	}
	return csd.Key{}, fmt.Errorf("key is ambiguous among %s", describeKeys(best))
}

func sameTonicDifferentMode(keys []csd.Key) ([]csd.Key, bool) {
	if len(keys) != 2 {
		return nil, false
	}
	if pitchClass(keys[0].Tonic) != pitchClass(keys[1].Tonic) {
		return nil, false
	}
	if keys[0].Mode == keys[1].Mode {
		return nil, false
	}
	return keys, true
}

func describeKeys(keys []csd.Key) string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}

// ValidateKey reuses the same two filters to check a user-supplied key
// (spec.md §4.2 "Validation of a user-supplied key reuses the same
// filters"), returning a descriptive error naming the first part that
// fails.
func ValidateKey(parts [][]context.RawEvent, k csd.Key) error {
	for i, p := range parts {
		if !passesScaleFilter(p, k) {
			return fmt.Errorf("part %d is not consistent with %s: a terminal pitch is not a tonic-triad member, a pitch lies outside the scale, or a leap fails the weak leap test", i, k)
		}
		if !passesHangingFilter(hangingPitchClasses(p), k) {
			return fmt.Errorf("part %d is not consistent with %s: a hanging pitch is not covered by the tonic triad", i, k)
		}
	}
	return nil
}
