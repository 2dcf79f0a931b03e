// Package voiceleading implements the Voice-Leading Checker (spec.md
// §4.8): a purely diagnostic pass over aligned part streams that reports
// parallel/hidden perfect consonances, unprepared dissonances, voice
// crossing and overlap, disallowed leaps, and species-specific rhythmic
// violations. It never modifies its input.
package voiceleading

import (
	"fmt"
	"math/big"
	"sort"

	"westerline/internal/arc"
	"westerline/internal/context"
	"westerline/internal/pitch"
)

// PartInput bundles one part's events (ordered low to high when multiple
// parts are checked, so adjacent-part crossing/overlap checks are
// meaningful) with the rule labels its chosen interpretation assigned, used
// to judge whether a dissonance is a licensed passing/neighbor/suspension
// tone.
type PartInput struct {
	Name    string
	Events  []context.Event
	Labels  map[int]arc.Rule
	Species context.Species
}

// Violation is one diagnosed rule breach (spec.md §4.8 "Each violation
// records the bar number(s), parts involved, and a short human-readable
// message").
type Violation struct {
	Measures []int
	Parts    []string
	Message  string
}

// Check runs every rule in spec.md §4.8 across all parts and returns every
// violation found, in deterministic order (by first measure; within a
// measure, the per-part checks for leaps, strong-beat consonance and
// suspensions come before the pairwise checks for perfects, dissonance
// and crossing).
func Check(parts []PartInput) []Violation {
	var out []Violation
	for i := 0; i < len(parts); i++ {
		out = append(out, disallowedLeaps(parts[i])...)
		out = append(out, strongBeatConsonance(i, parts)...)
		out = append(out, suspensionPattern(parts[i])...)
	}
	for i := 0; i < len(parts); i++ {
		for j := i + 1; j < len(parts); j++ {
			tl := buildTimeline(parts[i].Events, parts[j].Events)
			out = append(out, parallelAndHiddenPerfects(parts[i], parts[j], tl)...)
			out = append(out, dissonanceTreatment(parts[i], parts[j], tl)...)
			if j == i+1 {
				out = append(out, crossingAndOverlap(parts[i], parts[j], tl)...)
			}
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		am, bm := firstMeasure(out[a]), firstMeasure(out[b])
		return am < bm
	})
	return out
}

func firstMeasure(v Violation) int {
	if len(v.Measures) == 0 {
		return 0
	}
	m := v.Measures[0]
	for _, x := range v.Measures[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// timelinePoint is one simultaneity: the absolute position, and the index
// each part has sounding at that instant (-1 for a part whose first onset
// comes later; durations are not consulted, so a part's last event counts
// as sounding until its next onset).
type timelinePoint struct {
	offset    *big.Rat
	indexA    int
	indexB    int
}

func absOffset(ev context.Event) *big.Rat {
	pos := new(big.Rat).SetInt64(int64(ev.Measure))
	if ev.OnsetOffset != nil {
		pos.Add(pos, ev.OnsetOffset)
	}
	return pos
}

func absEnd(ev context.Event) *big.Rat {
	end := absOffset(ev)
	if ev.Duration != nil {
		end = new(big.Rat).Add(end, ev.Duration)
	}
	return end
}

// soundingAt returns the index of the event in events that is sounding at
// position t (the last event whose onset is <= t), or -1 before the first
// onset.
func soundingAt(events []context.Event, t *big.Rat) int {
	best := -1
	for i, ev := range events {
		if absOffset(ev).Cmp(t) <= 0 {
			best = i
		} else {
			break
		}
	}
	return best
}

// buildTimeline merges the onsets of two parts into one sorted sequence of
// simultaneities, so that species with differing note densities (e.g.
// second species against first) can still be compared pairwise.
func buildTimeline(a, b []context.Event) []timelinePoint {
	seen := map[string]*big.Rat{}
	var offsets []*big.Rat
	add := func(r *big.Rat) {
		key := r.RatString()
		if _, ok := seen[key]; !ok {
			seen[key] = r
			offsets = append(offsets, r)
		}
	}
	for _, ev := range a {
		add(absOffset(ev))
	}
	for _, ev := range b {
		add(absOffset(ev))
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i].Cmp(offsets[j]) < 0 })

	tl := make([]timelinePoint, 0, len(offsets))
	for _, o := range offsets {
		tl = append(tl, timelinePoint{offset: o, indexA: soundingAt(a, o), indexB: soundingAt(b, o)})
	}
	return tl
}

// genericClass folds a generic interval to its single-octave class: 1 =
// unison/octave, 5 = fifth, etc.
func genericClass(iv pitch.Interval) int {
	n := iv.AbsNumber()
	return (n-1)%7 + 1
}

func isPerfectFifthOrOctave(iv pitch.Interval) bool {
	if iv.Quality != 0 {
		return false
	}
	c := genericClass(iv)
	return c == 1 || c == 5
}

// consonant reports whether iv belongs to spec.md §4.8's consonant set
// {P1, m3, M3, P5, m6, M6, P8}.
func consonant(iv pitch.Interval) bool {
	c := genericClass(iv)
	switch c {
	case 1: // unison or octave
		return iv.Quality == 0
	case 3: // third
		return iv.Quality == 0 || iv.Quality == -1
	case 5: // fifth
		return iv.Quality == 0
	case 6: // sixth
		return iv.Quality == 0 || iv.Quality == -1
	default:
		return false
	}
}

func direction(a, b pitch.Pitch) int {
	d := pitch.IntervalBetween(a, b)
	switch {
	case d.Number > 0 && d.AbsNumber() > 1:
		return 1
	case d.Number < 0 && d.AbsNumber() > 1:
		return -1
	default:
		return 0
	}
}

// parallelAndHiddenPerfects implements spec.md §4.8's first bullet: parallel
// perfect fifths/octaves, and hidden (direct) perfects approached by similar
// motion with a leap in the upper voice.
func parallelAndHiddenPerfects(lower, upper PartInput, tl []timelinePoint) []Violation {
	var out []Violation
	for i := 1; i < len(tl); i++ {
		prev, cur := tl[i-1], tl[i]
		if prev.indexA < 0 || prev.indexB < 0 || cur.indexA < 0 || cur.indexB < 0 {
			continue
		}
		prevLow, prevHigh := lower.Events[prev.indexA].Pitch, upper.Events[prev.indexB].Pitch
		curLow, curHigh := lower.Events[cur.indexA].Pitch, upper.Events[cur.indexB].Pitch
		prevIv := pitch.IntervalBetween(prevLow, prevHigh)
		curIv := pitch.IntervalBetween(curLow, curHigh)
		if !isPerfectFifthOrOctave(curIv) {
			continue
		}
		lowDir := direction(prevLow, curLow)
		highDir := direction(prevHigh, curHigh)
		if lowDir == 0 || highDir == 0 || lowDir != highDir {
			continue
		}
		if isPerfectFifthOrOctave(prevIv) && genericClass(prevIv) == genericClass(curIv) {
			out = append(out, Violation{
				Measures: []int{lower.Events[cur.indexA].Measure},
				Parts:    []string{lower.Name, upper.Name},
				Message:  fmt.Sprintf("parallel perfect %s between %s and %s into measure %d", perfectName(curIv), lower.Name, upper.Name, lower.Events[cur.indexA].Measure),
			})
			continue
		}
		upperLeap := pitch.IntervalBetween(prevHigh, curHigh).IsStep() == false && !pitch.IntervalBetween(prevHigh, curHigh).IsUnison()
		if upperLeap {
			out = append(out, Violation{
				Measures: []int{lower.Events[cur.indexA].Measure},
				Parts:    []string{lower.Name, upper.Name},
				Message:  fmt.Sprintf("hidden perfect %s between %s and %s approached by a leap in %s at measure %d", perfectName(curIv), lower.Name, upper.Name, upper.Name, lower.Events[cur.indexA].Measure),
			})
		}
	}
	return out
}

func perfectName(iv pitch.Interval) string {
	if genericClass(iv) == 1 {
		return "octave/unison"
	}
	return "fifth"
}

// dissonanceTreatment implements spec.md §4.8's second bullet: a vertical
// interval outside the consonant set must be explained by the offending
// event's own rule label (passing, neighbor, or suspension) and must
// resolve by step.
func dissonanceTreatment(lower, upper PartInput, tl []timelinePoint) []Violation {
	var out []Violation
	for i, pt := range tl {
		if pt.indexA < 0 || pt.indexB < 0 {
			continue
		}
		iv := pitch.IntervalBetween(lower.Events[pt.indexA].Pitch, upper.Events[pt.indexB].Pitch)
		if consonant(iv) {
			continue
		}
		measure := lower.Events[pt.indexA].Measure
		if i+1 >= len(tl) {
			out = append(out, Violation{Measures: []int{measure}, Parts: []string{lower.Name, upper.Name},
				Message: fmt.Sprintf("unresolved dissonance between %s and %s at measure %d (no following event to resolve it)", lower.Name, upper.Name, measure)})
			continue
		}
		licensed, resolvesByStep := dissonanceIsLicensed(lower, upper, tl, i)
		if !licensed {
			out = append(out, Violation{Measures: []int{measure}, Parts: []string{lower.Name, upper.Name},
				Message: fmt.Sprintf("unprepared dissonance between %s and %s at measure %d is not a passing, neighbor, or suspension tone", lower.Name, upper.Name, measure)})
		} else if !resolvesByStep {
			out = append(out, Violation{Measures: []int{measure}, Parts: []string{lower.Name, upper.Name},
				Message: fmt.Sprintf("dissonance between %s and %s at measure %d does not resolve by step", lower.Name, upper.Name, measure)})
		}
	}
	return out
}

// dissonanceIsLicensed checks whether either voice sounding at tl[i] carries
// a passing/neighbor/suspension label, and whether that voice moves by
// step to its next event.
func dissonanceIsLicensed(lower, upper PartInput, tl []timelinePoint, i int) (licensed, resolvesByStep bool) {
	cur, next := tl[i], tl[i+1]
	check := func(p PartInput, curIdx, nextIdx int) (bool, bool) {
		r, ok := p.Labels[curIdx]
		if !ok || !isDissonanceLicense(r) {
			return false, false
		}
		if nextIdx < 0 || nextIdx == curIdx || nextIdx >= len(p.Events) {
			return true, false
		}
		step := pitch.IntervalBetween(p.Events[curIdx].Pitch, p.Events[nextIdx].Pitch).IsStep()
		return true, step
	}
	if ok, step := check(lower, cur.indexA, next.indexA); ok {
		return true, step
	}
	if ok, step := check(upper, cur.indexB, next.indexB); ok {
		return true, step
	}
	return false, false
}

// isDissonanceLicense reports whether r is one of the rule labels that
// justifies a transient dissonance. Cambiata-like figures are not given a
// separate code in this module's rule alphabet (arc.Rule); they are
// recognized as neighbor motion, the closest labeled shape the parser
// assigns them.
func isDissonanceLicense(r arc.Rule) bool {
	switch r {
	case arc.RulePassing, arc.RuleNeighbor, arc.RuleSuspension:
		return true
	default:
		return false
	}
}

// crossingAndOverlap implements spec.md §4.8's third bullet, for one pair
// of adjacent parts (lower, upper).
func crossingAndOverlap(lower, upper PartInput, tl []timelinePoint) []Violation {
	var out []Violation
	for i, pt := range tl {
		if pt.indexA < 0 || pt.indexB < 0 {
			continue
		}
		lowP, highP := lower.Events[pt.indexA].Pitch, upper.Events[pt.indexB].Pitch
		if lowP.Semitone() > highP.Semitone() {
			out = append(out, Violation{Measures: []int{lower.Events[pt.indexA].Measure}, Parts: []string{lower.Name, upper.Name},
				Message: fmt.Sprintf("%s crosses above %s at measure %d", lower.Name, upper.Name, lower.Events[pt.indexA].Measure)})
		}
		if i == 0 {
			continue
		}
		prev := tl[i-1]
		if prev.indexA < 0 || prev.indexB < 0 {
			continue
		}
		prevLow, prevHigh := lower.Events[prev.indexA].Pitch, upper.Events[prev.indexB].Pitch
		if lowP.Semitone() > prevHigh.Semitone() || highP.Semitone() < prevLow.Semitone() {
			out = append(out, Violation{Measures: []int{lower.Events[pt.indexA].Measure}, Parts: []string{lower.Name, upper.Name},
				Message: fmt.Sprintf("%s and %s overlap at measure %d", lower.Name, upper.Name, lower.Events[pt.indexA].Measure)})
		}
	}
	return out
}

// disallowedLeaps implements spec.md §4.8's fourth bullet within a single
// part: leaps of a seventh, or any augmented/diminished leap.
func disallowedLeaps(p PartInput) []Violation {
	var out []Violation
	for i := 1; i < len(p.Events); i++ {
		iv := pitch.IntervalBetween(p.Events[i-1].Pitch, p.Events[i].Pitch)
		if iv.IsStep() || iv.IsUnison() {
			continue
		}
		c := genericClass(iv)
		if c == 7 || iv.Quality > 0 || iv.Quality < -1 || (iv.Quality < 0 && c != 3 && c != 6) {
			out = append(out, Violation{Measures: []int{p.Events[i].Measure}, Parts: []string{p.Name},
				Message: fmt.Sprintf("%s leaps by a disallowed interval into measure %d", p.Name, p.Events[i].Measure)})
		}
	}
	return out
}

// strongBeatConsonance implements spec.md §4.8's fifth bullet for second
// species: unlike a weak-beat dissonance, a downbeat dissonance is never
// licensed by a passing or neighbor label — every interior downbeat must be
// consonant against whatever sounds with it in every other part.
func strongBeatConsonance(self int, parts []PartInput) []Violation {
	p := parts[self]
	if p.Species != context.Species2 {
		return nil
	}
	var out []Violation
	for idx, ev := range p.Events {
		if ev.OnsetOffset == nil || ev.OnsetOffset.Sign() != 0 {
			continue // only downbeats are strong beats
		}
		if idx == 0 || idx == len(p.Events)-1 {
			continue // the opening and closing events belong to the basic arc
		}
		for j, other := range parts {
			if j == self {
				continue
			}
			otherIdx := soundingAt(other.Events, absOffset(ev))
			if otherIdx < 0 {
				continue
			}
			iv := pitch.IntervalBetween(ev.Pitch, other.Events[otherIdx].Pitch)
			if !consonant(iv) {
				out = append(out, Violation{Measures: []int{ev.Measure}, Parts: []string{p.Name, other.Name},
					Message: fmt.Sprintf("%s's downbeat at measure %d is dissonant against %s, which second species never licenses on a strong beat", p.Name, ev.Measure, other.Name)})
			}
		}
	}
	return out
}

// suspensionPattern implements spec.md §4.8's fifth bullet for fourth
// species: every tied-over event is taken as a prepared suspension (the tie
// itself is the preparation) and must resolve downward by step into the
// next event. Its metric position is not checked.
func suspensionPattern(p PartInput) []Violation {
	if p.Species != context.Species4 {
		return nil
	}
	var out []Violation
	for i, ev := range p.Events {
		if !ev.TiedToNext {
			continue
		}
		if i+1 >= len(p.Events) {
			out = append(out, Violation{Measures: []int{ev.Measure}, Parts: []string{p.Name},
				Message: fmt.Sprintf("%s ties into the end of the part with no suspension to resolve", p.Name)})
			continue
		}
		next := p.Events[i+1]
		iv := pitch.IntervalBetween(ev.Pitch, next.Pitch)
		if !iv.IsStep() || iv.Number > 0 {
			out = append(out, Violation{Measures: []int{next.Measure}, Parts: []string{p.Name},
				Message: fmt.Sprintf("%s's suspension at measure %d does not resolve downward by step", p.Name, next.Measure)})
		}
	}
	return out
}
