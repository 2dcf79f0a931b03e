// Package lineparser is the central engine of this module (spec.md §4.5):
// given a part whose events carry scale degrees, it enumerates every
// syntactic derivation of the line as a primary, bass, or generic line,
// constructing a forest of arcs over the events subject to Westergaard's
// generation/insertion/transfer invariants.
package lineparser

import (
	"fmt"
	"sort"

	"westerline/internal/arc"
	"westerline/internal/context"
	"westerline/internal/csd"
)

// LineType is one of the three line-types a part may be parsed as
// (spec.md GLOSSARY).
type LineType int

const (
	Primary LineType = iota
	Bass
	Generic
)

func (lt LineType) String() string {
	switch lt {
	case Primary:
		return "primary"
	case Bass:
		return "bass"
	default:
		return "generic"
	}
}

// scale-degree residues used throughout this package.
const (
	degreeTonic  = 0
	degreeSupert = 1
	degreeMedi   = 2
	degreeDomin  = 4
)

// primaryHeadResidues are the allowed residues for a primary line's head
// (2̂, 3̂, 5̂, 8̂≡1̂ an octave up), per spec.md §4.5.
var primaryHeadResidues = map[int]bool{degreeSupert: true, degreeMedi: true, degreeDomin: true, degreeTonic: true}

// Interpretation is one syntactic derivation of a part as a line (spec.md
// §3 "Interpretation").
type Interpretation struct {
	LineType    LineType
	Arcs        []arc.Arc
	RuleLabels  map[int]arc.Rule
	Parentheses map[int]bool
	S3Index     int  // -1 if not applicable (generic lines)
	S3Final     *int // event index whose pitch is S3Final; nil if n/a
}

// Result is the outcome of parsing one part for one requested line-type:
// zero or more interpretations, plus a diagnostic describing the
// shallowest failure when none were found (spec.md §4.5 "Termination").
type Result struct {
	Interpretations []Interpretation
	Err             error
}

// Options configures search limits (spec.md §5 "Cancellation/timeouts").
type Options struct {
	BranchCap int // 0 means use a sane default
}

func (o Options) branchCap() int {
	if o.BranchCap <= 0 {
		return 64
	}
	return o.BranchCap
}

// Parse enumerates interpretations of part as lineType, given the part's
// key and (for species 3+) the score's local harmonic context.
func Parse(part *context.Part, k csd.Key, lineType LineType, opts Options, harmony []context.MeasureHarmony) Result {
	if len(part.Errors) > 0 {
		return Result{Err: fmt.Errorf("%s", part.Errors[0].Message)}
	}
	if len(part.Events) == 0 {
		return Result{Err: fmt.Errorf("a line requires at least one event")}
	}
	if len(part.Events) == 1 {
		return Result{Err: fmt.Errorf("a single-event part admits no interpretation (a line requires at least a basic arc)")}
	}

	if part.Species >= context.Species3 {
		if err := checkThirdSpeciesHarmony(part, harmony); err != nil {
			return Result{Err: err}
		}
	}

	red := reduce(part.Events)

	var interps []Interpretation
	var err error
	switch lineType {
	case Primary:
		interps, err = buildPrimary(part.Events, red, opts, part.Species)
	case Bass:
		interps, err = buildBass(part.Events, red, opts, part.Species)
	default:
		interps, err = buildGeneric(part.Events, red, part.Species)
	}
	if err != nil {
		return Result{Err: err}
	}
	if len(interps) == 0 {
		return Result{Err: fmt.Errorf("the part admits no %s-line interpretation", lineType)}
	}
	for i := range interps {
		sortArcs(interps[i].Arcs)
	}
	return Result{Interpretations: interps}
}

// sortArcs enforces spec.md §5 "Determinism": ascending left endpoint,
// then ascending right endpoint.
func sortArcs(arcs []arc.Arc) {
	sort.Slice(arcs, func(i, j int) bool {
		if arcs[i].Head() != arcs[j].Head() {
			return arcs[i].Head() < arcs[j].Head()
		}
		return arcs[i].Final() < arcs[j].Final()
	})
}

// reduction is the output of the elaboration pass (see reduce): the set of
// arcs recognized as Repetition/Neighbor/Passing/Arpeggiation, the rule
// label each interior event received, and the subsequence of event indices
// ("open heads") that survive as structural candidates.
type reduction struct {
	TopLevel []int
	Arcs     []arc.Arc
	Labels   map[int]arc.Rule
	Covered  map[int]bool
}

// reduce performs the elaboration-recognition pass described in spec.md
// §4.5 "Parse state": a left-to-right scan maintaining openHeads (here,
// the TopLevel accumulator) and openTransitions (the step-run scanner
// below), closing Repetition, Neighbor, Passing, and Arpeggiation arcs as
// soon as their defining consecution pattern is recognized. It is a single
// deterministic pass rather than a full backtracking search — see
// DESIGN.md for why branching is reserved for structural-dominant (S3)
// selection, where the spec requires every candidate to be retained.
func reduce(events []context.Event) reduction {
	r := reduction{Labels: map[int]arc.Rule{}, Covered: map[int]bool{}}
	n := len(events)
	i := 0
	for i < n {
		// Repetition: adjacent identical scale degree.
		if i+1 < n && events[i+1].CSD.Value == events[i].CSD.Value {
			r.Arcs = append(r.Arcs, arc.Arc{Events: []int{i, i + 1}, Rule: arc.RuleRepetition, Shape: arc.ShapeElaboration})
			r.Labels[i+1] = arc.RuleRepetition
			r.TopLevel = append(r.TopLevel, i)
			i++
			continue
		}
		// Neighbor: x - y - x, where y is a step from x.
		if i+2 < n {
			d1 := events[i+1].CSD.Value - events[i].CSD.Value
			if (d1 == 1 || d1 == -1) && events[i+2].CSD.Value == events[i].CSD.Value {
				r.Arcs = append(r.Arcs, arc.Arc{Events: []int{i, i + 1, i + 2}, Rule: arc.RuleNeighbor, Shape: arc.ShapeElaboration})
				r.Labels[i+1] = arc.RuleNeighbor
				r.Covered[i+1] = true
				r.TopLevel = append(r.TopLevel, i)
				i += 2
				continue
			}
		}
		// Transfer of register: an earlier still-open head recurs here at
		// the same scale-degree residue but a different octave (GLOSSARY
		// "Transfer of register"). The arc is dashed and, per spec.md §8
		// invariant 5, is permitted to cross one other arc of the same
		// residue; the earlier head is not consumed and stays open.
		if h, ok := findRegisterTransferHead(events, r.TopLevel, i); ok {
			r.Arcs = append(r.Arcs, arc.Arc{Events: []int{h, i}, Rule: arc.RuleTransfer, Shape: arc.ShapeRegisterTransfer})
			r.Labels[i] = arc.RuleTransfer
			r.TopLevel = append(r.TopLevel, i)
			i++
			continue
		}
		// Passing: a maximal run of unit diatonic steps in one direction,
		// spanning a third or more, with >=1 interior event.
		if i+2 < n {
			dir := 0
			j := i + 1
			for j < n {
				d := events[j].CSD.Value - events[j-1].CSD.Value
				if d != 1 && d != -1 {
					break
				}
				if dir == 0 {
					dir = d
				} else if d != dir {
					break
				}
				j++
			}
			end := j - 1
			if end-i >= 2 {
				for k := i + 1; k < end; k++ {
					r.Labels[k] = arc.RulePassing
					r.Covered[k] = true
				}
				full := make([]int, 0, end-i+1)
				for k := i; k <= end; k++ {
					full = append(full, k)
				}
				r.Arcs = append(r.Arcs, arc.Arc{Events: full, Rule: arc.RulePassing, Shape: arc.ShapeElaboration})
				r.TopLevel = append(r.TopLevel, i)
				i = end
				continue
			}
		}
		// Arpeggiation: a skip between two triad-pitch residues.
		if i+1 < n {
			delta := events[i+1].CSD.Value - events[i].CSD.Value
			if (delta > 1 || delta < -1) && isTriadResidue(events[i].CSD.Residue()) && isTriadResidue(events[i+1].CSD.Residue()) {
				r.Arcs = append(r.Arcs, arc.Arc{Events: []int{i, i + 1}, Rule: arc.RuleArpeggiation, Shape: arc.ShapeElaboration})
				r.TopLevel = append(r.TopLevel, i)
				i++
				continue
			}
		}
		r.TopLevel = append(r.TopLevel, i)
		i++
	}
	if n > 0 {
		last := n - 1
		if len(r.TopLevel) == 0 || r.TopLevel[len(r.TopLevel)-1] != last {
			r.TopLevel = append(r.TopLevel, last)
		}
	}
	return r
}

func isTriadResidue(residue int) bool {
	return residue == degreeTonic || residue == degreeMedi || residue == degreeDomin
}

// findRegisterTransferHead looks among the heads already accumulated in
// topLevel for one whose scale-degree residue matches events[i] but whose
// octave differs, which is the GLOSSARY definition of a transfer of
// register. The earliest matching head is preferred so a restated pitch
// reads as a transfer of its original statement rather than of some
// intervening restatement.
func findRegisterTransferHead(events []context.Event, topLevel []int, i int) (int, bool) {
	for _, h := range topLevel {
		if events[h].CSD.Residue() == events[i].CSD.Residue() && events[h].CSD.Value != events[i].CSD.Value {
			return h, true
		}
	}
	return 0, false
}

// markSuspensions assigns RuleSuspension to every fourth-species event whose
// TiedToNext is set — the tie itself is the preparation, so that same event
// is the held dissonance that must resolve by step into the next one (spec.md
// §4.8: "... or suspension (4th species) ... must resolve by step"). Without
// this label the voice-leading checker has no way to license the dissonance
// it forms against the other voice. It only overrides the catch-all
// Insertion default, never a structural label.
func markSuspensions(events []context.Event, labels map[int]arc.Rule, species context.Species) {
	if species != context.Species4 {
		return
	}
	for i, ev := range events {
		if !ev.TiedToNext {
			continue
		}
		if r, ok := labels[i]; !ok || r == arc.RuleInsertion {
			labels[i] = arc.RuleSuspension
		}
	}
}

// markAnticipations relabels a same-pitch figure immediately preceding a
// structural tone as an anticipation of that tone rather than a bare
// repetition or insertion (spec.md §4.5 "Anticipation: a later structural
// pitch stated early, then repeated"), and updates the matching arc's Rule
// so the annotated output agrees with the per-event label.
func markAnticipations(events []context.Event, labels map[int]arc.Rule, arcs []arc.Arc) {
	for idx, rule := range labels {
		if !isStructuralRule(rule) {
			continue
		}
		prev := idx - 1
		if prev < 0 || events[prev].CSD.Value != events[idx].CSD.Value {
			continue
		}
		if r, ok := labels[prev]; ok && r != arc.RuleRepetition && r != arc.RuleInsertion {
			continue
		}
		labels[prev] = arc.RuleAnticipation
		for i := range arcs {
			if arcs[i].Rule == arc.RuleRepetition && arcs[i].Final() == prev {
				arcs[i].Rule = arc.RuleAnticipation
			}
		}
	}
}

func isStructuralRule(r arc.Rule) bool {
	switch r {
	case arc.RuleS1, arc.RuleS2, arc.RuleS3, arc.RuleFinalTonic, arc.RuleGenericHead:
		return true
	default:
		return false
	}
}

// buildPrimary assembles primary-line interpretations: the head (first
// structural event) must sit at 2̂/3̂/5̂/8̂, the final event must be the
// tonic, and the structural path from head to final must be a contiguous
// descending stepwise chain at the structural level. Every uncovered
// structural-dominant (5̂) candidate before the final yields a distinct
// interpretation, per spec.md "Structural-dominant selection".
//
// A line that is itself one unbroken stepwise descent (e.g. an octave
// cantus firmus) is tried first against its full, unreduced event
// sequence: Westergaard's structural passing tones are events the basic
// arc runs straight through, not a separate prolongation of it, so
// reduce's elaboration absorption must not be allowed to swallow the
// backbone before the structural search ever sees it. Only when the raw
// sequence does not already form a valid descending chain do we fall
// back to the reduced top level, where genuine local elaborations
// (neighbors, repetitions, leaps filled by passing tones) have been
// folded out of the way.
func buildPrimary(events []context.Event, red reduction, opts Options, species context.Species) ([]Interpretation, error) {
	if interps, err := primaryFromTop(events, fullTop(events), nil, nil, opts, species); err == nil {
		return interps, nil
	}
	top := red.TopLevel
	if len(top) < 2 {
		return nil, fmt.Errorf("too few structural events for a primary line")
	}
	return primaryFromTop(events, top, red.Labels, red.Arcs, opts, species)
}

// fullTop returns every event index, used as the structural top level when
// checking whether a line is already one contiguous descent.
func fullTop(events []context.Event) []int {
	top := make([]int, len(events))
	for i := range events {
		top[i] = i
	}
	return top
}

func primaryFromTop(events []context.Event, top []int, seedLabels map[int]arc.Rule, seedArcs []arc.Arc, opts Options, species context.Species) ([]Interpretation, error) {
	if len(top) < 2 {
		return nil, fmt.Errorf("too few structural events for a primary line")
	}
	head := events[top[0]]
	final := events[top[len(top)-1]]
	if final.CSD.Residue() != degreeTonic {
		return nil, fmt.Errorf("the line does not end on the tonic, so no primary-line basic arc can close")
	}
	if !primaryHeadResidues[head.CSD.Residue()] {
		return nil, fmt.Errorf("the head pitch %s (degree %d) is not a valid primary-line head (2̂, 3̂, 5̂, or 8̂)", head.Pitch, head.CSD.Degree1())
	}
	for k := 1; k < len(top); k++ {
		if events[top[k]].CSD.Value != events[top[k-1]].CSD.Value-1 {
			return nil, fmt.Errorf("the structural path from the head to the final tonic is not a contiguous stepwise descent")
		}
	}

	s2Idx := top[len(top)-2]
	var s3Candidates []int
	for _, idx := range top[:len(top)-1] {
		if idx == s2Idx {
			continue
		}
		if events[idx].CSD.Residue() == degreeDomin {
			s3Candidates = append(s3Candidates, idx)
		}
	}
	if len(s3Candidates) == 0 {
		return nil, fmt.Errorf("no structural-dominant (5̂) event found before the final tonic")
	}
	if len(s3Candidates)*len(top) > opts.branchCap() {
		return nil, fmt.Errorf("interpretation search exceeded limits")
	}

	interps := make([]Interpretation, 0, len(s3Candidates))
	for _, s3 := range s3Candidates {
		labels := copyLabels(seedLabels)
		labels[top[0]] = arc.RuleS1
		labels[top[len(top)-1]] = arc.RuleFinalTonic
		labels[s2Idx] = arc.RuleS2
		if s3 != top[0] {
			labels[s3] = arc.RuleS3
		}
		for k := 1; k < len(top)-2; k++ {
			if _, ok := labels[top[k]]; !ok {
				labels[top[k]] = arc.RulePassing
			}
		}
		fillDefaultLabels(events, labels)
		markSuspensions(events, labels, species)

		basic := arc.Arc{Events: append([]int{}, top...), Rule: arc.RuleS1, Shape: arc.ShapeBasic}
		allArcs := append([]arc.Arc{basic}, seedArcs...)
		markAnticipations(events, labels, allArcs)
		s3Copy := s3
		interps = append(interps, Interpretation{
			LineType:    Primary,
			Arcs:        allArcs,
			RuleLabels:  labels,
			Parentheses: parenthesesFor(labels),
			S3Index:     s3,
			S3Final:     &s3Copy,
		})
	}
	sort.Slice(interps, func(i, j int) bool { return interps[i].S3Index < interps[j].S3Index })
	return interps, nil
}

// buildBass assembles bass-line interpretations: the line must begin and
// end on the tonic and arpeggiate through a structural dominant (spec.md
// "Bass line"). As in buildPrimary, the full unreduced event sequence is
// tried first so a bass line built entirely from stepwise motion is not
// swallowed whole by reduce's passing-run absorption.
func buildBass(events []context.Event, red reduction, opts Options, species context.Species) ([]Interpretation, error) {
	if interps, err := bassFromTop(events, fullTop(events), nil, nil, opts, species); err == nil {
		return interps, nil
	}
	top := red.TopLevel
	if len(top) < 2 {
		return nil, fmt.Errorf("too few structural events for a bass line")
	}
	return bassFromTop(events, top, red.Labels, red.Arcs, opts, species)
}

func bassFromTop(events []context.Event, top []int, seedLabels map[int]arc.Rule, seedArcs []arc.Arc, opts Options, species context.Species) ([]Interpretation, error) {
	if len(top) < 2 {
		return nil, fmt.Errorf("too few structural events for a bass line")
	}
	first := events[top[0]]
	final := events[top[len(top)-1]]
	if first.CSD.Residue() != degreeTonic {
		return nil, fmt.Errorf("a bass line must begin on the tonic")
	}
	if final.CSD.Residue() != degreeTonic {
		return nil, fmt.Errorf("a bass line must end on the tonic")
	}

	var s3Candidates []int
	for _, idx := range top[1 : len(top)-1] {
		if events[idx].CSD.Residue() == degreeDomin {
			s3Candidates = append(s3Candidates, idx)
		}
	}
	if len(s3Candidates) == 0 {
		return nil, fmt.Errorf("no structural-dominant (5̂) event found between the opening and closing tonic")
	}
	if len(s3Candidates)*len(top) > opts.branchCap() {
		return nil, fmt.Errorf("interpretation search exceeded limits")
	}

	interps := make([]Interpretation, 0, len(s3Candidates))
	for _, s3 := range s3Candidates {
		labels := copyLabels(seedLabels)
		labels[top[0]] = arc.RuleS1
		labels[top[len(top)-1]] = arc.RuleFinalTonic
		labels[s3] = arc.RuleS3
		for _, idx := range top[1 : len(top)-1] {
			if _, ok := labels[idx]; !ok {
				labels[idx] = arc.RuleBassArpeggiation
			}
		}
		fillDefaultLabels(events, labels)
		markSuspensions(events, labels, species)

		basic := arc.Arc{Events: append([]int{}, top...), Rule: arc.RuleS1, Shape: arc.ShapeBasic}
		allArcs := append([]arc.Arc{basic}, seedArcs...)
		markAnticipations(events, labels, allArcs)
		s3Copy := s3
		interps = append(interps, Interpretation{
			LineType:    Bass,
			Arcs:        allArcs,
			RuleLabels:  labels,
			Parentheses: parenthesesFor(labels),
			S3Index:     s3,
			S3Final:     &s3Copy,
		})
	}
	sort.Slice(interps, func(i, j int) bool { return interps[i].S3Index < interps[j].S3Index })
	return interps, nil
}

// buildGeneric assembles the single generic-line interpretation: the line
// begins and ends on triad pitches with no structural-dominant
// requirement (spec.md "Generic line").
func buildGeneric(events []context.Event, red reduction, species context.Species) ([]Interpretation, error) {
	top := red.TopLevel
	if len(top) < 2 {
		return nil, fmt.Errorf("too few structural events for a generic line")
	}
	first := events[top[0]]
	last := events[top[len(top)-1]]
	if !isTriadResidue(first.CSD.Residue()) {
		return nil, fmt.Errorf("a generic line must begin on a triad pitch")
	}
	if !isTriadResidue(last.CSD.Residue()) {
		return nil, fmt.Errorf("a generic line must end on a triad pitch")
	}

	labels := copyLabels(red.Labels)
	labels[top[0]] = arc.RuleGenericHead
	labels[top[len(top)-1]] = arc.RuleFinalTonic
	fillDefaultLabels(events, labels)
	markSuspensions(events, labels, species)

	basic := arc.Arc{Events: append([]int{}, top...), Rule: arc.RuleGenericHead, Shape: arc.ShapeBasic}
	allArcs := append([]arc.Arc{basic}, red.Arcs...)
	markAnticipations(events, labels, allArcs)
	return []Interpretation{{
		LineType:    Generic,
		Arcs:        allArcs,
		RuleLabels:  labels,
		Parentheses: parenthesesFor(labels),
		S3Index:     -1,
	}}, nil
}

// fillDefaultLabels assigns RuleInsertion to any event that reached the end
// of basic-arc construction without a label, satisfying spec.md §8
// invariant 2 ("every event is assigned exactly one rule label").
func fillDefaultLabels(events []context.Event, labels map[int]arc.Rule) {
	for i := range events {
		if _, ok := labels[i]; !ok {
			labels[i] = arc.RuleInsertion
		}
	}
}

// parenthesesFor marks insertions for bracket rendering (spec.md
// "Insertion").
func parenthesesFor(labels map[int]arc.Rule) map[int]bool {
	p := map[int]bool{}
	for i, r := range labels {
		if r == arc.RuleInsertion {
			p[i] = true
		}
	}
	return p
}

func copyLabels(src map[int]arc.Rule) map[int]arc.Rule {
	dst := make(map[int]arc.Rule, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// checkThirdSpeciesHarmony verifies that off-beat events either form a
// step-connected elaboration (checked here against the Covered set of its
// own reduce pass over the part) or are consonant with their measure's local
// harmony, per spec.md §4.5 "Third-species refinement" and §4.7.
func checkThirdSpeciesHarmony(part *context.Part, harmony []context.MeasureHarmony) error {
	byMeasure := map[int]context.MeasureHarmony{}
	for _, h := range harmony {
		byMeasure[h.Measure] = h
	}
	red := reduce(part.Events)
	for i, ev := range part.Events {
		if ev.OnsetOffset == nil || ev.OnsetOffset.Sign() == 0 {
			continue // on the downbeat
		}
		if red.Covered[i] {
			continue // already explained by a passing/neighbor arc
		}
		h, ok := byMeasure[ev.Measure]
		if !ok || h.Empty {
			continue // no harmonic context to check against
		}
		residue := ev.CSD.Residue()
		if residue != h.Root && residue != h.Third && residue != h.Fifth {
			return fmt.Errorf("the off-beat pitch %s in measure %d is neither a passing/neighbor tone nor consonant with the prevailing harmony", ev.Pitch, ev.Measure)
		}
	}
	return nil
}
