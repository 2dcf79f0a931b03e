// Package arc defines the prolongational-span data model shared by the
// line parser, the parse-selection layer, and the report layer (spec.md §3,
// "Arc"). An Arc never owns musical data; it references event indices only,
// so that register-transfer detection (same scale degree, different octave)
// can distinguish two events that happen to share a pitch.
package arc

// Rule is the closed alphabet of ~20 codes identifying which Westergaard
// rule generated an event or span (spec.md "Rule labels").
type Rule int

const (
	RuleUnknown Rule = iota
	RuleS1               // head of a primary or bass line's basic arc
	RuleS2               // penultimate structural tone (primary line's 2̂->1̂)
	RuleS3               // structural-dominant event
	RuleGenericHead      // head of a generic line's basic arc
	RuleFinalTonic       // closing tonic event of any line's basic arc
	RuleBassArpeggiation // bass-line skip between 1̂ and 5̂
	RulePassing
	RuleNeighbor
	RuleRepetition
	RuleArpeggiation
	RuleAnticipation
	RuleInsertion
	RuleTransfer
	RuleSuspension // fourth-species held tone, consumed by the checker
)

var ruleNames = map[Rule]string{
	RuleUnknown:          "?",
	RuleS1:                "S1",
	RuleS2:                "S2",
	RuleS3:                "S3",
	RuleGenericHead:      "GH",
	RuleFinalTonic:       "FIN",
	RuleBassArpeggiation: "ARP-B",
	RulePassing:           "P",
	RuleNeighbor:          "N",
	RuleRepetition:        "REP",
	RuleArpeggiation:      "ARP",
	RuleAnticipation:      "ANT",
	RuleInsertion:         "INS",
	RuleTransfer:          "TR",
	RuleSuspension:        "SUS",
}

func (r Rule) String() string {
	if s, ok := ruleNames[r]; ok {
		return s
	}
	return "?"
}

// Shape classifies an arc's surface construction, independent of which
// specific rule produced it — used by the report layer to decide rendering
// (solid slur vs. dashed register-transfer bracket).
type Shape int

const (
	ShapeBasic Shape = iota // the line's top-level basic arc (S1..S3..final or generic head..final)
	ShapeElaboration
	ShapeRegisterTransfer // dashed in output; permitted to cross one same-residue arc
)

// Arc is an ordered, non-empty sequence of event indices [i0, i1, ..., in]
// with n >= 1, representing a prolongational span (spec.md §3 "Arc").
type Arc struct {
	Events []int // strictly increasing event indices; Events[0] < Events[len-1]
	Rule   Rule
	Shape  Shape
}

// Head returns the arc's left (generating) endpoint.
func (a Arc) Head() int { return a.Events[0] }

// Final returns the arc's right (closing) endpoint.
func (a Arc) Final() int { return a.Events[len(a.Events)-1] }

// Interior returns the indices strictly between Head and Final.
func (a Arc) Interior() []int {
	if len(a.Events) <= 2 {
		return nil
	}
	return a.Events[1 : len(a.Events)-1]
}

// Covers reports whether event index i is referenced anywhere in the arc.
func (a Arc) Covers(i int) bool {
	for _, e := range a.Events {
		if e == i {
			return true
		}
	}
	return false
}

// Valid checks the structural invariants from spec.md §8 invariant 1:
// monotone, strictly increasing endpoints, non-empty.
func (a Arc) Valid() bool {
	if len(a.Events) < 2 {
		return false
	}
	for i := 1; i < len(a.Events); i++ {
		if a.Events[i] <= a.Events[i-1] {
			return false
		}
	}
	return true
}

// Nests reports whether b is properly nested inside a (a's span strictly
// contains b's span, endpoints included in a's interior range) — used to
// check the non-crossing forest invariant (spec.md §8 invariant 5).
func (a Arc) Nests(b Arc) bool {
	return a.Head() <= b.Head() && b.Final() <= a.Final()
}

// Crosses reports whether a and b overlap without nesting either way —
// a forbidden configuration except for register-transfer arcs of the same
// scale-degree residue (spec.md §8 invariant 5).
func Crosses(a, b Arc) bool {
	if a.Nests(b) || b.Nests(a) {
		return false
	}
	aLo, aHi := a.Head(), a.Final()
	bLo, bHi := b.Head(), b.Final()
	return aLo < bHi && bLo < aHi
}
