package lineparser

import (
	"math/big"
	"testing"

	"westerline/internal/arc"
	"westerline/internal/context"
	"westerline/internal/csd"
	"westerline/internal/pitch"
)

func rat(n int64) *big.Rat { return big.NewRat(n, 1) }

func partFrom(k csd.Key, letters ...string) *context.Part {
	raw := make([]context.RawEvent, len(letters))
	for i, l := range letters {
		raw[i] = context.RawEvent{
			Pitch:       pitch.MustParsePitch(l),
			OnsetOffset: rat(0),
			Duration:    rat(1),
			Measure:     i,
		}
	}
	return context.BuildPart(raw, k)
}

func TestCMajorOctaveLinePrimary(t *testing.T) {
	k := csd.Key{Tonic: pitch.MustParsePitch("C4"), Mode: csd.Major}
	p := partFrom(k, "C5", "B4", "A4", "G4", "F4", "E4", "D4", "C4")
	res := Parse(p, k, Primary, Options{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Interpretations) == 0 {
		t.Fatal("expected at least one primary interpretation")
	}
	interp := res.Interpretations[0]
	s1Count, s2Count, s3Count := 0, 0, 0
	for _, r := range interp.RuleLabels {
		switch r {
		case arc.RuleS1:
			s1Count++
		case arc.RuleS2:
			s2Count++
		case arc.RuleS3:
			s3Count++
		}
	}
	if s1Count != 1 {
		t.Errorf("S1 count = %d, want 1", s1Count)
	}
	if s2Count != 1 {
		t.Errorf("S2 count = %d, want 1", s2Count)
	}
	if s3Count > 1 {
		t.Errorf("S3 count = %d, want at most 1 (0 if S3 coincides with S1)", s3Count)
	}
	if interp.S3Index < 0 {
		t.Error("expected S3Index to be set for a primary interpretation")
	}
}

func TestNonDiatonicPitchFailsParse(t *testing.T) {
	k := csd.Key{Tonic: pitch.MustParsePitch("C4"), Mode: csd.Major}
	p := partFrom(k, "C4", "F#4", "C4")
	res := Parse(p, k, Generic, Options{}, nil)
	if res.Err == nil {
		t.Fatal("expected error for non-diatonic pitch")
	}
}

func TestSingleEventPartHasNoInterpretation(t *testing.T) {
	k := csd.Key{Tonic: pitch.MustParsePitch("C4"), Mode: csd.Major}
	p := partFrom(k, "C4")
	res := Parse(p, k, Generic, Options{}, nil)
	if res.Err == nil {
		t.Fatal("expected error for single-event part")
	}
}

func TestGenericLineWithSingleNeighbor(t *testing.T) {
	k := csd.Key{Tonic: pitch.MustParsePitch("C4"), Mode: csd.Major}
	p := partFrom(k, "C4", "D4", "C4")
	res := Parse(p, k, Generic, Options{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Interpretations) != 1 {
		t.Fatalf("expected exactly 1 interpretation, got %d", len(res.Interpretations))
	}
	foundNeighbor := false
	for _, a := range res.Interpretations[0].Arcs {
		if a.Rule.String() == "N" {
			foundNeighbor = true
		}
	}
	if !foundNeighbor {
		t.Error("expected a neighbor arc")
	}
}

func TestTwoPartExerciseGenericAndBass(t *testing.T) {
	k := csd.Key{Tonic: pitch.MustParsePitch("C4"), Mode: csd.Major}
	upper := partFrom(k, "C4", "D4", "E4", "D4", "C4")
	lower := partFrom(k, "C4", "G3", "C4")

	upperRes := Parse(upper, k, Generic, Options{}, nil)
	if upperRes.Err != nil {
		t.Fatalf("upper voice: unexpected error: %v", upperRes.Err)
	}
	lowerRes := Parse(lower, k, Bass, Options{}, nil)
	if lowerRes.Err != nil {
		t.Fatalf("lower voice: unexpected error: %v", lowerRes.Err)
	}
}

func TestReduceDetectsRegisterTransfer(t *testing.T) {
	k := csd.Key{Tonic: pitch.MustParsePitch("C4"), Mode: csd.Major}
	// G3 is restated an octave higher at G4 before the line descends,
	// a transfer of register (GLOSSARY "Transfer of register").
	p := partFrom(k, "G3", "A3", "B3", "G4", "F4", "E4")
	red := reduce(p.Events)
	var found *arc.Arc
	for i, a := range red.Arcs {
		if a.Shape == arc.ShapeRegisterTransfer && a.Rule == arc.RuleTransfer {
			found = &red.Arcs[i]
		}
	}
	if found == nil {
		t.Fatal("expected reduce to detect a register-transfer arc between G3 and G4")
	}
	if found.Head() != 0 || found.Final() != 3 {
		t.Errorf("expected register-transfer arc spanning events 0-3, got %v", found.Events)
	}
	if red.Labels[3] != arc.RuleTransfer {
		t.Errorf("expected event 3 to carry RuleTransfer, got %v", red.Labels[3])
	}
}

func TestArcsAreSortedByAscendingEndpoints(t *testing.T) {
	k := csd.Key{Tonic: pitch.MustParsePitch("C4"), Mode: csd.Major}
	p := partFrom(k, "C4", "D4", "C4", "E4", "G4", "E4", "C4")
	res := Parse(p, k, Generic, Options{}, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	arcs := res.Interpretations[0].Arcs
	for i := 1; i < len(arcs); i++ {
		if arcs[i].Head() < arcs[i-1].Head() {
			t.Fatalf("arcs not sorted by ascending head: %v", arcs)
		}
	}
}
