package voiceleading

import (
	"math/big"
	"strings"
	"testing"

	"westerline/internal/arc"
	"westerline/internal/context"
	"westerline/internal/pitch"
)

func ev(measure int, p string) context.Event {
	return context.Event{
		Measure:     measure,
		Pitch:       pitch.MustParsePitch(p),
		OnsetOffset: big.NewRat(0, 1),
		Duration:    big.NewRat(1, 1),
	}
}

func containsMessage(violations []Violation, substr string) bool {
	for _, v := range violations {
		if strings.Contains(v.Message, substr) {
			return true
		}
	}
	return false
}

func TestParallelFifthsDetected(t *testing.T) {
	lower := PartInput{Name: "bass", Events: []context.Event{ev(0, "C3"), ev(1, "D3")}}
	upper := PartInput{Name: "cantus", Events: []context.Event{ev(0, "G3"), ev(1, "A3")}}
	out := Check([]PartInput{lower, upper})
	if !containsMessage(out, "parallel perfect fifth") {
		t.Errorf("expected a parallel fifth violation, got %+v", out)
	}
}

func TestContraryMotionIntoFifthIsNotParallel(t *testing.T) {
	lower := PartInput{Name: "bass", Events: []context.Event{ev(0, "E3"), ev(1, "C3")}}
	upper := PartInput{Name: "cantus", Events: []context.Event{ev(0, "C4"), ev(1, "G4")}}
	out := Check([]PartInput{lower, upper})
	if containsMessage(out, "parallel") {
		t.Errorf("did not expect a parallel violation for contrary motion, got %+v", out)
	}
}

func TestUnlicensedDissonanceFlagged(t *testing.T) {
	lower := PartInput{Name: "bass", Events: []context.Event{ev(0, "C3"), ev(1, "C3")}}
	upper := PartInput{Name: "cantus", Events: []context.Event{ev(0, "D4"), ev(1, "C4")}, Labels: map[int]arc.Rule{}}
	out := Check([]PartInput{lower, upper})
	if !containsMessage(out, "not a passing, neighbor, or suspension tone") {
		t.Errorf("expected an unlicensed dissonance violation, got %+v", out)
	}
}

func TestPassingToneDissonanceIsLicensed(t *testing.T) {
	lower := PartInput{Name: "bass", Events: []context.Event{ev(0, "C3"), ev(1, "C3"), ev(2, "C3")}}
	upper := PartInput{
		Name:   "cantus",
		Events: []context.Event{ev(0, "C4"), ev(1, "D4"), ev(2, "E4")},
		Labels: map[int]arc.Rule{1: arc.RulePassing},
	}
	out := Check([]PartInput{lower, upper})
	if containsMessage(out, "not a passing, neighbor, or suspension tone") {
		t.Errorf("did not expect an unlicensed-dissonance violation for a labeled passing tone, got %+v", out)
	}
}

func TestVoiceCrossingDetected(t *testing.T) {
	lower := PartInput{Name: "bass", Events: []context.Event{ev(0, "C3"), ev(1, "G4")}}
	upper := PartInput{Name: "cantus", Events: []context.Event{ev(0, "E4"), ev(1, "E4")}}
	out := Check([]PartInput{lower, upper})
	if !containsMessage(out, "crosses above") {
		t.Errorf("expected a voice-crossing violation, got %+v", out)
	}
}

func TestDisallowedSeventhLeap(t *testing.T) {
	p := PartInput{Name: "cantus", Events: []context.Event{ev(0, "C4"), ev(1, "B4")}}
	out := Check([]PartInput{p})
	if !containsMessage(out, "disallowed interval") {
		t.Errorf("expected a disallowed-leap violation for a seventh, got %+v", out)
	}
}

func TestSuspensionMustResolveDownByStep(t *testing.T) {
	events := []context.Event{ev(0, "D4"), ev(1, "D4")}
	events[0].TiedToNext = true
	p := PartInput{Name: "cantus", Species: context.Species4, Events: events}
	out := Check([]PartInput{p})
	if !containsMessage(out, "does not resolve downward by step") {
		t.Errorf("expected a suspension-resolution violation, got %+v", out)
	}
}

func TestLabeledSuspensionLicensesCrossVoiceDissonance(t *testing.T) {
	lower := PartInput{Name: "bass", Events: []context.Event{ev(0, "C3"), ev(1, "C3"), ev(2, "C3")}}
	upper := PartInput{
		Name:    "cantus",
		Species: context.Species4,
		Events:  []context.Event{ev(0, "C4"), ev(1, "D4"), ev(2, "C4")},
		Labels:  map[int]arc.Rule{1: arc.RuleSuspension},
	}
	out := Check([]PartInput{lower, upper})
	if containsMessage(out, "not a passing, neighbor, or suspension tone") {
		t.Errorf("did not expect an unlicensed-dissonance violation for a labeled suspension, got %+v", out)
	}
	if containsMessage(out, "does not resolve by step") {
		t.Errorf("did not expect a resolution violation; D4 resolves down by step to C4, got %+v", out)
	}
}

func TestStrongBeatDissonanceFlaggedEvenWhenMislabeled(t *testing.T) {
	lower := PartInput{Name: "bass", Events: []context.Event{ev(0, "C3"), ev(1, "C3"), ev(2, "C3")}}
	upper := PartInput{
		Name:    "cantus",
		Species: context.Species2,
		Events:  []context.Event{ev(0, "C4"), ev(1, "D4"), ev(2, "C4")},
		Labels:  map[int]arc.Rule{1: arc.RulePassing},
	}
	out := Check([]PartInput{lower, upper})
	if !containsMessage(out, "never licenses on a strong beat") {
		t.Errorf("expected a strong-beat dissonance violation despite the passing-tone label, got %+v", out)
	}
}
