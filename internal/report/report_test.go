package report

import (
	"fmt"
	"strings"
	"testing"

	"westerline/internal/arc"
	"westerline/internal/context"
	"westerline/internal/csd"
	"westerline/internal/lineparser"
	"westerline/internal/pitch"
	"westerline/internal/voiceleading"
)

func newBuilder() *Builder {
	b := NewBuilder(csd.Key{Tonic: pitch.MustParsePitch("C4"), Mode: csd.Major}, false)
	b.DisableColor()
	return b
}

func TestRenderIncludesKeyAndHeading(t *testing.T) {
	b := newBuilder()
	out := b.Render()
	if !strings.HasPrefix(out, "PARSE REPORT") {
		t.Fatalf("expected output to begin with PARSE REPORT, got %q", out)
	}
	if !strings.Contains(out, "key: C Major (inferred)") {
		t.Errorf("expected inferred C major key line, got %q", out)
	}
}

func TestRenderUserSuppliedKey(t *testing.T) {
	b := NewBuilder(csd.Key{Tonic: pitch.MustParsePitch("D4"), Mode: csd.Minor}, true)
	b.DisableColor()
	out := b.Render()
	if !strings.Contains(out, "key: D minor (user-supplied)") {
		t.Errorf("expected user-supplied D minor key line, got %q", out)
	}
}

func TestRenderGenerablePart(t *testing.T) {
	b := newBuilder()
	b.AddPart("part 1", []LineTypeResult{{LineType: lineparser.Primary, Interpretations: 3}})
	out := b.Render()
	if !strings.Contains(out, "part 1:") || !strings.Contains(out, "primary line: generable (3 interpretations)") {
		t.Errorf("expected a generable primary-line line, got %q", out)
	}
}

func TestRenderUngenerablePartIncludesError(t *testing.T) {
	b := newBuilder()
	b.AddPart("part 2", []LineTypeResult{{LineType: lineparser.Bass, Err: fmt.Errorf("bass line must begin and end on the tonic")}})
	out := b.Render()
	if !strings.Contains(out, "bass line: not generable: bass line must begin and end on the tonic") {
		t.Errorf("expected the parse-error diagnostic, got %q", out)
	}
}

func TestRenderNoViolations(t *testing.T) {
	b := newBuilder()
	out := b.Render()
	if !strings.Contains(out, "voice-leading: no violations found") {
		t.Errorf("expected a no-violations line, got %q", out)
	}
}

func TestRenderListsViolationsSortedByMeasure(t *testing.T) {
	b := newBuilder()
	b.AddViolations([]voiceleading.Violation{
		{Measures: []int{3}, Parts: []string{"a", "b"}, Message: "later violation"},
		{Measures: []int{1}, Parts: []string{"a", "b"}, Message: "earlier violation"},
	})
	out := b.Render()
	if !strings.Contains(out, "voice-leading: 2 violation(s) found") {
		t.Errorf("expected a violation count line, got %q", out)
	}
	earlier := strings.Index(out, "earlier violation")
	later := strings.Index(out, "later violation")
	if earlier == -1 || later == -1 || earlier > later {
		t.Errorf("expected violations sorted by measure, got %q", out)
	}
}

func TestAnnotateMarksStructuralDistinctFromElaboration(t *testing.T) {
	part := &context.Part{Events: []context.Event{
		{Index: 0, Pitch: pitch.MustParsePitch("C4")},
		{Index: 1, Pitch: pitch.MustParsePitch("D4")},
		{Index: 2, Pitch: pitch.MustParsePitch("C4")},
	}}
	interp := lineparser.Interpretation{
		Arcs: []arc.Arc{{Events: []int{0, 2}, Rule: arc.RuleGenericHead, Shape: arc.ShapeBasic}},
		RuleLabels: map[int]arc.Rule{
			0: arc.RuleGenericHead,
			1: arc.RulePassing,
			2: arc.RuleFinalTonic,
		},
	}
	events, groups := Annotate(part, interp)
	if !events[0].Structural || !events[2].Structural {
		t.Errorf("expected head and final tonic events to be structural, got %+v", events)
	}
	if events[1].Structural {
		t.Errorf("expected the passing tone to not be structural, got %+v", events[1])
	}
	if len(groups) != 1 || groups[0].Dashed {
		t.Errorf("expected one solid grouping, got %+v", groups)
	}
}

func TestRenderAnnotatedIncludesGroupings(t *testing.T) {
	b := newBuilder()
	events := []AnnotatedEvent{{Index: 0, Pitch: "C4", Measure: 0, Rule: arc.RuleGenericHead, Structural: true}}
	groups := []AnnotatedGroup{{Head: 0, Final: 1, Rule: arc.RulePassing, Dashed: true}}
	out := b.RenderAnnotated("part 1", events, groups)
	if !strings.Contains(out, "register-transfer(P): events 0-1") {
		t.Errorf("expected a register-transfer grouping line, got %q", out)
	}
}
