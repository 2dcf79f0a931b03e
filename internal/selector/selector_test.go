package selector

import (
	"math/big"
	"testing"

	"westerline/internal/arc"
	"westerline/internal/context"
	"westerline/internal/lineparser"
)

func idx(i int) *int { return &i }

func evAt(measure int) context.Event {
	return context.Event{Measure: measure, OnsetOffset: big.NewRat(0, 1)}
}

func TestSelectSinglePartPassesThroughAll(t *testing.T) {
	part := Part{
		LineType: lineparser.Generic,
		Events:   []context.Event{evAt(0), evAt(1)},
		Interpretations: []lineparser.Interpretation{
			{LineType: lineparser.Generic, S3Index: -1},
			{LineType: lineparser.Generic, S3Index: -1},
		},
	}
	combos, err := Select([]Part{part})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(combos) != 2 {
		t.Fatalf("expected 2 passthrough combinations, got %d", len(combos))
	}
}

func TestSelectTwoPartMinimizesS3Distance(t *testing.T) {
	primary := Part{
		LineType: lineparser.Primary,
		Events:   []context.Event{evAt(0), evAt(1), evAt(2), evAt(3)},
		Interpretations: []lineparser.Interpretation{
			{LineType: lineparser.Primary, S3Index: 1, S3Final: idx(1)}, // measure 1
			{LineType: lineparser.Primary, S3Index: 2, S3Final: idx(2)}, // measure 2
		},
	}
	bass := Part{
		LineType: lineparser.Bass,
		Events:   []context.Event{evAt(0), evAt(1), evAt(2)},
		Interpretations: []lineparser.Interpretation{
			{LineType: lineparser.Bass, S3Index: 1}, // measure 1
			{LineType: lineparser.Bass, S3Index: 2}, // measure 2
		},
	}
	combos, err := Select([]Part{primary, bass})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(combos) != 2 {
		t.Fatalf("expected 2 tied minimal-distance combinations, got %d: %+v", len(combos), combos)
	}
	for _, c := range combos {
		if c.Distance.Sign() != 0 {
			t.Errorf("expected distance 0 for a surviving combination, got %v", c.Distance)
		}
	}
}

func TestSelectThreePartRequiresUpperPrimary(t *testing.T) {
	upper := Part{
		LineType:        lineparser.Generic,
		Events:          []context.Event{evAt(0), evAt(1)},
		Interpretations: []lineparser.Interpretation{{LineType: lineparser.Generic, S3Index: -1}},
	}
	bass := Part{
		LineType:        lineparser.Bass,
		Events:          []context.Event{evAt(0), evAt(1)},
		Interpretations: []lineparser.Interpretation{{LineType: lineparser.Bass, S3Index: 1}},
	}
	another := Part{
		LineType:        lineparser.Generic,
		Events:          []context.Event{evAt(0), evAt(1)},
		Interpretations: []lineparser.Interpretation{{LineType: lineparser.Generic, S3Index: -1}},
	}
	_, err := Select([]Part{upper, bass, another})
	if err == nil {
		t.Fatal("expected an error when no upper part is a primary line")
	}
}

func TestSelectThreePartWithUpperPrimaryCombinesAllOtherParts(t *testing.T) {
	primary := Part{
		LineType: lineparser.Primary,
		Events:   []context.Event{evAt(0), evAt(1)},
		Interpretations: []lineparser.Interpretation{
			{LineType: lineparser.Primary, S3Index: 1, S3Final: idx(1)},
		},
	}
	bass := Part{
		LineType: lineparser.Bass,
		Events:   []context.Event{evAt(0), evAt(1)},
		Interpretations: []lineparser.Interpretation{
			{LineType: lineparser.Bass, S3Index: 1},
		},
	}
	second := Part{
		LineType: lineparser.Generic,
		Events:   []context.Event{evAt(0), evAt(1)},
		Interpretations: []lineparser.Interpretation{
			{LineType: lineparser.Generic, S3Index: -1, RuleLabels: map[int]arc.Rule{0: arc.RuleGenericHead}},
			{LineType: lineparser.Generic, S3Index: -1, RuleLabels: map[int]arc.Rule{0: arc.RuleGenericHead}},
		},
	}
	combos, err := Select([]Part{primary, bass, second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(combos) != 2 {
		t.Fatalf("expected the 2 interpretations of the passthrough part to both survive, got %d", len(combos))
	}
}
