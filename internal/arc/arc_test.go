package arc

import "testing"

func TestArcValid(t *testing.T) {
	a := Arc{Events: []int{0, 2, 4}}
	if !a.Valid() {
		t.Error("expected valid arc")
	}
	bad := Arc{Events: []int{4, 2, 0}}
	if bad.Valid() {
		t.Error("expected invalid arc for decreasing indices")
	}
	single := Arc{Events: []int{1}}
	if single.Valid() {
		t.Error("single-event arc should be invalid")
	}
}

func TestInterior(t *testing.T) {
	a := Arc{Events: []int{0, 1, 2, 3}}
	got := a.Interior()
	want := []int{1, 2}
	if len(got) != len(want) {
		t.Fatalf("Interior() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Interior() = %v, want %v", got, want)
		}
	}
}

func TestNestsAndCrosses(t *testing.T) {
	outer := Arc{Events: []int{0, 5}}
	inner := Arc{Events: []int{1, 2}}
	if !outer.Nests(inner) {
		t.Error("expected outer to nest inner")
	}
	if Crosses(outer, inner) {
		t.Error("nested arcs should not count as crossing")
	}

	overlap1 := Arc{Events: []int{0, 3}}
	overlap2 := Arc{Events: []int{2, 5}}
	if !Crosses(overlap1, overlap2) {
		t.Error("expected overlapping arcs to cross")
	}

	disjoint1 := Arc{Events: []int{0, 1}}
	disjoint2 := Arc{Events: []int{2, 3}}
	if Crosses(disjoint1, disjoint2) {
		t.Error("disjoint arcs should not cross")
	}
}

func TestCovers(t *testing.T) {
	a := Arc{Events: []int{0, 2, 4}}
	if !a.Covers(2) {
		t.Error("expected Covers(2) to be true")
	}
	if a.Covers(3) {
		t.Error("expected Covers(3) to be false")
	}
}
