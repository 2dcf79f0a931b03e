package keyfinder

import (
	"math/big"
	"testing"

	"westerline/internal/context"
	"westerline/internal/csd"
	"westerline/internal/pitch"
)

func rat(n int64) *big.Rat { return big.NewRat(n, 1) }

func rawFrom(letters ...string) []context.RawEvent {
	raw := make([]context.RawEvent, len(letters))
	for i, l := range letters {
		raw[i] = context.RawEvent{
			Pitch:       pitch.MustParsePitch(l),
			OnsetOffset: rat(int64(i)),
			Duration:    rat(1),
			Measure:     i,
		}
	}
	return raw
}

func TestFindKeyCMajorOctave(t *testing.T) {
	part := rawFrom("C4", "D4", "E4", "F4", "G4", "A4", "B4", "C5")
	k, err := FindKey([][]context.RawEvent{part})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.Mode != csd.Major || pitchClass(k.Tonic) != 0 {
		t.Errorf("got %s, want C major", k)
	}
}

func TestFindKeyTwoPartsIntersect(t *testing.T) {
	upper := rawFrom("C4", "D4", "E4", "D4", "C4")
	lower := rawFrom("C4", "G3", "C4")
	k, err := FindKey([][]context.RawEvent{upper, lower})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pitchClass(k.Tonic) != 0 {
		t.Errorf("got %s, want tonic pitch class 0", k)
	}
}

func TestFindKeyRejectsNonDiatonicLine(t *testing.T) {
	part := rawFrom("C4", "C#4", "D4", "C4")
	_, err := FindKey([][]context.RawEvent{part})
	if err == nil {
		t.Fatal("expected no surviving candidate for a chromatic line")
	}
}

func TestFindKeyMajorMinorTieBreaksOnEndingAndPrefersMajor(t *testing.T) {
	// A bare root-fifth skeleton never touches the third, so it is
	// diatonic and triad-consistent in both C major and C minor and ends
	// on the tonic in both readings: the mode tie-break should prefer
	// major.
	part := rawFrom("C4", "G4", "C4")
	k, err := FindKey([][]context.RawEvent{part})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.Mode != csd.Major {
		t.Errorf("expected major preferred on tie, got %s", k)
	}
}

func TestValidateKeyAcceptsConsistentKey(t *testing.T) {
	part := rawFrom("C4", "D4", "E4", "F4", "G4", "A4", "B4", "C5")
	k := csd.Key{Tonic: pitch.MustParsePitch("C4"), Mode: csd.Major}
	if err := ValidateKey([][]context.RawEvent{part}, k); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestValidateKeyRejectsInconsistentKey(t *testing.T) {
	part := rawFrom("C4", "D4", "E4", "F4", "G4", "A4", "B4", "C5")
	k := csd.Key{Tonic: pitch.MustParsePitch("D4"), Mode: csd.Major}
	if err := ValidateKey([][]context.RawEvent{part}, k); err == nil {
		t.Error("expected validation error for a key the line is not diatonic in")
	}
}
