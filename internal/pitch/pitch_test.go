package pitch

import "testing"

func TestParsePitch(t *testing.T) {
	cases := []struct {
		in   string
		want Pitch
	}{
		{"C4", Pitch{'C', 0, 4}},
		{"F#3", Pitch{'F', 1, 3}},
		{"Bb5", Pitch{'B', -1, 5}},
		{"D##2", Pitch{'D', 2, 2}},
	}
	for _, c := range cases {
		got, err := ParsePitch(c.in)
		if err != nil {
			t.Fatalf("ParsePitch(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParsePitch(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestParsePitchErrors(t *testing.T) {
	for _, in := range []string{"", "H4", "C"} {
		if _, err := ParsePitch(in); err == nil {
			t.Errorf("ParsePitch(%q) expected error", in)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"C4", "F#3", "Bb5", "D##2"} {
		p := MustParsePitch(s)
		if p.String() != s {
			t.Errorf("String() = %q, want %q", p.String(), s)
		}
	}
}

func TestSemitoneOctaveSpan(t *testing.T) {
	c4 := MustParsePitch("C4")
	c5 := MustParsePitch("C5")
	if got := c5.Semitone() - c4.Semitone(); got != 12 {
		t.Errorf("octave span = %d, want 12", got)
	}
	if got := c5.DiatonicStep() - c4.DiatonicStep(); got != 7 {
		t.Errorf("octave diatonic span = %d, want 7", got)
	}
}

func TestSamePitchClass(t *testing.T) {
	if !MustParsePitch("C4").SamePitchClass(MustParsePitch("C5")) {
		t.Errorf("C4 and C5 should share a pitch class")
	}
	if !MustParsePitch("C#4").SamePitchClass(MustParsePitch("Db5")) {
		t.Errorf("C#4 and Db5 should share a pitch class")
	}
	if MustParsePitch("C4").SamePitchClass(MustParsePitch("D4")) {
		t.Errorf("C4 and D4 should not share a pitch class")
	}
}

func TestIntervalBetween(t *testing.T) {
	cases := []struct {
		a, b       string
		wantNumber int
		wantQual   int
	}{
		{"C4", "E4", 3, 0},  // major third
		{"C4", "Eb4", 3, -1}, // minor third
		{"C4", "G4", 5, 0},  // perfect fifth
		{"C4", "F#4", 4, 1}, // augmented fourth
		{"E4", "C4", -3, 0}, // descending major third
		{"C4", "C5", 8, 0},  // octave
	}
	for _, c := range cases {
		iv := IntervalBetween(MustParsePitch(c.a), MustParsePitch(c.b))
		if iv.Number != c.wantNumber || iv.Quality != c.wantQual {
			t.Errorf("IntervalBetween(%s,%s) = %+v, want {%d %d}", c.a, c.b, iv, c.wantNumber, c.wantQual)
		}
	}
}

func TestTransposeRoundTrip(t *testing.T) {
	c4 := MustParsePitch("C4")
	g4 := Transpose(c4, 4, 7) // a fifth up
	if g4.String() != "G4" {
		t.Errorf("Transpose up a fifth = %s, want G4", g4.String())
	}
	down := Transpose(c4, -2, -4) // a major third down
	if down.String() != "Ab3" {
		t.Errorf("Transpose down a major third = %s, want Ab3", down.String())
	}
}
