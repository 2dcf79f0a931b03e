// Package yamlscore implements a plain-text score fixture format as a
// scoreio.Importer, grounded on the teacher's parser.LoadTrack: a YAML file
// read with gopkg.in/yaml.v3 into tagged structs, exactly the way the
// teacher reads a BTML track file.
package yamlscore

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"westerline/internal/pitch"
	"westerline/internal/scoreio"
)

// document is the on-disk shape of a score fixture: one or more parts,
// ordered top to bottom, each a flat list of pitched events.
type document struct {
	Parts []partDoc `yaml:"parts"`
}

type partDoc struct {
	Name   string     `yaml:"name"`
	Events []eventDoc `yaml:"events"`
}

type eventDoc struct {
	Pitch    string `yaml:"pitch"`
	Measure  int    `yaml:"measure"`
	Onset    string `yaml:"onset"`              // rational, e.g. "0/1", "3/2", or a bare integer
	Duration string `yaml:"duration"`           // same format as Onset
	Tied     bool   `yaml:"tied,omitempty"`
}

// Importer reads score fixtures written in this package's YAML format.
type Importer struct{}

// Import implements scoreio.Importer.
func (Importer) Import(path string) ([][]scoreio.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("yamlscore: reading %s: %w", path, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yamlscore: parsing %s: %w", path, err)
	}
	if len(doc.Parts) == 0 {
		return nil, fmt.Errorf("yamlscore: %s declares no parts", path)
	}

	parts := make([][]scoreio.Event, len(doc.Parts))
	for pi, pd := range doc.Parts {
		if len(pd.Events) == 0 {
			return nil, fmt.Errorf("yamlscore: part %q in %s has no events", pd.Name, path)
		}
		events := make([]scoreio.Event, len(pd.Events))
		for ei, ed := range pd.Events {
			p, err := pitch.ParsePitch(ed.Pitch)
			if err != nil {
				return nil, fmt.Errorf("yamlscore: part %q event %d: %w", pd.Name, ei, err)
			}
			onset, err := parseRat(ed.Onset, "0")
			if err != nil {
				return nil, fmt.Errorf("yamlscore: part %q event %d onset: %w", pd.Name, ei, err)
			}
			dur, err := parseRat(ed.Duration, "1")
			if err != nil {
				return nil, fmt.Errorf("yamlscore: part %q event %d duration: %w", pd.Name, ei, err)
			}
			events[ei] = scoreio.Event{
				Pitch:       p,
				OnsetOffset: onset,
				Duration:    dur,
				Measure:     ed.Measure,
				TiedToNext:  ed.Tied,
			}
		}
		parts[pi] = events
	}
	return parts, nil
}

func parseRat(s, fallback string) (*big.Rat, error) {
	if s == "" {
		s = fallback
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid rational %q", s)
	}
	return r, nil
}
