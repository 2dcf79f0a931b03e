// Command westerline evaluates species counterpoint exercises against
// Westergaard's line-construction and voice-leading rules (spec.md §1).
// It exposes two subcommands, evaluate-lines and evaluate-counterpoint
// (spec.md §6 "CLI surface"), in the teacher's hand-rolled flag/switch
// style rather than a flag-parsing framework.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"westerline/internal/context"
	"westerline/internal/csd"
	"westerline/internal/keyfinder"
	"westerline/internal/lineparser"
	"westerline/internal/pitch"
	"westerline/internal/report"
	"westerline/internal/scoreio"
	"westerline/internal/scoreio/midiimport"
	"westerline/internal/scoreio/yamlscore"
	"westerline/internal/selector"
	"westerline/internal/voiceleading"
)

// exitKind distinguishes the error kinds of spec.md §7 for exit-code
// purposes: input and key errors abort with a non-zero exit; parse errors
// and voice-leading findings are reported but exit 0 (spec.md §6 "CLI
// surface": "non-zero only on input errors").
type exitKind int

const (
	exitOK exitKind = iota
	exitInputError
	exitKeyError
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(int(exitInputError))
	}

	command := os.Args[1]
	rest := os.Args[2:]

	switch command {
	case "evaluate-lines":
		os.Exit(int(runEvaluateLines(rest)))
	case "evaluate-counterpoint":
		os.Exit(int(runEvaluateCounterpoint(rest)))
	case "--help", "-h", "help":
		printUsage()
		os.Exit(int(exitOK))
	default:
		fmt.Printf("Error: unknown command %q\n", command)
		printUsage()
		os.Exit(int(exitInputError))
	}
}

func printUsage() {
	fmt.Println("westerline — Westergaard-rule species counterpoint analyzer")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  westerline evaluate-lines <score> [flags]          Check each part's line-types")
	fmt.Println("  westerline evaluate-counterpoint <score> [flags]   Check line-types and voice-leading")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --key <tonic> <major|minor>   Validate/override the key instead of inferring it")
	fmt.Println("  --part <n>                    Restrict analysis to one part (0-based; negative from bottom)")
	fmt.Println("  --line-type <type>            primary | bass | generic | any (default any)")
	fmt.Println("  --format <text|annotated>     Report style (default text)")
	fmt.Println("  --annotate                    Include the annotated per-event rule labels")
	fmt.Println("  --config <file.yaml>          Score-options sidecar; flags override its values")
	fmt.Println("  --branch-cap <n>              Interpretation search branch cap (default 64)")
	fmt.Println("  --no-color                    Disable lipgloss styling in the report")
	fmt.Println()
	fmt.Println("Score files are read as a Standard MIDI File (.mid/.midi) or as this")
	fmt.Println("module's plain-text YAML score fixture (.yaml/.yml), by extension.")
}

// options bundles every CLI and sidecar-config override (spec.md §6 "Key
// override", "Line-selection override").
type options struct {
	keyOverride   *csd.Key
	partSelection *int
	lineType      lineparser.LineType
	lineTypeAny   bool
	format        string
	annotate      bool
	branchCap     int
	noColor       bool
}

func defaultOptions() options {
	return options{lineTypeAny: true, format: "text", branchCap: 0}
}

// sidecarDoc is the on-disk shape of the YAML score-options sidecar
// (SPEC_FULL.md "AMBIENT STACK"), mirroring the teacher's TrackInfo
// struct-tag style.
type sidecarDoc struct {
	Key       string `yaml:"key,omitempty"`
	Part      *int   `yaml:"part,omitempty"`
	LineType  string `yaml:"line_type,omitempty"`
	BranchCap int    `yaml:"branch_cap,omitempty"`
}

// parseFlags extracts westerline's flags from args, in the teacher's
// parseArgs style (a manual scan rather than the flag package), returning
// the populated options and the remaining positional arguments (expected
// to be exactly the score path).
func parseFlags(args []string) (options, []string, error) {
	opts := defaultOptions()
	var configPath string
	var remaining []string

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch a {
		case "--key":
			if i+2 >= len(args) {
				return opts, nil, fmt.Errorf("--key requires a tonic and a mode, e.g. --key D minor")
			}
			k, err := parseKeyArg(args[i+1], args[i+2])
			if err != nil {
				return opts, nil, err
			}
			opts.keyOverride = &k
			i += 2
		case "--part":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("--part requires an integer")
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return opts, nil, fmt.Errorf("--part: %w", err)
			}
			opts.partSelection = &n
			i++
		case "--line-type":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("--line-type requires a value")
			}
			lt, any, err := parseLineType(args[i+1])
			if err != nil {
				return opts, nil, err
			}
			opts.lineType, opts.lineTypeAny = lt, any
			i++
		case "--format":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("--format requires a value")
			}
			opts.format = args[i+1]
			i++
		case "--annotate":
			opts.annotate = true
		case "--no-color":
			opts.noColor = true
		case "--config":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("--config requires a path")
			}
			configPath = args[i+1]
			i++
		case "--branch-cap":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("--branch-cap requires an integer")
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return opts, nil, fmt.Errorf("--branch-cap: %w", err)
			}
			opts.branchCap = n
			i++
		case "--help", "-h":
			printUsage()
			os.Exit(int(exitOK))
		default:
			remaining = append(remaining, a)
		}
	}

	if opts.format == "annotated" {
		opts.annotate = true
	}

	if configPath != "" {
		if err := applySidecar(&opts, configPath); err != nil {
			return opts, nil, err
		}
	}
	return opts, remaining, nil
}

// applySidecar loads the YAML score-options sidecar and fills in any
// option the CLI flags did not already set — "CLI flags take precedence
// over the YAML sidecar when both are given" (SPEC_FULL.md "AMBIENT
// STACK").
func applySidecar(opts *options, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading --config %s: %w", path, err)
	}
	var doc sidecarDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing --config %s: %w", path, err)
	}
	if opts.keyOverride == nil && doc.Key != "" {
		fields := strings.Fields(doc.Key)
		if len(fields) != 2 {
			return fmt.Errorf("--config %s: key must be \"<tonic> <major|minor>\"", path)
		}
		k, err := parseKeyArg(fields[0], fields[1])
		if err != nil {
			return fmt.Errorf("--config %s: %w", path, err)
		}
		opts.keyOverride = &k
	}
	if opts.partSelection == nil && doc.Part != nil {
		opts.partSelection = doc.Part
	}
	if opts.lineTypeAny && doc.LineType != "" {
		lt, any, err := parseLineType(doc.LineType)
		if err != nil {
			return fmt.Errorf("--config %s: %w", path, err)
		}
		opts.lineType, opts.lineTypeAny = lt, any
	}
	if opts.branchCap == 0 && doc.BranchCap != 0 {
		opts.branchCap = doc.BranchCap
	}
	return nil
}

func parseLineType(s string) (lineparser.LineType, bool, error) {
	switch strings.ToLower(s) {
	case "primary":
		return lineparser.Primary, false, nil
	case "bass":
		return lineparser.Bass, false, nil
	case "generic":
		return lineparser.Generic, false, nil
	case "any":
		return lineparser.Primary, true, nil
	default:
		return 0, false, fmt.Errorf("unrecognized line-type %q (want primary, bass, generic, or any)", s)
	}
}

// parseKeyArg parses a (tonicLetter+accidental, mode) pair into a csd.Key
// (spec.md §6 "Key override": "(tonicLetter, accidental, mode) tuple").
func parseKeyArg(tonic, mode string) (csd.Key, error) {
	p, err := pitch.ParsePitch(tonic + "4")
	if err != nil {
		return csd.Key{}, fmt.Errorf("invalid key tonic %q: %w", tonic, err)
	}
	var m csd.Mode
	switch strings.ToLower(mode) {
	case "major", "maj", "m":
		m = csd.Major
	case "minor", "min":
		m = csd.Minor
	default:
		return csd.Key{}, fmt.Errorf("invalid mode %q (want major or minor)", mode)
	}
	return csd.Key{Tonic: p, Mode: m}, nil
}

// loadScore picks an scoreio.Importer by file extension and reads the
// score into its per-part event streams (spec.md §6 "Score import").
func loadScore(path string) ([][]scoreio.Event, error) {
	var importer scoreio.Importer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		importer = midiimport.Importer{}
	case ".yaml", ".yml":
		importer = yamlscore.Importer{}
	default:
		return nil, fmt.Errorf("unrecognized score file extension %q (want .mid/.midi or .yaml/.yml)", filepath.Ext(path))
	}
	parts, err := importer.Import(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("score declares no parts")
	}
	for i, p := range parts {
		if len(p) == 0 {
			return nil, fmt.Errorf("part %d is empty", i)
		}
	}
	return parts, nil
}

// resolveKey validates a user-supplied key or infers one, per spec.md
// §4.2, §7 "Key errors".
func resolveKey(parts [][]scoreio.Event, override *csd.Key) (csd.Key, bool, error) {
	raw := make([][]context.RawEvent, len(parts))
	for i, p := range parts {
		raw[i] = scoreio.ToRawEvents(p)
	}
	if override != nil {
		if err := keyfinder.ValidateKey(raw, *override); err != nil {
			return csd.Key{}, true, err
		}
		return *override, true, nil
	}
	k, err := keyfinder.FindKey(raw)
	if err != nil {
		return csd.Key{}, false, err
	}
	return k, false, nil
}

// selectParts applies spec.md §6's "Line-selection override" partSelection
// (0-based from top, negative from bottom) to narrow the score down to a
// single part, or returns all parts unchanged.
func selectParts(names []string, parts []*context.Part, sel *int) ([]string, []*context.Part, error) {
	if sel == nil {
		return names, parts, nil
	}
	n := len(parts)
	idx := *sel
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return nil, nil, fmt.Errorf("--part %d is out of range for a %d-part score", *sel, n)
	}
	return names[idx : idx+1], parts[idx : idx+1], nil
}

func buildParts(streams [][]scoreio.Event, k csd.Key) ([]string, []*context.Part) {
	names := make([]string, len(streams))
	parts := make([]*context.Part, len(streams))
	for i, s := range streams {
		names[i] = partName(i, len(streams))
		parts[i] = context.BuildPart(scoreio.ToRawEvents(s), k)
	}
	return names, parts
}

func partName(i, n int) string {
	switch {
	case n == 1:
		return "the line"
	case i == 0:
		return "upper voice"
	case i == n-1:
		return "lower voice"
	default:
		return fmt.Sprintf("inner voice %d", i)
	}
}

// requestedLineTypes returns every line-type evaluate-lines should attempt
// for one part: all three, unless the CLI restricted it to a single type
// (spec.md §4.5 "requested line-type (or all)").
func requestedLineTypes(opts options) []lineparser.LineType {
	if !opts.lineTypeAny {
		return []lineparser.LineType{opts.lineType}
	}
	return []lineparser.LineType{lineparser.Primary, lineparser.Bass, lineparser.Generic}
}

func runEvaluateLines(args []string) exitKind {
	opts, rest, err := parseFlags(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return exitInputError
	}
	if len(rest) != 1 {
		fmt.Println("Error: evaluate-lines requires exactly one score path")
		return exitInputError
	}

	streams, err := loadScore(rest[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return exitInputError
	}

	key, userGiven, err := resolveKey(streams, opts.keyOverride)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return exitKeyError
	}

	names, parts := buildParts(streams, key)
	var harmony []context.MeasureHarmony
	if needsHarmony(parts) {
		harmony = context.BuildLocalHarmony(parts, key)
	}

	names, parts, err = selectParts(names, parts, opts.partSelection)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return exitInputError
	}

	builder := report.NewBuilder(key, userGiven)
	if opts.noColor {
		builder.DisableColor()
	}

	for i, part := range parts {
		var results []report.LineTypeResult
		for _, lt := range requestedLineTypes(opts) {
			res := lineparser.Parse(part, key, lt, lineparser.Options{BranchCap: opts.branchCap}, harmony)
			results = append(results, report.LineTypeResult{LineType: lt, Interpretations: len(res.Interpretations), Err: res.Err})
			if opts.annotate && res.Err == nil && len(res.Interpretations) > 0 {
				events, groups := report.Annotate(part, res.Interpretations[0])
				fmt.Println(builder.RenderAnnotated(fmt.Sprintf("%s (%s)", names[i], lt), events, groups))
			}
		}
		builder.AddPart(names[i], results)
	}

	fmt.Print(builder.Render())
	return exitOK
}

func runEvaluateCounterpoint(args []string) exitKind {
	opts, rest, err := parseFlags(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return exitInputError
	}
	if len(rest) != 1 {
		fmt.Println("Error: evaluate-counterpoint requires exactly one score path")
		return exitInputError
	}

	streams, err := loadScore(rest[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return exitInputError
	}
	if len(streams) < 2 && opts.partSelection == nil {
		fmt.Println("Error: evaluate-counterpoint requires at least two parts")
		return exitInputError
	}

	key, userGiven, err := resolveKey(streams, opts.keyOverride)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return exitKeyError
	}

	names, parts := buildParts(streams, key)
	var harmony []context.MeasureHarmony
	if needsHarmony(parts) {
		harmony = context.BuildLocalHarmony(parts, key)
	}

	names, parts, err = selectParts(names, parts, opts.partSelection)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return exitInputError
	}

	builder := report.NewBuilder(key, userGiven)
	if opts.noColor {
		builder.DisableColor()
	}

	selParts := make([]selector.Part, len(parts))
	lineResults := make([]report.LineTypeResult, len(parts))
	partFailed := false
	for i, part := range parts {
		lt, res := chosenLineType(part, key, opts, harmony)
		lineResults[i] = report.LineTypeResult{LineType: lt, Interpretations: len(res.Interpretations), Err: res.Err}
		builder.AddPart(names[i], []report.LineTypeResult{lineResults[i]})
		if res.Err != nil || len(res.Interpretations) == 0 {
			partFailed = true
			continue
		}
		selParts[i] = selector.Part{LineType: lt, Events: part.Events, Interpretations: res.Interpretations}
	}

	if partFailed {
		fmt.Print(builder.Render())
		return exitOK
	}

	combos, err := selector.Select(selParts)
	if err != nil || len(combos) == 0 {
		if err == nil {
			err = fmt.Errorf("no compatible combination of interpretations across parts")
		}
		fmt.Printf("Error: %v\n", err)
		fmt.Print(builder.Render())
		return exitOK
	}
	chosen := combos[0]

	checkerParts := make([]voiceleading.PartInput, len(parts))
	for i, part := range parts {
		interp := selParts[i].Interpretations[chosen.InterpIndex[i]]
		checkerParts[i] = voiceleading.PartInput{
			Name:    names[i],
			Events:  part.Events,
			Labels:  interp.RuleLabels,
			Species: part.Species,
		}
		if opts.annotate {
			events, groups := report.Annotate(part, interp)
			fmt.Println(builder.RenderAnnotated(names[i], events, groups))
		}
	}

	violations := voiceleading.Check(checkerParts)
	builder.AddViolations(violations)
	fmt.Print(builder.Render())
	return exitOK
}

// chosenLineType implements the CLI's default per-part typing policy for
// evaluate-counterpoint when --line-type is not pinned: try primary, then
// bass, then generic, and keep the first type that yields at least one
// interpretation. This matches spec.md §8 scenario 3 (a stepwise-neighbor
// upper voice parses as generic; a tonic-dominant-tonic lower voice parses
// as bass) without a combinatorial search over every part's line-type
// assignment — see DESIGN.md "Open Questions".
func chosenLineType(part *context.Part, key csd.Key, opts options, harmony []context.MeasureHarmony) (lineparser.LineType, lineparser.Result) {
	if !opts.lineTypeAny {
		return opts.lineType, lineparser.Parse(part, key, opts.lineType, lineparser.Options{BranchCap: opts.branchCap}, harmony)
	}
	var last lineparser.Result
	for _, lt := range []lineparser.LineType{lineparser.Primary, lineparser.Bass, lineparser.Generic} {
		res := lineparser.Parse(part, key, lt, lineparser.Options{BranchCap: opts.branchCap}, harmony)
		if res.Err == nil && len(res.Interpretations) > 0 {
			return lt, res
		}
		last = res
	}
	return lineparser.Generic, last
}

// needsHarmony reports whether any part is third species or denser, in
// which case the local harmonic context (spec.md §4.7) must be built
// before parsing.
func needsHarmony(parts []*context.Part) bool {
	for _, p := range parts {
		if p.Species >= context.Species3 {
			return true
		}
	}
	return false
}
