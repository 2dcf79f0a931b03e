// Package report implements the Report & Annotation Layer (spec.md §4.8's
// neighbor and §6 "Output — text report" / "Output — annotated score"): it
// turns the outcome of key-finding, line-parsing, and voice-leading
// checking into the PARSE REPORT text block the CLI prints, and an
// optional per-part annotated rendering of rule labels and arc groupings.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"westerline/internal/arc"
	"westerline/internal/context"
	"westerline/internal/csd"
	"westerline/internal/lineparser"
	"westerline/internal/voiceleading"
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	structuralStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6666"))

	elaborationStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#888888"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))
)

// LineTypeResult is one (line-type, part) outcome: either the count of
// surviving interpretations, or the shallowest-failure diagnostic
// (spec.md §4.5 "Termination", §7 "Parse errors").
type LineTypeResult struct {
	LineType        lineparser.LineType
	Interpretations int
	Err             error
}

// Generable reports whether at least one interpretation survived.
func (r LineTypeResult) Generable() bool { return r.Err == nil && r.Interpretations > 0 }

// PartReport bundles one part's name and its outcome for every requested
// line-type.
type PartReport struct {
	Name    string
	Results []LineTypeResult
}

// Builder accumulates the facts a PARSE REPORT renders, in the order the
// CLI discovers them, then renders them as one text block per spec.md §6.
type Builder struct {
	Key          csd.Key
	KeyUserGiven bool
	Parts        []PartReport
	Violations   []voiceleading.Violation
	color        bool
}

// NewBuilder starts a report for the given key (either inferred by
// internal/keyfinder or supplied by the caller via --key).
func NewBuilder(k csd.Key, userGiven bool) *Builder {
	return &Builder{Key: k, KeyUserGiven: userGiven, color: true}
}

// DisableColor turns off lipgloss styling, for plain-text output (piping,
// or tests that compare literal strings).
func (b *Builder) DisableColor() { b.color = false }

func (b *Builder) AddPart(name string, results []LineTypeResult) {
	b.Parts = append(b.Parts, PartReport{Name: name, Results: results})
}

func (b *Builder) AddViolations(v []voiceleading.Violation) {
	b.Violations = append(b.Violations, v...)
}

func (b *Builder) style(s lipgloss.Style, text string) string {
	if !b.color {
		return text
	}
	return s.Render(text)
}

// Render produces the full PARSE REPORT text block (spec.md §6).
func (b *Builder) Render() string {
	var sb strings.Builder
	sb.WriteString(b.style(headingStyle, "PARSE REPORT"))
	sb.WriteString("\n\n")

	source := "inferred"
	if b.KeyUserGiven {
		source = "user-supplied"
	}
	fmt.Fprintf(&sb, "key: %s (%s)\n", b.Key.String(), source)

	for _, part := range b.Parts {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%s:\n", part.Name)
		for _, r := range part.Results {
			if r.Generable() {
				plural := ""
				if r.Interpretations != 1 {
					plural = "s"
				}
				fmt.Fprintf(&sb, "  %s line: generable (%d interpretation%s)\n", r.LineType, r.Interpretations, plural)
				continue
			}
			msg := "admits no interpretation"
			if r.Err != nil {
				msg = r.Err.Error()
			}
			fmt.Fprintf(&sb, "  %s line: %s\n", r.LineType, b.style(errorStyle, "not generable: "+msg))
		}
	}

	sb.WriteString("\n")
	if len(b.Violations) == 0 {
		sb.WriteString("voice-leading: no violations found\n")
	} else {
		fmt.Fprintf(&sb, "voice-leading: %d violation(s) found\n", len(b.Violations))
		for _, v := range sortedViolations(b.Violations) {
			sb.WriteString("  " + b.style(errorStyle, formatViolation(v)) + "\n")
		}
	}
	return sb.String()
}

func sortedViolations(vs []voiceleading.Violation) []voiceleading.Violation {
	out := make([]voiceleading.Violation, len(vs))
	copy(out, vs)
	sort.SliceStable(out, func(i, j int) bool {
		return firstMeasure(out[i]) < firstMeasure(out[j])
	})
	return out
}

func firstMeasure(v voiceleading.Violation) int {
	if len(v.Measures) == 0 {
		return 0
	}
	return v.Measures[0]
}

func formatViolation(v voiceleading.Violation) string {
	if len(v.Measures) == 0 {
		return v.Message
	}
	bars := make([]string, len(v.Measures))
	for i, m := range v.Measures {
		bars[i] = fmt.Sprintf("%d", m)
	}
	return fmt.Sprintf("[m.%s] %s", strings.Join(bars, ","), v.Message)
}

// AnnotatedEvent is one event of an annotated score (spec.md §6 "Output —
// annotated score"): its pitch, measure, and the rule label that generated
// it. Structural marks the event as one of S1/S2/S3/FinalTonic/GenericHead
// /BassArpeggiation, rendered distinctly from elaborations.
type AnnotatedEvent struct {
	Index      int
	Pitch      string
	Measure    int
	Rule       arc.Rule
	Structural bool
}

// AnnotatedGroup is one arc materialized as a slur-like grouping: solid for
// a same-register span, dashed for a register-transfer span.
type AnnotatedGroup struct {
	Head    int
	Final   int
	Rule    arc.Rule
	Dashed  bool
}

var structuralRules = map[arc.Rule]bool{
	arc.RuleS1: true, arc.RuleS2: true, arc.RuleS3: true,
	arc.RuleFinalTonic: true, arc.RuleGenericHead: true, arc.RuleBassArpeggiation: true,
}

// Annotate builds the annotated-score data for one part's chosen
// interpretation.
func Annotate(part *context.Part, interp lineparser.Interpretation) ([]AnnotatedEvent, []AnnotatedGroup) {
	events := make([]AnnotatedEvent, len(part.Events))
	for i, ev := range part.Events {
		r := interp.RuleLabels[i]
		events[i] = AnnotatedEvent{
			Index:      i,
			Pitch:      ev.Pitch.String(),
			Measure:    ev.Measure,
			Rule:       r,
			Structural: structuralRules[r],
		}
	}
	groups := make([]AnnotatedGroup, len(interp.Arcs))
	for i, a := range interp.Arcs {
		groups[i] = AnnotatedGroup{
			Head:   a.Head(),
			Final:  a.Final(),
			Rule:   a.Rule,
			Dashed: a.Shape == arc.ShapeRegisterTransfer,
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Head != groups[j].Head {
			return groups[i].Head < groups[j].Head
		}
		return groups[i].Final < groups[j].Final
	})
	return events, groups
}

// RenderAnnotated renders one part's annotated score as text: one line per
// event (pitch, measure, rule label, colored by structural/elaboration),
// followed by its arc groupings.
func (b *Builder) RenderAnnotated(name string, events []AnnotatedEvent, groups []AnnotatedGroup) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (annotated):\n", name)
	for _, e := range events {
		style := elaborationStyle
		if e.Structural {
			style = structuralStyle
		}
		fmt.Fprintf(&sb, "  [%d] m.%-3d %-4s %s\n", e.Index, e.Measure, e.Pitch, b.style(style, e.Rule.String()))
	}
	for _, g := range groups {
		bracket := "slur"
		if g.Dashed {
			bracket = "register-transfer"
		}
		fmt.Fprintf(&sb, "  %s(%s): events %d-%d\n", bracket, g.Rule, g.Head, g.Final)
	}
	return sb.String()
}
