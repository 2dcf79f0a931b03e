// Package selector implements the Parse-Selection Layer (spec.md §4.6):
// given each part's surviving line-parser interpretations, it filters
// cross-part combinations down to those preferred by Westergaard's
// structural-dominant alignment rule, without ever inventing a new
// interpretation.
package selector

import (
	"fmt"
	"math/big"

	"westerline/internal/context"
	"westerline/internal/lineparser"
)

// Part bundles one part's requested line-type, its built events (needed to
// resolve S3Index/S3Final to an absolute offset), and the interpretations
// lineparser.Parse produced for it.
type Part struct {
	LineType        lineparser.LineType
	Events          []context.Event
	Interpretations []lineparser.Interpretation
}

// Combination is one surviving joint choice of interpretation across all
// parts: PartIndex -> index into that part's Interpretations slice.
// Distance is the structural-dominant offset distance that justified
// keeping it, or nil when no primary/bass pair was available to measure.
type Combination struct {
	InterpIndex map[int]int
	Distance    *big.Rat
}

// Select implements spec.md §4.6: single-part inputs pass through
// unfiltered; the two- and three-part cases minimize the offset distance
// between the structural dominant of an upper primary line and of the bass
// line, keeping ties. A three-part score with no upper primary line is an
// error, per spec. Any additional non-primary, non-bass parts pass through
// unfiltered alongside the minimized pair, since the spec defines no
// further preference rule for them.
func Select(parts []Part) ([]Combination, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("no parts to select interpretations for")
	}
	for i, p := range parts {
		if len(p.Interpretations) == 0 {
			return nil, fmt.Errorf("part %d has no surviving interpretation to select from", i)
		}
	}

	if len(parts) == 1 {
		return passthroughAll(parts), nil
	}

	bassIdx, bassOK := firstIndexOfType(parts, lineparser.Bass)
	primaryIdx, primaryOK := firstUpperPrimary(parts, bassIdx)

	if len(parts) >= 3 && !primaryOK {
		return nil, fmt.Errorf("a three-or-more-part score requires at least one upper primary line")
	}

	if !bassOK || !primaryOK {
		return passthroughAll(parts), nil
	}

	return selectWithAnchor(parts, primaryIdx, bassIdx), nil
}

func firstIndexOfType(parts []Part, lt lineparser.LineType) (int, bool) {
	for i, p := range parts {
		if p.LineType == lt {
			return i, true
		}
	}
	return 0, false
}

// firstUpperPrimary finds the first part (other than the bass part at
// bassIdx) whose requested line-type is Primary.
func firstUpperPrimary(parts []Part, bassIdx int) (int, bool) {
	for i, p := range parts {
		if i == bassIdx {
			continue
		}
		if p.LineType == lineparser.Primary {
			return i, true
		}
	}
	return 0, false
}

// selectWithAnchor computes, for every (primary, bass) interpretation pair,
// the offset distance between the primary's S3Final event and the bass's
// S3Index event, keeps the pairs at the minimum distance, and combines each
// surviving pair with every interpretation of every other part (which pass
// through unfiltered, per spec.md §4.6).
func selectWithAnchor(parts []Part, primaryIdx, bassIdx int) []Combination {
	primary := parts[primaryIdx]
	bass := parts[bassIdx]

	type pair struct {
		pInterp, bInterp int
		distance         *big.Rat
	}
	var pairs []pair
	var min *big.Rat
	for pi, pInterp := range primary.Interpretations {
		if pInterp.S3Final == nil {
			continue
		}
		pOffset := absoluteOffset(primary.Events[*pInterp.S3Final])
		for bi, bInterp := range bass.Interpretations {
			if bInterp.S3Index < 0 {
				continue
			}
			bOffset := absoluteOffset(bass.Events[bInterp.S3Index])
			d := new(big.Rat).Sub(pOffset, bOffset)
			d.Abs(d)
			if min == nil || d.Cmp(min) < 0 {
				min = d
			}
			pairs = append(pairs, pair{pInterp: pi, bInterp: bi, distance: d})
		}
	}

	otherIdx := make([]int, 0, len(parts)-2)
	for i := range parts {
		if i != primaryIdx && i != bassIdx {
			otherIdx = append(otherIdx, i)
		}
	}

	var combos []Combination
	for _, pr := range pairs {
		if min != nil && pr.distance.Cmp(min) != 0 {
			continue
		}
		base := map[int]int{primaryIdx: pr.pInterp, bassIdx: pr.bInterp}
		combos = append(combos, expandOthers(parts, otherIdx, 0, base, pr.distance)...)
	}
	return combos
}

// expandOthers forms the cross product of base with every interpretation of
// every remaining (non-anchor) part.
func expandOthers(parts []Part, otherIdx []int, pos int, base map[int]int, distance *big.Rat) []Combination {
	if pos == len(otherIdx) {
		copied := make(map[int]int, len(base))
		for k, v := range base {
			copied[k] = v
		}
		return []Combination{{InterpIndex: copied, Distance: distance}}
	}
	partIdx := otherIdx[pos]
	var out []Combination
	for ii := range parts[partIdx].Interpretations {
		base[partIdx] = ii
		out = append(out, expandOthers(parts, otherIdx, pos+1, base, distance)...)
	}
	delete(base, partIdx)
	return out
}

func passthroughAll(parts []Part) []Combination {
	idx := make([]int, len(parts))
	for i := range parts {
		idx[i] = i
	}
	return expandOthers(parts, idx, 0, map[int]int{}, nil)
}

// absoluteOffset gives an event a single comparable position: its measure
// number plus its fractional offset within the measure. Scores are assumed
// to express OnsetOffset as a sub-measure quarter-note position, consistent
// with how internal/context.BuildPart receives it from score import.
func absoluteOffset(ev context.Event) *big.Rat {
	pos := new(big.Rat).SetInt64(int64(ev.Measure))
	if ev.OnsetOffset != nil {
		pos.Add(pos, ev.OnsetOffset)
	}
	return pos
}
