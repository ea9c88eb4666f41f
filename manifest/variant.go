package manifest

import (
	"math"
	"slices"
	"strings"
)

// ResolveVariant maps requested to the best available variant bundle.
//
// requested may be a variant base ("chars") or any member of its group
// ("chars.sd"). The member whose tag appears earliest in accepted wins;
// ties keep catalog order. Names without a variant group, and requests
// with no acceptable member, are returned unchanged.
func (m *Manifest) ResolveVariant(requested string, accepted []string) string {
	if m == nil {
		return requested
	}
	base := requested
	if b, ok := m.variantOf[requested]; ok {
		base = b
	}
	group, ok := m.variants[base]
	if !ok {
		return requested
	}
	return selectVariant(requested, group, accepted, func(name string) string {
		return m.variantTag[name]
	})
}

// SelectVariant picks from candidates ("<base>.<tag>") the one whose tag has
// the lowest index in accepted. It returns requested when none match.
func SelectVariant(requested string, candidates, accepted []string) string {
	return selectVariant(requested, candidates, accepted, func(name string) string {
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return ""
		}
		return name[i+1:]
	})
}

// selectVariant ranks candidates by the index of tagOf(candidate) in accepted.
// Candidates with an empty tag never match.
func selectVariant(requested string, candidates, accepted []string, tagOf func(string) string) string {
	best := ""
	bestIndex := math.MaxInt
	for _, candidate := range candidates {
		tag := tagOf(candidate)
		if tag == "" {
			continue
		}
		found := slices.Index(accepted, tag)
		if found >= 0 && found < bestIndex {
			best = candidate
			bestIndex = found
		}
	}
	if best == "" {
		return requested
	}
	return best
}
