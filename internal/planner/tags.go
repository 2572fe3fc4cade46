package planner

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

var (
	// ErrNoCandidateTag is returned when no tag qualifies for resolution.
	ErrNoCandidateTag = errors.New("no candidate tag")
	// ErrAmbiguousTag is returned when the two newest candidates share a sort key.
	ErrAmbiguousTag = errors.New("ambiguous newest tag")
)

type tagCandidate struct {
	tag string
	key string
}

// ResolveTag picks the newest tag. Without an extractor tags are sorted
// descending by their raw value. With an extractor only matching tags are
// kept and sorted descending by the first submatch of the expression; an
// expression without capture groups yields an empty key for every tag.
func ResolveTag(tags []string, extractor *regexp.Regexp) (string, error) {
	candidates := make([]tagCandidate, 0, len(tags))
	for _, tag := range tags {
		if extractor == nil {
			candidates = append(candidates, tagCandidate{tag: tag, key: tag})
			continue
		}
		match := extractor.FindStringSubmatch(tag)
		if match == nil {
			continue
		}
		key := ""
		if len(match) > 1 {
			key = match[1]
		}
		candidates = append(candidates, tagCandidate{tag: tag, key: key})
	}

	if len(candidates) == 0 {
		return "", ErrNoCandidateTag
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].key > candidates[j].key
	})

	if len(candidates) > 1 && candidates[0].key == candidates[1].key {
		return "", fmt.Errorf("%w: %q and %q both sort as %q", ErrAmbiguousTag, candidates[0].tag, candidates[1].tag, candidates[0].key)
	}
	return candidates[0].tag, nil
}
