// Package skills extracts controlled-vocabulary skills from free-text
// requirements. Matching is exact case-insensitive substring containment, no
// fuzzy matching.
package skills

import "strings"

// Extractor scans text against an immutable ordered vocabulary.
type Extractor struct {
	vocabulary []string
	lowered    []string
}

// NewExtractor builds an Extractor over the given vocabulary. The vocabulary
// is copied and lowercased once so each Extract call scans it without
// re-allocating.
func NewExtractor(vocabulary []string) *Extractor {
	e := &Extractor{
		vocabulary: make([]string, len(vocabulary)),
		lowered:    make([]string, len(vocabulary)),
	}
	copy(e.vocabulary, vocabulary)
	for i, s := range vocabulary {
		e.lowered[i] = strings.ToLower(s)
	}
	return e
}

// NewDefaultExtractor builds an Extractor over the platform seed vocabulary.
func NewDefaultExtractor() *Extractor {
	return NewExtractor(Vocabulary)
}

// Extract returns the vocabulary skills contained in text, in vocabulary
// order, each at most once. Empty text yields no skills. The result is
// unbounded; callers cap it if they need to.
func (e *Extractor) Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lowered := strings.ToLower(text)

	var found []string
	seen := make(map[string]bool)
	for i, skill := range e.lowered {
		if seen[skill] {
			continue
		}
		if strings.Contains(lowered, skill) {
			found = append(found, e.vocabulary[i])
			seen[skill] = true
		}
	}

	return found
}
