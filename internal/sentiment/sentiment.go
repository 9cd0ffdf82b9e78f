// Package sentiment classifies post text against configured positive and
// negative indicator-term pattern lists.
package sentiment

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// TermFilter matches text against ordered lists of positive (self-reported
// diagnosis/affect) and negative (exclusion) regular expressions.
type TermFilter struct {
	positive []*regexp.Regexp
	negative []*regexp.Regexp
}

// NewTermFilter loads and compiles the two pattern files. Each file holds one
// regular expression per line; blank lines are ignored. A pattern that fails
// to compile fails the load.
func NewTermFilter(positivePath, negativePath string) (*TermFilter, error) {
	positive, err := loadPatterns(positivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load positive patterns: %w", err)
	}
	negative, err := loadPatterns(negativePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load negative patterns: %w", err)
	}
	return &TermFilter{positive: positive, negative: negative}, nil
}

// NewTermFilterFromPatterns compiles in-memory pattern lists. Used by tests
// and by callers that do not read pattern files.
func NewTermFilterFromPatterns(positive, negative []string) (*TermFilter, error) {
	pos, err := compilePatterns(positive)
	if err != nil {
		return nil, fmt.Errorf("positive patterns: %w", err)
	}
	neg, err := compilePatterns(negative)
	if err != nil {
		return nil, fmt.Errorf("negative patterns: %w", err)
	}
	return &TermFilter{positive: pos, negative: neg}, nil
}

// ContainsPositive reports whether any positive pattern matches anywhere in
// text. The first match short-circuits.
func (f *TermFilter) ContainsPositive(text string) bool {
	return anyMatch(f.positive, text)
}

// ContainsNegative reports whether any negative pattern matches anywhere in text.
func (f *TermFilter) ContainsNegative(text string) bool {
	return anyMatch(f.negative, text)
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func loadPatterns(path string) ([]*regexp.Regexp, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}
	lines := strings.Split(string(data), "\n")
	patterns, err := compilePatterns(lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return patterns, nil
}

func compilePatterns(lines []string) ([]*regexp.Regexp, error) {
	var patterns []*regexp.Regexp
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		re, err := regexp.Compile(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}
