// Package rules rewrites recognized text with user-maintained substitutions.
//
// A rules file holds one rule per line:
//
//	colour => color              literal, case-insensitive, every match
//	s/\bgonna\b/going to/g       sed-style regex with i, g, m and s flags
//	@ta                          following rules apply to Tamil only
//	@en,hi                       ...to English and Hindi
//	@*                           ...to every language again
//
// Blank lines and lines starting with # are ignored.
package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"talkbridge/internal/locale"
)

const DefaultLoopLimit = 30

// ErrUnstable is returned when the rules keep rewriting each other's output.
var ErrUnstable = errors.New("rules did not settle")

type rule interface {
	apply(input string) (output string, changed bool)
}

type scopedRule struct {
	rule
	languages map[string]bool
}

func (r scopedRule) appliesTo(language string) bool {
	return len(r.languages) == 0 || r.languages[language]
}

// Engine applies rules repeatedly until the text stops changing.
type Engine struct {
	rules     []scopedRule
	loopLimit int
}

// NewEngine loads rules from path. A blank path or a missing file yields an
// engine that leaves text untouched.
func NewEngine(path string, loopLimit int) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(strings.NewReader(""), loopLimit)
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Parse(strings.NewReader(""), loopLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file %q: %w", path, err)
	}
	defer file.Close()

	engine, err := Parse(file, loopLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
	}
	return engine, nil
}

func Parse(r io.Reader, loopLimit int) (*Engine, error) {
	if loopLimit <= 0 {
		loopLimit = DefaultLoopLimit
	}

	var (
		rules   []scopedRule
		scope   map[string]bool
		lineNum int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "@"):
			scope = parseScope(line[1:])
			continue
		}

		parsed, err := parseRule(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		rules = append(rules, scopedRule{rule: parsed, languages: scope})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &Engine{rules: rules, loopLimit: loopLimit}, nil
}

// parseScope returns nil for "*", meaning every language.
func parseScope(spec string) map[string]bool {
	languages := make(map[string]bool)
	for _, code := range strings.Split(spec, ",") {
		code = strings.TrimSpace(code)
		if code == "*" {
			return nil
		}
		if code != "" {
			languages[locale.Base(code)] = true
		}
	}
	if len(languages) == 0 {
		return nil
	}
	return languages
}

func parseRule(line string) (rule, error) {
	if looksLikeRegexRule(line) {
		return parseRegexRule(line)
	}
	if strings.Contains(line, "=>") {
		return parseLiteralRule(line)
	}
	return nil, errors.New("unsupported rule format")
}

// Len reports how many rules were loaded.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply rewrites text using the global rules plus those scoped to language.
// On ErrUnstable the partially rewritten text is still returned.
func (e *Engine) Apply(text, language string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}
	base := locale.Base(language)

	result := text
	for pass := 0; pass < e.loopLimit; pass++ {
		changed := false
		for _, r := range e.rules {
			if !r.appliesTo(base) {
				continue
			}
			if next, ok := r.apply(result); ok {
				result = next
				changed = true
			}
		}
		if !changed {
			return result, nil
		}
	}
	return result, fmt.Errorf("%w after %d passes", ErrUnstable, e.loopLimit)
}
