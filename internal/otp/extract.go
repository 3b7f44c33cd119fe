package otp

import (
	"errors"
	"fmt"
	"regexp"
)

const (
	DefaultCodeLength = 4
	MinCodeLength     = 4
	MaxCodeLength     = 6
)

// ErrNotFound is returned when no rule yields a code of the configured
// length. It is the only failure an extraction can report.
var ErrNotFound = errors.New("no verification code found")

// Config is the immutable configuration of one extractor. Zero values
// mean the default 4-digit length and the built-in rule list.
type Config struct {
	CodeLength int
	Rules      []Rule
}

// Result is a successful extraction: the validated code and the name of
// the rule that produced it.
type Result struct {
	Code string
	Rule string
}

type compiledRule struct {
	name  string
	re    *regexp.Regexp
	group int
}

// Extractor applies the ordered rule list to SMS bodies. All state is
// read-only after construction, so a single extractor may be shared
// across goroutines without coordination.
type Extractor struct {
	length int
	rules  []compiledRule
}

func NewExtractor(cfg Config) (*Extractor, error) {
	length := cfg.CodeLength
	if length == 0 {
		length = DefaultCodeLength
	}
	if length < MinCodeLength || length > MaxCodeLength {
		return nil, fmt.Errorf("code length must be %d..%d, got %d", MinCodeLength, MaxCodeLength, length)
	}

	rules := cfg.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(expandPattern(rule.Pattern, length))
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		if rule.Group < 0 || rule.Group > re.NumSubexp() {
			return nil, fmt.Errorf("rule %q: capture group %d out of range", rule.Name, rule.Group)
		}
		compiled = append(compiled, compiledRule{name: rule.Name, re: re, group: rule.Group})
	}

	return &Extractor{length: length, rules: compiled}, nil
}

// CodeLength returns the exact digit count this extractor accepts.
func (e *Extractor) CodeLength() int {
	return e.length
}

// Extract normalizes body and walks the rule list in order, returning
// the first candidate that is exactly the configured number of digit
// characters. A rule whose candidate fails that check is silently
// skipped. ErrNotFound when every rule exhausts; no other error is
// possible and no input panics.
func (e *Extractor) Extract(body string) (Result, error) {
	normalized := Normalize(body)
	if normalized == "" {
		return Result{}, ErrNotFound
	}

	for _, rule := range e.rules {
		m := rule.re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		candidate := m[rule.group]
		if !e.validCode(candidate) {
			continue
		}
		return Result{Code: candidate, Rule: rule.name}, nil
	}

	return Result{}, ErrNotFound
}

func (e *Extractor) validCode(candidate string) bool {
	if len(candidate) != e.length {
		return false
	}
	for i := 0; i < len(candidate); i++ {
		if candidate[i] < '0' || candidate[i] > '9' {
			return false
		}
	}
	return true
}

// Extract runs a one-off extraction with the default configuration.
func Extract(body string) (string, error) {
	res, err := defaultExtractor.Extract(body)
	if err != nil {
		return "", err
	}
	return res.Code, nil
}

var defaultExtractor = func() *Extractor {
	e, err := NewExtractor(Config{})
	if err != nil {
		panic(err)
	}
	return e
}()
