package otp

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one entry of the ordered extraction list: a pattern plus its
// capture policy. The pattern may contain the placeholder {n}, replaced
// with the configured code length before compiling. Group selects which
// capture group holds the candidate digits; 0 means the whole match.
type Rule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Group   int    `yaml:"group"`
}

// DefaultRules returns the built-in rule list, most specific first.
// Order is part of the contract: rules run top to bottom and the first
// candidate that passes the exact-length check wins outright.
func DefaultRules() []Rule {
	return []Rule{
		// Standalone digit token between word boundaries.
		{Name: "bare-token", Pattern: `\b\d{{n}}\b`, Group: 0},
		// Digits anchored by a verification keyword.
		{Name: "keyword", Pattern: `(?i)\b(?:otp|code|pin|verification|verify)\b[\s:.,;!-]*(\d{{n}})(?:[^0-9]|$)`, Group: 1},
		// Common sender phrasings with an optional "is" connector.
		{Name: "phrase", Pattern: `(?i)(?:verification code|otp is|code)[\s:.,;!-]*(?:is[\s:]*)?(\d{{n}})(?:[^0-9]|$)`, Group: 1},
		// Any digit run of the right length, letters adjacent allowed.
		// Never carves a partial run: both sides must be non-digits.
		{Name: "digit-run", Pattern: `(?:^|[^0-9])(\d{{n}})(?:[^0-9]|$)`, Group: 1},
		// Digits wrapped in brackets or parentheses.
		{Name: "bracketed", Pattern: `[\[(](\d{{n}})[\])]`, Group: 1},
	}
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads an ordered rule list from a YAML file. A broken file
// fails here, at startup, never inside an extraction call.
func LoadRules(path string) ([]Rule, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rf ruleFile
	if err := yaml.Unmarshal(blob, &rf); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if len(rf.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s defines no rules", path)
	}

	for i, rule := range rf.Rules {
		if strings.TrimSpace(rule.Name) == "" {
			return nil, fmt.Errorf("rules file %s: rule %d has no name", path, i+1)
		}
		if err := checkRule(rule); err != nil {
			return nil, fmt.Errorf("rules file %s: %w", path, err)
		}
	}

	return rf.Rules, nil
}

func checkRule(rule Rule) error {
	// Probe-compile with the default length to surface pattern errors.
	re, err := regexp.Compile(expandPattern(rule.Pattern, DefaultCodeLength))
	if err != nil {
		return fmt.Errorf("rule %q: %w", rule.Name, err)
	}
	if rule.Group < 0 || rule.Group > re.NumSubexp() {
		return fmt.Errorf("rule %q: capture group %d out of range", rule.Name, rule.Group)
	}
	return nil
}

func expandPattern(pattern string, length int) string {
	return strings.ReplaceAll(pattern, "{n}", fmt.Sprintf("%d", length))
}
