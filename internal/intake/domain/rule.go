package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// RuleKind enumerates the validator specifiers a form configuration may name.
type RuleKind int

const (
	RuleNotBlank RuleKind = iota
	RuleBlank
	RuleEmail
	RulePhone
	RuleRegex
	RuleOneOf
)

const regexRulePrefix = "regex:"

var (
	emailPattern = regexp.MustCompile(`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)
	phonePattern = regexp.MustCompile(`^(\d{4}-\d{3}-\d{3}|\d{4} \d{3} \d{3}|\d{10}|\+[1-9]\d{10})$`)
)

// Rule is a resolved field validator. The zero value is NotBlank.
type Rule struct {
	kind    RuleKind
	source  string
	pattern *regexp.Regexp
	options map[string]struct{}
}

// NotBlank requires the field to be present and non-empty.
func NotBlank() Rule { return Rule{kind: RuleNotBlank} }

// Blank requires the field to be present and empty.
func Blank() Rule { return Rule{kind: RuleBlank} }

// Email requires a conservative RFC 5322 subset address.
func Email() Rule { return Rule{kind: RuleEmail} }

// Phone accepts "NNNN-NNN-NNN", "NNNN NNN NNN", ten bare digits, or "+" and eleven digits.
func Phone() Rule { return Rule{kind: RulePhone} }

// Regex compiles pattern so that it must match the whole value.
func Regex(pattern string) (Rule, error) {
	compiled, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: regex %q: %v", ErrInvalidConfig, pattern, err)
	}
	return Rule{kind: RuleRegex, source: pattern, pattern: compiled}, nil
}

// OneOf accepts exactly one of the literal values.
func OneOf(values ...string) Rule {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return Rule{kind: RuleOneOf, options: set}
}

// ParseRule resolves a JSON validator specifier: a string naming a validator
// (or "regex:<pattern>"), or an array of allowed literal strings.
func ParseRule(raw json.RawMessage) (Rule, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Rule{}, fmt.Errorf("%w: empty validator", ErrInvalidConfig)
	}

	switch trimmed[0] {
	case '"':
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return Rule{}, fmt.Errorf("%w: validator: %v", ErrInvalidConfig, err)
		}
		return ParseRuleName(name)
	case '[':
		var values []string
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return Rule{}, fmt.Errorf("%w: validator list must contain only strings: %v", ErrInvalidConfig, err)
		}
		return OneOf(values...), nil
	}
	return Rule{}, fmt.Errorf("%w: unsupported validator %s", ErrInvalidConfig, string(trimmed))
}

// ParseRuleName resolves a single named validator.
func ParseRuleName(name string) (Rule, error) {
	if strings.HasPrefix(name, regexRulePrefix) {
		return Regex(strings.TrimPrefix(name, regexRulePrefix))
	}
	switch name {
	case "notblank":
		return NotBlank(), nil
	case "blank":
		return Blank(), nil
	case "email":
		return Email(), nil
	case "phone":
		return Phone(), nil
	}
	return Rule{}, fmt.Errorf("%w: unknown validator %q", ErrInvalidConfig, name)
}

// Check reports whether value satisfies the rule. present is false when the
// field was missing from the submission; every rule rejects a missing field.
func (r Rule) Check(value string, present bool) bool {
	if !present {
		return false
	}
	switch r.kind {
	case RuleNotBlank:
		return value != ""
	case RuleBlank:
		return value == ""
	case RuleEmail:
		return emailPattern.MatchString(value)
	case RulePhone:
		return phonePattern.MatchString(value)
	case RuleRegex:
		return r.pattern != nil && r.pattern.MatchString(value)
	case RuleOneOf:
		_, ok := r.options[value]
		return ok
	}
	return false
}

func (r Rule) String() string {
	switch r.kind {
	case RuleNotBlank:
		return "notblank"
	case RuleBlank:
		return "blank"
	case RuleEmail:
		return "email"
	case RulePhone:
		return "phone"
	case RuleRegex:
		return regexRulePrefix + r.source
	case RuleOneOf:
		values := make([]string, 0, len(r.options))
		for v := range r.options {
			values = append(values, v)
		}
		sort.Strings(values)
		return "oneof[" + strings.Join(values, ",") + "]"
	}
	return "unknown"
}
