package domain

import "fmt"

// Gate names the check that rejected a submission.
type Gate string

const (
	GateCountry  Gate = "country"
	GateHoneypot Gate = "honeypot"
	GateField    Gate = "field"
)

// Result is the validation outcome. Field and Rule are set only for GateField
// failures; Field also carries the honeypot name for GateHoneypot.
type Result struct {
	Valid  bool
	Gate   Gate
	Field  string
	Rule   string
	Reason string
}

func (r Result) String() string {
	if r.Valid {
		return "valid"
	}
	if r.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", r.Gate, r.Field, r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Gate, r.Reason)
}

// Validate applies the country gate, the honeypot gate and then every
// configured field in order, stopping at the first failure.
func Validate(cfg FormConfig, country string, sub Submission) Result {
	if !cfg.CountryAllowed(country) {
		return Result{Gate: GateCountry, Reason: fmt.Sprintf("country %q is not allowed", country)}
	}

	if name, ok := cfg.Honeypot(); ok {
		value, present := sub.Lookup(name)
		if !present {
			return Result{Gate: GateHoneypot, Field: name, Reason: "honeypot field missing"}
		}
		if value != "" {
			return Result{Gate: GateHoneypot, Field: name, Reason: "honeypot field set"}
		}
	}

	for _, field := range cfg.Fields {
		rule := cfg.RuleFor(field)
		value, present := sub.Lookup(field)
		if !rule.Check(value, present) {
			reason := "value rejected"
			if !present {
				reason = "field missing"
			}
			return Result{Gate: GateField, Field: field, Rule: rule.String(), Reason: reason}
		}
	}

	return Result{Valid: true}
}

// FieldValid reports whether value satisfies rule. present is false when the
// field was not submitted.
func FieldValid(value string, present bool, rule Rule) bool {
	return rule.Check(value, present)
}
