package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidConfig marks a form configuration that cannot be normalized.
var ErrInvalidConfig = errors.New("invalid form configuration")

const (
	// DefaultPrefix namespaces stored submissions when the configuration omits one.
	DefaultPrefix = "submission"
	// WildcardField is the validations key applied to fields without an override.
	WildcardField = "*"
)

// Template identifies the provider-side template and subject for one audience.
type Template struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
}

// FormDocument is the configuration record as stored in the key-value store.
// Optional settings are pointers or nil slices so that absence is observable.
type FormDocument struct {
	Prefix           string                     `json:"prefix,omitempty"`
	From             string                     `json:"from"`
	Org              string                     `json:"org"`
	AdminEmail       string                     `json:"admin_email"`
	MailgunDomain    string                     `json:"mailgun_domain"`
	MailgunKey       string                     `json:"mailgun_key"`
	Honeypot         *string                    `json:"honeypot,omitempty"`
	AllowedCountries []string                   `json:"allowed_countries"`
	Fields           []string                   `json:"fields"`
	AdminTemplate    Template                   `json:"admin_template"`
	UserTemplate     Template                   `json:"user_template"`
	Validations      map[string]json.RawMessage `json:"validations,omitempty"`
}

// MailCredentials authenticate against the email provider for one form.
type MailCredentials struct {
	Domain string
	APIKey string
}

// FormConfig is a fully-resolved form configuration. Build it with
// Normalize or ParseFormConfig; it is not modified afterwards.
type FormConfig struct {
	Prefix        string
	From          string
	Org           string
	AdminEmail    string
	MailgunDomain string
	MailgunKey    string
	Fields        []string
	AdminTemplate Template
	UserTemplate  Template

	honeypot         string
	hasHoneypot      bool
	allowedCountries map[string]struct{}
	rules            map[string]Rule
}

// ParseFormConfig decodes a JSON configuration record and normalizes it.
// The top level must be a JSON object; null, arrays and scalars are rejected.
func ParseFormConfig(data []byte) (FormConfig, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return FormConfig{}, fmt.Errorf("%w: configuration must be a JSON object", ErrInvalidConfig)
	}
	var doc FormDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return FormConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return doc.Normalize()
}

// Normalize applies defaults and resolves every validator specifier.
// Missing validations default to {"*": notblank, "email": email}; a missing
// wildcard defaults to notblank.
func (d FormDocument) Normalize() (FormConfig, error) {
	cfg := FormConfig{
		Prefix:        d.Prefix,
		From:          d.From,
		Org:           d.Org,
		AdminEmail:    d.AdminEmail,
		MailgunDomain: d.MailgunDomain,
		MailgunKey:    d.MailgunKey,
		Fields:        append([]string(nil), d.Fields...),
		AdminTemplate: d.AdminTemplate,
		UserTemplate:  d.UserTemplate,
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}

	if d.Honeypot != nil {
		cfg.honeypot = *d.Honeypot
		cfg.hasHoneypot = true
	}

	if d.AllowedCountries != nil {
		cfg.allowedCountries = make(map[string]struct{}, len(d.AllowedCountries))
		for _, country := range d.AllowedCountries {
			cfg.allowedCountries[country] = struct{}{}
		}
	}

	if d.Validations == nil {
		cfg.rules = map[string]Rule{
			WildcardField: NotBlank(),
			"email":       Email(),
		}
		return cfg, nil
	}

	cfg.rules = make(map[string]Rule, len(d.Validations)+1)
	for field, raw := range d.Validations {
		rule, err := ParseRule(raw)
		if err != nil {
			return FormConfig{}, fmt.Errorf("validations[%q]: %w", field, err)
		}
		cfg.rules[field] = rule
	}
	if _, ok := cfg.rules[WildcardField]; !ok {
		cfg.rules[WildcardField] = NotBlank()
	}
	return cfg, nil
}

// RuleFor resolves the validator for field: its own entry, else the wildcard.
func (c FormConfig) RuleFor(field string) Rule {
	if rule, ok := c.rules[field]; ok {
		return rule
	}
	if rule, ok := c.rules[WildcardField]; ok {
		return rule
	}
	return NotBlank()
}

// Honeypot returns the honeypot field name and whether one is configured.
func (c FormConfig) Honeypot() (string, bool) {
	return c.honeypot, c.hasHoneypot
}

// CountryAllowed reports whether country passes the allow-list. Without an
// allow-list every country passes.
func (c FormConfig) CountryAllowed(country string) bool {
	if c.allowedCountries == nil {
		return true
	}
	_, ok := c.allowedCountries[country]
	return ok
}

// Credentials returns the provider credentials for this form.
func (c FormConfig) Credentials() MailCredentials {
	return MailCredentials{Domain: c.MailgunDomain, APIKey: c.MailgunKey}
}
