package domain

import "strings"

// Audience is the party a notification addresses.
type Audience int

const (
	AudienceUser Audience = iota
	AudienceAdmin
)

func (a Audience) String() string {
	if a == AudienceAdmin {
		return "admin"
	}
	return "user"
}

// Envelope is everything the email provider needs for one message.
type Envelope struct {
	To        string
	From      string
	Subject   string
	Template  string
	ReplyTo   string
	Variables map[string]string
}

// BuildEnvelope derives the outbound message for audience. Replies from the
// submitter's copy go to the administrator; replies from the administrator's
// copy go back to the submitter.
func BuildEnvelope(cfg FormConfig, sub Submission, audience Audience) Envelope {
	name, _ := sub.Lookup("name")
	email, _ := sub.Lookup("email")

	env := Envelope{
		From:      formatAddress(cfg.Org, cfg.From),
		Variables: templateVariables(cfg, sub),
	}

	switch audience {
	case AudienceAdmin:
		env.To = cfg.AdminEmail
		env.ReplyTo = email
		env.Template = cfg.AdminTemplate.Name
		env.Subject = cfg.AdminTemplate.Subject
	default:
		env.To = formatAddress(name, email)
		env.ReplyTo = cfg.AdminEmail
		env.Template = cfg.UserTemplate.Name
		env.Subject = cfg.UserTemplate.Subject
	}
	return env
}

// templateVariables maps org plus every configured field; unsubmitted fields are left out.
func templateVariables(cfg FormConfig, sub Submission) map[string]string {
	vars := make(map[string]string, len(cfg.Fields)+1)
	vars["org"] = cfg.Org
	for _, field := range cfg.Fields {
		if value, ok := sub.Lookup(field); ok {
			vars[field] = value
		}
	}
	return vars
}

func formatAddress(display, address string) string {
	return strings.TrimSpace(display + " <" + address + ">")
}
