package domain

import "time"

const (
	FieldIP          = "ip"
	FieldCountry     = "country"
	FieldThreatScore = "threat_score"
)

// isoTimestamp matches the millisecond UTC form used in storage keys.
const isoTimestamp = "2006-01-02T15:04:05.000Z"

// Submission is the raw field/value set posted by a client.
type Submission map[string]string

// Lookup returns the value of name and whether it was submitted.
func (s Submission) Lookup(name string) (string, bool) {
	v, ok := s[name]
	return v, ok
}

// Without returns a copy of s with keys removed.
func (s Submission) Without(keys ...string) Submission {
	out := make(Submission, len(s))
	for k, v := range s {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Origin carries request metadata recorded alongside a submission.
type Origin struct {
	IP             string
	Country        string
	ThreatScore    string
	HasThreatScore bool
}

// Augment returns the record to persist: every submitted field plus ip and
// country, and threat_score when the request carried one.
func (s Submission) Augment(origin Origin) Submission {
	out := s.Without()
	out[FieldIP] = origin.IP
	out[FieldCountry] = origin.Country
	if origin.HasThreatScore {
		out[FieldThreatScore] = origin.ThreatScore
	}
	return out
}

// StorageKey returns "<prefix>:<ISO-8601 UTC timestamp>".
func StorageKey(prefix string, receivedAt time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ":" + receivedAt.UTC().Format(isoTimestamp)
}
