package public

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/sngm3741/form-intake/api/internal/infrastructure/kv"
	"github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/intake/domain"
)

const formConfig = `{
  "prefix": "contact",
  "from": "noreply@example.com",
  "org": "Example Co",
  "admin_email": "admin@example.com",
  "mailgun_domain": "mg.example.com",
  "mailgun_key": "key-123",
  "honeypot": "website",
  "allowed_countries": ["AU"],
  "fields": ["name", "email"],
  "admin_template": {"name": "admin-tpl", "subject": "New"},
  "user_template": {"name": "user-tpl", "subject": "Thanks"}
}`

type fakeMailer struct {
	sent    []domain.Envelope
	failAt  int
	failErr error
}

func (m *fakeMailer) Send(_ context.Context, _ domain.MailCredentials, envelope domain.Envelope) error {
	m.sent = append(m.sent, envelope)
	if m.failErr != nil && len(m.sent) == m.failAt {
		return m.failErr
	}
	return nil
}

type fakeVerifier struct {
	outcome domain.Challenge
	err     error
	token   string
}

func (v *fakeVerifier) Verify(_ context.Context, _, token, _ string) (domain.Challenge, error) {
	v.token = token
	return v.outcome, v.err
}

// recordingStore remembers the keys written after it was wrapped.
type recordingStore struct {
	*kv.MemoryStore
	puts []string
}

func (s *recordingStore) Put(ctx context.Context, key string, value []byte) error {
	s.puts = append(s.puts, key)
	return s.MemoryStore.Put(ctx, key, value)
}

type fixture struct {
	store    *recordingStore
	mailer   *fakeMailer
	verifier *fakeVerifier
	router   http.Handler
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, secret, formConfig)
}

func newFixtureWithConfig(t *testing.T, secret, rawConfig string) *fixture {
	t.Helper()
	memory := kv.NewMemoryStore()
	if err := memory.Put(context.Background(), "contact-form", []byte(rawConfig)); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	store := &recordingStore{MemoryStore: memory}
	f := &fixture{
		store:    store,
		mailer:   &fakeMailer{},
		verifier: &fakeVerifier{outcome: domain.Challenge{Success: true}},
	}
	service := application.NewSubmissionService(application.ServiceConfig{
		Configs:         kv.NewConfigRepository(store),
		Submissions:     kv.NewSubmissionRepository(store),
		Verifier:        f.verifier,
		Mailer:          f.mailer,
		ConfigName:      "contact-form",
		ChallengeSecret: secret,
	})
	handler := NewHandler(Config{
		Submissions: service,
		StagingHost: "contact.pages.dev",
		TokenField:  "cf-turnstile-response",
		Now:         func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC) },
	})
	router := chi.NewRouter()
	router.Route("/api/submit", handler.Register)
	f.router = router
	return f
}

func (f *fixture) post(t *testing.T, values url.Values, headers map[string]string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/submit/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("missing CORS header, got %q", got)
	}
	return rec, body.Message
}

func validForm() url.Values {
	return url.Values{
		"name":    {"A"},
		"email":   {"a@b.com"},
		"website": {""},
	}
}

func TestSubmitStoresThenNotifies(t *testing.T) {
	f := newFixture(t, "")

	rec, message := f.post(t, validForm(), map[string]string{
		"cf-connecting-ip": "1.2.3.4",
		"cf-ipcountry":     "AU",
	})
	if rec.Code != http.StatusOK || message != "Form submission OK" {
		t.Fatalf("unexpected response %d %q", rec.Code, message)
	}

	raw, err := f.store.Get(context.Background(), "contact:2024-01-02T03:04:05.006Z")
	if err != nil {
		t.Fatalf("stored record: %v", err)
	}
	var stored map[string]string
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	want := map[string]string{"name": "A", "email": "a@b.com", "website": "", "ip": "1.2.3.4", "country": "AU"}
	if diff := cmp.Diff(want, stored); diff != "" {
		t.Fatalf("stored record mismatch (-want +got):\n%s", diff)
	}

	if len(f.mailer.sent) != 2 {
		t.Fatalf("expected two sends, got %d", len(f.mailer.sent))
	}
	if f.mailer.sent[0].To != "A <a@b.com>" || f.mailer.sent[1].To != "admin@example.com" {
		t.Fatalf("expected user then admin, got %q then %q", f.mailer.sent[0].To, f.mailer.sent[1].To)
	}
}

func TestSubmitRecordsThreatScore(t *testing.T) {
	f := newFixture(t, "")

	rec, _ := f.post(t, validForm(), map[string]string{"cf-ipcountry": "AU", "x-threat-score": "7"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	raw, err := f.store.Get(context.Background(), "contact:2024-01-02T03:04:05.006Z")
	if err != nil {
		t.Fatalf("stored record: %v", err)
	}
	var stored map[string]string
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if stored["threat_score"] != "7" || stored["ip"] != "" {
		t.Fatalf("unexpected record %v", stored)
	}
}

func TestSubmitRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(url.Values)
		country string
	}{
		{name: "filled honeypot", mutate: func(v url.Values) { v.Set("website", "spam") }, country: "AU"},
		{name: "missing honeypot", mutate: func(v url.Values) { v.Del("website") }, country: "AU"},
		{name: "country not allowed", mutate: func(url.Values) {}, country: "US"},
		{name: "bad email", mutate: func(v url.Values) { v.Set("email", "not-an-email") }, country: "AU"},
		{name: "blank name", mutate: func(v url.Values) { v.Set("name", "") }, country: "AU"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "")
			form := validForm()
			tt.mutate(form)

			rec, message := f.post(t, form, map[string]string{"cf-ipcountry": tt.country})
			if rec.Code != http.StatusBadRequest || message != "Data validation failed" {
				t.Fatalf("unexpected response %d %q", rec.Code, message)
			}
			if len(f.store.puts) != 0 {
				t.Fatalf("expected nothing stored, got %v", f.store.puts)
			}
			if len(f.mailer.sent) != 0 {
				t.Fatalf("expected no sends, got %d", len(f.mailer.sent))
			}
		})
	}
}

func TestSubmitUserSendFailureSkipsAdmin(t *testing.T) {
	f := newFixture(t, "")
	f.mailer.failAt = 1
	f.mailer.failErr = errors.New("mailgun: status=401 message=Forbidden")

	rec, message := f.post(t, validForm(), map[string]string{"cf-ipcountry": "AU"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.HasPrefix(message, "There was a problem sending user email") {
		t.Fatalf("unexpected message %q", message)
	}
	if len(f.mailer.sent) != 1 {
		t.Fatalf("admin send must not be attempted, got %d sends", len(f.mailer.sent))
	}
	if _, err := f.store.Get(context.Background(), "contact:2024-01-02T03:04:05.006Z"); err != nil {
		t.Fatalf("record must be stored before notification: %v", err)
	}
}

func TestSubmitMissingConfig(t *testing.T) {
	f := newFixture(t, "")
	f.store = &recordingStore{MemoryStore: kv.NewMemoryStore()}
	service := application.NewSubmissionService(application.ServiceConfig{
		Configs:     kv.NewConfigRepository(f.store),
		Submissions: kv.NewSubmissionRepository(f.store),
		Mailer:      f.mailer,
		ConfigName:  "contact-form",
	})
	router := chi.NewRouter()
	router.Route("/api/submit", NewHandler(Config{Submissions: service}).Register)
	f.router = router

	rec, message := f.post(t, validForm(), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.HasPrefix(message, `There was a problem getting config ("contact-form")`) {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestSubmitChallenge(t *testing.T) {
	t.Run("token is verified and not stored", func(t *testing.T) {
		f := newFixture(t, "secret")
		form := validForm()
		form.Set("cf-turnstile-response", "tok-1")

		rec, _ := f.post(t, form, map[string]string{"cf-ipcountry": "AU"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if f.verifier.token != "tok-1" {
			t.Fatalf("verifier got token %q", f.verifier.token)
		}
		raw, err := f.store.Get(context.Background(), "contact:2024-01-02T03:04:05.006Z")
		if err != nil {
			t.Fatalf("stored record: %v", err)
		}
		if strings.Contains(string(raw), "tok-1") {
			t.Fatalf("challenge token persisted: %s", raw)
		}
	})

	t.Run("failed challenge", func(t *testing.T) {
		f := newFixture(t, "secret")
		f.verifier.outcome = domain.Challenge{Success: false, ErrorCodes: []string{"invalid-input-response"}}

		rec, message := f.post(t, validForm(), map[string]string{"cf-ipcountry": "AU"})
		if rec.Code != http.StatusBadRequest || message != "Challenge verification failed" {
			t.Fatalf("unexpected response %d %q", rec.Code, message)
		}
		if len(f.store.puts) != 0 || len(f.mailer.sent) != 0 {
			t.Fatal("rejected challenge must not store or send")
		}
	})

	t.Run("verifier error keeps its cause out of the reply", func(t *testing.T) {
		f := newFixture(t, "secret")
		f.verifier.err = errors.New("turnstile: status=502 body=bad gateway")

		rec, message := f.post(t, validForm(), map[string]string{"cf-ipcountry": "AU"})
		if rec.Code != http.StatusBadRequest || message != "There was a problem verifying the challenge" {
			t.Fatalf("unexpected response %d %q", rec.Code, message)
		}
		if strings.Contains(message, "turnstile") || strings.Contains(message, "502") {
			t.Fatalf("verifier detail leaked: %q", message)
		}
		if len(f.store.puts) != 0 || len(f.mailer.sent) != 0 {
			t.Fatal("failed verification must not store or send")
		}
	})
}

func TestSubmitNullConfig(t *testing.T) {
	f := newFixtureWithConfig(t, "", "null")

	rec, message := f.post(t, url.Values{"anything": {"x"}}, map[string]string{"cf-ipcountry": "AU"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d %q", rec.Code, message)
	}
	if !strings.HasPrefix(message, `There was a problem getting config ("contact-form")`) {
		t.Fatalf("unexpected message %q", message)
	}
	if len(f.store.puts) != 0 {
		t.Fatalf("expected nothing stored, got %v", f.store.puts)
	}
	if len(f.mailer.sent) != 0 {
		t.Fatalf("expected no sends, got %d", len(f.mailer.sent))
	}
}

func TestSubmitStagingHost(t *testing.T) {
	f := newFixture(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/submit/", strings.NewReader(validForm().Encode()))
	req.Host = "contact.pages.dev"
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Not Found") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if len(f.mailer.sent) != 0 {
		t.Fatal("staging request must not be processed")
	}
}

func TestSubmitMalformedBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{name: "json body", contentType: "application/json", body: `{"name":"A"}`},
		{name: "no content type", contentType: "", body: "name=A"},
		{name: "bad escape", contentType: "application/x-www-form-urlencoded", body: "name=%zz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "")
			req := httptest.NewRequest(http.MethodPost, "/api/submit/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), "There was a problem getting form data") {
				t.Fatalf("unexpected body %s", rec.Body.String())
			}
		})
	}
}

func TestSubmitMultipart(t *testing.T) {
	f := newFixture(t, "")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range map[string]string{"name": "A", "email": "a@b.com", "website": ""} {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/submit/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("cf-ipcountry", "AU")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitUnroutedRequests(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		target  string
		status  int
		message string
		allow   string
	}{
		{name: "get", method: http.MethodGet, target: "/api/submit/", status: http.StatusMethodNotAllowed, message: "Method Not Allowed", allow: "POST, OPTIONS"},
		{name: "put", method: http.MethodPut, target: "/api/submit/", status: http.StatusMethodNotAllowed, message: "Method Not Allowed", allow: "POST, OPTIONS"},
		{name: "unknown path", method: http.MethodPost, target: "/api/submit/extra", status: http.StatusNotFound, message: "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "")
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Fatalf("missing CORS header, got %q", got)
			}
			if got := rec.Header().Get("Allow"); got != tt.allow {
				t.Fatalf("unexpected Allow header %q", got)
			}
			var body struct {
				Message string `json:"message"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body.Message != tt.message {
				t.Fatalf("unexpected message %q", body.Message)
			}
			if len(f.store.puts) != 0 || len(f.mailer.sent) != 0 {
				t.Fatal("unrouted request must not store or send")
			}
		})
	}
}

func TestPreflight(t *testing.T) {
	f := newFixture(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/api/submit/", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected preflight response %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/submit/", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Allow"); got != "POST, OPTIONS" {
		t.Fatalf("unexpected Allow header %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("plain OPTIONS must not carry CORS headers")
	}
}
