package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"callscreen/internal/admission"
	"callscreen/internal/ai"
	"callscreen/internal/config"
	"callscreen/internal/conversation"
	"callscreen/internal/dialog"
	"callscreen/internal/scoring"
	"callscreen/internal/store"
	"callscreen/internal/telephony"
	"callscreen/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-api-key-0123456789"

type stubGenerator struct{ reply string }

func (g stubGenerator) Generate(context.Context, string) (string, error) { return g.reply, nil }

type stubScorer struct{ total float64 }

func (s stubScorer) Score(context.Context, types.Document, types.JobSpecification) scoring.Result {
	return scoring.Result{Total: s.total, Extracted: true}
}

type stubPlacer struct {
	mu     sync.Mutex
	dialed []string
}

func (p *stubPlacer) PlaceCall(_ context.Context, to string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialed = append(p.dialed, to)
	return "CA-placed", nil
}

type memoryTranscripts struct {
	mu      sync.Mutex
	records []store.TranscriptRecord
}

func (m *memoryTranscripts) Append(rec store.TranscriptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

type stubReporter struct{}

func (stubReporter) Report(context.Context, string) (string, error) { return "Strong candidate.", nil }

type stubOracle struct{ available bool }

func (o stubOracle) GetModelInfo(context.Context) *ai.ModelInfo {
	return &ai.ModelInfo{Name: "stub-model", Available: o.available}
}

func (o stubOracle) CircuitBreakerStats() map[string]any { return map[string]any{"state": "closed"} }

type testEnv struct {
	server      *Server
	handler     http.Handler
	store       *store.SQLiteStore
	gate        *admission.Gate
	dialog      *dialog.Orchestrator
	placer      *stubPlacer
	transcripts *memoryTranscripts
}

func screeningConfig() config.ScreeningConfig {
	return config.ScreeningConfig{
		TimeLimit:       180 * time.Second,
		ScoreThreshold:  30,
		Greeting:        "Hello candidate! Please introduce yourself.",
		Continuation:    "Go ahead and continue...",
		Expiry:          "Your time is up. Thank you for your interest. Goodbye!",
		Farewell:        "Thank you for your time. Goodbye!",
		Fallback:        "Sorry, could you repeat that?",
		EndMarker:       "<<<END_CALL>>>",
		EndPhrases:      []string{"cut the call", "end the call"},
		Role:            "software engineering",
		FinalizeTimeout: 5 * time.Second,
	}
}

func newTestEnv(t *testing.T, mutate func(*ServerConfig)) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "callscreen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, st.Close()) })

	screening := screeningConfig()
	machine := conversation.NewMachine(conversation.NewRegistry(),
		conversation.SettingsFromConfig(screening), stubGenerator{reply: "Tell me about Go."}, nil)
	transcripts := &memoryTranscripts{}
	orchestrator := dialog.New(dialog.Options{
		Machine:     machine,
		Transcripts: transcripts,
		Reporter:    stubReporter{},
		Store:       st,
		Screening:   screening,
		Subject:     "AI-Reviewed Hiring Report - Candidate Screening Summary",
	})
	placer := &stubPlacer{}
	gate := admission.NewGate(admission.Options{
		Store:     st,
		Placer:    placer,
		Registrar: machine.Registry(),
		Scorer:    stubScorer{total: 42},
		Threshold: screening.ScoreThreshold,
	})

	cfg := ServerConfig{
		Host:           "127.0.0.1",
		Port:           "0",
		Version:        "test",
		APIKeys:        []string{testAPIKey},
		MaxRequestSize: 1 << 20,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv := NewServer(&config.Config{}, cfg, Dependencies{
		Store:  st,
		Gate:   gate,
		Dialog: orchestrator,
		Placer: placer,
		Oracles: map[config.Operation]OracleHealth{
			config.OperationInterview: stubOracle{available: true},
		},
	}, nil)

	return &testEnv{
		server:      srv,
		handler:     srv.Handler(),
		store:       st,
		gate:        gate,
		dialog:      orchestrator,
		placer:      placer,
		transcripts: transcripts,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// twilioSignature computes X-Twilio-Signature for a form POST to fullURL.
func twilioSignature(token, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := fullURL
	for _, k := range keys {
		payload += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func voiceRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, target string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	return req
}

func applyRequest(t *testing.T, jobID string, resume []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range map[string]string{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "Ada@Example.com",
		"phone":     "+15551234567",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("resume", "ada.pdf")
	require.NoError(t, err)
	_, err = part.Write(resume)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+jobID+"/apply", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func seedJob(t *testing.T, st store.Store, deadline *time.Time) *types.Job {
	t.Helper()
	job := &types.Job{
		Title:       "Backend Engineer",
		Location:    "Remote",
		JobType:     "Full-time",
		Description: "Build APIs in Go.",
		Spec:        types.JobSpecification{Education: types.EducationBachelor, Experience: 2, Skills: []string{"go"}},
		Deadline:    deadline,
	}
	require.NoError(t, st.SaveJob(context.Background(), job))
	return job
}

func TestVoiceWebhookConversation(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(voiceRequest(url.Values{"CallSid": {"CA1"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Gather")
	assert.Contains(t, rec.Body.String(), "Hello candidate! Please introduce yourself.")

	rec = env.do(voiceRequest(url.Values{"CallSid": {"CA1"}, "SpeechResult": {"I write Go services."}}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tell me about Go.")
	assert.Contains(t, rec.Body.String(), "<Redirect")
	assert.NotContains(t, rec.Body.String(), "<Hangup")

	rec = env.do(voiceRequest(url.Values{"CallSid": {"CA1"}, "SpeechResult": {"Please end the call now"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Thank you for your time. Goodbye!")
	assert.Contains(t, rec.Body.String(), "<Hangup")

	env.dialog.Wait()
	env.transcripts.mu.Lock()
	defer env.transcripts.mu.Unlock()
	require.Len(t, env.transcripts.records, 1)
	assert.Equal(t, "CA1", env.transcripts.records[0].CallID)
	assert.Contains(t, env.transcripts.records[0].Conversation, "CANDIDATE: I write Go services.")

	// Late webhooks for a finalized call hang up instead of reopening it.
	rec = env.do(voiceRequest(url.Values{"CallSid": {"CA1"}, "SpeechResult": {"hello?"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Hangup")
	assert.NotContains(t, rec.Body.String(), "<Gather")
}

func TestVoiceWebhookRequiresCallSid(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(voiceRequest(url.Values{"SpeechResult": {"hi"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Hangup")
	assert.NotContains(t, rec.Body.String(), "<Say")
}

func TestVoiceWebhookSignature(t *testing.T) {
	const token = "auth-token"
	const publicURL = "https://screen.example.test"
	env := newTestEnv(t, func(cfg *ServerConfig) {
		cfg.ValidateSignature = true
		cfg.AuthToken = token
		cfg.PublicURL = publicURL
	})
	form := url.Values{"CallSid": {"CA9"}, "SpeechResult": {""}}

	t.Run("unsigned", func(t *testing.T) {
		rec := env.do(voiceRequest(form))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("signed", func(t *testing.T) {
		req := voiceRequest(form)
		req.Header.Set(telephony.SignatureHeader, twilioSignature(token, publicURL+"/voice", form))
		rec := env.do(req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "<Gather")
	})
}

func TestHRAuthentication(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header key", map[string]string{"X-API-Key": testAPIKey}, http.StatusOK},
		{"bearer key", map[string]string{"Authorization": "Bearer " + testAPIKey}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/applications", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, env.do(req).Code)
		})
	}

	// Job listing is public.
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/api/jobs", nil)).Code)
}

func TestCreateJob(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("validation", func(t *testing.T) {
		rec := env.do(jsonRequest(http.MethodPost, "/api/jobs", map[string]any{
			"description": "no title",
			"spec":        map[string]any{"skills": []string{"go"}},
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(jsonRequest(http.MethodPost, "/api/jobs", map[string]any{
			"title":       "Engineer",
			"description": "bad education",
			"spec":        map[string]any{"education": "kindergarten", "skills": []string{"go"}},
		}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("created", func(t *testing.T) {
		rec := env.do(jsonRequest(http.MethodPost, "/api/jobs", map[string]any{
			"id":          "backend-1",
			"title":       "Backend Engineer",
			"description": "Build APIs.",
			"spec":        map[string]any{"education": "bachelor", "experience": 3, "skills": []string{" Go ", "SQL"}},
		}))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = env.do(httptest.NewRequest(http.MethodGet, "/api/jobs/backend-1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var job types.Job
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		assert.Equal(t, "Backend Engineer", job.Title)
		assert.Equal(t, types.EducationBachelor, job.Spec.Education)
		assert.Equal(t, []string{"Go", "SQL"}, job.Spec.Skills)
	})

	t.Run("not found", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := jsonRequest(http.MethodPost, "/api/jobs", map[string]any{"title": "x"})
		req.Header.Set("Content-Type", "text/plain")
		assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
	})
}

func TestApplyScreensAndPlacesCall(t *testing.T) {
	env := newTestEnv(t, nil)
	job := seedJob(t, env.store, nil)

	rec := env.do(applyRequest(t, job.ID, []byte("%PDF-1.7 résumé")))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var app types.Application
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	require.NotEmpty(t, app.ID)

	env.gate.Wait()

	stored, err := env.store.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCallPlaced, stored.Status)
	assert.Equal(t, "CA-placed", stored.CallID)
	require.NotNil(t, stored.Score)
	assert.InDelta(t, 42, *stored.Score, 0.001)

	env.placer.mu.Lock()
	assert.Equal(t, []string{"+15551234567"}, env.placer.dialed)
	env.placer.mu.Unlock()

	applicant, err := env.store.GetApplicant(context.Background(), stored.ApplicantID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", applicant.Email)

	// The placed call's first turn carries the application context.
	rec = env.do(voiceRequest(url.Values{"CallSid": {"CA-placed"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	sess, ok := env.dialog.Registry().Get("CA-placed")
	require.True(t, ok)
	assert.Equal(t, app.ID, sess.Context.ApplicationID)
	assert.Equal(t, "Ada Lovelace", sess.Context.CandidateName)
}

func TestApplyRejections(t *testing.T) {
	env := newTestEnv(t, nil)
	open := seedJob(t, env.store, nil)
	past := time.Now().Add(-24 * time.Hour)
	closed := seedJob(t, env.store, &past)

	tests := []struct {
		name   string
		jobID  string
		resume []byte
		want   int
	}{
		{"not a pdf", open.ID, []byte("plain text résumé"), http.StatusBadRequest},
		{"unknown job", "missing", []byte("%PDF-1.4"), http.StatusNotFound},
		{"deadline passed", closed.ID, []byte("%PDF-1.4"), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(applyRequest(t, tt.jobID, tt.resume))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	env.gate.Wait()
	apps, err := env.store.ListApplications(context.Background(), store.ApplicationFilter{})
	require.NoError(t, err)
	assert.Empty(t, apps)
}

func TestPlaceCallWithoutTelephony(t *testing.T) {
	env := newTestEnv(t, nil)
	env.server.placer = nil
	handler := env.server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, jsonRequest(http.MethodPost, "/api/calls", map[string]string{"to": "+15551234567"}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPlaceCallValidatesNumber(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(jsonRequest(http.MethodPost, "/api/calls", map[string]string{"to": "555-1234"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(jsonRequest(http.MethodPost, "/api/calls", map[string]string{"to": "+15557654321"}))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	env.server.oracles[config.OperationReport] = stubOracle{available: false}
	rec = env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, nil)
	seedJob(t, env.store, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(30), body["score_threshold"])
	storeStats, ok := body["store"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), storeStats["jobs"])
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(60, 2, nil)
	defer limiter.Close()

	assert.True(t, limiter.Allow("client"))
	assert.True(t, limiter.Allow("client"))
	assert.False(t, limiter.Allow("client"))
	assert.True(t, limiter.Allow("other"))
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "abcdefgh****", maskAPIKey("abcdefghijkl"))
}
