package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/blablabla-ai/blablabla/internal/analysis"
	"github.com/blablabla-ai/blablabla/internal/auth"
	"github.com/blablabla-ai/blablabla/internal/models"
	"github.com/blablabla-ai/blablabla/internal/queue"
)

type fakeAnalyzer struct {
	outcome *analysis.Outcome
	err     error
	calls   int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, audio io.Reader, _ string) (*analysis.Outcome, error) {
	f.calls++
	io.Copy(io.Discard, audio)
	return f.outcome, f.err
}

type fakeQuota struct {
	err           error
	calls         int
	invalidations int
}

func (f *fakeQuota) Check(_ context.Context, _ uuid.UUID) error {
	f.calls++
	return f.err
}

func (f *fakeQuota) Invalidate(_ context.Context, _ uuid.UUID) {
	f.invalidations++
}

type fakeRecordings struct {
	created []*models.Recording
	err     error
}

func (f *fakeRecordings) Create(_ context.Context, rec *models.Recording) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, rec)
	return nil
}

type fakeStorage struct {
	uploads map[string][]byte
	err     error
}

func (f *fakeStorage) Upload(_ context.Context, _, path string, data io.Reader, _ string) error {
	if f.err != nil {
		return f.err
	}
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	b, _ := io.ReadAll(data)
	f.uploads[path] = b
	return nil
}

func (f *fakeStorage) Download(_ context.Context, _, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStorage) Delete(_ context.Context, _, _ string) error { return nil }

type fakePurger struct {
	payloads []queue.RecordingPurgePayload
	delays   []time.Duration
}

func (f *fakePurger) EnqueueRecordingPurge(p queue.RecordingPurgePayload, after time.Duration) error {
	f.payloads = append(f.payloads, p)
	f.delays = append(f.delays, after)
	return nil
}

func songOutcome() *analysis.Outcome {
	return &analysis.Outcome{
		Transcription: analysis.Transcription{Text: "amazing grace how sweet the sound", Confidence: 0.8},
		Intent:        analysis.IntentSong,
		Result: analysis.Result{
			Primary:      &analysis.ResultItem{Type: analysis.ResultSong, Title: "Amazing Grace", Content: "hymn", Confidence: 0.9},
			Alternatives: []analysis.ResultItem{},
			FollowUps:    []string{},
		},
	}
}

func audioRequest(t *testing.T, userID uuid.UUID, field, mimeType string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="recording.wav"`)
	hdr.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	part.Write(payload)
	mw.WriteField("duration_ms", "1500")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze-audio", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if userID != uuid.Nil {
		req = req.WithContext(auth.WithUser(req.Context(), &models.User{ID: userID}))
	}
	return req
}

func TestAnalyzeSuccessPersistsAndPurges(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: songOutcome()}
	recs := &fakeRecordings{}
	store := &fakeStorage{}
	purger := &fakePurger{}
	q := &fakeQuota{}
	h := NewAnalyzeHandler(analyzer, q, recs, store, purger, "recordings", 1<<20, 24*time.Hour)
	userID := uuid.New()

	rec := httptest.NewRecorder()
	h.Analyze(rec, audioRequest(t, userID, "audio", "audio/wav", []byte("RIFFdata")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var outcome analysis.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if outcome.Intent != analysis.IntentSong {
		t.Errorf("intent = %q, want song", outcome.Intent)
	}

	if len(recs.created) != 1 {
		t.Fatalf("recordings created = %d, want 1", len(recs.created))
	}
	saved := recs.created[0]
	if saved.UserID != userID || saved.Intent != "song" || saved.Transcription == "" {
		t.Errorf("saved recording = %+v", saved)
	}
	if saved.AudioPath == "" || !strings.HasPrefix(saved.AudioPath, userID.String()+"/") {
		t.Errorf("AudioPath = %q, want user-scoped path", saved.AudioPath)
	}
	if saved.DurationMs != 1500 {
		t.Errorf("DurationMs = %d, want 1500 from the upload form", saved.DurationMs)
	}
	if q.invalidations != 1 {
		t.Errorf("quota invalidations = %d, want 1 after persisting", q.invalidations)
	}

	if len(purger.payloads) != 1 {
		t.Fatalf("purge tasks = %d, want 1", len(purger.payloads))
	}
	if purger.delays[0] != 24*time.Hour {
		t.Errorf("purge delay = %v, want retention period", purger.delays[0])
	}
	if purger.payloads[0].AudioPath != saved.AudioPath {
		t.Error("purge payload path does not match stored path")
	}
}

func TestAnalyzeSilencePassthrough(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: analysis.SilenceOutcome()}
	h := NewAnalyzeHandler(analyzer, &fakeQuota{}, &fakeRecordings{}, nil, nil, "", 1<<20, 0)

	rec := httptest.NewRecorder()
	h.Analyze(rec, audioRequest(t, uuid.New(), "audio", "audio/wav", []byte("quiet")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for silence", rec.Code)
	}
	var outcome analysis.Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(outcome.Result.FollowUps) != 1 || outcome.Result.FollowUps[0] != analysis.SilenceFollowUp {
		t.Errorf("follow-ups = %v, want the silence hint", outcome.Result.FollowUps)
	}
}

func TestAnalyzeUnauthenticated(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: songOutcome()}
	h := NewAnalyzeHandler(analyzer, &fakeQuota{}, &fakeRecordings{}, nil, nil, "", 1<<20, 0)

	rec := httptest.NewRecorder()
	h.Analyze(rec, audioRequest(t, uuid.Nil, "audio", "audio/wav", []byte("RIFF")))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if analyzer.calls != 0 {
		t.Error("analysis ran without an authenticated user")
	}
}

func TestAnalyzeQuotaExceeded(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: songOutcome()}
	q := &fakeQuota{err: &analysis.QuotaExceededError{Limit: 10, RetryAfter: 30 * time.Minute}}
	h := NewAnalyzeHandler(analyzer, q, &fakeRecordings{}, nil, nil, "", 1<<20, 0)

	rec := httptest.NewRecorder()
	h.Analyze(rec, audioRequest(t, uuid.New(), "audio", "audio/wav", []byte("RIFF")))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "1800" {
		t.Errorf("Retry-After = %q, want 1800", got)
	}
	var body struct {
		Limit int `json:"limit"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Limit != 10 {
		t.Errorf("limit in body = %d, want 10", body.Limit)
	}
	if analyzer.calls != 0 {
		t.Error("analysis ran despite exhausted quota")
	}
}

func TestAnalyzeRejectsNonAudio(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: songOutcome()}
	h := NewAnalyzeHandler(analyzer, &fakeQuota{}, &fakeRecordings{}, nil, nil, "", 1<<20, 0)

	rec := httptest.NewRecorder()
	h.Analyze(rec, audioRequest(t, uuid.New(), "audio", "application/pdf", []byte("%PDF")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if analyzer.calls != 0 {
		t.Error("analysis ran on a non-audio upload")
	}
}

func TestAnalyzeAcceptsParameterizedAudioType(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: songOutcome()}
	h := NewAnalyzeHandler(analyzer, &fakeQuota{}, &fakeRecordings{}, nil, nil, "", 1<<20, 0)

	rec := httptest.NewRecorder()
	h.Analyze(rec, audioRequest(t, uuid.New(), "audio", "audio/webm;codecs=opus", []byte("webm")))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for parameterized audio type", rec.Code)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: songOutcome()}
	h := NewAnalyzeHandler(analyzer, &fakeQuota{}, &fakeRecordings{}, nil, nil, "", 1<<20, 0)

	rec := httptest.NewRecorder()
	h.Analyze(rec, audioRequest(t, uuid.New(), "wrong_field", "audio/wav", []byte("RIFF")))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeOversizePayload(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: songOutcome()}
	h := NewAnalyzeHandler(analyzer, &fakeQuota{}, &fakeRecordings{}, nil, nil, "", 64, 0)

	rec := httptest.NewRecorder()
	h.Analyze(rec, audioRequest(t, uuid.New(), "audio", "audio/wav", bytes.Repeat([]byte("a"), 4096)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if analyzer.calls != 0 {
		t.Error("analysis ran on an oversize upload")
	}
}

func TestAnalyzeFailureSurfacesMessage(t *testing.T) {
	analyzer := &fakeAnalyzer{err: &analysis.FailedError{Message: "failed to transcribe audio"}}
	h := NewAnalyzeHandler(analyzer, &fakeQuota{}, &fakeRecordings{}, nil, nil, "", 1<<20, 0)

	rec := httptest.NewRecorder()
	h.Analyze(rec, audioRequest(t, uuid.New(), "audio", "audio/wav", []byte("RIFF")))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !strings.Contains(body.Error, "failed to transcribe audio") {
		t.Errorf("error = %q, want transcription failure reason", body.Error)
	}
}

func TestAnalyzePersistenceFailureStillSucceeds(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: songOutcome()}
	recs := &fakeRecordings{err: errors.New("db down")}
	q := &fakeQuota{}
	h := NewAnalyzeHandler(analyzer, q, recs, nil, nil, "", 1<<20, 0)

	rec := httptest.NewRecorder()
	h.Analyze(rec, audioRequest(t, uuid.New(), "audio", "audio/wav", []byte("RIFF")))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even when history write fails", rec.Code)
	}
	if q.invalidations != 0 {
		t.Errorf("quota invalidations = %d, want 0 when nothing was persisted", q.invalidations)
	}
}
