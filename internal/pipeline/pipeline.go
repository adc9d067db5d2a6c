package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blablabla-ai/blablabla/internal/analysis"
	"github.com/blablabla-ai/blablabla/internal/capture"
)

// Stage is a coarse position in the analysis pipeline, reported to the
// progress sink as the request advances.
type Stage string

const (
	StageUploading    Stage = "uploading"
	StageTranscribing Stage = "transcribing"
	StageAnalyzing    Stage = "analyzing"
	StageComplete     Stage = "complete"
)

// Percent is the fixed progress value for each stage.
func (s Stage) Percent() int {
	switch s {
	case StageUploading:
		return 25
	case StageTranscribing:
		return 50
	case StageAnalyzing:
		return 75
	case StageComplete:
		return 100
	}
	return 0
}

// ProgressFunc observes stage transitions. A panicking sink must not
// abort the pipeline.
type ProgressFunc func(stage Stage, percent int)

const (
	// MaxUploadBytes is enforced client-side before any network traffic,
	// mirroring the server's ceiling.
	MaxUploadBytes = 25 * 1024 * 1024

	defaultTimeout = 2 * time.Minute
)

// Config wires a pipeline to its analysis endpoint.
type Config struct {
	BaseURL    string
	Token      string        // bearer credential passed through to the proxy
	Timeout    time.Duration // zero means defaultTimeout
	HTTPClient *http.Client  // optional; tests inject one
}

// Pipeline ships a finished audio artifact to the analysis proxy and
// decodes the outcome. It holds no recording state of its own.
type Pipeline struct {
	baseURL  string
	token    string
	client   *http.Client
	progress ProgressFunc
}

func New(cfg Config, progress ProgressFunc) *Pipeline {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Pipeline{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		client:   client,
		progress: progress,
	}
}

// Process uploads the artifact and returns the decoded outcome. clipLength
// is the recorded duration, sent along so history rows carry it. The
// artifact is validated before any bytes hit the network; there are no
// retries, a failed attempt surfaces immediately.
func (p *Pipeline) Process(ctx context.Context, art *capture.Artifact, clipLength time.Duration) (*analysis.Outcome, error) {
	if art.Empty() {
		return nil, analysis.ErrNoArtifact
	}
	if art.Size() > MaxUploadBytes {
		return nil, &analysis.PayloadTooLargeError{Limit: MaxUploadBytes}
	}

	p.report(StageUploading)

	req, err := p.buildRequest(ctx, art, clipLength)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &analysis.FailedError{Message: "could not reach analysis service", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.statusError(resp)
	}

	// The proxy runs both stages server-side in one request; the stage
	// reports here bracket the single round trip.
	p.report(StageTranscribing)
	p.report(StageAnalyzing)

	var outcome analysis.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return nil, &analysis.FailedError{Message: "malformed analysis response", Err: err}
	}

	p.report(StageComplete)
	return &outcome, nil
}

func (p *Pipeline) buildRequest(ctx context.Context, art *capture.Artifact, clipLength time.Duration) (*http.Request, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("audio", "recording"+extForMime(art.MimeType()))
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(art.Bytes())); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if clipLength > 0 {
		if err := mw.WriteField("duration_ms", strconv.FormatInt(clipLength.Milliseconds(), 10)); err != nil {
			return nil, fmt.Errorf("building upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/analyze-audio", &body)
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	return req, nil
}

// statusError maps non-200 proxy responses onto the shared error
// taxonomy so callers branch on types, not status codes.
func (p *Pipeline) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := errorMessage(body)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return analysis.ErrUnauthenticated
	case http.StatusRequestEntityTooLarge:
		return &analysis.PayloadTooLargeError{Limit: MaxUploadBytes}
	case http.StatusTooManyRequests:
		retryAfter := time.Hour
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
		return &analysis.QuotaExceededError{Limit: quotaLimit(body), RetryAfter: retryAfter}
	default:
		if msg == "" {
			msg = fmt.Sprintf("analysis service returned status %d", resp.StatusCode)
		}
		return &analysis.FailedError{Message: msg}
	}
}

func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error
}

func quotaLimit(body []byte) int {
	var payload struct {
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Limit <= 0 {
		return 0
	}
	return payload.Limit
}

// report notifies the sink, swallowing sink panics so a broken observer
// cannot take the pipeline down with it.
func (p *Pipeline) report(stage Stage) {
	if p.progress == nil {
		return
	}
	defer func() { recover() }()
	p.progress(stage, stage.Percent())
}

func extForMime(mime string) string {
	switch {
	case strings.HasPrefix(mime, "audio/flac"):
		return ".flac"
	case strings.HasPrefix(mime, "audio/wav"):
		return ".wav"
	}
	return ".bin"
}
