package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blablabla-ai/blablabla/internal/analysis"
	"github.com/blablabla-ai/blablabla/internal/auth"
	"github.com/blablabla-ai/blablabla/internal/models"
	"github.com/blablabla-ai/blablabla/internal/queue"
	"github.com/blablabla-ai/blablabla/internal/storage"
)

// Analyzer runs the transcribe-then-classify pipeline on one clip.
type Analyzer interface {
	Analyze(ctx context.Context, audio io.Reader, filename string) (*analysis.Outcome, error)
}

// QuotaChecker gates each analysis against the per-user hourly limit and
// drops any cached count once a new recording lands.
type QuotaChecker interface {
	Check(ctx context.Context, userID uuid.UUID) error
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// RecordingWriter persists one analyzed clip to history.
type RecordingWriter interface {
	Create(ctx context.Context, rec *models.Recording) error
}

// Purger schedules deferred audio removal.
type Purger interface {
	EnqueueRecordingPurge(payload queue.RecordingPurgePayload, after time.Duration) error
}

// AnalyzeHandler is the server-side analysis proxy: it validates the upload,
// enforces the quota, runs analysis with server-held provider keys and
// records the outcome. Persistence and audio storage are best effort; a
// completed analysis is returned even when they fail.
type AnalyzeHandler struct {
	analyzer  Analyzer
	quota     QuotaChecker
	history   RecordingWriter
	store     storage.Storage // nil disables audio retention
	purge     Purger          // nil disables scheduled purge
	bucket    string
	maxBytes  int64
	retention time.Duration
}

func NewAnalyzeHandler(analyzer Analyzer, quota QuotaChecker, history RecordingWriter,
	store storage.Storage, purge Purger, bucket string, maxBytes int64, retention time.Duration) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer:  analyzer,
		quota:     quota,
		history:   history,
		store:     store,
		purge:     purge,
		bucket:    bucket,
		maxBytes:  maxBytes,
		retention: retention,
	}
}

func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	if h.quota != nil {
		if err := h.quota.Check(r.Context(), user.ID); err != nil {
			var quotaErr *analysis.QuotaExceededError
			if errors.As(err, &quotaErr) {
				w.Header().Set("Retry-After", strconv.Itoa(int(quotaErr.RetryAfter.Seconds())))
				writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"error": quotaErr.Error(),
					"limit": quotaErr.Limit,
				})
				return
			}
			slog.Error("quota check failed", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "could not verify usage quota")
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				(&analysis.PayloadTooLargeError{Limit: h.maxBytes}).Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing audio file")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !acceptedAudioType(mimeType) {
		writeError(w, http.StatusBadRequest,
			(&analysis.InvalidPayloadTypeError{MimeType: mimeType}).Error())
		return
	}
	if header.Size > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			(&analysis.PayloadTooLargeError{Limit: h.maxBytes}).Error())
		return
	}

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read audio file")
		return
	}

	outcome, err := h.analyzer.Analyze(r.Context(), bytes.NewReader(audio), header.Filename)
	if err != nil {
		var failed *analysis.FailedError
		if errors.As(err, &failed) {
			writeError(w, http.StatusInternalServerError, failed.Error())
			return
		}
		slog.Error("analysis failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	durationMs, _ := strconv.Atoi(r.FormValue("duration_ms"))

	h.record(r.Context(), user.ID, outcome, audio, mimeType, durationMs)

	writeJSON(w, http.StatusOK, outcome)
}

// record persists the outcome and stores the audio for later purge. Failures
// are logged, not surfaced: the caller already has a finished analysis.
func (h *AnalyzeHandler) record(ctx context.Context, userID uuid.UUID, outcome *analysis.Outcome, audio []byte, mimeType string, durationMs int) {
	if h.history == nil {
		return
	}

	resultJSON, err := json.Marshal(outcome.Result)
	if err != nil {
		slog.Error("marshal result for history", "user_id", userID, "error", err)
		return
	}

	rec := &models.Recording{
		ID:            uuid.New(),
		UserID:        userID,
		Transcription: outcome.Transcription.Text,
		Confidence:    outcome.Transcription.Confidence,
		Intent:        string(outcome.Intent),
		Result:        resultJSON,
		MimeType:      mimeType,
		DurationMs:    durationMs,
	}

	if h.store != nil {
		path := fmt.Sprintf("%s/%s%s", userID, rec.ID, extForMime(mimeType))
		if err := h.store.Upload(ctx, h.bucket, path, bytes.NewReader(audio), mimeType); err != nil {
			slog.Warn("audio upload failed", "recording_id", rec.ID, "error", err)
		} else {
			rec.AudioPath = path
		}
	}

	if err := h.history.Create(ctx, rec); err != nil {
		slog.Error("save recording", "user_id", userID, "error", &analysis.PersistenceError{Err: err})
		return
	}
	if h.quota != nil {
		// The cached hourly count is now stale; the next check must see
		// this recording.
		h.quota.Invalidate(ctx, userID)
	}

	if h.purge != nil && rec.AudioPath != "" {
		err := h.purge.EnqueueRecordingPurge(queue.RecordingPurgePayload{
			RecordingID: rec.ID.String(),
			AudioPath:   rec.AudioPath,
		}, h.retention)
		if err != nil {
			slog.Warn("schedule audio purge", "recording_id", rec.ID, "error", err)
		}
	}
}

// audioTypePrefixes are the recognized upload types. Matching is by prefix
// so parameterized types like "audio/webm;codecs=opus" pass.
var audioTypePrefixes = []string{
	"audio/webm", "audio/mp4", "audio/mpeg", "audio/wav", "audio/ogg", "audio/flac",
}

func acceptedAudioType(mimeType string) bool {
	for _, p := range audioTypePrefixes {
		if strings.HasPrefix(mimeType, p) {
			return true
		}
	}
	return false
}

func extForMime(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "audio/flac"):
		return ".flac"
	case strings.HasPrefix(mimeType, "audio/wav"):
		return ".wav"
	case strings.HasPrefix(mimeType, "audio/webm"):
		return ".webm"
	case strings.HasPrefix(mimeType, "audio/mp4"):
		return ".m4a"
	case strings.HasPrefix(mimeType, "audio/mpeg"):
		return ".mp3"
	}
	return ".bin"
}
