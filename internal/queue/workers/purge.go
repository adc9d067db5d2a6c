package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/blablabla-ai/blablabla/internal/queue"
	"github.com/blablabla-ai/blablabla/internal/storage"
)

// Recordings is the slice of the history store the purge worker needs.
type Recordings interface {
	ClearAudioPath(ctx context.Context, id uuid.UUID) error
}

// PurgeWorker deletes stored audio once its retention delay lapses. The
// recording row survives with its transcription and result; only the audio
// object and its path go.
type PurgeWorker struct {
	store  storage.Storage
	recs   Recordings
	bucket string
}

func NewPurgeWorker(store storage.Storage, recs Recordings, bucket string) *PurgeWorker {
	return &PurgeWorker{store: store, recs: recs, bucket: bucket}
}

func (w *PurgeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.RecordingPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	recID, err := uuid.Parse(payload.RecordingID)
	if err != nil {
		return fmt.Errorf("parse recording ID %q: %w", payload.RecordingID, err)
	}

	if payload.AudioPath != "" {
		if err := w.store.Delete(ctx, w.bucket, payload.AudioPath); err != nil {
			return fmt.Errorf("delete audio object: %w", err)
		}
	}

	if err := w.recs.ClearAudioPath(ctx, recID); err != nil {
		return fmt.Errorf("detach audio from recording: %w", err)
	}

	slog.Info("purged recording audio", "recording_id", payload.RecordingID, "path", payload.AudioPath)
	return nil
}
