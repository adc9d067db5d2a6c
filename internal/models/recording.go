package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Recording is one analyzed clip as persisted to history. Result holds the
// classification JSON verbatim; AudioPath points at the stored artifact and
// empties out once the purge worker runs.
type Recording struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	Transcription string          `json:"transcription" db:"transcription"`
	Confidence    float64         `json:"confidence" db:"confidence"`
	Intent        string          `json:"intent" db:"intent"`
	Result        json.RawMessage `json:"result" db:"result"`
	AudioPath     string          `json:"audio_path,omitempty" db:"audio_path"`
	MimeType      string          `json:"mime_type,omitempty" db:"mime_type"`
	DurationMs    int             `json:"duration_ms" db:"duration_ms"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}
