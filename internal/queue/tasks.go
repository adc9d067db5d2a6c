package queue

const (
	// TypeRecordingPurge removes a recording's stored audio once its
	// retention period lapses; the transcription and result stay.
	TypeRecordingPurge = "recording:purge"
)

type RecordingPurgePayload struct {
	RecordingID string `json:"recording_id"`
	AudioPath   string `json:"audio_path"`
}
