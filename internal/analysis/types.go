package analysis

import "math"

// Intent is the coarse classification of what a captured clip represents.
type Intent string

const (
	IntentSong      Intent = "song"
	IntentScripture Intent = "scripture"
	IntentQuote     Intent = "quote"
	IntentVoiceNote Intent = "voice_note"
	IntentUnknown   Intent = "unknown"
)

// ParseIntent maps a model-reported intent string onto the enum, falling
// back to IntentUnknown for anything outside it.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentSong, IntentScripture, IntentQuote, IntentVoiceNote, IntentUnknown:
		return Intent(s)
	}
	return IntentUnknown
}

// ResultType categorizes a single identification.
type ResultType string

const (
	ResultSong      ResultType = "song"
	ResultQuote     ResultType = "quote"
	ResultScripture ResultType = "scripture"
	ResultInsight   ResultType = "insight"
	ResultOriginal  ResultType = "original"
)

// ResultItem is one candidate identification for a recording.
type ResultItem struct {
	Type        ResultType     `json:"type"`
	Title       string         `json:"title,omitempty"`
	Attribution string         `json:"attribution,omitempty"`
	Content     string         `json:"content"`
	SourceURL   string         `json:"source_url,omitempty"`
	Confidence  float64        `json:"confidence"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Result holds the best identification plus lower-ranked candidates and
// suggested follow-up questions. When Primary is nil, FollowUps should
// explain why (best effort, not enforced).
type Result struct {
	Primary      *ResultItem  `json:"primary"`
	Alternatives []ResultItem `json:"alternatives"`
	FollowUps    []string     `json:"follow_ups"`
}

// Transcription is the text of a clip plus a derived confidence in [0,1].
type Transcription struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Outcome is the normalized end-to-end analysis of one audio artifact. It
// is the wire shape returned by the proxy and consumed by the client.
type Outcome struct {
	Transcription Transcription `json:"transcription"`
	Intent        Intent        `json:"intent"`
	Result        Result        `json:"result"`
}

// SilenceFollowUp is returned when the transcription comes back empty.
const SilenceFollowUp = "I couldn't hear anything. Try speaking louder or closer to the microphone."

// SilenceOutcome is the short-circuit result for an inaudible clip. The
// classification stage is never invoked for it.
func SilenceOutcome() *Outcome {
	return &Outcome{
		Transcription: Transcription{Text: "", Confidence: 0},
		Intent:        IntentUnknown,
		Result: Result{
			Primary:      nil,
			Alternatives: []ResultItem{},
			FollowUps:    []string{SilenceFollowUp},
		},
	}
}

// DefaultAvgLogProb stands in when the transcription response carries no
// segment log-probabilities.
const DefaultAvgLogProb = -0.5

// Confidence derives a [0,1] score from a model-reported average
// log-probability: clamp(1+p, 0, 1) rounded to two decimals.
func Confidence(avgLogProb float64) float64 {
	c := 1 + avgLogProb
	c = math.Min(1, math.Max(0, c))
	return math.Round(c*100) / 100
}
