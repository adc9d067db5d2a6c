package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/blablabla-ai/blablabla/internal/config"
	"github.com/blablabla-ai/blablabla/internal/llm"
	"github.com/blablabla-ai/blablabla/internal/stt"
)

// ChatClient is the slice of the LLM gateway the classifier needs.
type ChatClient interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Service runs the two-stage analysis: transcribe the clip, then classify
// the transcript. Each stage is a single attempt; callers own any retry
// policy.
type Service struct {
	stt       stt.Provider
	chat      ChatClient
	model     string
	temp      float64
	maxTokens int
}

func NewService(transcriber stt.Provider, chat ChatClient, cfg config.AnalysisConfig) *Service {
	return &Service{
		stt:       transcriber,
		chat:      chat,
		model:     cfg.ClassifyModel,
		temp:      cfg.Temperature,
		maxTokens: cfg.MaxCompletionTokens,
	}
}

// Analyze transcribes audio and classifies the transcript. An empty
// transcription short-circuits to the silence outcome without touching
// the classification stage.
func (s *Service) Analyze(ctx context.Context, audio io.Reader, filename string) (*Outcome, error) {
	tr, err := s.stt.Transcribe(ctx, stt.Request{Audio: audio, Filename: filename})
	if err != nil {
		return nil, &FailedError{Message: "failed to transcribe audio", Err: err}
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		slog.Info("empty transcription, skipping classification")
		return SilenceOutcome(), nil
	}

	logProb := DefaultAvgLogProb
	if tr.AvgLogProb != nil {
		logProb = *tr.AvgLogProb
	}
	confidence := Confidence(logProb)

	intent, result, err := s.classify(ctx, text)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Transcription: Transcription{Text: text, Confidence: confidence},
		Intent:        intent,
		Result:        result,
	}, nil
}

// classifyResponse is the strict JSON shape the system prompt demands.
type classifyResponse struct {
	Intent string `json:"intent"`
	Result struct {
		Primary      *ResultItem  `json:"primary"`
		Alternatives []ResultItem `json:"alternatives"`
		FollowUps    []string     `json:"follow_ups"`
	} `json:"result"`
}

func (s *Service) classify(ctx context.Context, transcription string) (Intent, Result, error) {
	resp, err := s.chat.Chat(ctx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: "system", Content: classifyPrompt},
			{Role: "user", Content: fmt.Sprintf("Analyze this transcription: %q", transcription)},
		},
		Temperature: s.temp,
		MaxTokens:   s.maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return "", Result{}, &FailedError{Message: "failed to analyze content", Err: err}
	}
	if resp.Content == "" {
		return "", Result{}, &FailedError{Message: "no response from analysis"}
	}

	var parsed classifyResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return "", Result{}, &FailedError{Message: "failed to parse analysis response", Err: err}
	}

	return ParseIntent(parsed.Intent), normalize(parsed), nil
}

// normalize guards the model output: nil slices become empty, and a primary
// with a type outside the enum is downgraded to an insight.
func normalize(parsed classifyResponse) Result {
	r := Result{
		Primary:      parsed.Result.Primary,
		Alternatives: parsed.Result.Alternatives,
		FollowUps:    parsed.Result.FollowUps,
	}
	if r.Alternatives == nil {
		r.Alternatives = []ResultItem{}
	}
	if r.FollowUps == nil {
		r.FollowUps = []string{}
	}
	if r.Primary != nil && !validResultType(r.Primary.Type) {
		r.Primary.Type = ResultInsight
	}
	for i := range r.Alternatives {
		if !validResultType(r.Alternatives[i].Type) {
			r.Alternatives[i].Type = ResultInsight
		}
	}
	return r
}

func validResultType(t ResultType) bool {
	switch t {
	case ResultSong, ResultQuote, ResultScripture, ResultInsight, ResultOriginal:
		return true
	}
	return false
}
