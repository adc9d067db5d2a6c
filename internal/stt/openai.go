package stt

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds configuration for the Whisper backend.
type OpenAIConfig struct {
	APIKey string
	Model  string // default: "whisper-1"
}

// OpenAISTT transcribes audio through OpenAI's transcription endpoint,
// requesting the verbose response so segment log-probabilities come back.
type OpenAISTT struct {
	cfg    OpenAIConfig
	client *openai.Client
}

func NewOpenAISTT(cfg OpenAIConfig) *OpenAISTT {
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	return &OpenAISTT{
		cfg:    cfg,
		client: openai.NewClient(cfg.APIKey),
	}
}

func (o *OpenAISTT) Name() string { return "openai-whisper" }

func (o *OpenAISTT) Transcribe(ctx context.Context, req Request) (*Result, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.cfg.Model,
		Reader:   req.Audio,
		FilePath: req.Filename,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: req.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}

	result := &Result{
		Text:     resp.Text,
		Duration: resp.Duration,
	}
	if len(resp.Segments) > 0 {
		p := resp.Segments[0].AvgLogprob
		result.AvgLogProb = &p
	}
	return result, nil
}
