package stt

import (
	"context"
	"io"
)

// Request holds the audio payload for transcription. Filename carries the
// extension the backend uses to sniff the container format.
type Request struct {
	Audio    io.Reader
	Filename string
	Language string
}

// Result is a finished transcription. AvgLogProb is the first segment's
// average log-probability when the backend reports segments, nil otherwise.
type Result struct {
	Text       string
	AvgLogProb *float64
	Duration   float64
}

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, req Request) (*Result, error)
	Name() string
}
