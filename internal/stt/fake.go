package stt

import (
	"context"
	"io"
)

// Fake is a canned transcriber for tests.
type Fake struct {
	Text    string
	LogProb *float64
	Err     error

	Calls int
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(_ context.Context, req Request) (*Result, error) {
	f.Calls++
	if req.Audio != nil {
		io.Copy(io.Discard, req.Audio)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return &Result{Text: f.Text, AvgLogProb: f.LogProb}, nil
}
