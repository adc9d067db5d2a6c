package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/blablabla-ai/blablabla/internal/capture"
	"github.com/blablabla-ai/blablabla/internal/config"
	"github.com/blablabla-ai/blablabla/internal/pipeline"
	"github.com/blablabla-ai/blablabla/internal/recorder"
)

// capture records one clip from the system microphone, ships it through the
// analysis pipeline and prints the outcome. Recording ends on Enter or at
// the maximum duration, whichever comes first.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	maxDuration := time.Duration(cfg.Capture.MaxDurationSeconds) * time.Second

	session := recorder.NewSession(func(onError func(error)) *capture.Capture {
		return capture.New(capture.NewSystemDevice(), capture.Config{
			SampleRate:       cfg.Capture.SampleRate,
			PreferredFormats: cfg.Capture.PreferredFormats,
		}, onError)
	}, recorder.Options{
		MaxDuration: maxDuration,
		OnMaxDuration: func() {
			fmt.Fprintln(os.Stderr, "\nmaximum duration reached, stopping")
		},
	})
	defer session.Close()

	if err := session.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "could not start recording:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "recording (up to %s), press Enter to stop...\n", maxDuration)

	enter := make(chan struct{})
	go func() {
		bufio.NewReader(os.Stdin).ReadString('\n')
		close(enter)
	}()

	select {
	case <-enter:
		session.Stop()
	case <-session.Stopped():
	}

	select {
	case <-session.Stopped():
	case <-time.After(10 * time.Second):
		fmt.Fprintln(os.Stderr, "timed out waiting for the recording to finish")
		os.Exit(1)
	}

	if err := session.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "recording failed:", err)
		os.Exit(1)
	}

	art := session.Artifact()
	fmt.Fprintf(os.Stderr, "captured %s of %s (%d bytes)\n",
		session.Duration().Round(time.Second), art.MimeType(), art.Size())

	p := pipeline.New(pipeline.Config{
		BaseURL: cfg.Client.ProxyURL,
		Token:   cfg.Client.AuthToken,
	}, func(stage pipeline.Stage, percent int) {
		fmt.Fprintf(os.Stderr, "%s... %d%%\n", stage, percent)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	outcome, err := p.Process(ctx, art, session.Duration())
	if err != nil {
		fmt.Fprintln(os.Stderr, "analysis failed:", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(outcome)
}
