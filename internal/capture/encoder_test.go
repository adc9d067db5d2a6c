package capture

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncoderNegotiation(t *testing.T) {
	for _, tt := range []struct {
		name      string
		preferred []string
		wantMime  string
	}{
		{"flac preferred", []string{"audio/flac", "audio/wav"}, "audio/flac"},
		{"wav preferred", []string{"audio/wav", "audio/flac"}, "audio/wav"},
		{"unknown entries skipped", []string{"audio/webm;codecs=opus", "audio/flac"}, "audio/flac"},
		{"nothing supported falls back to wav", []string{"audio/webm", "audio/mp4"}, "audio/wav"},
		{"empty list falls back to wav", nil, "audio/wav"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncoder(tt.preferred, 16000)
			if err != nil {
				t.Fatalf("NewEncoder: %v", err)
			}
			if enc.MimeType() != tt.wantMime {
				t.Errorf("MimeType = %q, want %q", enc.MimeType(), tt.wantMime)
			}
		})
	}
}

func TestWAVEncoderStream(t *testing.T) {
	enc := newWAVEncoder(16000)

	header := enc.Buffered()
	if len(header) != 44 {
		t.Fatalf("header length = %d, want 44", len(header))
	}
	if !bytes.HasPrefix(header, []byte("RIFF")) {
		t.Error("missing RIFF magic")
	}
	if string(header[8:12]) != "WAVE" {
		t.Error("missing WAVE tag")
	}
	if rate := binary.LittleEndian.Uint32(header[24:28]); rate != 16000 {
		t.Errorf("sample rate in header = %d, want 16000", rate)
	}

	pcm := pcmSamples(1000, 7)
	if err := enc.EncodePCM(pcm); err != nil {
		t.Fatalf("EncodePCM: %v", err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	buf := enc.Buffered()
	if len(buf) != 44+len(pcm) {
		t.Errorf("stream length = %d, want %d", len(buf), 44+len(pcm))
	}
	if !bytes.Equal(buf[44:], pcm) {
		t.Error("PCM body does not match input")
	}
}

func TestFlacEncoderStream(t *testing.T) {
	enc, err := newFlacEncoder(16000)
	if err != nil {
		t.Fatalf("newFlacEncoder: %v", err)
	}

	// A partial block plus more than a full block, to cover both paths.
	if err := enc.EncodePCM(pcmSamples(flacBlockSize/2, 0)); err != nil {
		t.Fatalf("EncodePCM partial: %v", err)
	}
	if err := enc.EncodePCM(pcmSamples(flacBlockSize, 100)); err != nil {
		t.Fatalf("EncodePCM full: %v", err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	out := enc.Buffered()
	if len(out) < 4 || string(out[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestFlacEncoderEmptyFlush(t *testing.T) {
	enc, err := newFlacEncoder(16000)
	if err != nil {
		t.Fatalf("newFlacEncoder: %v", err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatalf("Flush on empty encoder: %v", err)
	}
	if len(enc.Buffered()) == 0 {
		t.Error("expected at least the FLAC header")
	}
}
