package analysis

import "testing"

func TestConfidence(t *testing.T) {
	for _, tt := range []struct {
		name    string
		logProb float64
		want    float64
	}{
		{"zero logprob is full confidence", 0, 1.0},
		{"minus one clamps to zero", -1, 0.0},
		{"below minus one still zero", -2, 0.0},
		{"default logprob", -0.5, 0.5},
		{"rounds to two decimals", -0.123, 0.88},
		{"positive clamps to one", 0.3, 1.0},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := Confidence(tt.logProb); got != tt.want {
				t.Errorf("Confidence(%v) = %v, want %v", tt.logProb, got, tt.want)
			}
		})
	}
}

func TestParseIntent(t *testing.T) {
	for _, tt := range []struct {
		input string
		want  Intent
	}{
		{"song", IntentSong},
		{"scripture", IntentScripture},
		{"quote", IntentQuote},
		{"voice_note", IntentVoiceNote},
		{"unknown", IntentUnknown},
		{"poem", IntentUnknown},
		{"", IntentUnknown},
	} {
		if got := ParseIntent(tt.input); got != tt.want {
			t.Errorf("ParseIntent(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSilenceOutcome(t *testing.T) {
	out := SilenceOutcome()

	if out.Intent != IntentUnknown {
		t.Errorf("Intent = %q, want %q", out.Intent, IntentUnknown)
	}
	if out.Result.Primary != nil {
		t.Error("Primary should be nil for silence")
	}
	if len(out.Result.FollowUps) == 0 {
		t.Fatal("FollowUps should be non-empty when primary is nil")
	}
	if out.Result.FollowUps[0] != SilenceFollowUp {
		t.Errorf("FollowUps[0] = %q, want %q", out.Result.FollowUps[0], SilenceFollowUp)
	}
	if out.Transcription.Text != "" || out.Transcription.Confidence != 0 {
		t.Errorf("Transcription = %+v, want empty text and zero confidence", out.Transcription)
	}
}
