package llm

import (
	"context"
	"errors"

	"github.com/wallybot/wally-agent/internal/domain"
)

var errMockUnavailable = errors.New("mock model: no remote intent model configured")

// MockModel always fails the remote call so the resolver exercises its
// deterministic fallback. Useful for dev without GCP credentials.
type MockModel struct{}

func NewMockModel() *MockModel {
	return &MockModel{}
}

func (m *MockModel) ClassifyIntent(ctx context.Context, command string) (domain.Intent, error) {
	return domain.Intent{}, errMockUnavailable
}

// MockTranscriber echoes a canned transcript, or an error when Fail is set.
type MockTranscriber struct {
	Text string
	Fail bool
}

func NewMockTranscriber(text string) *MockTranscriber {
	return &MockTranscriber{Text: text}
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (domain.Transcript, error) {
	if m.Fail {
		return domain.Transcript{}, &domain.TranscriptionError{Err: errors.New("mock transcriber failure")}
	}
	return domain.Transcript{Text: m.Text, Language: "en"}, nil
}
