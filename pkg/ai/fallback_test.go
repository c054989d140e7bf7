package ai

import (
	"context"
	"errors"
	"testing"
)

// stubProvider counts calls and returns canned results
type stubProvider struct {
	extractCalls  int
	subtaskCalls  int
	subtaskResult []string
	subtaskErr    error
}

func (s *stubProvider) ExtractTask(ctx context.Context, audioB64, mimeType string) (*ExtractedTask, error) {
	s.extractCalls++
	return &ExtractedTask{Title: "stub"}, nil
}

func (s *stubProvider) UpdateTask(ctx context.Context, snapshot TaskSnapshot, audioB64, mimeType string) (*TaskUpdate, error) {
	return &TaskUpdate{}, nil
}

func (s *stubProvider) GenerateSubtasks(ctx context.Context, title, description, instruction string) ([]string, error) {
	s.subtaskCalls++
	return s.subtaskResult, s.subtaskErr
}

func (s *stubProvider) Transcribe(ctx context.Context, audioB64, mimeType string) (string, error) {
	return "stub transcript", nil
}

func TestFallbackAudioOpsRequireGemini(t *testing.T) {
	f := NewFallbackService(nil, NewOllamaService("http://localhost:11434", "llama3"))

	if _, err := f.ExtractTask(context.Background(), "abc", "audio/webm"); err == nil {
		t.Fatal("extraction without an audio-capable provider must fail")
	}
	if _, err := f.UpdateTask(context.Background(), TaskSnapshot{}, "abc", "audio/webm"); err == nil {
		t.Fatal("update without an audio-capable provider must fail")
	}
	if _, err := f.Transcribe(context.Background(), "abc", "audio/webm"); err == nil {
		t.Fatal("transcription without an audio-capable provider must fail")
	}
}

func TestFallbackAudioOpsRouteToGemini(t *testing.T) {
	gemini := &stubProvider{}
	f := NewFallbackService(gemini, NewOllamaService("http://localhost:11434", "llama3"))

	result, err := f.ExtractTask(context.Background(), "abc", "audio/webm")
	if err != nil {
		t.Fatalf("ExtractTask failed: %v", err)
	}
	if result.Title != "stub" || gemini.extractCalls != 1 {
		t.Fatal("extraction did not route to the audio-capable provider")
	}
}

func TestFallbackSubtasksPreferGemini(t *testing.T) {
	gemini := &stubProvider{subtaskResult: []string{"one", "two"}}
	f := NewFallbackService(gemini, nil)

	steps, err := f.GenerateSubtasks(context.Background(), "Task", "", "")
	if err != nil {
		t.Fatalf("GenerateSubtasks failed: %v", err)
	}
	if len(steps) != 2 || gemini.subtaskCalls != 1 {
		t.Fatalf("unexpected result: %v (%d calls)", steps, gemini.subtaskCalls)
	}
}

func TestFallbackSubtasksFallToOllamaOnQuota(t *testing.T) {
	gemini := &stubProvider{subtaskErr: errors.New("googleapi: Error 429: quota exceeded")}
	srv := ollamaStub(t, `["local step one", "local step two"]`)
	defer srv.Close()

	f := NewFallbackService(gemini, NewOllamaService(srv.URL, "llama3"))

	steps, err := f.GenerateSubtasks(context.Background(), "Task", "", "")
	if err != nil {
		t.Fatalf("GenerateSubtasks failed: %v", err)
	}
	if len(steps) != 2 || steps[0] != "local step one" {
		t.Fatalf("fallback did not serve the request: %v", steps)
	}
}

func TestIsQuotaError(t *testing.T) {
	if !isQuotaError(errors.New("429 Too Many Requests")) {
		t.Fatal("429 not recognized as quota error")
	}
	if !isQuotaError(errors.New("RESOURCE_EXHAUSTED")) {
		t.Fatal("RESOURCE_EXHAUSTED not recognized as quota error")
	}
	if isQuotaError(errors.New("invalid api key")) {
		t.Fatal("unrelated error flagged as quota")
	}
	if isQuotaError(nil) {
		t.Fatal("nil flagged as quota error")
	}
}

func TestIsConnectionError(t *testing.T) {
	if !isConnectionError(errors.New("dial tcp 127.0.0.1:11434: connection refused")) {
		t.Fatal("refused connection not recognized")
	}
	if isConnectionError(errors.New("invalid model name")) {
		t.Fatal("unrelated error flagged as connection error")
	}
}
