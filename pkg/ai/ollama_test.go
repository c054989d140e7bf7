package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func ollamaStub(t *testing.T, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"response": response})
	}))
}

func TestOllamaGenerateSubtasksParsesJSONArray(t *testing.T) {
	srv := ollamaStub(t, `["shortlist venues", "compare quotes", "book the winner"]`)
	defer srv.Close()

	svc := NewOllamaService(srv.URL, "llama3")
	steps, err := svc.GenerateSubtasks(context.Background(), "Book venue", "", "")
	if err != nil {
		t.Fatalf("GenerateSubtasks failed: %v", err)
	}
	if len(steps) != 3 || steps[0] != "shortlist venues" {
		t.Fatalf("unexpected steps: %v", steps)
	}
}

func TestOllamaGenerateSubtasksStripsCodeFence(t *testing.T) {
	srv := ollamaStub(t, "```json\n[\"one\", \"two\"]\n```")
	defer srv.Close()

	svc := NewOllamaService(srv.URL, "llama3")
	steps, err := svc.GenerateSubtasks(context.Background(), "Task", "", "")
	if err != nil {
		t.Fatalf("GenerateSubtasks failed: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("unexpected steps: %v", steps)
	}
}

func TestOllamaGenerateSubtasksLineFallback(t *testing.T) {
	srv := ollamaStub(t, "- draft the email\n- get it reviewed\n- send it")
	defer srv.Close()

	svc := NewOllamaService(srv.URL, "llama3")
	steps, err := svc.GenerateSubtasks(context.Background(), "Task", "", "")
	if err != nil {
		t.Fatalf("GenerateSubtasks failed: %v", err)
	}
	if len(steps) != 3 || steps[0] != "draft the email" {
		t.Fatalf("unexpected steps: %v", steps)
	}
}

func TestOllamaRejectsAudio(t *testing.T) {
	svc := NewOllamaService("http://localhost:11434", "llama3")

	if _, err := svc.ExtractTask(context.Background(), "abc", "audio/webm"); !errors.Is(err, ErrAudioUnsupported) {
		t.Fatalf("ExtractTask: expected ErrAudioUnsupported, got %v", err)
	}
	if _, err := svc.UpdateTask(context.Background(), TaskSnapshot{}, "abc", "audio/webm"); !errors.Is(err, ErrAudioUnsupported) {
		t.Fatalf("UpdateTask: expected ErrAudioUnsupported, got %v", err)
	}
	if _, err := svc.Transcribe(context.Background(), "abc", "audio/webm"); !errors.Is(err, ErrAudioUnsupported) {
		t.Fatalf("Transcribe: expected ErrAudioUnsupported, got %v", err)
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```json\n[1]\n```": "[1]",
		"```\n[1]\n```":     "[1]",
		"[1]":               "[1]",
		"  [1]  ":           "[1]",
	}
	for in, want := range cases {
		if got := stripCodeFence(in); got != want {
			t.Fatalf("stripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
