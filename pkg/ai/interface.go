package ai

import (
	"context"
	"errors"
)

// ExtractedTask is the structured result of running one audio clip
// through the extraction model.
type ExtractedTask struct {
	Title                 string   `json:"title"`
	Project               string   `json:"project"`
	Priority              string   `json:"priority"` // "low" | "medium" | "high"
	Context               string   `json:"context"`
	DueDate               *string  `json:"due_date"` // YYYY-MM-DD or nil
	Tags                  []string `json:"tags"`
	NeedsClarification    bool     `json:"needs_clarification"`
	ClarificationQuestion *string  `json:"clarification_question"`
	ConfidenceScore       float64  `json:"confidence_score"`
	SubtasksText          []string `json:"subtasks_text"`
}

// TaskUpdate is a partial extraction produced by a follow-up recording.
// Nil fields were not returned by the model and must be left untouched.
type TaskUpdate struct {
	Title        *string  `json:"title,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Priority     *string  `json:"priority,omitempty"`
	SubtasksText []string `json:"subtasks_text,omitempty"`
}

// SnapshotSubtask is one checklist line of the snapshot sent to the model.
type SnapshotSubtask struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// TaskSnapshot is the task's current editable state, sent alongside a
// follow-up recording so the model can return targeted changes.
type TaskSnapshot struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Priority    string            `json:"priority"`
	Status      string            `json:"status"`
	Subtasks    []SnapshotSubtask `json:"subtasks"`
}

// ErrAudioUnsupported is returned by providers that cannot take audio input.
var ErrAudioUnsupported = errors.New("provider does not support audio input")

// TaskIntelligence is the interface for AI task extraction.
// One capability, four operations: create-extraction, update-extraction,
// text-to-subtasks and transcription share correlation and error handling.
// Implement this interface to add new AI providers (Gemini, Ollama, OpenAI, etc.)
type TaskIntelligence interface {
	ExtractTask(ctx context.Context, audioB64, mimeType string) (*ExtractedTask, error)
	UpdateTask(ctx context.Context, snapshot TaskSnapshot, audioB64, mimeType string) (*TaskUpdate, error)
	GenerateSubtasks(ctx context.Context, title, description, instruction string) ([]string, error)
	Transcribe(ctx context.Context, audioB64, mimeType string) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
