package usecase

import (
	"context"
	"errors"

	"voicetask-backend/internal/task/domain"
	"voicetask-backend/pkg/ai"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrEmptyAudio       = errors.New("empty audio clip")
	ErrInvalidStatus    = errors.New("invalid board column")
	ErrAINotConfigured  = errors.New("AI service not configured")
	ErrUpdateInProgress = errors.New("an audio update is already processing for this task")
	ErrStaleResult      = errors.New("stale extraction result discarded")
)

// TaskUsecase defines the interface for task board business logic
type TaskUsecase interface {
	// CreateFromAudio runs the creation pipeline: encode the clip, run
	// AI extraction, map suggested subtasks and persist a new todo task.
	// Exactly one task row is created per successful run, zero on failure.
	CreateFromAudio(ctx context.Context, userID string, audio []byte, mimeType string) (*domain.Task, error)

	// UpdateFromAudio runs the reconciliation pipeline: send the task's
	// snapshot plus the clip to the AI and merge the partial result.
	// Results are correlated by task id and sequence number, stale
	// responses are discarded.
	UpdateFromAudio(ctx context.Context, userID, taskID string, audio []byte, mimeType string) (*domain.Task, error)

	// ManualSave persists user-edited fields verbatim, recomputes
	// progress and clears the clarification flag.
	ManualSave(userID, taskID string, req ManualSaveRequest) (*domain.Task, error)

	// GenerateSubtasks asks the AI to decompose the task into steps and
	// replaces the checklist with fresh records. On failure the existing
	// checklist is untouched.
	GenerateSubtasks(ctx context.Context, userID, taskID, instruction string) (*domain.Task, error)

	// ToggleSubtask flips one checklist item and recomputes progress.
	ToggleSubtask(userID, taskID, subtaskID string) (*domain.Task, error)

	// MoveTask reassigns the task's column and position; the repository
	// resequences neighbors server-side.
	MoveTask(userID, taskID string, newStatus domain.TaskStatus, newOrder int) error

	// GetUserTasks returns the user's board ordered by sort key.
	GetUserTasks(userID string) ([]*domain.Task, error)

	// GetTaskByID retrieves a task by ID (with ownership check)
	GetTaskByID(userID, taskID string) (*domain.Task, error)

	// SearchTasks matches the query against titles and descriptions.
	SearchTasks(userID, query string) ([]*domain.Task, error)

	// DeleteTask deletes a task
	DeleteTask(userID, taskID string) error

	// SetAIService sets the AI service used by the extraction pipelines
	SetAIService(svc ai.TaskIntelligence)

	// SetEventPublisher sets the SSE hub used for invalidation events
	SetEventPublisher(events EventPublisher)

	// SetChangePublisher sets the optional broker used to fan changes
	// out across instances
	SetChangePublisher(pub ChangePublisher)

	// SetTranscriptWorker sets the background transcription queue
	SetTranscriptWorker(w *TranscriptWorker)
}

// ManualSaveRequest represents the editable fields of the detail form
type ManualSaveRequest struct {
	Title       string                `json:"title" binding:"required"`
	Description string                `json:"description"`
	Priority    string                `json:"priority"`
	Status      string                `json:"status"`
	Subtasks    []SubtaskStateRequest `json:"subtasks"`
}

// SubtaskStateRequest carries one checklist line's current state
type SubtaskStateRequest struct {
	ID        string `json:"id" binding:"required"`
	Text      string `json:"text" binding:"required"`
	Completed bool   `json:"completed"`
}

// EventPublisher pushes board invalidation events to connected clients.
// The payload is a hint only, clients refetch rather than trust it.
type EventPublisher interface {
	SendToUser(userID string, eventType string, payload interface{})
}

// ChangePublisher forwards task changes to a broker so every instance
// can invalidate its connected clients.
type ChangePublisher interface {
	PublishTaskChange(ctx context.Context, userID, taskID, action string) error
}
