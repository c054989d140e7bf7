package repository

import (
	"time"

	"voicetask-backend/internal/task/domain"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *domain.Task) error

	// FindByID finds a task by its ID
	FindByID(id string) (*domain.Task, error)

	// ListByUser returns all of a user's tasks ordered by sort key ascending
	ListByUser(userID string) ([]*domain.Task, error)

	// Update updates an existing task
	Update(task *domain.Task) error

	// Delete deletes a task by ID
	Delete(id string) error

	// Reorder is the server-side reorder procedure: it moves the task to
	// the target column at the target position and resequences neighbors
	// consistently, all in one transaction.
	Reorder(userID, taskID string, newStatus domain.TaskStatus, newOrder int) error

	// Search returns the user's tasks whose title or description matches
	// the query, ordered by sort key
	Search(userID, query string) ([]*domain.Task, error)

	// SetTranscription stores the background transcription result without
	// touching any other field
	SetTranscription(id, transcription string) error

	// FindDueForReminder finds tasks whose due date falls within the
	// reminder window and that have not been reminded yet
	FindDueForReminder(now time.Time, window time.Duration) ([]*domain.Task, error)

	// MarkReminderSent marks a task's reminder as sent
	MarkReminderSent(id string) error
}
