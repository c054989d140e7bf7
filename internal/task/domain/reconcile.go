package domain

import (
	"errors"

	"github.com/google/uuid"
)

// ErrSubtaskNotFound is returned when a toggle names an unknown subtask.
var ErrSubtaskNotFound = errors.New("subtask not found")

// ComputeProgress returns round(100 * completed / total), or 0 for an
// empty checklist. Progress is always derived through this formula.
func ComputeProgress(subtasks []Subtask) int {
	if len(subtasks) == 0 {
		return 0
	}
	completed := 0
	for _, s := range subtasks {
		if s.Completed {
			completed++
		}
	}
	// Integer rounding: round(100*c/t) == (200*c + t) / (2*t)
	return (200*completed + len(subtasks)) / (2 * len(subtasks))
}

// RecalcProgress recomputes the derived progress from the current checklist.
func (t *Task) RecalcProgress() {
	t.Progress = ComputeProgress(t.Subtasks())
}

// NewSubtasks maps flat subtask strings to Subtask records with fresh
// unique ids. Regeneration never reuses an id, so repeated calls cannot
// collide within a task.
func NewSubtasks(texts []string) []Subtask {
	subtasks := make([]Subtask, 0, len(texts))
	for _, text := range texts {
		if text == "" {
			continue
		}
		subtasks = append(subtasks, Subtask{
			ID:   uuid.New().String(),
			Text: text,
		})
	}
	return subtasks
}

// AIUpdate is the reconciled form of a partial extraction from a
// follow-up recording. Nil fields were absent from the model's response.
type AIUpdate struct {
	Title        *string
	Description  *string
	Priority     *Priority
	SubtasksText []string // non-nil replaces the whole checklist
}

// ApplyAIUpdate merges a partial extraction into the task. Each field
// present in the update replaces the local field; absent fields are left
// untouched. A returned subtask list fully replaces the checklist, and
// prior completion state is not carried over (known fidelity gap of the
// replace-all contract). Progress is recomputed afterward; the
// clarification flag is not touched here, only a manual save clears it.
func (t *Task) ApplyAIUpdate(u AIUpdate) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.SubtasksText != nil {
		if t.AiExtracted == nil {
			t.AiExtracted = &AiExtractedData{}
		}
		t.AiExtracted.SuggestedSubtasks = NewSubtasks(u.SubtasksText)
	}
	t.RecalcProgress()
}

// ManualEdit carries the user-edited fields of the detail form.
type ManualEdit struct {
	Title       string
	Description string
	Priority    Priority
	Status      TaskStatus
	Subtasks    []Subtask
}

// ApplyManualSave persists the user's edits verbatim, recomputes
// progress and clears the clarification flag: a manual save counts as
// the human answering whatever the model was unsure about. All other
// extracted fields survive untouched.
func (t *Task) ApplyManualSave(e ManualEdit) {
	t.Title = e.Title
	t.Description = e.Description
	t.Priority = e.Priority
	t.Status = e.Status
	if t.AiExtracted != nil {
		if e.Subtasks != nil {
			t.AiExtracted.SuggestedSubtasks = e.Subtasks
		}
		t.AiExtracted.NeedsClarification = false
	} else if e.Subtasks != nil {
		t.AiExtracted = &AiExtractedData{SuggestedSubtasks: e.Subtasks}
	}
	t.RecalcProgress()
}

// ToggleSubtask flips one checklist item and recomputes progress.
// Nothing else on the task changes.
func (t *Task) ToggleSubtask(subtaskID string) error {
	if t.AiExtracted == nil {
		return ErrSubtaskNotFound
	}
	for i := range t.AiExtracted.SuggestedSubtasks {
		if t.AiExtracted.SuggestedSubtasks[i].ID == subtaskID {
			t.AiExtracted.SuggestedSubtasks[i].Completed = !t.AiExtracted.SuggestedSubtasks[i].Completed
			t.RecalcProgress()
			return nil
		}
	}
	return ErrSubtaskNotFound
}

// ReplaceSubtasks installs a freshly generated checklist and recomputes
// progress. Used by text-prompt regeneration, which always replaces.
func (t *Task) ReplaceSubtasks(subtasks []Subtask) {
	if t.AiExtracted == nil {
		t.AiExtracted = &AiExtractedData{}
	}
	t.AiExtracted.SuggestedSubtasks = subtasks
	t.RecalcProgress()
}
