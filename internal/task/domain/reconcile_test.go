package domain

import "testing"

func strPtr(s string) *string { return &s }

func taskWithSubtasks(subtasks []Subtask) *Task {
	return &Task{
		ID:          "t1",
		Title:       "Prepare launch",
		Description: "Ship the new landing page",
		Priority:    PriorityMedium,
		Status:      TaskStatusTodo,
		AiExtracted: &AiExtractedData{
			Title:             "Prepare launch",
			SuggestedSubtasks: subtasks,
		},
	}
}

func TestComputeProgress(t *testing.T) {
	cases := []struct {
		name      string
		completed int
		total     int
		want      int
	}{
		{"empty checklist", 0, 0, 0},
		{"none done", 0, 4, 0},
		{"all done", 4, 4, 100},
		{"one of three rounds up", 1, 3, 33},
		{"two of three rounds up", 2, 3, 67},
		{"one of six", 1, 6, 17},
		{"half", 2, 4, 50},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subtasks := make([]Subtask, tc.total)
			for i := range subtasks {
				subtasks[i] = Subtask{ID: "s", Text: "step", Completed: i < tc.completed}
			}
			if got := ComputeProgress(subtasks); got != tc.want {
				t.Fatalf("ComputeProgress(%d/%d) = %d, want %d", tc.completed, tc.total, got, tc.want)
			}
		})
	}
}

func TestNewSubtasksAssignsUniqueIDs(t *testing.T) {
	first := NewSubtasks([]string{"draft copy", "review copy", "publish"})
	second := NewSubtasks([]string{"draft copy", "review copy", "publish"})

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 subtasks per generation, got %d and %d", len(first), len(second))
	}

	seen := make(map[string]bool)
	for _, s := range append(first, second...) {
		if s.ID == "" {
			t.Fatal("subtask created without an id")
		}
		if seen[s.ID] {
			t.Fatalf("duplicate subtask id %s across generations", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestNewSubtasksSkipsEmptyLines(t *testing.T) {
	subtasks := NewSubtasks([]string{"one", "", "two"})
	if len(subtasks) != 2 {
		t.Fatalf("expected empty lines to be dropped, got %d subtasks", len(subtasks))
	}
}

func TestApplyAIUpdatePartialOverride(t *testing.T) {
	task := taskWithSubtasks(nil)
	task.AiExtracted.NeedsClarification = true

	task.ApplyAIUpdate(AIUpdate{Title: strPtr("Prepare launch v2")})

	if task.Title != "Prepare launch v2" {
		t.Fatalf("title not overridden, got %q", task.Title)
	}
	if task.Description != "Ship the new landing page" {
		t.Fatalf("absent description was modified, got %q", task.Description)
	}
	if task.Priority != PriorityMedium {
		t.Fatalf("absent priority was modified, got %q", task.Priority)
	}
	if !task.AiExtracted.NeedsClarification {
		t.Fatal("clarification flag must survive an AI update")
	}
}

func TestApplyAIUpdateReplacesChecklist(t *testing.T) {
	task := taskWithSubtasks([]Subtask{
		{ID: "a", Text: "old step", Completed: true},
		{ID: "b", Text: "other old step", Completed: true},
	})
	task.RecalcProgress()
	if task.Progress != 100 {
		t.Fatalf("precondition failed, progress = %d", task.Progress)
	}

	task.ApplyAIUpdate(AIUpdate{SubtasksText: []string{"new step one", "new step two"}})

	subtasks := task.Subtasks()
	if len(subtasks) != 2 {
		t.Fatalf("expected 2 replacement subtasks, got %d", len(subtasks))
	}
	for _, s := range subtasks {
		if s.Completed {
			t.Fatal("completion state must not carry over into a replaced checklist")
		}
		if s.ID == "a" || s.ID == "b" {
			t.Fatal("replaced checklist must not reuse old ids")
		}
	}
	if task.Progress != 0 {
		t.Fatalf("progress not recomputed after replacement, got %d", task.Progress)
	}
}

func TestApplyAIUpdateNilSubtasksLeavesChecklist(t *testing.T) {
	task := taskWithSubtasks([]Subtask{{ID: "a", Text: "keep me", Completed: true}})
	task.RecalcProgress()

	task.ApplyAIUpdate(AIUpdate{Description: strPtr("updated description")})

	subtasks := task.Subtasks()
	if len(subtasks) != 1 || subtasks[0].ID != "a" || !subtasks[0].Completed {
		t.Fatalf("checklist changed by an update that did not mention subtasks: %+v", subtasks)
	}
	if task.Progress != 100 {
		t.Fatalf("progress changed, got %d", task.Progress)
	}
}

func TestApplyManualSaveClearsClarification(t *testing.T) {
	task := taskWithSubtasks(nil)
	question := "Which project is this for?"
	task.AiExtracted.NeedsClarification = true
	task.AiExtracted.ClarificationQuestion = &question
	task.AiExtracted.ConfidenceScore = 0.4

	task.ApplyManualSave(ManualEdit{
		Title:       "Prepare launch",
		Description: "For the marketing site",
		Priority:    PriorityHigh,
		Status:      TaskStatusDoing,
	})

	if task.AiExtracted.NeedsClarification {
		t.Fatal("manual save must clear the clarification flag")
	}
	if task.AiExtracted.ConfidenceScore != 0.4 {
		t.Fatal("other extracted fields must survive a manual save")
	}
	if task.Priority != PriorityHigh || task.Status != TaskStatusDoing {
		t.Fatalf("edited fields not saved verbatim: %q %q", task.Priority, task.Status)
	}
}

func TestApplyManualSaveRecomputesProgress(t *testing.T) {
	task := taskWithSubtasks(nil)

	task.ApplyManualSave(ManualEdit{
		Title:    "Prepare launch",
		Priority: PriorityMedium,
		Status:   TaskStatusTodo,
		Subtasks: []Subtask{
			{ID: "a", Text: "one", Completed: true},
			{ID: "b", Text: "two", Completed: false},
		},
	})

	if task.Progress != 50 {
		t.Fatalf("progress = %d, want 50", task.Progress)
	}
}

func TestToggleSubtask(t *testing.T) {
	task := taskWithSubtasks([]Subtask{
		{ID: "a", Text: "one"},
		{ID: "b", Text: "two"},
	})

	if err := task.ToggleSubtask("a"); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if task.Progress != 50 {
		t.Fatalf("progress = %d after first toggle, want 50", task.Progress)
	}

	// Toggling twice restores the original state
	if err := task.ToggleSubtask("a"); err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if task.Subtasks()[0].Completed {
		t.Fatal("double toggle did not restore completion state")
	}
	if task.Progress != 0 {
		t.Fatalf("progress = %d after double toggle, want 0", task.Progress)
	}
}

func TestToggleSubtaskUnknownID(t *testing.T) {
	task := taskWithSubtasks([]Subtask{{ID: "a", Text: "one"}})

	if err := task.ToggleSubtask("missing"); err != ErrSubtaskNotFound {
		t.Fatalf("expected ErrSubtaskNotFound, got %v", err)
	}
	if task.Progress != 0 {
		t.Fatal("failed toggle must not change progress")
	}
}

func TestValidStatus(t *testing.T) {
	for _, col := range BoardColumns {
		if !ValidStatus(col) {
			t.Fatalf("board column %q rejected", col)
		}
	}
	if ValidStatus("archived") {
		t.Fatal("unknown column accepted")
	}
}

func TestParsePriorityDefaultsToMedium(t *testing.T) {
	if got := ParsePriority("urgent"); got != PriorityMedium {
		t.Fatalf("ParsePriority(urgent) = %q, want medium", got)
	}
	if got := ParsePriority("high"); got != PriorityHigh {
		t.Fatalf("ParsePriority(high) = %q", got)
	}
	if got := ParsePriority("low"); got != PriorityLow {
		t.Fatalf("ParsePriority(low) = %q", got)
	}
}
