package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"voicetask-backend/internal/task/domain"
	"voicetask-backend/pkg/ai"
)

// fakeTaskRepository keeps tasks in a map and counts writes
type fakeTaskRepository struct {
	tasks      map[string]*domain.Task
	createErr  error
	creates    int
	updates    int
	reorders   int
	lastStatus domain.TaskStatus
	lastOrder  int
}

func newFakeTaskRepository() *fakeTaskRepository {
	return &fakeTaskRepository{tasks: make(map[string]*domain.Task)}
}

func (r *fakeTaskRepository) Create(task *domain.Task) error {
	r.creates++
	if r.createErr != nil {
		return r.createErr
	}
	copied := *task
	r.tasks[task.ID] = &copied
	return nil
}

func (r *fakeTaskRepository) FindByID(id string) (*domain.Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	copied := *task
	return &copied, nil
}

func (r *fakeTaskRepository) ListByUser(userID string) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, task := range r.tasks {
		if task.CreatedBy == userID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (r *fakeTaskRepository) Update(task *domain.Task) error {
	r.updates++
	copied := *task
	r.tasks[task.ID] = &copied
	return nil
}

func (r *fakeTaskRepository) Delete(id string) error {
	delete(r.tasks, id)
	return nil
}

func (r *fakeTaskRepository) Reorder(userID, taskID string, newStatus domain.TaskStatus, newOrder int) error {
	r.reorders++
	r.lastStatus = newStatus
	r.lastOrder = newOrder
	if task, ok := r.tasks[taskID]; ok {
		task.Status = newStatus
		task.Order = newOrder
	}
	return nil
}

func (r *fakeTaskRepository) Search(userID, query string) ([]*domain.Task, error) {
	return nil, nil
}

func (r *fakeTaskRepository) SetTranscription(id, transcription string) error {
	if task, ok := r.tasks[id]; ok {
		task.Transcription = transcription
	}
	return nil
}

func (r *fakeTaskRepository) FindDueForReminder(now time.Time, window time.Duration) ([]*domain.Task, error) {
	return nil, nil
}

func (r *fakeTaskRepository) MarkReminderSent(id string) error { return nil }

// fakeAI returns canned responses
type fakeAI struct {
	extracted  *ai.ExtractedTask
	extractErr error
	update     *ai.TaskUpdate
	updateErr  error
	subtasks   []string
	subErr     error
}

func (f *fakeAI) ExtractTask(ctx context.Context, audioB64, mimeType string) (*ai.ExtractedTask, error) {
	return f.extracted, f.extractErr
}

func (f *fakeAI) UpdateTask(ctx context.Context, snapshot ai.TaskSnapshot, audioB64, mimeType string) (*ai.TaskUpdate, error) {
	return f.update, f.updateErr
}

func (f *fakeAI) GenerateSubtasks(ctx context.Context, title, description, instruction string) ([]string, error) {
	return f.subtasks, f.subErr
}

func (f *fakeAI) Transcribe(ctx context.Context, audioB64, mimeType string) (string, error) {
	return "", nil
}

func newTestUsecase(repo *fakeTaskRepository, svc ai.TaskIntelligence) TaskUsecase {
	uc := NewTaskUsecase(repo)
	if svc != nil {
		uc.SetAIService(svc)
	}
	return uc
}

func seedTask(repo *fakeTaskRepository, userID string) *domain.Task {
	task := &domain.Task{
		ID:        "task-1",
		Title:     "Write launch email",
		Status:    domain.TaskStatusTodo,
		Priority:  domain.PriorityMedium,
		CreatedBy: userID,
		AiExtracted: &domain.AiExtractedData{
			SuggestedSubtasks: []domain.Subtask{
				{ID: "s1", Text: "draft", Completed: true},
				{ID: "s2", Text: "send"},
			},
		},
		Progress: 50,
	}
	repo.tasks[task.ID] = task
	return task
}

func TestCreateFromAudio(t *testing.T) {
	due := "2026-09-15"
	repo := newFakeTaskRepository()
	svc := &fakeAI{extracted: &ai.ExtractedTask{
		Title:           "Book venue",
		Priority:        "high",
		Context:         "For the offsite in October",
		DueDate:         &due,
		Tags:            []string{"offsite"},
		ConfidenceScore: 0.92,
		SubtasksText:    []string{"shortlist venues", "compare quotes", "book"},
	}}
	uc := newTestUsecase(repo, svc)

	task, err := uc.CreateFromAudio(context.Background(), "u1", []byte("webm-bytes"), "audio/webm")
	if err != nil {
		t.Fatalf("CreateFromAudio failed: %v", err)
	}

	if repo.creates != 1 {
		t.Fatalf("expected exactly one task row, got %d creates", repo.creates)
	}
	if task.Status != domain.TaskStatusTodo {
		t.Fatalf("new task must land in todo, got %q", task.Status)
	}
	if task.Priority != domain.PriorityHigh {
		t.Fatalf("priority = %q, want high", task.Priority)
	}
	if task.Progress != 0 {
		t.Fatalf("fresh task progress = %d, want 0", task.Progress)
	}
	if task.CreatedBy != "u1" || task.AssignedTo != "u1" {
		t.Fatal("task not attributed to the recording user")
	}
	if task.DueDate == nil || task.DueDate.Format("2006-01-02") != due {
		t.Fatalf("due date not parsed, got %v", task.DueDate)
	}
	if len(task.Subtasks()) != 3 {
		t.Fatalf("suggested subtasks not mapped, got %d", len(task.Subtasks()))
	}
	if task.AiExtracted == nil || task.AiExtracted.ConfidenceScore != 0.92 {
		t.Fatal("extraction payload not preserved on the task")
	}
}

func TestCreateFromAudioEmptyClip(t *testing.T) {
	repo := newFakeTaskRepository()
	uc := newTestUsecase(repo, &fakeAI{})

	if _, err := uc.CreateFromAudio(context.Background(), "u1", nil, "audio/webm"); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
	if repo.creates != 0 {
		t.Fatal("empty clip must not reach the repository")
	}
}

func TestCreateFromAudioExtractionFailure(t *testing.T) {
	repo := newFakeTaskRepository()
	uc := newTestUsecase(repo, &fakeAI{extractErr: errors.New("model overloaded")})

	if _, err := uc.CreateFromAudio(context.Background(), "u1", []byte("x"), "audio/webm"); err == nil {
		t.Fatal("expected extraction error to propagate")
	}
	if repo.creates != 0 {
		t.Fatalf("failed extraction must create zero rows, got %d", repo.creates)
	}
}

func TestCreateFromAudioPersistFailure(t *testing.T) {
	repo := newFakeTaskRepository()
	repo.createErr = errors.New("connection reset")
	uc := newTestUsecase(repo, &fakeAI{extracted: &ai.ExtractedTask{Title: "x"}})

	if _, err := uc.CreateFromAudio(context.Background(), "u1", []byte("x"), "audio/webm"); err == nil {
		t.Fatal("expected persist error to propagate")
	}
	if len(repo.tasks) != 0 {
		t.Fatal("no task may survive a failed persist")
	}
}

func TestUpdateFromAudioMergesPartialResult(t *testing.T) {
	repo := newFakeTaskRepository()
	seedTask(repo, "u1")
	newTitle := "Write and schedule launch email"
	uc := newTestUsecase(repo, &fakeAI{update: &ai.TaskUpdate{Title: &newTitle}})

	task, err := uc.UpdateFromAudio(context.Background(), "u1", "task-1", []byte("x"), "audio/webm")
	if err != nil {
		t.Fatalf("UpdateFromAudio failed: %v", err)
	}

	if task.Title != newTitle {
		t.Fatalf("title not merged, got %q", task.Title)
	}
	// Fields absent from the partial result stay as they were
	if task.Priority != domain.PriorityMedium || len(task.Subtasks()) != 2 {
		t.Fatal("fields absent from the result were modified")
	}
	if task.Progress != 50 {
		t.Fatalf("progress = %d, want 50", task.Progress)
	}
}

func TestUpdateFromAudioFailureLeavesTaskUntouched(t *testing.T) {
	repo := newFakeTaskRepository()
	original := seedTask(repo, "u1")
	uc := newTestUsecase(repo, &fakeAI{updateErr: errors.New("timeout")})

	if _, err := uc.UpdateFromAudio(context.Background(), "u1", "task-1", []byte("x"), "audio/webm"); err == nil {
		t.Fatal("expected update error to propagate")
	}

	stored, _ := repo.FindByID("task-1")
	if stored.Title != original.Title || stored.Progress != original.Progress {
		t.Fatal("failed update modified persisted state")
	}
	if repo.updates != 0 {
		t.Fatalf("failed update must not write, got %d updates", repo.updates)
	}
}

func TestUpdateFromAudioWrongOwner(t *testing.T) {
	repo := newFakeTaskRepository()
	seedTask(repo, "u1")
	uc := newTestUsecase(repo, &fakeAI{update: &ai.TaskUpdate{}})

	if _, err := uc.UpdateFromAudio(context.Background(), "intruder", "task-1", []byte("x"), "audio/webm"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestManualSaveClearsClarification(t *testing.T) {
	repo := newFakeTaskRepository()
	task := seedTask(repo, "u1")
	task.AiExtracted.NeedsClarification = true
	uc := newTestUsecase(repo, nil)

	saved, err := uc.ManualSave("u1", "task-1", ManualSaveRequest{
		Title:    "Write launch email",
		Priority: "high",
		Status:   "doing",
	})
	if err != nil {
		t.Fatalf("ManualSave failed: %v", err)
	}

	if saved.AiExtracted.NeedsClarification {
		t.Fatal("manual save must clear the clarification flag")
	}
	if saved.Status != domain.TaskStatusDoing || saved.Priority != domain.PriorityHigh {
		t.Fatalf("edits not saved: %q %q", saved.Status, saved.Priority)
	}
	// Request carried no subtasks, checklist survives
	if len(saved.Subtasks()) != 2 {
		t.Fatalf("checklist lost on manual save, got %d subtasks", len(saved.Subtasks()))
	}
}

func TestManualSaveRejectsUnknownColumn(t *testing.T) {
	repo := newFakeTaskRepository()
	seedTask(repo, "u1")
	uc := newTestUsecase(repo, nil)

	if _, err := uc.ManualSave("u1", "task-1", ManualSaveRequest{Title: "x", Status: "archived"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestGenerateSubtasksReplacesChecklist(t *testing.T) {
	repo := newFakeTaskRepository()
	seedTask(repo, "u1")
	uc := newTestUsecase(repo, &fakeAI{subtasks: []string{"one", "two", "three", "four"}})

	task, err := uc.GenerateSubtasks(context.Background(), "u1", "task-1", "")
	if err != nil {
		t.Fatalf("GenerateSubtasks failed: %v", err)
	}

	if len(task.Subtasks()) != 4 {
		t.Fatalf("checklist not replaced, got %d subtasks", len(task.Subtasks()))
	}
	if task.Progress != 0 {
		t.Fatalf("fresh checklist progress = %d, want 0", task.Progress)
	}
}

func TestGenerateSubtasksFailureKeepsChecklist(t *testing.T) {
	repo := newFakeTaskRepository()
	seedTask(repo, "u1")
	uc := newTestUsecase(repo, &fakeAI{subErr: errors.New("model unavailable")})

	if _, err := uc.GenerateSubtasks(context.Background(), "u1", "task-1", ""); err == nil {
		t.Fatal("expected generation error to propagate")
	}

	stored, _ := repo.FindByID("task-1")
	if len(stored.Subtasks()) != 2 || stored.Progress != 50 {
		t.Fatal("failed generation modified the checklist")
	}
}

func TestToggleSubtaskPersists(t *testing.T) {
	repo := newFakeTaskRepository()
	seedTask(repo, "u1")
	uc := newTestUsecase(repo, nil)

	task, err := uc.ToggleSubtask("u1", "task-1", "s2")
	if err != nil {
		t.Fatalf("ToggleSubtask failed: %v", err)
	}
	if task.Progress != 100 {
		t.Fatalf("progress = %d, want 100", task.Progress)
	}

	stored, _ := repo.FindByID("task-1")
	if stored.Progress != 100 {
		t.Fatal("toggle not persisted")
	}
}

func TestMoveTaskChangesOnlyPlacement(t *testing.T) {
	repo := newFakeTaskRepository()
	seedTask(repo, "u1")
	uc := newTestUsecase(repo, nil)

	if err := uc.MoveTask("u1", "task-1", domain.TaskStatusReview, 2); err != nil {
		t.Fatalf("MoveTask failed: %v", err)
	}

	if repo.reorders != 1 || repo.lastStatus != domain.TaskStatusReview || repo.lastOrder != 2 {
		t.Fatalf("reorder not delegated correctly: %d %q %d", repo.reorders, repo.lastStatus, repo.lastOrder)
	}

	stored, _ := repo.FindByID("task-1")
	if stored.Title != "Write launch email" || stored.Progress != 50 {
		t.Fatal("move changed fields other than placement")
	}
}

func TestMoveTaskRejectsUnknownColumn(t *testing.T) {
	repo := newFakeTaskRepository()
	seedTask(repo, "u1")
	uc := newTestUsecase(repo, nil)

	if err := uc.MoveTask("u1", "task-1", "backlog", 0); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if repo.reorders != 0 {
		t.Fatal("invalid column must not reach the repository")
	}
}

func TestUpdateTrackerSerializesPerTask(t *testing.T) {
	tracker := newUpdateTracker()

	seq, err := tracker.begin("t1")
	if err != nil {
		t.Fatalf("first begin failed: %v", err)
	}
	if _, err := tracker.begin("t1"); !errors.Is(err, ErrUpdateInProgress) {
		t.Fatalf("expected ErrUpdateInProgress while busy, got %v", err)
	}

	// Other tasks are unaffected
	if _, err := tracker.begin("t2"); err != nil {
		t.Fatalf("unrelated task blocked: %v", err)
	}

	tracker.finish("t1")
	next, err := tracker.begin("t1")
	if err != nil {
		t.Fatalf("begin after finish failed: %v", err)
	}
	if next <= seq {
		t.Fatalf("sequence did not advance: %d then %d", seq, next)
	}
	if tracker.current("t1", seq) {
		t.Fatal("old sequence still reported current")
	}
	if !tracker.current("t1", next) {
		t.Fatal("latest sequence not reported current")
	}
}
