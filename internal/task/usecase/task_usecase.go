package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"sync"
	"time"

	"voicetask-backend/internal/task/domain"
	"voicetask-backend/internal/task/repository"
	"voicetask-backend/pkg/ai"

	"github.com/google/uuid"
)

// taggedResult correlates an extraction response with the request that
// produced it; stale or mismatched results must never be merged.
type taggedResult struct {
	TaskID string
	Seq    uint64
	Update *ai.TaskUpdate
}

// updateTracker serializes audio updates per task and hands out the
// monotonic sequence numbers used for correlation.
type updateTracker struct {
	mu   sync.Mutex
	seq  map[string]uint64
	busy map[string]bool
}

func newUpdateTracker() *updateTracker {
	return &updateTracker{
		seq:  make(map[string]uint64),
		busy: make(map[string]bool),
	}
}

// begin reserves the task for one update and returns its sequence number.
func (t *updateTracker) begin(taskID string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.busy[taskID] {
		return 0, ErrUpdateInProgress
	}
	t.busy[taskID] = true
	t.seq[taskID]++
	return t.seq[taskID], nil
}

func (t *updateTracker) finish(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.busy, taskID)
}

// current reports whether seq is still the latest issued for the task.
func (t *updateTracker) current(taskID string, seq uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq[taskID] == seq
}

// taskUsecase implements TaskUsecase interface
type taskUsecase struct {
	taskRepo        repository.TaskRepository
	aiService       ai.TaskIntelligence
	events          EventPublisher
	changePublisher ChangePublisher
	transcripts     *TranscriptWorker
	updates         *updateTracker
}

// NewTaskUsecase creates a new instance of taskUsecase
func NewTaskUsecase(taskRepo repository.TaskRepository) TaskUsecase {
	return &taskUsecase{
		taskRepo: taskRepo,
		updates:  newUpdateTracker(),
	}
}

func (u *taskUsecase) SetAIService(svc ai.TaskIntelligence) {
	u.aiService = svc
}

func (u *taskUsecase) SetEventPublisher(events EventPublisher) {
	u.events = events
}

func (u *taskUsecase) SetChangePublisher(pub ChangePublisher) {
	u.changePublisher = pub
}

func (u *taskUsecase) SetTranscriptWorker(w *TranscriptWorker) {
	u.transcripts = w
}

func (u *taskUsecase) CreateFromAudio(ctx context.Context, userID string, audio []byte, mimeType string) (*domain.Task, error) {
	if u.aiService == nil {
		return nil, ErrAINotConfigured
	}
	if len(audio) == 0 {
		// Abort before any network call, no partial task is created
		return nil, ErrEmptyAudio
	}

	audioB64 := base64.StdEncoding.EncodeToString(audio)

	log.Printf("[TaskUsecase] Extracting task from %s clip (%d bytes) for user %s", mimeType, len(audio), userID)
	extracted, err := u.aiService.ExtractTask(ctx, audioB64, mimeType)
	if err != nil {
		return nil, err
	}

	subtasks := domain.NewSubtasks(extracted.SubtasksText)
	aiData := &domain.AiExtractedData{
		Title:                 extracted.Title,
		Project:               extracted.Project,
		Priority:              domain.ParsePriority(extracted.Priority),
		Context:               extracted.Context,
		DueDate:               extracted.DueDate,
		Tags:                  extracted.Tags,
		NeedsClarification:    extracted.NeedsClarification,
		ClarificationQuestion: extracted.ClarificationQuestion,
		ConfidenceScore:       extracted.ConfidenceScore,
		SuggestedSubtasks:     subtasks,
	}

	task := &domain.Task{
		ID:          uuid.New().String(),
		Title:       extracted.Title,
		Status:      domain.TaskStatusTodo,
		Priority:    domain.ParsePriority(extracted.Priority),
		Description: extracted.Context,
		Order:       0,
		Progress:    0,
		AssignedTo:  userID,
		CreatedBy:   userID,
		AiExtracted: aiData,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if extracted.DueDate != nil && *extracted.DueDate != "" {
		if due, err := time.Parse("2006-01-02", *extracted.DueDate); err == nil {
			task.DueDate = &due
		}
	}

	if err := u.taskRepo.Create(task); err != nil {
		// The user has to retry, but the extraction itself succeeded.
		// Log the payload so the recording is not lost silently.
		if payload, merr := json.Marshal(aiData); merr == nil {
			log.Printf("[TaskUsecase] Persist failed for user %s, extracted payload: %s", userID, payload)
		}
		return nil, err
	}

	if u.transcripts != nil {
		u.transcripts.Queue(TranscriptJob{UserID: userID, TaskID: task.ID, AudioB64: audioB64, MimeType: mimeType})
	}
	u.notifyChange(ctx, userID, task.ID, "created")

	return task, nil
}

func (u *taskUsecase) UpdateFromAudio(ctx context.Context, userID, taskID string, audio []byte, mimeType string) (*domain.Task, error) {
	if u.aiService == nil {
		return nil, ErrAINotConfigured
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return nil, err
	}

	seq, err := u.updates.begin(taskID)
	if err != nil {
		return nil, err
	}
	defer u.updates.finish(taskID)

	snapshot := buildSnapshot(task)
	audioB64 := base64.StdEncoding.EncodeToString(audio)

	log.Printf("[TaskUsecase] Update extraction for task %s (seq %d)", taskID, seq)
	update, err := u.aiService.UpdateTask(ctx, snapshot, audioB64, mimeType)
	if err != nil {
		// Persisted state is untouched, the caller may retry recording
		return nil, err
	}

	result := taggedResult{TaskID: taskID, Seq: seq, Update: update}
	if result.TaskID != task.ID || !u.updates.current(taskID, result.Seq) {
		log.Printf("[TaskUsecase] Discarding stale update for task %s (seq %d)", taskID, seq)
		return nil, ErrStaleResult
	}

	task.ApplyAIUpdate(toDomainUpdate(result.Update))
	task.UpdatedAt = time.Now()

	if err := u.taskRepo.Update(task); err != nil {
		return nil, err
	}

	u.notifyChange(ctx, userID, taskID, "updated")
	return task, nil
}

func (u *taskUsecase) ManualSave(userID, taskID string, req ManualSaveRequest) (*domain.Task, error) {
	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return nil, err
	}

	edit := domain.ManualEdit{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.ParsePriority(req.Priority),
		Status:      task.Status,
	}
	if req.Status != "" {
		if !domain.ValidStatus(domain.TaskStatus(req.Status)) {
			return nil, ErrInvalidStatus
		}
		edit.Status = domain.TaskStatus(req.Status)
	}
	if req.Subtasks != nil {
		subtasks := make([]domain.Subtask, 0, len(req.Subtasks))
		for _, s := range req.Subtasks {
			subtasks = append(subtasks, domain.Subtask{ID: s.ID, Text: s.Text, Completed: s.Completed})
		}
		edit.Subtasks = subtasks
	}

	task.ApplyManualSave(edit)
	task.UpdatedAt = time.Now()

	if err := u.taskRepo.Update(task); err != nil {
		return nil, err
	}

	u.notifyChange(context.Background(), userID, taskID, "saved")
	return task, nil
}

func (u *taskUsecase) GenerateSubtasks(ctx context.Context, userID, taskID, instruction string) (*domain.Task, error) {
	if u.aiService == nil {
		return nil, ErrAINotConfigured
	}

	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return nil, err
	}

	steps, err := u.aiService.GenerateSubtasks(ctx, task.Title, task.Description, instruction)
	if err != nil {
		// Existing checklist stays untouched on failure
		return nil, err
	}

	task.ReplaceSubtasks(domain.NewSubtasks(steps))
	task.UpdatedAt = time.Now()

	if err := u.taskRepo.Update(task); err != nil {
		return nil, err
	}

	u.notifyChange(ctx, userID, taskID, "subtasks_generated")
	return task, nil
}

func (u *taskUsecase) ToggleSubtask(userID, taskID, subtaskID string) (*domain.Task, error) {
	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return nil, err
	}

	if err := task.ToggleSubtask(subtaskID); err != nil {
		return nil, err
	}
	task.UpdatedAt = time.Now()

	if err := u.taskRepo.Update(task); err != nil {
		return nil, err
	}

	u.notifyChange(context.Background(), userID, taskID, "subtask_toggled")
	return task, nil
}

func (u *taskUsecase) MoveTask(userID, taskID string, newStatus domain.TaskStatus, newOrder int) error {
	if !domain.ValidStatus(newStatus) {
		return ErrInvalidStatus
	}
	if _, err := u.GetTaskByID(userID, taskID); err != nil {
		return err
	}

	if err := u.taskRepo.Reorder(userID, taskID, newStatus, newOrder); err != nil {
		return err
	}

	u.notifyChange(context.Background(), userID, taskID, "moved")
	return nil
}

func (u *taskUsecase) GetUserTasks(userID string) ([]*domain.Task, error) {
	return u.taskRepo.ListByUser(userID)
}

func (u *taskUsecase) GetTaskByID(userID, taskID string) (*domain.Task, error) {
	task, err := u.taskRepo.FindByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.CreatedBy != userID {
		return nil, ErrUnauthorized
	}
	return task, nil
}

func (u *taskUsecase) SearchTasks(userID, query string) ([]*domain.Task, error) {
	return u.taskRepo.Search(userID, query)
}

func (u *taskUsecase) DeleteTask(userID, taskID string) error {
	task, err := u.GetTaskByID(userID, taskID)
	if err != nil {
		return err
	}
	if err := u.taskRepo.Delete(task.ID); err != nil {
		return err
	}
	u.notifyChange(context.Background(), userID, taskID, "deleted")
	return nil
}

// notifyChange emits an invalidation signal for the user's board. When a
// broker is configured the event goes through it so other instances see
// it too, otherwise it goes straight to local SSE clients.
func (u *taskUsecase) notifyChange(ctx context.Context, userID, taskID, action string) {
	if u.changePublisher != nil {
		if err := u.changePublisher.PublishTaskChange(ctx, userID, taskID, action); err != nil {
			log.Printf("[TaskUsecase] Failed to publish task change: %v", err)
		}
		return
	}
	if u.events != nil {
		u.events.SendToUser(userID, "task_update", map[string]string{
			"task_id": taskID,
			"action":  action,
		})
	}
}

// buildSnapshot captures the task's editable state for the update prompt.
func buildSnapshot(task *domain.Task) ai.TaskSnapshot {
	snapshot := ai.TaskSnapshot{
		Title:       task.Title,
		Description: task.Description,
		Priority:    string(task.Priority),
		Status:      string(task.Status),
	}
	for _, s := range task.Subtasks() {
		snapshot.Subtasks = append(snapshot.Subtasks, ai.SnapshotSubtask{Text: s.Text, Completed: s.Completed})
	}
	return snapshot
}

// toDomainUpdate converts the provider's partial payload into the
// domain merge form.
func toDomainUpdate(update *ai.TaskUpdate) domain.AIUpdate {
	out := domain.AIUpdate{
		Title:        update.Title,
		Description:  update.Description,
		SubtasksText: update.SubtasksText,
	}
	if update.Priority != nil {
		p := domain.ParsePriority(*update.Priority)
		out.Priority = &p
	}
	return out
}
