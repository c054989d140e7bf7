package usecase

import (
	"context"
	"log"
	"sync"

	"voicetask-backend/internal/task/repository"
	"voicetask-backend/pkg/ai"
)

// TranscriptJob asks for one clip to be transcribed in the background
type TranscriptJob struct {
	UserID   string
	TaskID   string
	AudioB64 string
	MimeType string
}

// TranscriptWorker transcribes audio clips after the task is already
// persisted, so creation latency never waits on a second model call.
// Failures are logged and dropped, the task simply keeps no transcript.
type TranscriptWorker struct {
	taskRepo    repository.TaskRepository
	aiService   ai.TaskIntelligence
	events      EventPublisher
	jobQueue    chan TranscriptJob
	workerWg    sync.WaitGroup
	workerCount int
	started     bool
	mu          sync.Mutex
}

// NewTranscriptWorker creates a new transcript worker pool
func NewTranscriptWorker(taskRepo repository.TaskRepository, events EventPublisher, workerCount int) *TranscriptWorker {
	if workerCount <= 0 {
		workerCount = 2
	}

	return &TranscriptWorker{
		taskRepo:    taskRepo,
		events:      events,
		jobQueue:    make(chan TranscriptJob, 100),
		workerCount: workerCount,
	}
}

// SetAIService sets the provider used for transcription
func (w *TranscriptWorker) SetAIService(svc ai.TaskIntelligence) {
	w.aiService = svc
}

// Start starts the transcript workers
func (w *TranscriptWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}

	for i := 0; i < w.workerCount; i++ {
		w.workerWg.Add(1)
		go w.worker(i)
	}
	w.started = true
	log.Printf("[TranscriptWorker] Started %d workers", w.workerCount)
}

// Stop stops all workers gracefully
func (w *TranscriptWorker) Stop() {
	close(w.jobQueue)
	w.workerWg.Wait()
	log.Println("[TranscriptWorker] All workers stopped")
}

// Queue adds a job without blocking; a full queue drops the transcript.
func (w *TranscriptWorker) Queue(job TranscriptJob) bool {
	select {
	case w.jobQueue <- job:
		return true
	default:
		log.Printf("[TranscriptWorker] Queue full, dropping transcript for task %s", job.TaskID)
		return false
	}
}

func (w *TranscriptWorker) worker(id int) {
	defer w.workerWg.Done()

	for job := range w.jobQueue {
		w.processJob(job)
	}

	log.Printf("[TranscriptWorker] Worker %d stopped", id)
}

func (w *TranscriptWorker) processJob(job TranscriptJob) {
	if w.aiService == nil {
		return
	}

	transcript, err := w.aiService.Transcribe(context.Background(), job.AudioB64, job.MimeType)
	if err != nil {
		log.Printf("[TranscriptWorker] Transcription error for task %s: %v", job.TaskID, err)
		return
	}
	if transcript == "" {
		return
	}

	if err := w.taskRepo.SetTranscription(job.TaskID, transcript); err != nil {
		log.Printf("[TranscriptWorker] Save error for task %s: %v", job.TaskID, err)
		return
	}

	if w.events != nil {
		w.events.SendToUser(job.UserID, "task_update", map[string]string{
			"task_id": job.TaskID,
			"action":  "transcribed",
		})
	}

	log.Printf("[TranscriptWorker] Stored transcript for task %s", job.TaskID)
}
