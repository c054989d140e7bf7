package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"voicetask-backend/internal/task/domain"
	"voicetask-backend/internal/task/repository"
	"voicetask-backend/pkg/fcm"

	authrepo "voicetask-backend/internal/auth/repository"
)

// reminderWindow is how far before the due date a push goes out
const reminderWindow = 24 * time.Hour

// TaskReminderScheduler sends FCM push reminders for tasks that are
// approaching their due date
type TaskReminderScheduler struct {
	taskRepo  repository.TaskRepository
	fcmRepo   authrepo.FCMTokenRepository
	fcmClient *fcm.Client
	events    EventPublisher
	interval  time.Duration
	stopChan  chan struct{}
}

// EventPublisher mirrors the SSE hub so connected browsers see the
// reminder without a push subscription
type EventPublisher interface {
	SendToUser(userID string, eventType string, payload interface{})
}

// NewTaskReminderScheduler creates a new scheduler
func NewTaskReminderScheduler(
	taskRepo repository.TaskRepository,
	fcmRepo authrepo.FCMTokenRepository,
	fcmClient *fcm.Client,
	events EventPublisher,
) *TaskReminderScheduler {
	return &TaskReminderScheduler{
		taskRepo:  taskRepo,
		fcmRepo:   fcmRepo,
		fcmClient: fcmClient,
		events:    events,
		interval:  1 * time.Minute,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *TaskReminderScheduler) Start() {
	if s.fcmClient == nil {
		log.Println("[TaskScheduler] FCM client not available, scheduler disabled")
		return
	}

	log.Println("[TaskScheduler] Starting due date reminder scheduler (interval: 1 minute)")

	go func() {
		// Run immediately on start
		s.checkAndSendReminders()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.checkAndSendReminders()
			case <-s.stopChan:
				log.Println("[TaskScheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *TaskReminderScheduler) Stop() {
	close(s.stopChan)
}

// checkAndSendReminders finds tasks entering the reminder window and
// pushes a notification for each
func (s *TaskReminderScheduler) checkAndSendReminders() {
	now := time.Now()

	tasks, err := s.taskRepo.FindDueForReminder(now, reminderWindow)
	if err != nil {
		log.Printf("[TaskScheduler] Error finding due tasks: %v", err)
		return
	}

	if len(tasks) == 0 {
		return
	}

	log.Printf("[TaskScheduler] Found %d tasks approaching their due date", len(tasks))

	for _, task := range tasks {
		s.remind(task)
	}
}

func (s *TaskReminderScheduler) remind(task *domain.Task) {
	tokens, err := s.fcmRepo.GetTokensByUserID(task.CreatedBy)
	if err != nil {
		log.Printf("[TaskScheduler] Error getting FCM tokens for user %s: %v", task.CreatedBy, err)
		return
	}

	if s.events != nil {
		s.events.SendToUser(task.CreatedBy, "task_reminder", map[string]string{
			"task_id": task.ID,
			"title":   task.Title,
		})
	}

	if len(tokens) == 0 {
		log.Printf("[TaskScheduler] No FCM tokens for user %s, marking reminder as sent", task.CreatedBy)
		s.taskRepo.MarkReminderSent(task.ID)
		return
	}

	title := "Due soon: " + task.Title
	body := task.Description
	if body == "" {
		body = "This task is approaching its due date"
	}
	if task.DueDate != nil {
		body = fmt.Sprintf("%s\nDue: %s", body, task.DueDate.Format("02/01/2006"))
	}

	var tokenStrings []string
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	notification := fcm.NotificationData{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":         "task_reminder",
			"task_id":      task.ID,
			"priority":     string(task.Priority),
			"click_action": "/board",
		},
	}

	failedTokens, err := s.fcmClient.SendToDevices(context.Background(), tokenStrings, notification)
	if err != nil {
		log.Printf("[TaskScheduler] Error sending reminder for task %s: %v", task.ID, err)
	} else {
		log.Printf("[TaskScheduler] Sent reminder for task '%s' to %d devices", task.Title, len(tokenStrings)-len(failedTokens))
	}

	// Cleanup dead tokens so the next reminder does not retry them
	for _, token := range failedTokens {
		s.fcmRepo.DeleteToken(token)
	}

	// Mark the reminder as sent regardless of success to avoid spamming
	if err := s.taskRepo.MarkReminderSent(task.ID); err != nil {
		log.Printf("[TaskScheduler] Error marking reminder as sent for task %s: %v", task.ID, err)
	}
}
