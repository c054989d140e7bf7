package repository

import (
	"errors"
	"time"

	"voicetask-backend/internal/task/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// gormTaskRepository implements TaskRepository using GORM
type gormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GORM-based TaskRepository
func NewGormTaskRepository(db *gorm.DB) TaskRepository {
	return &gormTaskRepository{db: db}
}

func (r *gormTaskRepository) Create(task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	task.CreatedAt = time.Now()
	task.UpdatedAt = time.Now()
	return r.db.Create(task).Error
}

func (r *gormTaskRepository) FindByID(id string) (*domain.Task, error) {
	var task domain.Task
	err := r.db.Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *gormTaskRepository) ListByUser(userID string) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.db.Where("created_by = ?", userID).
		Order("sort_order ASC, created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *gormTaskRepository) Update(task *domain.Task) error {
	task.UpdatedAt = time.Now()
	return r.db.Save(task).Error
}

func (r *gormTaskRepository) Delete(id string) error {
	return r.db.Delete(&domain.Task{}, "id = ?", id).Error
}

// Reorder moves a task to newStatus at newOrder inside one transaction:
// close the gap it leaves behind, shift the neighbors at the target
// position, then write the task's own status and sort key.
func (r *gormTaskRepository) Reorder(userID, taskID string, newStatus domain.TaskStatus, newOrder int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var task domain.Task
		if err := tx.Where("id = ? AND created_by = ?", taskID, userID).First(&task).Error; err != nil {
			return err
		}

		// Close the gap in the source column
		if err := tx.Model(&domain.Task{}).
			Where("created_by = ? AND status = ? AND sort_order > ? AND id <> ?", userID, task.Status, task.Order, taskID).
			UpdateColumn("sort_order", gorm.Expr("sort_order - 1")).Error; err != nil {
			return err
		}

		// Make room at the target position
		if err := tx.Model(&domain.Task{}).
			Where("created_by = ? AND status = ? AND sort_order >= ? AND id <> ?", userID, newStatus, newOrder, taskID).
			UpdateColumn("sort_order", gorm.Expr("sort_order + 1")).Error; err != nil {
			return err
		}

		return tx.Model(&domain.Task{}).Where("id = ?", taskID).
			Updates(map[string]interface{}{
				"status":     newStatus,
				"sort_order": newOrder,
				"updated_at": time.Now(),
			}).Error
	})
}

func (r *gormTaskRepository) Search(userID, query string) ([]*domain.Task, error) {
	var tasks []*domain.Task
	pattern := "%" + query + "%"
	err := r.db.Where("created_by = ? AND (title ILIKE ? OR description ILIKE ?)", userID, pattern, pattern).
		Order("sort_order ASC, created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *gormTaskRepository) SetTranscription(id, transcription string) error {
	return r.db.Model(&domain.Task{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"transcription": transcription,
			"updated_at":    time.Now(),
		}).Error
}

func (r *gormTaskRepository) FindDueForReminder(now time.Time, window time.Duration) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.db.Where("due_date IS NOT NULL AND due_date <= ? AND reminder_sent = ? AND status <> ?",
		now.Add(window), false, domain.TaskStatusDone).Find(&tasks).Error
	return tasks, err
}

func (r *gormTaskRepository) MarkReminderSent(id string) error {
	return r.db.Model(&domain.Task{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"reminder_sent": true,
			"updated_at":    time.Now(),
		}).Error
}
