package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Priority represents task priority level
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// TaskStatus is a board column id, ordered left-to-right
type TaskStatus string

const (
	TaskStatusTodo   TaskStatus = "todo"
	TaskStatusDoing  TaskStatus = "doing"
	TaskStatusReview TaskStatus = "review"
	TaskStatusDone   TaskStatus = "done"
)

// BoardColumns lists the board's columns in display order.
var BoardColumns = []TaskStatus{TaskStatusTodo, TaskStatusDoing, TaskStatusReview, TaskStatusDone}

// ValidStatus reports whether s names a board column.
func ValidStatus(s TaskStatus) bool {
	for _, col := range BoardColumns {
		if s == col {
			return true
		}
	}
	return false
}

// ParsePriority maps arbitrary input to a priority, defaulting to medium.
func ParsePriority(p string) Priority {
	switch p {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Subtask is one checklist item of a task's AI-suggested action plan.
type Subtask struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// AiExtractedData is the structured result of running one audio or text
// input through the extraction model. Stored as a JSONB column.
type AiExtractedData struct {
	Title                 string    `json:"title"`
	Project               string    `json:"project"`
	Priority              Priority  `json:"priority"`
	Context               string    `json:"context"`
	DueDate               *string   `json:"due_date"` // YYYY-MM-DD
	Tags                  []string  `json:"tags"`
	NeedsClarification    bool      `json:"needs_clarification"`
	ClarificationQuestion *string   `json:"clarification_question"`
	ConfidenceScore       float64   `json:"confidence_score"`
	SuggestedSubtasks     []Subtask `json:"suggested_subtasks"`
}

// Value implements driver.Valuer
func (a *AiExtractedData) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *AiExtractedData) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for AiExtractedData: %T", value)
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// Task represents one unit of work on the board
type Task struct {
	ID            string           `json:"id" gorm:"primaryKey"`
	Title         string           `json:"title" gorm:"not null"`
	Status        TaskStatus       `json:"status" gorm:"index;default:todo"`
	Priority      Priority         `json:"priority" gorm:"default:medium"`
	Description   string           `json:"description,omitempty"`
	Order         int              `json:"order" gorm:"column:sort_order;not null;default:0"` // Sort key within a status column
	Progress      int              `json:"progress" gorm:"default:0"`                         // Derived from subtask completion, never authored directly
	AssignedTo    string           `json:"assigned_to,omitempty" gorm:"index"`
	CreatedBy     string           `json:"created_by" gorm:"index;not null"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
	ReminderSent  bool             `json:"reminder_sent" gorm:"default:false"`
	AudioURL      string           `json:"audio_url,omitempty"`
	Transcription string           `json:"transcription,omitempty"` // Filled in the background after creation
	AiExtracted   *AiExtractedData `json:"ai_extracted,omitempty" gorm:"type:jsonb"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Subtasks returns the task's checklist, or nil when no AI data exists.
func (t *Task) Subtasks() []Subtask {
	if t.AiExtracted == nil {
		return nil
	}
	return t.AiExtracted.SuggestedSubtasks
}
