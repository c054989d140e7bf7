package delivery

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"voicetask-backend/internal/task/domain"
	"voicetask-backend/internal/task/usecase"

	"github.com/gin-gonic/gin"
)

// Recordings above this size are rejected before any model call
const maxAudioBytes = 15 << 20

// TaskHandler handles task board HTTP requests
type TaskHandler struct {
	taskUsecase usecase.TaskUsecase
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskUsecase usecase.TaskUsecase) *TaskHandler {
	return &TaskHandler{
		taskUsecase: taskUsecase,
	}
}

// MoveTaskRequest represents the request body for moving a card
type MoveTaskRequest struct {
	Status string `json:"status" binding:"required"`
	Order  *int   `json:"order" binding:"required"`
}

// GenerateSubtasksRequest carries an optional extra instruction for the
// decomposition prompt
type GenerateSubtasksRequest struct {
	Instruction string `json:"instruction"`
}

// GetTasks returns the authenticated user's board
// GET /api/tasks
func (h *TaskHandler) GetTasks(c *gin.Context) {
	userID := c.GetString("userID")

	tasks, err := h.taskUsecase.GetUserTasks(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Return empty array instead of null so clients can iterate directly
	if tasks == nil {
		tasks = []*domain.Task{}
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// GetTaskByID returns a specific task
// GET /api/tasks/:id
func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")

	task, err := h.taskUsecase.GetTaskByID(userID, taskID)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// CreateTaskFromAudio runs the voice capture pipeline on an uploaded clip
// POST /api/tasks/audio (multipart form, field "audio")
func (h *TaskHandler) CreateTaskFromAudio(c *gin.Context) {
	userID := c.GetString("userID")

	audio, mimeType, err := readAudioUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskUsecase.CreateFromAudio(c.Request.Context(), userID, audio, mimeType)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

// UpdateTaskFromAudio merges a spoken change into an existing task
// POST /api/tasks/:id/audio (multipart form, field "audio")
func (h *TaskHandler) UpdateTaskFromAudio(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")

	audio, mimeType, err := readAudioUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskUsecase.UpdateFromAudio(c.Request.Context(), userID, taskID, audio, mimeType)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// UpdateTask saves manual edits from the detail form
// PUT /api/tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")

	var req usecase.ManualSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskUsecase.ManualSave(userID, taskID, req)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// GenerateSubtasks asks the AI to break the task into checklist steps
// POST /api/tasks/:id/subtasks/generate
func (h *TaskHandler) GenerateSubtasks(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")

	var req GenerateSubtasksRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	task, err := h.taskUsecase.GenerateSubtasks(c.Request.Context(), userID, taskID, req.Instruction)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// ToggleSubtask flips one checklist item's completion state
// PATCH /api/tasks/:id/subtasks/:subtaskId/toggle
func (h *TaskHandler) ToggleSubtask(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")
	subtaskID := c.Param("subtaskId")

	task, err := h.taskUsecase.ToggleSubtask(userID, taskID, subtaskID)
	if err != nil {
		if errors.Is(err, domain.ErrSubtaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subtask not found"})
			return
		}
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// MoveTask moves a card to another column or position
// POST /api/tasks/:id/move
func (h *TaskHandler) MoveTask(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")

	var req MoveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.taskUsecase.MoveTask(userID, taskID, domain.TaskStatus(req.Status), *req.Order); err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task moved successfully"})
}

// SearchTasks matches the query against titles and descriptions
// GET /api/tasks/search?q=...
func (h *TaskHandler) SearchTasks(c *gin.Context) {
	userID := c.GetString("userID")

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}

	tasks, err := h.taskUsecase.SearchTasks(userID, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if tasks == nil {
		tasks = []*domain.Task{}
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// DeleteTask deletes a task
// DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID := c.GetString("userID")
	taskID := c.Param("id")

	if err := h.taskUsecase.DeleteTask(userID, taskID); err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// respondTaskError maps usecase errors onto HTTP statuses
func (h *TaskHandler) respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.Is(err, usecase.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
	case errors.Is(err, usecase.ErrEmptyAudio):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Audio clip is empty"})
	case errors.Is(err, usecase.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid board column"})
	case errors.Is(err, usecase.ErrUpdateInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "An audio update is already processing for this task"})
	case errors.Is(err, usecase.ErrStaleResult):
		c.JSON(http.StatusConflict, gin.H{"error": "Update superseded by a newer recording"})
	case errors.Is(err, usecase.ErrAINotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI service not configured"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// readAudioUpload pulls the recording out of the multipart form
func readAudioUpload(c *gin.Context) ([]byte, string, error) {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return nil, "", errors.New("multipart field 'audio' is required")
	}
	if fileHeader.Size > maxAudioBytes {
		return nil, "", errors.New("audio clip exceeds the " + strconv.Itoa(maxAudioBytes>>20) + "MB limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	return data, mimeType, nil
}
