package handlers

import (
	"net/http"
	"strconv"
	"time"

	"taskping/internal/database"
	"taskping/internal/models"
	"taskping/internal/scheduler"

	"github.com/gin-gonic/gin"
)

func taskEntity(task models.Task) scheduler.Entity {
	return scheduler.Entity{
		Kind:      models.SourceTask,
		ID:        strconv.FormatUint(uint64(task.ID), 10),
		UserID:    task.UserID,
		Label:     task.TaskName,
		DueAt:     task.DueDate,
		Completed: task.IsCompleted,
	}
}

// GetTasks lists the authenticated user's tasks
func GetTasks(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var tasks []models.Task
	if err := database.GetDB().Where("user_id = ?", userID).Order("due_date asc").Find(&tasks).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to fetch tasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// CreateTask persists a new task and schedules its reminders
func CreateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var request models.CreateTaskRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		handleError(c, http.StatusBadRequest, "Task name and due date are required", err)
		return
	}

	task := models.Task{
		UserID:    userID,
		TaskName:  request.TaskName,
		DueDate:   request.DueDate,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := database.GetDB().Create(&task).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to create task", err)
		return
	}

	engine.ScheduleReminders(taskEntity(task))
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

// UpdateTask changes a task and reschedules (or cancels) its reminders as
// part of the same request.
func UpdateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id := c.Param("id")

	var request models.UpdateTaskRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		handleError(c, http.StatusBadRequest, "Task name and due date are required", err)
		return
	}

	db := database.GetDB()

	var task models.Task
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&task).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	task.TaskName = request.TaskName
	task.DueDate = request.DueDate
	if request.IsCompleted != nil {
		task.IsCompleted = *request.IsCompleted
	}
	task.UpdatedAt = time.Now()

	if err := db.Save(&task).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to update task", err)
		return
	}

	if task.IsCompleted {
		engine.CancelReminders(models.SourceTask, id)
	} else {
		engine.RescheduleReminders(taskEntity(task))
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

// DeleteTask removes a task and cancels its reminders
func DeleteTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id := c.Param("id")

	result := database.GetDB().Where("id = ? AND user_id = ?", id, userID).Delete(&models.Task{})
	if result.Error != nil {
		handleError(c, http.StatusInternalServerError, "Failed to delete task", result.Error)
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	engine.CancelReminders(models.SourceTask, id)
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}
