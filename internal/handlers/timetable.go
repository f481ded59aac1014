package handlers

import (
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"taskping/internal/database"
	"taskping/internal/models"
	"taskping/internal/services"

	"github.com/gin-gonic/gin"
)

// readTimetableFile pulls the uploaded CSV out of the multipart form.
func readTimetableFile(c *gin.Context) ([]byte, bool) {
	fileHeader, err := c.FormFile("timetable")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return nil, false
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be a CSV"})
		return nil, false
	}

	file, err := fileHeader.Open()
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to read uploaded file", err)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to read uploaded file", err)
		return nil, false
	}
	return data, true
}

// GetTimetables lists the user's timetables
func GetTimetables(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var timetables []models.Timetable
	if err := database.GetDB().Where("user_id = ?", userID).Find(&timetables).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to fetch timetables", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timetables": timetables})
}

// UploadTimetable stores a CSV timetable and arms its class reminders
func UploadTimetable(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	data, ok := readTimetableFile(c)
	if !ok {
		return
	}

	schedule, err := services.ParseTimetableCSV(data)
	if err != nil {
		handleError(c, http.StatusBadRequest, "Invalid timetable format", err)
		return
	}

	timetable := models.Timetable{
		UserID:    userID,
		FileData:  string(data),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := timetable.SetSchedule(schedule); err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to upload timetable", err)
		return
	}
	if err := database.GetDB().Create(&timetable).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to upload timetable", err)
		return
	}

	// Confirmation email trouble doesn't fail the upload; the class
	// triggers are armed before Activate returns an error for it.
	if err := timetableSvc.Activate(c.Request.Context(), timetable); err != nil {
		log.Printf("Error: activating timetable %d: %v", timetable.ID, err)
	}
	c.JSON(http.StatusCreated, gin.H{"timetable": timetable})
}

// UpdateTimetable replaces a timetable's CSV and re-arms its reminders
func UpdateTimetable(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id := c.Param("id")

	db := database.GetDB()

	var timetable models.Timetable
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&timetable).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Timetable not found"})
		return
	}

	data, ok := readTimetableFile(c)
	if !ok {
		return
	}

	schedule, err := services.ParseTimetableCSV(data)
	if err != nil {
		handleError(c, http.StatusBadRequest, "Invalid timetable format", err)
		return
	}

	// Stale triggers keyed to the old schedule must go before the new
	// ones are registered.
	timetableSvc.Cancel(timetable.ID)

	timetable.FileData = string(data)
	timetable.UpdatedAt = time.Now()
	if err := timetable.SetSchedule(schedule); err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to update timetable", err)
		return
	}
	if err := db.Save(&timetable).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to update timetable", err)
		return
	}

	if err := timetableSvc.Activate(c.Request.Context(), timetable); err != nil {
		log.Printf("Error: activating timetable %d: %v", timetable.ID, err)
	}
	c.JSON(http.StatusOK, gin.H{"timetable": timetable})
}

// DeleteTimetable removes a timetable and cancels its class reminders
func DeleteTimetable(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id := c.Param("id")

	db := database.GetDB()

	var timetable models.Timetable
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&timetable).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Timetable not found"})
		return
	}

	timetableSvc.Cancel(timetable.ID)

	if err := db.Delete(&timetable).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to delete timetable", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Timetable deleted successfully"})
}

// GetActiveSchedules reports, per timetable and class, whether a reminder
// trigger is currently armed.
func GetActiveSchedules(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var timetables []models.Timetable
	if err := database.GetDB().Where("user_id = ?", userID).Find(&timetables).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to fetch active schedules", err)
		return
	}

	type classView struct {
		Time                  string `json:"time"`
		Subject               string `json:"subject"`
		NotificationScheduled bool   `json:"notification_scheduled"`
	}
	type dayView struct {
		Day     string      `json:"day"`
		Classes []classView `json:"classes"`
	}
	type timetableView struct {
		TimetableID uint      `json:"timetable_id"`
		Schedules   []dayView `json:"schedules"`
	}

	views := make([]timetableView, 0, len(timetables))
	for _, timetable := range timetables {
		schedule, err := timetable.Schedule()
		if err != nil {
			handleError(c, http.StatusInternalServerError, "Failed to fetch active schedules", err)
			return
		}

		view := timetableView{TimetableID: timetable.ID}
		for _, day := range models.Weekdays {
			dv := dayView{Day: day, Classes: []classView{}}
			for _, class := range schedule[day] {
				dv.Classes = append(dv.Classes, classView{
					Time:                  class.Time,
					Subject:               class.Subject,
					NotificationScheduled: timetableSvc.ClassScheduled(timetable.ID, day, class.Time),
				})
			}
			view.Schedules = append(view.Schedules, dv)
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{"active_schedules": views})
}
