package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"taskping/internal/auth"
	"taskping/internal/database"
	"taskping/internal/models"
	"taskping/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Signup creates a new user account
func Signup(c *gin.Context) {
	var request models.SignupRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		handleError(c, http.StatusBadRequest, "Email, password, and full name are required", err)
		return
	}

	firstName, lastName, _ := strings.Cut(strings.TrimSpace(request.Name), " ")
	if firstName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Full name is required"})
		return
	}

	db := database.GetDB()

	var existing models.User
	err := db.Where("email = ?", request.Email).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User already exists"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		handleError(c, http.StatusInternalServerError, "An error occurred during signup", err)
		return
	}

	hashedPass, err := auth.HashPassword(request.Password)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "An error occurred during signup", err)
		return
	}

	user := models.User{
		Email:      request.Email,
		FirstName:  firstName,
		LastName:   strings.TrimSpace(lastName),
		HashedPass: hashedPass,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := db.Create(&user).Error; err != nil {
		handleError(c, http.StatusInternalServerError, "Failed to create user", err)
		return
	}

	log.Printf("New user %s signed up from %s", user.Email, utils.GetRealClientIP(c))
	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    user,
	})
}

// Login verifies credentials and issues a bearer token
func Login(c *gin.Context) {
	var request models.LoginRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		handleError(c, http.StatusBadRequest, "Email and password are required", err)
		return
	}

	db := database.GetDB()

	var user models.User
	if err := db.Where("email = ?", request.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if !auth.CheckPassword(user.HashedPass, request.Password) {
		log.Printf("Failed login attempt for %s from %s", request.Email, utils.GetRealClientIP(c))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		handleError(c, http.StatusInternalServerError, "An error occurred during login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}
