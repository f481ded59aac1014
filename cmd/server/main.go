package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"taskping/internal/auth"
	"taskping/internal/database"
	"taskping/internal/handlers"
	"taskping/internal/scheduler"
	"taskping/internal/services"
	"taskping/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// This is our main function - the entry point of our application
func main() {
	// Load .env in development; production platforms provide the environment
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	// Initialize database
	if err := database.InitDB(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	db := store.New(database.GetDB())

	// Delivery channels
	pushChannel := services.NewPushService(db)
	emailChannel := services.NewEmailService()
	channels := []scheduler.Channel{pushChannel, emailChannel}

	// Scheduling engine
	registry := scheduler.NewRegistry()
	dispatcher := scheduler.NewDispatcher(db, db, db, channels)
	offsets := scheduler.DefaultOffsets()
	engine := scheduler.NewEngine(registry, dispatcher, offsets)
	defer engine.Shutdown()

	// Durability sweep: one catch-up pass for triggers missed while the
	// process was down, then a pass every minute
	sweep := scheduler.NewSweep(db, dispatcher, offsets)
	sweep.Run()
	if err := sweep.Start(); err != nil {
		log.Fatal("Failed to start reconciliation sweep:", err)
	}
	defer sweep.Stop()

	// Weekly class triggers recur, so restart recovery is re-registration
	timetableService := services.NewTimetableService(registry, dispatcher, db, db, emailChannel)
	if err := timetableService.RestoreAll(context.Background()); err != nil {
		log.Printf("Error: restoring timetable reminders: %v", err)
	}

	handlers.Init(engine, timetableService)

	// Initialize Gin router
	router := gin.Default()

	// Configure trusted proxies
	router.SetTrustedProxies([]string{"127.0.0.1"})
	router.Use(cors.Default())

	// Basic routes
	router.GET("/", handlers.HomeHandler)
	router.GET("/health", handlers.HealthHandler)

	// Auth routes (no auth required)
	router.POST("/api/auth/signup", handlers.Signup)
	router.POST("/api/auth/login", handlers.Login)

	// Protected routes (auth required)
	protected := router.Group("/api")
	protected.Use(auth.AuthMiddleware())
	{
		protected.GET("/tasks", handlers.GetTasks)
		protected.POST("/tasks", handlers.CreateTask)
		protected.PUT("/tasks/:id", handlers.UpdateTask)
		protected.DELETE("/tasks/:id", handlers.DeleteTask)

		protected.POST("/subscribe", handlers.AddSubscription)

		protected.GET("/timetables", handlers.GetTimetables)
		protected.POST("/timetables", handlers.UploadTimetable)
		protected.PUT("/timetables/:id", handlers.UpdateTimetable)
		protected.DELETE("/timetables/:id", handlers.DeleteTimetable)
		protected.GET("/timetables/schedules", handlers.GetActiveSchedules)

		protected.GET("/notifications", handlers.GetNotifications)
		protected.PATCH("/notifications/:id/read", handlers.MarkNotificationRead)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start the server
	fmt.Printf("Server starting on port %s...\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
