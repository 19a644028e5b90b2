package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/wheelio/wheelio-backend/internal/database"
	"github.com/wheelio/wheelio-backend/internal/handlers"
	"github.com/wheelio/wheelio-backend/internal/middleware"
	"github.com/wheelio/wheelio-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	// Initialize database with better error handling
	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Get underlying SQL DB instance
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Initialize Redis
	if err := services.InitRedis(); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}

	// Initialize Storage (S3 or local fallback)
	if err := services.InitStorage(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	// Initialize router
	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	// Serve locally stored uploads
	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "/app/uploads"
	}
	r.Static("/uploads", uploadDir)

	// Routes
	api := r.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
			auth.POST("/verify-email", handlers.VerifyEmail(db))
			auth.POST("/forgot-password", handlers.RequestPasswordReset(db))
			auth.POST("/verify-otp", handlers.VerifyOTP(db))
			auth.POST("/reset-password", handlers.ResetPassword(db))
		}

		// Payment gateway return endpoint; the gateway redirects here, so no auth
		api.GET("/payments/callback", handlers.PaymentCallback(db, hub))

		// Public browsing
		api.GET("/vehicles", handlers.ListAvailableVehicles(db))
		api.GET("/vehicles/availability", handlers.CheckAvailability(db))
		api.GET("/vehicles/:id", handlers.GetVehicle(db))
		api.GET("/vehicles/:id/feedback", handlers.GetVehicleFeedback(db))

		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			// User routes
			users := protected.Group("/users")
			{
				users.GET("/profile", handlers.GetProfile(db))
				users.PUT("/profile", handlers.UpdateProfile(db))
			}

			// KYC routes
			kyc := protected.Group("/kyc")
			{
				kyc.POST("", handlers.SubmitKYC(db))
				kyc.GET("/me", handlers.GetMyKYC(db))
			}

			// Owner vehicle management
			vehicles := protected.Group("/vehicles")
			{
				vehicles.POST("", handlers.CreateVehicle(db))
				vehicles.GET("/mine", handlers.GetOwnerVehicles(db))
				vehicles.PUT("/:id", handlers.UpdateVehicle(db))
				vehicles.DELETE("/:id", handlers.DeleteVehicle(db))
				vehicles.POST("/:id/image", handlers.UploadVehicleImage(db))
				vehicles.POST("/:id/payment",
					middleware.RateLimit("payment", 5, time.Minute),
					handlers.InitiateVerificationPayment(db))
			}

			// Booking routes
			bookings := protected.Group("/bookings")
			{
				bookings.POST("", handlers.CreateBooking(db, hub))
				bookings.POST("/payment",
					middleware.RateLimit("payment", 5, time.Minute),
					handlers.InitiateBookingPayment(db))
				bookings.GET("/:id", handlers.GetBooking(db))
				bookings.GET("/mine", handlers.GetRenterBookings(db))
				bookings.GET("/owner", handlers.GetOwnerBookings(db))
				bookings.PATCH("/:id/status", handlers.UpdateBookingStatus(db, hub))
				bookings.POST("/:id/cancel", handlers.CancelBooking(db))
				bookings.POST("/:id/complete", handlers.CompleteBooking(db))
				bookings.POST("/:id/feedback", handlers.SubmitFeedback(db))
			}

			// Admin routes
			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole("ADMIN"))
			{
				admin.GET("/dashboard", handlers.AdminDashboard(db))
				admin.GET("/kyc", handlers.ListKYCSubmissions(db))
				admin.PATCH("/kyc/:id", handlers.ReviewKYC(db))
				admin.GET("/vehicles", handlers.ListVehicleVerifications(db))
				admin.PATCH("/vehicles/:id/verification", handlers.UpdateVehicleVerification(db, hub))
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
