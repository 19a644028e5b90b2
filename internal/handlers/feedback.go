package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/wheelio/wheelio-backend/internal/models"
	"gorm.io/gorm"
)

// SubmitFeedback attaches a one-time review to a completed booking
func SubmitFeedback(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var input struct {
			VehicleRating int    `json:"vehicleRating" binding:"required,min=1,max=5"`
			ServiceRating int    `json:"serviceRating" binding:"required,min=1,max=5"`
			OverallRating int    `json:"overallRating" binding:"required,min=1,max=5"`
			VehicleReview string `json:"vehicleReview"`
			ServiceReview string `json:"serviceReview"`
			Recommend     bool   `json:"recommend"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var booking models.Booking
		if err := db.First(&booking, c.Param("id")).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}

		if booking.RenterID != userId {
			c.JSON(403, gin.H{"error": "Only the renter can leave feedback"})
			return
		}

		if booking.Status != models.BookingStatusCompleted {
			c.JSON(400, gin.H{"error": "Feedback can only be left on completed bookings"})
			return
		}

		var existing models.Feedback
		if err := db.Where("booking_id = ?", booking.ID).First(&existing).Error; err == nil {
			c.JSON(400, gin.H{"error": "Feedback already submitted for this booking"})
			return
		}

		feedback := models.Feedback{
			BookingID:     booking.ID,
			VehicleRating: input.VehicleRating,
			ServiceRating: input.ServiceRating,
			OverallRating: input.OverallRating,
			VehicleReview: input.VehicleReview,
			ServiceReview: input.ServiceReview,
			Recommend:     input.Recommend,
		}

		if err := db.Create(&feedback).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to submit feedback"})
			return
		}

		c.JSON(201, feedback)
	}
}

// GetVehicleFeedback lists the feedback left on a vehicle's completed bookings
func GetVehicleFeedback(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var feedback []models.Feedback
		if err := db.Joins("Booking").
			Where("\"Booking\".vehicle_id = ?", c.Param("id")).
			Order("feedbacks.created_at DESC").
			Find(&feedback).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch feedback"})
			return
		}

		c.JSON(200, feedback)
	}
}
