package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wheelio/wheelio-backend/internal/models"
	"github.com/wheelio/wheelio-backend/internal/services"
	"github.com/wheelio/wheelio-backend/internal/verification"
	"github.com/wheelio/wheelio-backend/pkg/utils"
	"gorm.io/gorm"
)

// ListVehicleVerifications lists vehicle listings for admin review,
// optionally filtered by verification status
func ListVehicleVerifications(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Preload("Owner").Order("created_at ASC")
		if status := c.Query("status"); status != "" {
			query = query.Where("verification_status = ?", status)
		}

		var vehicles []models.Vehicle
		if err := query.Find(&vehicles).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch vehicles"})
			return
		}

		c.JSON(200, vehicles)
	}
}

// UpdateVehicleVerification applies an admin's verification decision to a
// vehicle listing. The state machine enforces the guard table: approval
// requires the listing fee to be paid, rejection requires a reason.
func UpdateVehicleVerification(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminId := c.GetUint("userId")

		var input struct {
			Status          string `json:"status" binding:"required"`
			RejectionReason string `json:"rejectionReason"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var vehicle models.Vehicle
		if err := db.Preload("Owner").First(&vehicle, c.Param("id")).Error; err != nil {
			c.JSON(404, gin.H{"error": "Vehicle not found"})
			return
		}

		err := verification.Transition(&vehicle, models.VerificationStatus(input.Status),
			adminId, input.RejectionReason, time.Now())
		switch {
		case errors.Is(err, verification.ErrInvalidStatus):
			c.JSON(400, gin.H{"error": "Unknown verification status"})
			return
		case errors.Is(err, verification.ErrInvalidTransition):
			c.JSON(400, gin.H{"error": "Transition not allowed from the current status"})
			return
		case errors.Is(err, verification.ErrReasonRequired):
			c.JSON(400, gin.H{"error": "Rejection reason is required"})
			return
		case errors.Is(err, verification.ErrPreconditionFailed):
			c.JSON(400, gin.H{"error": "Verification fee must be paid before approval"})
			return
		case err != nil:
			c.JSON(500, gin.H{"error": "Failed to update verification status"})
			return
		}

		if err := db.Save(&vehicle).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update verification status"})
			return
		}

		vehicleName := vehicle.Brand + " " + vehicle.VehicleModel
		reason := ""
		if vehicle.RejectionReason != nil {
			reason = *vehicle.RejectionReason
		}

		go func() {
			if err := utils.SendVehicleVerificationEmail(vehicle.Owner.Email, vehicleName,
				string(vehicle.VerificationStatus), reason); err != nil {
				log.Printf("Failed to send verification decision email: %v", err)
			}
		}()

		if hub != nil {
			hub.SendVerificationDecision(vehicle.OwnerID, services.VerificationDecision{
				VehicleID:       vehicle.ID,
				Status:          string(vehicle.VerificationStatus),
				RejectionReason: reason,
			})
		}

		c.JSON(200, vehicle)
	}
}

// AdminDashboard returns counts the admin review screens are built on
func AdminDashboard(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var pendingKYC, pendingVehicles, awaitingPayment, activeBookings int64

		db.Model(&models.KYC{}).Where("status = ?", models.KYCStatusPending).Count(&pendingKYC)
		db.Model(&models.Vehicle{}).Where("verification_status = ?", models.VerificationPending).Count(&pendingVehicles)
		db.Model(&models.Vehicle{}).
			Where("verification_status = ? AND payment_status != ?",
				models.VerificationAcceptedForPayment, models.PaymentPaid).
			Count(&awaitingPayment)
		db.Model(&models.Booking{}).
			Where("status IN ?", []models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed}).
			Count(&activeBookings)

		c.JSON(200, gin.H{
			"pendingKyc":              pendingKYC,
			"pendingVehicles":         pendingVehicles,
			"vehiclesAwaitingPayment": awaitingPayment,
			"activeBookings":          activeBookings,
		})
	}
}
