package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wheelio/wheelio-backend/internal/availability"
	"github.com/wheelio/wheelio-backend/internal/models"
	"github.com/wheelio/wheelio-backend/internal/services"
	"github.com/wheelio/wheelio-backend/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errVehicleUnavailable = errors.New("vehicle is not available for booking")
	errBookingConflict    = errors.New("vehicle is already booked for the requested dates")
)

// BookingRequest carries the parameters of a booking creation. It is also
// serialized onto a Payment row for the pay-first booking flow.
type BookingRequest struct {
	VehicleID       uint      `json:"vehicleId" binding:"required"`
	StartDate       time.Time `json:"startDate" binding:"required"`
	EndDate         time.Time `json:"endDate" binding:"required"`
	TotalDays       int       `json:"totalDays"`
	TotalAmount     float64   `json:"totalAmount"`
	ContactPhone    string    `json:"contactPhone" binding:"required"`
	PickupTime      string    `json:"pickupTime"`
	SpecialRequests string    `json:"specialRequests"`
}

// createBookingInTx runs the authoritative availability check and inserts the
// booking, all inside the caller's transaction. The vehicle row is locked
// first so two concurrent requests for overlapping dates serialize: the
// second re-runs the conflict query after the first commits its insert.
func createBookingInTx(tx *gorm.DB, renterID uint, req BookingRequest) (*models.Booking, error) {
	lockTx := tx
	if tx.Dialector.Name() == "postgres" {
		lockTx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var vehicle models.Vehicle
	if err := lockTx.First(&vehicle, req.VehicleID).Error; err != nil {
		return nil, err
	}

	if !vehicle.Available || vehicle.VerificationStatus != models.VerificationApproved {
		return nil, errVehicleUnavailable
	}

	conflicts, err := availability.ConflictingBookings(tx, vehicle.ID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, errBookingConflict
	}

	totalDays := req.TotalDays
	if totalDays <= 0 {
		totalDays = availability.Days(req.StartDate, req.EndDate)
	}
	totalAmount := req.TotalAmount
	if totalAmount <= 0 {
		totalAmount = float64(totalDays) * vehicle.PricePerDay
	}

	booking := models.Booking{
		RenterID:        renterID,
		VehicleID:       vehicle.ID,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		TotalDays:       totalDays,
		TotalAmount:     totalAmount,
		Status:          models.BookingStatusPending,
		ContactPhone:    req.ContactPhone,
		PickupTime:      req.PickupTime,
		SpecialRequests: req.SpecialRequests,
	}

	if err := tx.Create(&booking).Error; err != nil {
		return nil, err
	}

	return &booking, nil
}

// notifyOwnerOfBooking sends the new-booking email and websocket push to the
// vehicle owner. Best-effort: failures are logged, never surfaced.
func notifyOwnerOfBooking(db *gorm.DB, hub *services.Hub, booking *models.Booking) {
	var vehicle models.Vehicle
	if err := db.Preload("Owner").First(&vehicle, booking.VehicleID).Error; err != nil {
		log.Printf("Failed to load vehicle %d for booking notification: %v", booking.VehicleID, err)
		return
	}
	var renter models.User
	if err := db.First(&renter, booking.RenterID).Error; err != nil {
		log.Printf("Failed to load renter %d for booking notification: %v", booking.RenterID, err)
		return
	}

	vehicleName := vehicle.Brand + " " + vehicle.VehicleModel
	if err := utils.SendNewBookingNotificationEmailToOwner(
		vehicle.Owner.Email, vehicleName, renter.Username,
		booking.StartDate.Format(dateLayout), booking.EndDate.Format(dateLayout)); err != nil {
		log.Printf("Failed to send booking notification email: %v", err)
	}

	if hub != nil {
		hub.SendBookingRequested(vehicle.OwnerID, services.BookingRequested{
			BookingID:  booking.ID,
			VehicleID:  vehicle.ID,
			RenterName: renter.Username,
			StartDate:  booking.StartDate.Format(dateLayout),
			EndDate:    booking.EndDate.Format(dateLayout),
		})
	}
}

// CreateBooking handles a renter's booking request
func CreateBooking(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var input BookingRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if err := availability.ValidateRange(input.StartDate, input.EndDate, time.Now()); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var booking *models.Booking
		err := db.Transaction(func(tx *gorm.DB) error {
			var txErr error
			booking, txErr = createBookingInTx(tx, userId, input)
			return txErr
		})

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(404, gin.H{"error": "Vehicle not found"})
			return
		case errors.Is(err, errVehicleUnavailable):
			c.JSON(400, gin.H{"error": err.Error()})
			return
		case errors.Is(err, errBookingConflict):
			c.JSON(409, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(500, gin.H{"error": "Failed to create booking"})
			return
		}

		ctx := context.Background()
		if err := services.InvalidateAvailability(ctx, booking.VehicleID); err != nil {
			log.Printf("Failed to invalidate availability cache: %v", err)
		}

		go notifyOwnerOfBooking(db, hub, booking)

		c.JSON(201, booking)
	}
}

// GetBooking retrieves detailed booking information
func GetBooking(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var booking models.Booking
		if err := db.Preload("Vehicle").
			Preload("Vehicle.Owner").
			Preload("Renter").
			First(&booking, c.Param("id")).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}

		if booking.RenterID != userId && booking.Vehicle.OwnerID != userId {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}

		c.JSON(200, booking)
	}
}

// GetRenterBookings retrieves all bookings made by the authenticated renter
func GetRenterBookings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var bookings []models.Booking
		if err := db.Where("renter_id = ?", userId).
			Preload("Vehicle").
			Preload("Vehicle.Owner").
			Order("created_at DESC").
			Find(&bookings).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		c.JSON(200, bookings)
	}
}

// GetOwnerBookings retrieves all bookings on the owner's vehicles
func GetOwnerBookings(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var bookings []models.Booking
		if err := db.Joins("Vehicle").
			Where("\"Vehicle\".owner_id = ?", userId).
			Preload("Renter").
			Order("bookings.created_at DESC").
			Find(&bookings).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch bookings"})
			return
		}

		c.JSON(200, bookings)
	}
}

// UpdateBookingStatus lets the vehicle owner confirm or cancel a pending booking
func UpdateBookingStatus(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var input struct {
			Status string `json:"status" binding:"required,oneof=CONFIRMED CANCELLED"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var booking models.Booking
		if err := db.Preload("Vehicle").Preload("Renter").First(&booking, c.Param("id")).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}

		if booking.Vehicle.OwnerID != userId {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}

		if booking.Status != models.BookingStatusPending {
			c.JSON(400, gin.H{"error": "Only pending bookings can be updated"})
			return
		}

		booking.Status = models.BookingStatus(input.Status)
		if err := db.Save(&booking).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update booking status"})
			return
		}

		ctx := context.Background()
		if err := services.InvalidateAvailability(ctx, booking.VehicleID); err != nil {
			log.Printf("Failed to invalidate availability cache: %v", err)
		}
		if err := services.PublishBookingUpdate(ctx, booking.ID, input.Status, nil); err != nil {
			log.Printf("Failed to publish booking update: %v", err)
		}

		vehicleName := booking.Vehicle.Brand + " " + booking.Vehicle.VehicleModel
		go func() {
			var err error
			if booking.Status == models.BookingStatusConfirmed {
				err = utils.SendBookingConfirmedEmail(booking.Renter.Email, vehicleName, booking.Vehicle.PickupLocation)
			} else {
				err = utils.SendBookingCancelledEmail(booking.Renter.Email, vehicleName)
			}
			if err != nil {
				log.Printf("Failed to send booking decision email: %v", err)
			}
		}()

		if hub != nil {
			hub.SendBookingDecision(booking.RenterID, services.BookingDecision{
				BookingID: booking.ID,
				VehicleID: booking.VehicleID,
				Status:    input.Status,
			})
		}

		c.JSON(200, booking)
	}
}

// CancelBooking lets the renter cancel their own pending or confirmed booking
func CancelBooking(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var booking models.Booking
		if err := db.First(&booking, c.Param("id")).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}

		if booking.RenterID != userId {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}

		if booking.Status != models.BookingStatusPending && booking.Status != models.BookingStatusConfirmed {
			c.JSON(400, gin.H{"error": "Booking cannot be cancelled in its current state"})
			return
		}

		booking.Status = models.BookingStatusCancelled
		if err := db.Save(&booking).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to cancel booking"})
			return
		}

		if err := services.InvalidateAvailability(context.Background(), booking.VehicleID); err != nil {
			log.Printf("Failed to invalidate availability cache: %v", err)
		}

		c.JSON(200, booking)
	}
}

// CompleteBooking marks a confirmed booking as completed once its end date
// has passed. Only the vehicle owner can complete a booking.
func CompleteBooking(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var booking models.Booking
		if err := db.Preload("Vehicle").First(&booking, c.Param("id")).Error; err != nil {
			c.JSON(404, gin.H{"error": "Booking not found"})
			return
		}

		if booking.Vehicle.OwnerID != userId {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}

		if booking.Status != models.BookingStatusConfirmed {
			c.JSON(400, gin.H{"error": "Only confirmed bookings can be completed"})
			return
		}

		if time.Now().Before(booking.EndDate) {
			c.JSON(400, gin.H{"error": "Booking cannot be completed before its end date"})
			return
		}

		booking.Status = models.BookingStatusCompleted
		if err := db.Save(&booking).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to complete booking"})
			return
		}

		c.JSON(200, booking)
	}
}
