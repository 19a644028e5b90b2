package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wheelio/wheelio-backend/internal/availability"
	"github.com/wheelio/wheelio-backend/internal/models"
	"github.com/wheelio/wheelio-backend/internal/services"
	"github.com/wheelio/wheelio-backend/pkg/utils"
	"gorm.io/gorm"
)

// amountTolerance absorbs gateway-side rounding when comparing a reported
// amount against ours. One currency unit.
const amountTolerance = 1.0

// InitiateVerificationPayment starts the listing-fee payment for a vehicle.
// Only meaningful after an admin has accepted the listing for payment.
func InitiateVerificationPayment(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var vehicle models.Vehicle
		if err := db.First(&vehicle, c.Param("id")).Error; err != nil {
			c.JSON(404, gin.H{"error": "Vehicle not found"})
			return
		}

		if vehicle.OwnerID != userId {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}

		if vehicle.VerificationStatus != models.VerificationAcceptedForPayment {
			c.JSON(400, gin.H{"error": "Vehicle is not accepted for payment"})
			return
		}

		if vehicle.PaymentStatus == models.PaymentPaid {
			c.JSON(409, gin.H{"error": "Verification fee has already been paid"})
			return
		}

		if err := services.ValidateKhaltiAmount(vehicle.VerificationFee); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		orderID := uuid.New().String()
		orderName := fmt.Sprintf("Listing fee: %s %s", vehicle.Brand, vehicle.VehicleModel)

		initResp, err := services.InitiateKhaltiPayment(vehicle.VerificationFee, orderID, orderName)
		if err != nil {
			c.JSON(502, gin.H{"error": "Payment gateway error: " + err.Error()})
			return
		}

		payment := models.Payment{
			Reference: initResp.Pidx,
			OrderID:   orderID,
			UserID:    userId,
			Purpose:   models.PaymentPurposeVerification,
			Amount:    vehicle.VerificationFee,
			Status:    models.PaymentRecordInitiated,
			VehicleID: &vehicle.ID,
		}

		if err := db.Create(&payment).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to record payment"})
			return
		}

		// Persist the reference on the vehicle before handing the payer off.
		// A failed prior attempt resets to UNPAID here (the retry path).
		vehicle.PaymentID = &payment.Reference
		vehicle.PaymentStatus = models.PaymentUnpaid
		if err := db.Save(&vehicle).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to record payment reference"})
			return
		}

		c.JSON(200, gin.H{
			"paymentUrl": initResp.PaymentURL,
			"reference":  initResp.Pidx,
			"amount":     vehicle.VerificationFee,
		})
	}
}

// InitiateBookingPayment starts a pay-first booking: the renter pays the
// rental total up-front and the booking is created when the gateway confirms.
// The booking parameters ride along on the payment record.
func InitiateBookingPayment(db *gorm.DB) gin.HandlerFunc {
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

		var vehicle models.Vehicle
		if err := db.First(&vehicle, input.VehicleID).Error; err != nil {
			c.JSON(404, gin.H{"error": "Vehicle not found"})
			return
		}

		if !vehicle.Available || vehicle.VerificationStatus != models.VerificationApproved {
			c.JSON(400, gin.H{"error": "Vehicle is not available for booking"})
			return
		}

		// Advisory check; the authoritative one runs when the callback
		// creates the booking.
		conflicts, err := availability.ConflictingBookings(db, vehicle.ID, input.StartDate, input.EndDate)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to check availability"})
			return
		}
		if len(conflicts) > 0 {
			c.JSON(409, gin.H{"error": "Vehicle is already booked for the requested dates"})
			return
		}

		totalDays := availability.Days(input.StartDate, input.EndDate)
		amount := float64(totalDays) * vehicle.PricePerDay
		input.TotalDays = totalDays
		input.TotalAmount = amount

		if err := services.ValidateKhaltiAmount(amount); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		params, err := json.Marshal(input)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to encode booking parameters"})
			return
		}

		orderID := uuid.New().String()
		orderName := fmt.Sprintf("Booking: %s %s (%d days)", vehicle.Brand, vehicle.VehicleModel, totalDays)

		initResp, err := services.InitiateKhaltiPayment(amount, orderID, orderName)
		if err != nil {
			c.JSON(502, gin.H{"error": "Payment gateway error: " + err.Error()})
			return
		}

		payment := models.Payment{
			Reference:     initResp.Pidx,
			OrderID:       orderID,
			UserID:        userId,
			Purpose:       models.PaymentPurposeBooking,
			Amount:        amount,
			Status:        models.PaymentRecordInitiated,
			VehicleID:     &vehicle.ID,
			BookingParams: string(params),
		}

		if err := db.Create(&payment).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to record payment"})
			return
		}

		c.JSON(200, gin.H{
			"paymentUrl": initResp.PaymentURL,
			"reference":  initResp.Pidx,
			"amount":     amount,
		})
	}
}

// PaymentCallback is the gateway return endpoint. The gateway may redirect or
// retry more than once for the same reference, so confirmation is idempotent:
// an already-completed payment reports success without re-applying effects.
func PaymentCallback(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		pidx := c.Query("pidx")
		if pidx == "" {
			c.JSON(400, gin.H{"error": "pidx is required"})
			return
		}

		var payment models.Payment
		if err := db.Where("reference = ?", pidx).First(&payment).Error; err != nil {
			c.JSON(404, gin.H{"error": "Unknown payment reference"})
			return
		}

		if payment.Status == models.PaymentRecordCompleted {
			c.JSON(200, gin.H{"message": "Payment already confirmed", "reference": pidx})
			return
		}

		// The callback's own status/amount parameters are untrusted; the
		// lookup result is authoritative.
		lookup, err := services.LookupKhaltiPayment(pidx)
		if err != nil {
			c.JSON(502, gin.H{"error": "Payment gateway error: " + err.Error()})
			return
		}

		// "Pending"/"Initiated" are transient: the gateway may still settle,
		// so the payment stays initiated and a later callback can succeed.
		if lookup.Status == "Pending" || lookup.Status == "Initiated" {
			c.JSON(202, gin.H{"message": "Payment is still processing", "status": lookup.Status})
			return
		}

		// Anything else (Expired, User canceled, Refunded) is terminal.
		if lookup.Status != "Completed" {
			log.Printf("Payment %s not completed at gateway: %s", pidx, lookup.Status)
			markPaymentFailed(db, &payment)
			c.JSON(400, gin.H{"error": "Payment was not completed", "status": lookup.Status})
			return
		}

		if math.Abs(lookup.TotalAmount-payment.Amount) > amountTolerance {
			log.Printf("Payment %s amount mismatch: gateway %.2f, expected %.2f",
				pidx, lookup.TotalAmount, payment.Amount)
			markPaymentFailed(db, &payment)
			c.JSON(400, gin.H{"error": "Payment amount does not match the expected charge"})
			return
		}

		switch payment.Purpose {
		case models.PaymentPurposeVerification:
			confirmVerificationPayment(c, db, hub, &payment)
		case models.PaymentPurposeBooking:
			confirmBookingPayment(c, db, hub, &payment)
		default:
			c.JSON(500, gin.H{"error": "Unknown payment purpose"})
		}
	}
}

func markPaymentFailed(db *gorm.DB, payment *models.Payment) {
	payment.Status = models.PaymentRecordFailed
	if err := db.Save(payment).Error; err != nil {
		log.Printf("Failed to mark payment %s failed: %v", payment.Reference, err)
	}
	if payment.Purpose == models.PaymentPurposeVerification && payment.VehicleID != nil {
		if err := db.Model(&models.Vehicle{}).Where("id = ?", *payment.VehicleID).
			Update("payment_status", models.PaymentFailed).Error; err != nil {
			log.Printf("Failed to mark vehicle %d payment failed: %v", *payment.VehicleID, err)
		}
	}
}

// confirmVerificationPayment marks the vehicle's listing fee as paid. It does
// NOT approve the listing; approval stays a distinct admin action.
func confirmVerificationPayment(c *gin.Context, db *gorm.DB, hub *services.Hub, payment *models.Payment) {
	var vehicle models.Vehicle
	if err := db.First(&vehicle, *payment.VehicleID).Error; err != nil {
		c.JSON(404, gin.H{"error": "Vehicle not found"})
		return
	}

	// Already PAID means a retried callback; success, no double-apply.
	if vehicle.PaymentStatus != models.PaymentPaid {
		vehicle.PaymentStatus = models.PaymentPaid
		if err := db.Save(&vehicle).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to record payment"})
			return
		}
	}

	payment.Status = models.PaymentRecordCompleted
	if err := db.Save(payment).Error; err != nil {
		c.JSON(500, gin.H{"error": "Failed to record payment"})
		return
	}

	finishPaymentNotifications(db, hub, payment)

	c.JSON(200, gin.H{
		"message":   "Verification fee paid. The listing now awaits admin approval.",
		"reference": payment.Reference,
	})
}

// confirmBookingPayment creates the booking the payment was initiated for.
// If the booking can no longer be created (the dates were taken while the
// payer was at the gateway), the captured payment is reported rather than
// silently lost.
func confirmBookingPayment(c *gin.Context, db *gorm.DB, hub *services.Hub, payment *models.Payment) {
	var req BookingRequest
	if err := json.Unmarshal([]byte(payment.BookingParams), &req); err != nil {
		c.JSON(500, gin.H{"error": "Failed to decode booking parameters"})
		return
	}

	var booking *models.Booking
	err := db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		booking, txErr = createBookingInTx(tx, payment.UserID, req)
		if txErr != nil {
			return txErr
		}
		payment.Status = models.PaymentRecordCompleted
		return tx.Save(payment).Error
	})

	if errors.Is(err, errBookingConflict) || errors.Is(err, errVehicleUnavailable) {
		// Payment captured but booking impossible: record the completion and
		// surface a warning instead of dropping the money on the floor.
		payment.Status = models.PaymentRecordCompleted
		if saveErr := db.Save(payment).Error; saveErr != nil {
			log.Printf("Failed to record orphaned payment %s: %v", payment.Reference, saveErr)
		}
		log.Printf("Payment %s captured but booking not created: %v", payment.Reference, err)
		c.JSON(200, gin.H{
			"warning":   "Payment was captured but the booking could not be created. Support will follow up with a refund.",
			"reference": payment.Reference,
		})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to create booking"})
		return
	}

	if err := services.InvalidateAvailability(context.Background(), booking.VehicleID); err != nil {
		log.Printf("Failed to invalidate availability cache: %v", err)
	}

	finishPaymentNotifications(db, hub, payment)
	go notifyOwnerOfBooking(db, hub, booking)

	c.JSON(201, gin.H{
		"message":   "Payment confirmed and booking created",
		"reference": payment.Reference,
		"booking":   booking,
	})
}

func finishPaymentNotifications(db *gorm.DB, hub *services.Hub, payment *models.Payment) {
	if hub != nil {
		hub.SendPaymentConfirmed(payment.UserID, services.PaymentConfirmed{
			Reference: payment.Reference,
			Purpose:   string(payment.Purpose),
			Amount:    payment.Amount,
		})
	}

	go func() {
		var user models.User
		if err := db.First(&user, payment.UserID).Error; err != nil {
			log.Printf("Failed to load user %d for payment receipt: %v", payment.UserID, err)
			return
		}
		if err := utils.SendPaymentReceiptEmail(user.Email, payment.Amount,
			payment.Reference, string(payment.Purpose)); err != nil {
			log.Printf("Failed to send payment receipt: %v", err)
		}
	}()
}
