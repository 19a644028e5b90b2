package handlers

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wheelio/wheelio-backend/internal/availability"
	"github.com/wheelio/wheelio-backend/internal/models"
	"github.com/wheelio/wheelio-backend/internal/services"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// verificationFee returns the fixed listing fee charged per vehicle.
func verificationFee() float64 {
	if v := os.Getenv("VERIFICATION_FEE"); v != "" {
		if fee, err := strconv.ParseFloat(v, 64); err == nil && fee > 0 {
			return fee
		}
	}
	return 500
}

// CreateVehicle handles the submission of a new vehicle listing by an owner.
// The listing starts PENDING/UNPAID and is not bookable until approved.
func CreateVehicle(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		role := c.GetString("role")

		if role != string(models.RoleOwner) {
			c.JSON(403, gin.H{"error": "Only verified owners can list vehicles"})
			return
		}

		var input struct {
			Brand              string  `json:"brand" binding:"required"`
			Model              string  `json:"model" binding:"required"`
			Year               int     `json:"year" binding:"required"`
			Type               string  `json:"type" binding:"required"`
			Transmission       string  `json:"transmission"`
			FuelType           string  `json:"fuelType"`
			Color              string  `json:"color"`
			Seats              int     `json:"seats"`
			RegistrationNumber string  `json:"registrationNumber" binding:"required"`
			PricePerDay        float64 `json:"pricePerDay" binding:"required,gt=0"`
			PickupLocation     string  `json:"pickupLocation" binding:"required"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if input.Year < 1950 || input.Year > time.Now().Year()+1 {
			c.JSON(400, gin.H{"error": "Invalid vehicle year"})
			return
		}

		vehicle := models.Vehicle{
			OwnerID:            userId,
			Brand:              input.Brand,
			VehicleModel:       input.Model,
			Year:               input.Year,
			Type:               input.Type,
			Transmission:       input.Transmission,
			FuelType:           input.FuelType,
			Color:              input.Color,
			Seats:              input.Seats,
			RegistrationNumber: input.RegistrationNumber,
			PricePerDay:        input.PricePerDay,
			PickupLocation:     input.PickupLocation,
			Available:          false,
			VerificationStatus: models.VerificationPending,
			PaymentStatus:      models.PaymentUnpaid,
			VerificationFee:    verificationFee(),
		}

		if err := db.Create(&vehicle).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to create vehicle. Registration number may already be listed."})
			return
		}

		c.JSON(201, vehicle)
	}
}

// UploadVehicleImage attaches a photo to one of the owner's vehicles
func UploadVehicleImage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		vehicleId := c.Param("id")

		var vehicle models.Vehicle
		if err := db.First(&vehicle, vehicleId).Error; err != nil {
			c.JSON(404, gin.H{"error": "Vehicle not found"})
			return
		}

		if vehicle.OwnerID != userId {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}

		file, err := c.FormFile("image")
		if err != nil {
			c.JSON(400, gin.H{"error": "Image file is required"})
			return
		}

		imagePath, err := services.UploadImage(file, services.FolderVehicles)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to upload image"})
			return
		}

		// Drop the previous photo, if any
		if vehicle.ImageURL != "" {
			if err := services.DeleteImage(vehicle.ImageURL); err != nil {
				log.Printf("Failed to delete old vehicle image: %v", err)
			}
		}

		vehicle.ImageURL = services.GetImageURL(imagePath)
		if err := db.Save(&vehicle).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to save vehicle image"})
			return
		}

		c.JSON(200, gin.H{"imageUrl": vehicle.ImageURL})
	}
}

// ListAvailableVehicles retrieves vehicles eligible for booking, with optional
// filters. Only APPROVED vehicles flagged available are ever returned; when a
// date range is supplied, vehicles with conflicting bookings are dropped.
func ListAvailableVehicles(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleType := c.Query("type")
		location := c.Query("location")
		startStr := c.Query("startDate")
		endStr := c.Query("endDate")

		query := db.Preload("Owner").
			Where("available = ? AND verification_status = ?", true, models.VerificationApproved).
			Order("created_at DESC, id DESC")

		if vehicleType != "" {
			query = query.Where("type = ?", vehicleType)
		}
		if location != "" {
			query = query.Where("LOWER(pickup_location) LIKE LOWER(?)", "%"+location+"%")
		}

		var vehicles []models.Vehicle
		if err := query.Find(&vehicles).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch vehicles"})
			return
		}

		// Date-range filter drops vehicles with conflicting bookings
		if startStr != "" && endStr != "" {
			start, err1 := time.Parse(dateLayout, startStr)
			end, err2 := time.Parse(dateLayout, endStr)
			if err1 != nil || err2 != nil {
				c.JSON(400, gin.H{"error": "Invalid date format, expected YYYY-MM-DD"})
				return
			}
			if err := availability.ValidateRange(start, end, time.Now()); err != nil {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}

			filtered := make([]models.Vehicle, 0, len(vehicles))
			for _, v := range vehicles {
				conflicts, err := availability.ConflictingBookings(db, v.ID, start, end)
				if err != nil {
					c.JSON(500, gin.H{"error": "Failed to check availability"})
					return
				}
				if len(conflicts) == 0 {
					filtered = append(filtered, v)
				}
			}
			vehicles = filtered
		}

		c.JSON(200, vehicles)
	}
}

// CheckAvailability answers whether a vehicle can be booked for a date range,
// returning the conflicting bookings when it cannot. Read-only; results are
// cached briefly in Redis.
func CheckAvailability(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicleIdStr := c.Query("vehicleId")
		startStr := c.Query("startDate")
		endStr := c.Query("endDate")

		if vehicleIdStr == "" || startStr == "" || endStr == "" {
			c.JSON(400, gin.H{"error": "vehicleId, startDate and endDate are required"})
			return
		}

		vehicleId, err := strconv.ParseUint(vehicleIdStr, 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid vehicle ID"})
			return
		}

		start, err1 := time.Parse(dateLayout, startStr)
		end, err2 := time.Parse(dateLayout, endStr)
		if err1 != nil || err2 != nil {
			c.JSON(400, gin.H{"error": "Invalid date format, expected YYYY-MM-DD"})
			return
		}

		if err := availability.ValidateRange(start, end, time.Now()); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		ctx := context.Background()
		if cached, err := services.GetCachedAvailability(ctx, uint(vehicleId), startStr, endStr); err == nil && cached != nil {
			c.JSON(200, cached)
			return
		}

		var vehicle models.Vehicle
		if err := db.First(&vehicle, vehicleId).Error; err != nil {
			c.JSON(404, gin.H{"error": "Vehicle not found"})
			return
		}

		conflicts, err := availability.ConflictingBookings(db, vehicle.ID, start, end)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to check availability"})
			return
		}

		conflictList := make([]gin.H, 0, len(conflicts))
		for _, b := range conflicts {
			conflictList = append(conflictList, gin.H{
				"startDate": b.StartDate.Format(dateLayout),
				"endDate":   b.EndDate.Format(dateLayout),
				"status":    b.Status,
			})
		}

		response := gin.H{
			"available":           len(conflicts) == 0 && vehicle.Available && vehicle.VerificationStatus == models.VerificationApproved,
			"conflictingBookings": conflictList,
		}

		if err := services.CacheAvailability(ctx, vehicle.ID, startStr, endStr, response); err != nil {
			log.Printf("Failed to cache availability result: %v", err)
		}

		c.JSON(200, response)
	}
}

// GetVehicle retrieves a single vehicle listing
func GetVehicle(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var vehicle models.Vehicle
		if err := db.Preload("Owner").First(&vehicle, c.Param("id")).Error; err != nil {
			c.JSON(404, gin.H{"error": "Vehicle not found"})
			return
		}
		c.JSON(200, vehicle)
	}
}

// GetOwnerVehicles retrieves all vehicles listed by the authenticated owner
func GetOwnerVehicles(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var vehicles []models.Vehicle
		if err := db.Where("owner_id = ?", userId).
			Order("created_at DESC, id DESC").
			Find(&vehicles).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch vehicles"})
			return
		}

		c.JSON(200, vehicles)
	}
}

// UpdateVehicle updates the descriptive and commercial attributes of a
// vehicle. Lifecycle fields (statuses, fee, availability) are managed by the
// verification workflow and cannot be set here.
func UpdateVehicle(db *gorm.DB) gin.HandlerFunc {
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

		var input struct {
			PricePerDay    *float64 `json:"pricePerDay"`
			PickupLocation *string  `json:"pickupLocation"`
			Color          *string  `json:"color"`
			Transmission   *string  `json:"transmission"`
			FuelType       *string  `json:"fuelType"`
			Seats          *int     `json:"seats"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		if input.PricePerDay != nil {
			if *input.PricePerDay <= 0 {
				c.JSON(400, gin.H{"error": "Price per day must be positive"})
				return
			}
			vehicle.PricePerDay = *input.PricePerDay
		}
		if input.PickupLocation != nil {
			vehicle.PickupLocation = *input.PickupLocation
		}
		if input.Color != nil {
			vehicle.Color = *input.Color
		}
		if input.Transmission != nil {
			vehicle.Transmission = *input.Transmission
		}
		if input.FuelType != nil {
			vehicle.FuelType = *input.FuelType
		}
		if input.Seats != nil {
			vehicle.Seats = *input.Seats
		}

		if err := db.Save(&vehicle).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to update vehicle"})
			return
		}

		c.JSON(200, vehicle)
	}
}

// DeleteVehicle removes a vehicle listing along with its uploaded documents
func DeleteVehicle(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		role := c.GetString("role")

		var vehicle models.Vehicle
		if err := db.First(&vehicle, c.Param("id")).Error; err != nil {
			c.JSON(404, gin.H{"error": "Vehicle not found"})
			return
		}

		if vehicle.OwnerID != userId && role != string(models.RoleAdmin) {
			c.JSON(403, gin.H{"error": "Unauthorized"})
			return
		}

		// Refuse to delete a vehicle with live bookings
		var active int64
		db.Model(&models.Booking{}).
			Where("vehicle_id = ? AND status IN ?", vehicle.ID,
				[]models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed}).
			Count(&active)
		if active > 0 {
			c.JSON(409, gin.H{"error": "Vehicle has active bookings and cannot be deleted"})
			return
		}

		if vehicle.ImageURL != "" {
			if err := services.DeleteImage(vehicle.ImageURL); err != nil {
				log.Printf("Failed to delete vehicle image: %v", err)
			}
		}

		if err := db.Delete(&vehicle).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to delete vehicle"})
			return
		}

		c.JSON(200, gin.H{"message": "Vehicle deleted successfully"})
	}
}
