package models

import (
	"gorm.io/gorm"
)

// Feedback is a renter's one-time review of a completed booking.
type Feedback struct {
	gorm.Model
	BookingID     uint    `json:"bookingId" gorm:"unique;not null"`
	Booking       Booking `json:"booking"`
	VehicleRating int     `json:"vehicleRating" gorm:"not null"`
	ServiceRating int     `json:"serviceRating" gorm:"not null"`
	OverallRating int     `json:"overallRating" gorm:"not null"`
	VehicleReview string  `json:"vehicleReview"`
	ServiceReview string  `json:"serviceReview"`
	Recommend     bool    `json:"recommend"`
}
