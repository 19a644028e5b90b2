package models

import (
	"time"

	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

type Booking struct {
	gorm.Model
	RenterID        uint          `json:"renterId" gorm:"not null;index"`
	Renter          User          `json:"renter"`
	VehicleID       uint          `json:"vehicleId" gorm:"not null;index"`
	Vehicle         Vehicle       `json:"vehicle"`
	StartDate       time.Time     `json:"startDate" gorm:"not null"`
	EndDate         time.Time     `json:"endDate" gorm:"not null"`
	TotalDays       int           `json:"totalDays" gorm:"not null"`
	TotalAmount     float64       `json:"totalAmount" gorm:"not null"`
	Status          BookingStatus `json:"status" gorm:"not null;default:'PENDING';index"`
	ContactPhone    string        `json:"contactPhone" gorm:"not null"`
	PickupTime      string        `json:"pickupTime"`
	SpecialRequests string        `json:"specialRequests"`
}
