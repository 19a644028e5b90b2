package models

import (
	"time"

	"gorm.io/gorm"
)

type VerificationStatus string

const (
	VerificationPending            VerificationStatus = "PENDING"
	VerificationAcceptedForPayment VerificationStatus = "ACCEPTED_FOR_PAYMENT"
	VerificationRejected           VerificationStatus = "REJECTED"
	VerificationApproved           VerificationStatus = "APPROVED"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
	PaymentFailed PaymentStatus = "FAILED"
)

type Vehicle struct {
	gorm.Model
	OwnerID            uint               `json:"ownerId" gorm:"not null;index"`
	Owner              User               `json:"owner"`
	Brand              string             `json:"brand" gorm:"not null"`
	VehicleModel       string             `json:"model" gorm:"column:vehicle_model;not null"`
	Year               int                `json:"year" gorm:"not null"`
	Type               string             `json:"type" gorm:"not null"`
	Transmission       string             `json:"transmission"`
	FuelType           string             `json:"fuelType"`
	Color              string             `json:"color"`
	Seats              int                `json:"seats"`
	RegistrationNumber string             `json:"registrationNumber" gorm:"unique;not null"`
	PricePerDay        float64            `json:"pricePerDay" gorm:"not null"`
	PickupLocation     string             `json:"pickupLocation"`
	ImageURL           string             `json:"imageUrl"`
	Available          bool               `json:"available" gorm:"default:false"`
	VerificationStatus VerificationStatus `json:"verificationStatus" gorm:"not null;default:'PENDING';index"`
	PaymentStatus      PaymentStatus      `json:"paymentStatus" gorm:"not null;default:'UNPAID'"`
	VerificationFee    float64            `json:"verificationFee" gorm:"not null"`
	RejectionReason    *string            `json:"rejectionReason"`
	VerifiedAt         *time.Time         `json:"verifiedAt"`
	VerifiedBy         *uint              `json:"verifiedBy"`
	PaymentID          *string            `json:"paymentId"`
}
