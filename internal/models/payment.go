package models

import (
	"gorm.io/gorm"
)

type PaymentPurpose string

const (
	PaymentPurposeVerification PaymentPurpose = "vehicle_verification"
	PaymentPurposeBooking      PaymentPurpose = "booking"
)

type PaymentRecordStatus string

const (
	PaymentRecordInitiated PaymentRecordStatus = "initiated"
	PaymentRecordCompleted PaymentRecordStatus = "completed"
	PaymentRecordFailed    PaymentRecordStatus = "failed"
)

// Payment correlates a gateway-initiated charge with its eventual callback.
// Reference is the gateway's pidx; OrderID is our side of the correlation.
type Payment struct {
	gorm.Model
	Reference     string              `json:"reference" gorm:"unique;not null"`
	OrderID       string              `json:"orderId" gorm:"unique;not null"`
	UserID        uint                `json:"userId" gorm:"not null;index"`
	Purpose       PaymentPurpose      `json:"purpose" gorm:"not null"`
	Amount        float64             `json:"amount" gorm:"not null"`
	Status        PaymentRecordStatus `json:"status" gorm:"not null;default:'initiated'"`
	VehicleID     *uint               `json:"vehicleId"`
	BookingParams string              `json:"-" gorm:"type:text"` // JSON, booking purpose only
}
