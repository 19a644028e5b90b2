package models

import (
	"time"

	"gorm.io/gorm"
)

type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "PENDING"
	KYCStatusApproved KYCStatus = "APPROVED"
	KYCStatusRejected KYCStatus = "REJECTED"
)

type KYCTrack string

const (
	KYCTrackRenter KYCTrack = "renter"
	KYCTrackOwner  KYCTrack = "owner"
)

// KYC holds a user's identity verification submission. One record per user,
// created once and never resubmitted.
type KYC struct {
	gorm.Model
	UserID          uint       `json:"userId" gorm:"unique;not null"`
	User            User       `json:"user"`
	Track           KYCTrack   `json:"track" gorm:"not null"`
	FullName        string     `json:"fullName" gorm:"not null"`
	DateOfBirth     string     `json:"dateOfBirth"`
	Address         string     `json:"address"`
	DocumentType    string     `json:"documentType" gorm:"not null"`
	DocumentNumber  string     `json:"documentNumber" gorm:"not null"`
	DocumentURL     string     `json:"documentUrl"`
	LicenseNumber   string     `json:"licenseNumber"`
	LicenseURL      string     `json:"licenseUrl"`
	Status          KYCStatus  `json:"status" gorm:"not null;default:'PENDING';index"`
	RejectionReason *string    `json:"rejectionReason"`
	VerifiedAt      *time.Time `json:"verifiedAt"`
	ReviewedBy      *uint      `json:"reviewedBy"`
}

func (KYC) TableName() string {
	return "kyc_records"
}
