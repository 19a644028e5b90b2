package database

import (
	"github.com/wheelio/wheelio-backend/internal/models"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.Vehicle{},
		&models.Booking{},
		&models.KYC{},
		&models.Payment{},
		&models.Feedback{},
		&models.OTP{},
	)
	if err != nil {
		return err
	}

	// Keep the role column constrained to known values
	if db.Migrator().HasTable(&models.User{}) {
		db.Exec(`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_role_check`)
		db.Exec(`ALTER TABLE users ADD CONSTRAINT users_role_check CHECK (role IN ('USER', 'OWNER', 'ADMIN'))`)
	}

	// Same for vehicle lifecycle enums
	if db.Migrator().HasTable(&models.Vehicle{}) {
		db.Exec(`ALTER TABLE vehicles DROP CONSTRAINT IF EXISTS vehicles_verification_status_check`)
		db.Exec(`ALTER TABLE vehicles ADD CONSTRAINT vehicles_verification_status_check
			CHECK (verification_status IN ('PENDING', 'ACCEPTED_FOR_PAYMENT', 'REJECTED', 'APPROVED'))`)
		db.Exec(`ALTER TABLE vehicles DROP CONSTRAINT IF EXISTS vehicles_payment_status_check`)
		db.Exec(`ALTER TABLE vehicles ADD CONSTRAINT vehicles_payment_status_check
			CHECK (payment_status IN ('UNPAID', 'PAID', 'FAILED'))`)
	}

	if db.Migrator().HasTable(&models.Booking{}) {
		db.Exec(`ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_status_check`)
		db.Exec(`ALTER TABLE bookings ADD CONSTRAINT bookings_status_check
			CHECK (status IN ('PENDING', 'CONFIRMED', 'CANCELLED', 'COMPLETED'))`)
		// The overlap query scans by vehicle and date range constantly
		db.Exec(`CREATE INDEX IF NOT EXISTS idx_bookings_vehicle_dates ON bookings (vehicle_id, start_date, end_date)`)
	}

	// Seed the admin account if configured and missing
	return seedAdmin(db)
}

func seedAdmin(db *gorm.DB) error {
	adminEmail := "admin@wheelio.local"
	var count int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count > 0 {
		return nil
	}

	admin := models.User{
		Username:   "admin",
		Email:      adminEmail,
		Password:   "changeme-admin",
		Role:       models.RoleAdmin,
		IsVerified: true,
	}
	if err := admin.HashPassword(); err != nil {
		return err
	}
	return db.Create(&admin).Error
}
