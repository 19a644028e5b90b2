package availability

import (
	"errors"
	"math"
	"time"

	"github.com/wheelio/wheelio-backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrInvalidRange = errors.New("start date must be before end date")
	ErrPastStart    = errors.New("start date must not be in the past")
)

// Overlaps reports whether the candidate range [start, end] conflicts with an
// existing booking [bStart, bEnd]. The test is boundary-inclusive on both
// ends: a booking ending exactly when another starts is a conflict, so
// same-day handoffs are disallowed.
func Overlaps(bStart, bEnd, start, end time.Time) bool {
	if !bStart.After(start) && !start.After(bEnd) {
		return true
	}
	if !bStart.After(end) && !end.After(bEnd) {
		return true
	}
	if !start.After(bStart) && !end.Before(bEnd) {
		return true
	}
	return false
}

// Days returns the chargeable day count for a range, rounding partial days up.
func Days(start, end time.Time) int {
	d := end.Sub(start).Hours() / 24
	days := int(math.Ceil(d))
	if days < 1 {
		days = 1
	}
	return days
}

// ValidateRange checks the basic preconditions on a candidate booking range.
func ValidateRange(start, end, now time.Time) error {
	if !start.Before(end) {
		return ErrInvalidRange
	}
	// Compare at day granularity so a booking starting later today is fine.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if start.Before(today) {
		return ErrPastStart
	}
	return nil
}

// ConflictingBookings returns the PENDING/CONFIRMED bookings on a vehicle
// whose ranges overlap the candidate range. This is the SQL mirror of
// Overlaps and must stay in sync with it.
func ConflictingBookings(db *gorm.DB, vehicleID uint, start, end time.Time) ([]models.Booking, error) {
	var conflicts []models.Booking
	err := db.Where("vehicle_id = ? AND status IN ?", vehicleID,
		[]models.BookingStatus{models.BookingStatusPending, models.BookingStatusConfirmed}).
		Where("(start_date <= ? AND ? <= end_date) OR (start_date <= ? AND ? <= end_date) OR (? <= start_date AND ? >= end_date)",
			start, start, end, end, start, end).
		Order("start_date ASC").
		Find(&conflicts).Error
	if err != nil {
		return nil, err
	}
	return conflicts, nil
}
