package verification

import (
	"errors"
	"strings"
	"time"

	"github.com/wheelio/wheelio-backend/internal/models"
)

var (
	ErrInvalidStatus      = errors.New("invalid verification status")
	ErrInvalidTransition  = errors.New("verification status transition not allowed")
	ErrPreconditionFailed = errors.New("vehicle must be paid before approval")
	ErrReasonRequired     = errors.New("rejection reason is required")
)

// allowed maps each verification status to the statuses an admin may move it to.
// APPROVED is terminal.
var allowed = map[models.VerificationStatus][]models.VerificationStatus{
	models.VerificationPending:            {models.VerificationAcceptedForPayment, models.VerificationRejected},
	models.VerificationAcceptedForPayment: {models.VerificationApproved, models.VerificationRejected},
	models.VerificationRejected:           {models.VerificationAcceptedForPayment},
	models.VerificationApproved:           {},
}

// CanTransition reports whether from -> to is an allowed admin transition.
func CanTransition(from, to models.VerificationStatus) bool {
	next, ok := allowed[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Transition applies an admin review decision to a vehicle, enforcing the
// guard table, and records who made the decision. The caller persists the
// vehicle afterwards; on error the vehicle is left untouched.
func Transition(v *models.Vehicle, target models.VerificationStatus, adminID uint, reason string, now time.Time) error {
	switch target {
	case models.VerificationPending, models.VerificationAcceptedForPayment,
		models.VerificationRejected, models.VerificationApproved:
	default:
		return ErrInvalidStatus
	}

	if !CanTransition(v.VerificationStatus, target) {
		return ErrInvalidTransition
	}

	switch target {
	case models.VerificationApproved:
		if v.PaymentStatus != models.PaymentPaid {
			return ErrPreconditionFailed
		}
		v.VerificationStatus = target
		v.Available = true
		t := now
		v.VerifiedAt = &t

	case models.VerificationRejected:
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return ErrReasonRequired
		}
		v.VerificationStatus = target
		v.RejectionReason = &reason
		v.Available = false

	case models.VerificationAcceptedForPayment:
		v.VerificationStatus = target
		v.RejectionReason = nil
	}

	v.VerifiedBy = &adminID
	return nil
}
