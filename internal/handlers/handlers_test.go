package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wheelio/wheelio-backend/internal/middleware"
	"github.com/wheelio/wheelio-backend/internal/models"
	"github.com/wheelio/wheelio-backend/pkg/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Setenv("JWT_SECRET", "test-secret")
	os.Exit(m.Run())
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// A named in-memory database keeps the schema visible across the pool's
	// connections while isolating tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Vehicle{},
		&models.Booking{},
		&models.KYC{},
		&models.Payment{},
		&models.Feedback{},
		&models.OTP{},
	))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func setupRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	api := r.Group("/api")

	api.GET("/vehicles", ListAvailableVehicles(db))
	api.GET("/vehicles/availability", CheckAvailability(db))
	api.GET("/payments/callback", PaymentCallback(db, nil))

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.POST("/kyc", SubmitKYC(db))
		protected.POST("/vehicles", CreateVehicle(db))
		protected.POST("/vehicles/:id/payment", InitiateVerificationPayment(db))
		protected.POST("/bookings", CreateBooking(db, nil))
		protected.POST("/bookings/payment", InitiateBookingPayment(db))
		protected.PATCH("/bookings/:id/status", UpdateBookingStatus(db, nil))
		protected.POST("/bookings/:id/complete", CompleteBooking(db))
		protected.POST("/bookings/:id/feedback", SubmitFeedback(db))

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRole("ADMIN"))
		{
			admin.PATCH("/kyc/:id", ReviewKYC(db))
			admin.PATCH("/vehicles/:id/verification", UpdateVehicleVerification(db, nil))
		}
	}
	return r
}

func createUser(t *testing.T, db *gorm.DB, username string, role models.UserRole) (*models.User, string) {
	t.Helper()
	user := models.User{
		Username:   username,
		Email:      username + "@example.com",
		Password:   "password123",
		Role:       role,
		IsVerified: true,
	}
	require.NoError(t, user.HashPassword())
	require.NoError(t, db.Create(&user).Error)

	token, err := utils.GenerateToken(&user)
	require.NoError(t, err)
	return &user, token
}

func createApprovedVehicle(t *testing.T, db *gorm.DB, ownerID uint, reg string) *models.Vehicle {
	t.Helper()
	now := time.Now()
	vehicle := models.Vehicle{
		OwnerID:            ownerID,
		Brand:              "Toyota",
		VehicleModel:       "Corolla",
		Year:               2022,
		Type:               "sedan",
		RegistrationNumber: reg,
		PricePerDay:        50,
		PickupLocation:     "Kathmandu",
		Available:          true,
		VerificationStatus: models.VerificationApproved,
		PaymentStatus:      models.PaymentPaid,
		VerificationFee:    500,
		VerifiedAt:         &now,
	}
	require.NoError(t, db.Create(&vehicle).Error)
	return &vehicle
}

func doJSON(r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func futureDate(days int) string {
	base := time.Now().UTC().Truncate(24 * time.Hour)
	return base.AddDate(0, 0, days).Format(time.RFC3339)
}

func TestCreateBookingConflict(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	owner, _ := createUser(t, db, "owner1", models.RoleOwner)
	vehicle := createApprovedVehicle(t, db, owner.ID, "BA-1-1111")
	_, renterToken := createUser(t, db, "renter1", models.RoleUser)
	_, renter2Token := createUser(t, db, "renter2", models.RoleUser)

	makeBooking := func(token string, startDays, endDays int) *httptest.ResponseRecorder {
		return doJSON(r, "POST", "/api/bookings", token, gin.H{
			"vehicleId":    vehicle.ID,
			"startDate":    futureDate(startDays),
			"endDate":      futureDate(endDays),
			"contactPhone": "9800000000",
		})
	}

	// First booking succeeds
	w := makeBooking(renterToken, 10, 15)
	require.Equal(t, 201, w.Code, w.Body.String())

	var booking models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &booking))
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, 5, booking.TotalDays)
	assert.Equal(t, float64(5)*vehicle.PricePerDay, booking.TotalAmount)

	// Overlapping range rejected
	w = makeBooking(renter2Token, 12, 18)
	assert.Equal(t, 409, w.Code)

	// Touching at the boundary counts as a conflict
	w = makeBooking(renter2Token, 15, 20)
	assert.Equal(t, 409, w.Code)

	// Starting the day after the booking ends is fine
	w = makeBooking(renter2Token, 16, 20)
	assert.Equal(t, 201, w.Code, w.Body.String())
}

func TestCreateBookingVehicleUnavailable(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	owner, _ := createUser(t, db, "owner2", models.RoleOwner)
	_, renterToken := createUser(t, db, "renter3", models.RoleUser)

	vehicle := models.Vehicle{
		OwnerID:            owner.ID,
		Brand:              "Honda",
		VehicleModel:       "City",
		Year:               2021,
		Type:               "sedan",
		RegistrationNumber: "BA-2-2222",
		PricePerDay:        40,
		VerificationStatus: models.VerificationPending,
		PaymentStatus:      models.PaymentUnpaid,
		VerificationFee:    500,
	}
	require.NoError(t, db.Create(&vehicle).Error)

	w := doJSON(r, "POST", "/api/bookings", renterToken, gin.H{
		"vehicleId":    vehicle.ID,
		"startDate":    futureDate(5),
		"endDate":      futureDate(8),
		"contactPhone": "9800000000",
	})
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "not available")
}

func TestCreateBookingRejectsPastStart(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	owner, _ := createUser(t, db, "owner3", models.RoleOwner)
	vehicle := createApprovedVehicle(t, db, owner.ID, "BA-3-3333")
	_, renterToken := createUser(t, db, "renter4", models.RoleUser)

	w := doJSON(r, "POST", "/api/bookings", renterToken, gin.H{
		"vehicleId":    vehicle.ID,
		"startDate":    futureDate(-3),
		"endDate":      futureDate(2),
		"contactPhone": "9800000000",
	})
	assert.Equal(t, 400, w.Code)
}

func TestListAvailableVehiclesFiltersByDateRange(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	owner, _ := createUser(t, db, "owner4", models.RoleOwner)
	booked := createApprovedVehicle(t, db, owner.ID, "BA-4-4444")
	free := createApprovedVehicle(t, db, owner.ID, "BA-4-5555")

	// Unapproved vehicles never appear
	hidden := models.Vehicle{
		OwnerID:            owner.ID,
		Brand:              "Suzuki",
		VehicleModel:       "Swift",
		Year:               2020,
		Type:               "hatchback",
		RegistrationNumber: "BA-4-6666",
		PricePerDay:        30,
		VerificationStatus: models.VerificationAcceptedForPayment,
		VerificationFee:    500,
	}
	require.NoError(t, db.Create(&hidden).Error)

	renter, _ := createUser(t, db, "renter5", models.RoleUser)
	booking := models.Booking{
		RenterID:     renter.ID,
		VehicleID:    booked.ID,
		StartDate:    time.Now().AddDate(0, 0, 10),
		EndDate:      time.Now().AddDate(0, 0, 15),
		TotalDays:    5,
		TotalAmount:  250,
		Status:       models.BookingStatusConfirmed,
		ContactPhone: "9800000000",
	}
	require.NoError(t, db.Create(&booking).Error)

	start := time.Now().AddDate(0, 0, 12).Format("2006-01-02")
	end := time.Now().AddDate(0, 0, 14).Format("2006-01-02")

	w := doJSON(r, "GET", fmt.Sprintf("/api/vehicles?startDate=%s&endDate=%s", start, end), "", nil)
	require.Equal(t, 200, w.Code)

	var vehicles []models.Vehicle
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vehicles))
	require.Len(t, vehicles, 1)
	assert.Equal(t, free.ID, vehicles[0].ID)
}

func TestCheckAvailabilityReportsConflicts(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	owner, _ := createUser(t, db, "owner5", models.RoleOwner)
	vehicle := createApprovedVehicle(t, db, owner.ID, "BA-5-7777")
	renter, _ := createUser(t, db, "renter6", models.RoleUser)

	booking := models.Booking{
		RenterID:     renter.ID,
		VehicleID:    vehicle.ID,
		StartDate:    time.Now().AddDate(0, 0, 5),
		EndDate:      time.Now().AddDate(0, 0, 9),
		TotalDays:    4,
		TotalAmount:  200,
		Status:       models.BookingStatusPending,
		ContactPhone: "9800000000",
	}
	require.NoError(t, db.Create(&booking).Error)

	start := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	end := time.Now().AddDate(0, 0, 12).Format("2006-01-02")

	w := doJSON(r, "GET",
		fmt.Sprintf("/api/vehicles/availability?vehicleId=%d&startDate=%s&endDate=%s", vehicle.ID, start, end),
		"", nil)
	require.Equal(t, 200, w.Code)

	var resp struct {
		Available           bool                     `json:"available"`
		ConflictingBookings []map[string]interface{} `json:"conflictingBookings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Available)
	require.Len(t, resp.ConflictingBookings, 1)
	assert.Equal(t, string(models.BookingStatusPending), resp.ConflictingBookings[0]["status"])
}

func TestKYCDuplicateSubmissionBlocked(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	_, token := createUser(t, db, "kycuser1", models.RoleUser)

	form := url.Values{}
	form.Set("track", "owner")
	form.Set("fullName", "Kyc User")
	form.Set("documentType", "citizenship")
	form.Set("documentNumber", "12-34-56")

	submit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/kyc", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := submit()
	require.Equal(t, 201, w.Code, w.Body.String())

	// Any existing record blocks resubmission, even before review
	w = submit()
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")
}

func TestKYCApprovalPromotesOwner(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	user, _ := createUser(t, db, "kycuser2", models.RoleUser)
	_, adminToken := createUser(t, db, "admin1", models.RoleAdmin)

	kyc := models.KYC{
		UserID:         user.ID,
		Track:          models.KYCTrackOwner,
		FullName:       "Kyc User Two",
		DocumentType:   "citizenship",
		DocumentNumber: "11-22-33",
		Status:         models.KYCStatusPending,
	}
	require.NoError(t, db.Create(&kyc).Error)

	w := doJSON(r, "PATCH", fmt.Sprintf("/api/admin/kyc/%d", kyc.ID), adminToken, gin.H{
		"status": "APPROVED",
	})
	require.Equal(t, 200, w.Code, w.Body.String())

	var updated models.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, models.RoleOwner, updated.Role)

	var reviewed models.KYC
	require.NoError(t, db.First(&reviewed, kyc.ID).Error)
	assert.Equal(t, models.KYCStatusApproved, reviewed.Status)
	assert.NotNil(t, reviewed.VerifiedAt)

	// One-shot lifecycle: a second review attempt is refused
	w = doJSON(r, "PATCH", fmt.Sprintf("/api/admin/kyc/%d", kyc.ID), adminToken, gin.H{
		"status": "APPROVED",
	})
	assert.Equal(t, 400, w.Code)
}

func TestKYCRejectionRequiresReason(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	user, _ := createUser(t, db, "kycuser3", models.RoleUser)
	_, adminToken := createUser(t, db, "admin2", models.RoleAdmin)

	kyc := models.KYC{
		UserID:         user.ID,
		Track:          models.KYCTrackRenter,
		FullName:       "Kyc User Three",
		DocumentType:   "passport",
		DocumentNumber: "P123456",
		LicenseNumber:  "L-99",
		Status:         models.KYCStatusPending,
	}
	require.NoError(t, db.Create(&kyc).Error)

	w := doJSON(r, "PATCH", fmt.Sprintf("/api/admin/kyc/%d", kyc.ID), adminToken, gin.H{
		"status": "REJECTED",
	})
	assert.Equal(t, 400, w.Code)

	w = doJSON(r, "PATCH", fmt.Sprintf("/api/admin/kyc/%d", kyc.ID), adminToken, gin.H{
		"status":          "REJECTED",
		"rejectionReason": "document unreadable",
	})
	require.Equal(t, 200, w.Code, w.Body.String())

	var reviewed models.KYC
	require.NoError(t, db.First(&reviewed, kyc.ID).Error)
	require.NotNil(t, reviewed.RejectionReason)
	assert.Equal(t, "document unreadable", *reviewed.RejectionReason)

	// Rejection never touches the user's role
	var unchanged models.User
	require.NoError(t, db.First(&unchanged, user.ID).Error)
	assert.Equal(t, models.RoleUser, unchanged.Role)
}

func TestAdminApproveRequiresPaidFee(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	owner, _ := createUser(t, db, "owner6", models.RoleOwner)
	_, adminToken := createUser(t, db, "admin3", models.RoleAdmin)

	vehicle := models.Vehicle{
		OwnerID:            owner.ID,
		Brand:              "Hyundai",
		VehicleModel:       "i20",
		Year:               2023,
		Type:               "hatchback",
		RegistrationNumber: "BA-6-8888",
		PricePerDay:        45,
		VerificationStatus: models.VerificationAcceptedForPayment,
		PaymentStatus:      models.PaymentUnpaid,
		VerificationFee:    500,
	}
	require.NoError(t, db.Create(&vehicle).Error)

	w := doJSON(r, "PATCH", fmt.Sprintf("/api/admin/vehicles/%d/verification", vehicle.ID), adminToken, gin.H{
		"status": "APPROVED",
	})
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "fee must be paid")

	// Guard failure leaves the vehicle untouched
	var unchanged models.Vehicle
	require.NoError(t, db.First(&unchanged, vehicle.ID).Error)
	assert.Equal(t, models.VerificationAcceptedForPayment, unchanged.VerificationStatus)
	assert.False(t, unchanged.Available)
}

func TestAdminRejectionPersistsReason(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	owner, _ := createUser(t, db, "owner7", models.RoleOwner)
	_, adminToken := createUser(t, db, "admin4", models.RoleAdmin)

	vehicle := models.Vehicle{
		OwnerID:            owner.ID,
		Brand:              "Kia",
		VehicleModel:       "Seltos",
		Year:               2022,
		Type:               "suv",
		RegistrationNumber: "BA-7-9999",
		PricePerDay:        80,
		VerificationStatus: models.VerificationPending,
		PaymentStatus:      models.PaymentUnpaid,
		VerificationFee:    500,
	}
	require.NoError(t, db.Create(&vehicle).Error)

	path := fmt.Sprintf("/api/admin/vehicles/%d/verification", vehicle.ID)

	w := doJSON(r, "PATCH", path, adminToken, gin.H{"status": "REJECTED"})
	assert.Equal(t, 400, w.Code)

	w = doJSON(r, "PATCH", path, adminToken, gin.H{
		"status":          "REJECTED",
		"rejectionReason": "registration document expired",
	})
	require.Equal(t, 200, w.Code, w.Body.String())

	var rejected models.Vehicle
	require.NoError(t, db.First(&rejected, vehicle.ID).Error)
	assert.Equal(t, models.VerificationRejected, rejected.VerificationStatus)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "registration document expired", *rejected.RejectionReason)

	// Re-accepting clears the stored reason
	w = doJSON(r, "PATCH", path, adminToken, gin.H{"status": "ACCEPTED_FOR_PAYMENT"})
	require.Equal(t, 200, w.Code, w.Body.String())

	var reaccepted models.Vehicle
	require.NoError(t, db.First(&reaccepted, vehicle.ID).Error)
	assert.Equal(t, models.VerificationAcceptedForPayment, reaccepted.VerificationStatus)
	assert.Nil(t, reaccepted.RejectionReason)
}

// gatewayState lets a test flip the status the fake gateway reports on
// lookup. The server handler runs on its own goroutine, hence the mutex.
type gatewayState struct {
	mu     sync.Mutex
	status string
}

func (g *gatewayState) Status() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *gatewayState) SetStatus(s string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = s
}

// fakeGateway stands in for the payment provider: it accepts any initiate
// call and reports lookups with the given amount and the current state's
// status (Completed unless a test changes it).
func fakeGateway(t *testing.T, pidx string, amountRupees float64) *gatewayState {
	t.Helper()
	state := &gatewayState{status: "Completed"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/epayment/initiate/"):
			json.NewEncoder(w).Encode(gin.H{
				"pidx":        pidx,
				"payment_url": "https://gateway.test/pay/" + pidx,
			})
		case strings.HasSuffix(r.URL.Path, "/epayment/lookup/"):
			json.NewEncoder(w).Encode(gin.H{
				"pidx":         pidx,
				"status":       state.Status(),
				"total_amount": amountRupees * 100,
			})
		default:
			w.WriteHeader(404)
		}
	}))
	t.Cleanup(srv.Close)
	os.Setenv("KHALTI_BASE_URL", srv.URL)
	os.Setenv("KHALTI_SECRET_KEY", "test-key")
	t.Cleanup(func() {
		os.Unsetenv("KHALTI_BASE_URL")
		os.Unsetenv("KHALTI_SECRET_KEY")
	})
	return state
}

func TestVerificationPaymentFlowIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	owner, ownerToken := createUser(t, db, "owner8", models.RoleOwner)
	fakeGateway(t, "pidx-test-1", 500)

	vehicle := models.Vehicle{
		OwnerID:            owner.ID,
		Brand:              "Ford",
		VehicleModel:       "Ranger",
		Year:               2021,
		Type:               "pickup",
		RegistrationNumber: "BA-8-1010",
		PricePerDay:        120,
		VerificationStatus: models.VerificationAcceptedForPayment,
		PaymentStatus:      models.PaymentUnpaid,
		VerificationFee:    500,
	}
	require.NoError(t, db.Create(&vehicle).Error)

	// Owner initiates the fee payment
	w := doJSON(r, "POST", fmt.Sprintf("/api/vehicles/%d/payment", vehicle.ID), ownerToken, nil)
	require.Equal(t, 200, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "pidx-test-1")

	var withRef models.Vehicle
	require.NoError(t, db.First(&withRef, vehicle.ID).Error)
	require.NotNil(t, withRef.PaymentID)
	assert.Equal(t, "pidx-test-1", *withRef.PaymentID)

	// Gateway callback confirms the payment
	w = doJSON(r, "GET", "/api/payments/callback?pidx=pidx-test-1", "", nil)
	require.Equal(t, 200, w.Code, w.Body.String())

	var paid models.Vehicle
	require.NoError(t, db.First(&paid, vehicle.ID).Error)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	// Payment never auto-approves the listing
	assert.Equal(t, models.VerificationAcceptedForPayment, paid.VerificationStatus)

	// Retried callback is a no-op success
	w = doJSON(r, "GET", "/api/payments/callback?pidx=pidx-test-1", "", nil)
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "already confirmed")

	var still models.Vehicle
	require.NoError(t, db.First(&still, vehicle.ID).Error)
	assert.Equal(t, models.PaymentPaid, still.PaymentStatus)

	var payments int64
	db.Model(&models.Payment{}).Where("reference = ?", "pidx-test-1").Count(&payments)
	assert.Equal(t, int64(1), payments)
}

func TestBookingPaymentHappyPath(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	owner, _ := createUser(t, db, "owner11", models.RoleOwner)
	vehicle := createApprovedVehicle(t, db, owner.ID, "BA-11-4040")
	renter, renterToken := createUser(t, db, "renter9", models.RoleUser)

	fakeGateway(t, "pidx-bp-1", 5*vehicle.PricePerDay)

	// Renter pays up-front; no booking exists yet
	w := doJSON(r, "POST", "/api/bookings/payment", renterToken, gin.H{
		"vehicleId":    vehicle.ID,
		"startDate":    futureDate(10),
		"endDate":      futureDate(15),
		"contactPhone": "9800000000",
	})
	require.Equal(t, 200, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "pidx-bp-1")

	var bookings int64
	db.Model(&models.Booking{}).Where("vehicle_id = ?", vehicle.ID).Count(&bookings)
	assert.Equal(t, int64(0), bookings)

	// Gateway confirms; the booking is created from the stored parameters
	w = doJSON(r, "GET", "/api/payments/callback?pidx=pidx-bp-1", "", nil)
	require.Equal(t, 201, w.Code, w.Body.String())

	var booking models.Booking
	require.NoError(t, db.Where("vehicle_id = ?", vehicle.ID).First(&booking).Error)
	assert.Equal(t, renter.ID, booking.RenterID)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, 5, booking.TotalDays)
	assert.Equal(t, 5*vehicle.PricePerDay, booking.TotalAmount)

	var payment models.Payment
	require.NoError(t, db.Where("reference = ?", "pidx-bp-1").First(&payment).Error)
	assert.Equal(t, models.PaymentRecordCompleted, payment.Status)
}

func TestBookingPaymentCapturedButUnbookable(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	owner, _ := createUser(t, db, "owner12", models.RoleOwner)
	vehicle := createApprovedVehicle(t, db, owner.ID, "BA-12-5050")
	_, payerToken := createUser(t, db, "renter10", models.RoleUser)
	rival, rivalToken := createUser(t, db, "renter11", models.RoleUser)

	fakeGateway(t, "pidx-bp-2", 5*vehicle.PricePerDay)

	w := doJSON(r, "POST", "/api/bookings/payment", payerToken, gin.H{
		"vehicleId":    vehicle.ID,
		"startDate":    futureDate(10),
		"endDate":      futureDate(15),
		"contactPhone": "9800000000",
	})
	require.Equal(t, 200, w.Code, w.Body.String())

	// While the payer is at the gateway a rival books the same dates
	w = doJSON(r, "POST", "/api/bookings", rivalToken, gin.H{
		"vehicleId":    vehicle.ID,
		"startDate":    futureDate(12),
		"endDate":      futureDate(14),
		"contactPhone": "9811111111",
	})
	require.Equal(t, 201, w.Code, w.Body.String())

	// The captured payment is recorded and surfaced, not silently dropped
	w = doJSON(r, "GET", "/api/payments/callback?pidx=pidx-bp-2", "", nil)
	require.Equal(t, 200, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "warning")

	var payment models.Payment
	require.NoError(t, db.Where("reference = ?", "pidx-bp-2").First(&payment).Error)
	assert.Equal(t, models.PaymentRecordCompleted, payment.Status)

	// Only the rival's booking exists
	var bookings []models.Booking
	require.NoError(t, db.Where("vehicle_id = ?", vehicle.ID).Find(&bookings).Error)
	require.Len(t, bookings, 1)
	assert.Equal(t, rival.ID, bookings[0].RenterID)
}

func TestPaymentCallbackPendingIsRetryable(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	owner, ownerToken := createUser(t, db, "owner13", models.RoleOwner)
	gateway := fakeGateway(t, "pidx-pend", 500)

	vehicle := models.Vehicle{
		OwnerID:            owner.ID,
		Brand:              "Nissan",
		VehicleModel:       "Navara",
		Year:               2022,
		Type:               "pickup",
		RegistrationNumber: "BA-13-6060",
		PricePerDay:        110,
		VerificationStatus: models.VerificationAcceptedForPayment,
		PaymentStatus:      models.PaymentUnpaid,
		VerificationFee:    500,
	}
	require.NoError(t, db.Create(&vehicle).Error)

	w := doJSON(r, "POST", fmt.Sprintf("/api/vehicles/%d/payment", vehicle.ID), ownerToken, nil)
	require.Equal(t, 200, w.Code, w.Body.String())

	// Gateway has not settled yet: nothing is marked failed
	gateway.SetStatus("Pending")
	w = doJSON(r, "GET", "/api/payments/callback?pidx=pidx-pend", "", nil)
	assert.Equal(t, 202, w.Code, w.Body.String())

	var payment models.Payment
	require.NoError(t, db.Where("reference = ?", "pidx-pend").First(&payment).Error)
	assert.Equal(t, models.PaymentRecordInitiated, payment.Status)

	var unchanged models.Vehicle
	require.NoError(t, db.First(&unchanged, vehicle.ID).Error)
	assert.Equal(t, models.PaymentUnpaid, unchanged.PaymentStatus)

	// Once it settles, the retried callback completes normally
	gateway.SetStatus("Completed")
	w = doJSON(r, "GET", "/api/payments/callback?pidx=pidx-pend", "", nil)
	require.Equal(t, 200, w.Code, w.Body.String())

	var paid models.Vehicle
	require.NoError(t, db.First(&paid, vehicle.ID).Error)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
}

func TestPaymentCallbackUnknownReference(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	w := doJSON(r, "GET", "/api/payments/callback?pidx=no-such-ref", "", nil)
	assert.Equal(t, 404, w.Code)
}

func TestFeedbackOnlyOnCompletedBooking(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	owner, _ := createUser(t, db, "owner9", models.RoleOwner)
	vehicle := createApprovedVehicle(t, db, owner.ID, "BA-9-2020")
	renter, renterToken := createUser(t, db, "renter7", models.RoleUser)

	booking := models.Booking{
		RenterID:     renter.ID,
		VehicleID:    vehicle.ID,
		StartDate:    time.Now().AddDate(0, 0, -10),
		EndDate:      time.Now().AddDate(0, 0, -5),
		TotalDays:    5,
		TotalAmount:  250,
		Status:       models.BookingStatusConfirmed,
		ContactPhone: "9800000000",
	}
	require.NoError(t, db.Create(&booking).Error)

	feedbackBody := gin.H{
		"vehicleRating": 5,
		"serviceRating": 4,
		"overallRating": 5,
		"vehicleReview": "Smooth ride",
		"recommend":     true,
	}

	path := fmt.Sprintf("/api/bookings/%d/feedback", booking.ID)

	// Not completed yet
	w := doJSON(r, "POST", path, renterToken, feedbackBody)
	assert.Equal(t, 400, w.Code)

	booking.Status = models.BookingStatusCompleted
	require.NoError(t, db.Save(&booking).Error)

	w = doJSON(r, "POST", path, renterToken, feedbackBody)
	require.Equal(t, 201, w.Code, w.Body.String())

	// One feedback per booking
	w = doJSON(r, "POST", path, renterToken, feedbackBody)
	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "already submitted")
}

// End to end: listing submitted, accepted, fee paid, approved, then booked.
func TestVerificationLifecycleEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouter(db)

	_, ownerToken := createUser(t, db, "owner10", models.RoleOwner)
	_, adminToken := createUser(t, db, "admin5", models.RoleAdmin)
	_, renterToken := createUser(t, db, "renter8", models.RoleUser)

	// Owner submits a listing
	w := doJSON(r, "POST", "/api/vehicles", ownerToken, gin.H{
		"brand":              "Mahindra",
		"model":              "Thar",
		"year":               2023,
		"type":               "suv",
		"registrationNumber": "BA-10-3030",
		"pricePerDay":        90,
		"pickupLocation":     "Pokhara",
	})
	require.Equal(t, 201, w.Code, w.Body.String())

	var vehicle models.Vehicle
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vehicle))
	assert.Equal(t, models.VerificationPending, vehicle.VerificationStatus)
	assert.False(t, vehicle.Available)

	verificationPath := fmt.Sprintf("/api/admin/vehicles/%d/verification", vehicle.ID)

	// Admin accepts for payment
	w = doJSON(r, "PATCH", verificationPath, adminToken, gin.H{"status": "ACCEPTED_FOR_PAYMENT"})
	require.Equal(t, 200, w.Code, w.Body.String())

	// Owner pays the fee through the gateway
	fakeGateway(t, "pidx-e2e", vehicle.VerificationFee)
	w = doJSON(r, "POST", fmt.Sprintf("/api/vehicles/%d/payment", vehicle.ID), ownerToken, nil)
	require.Equal(t, 200, w.Code, w.Body.String())

	w = doJSON(r, "GET", "/api/payments/callback?pidx=pidx-e2e", "", nil)
	require.Equal(t, 200, w.Code, w.Body.String())

	// Admin approves the paid listing
	w = doJSON(r, "PATCH", verificationPath, adminToken, gin.H{"status": "APPROVED"})
	require.Equal(t, 200, w.Code, w.Body.String())

	var approved models.Vehicle
	require.NoError(t, db.First(&approved, vehicle.ID).Error)
	assert.Equal(t, models.VerificationApproved, approved.VerificationStatus)
	assert.True(t, approved.Available)
	assert.NotNil(t, approved.VerifiedAt)

	// The vehicle now shows up for renters
	w = doJSON(r, "GET", "/api/vehicles", "", nil)
	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "BA-10-3030")

	// And can be booked for a free range
	w = doJSON(r, "POST", "/api/bookings", renterToken, gin.H{
		"vehicleId":    vehicle.ID,
		"startDate":    futureDate(20),
		"endDate":      futureDate(25),
		"contactPhone": "9811111111",
	})
	require.Equal(t, 201, w.Code, w.Body.String())
}
