package handlers

import (
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wheelio/wheelio-backend/internal/models"
	"github.com/wheelio/wheelio-backend/internal/services"
	"github.com/wheelio/wheelio-backend/pkg/utils"
	"gorm.io/gorm"
)

// SubmitKYC handles a user's identity verification submission. One record per
// user: any existing submission, whatever its status, blocks a new one.
func SubmitKYC(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		track := models.KYCTrack(c.PostForm("track"))
		if track != models.KYCTrackRenter && track != models.KYCTrackOwner {
			c.JSON(400, gin.H{"error": "track must be 'renter' or 'owner'"})
			return
		}

		fullName := strings.TrimSpace(c.PostForm("fullName"))
		documentType := strings.TrimSpace(c.PostForm("documentType"))
		documentNumber := strings.TrimSpace(c.PostForm("documentNumber"))
		if fullName == "" || documentType == "" || documentNumber == "" {
			c.JSON(400, gin.H{"error": "fullName, documentType and documentNumber are required"})
			return
		}

		licenseNumber := strings.TrimSpace(c.PostForm("licenseNumber"))
		if track == models.KYCTrackRenter && licenseNumber == "" {
			c.JSON(400, gin.H{"error": "licenseNumber is required for renter verification"})
			return
		}

		var existing models.KYC
		if err := db.Where("user_id = ?", userId).First(&existing).Error; err == nil {
			c.JSON(400, gin.H{"error": "A verification record already exists for this account"})
			return
		}

		kyc := models.KYC{
			UserID:         userId,
			Track:          track,
			FullName:       fullName,
			DateOfBirth:    c.PostForm("dateOfBirth"),
			Address:        c.PostForm("address"),
			DocumentType:   documentType,
			DocumentNumber: documentNumber,
			LicenseNumber:  licenseNumber,
			Status:         models.KYCStatusPending,
		}

		if file, err := c.FormFile("document"); err == nil {
			path, err := services.UploadImage(file, services.FolderKYCDocuments)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to upload document"})
				return
			}
			kyc.DocumentURL = services.GetImageURL(path)
		}

		if file, err := c.FormFile("license"); err == nil {
			path, err := services.UploadImage(file, services.FolderKYCDocuments)
			if err != nil {
				c.JSON(500, gin.H{"error": "Failed to upload license"})
				return
			}
			kyc.LicenseURL = services.GetImageURL(path)
		}

		if err := db.Create(&kyc).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to submit verification"})
			return
		}

		c.JSON(201, kyc)
	}
}

// GetMyKYC returns the authenticated user's verification record
func GetMyKYC(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")

		var kyc models.KYC
		if err := db.Where("user_id = ?", userId).First(&kyc).Error; err != nil {
			c.JSON(404, gin.H{"error": "No verification record found"})
			return
		}

		c.JSON(200, kyc)
	}
}

// ListKYCSubmissions lists verification submissions for admin review,
// optionally filtered by status
func ListKYCSubmissions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := db.Preload("User").Order("created_at ASC")
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}

		var submissions []models.KYC
		if err := query.Find(&submissions).Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to fetch submissions"})
			return
		}

		c.JSON(200, submissions)
	}
}

// ReviewKYC applies an admin's decision to a pending submission. Approving an
// owner-track submission promotes the user to OWNER.
func ReviewKYC(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminId := c.GetUint("userId")

		var input struct {
			Status          string `json:"status" binding:"required,oneof=APPROVED REJECTED"`
			RejectionReason string `json:"rejectionReason"`
		}

		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		var kyc models.KYC
		if err := db.Preload("User").First(&kyc, c.Param("id")).Error; err != nil {
			c.JSON(404, gin.H{"error": "Verification record not found"})
			return
		}

		if kyc.Status != models.KYCStatusPending {
			c.JSON(400, gin.H{"error": "Verification record has already been reviewed"})
			return
		}

		reason := strings.TrimSpace(input.RejectionReason)
		if input.Status == string(models.KYCStatusRejected) && reason == "" {
			c.JSON(400, gin.H{"error": "Rejection reason is required"})
			return
		}

		tx := db.Begin()
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
			}
		}()

		kyc.Status = models.KYCStatus(input.Status)
		kyc.ReviewedBy = &adminId
		if kyc.Status == models.KYCStatusApproved {
			now := time.Now()
			kyc.VerifiedAt = &now
			kyc.RejectionReason = nil
		} else {
			kyc.RejectionReason = &reason
		}

		if err := tx.Save(&kyc).Error; err != nil {
			tx.Rollback()
			c.JSON(500, gin.H{"error": "Failed to update verification record"})
			return
		}

		// Approving an owner-track submission promotes the user
		if kyc.Status == models.KYCStatusApproved && kyc.Track == models.KYCTrackOwner {
			if err := tx.Model(&models.User{}).Where("id = ?", kyc.UserID).
				Update("role", models.RoleOwner).Error; err != nil {
				tx.Rollback()
				c.JSON(500, gin.H{"error": "Failed to update user role"})
				return
			}
		}

		if err := tx.Commit().Error; err != nil {
			c.JSON(500, gin.H{"error": "Failed to complete review"})
			return
		}

		go func() {
			if err := utils.SendKYCDecisionEmail(kyc.User.Email, input.Status, reason); err != nil {
				log.Printf("Failed to send KYC decision email: %v", err)
			}
		}()

		c.JSON(200, kyc)
	}
}
