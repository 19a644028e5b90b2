package utils

import (
	"fmt"
	"log"
	"net/smtp"
	"os"
	"strings"
)

var (
	emailFrom     = os.Getenv("EMAIL_FROM")
	emailPassword = os.Getenv("EMAIL_PASSWORD")
	smtpHost      = os.Getenv("SMTP_HOST")
	smtpPort      = os.Getenv("SMTP_PORT")
	companyName   = "Wheelio Rentals"
	baseURL       = os.Getenv("BASE_URL")
)

// Common header template for all emails
const emailHeader = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<div style="text-align: center; margin-bottom: 30px; background-color: #f9f9f9; padding: 20px;">
			<h2 style="color: #2563eb; margin: 0;">Wheelio</h2>
		</div>
`

// Common footer template for all emails
const emailFooter = `
		<div style="text-align: center; margin-top: 20px; font-size: 12px; color: #666; border-top: 1px solid #eee; padding-top: 20px;">
			<p>This is an automated message, please do not reply to this email.</p>
			<p>© 2026 Wheelio Rentals. All rights reserved.</p>
		</div>
	</div>
</body>
</html>
`

func sendEmail(to []string, subject, body string) error {
	if emailFrom == "" || emailPassword == "" || smtpHost == "" || smtpPort == "" {
		return fmt.Errorf("email configuration not set")
	}

	// Headers
	headers := make(map[string]string)
	headers["From"] = fmt.Sprintf("%s <%s>", companyName, emailFrom)
	headers["To"] = strings.Join(to, ",")
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"
	headers["X-Mailer"] = "Wheelio-Mailer"

	// Build message
	message := ""
	for key, value := range headers {
		message += fmt.Sprintf("%s: %s\r\n", key, value)
	}
	message += "\r\n" + body

	// Authentication
	auth := smtp.PlainAuth("", emailFrom, emailPassword, smtpHost)

	// Send email
	err := smtp.SendMail(smtpHost+":"+smtpPort, auth, emailFrom, to, []byte(message))
	if err != nil {
		log.Printf("Failed to send email: %v", err)
		return err
	}

	log.Printf("Successfully sent email to recipients: %v", to)
	return nil
}

func SendEmailVerificationOTP(email, otp string) error {
	subject := "Verify Your Email - Wheelio"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Verify Your Email</h1>
					<p>Hello,</p>
					<p>Your verification code is:</p>
					<h2 style="text-align: center; letter-spacing: 8px; color: #2563eb;">%s</h2>
					<p>This code expires in 15 minutes.</p>
					<p>Best regards,<br>The Wheelio Team</p>
				</div>`+emailFooter,
		otp)
	return sendEmail([]string{email}, subject, body)
}

func SendPasswordResetEmail(email, otp string) error {
	subject := "Password Reset Code - Wheelio"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Password Reset</h1>
					<p>Hello,</p>
					<p>Use the code below to reset your password:</p>
					<h2 style="text-align: center; letter-spacing: 8px; color: #2563eb;">%s</h2>
					<p>If you did not request a password reset, you can ignore this email.</p>
					<p>Best regards,<br>The Wheelio Team</p>
				</div>`+emailFooter,
		otp)
	return sendEmail([]string{email}, subject, body)
}

func SendNewBookingNotificationEmailToOwner(ownerEmail, vehicleName, renterName, startDate, endDate string) error {
	subject := "New Booking Request - Wheelio"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">New Booking Request</h1>
					<p>Hello,</p>
					<p><strong>%s</strong> has requested to rent your <strong>%s</strong> from <strong>%s</strong> to <strong>%s</strong>.</p>
					<p>Please log in to your Wheelio account to confirm or cancel this booking.</p>
					<div style="text-align: center; margin: 30px 0;">
						<a href="%s/login" style="background-color: #2563eb; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">Review Booking</a>
					</div>
					<p>Best regards,<br>The Wheelio Team</p>
				</div>`+emailFooter,
		renterName, vehicleName, startDate, endDate, baseURL)

	return sendEmail([]string{ownerEmail}, subject, body)
}

func SendBookingConfirmedEmail(renterEmail, vehicleName, pickupLocation string) error {
	subject := "Booking Confirmed - Wheelio"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Booking Confirmed</h1>
					<p>Hello,</p>
					<p>Great news! Your booking for <strong>%s</strong> has been confirmed by the owner.</p>
					<p>Pickup location: <strong>%s</strong>.</p>
					<div style="text-align: center; margin: 30px 0;">
						<a href="%s/bookings" style="background-color: #2563eb; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">View Booking</a>
					</div>
					<p>Best regards,<br>The Wheelio Team</p>
				</div>`+emailFooter,
		vehicleName, pickupLocation, baseURL)
	return sendEmail([]string{renterEmail}, subject, body)
}

func SendBookingCancelledEmail(renterEmail, vehicleName string) error {
	subject := "Booking Cancelled - Wheelio"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Booking Cancelled</h1>
					<p>Hello,</p>
					<p>Your booking for <strong>%s</strong> has been cancelled.</p>
					<p>Don't worry! You can browse other available vehicles.</p>
					<div style="text-align: center; margin: 30px 0;">
						<a href="%s/vehicles" style="background-color: #2563eb; color: white; padding: 12px 25px; text-decoration: none; border-radius: 5px;">Find Another Vehicle</a>
					</div>
					<p>Best regards,<br>The Wheelio Team</p>
				</div>`+emailFooter,
		vehicleName, baseURL)
	return sendEmail([]string{renterEmail}, subject, body)
}

func SendKYCDecisionEmail(userEmail, status, reason string) error {
	subject := "Identity Verification Update - Wheelio"
	reasonBlock := ""
	if reason != "" {
		reasonBlock = fmt.Sprintf("<p>Reason: <strong>%s</strong></p>", reason)
	}
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Identity Verification Update</h1>
					<p>Hello,</p>
					<p>Your identity verification has been <strong>%s</strong>.</p>
					%s
					<p>Best regards,<br>The Wheelio Team</p>
				</div>`+emailFooter,
		strings.ToLower(status), reasonBlock)
	return sendEmail([]string{userEmail}, subject, body)
}

func SendVehicleVerificationEmail(ownerEmail, vehicleName, status, reason string) error {
	subject := "Vehicle Verification Update - Wheelio"
	reasonBlock := ""
	if reason != "" {
		reasonBlock = fmt.Sprintf("<p>Reason: <strong>%s</strong></p>", reason)
	}
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Vehicle Verification Update</h1>
					<p>Hello,</p>
					<p>The verification status of your <strong>%s</strong> is now <strong>%s</strong>.</p>
					%s
					<p>Best regards,<br>The Wheelio Team</p>
				</div>`+emailFooter,
		vehicleName, status, reasonBlock)
	return sendEmail([]string{ownerEmail}, subject, body)
}

func SendPaymentReceiptEmail(userEmail string, amount float64, reference, purpose string) error {
	subject := "Payment Received - Wheelio"
	body := fmt.Sprintf(emailHeader+`
				<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">
					<h1 style="color: #2c3e50; text-align: center;">Payment Received</h1>
					<p>Hello,</p>
					<p>We received your payment of <strong>Rs %.2f</strong> (%s).</p>
					<p>Reference: <strong>%s</strong></p>
					<p>Best regards,<br>The Wheelio Team</p>
				</div>`+emailFooter,
		amount, purpose, reference)
	return sendEmail([]string{userEmail}, subject, body)
}
