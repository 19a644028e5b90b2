package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Khalti ePayment API client. Amounts cross the wire in paisa; everything in
// our store is rupees.

const (
	khaltiMinAmount = 10.0     // gateway rejects charges below Rs 10
	khaltiMaxAmount = 100000.0 // gateway rejects charges above Rs 100,000
)

var khaltiHTTPClient = &http.Client{Timeout: 15 * time.Second}

type KhaltiInitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at"`
}

type KhaltiLookupResponse struct {
	Pidx        string  `json:"pidx"`
	Status      string  `json:"status"`
	TotalAmount float64 `json:"total_amount"` // paisa
	Refunded    bool    `json:"refunded"`
}

func khaltiBaseURL() string {
	baseURL := os.Getenv("KHALTI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://a.khalti.com/api/v2"
	}
	return baseURL
}

// ValidateKhaltiAmount checks the charge against the gateway's accepted range.
func ValidateKhaltiAmount(amount float64) error {
	if amount < khaltiMinAmount || amount > khaltiMaxAmount {
		return fmt.Errorf("amount %.2f is outside the gateway's accepted range (%.0f-%.0f)",
			amount, khaltiMinAmount, khaltiMaxAmount)
	}
	return nil
}

// InitiateKhaltiPayment registers a payment with Khalti and returns the pidx
// and the URL the payer should be redirected to.
func InitiateKhaltiPayment(amount float64, orderID, orderName string) (*KhaltiInitiateResponse, error) {
	secretKey := os.Getenv("KHALTI_SECRET_KEY")
	if secretKey == "" {
		return nil, fmt.Errorf("khalti secret key not set")
	}

	returnURL := os.Getenv("KHALTI_RETURN_URL")
	websiteURL := os.Getenv("BASE_URL")
	if websiteURL == "" {
		websiteURL = "http://localhost:8080"
	}
	if returnURL == "" {
		returnURL = websiteURL + "/api/payments/callback"
	}

	payload := map[string]interface{}{
		"return_url":          returnURL,
		"website_url":         websiteURL,
		"amount":              int64(amount * 100),
		"purchase_order_id":   orderID,
		"purchase_order_name": orderName,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode initiate request: %v", err)
	}

	req, err := http.NewRequest("POST", khaltiBaseURL()+"/epayment/initiate/", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+secretKey)

	resp, err := khaltiHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach payment gateway: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Khalti initiate failed for order %s: status %d", orderID, resp.StatusCode)
		return nil, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var result KhaltiInitiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %v", err)
	}
	if result.Pidx == "" || result.PaymentURL == "" {
		return nil, fmt.Errorf("payment gateway returned an incomplete response")
	}

	return &result, nil
}

// LookupKhaltiPayment fetches the authoritative status of a payment by pidx.
// Callbacks carry a status too, but only the lookup result is trusted.
func LookupKhaltiPayment(pidx string) (*KhaltiLookupResponse, error) {
	secretKey := os.Getenv("KHALTI_SECRET_KEY")
	if secretKey == "" {
		return nil, fmt.Errorf("khalti secret key not set")
	}

	body, err := json.Marshal(map[string]string{"pidx": pidx})
	if err != nil {
		return nil, fmt.Errorf("failed to encode lookup request: %v", err)
	}

	req, err := http.NewRequest("POST", khaltiBaseURL()+"/epayment/lookup/", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+secretKey)

	resp, err := khaltiHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach payment gateway: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Khalti lookup failed for pidx %s: status %d", pidx, resp.StatusCode)
		return nil, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var result KhaltiLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %v", err)
	}

	// Convert paisa back to rupees for comparison with stored amounts.
	result.TotalAmount = result.TotalAmount / 100

	return &result, nil
}
