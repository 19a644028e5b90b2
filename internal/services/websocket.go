package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client represents a WebSocket client
type Client struct {
	ID   uint
	Role string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mutex      sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Client %d connected", client.ID)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mutex.Unlock()
			log.Printf("Client %d disconnected", client.ID)

		case message := <-h.broadcast:
			h.deliver(message, func(*Client) bool { return true })
		}
	}
}

// deliver sends a message to every client accepted by match. A client whose
// send buffer is full is evicted, which mutates the client map, so delivery
// holds the write lock.
func (h *Hub) deliver(message []byte, match func(*Client) bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.Send <- message:
		default:
			close(client.Send)
			delete(h.clients, client)
		}
	}
}

// BroadcastToUser sends a message to a specific user
func (h *Hub) BroadcastToUser(userID uint, message []byte) {
	h.deliver(message, func(c *Client) bool { return c.ID == userID })
}

// BroadcastToRole sends a message to all users with a specific role
func (h *Hub) BroadcastToRole(role string, message []byte) {
	h.deliver(message, func(c *Client) bool { return c.Role == role })
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// WebSocket message types
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// BookingRequested notifies a vehicle owner of a new booking request
type BookingRequested struct {
	BookingID  uint   `json:"bookingId"`
	VehicleID  uint   `json:"vehicleId"`
	RenterName string `json:"renterName"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
}

// BookingDecision notifies a renter of an owner's decision on their booking
type BookingDecision struct {
	BookingID uint   `json:"bookingId"`
	VehicleID uint   `json:"vehicleId"`
	Status    string `json:"status"`
}

// VerificationDecision notifies an owner of an admin's verification decision
type VerificationDecision struct {
	VehicleID       uint   `json:"vehicleId"`
	Status          string `json:"status"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

// PaymentConfirmed notifies a user that a gateway payment was captured
type PaymentConfirmed struct {
	Reference string  `json:"reference"`
	Purpose   string  `json:"purpose"`
	Amount    float64 `json:"amount"`
}

// HandleWebSocket handles WebSocket connections
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID uint, role string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		ID:   userID,
		Role: role,
		Conn: conn,
		Send: make(chan []byte, 256),
		Hub:  hub,
	}

	client.Hub.register <- client

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		// Clients only receive on this socket; inbound frames keep the
		// connection alive and are otherwise ignored.
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// SendBookingRequested sends a new-booking notification to the vehicle owner
func (hub *Hub) SendBookingRequested(ownerID uint, requested BookingRequested) {
	hub.sendToUser(ownerID, "booking_requested", requested)
}

// SendBookingDecision sends an owner's booking decision to the renter
func (hub *Hub) SendBookingDecision(renterID uint, decision BookingDecision) {
	hub.sendToUser(renterID, "booking_decision", decision)
}

// SendVerificationDecision sends an admin verification decision to the owner
func (hub *Hub) SendVerificationDecision(ownerID uint, decision VerificationDecision) {
	hub.sendToUser(ownerID, "verification_decision", decision)
}

// SendPaymentConfirmed sends a payment confirmation to the payer
func (hub *Hub) SendPaymentConfirmed(userID uint, confirmed PaymentConfirmed) {
	hub.sendToUser(userID, "payment_confirmed", confirmed)
}

func (hub *Hub) sendToUser(userID uint, msgType string, payload interface{}) {
	message := WebSocketMessage{
		Type: msgType,
		Data: payload,
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", msgType, err)
		return
	}

	hub.BroadcastToUser(userID, data)
}
