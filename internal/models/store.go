package models

import "time"

// MenuItem is one sellable product in the restaurant catalog.
type MenuItem struct {
	ID          string   `json:"id" db:"id"`
	Name        string   `json:"name" db:"name"`
	Description string   `json:"description,omitempty" db:"description"`
	Category    string   `json:"category" db:"category"`
	PriceCents  int      `json:"price_cents" db:"price_cents"`
	Available   bool     `json:"available" db:"available"`
	Tags        []string `json:"tags,omitempty" db:"tags"`
}

// Addon is an optional extra attached to a menu item.
type Addon struct {
	ID         string `json:"id" db:"id"`
	ProductID  string `json:"product_id" db:"product_id"`
	Name       string `json:"name" db:"name"`
	Category   string `json:"category" db:"category"`
	PriceCents int    `json:"price_cents" db:"price_cents"`
}

// OrderItem is a single line on an order.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes,omitempty"`
}

// Order is a customer order created through the gateway.
type Order struct {
	ID            string      `json:"id" db:"id"`
	UserID        string      `json:"user_id" db:"user_id"`
	CustomerPhone string      `json:"customer_phone" db:"customer_phone"`
	Items         []OrderItem `json:"items" db:"items"`
	TotalCents    int         `json:"total_cents" db:"total_cents"`
	Status        string      `json:"status" db:"status"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// ChatMessage is one logged message from the conversational channel.
type ChatMessage struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Phone     string    `json:"phone" db:"phone"`
	Direction string    `json:"direction" db:"direction"` // "inbound" or "outbound"
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
