// Package store persists the support domain: users, orders, invoices,
// and conversations. The agent core touches it only through the
// read-only RecordStore interface (tool lookups); the transport layer
// uses ConversationStore for history and persistence of new turns.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// Order lifecycle statuses.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Invoice lifecycle statuses.
const (
	InvoiceStatusPaid      = "paid"
	InvoiceStatusPending   = "pending"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
)

// User is a customer account.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderItem is one line item of an order or invoice.
type OrderItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// Order is one customer order with its shipping state.
type Order struct {
	ID                string      `json:"id"`
	UserID            string      `json:"userId"`
	OrderNumber       string      `json:"orderNumber"`
	Status            string      `json:"status"`
	TotalAmount       float64     `json:"totalAmount"`
	Items             []OrderItem `json:"items"`
	ShippingAddress   string      `json:"shippingAddress"`
	TrackingNumber    string      `json:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time  `json:"estimatedDelivery,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
}

// Invoice is the billing record for an order.
type Invoice struct {
	ID            string      `json:"id"`
	UserID        string      `json:"userId"`
	OrderID       string      `json:"orderId,omitempty"`
	InvoiceNumber string      `json:"invoiceNumber"`
	Amount        float64     `json:"amount"`
	Status        string      `json:"status"`
	DueDate       time.Time   `json:"dueDate"`
	PaidAt        *time.Time  `json:"paidAt,omitempty"`
	PaymentMethod string      `json:"paymentMethod,omitempty"`
	Items         []OrderItem `json:"items"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// Conversation is one support thread.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one persisted conversation turn.
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	AgentCategory  string          `json:"agentCategory,omitempty"`
	Reasoning      string          `json:"reasoning,omitempty"`
	ToolCalls      json.RawMessage `json:"toolCalls,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// ConversationSummary is a persisted summary of a conversation prefix,
// the only derivative of a compacted context that is ever stored.
type ConversationSummary struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Summary        string    `json:"summary"`
	MessageCount   int       `json:"messageCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RecordStore is the read-only lookup surface the agent tools use.
// Lookups that find nothing return (nil, nil): absence is a result,
// not an error. Implementations must be safe for concurrent readers.
type RecordStore interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	GetOrdersByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error)
	GetInvoicesByUser(ctx context.Context, userID string, limit int) ([]Invoice, error)
	GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)
	GetInvoiceForOrder(ctx context.Context, orderNumber string) (*Invoice, error)
}

// ConversationStore persists conversations and their turns.
type ConversationStore interface {
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)
	CreateConversation(ctx context.Context, userID, title string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)

	// GetRecentMessages returns the newest limit messages of the
	// conversation in chronological (oldest-first) order.
	GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	AppendMessage(ctx context.Context, msg *Message) error

	SaveSummary(ctx context.Context, summary *ConversationSummary) error
}
