package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements RecordStore and ConversationStore on SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn and applies
// migrations. Use ":memory:" for an ephemeral store in tests.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			order_number TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			total_amount REAL NOT NULL,
			items TEXT NOT NULL,
			shipping_address TEXT NOT NULL,
			tracking_number TEXT,
			estimated_delivery DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_number ON orders(order_number)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			order_id TEXT,
			invoice_number TEXT NOT NULL UNIQUE,
			amount REAL NOT NULL,
			status TEXT NOT NULL,
			due_date DATETIME NOT NULL,
			paid_at DATETIME,
			payment_method TEXT,
			items TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (order_id) REFERENCES orders(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_user ON invoices(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_number ON invoices(invoice_number)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			agent_category TEXT,
			reasoning TEXT,
			tool_calls TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS conversation_summaries (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			summary TEXT NOT NULL,
			message_count INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_summaries_conversation ON conversation_summaries(conversation_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser inserts a user. Used by the seed tool and tests.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.CreatedAt)
	return err
}

// GetUser retrieves a user by ID, (nil, nil) if absent.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM users WHERE id = ?`,
		userID).Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateOrder inserts an order. Used by the seed tool and tests.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order *Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	var tracking sql.NullString
	if order.TrackingNumber != "" {
		tracking = sql.NullString{String: order.TrackingNumber, Valid: true}
	}
	var delivery sql.NullTime
	if order.EstimatedDelivery != nil {
		delivery = sql.NullTime{Time: *order.EstimatedDelivery, Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, order_number, status, total_amount, items, shipping_address, tracking_number, estimated_delivery, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.OrderNumber, order.Status, order.TotalAmount,
		string(items), order.ShippingAddress, tracking, delivery, order.CreatedAt)
	return err
}

const orderColumns = `id, user_id, order_number, status, total_amount, items, shipping_address, tracking_number, estimated_delivery, created_at`

func scanOrder(scan func(dest ...interface{}) error) (*Order, error) {
	var order Order
	var items string
	var tracking sql.NullString
	var delivery sql.NullTime
	if err := scan(&order.ID, &order.UserID, &order.OrderNumber, &order.Status,
		&order.TotalAmount, &items, &order.ShippingAddress, &tracking, &delivery,
		&order.CreatedAt); err != nil {
		return nil, err
	}
	if tracking.Valid {
		order.TrackingNumber = tracking.String
	}
	if delivery.Valid {
		order.EstimatedDelivery = &delivery.Time
	}
	if err := json.Unmarshal([]byte(items), &order.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}
	return &order, nil
}

// GetOrdersByUser returns the user's most recent orders, newest first.
func (s *SQLiteStore) GetOrdersByUser(ctx context.Context, userID string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// GetOrderByNumber retrieves an order by its order number, (nil, nil) if absent.
func (s *SQLiteStore) GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = ?`, orderNumber)
	order, err := scanOrder(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CreateInvoice inserts an invoice. Used by the seed tool and tests.
func (s *SQLiteStore) CreateInvoice(ctx context.Context, invoice *Invoice) error {
	items, err := json.Marshal(invoice.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice items: %w", err)
	}
	var orderID, method sql.NullString
	if invoice.OrderID != "" {
		orderID = sql.NullString{String: invoice.OrderID, Valid: true}
	}
	if invoice.PaymentMethod != "" {
		method = sql.NullString{String: invoice.PaymentMethod, Valid: true}
	}
	var paidAt sql.NullTime
	if invoice.PaidAt != nil {
		paidAt = sql.NullTime{Time: *invoice.PaidAt, Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, user_id, order_id, invoice_number, amount, status, due_date, paid_at, payment_method, items, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID, invoice.UserID, orderID, invoice.InvoiceNumber, invoice.Amount,
		invoice.Status, invoice.DueDate, paidAt, method, string(items), invoice.CreatedAt)
	return err
}

const invoiceColumns = `id, user_id, order_id, invoice_number, amount, status, due_date, paid_at, payment_method, items, created_at`

func scanInvoice(scan func(dest ...interface{}) error) (*Invoice, error) {
	var invoice Invoice
	var items string
	var orderID, method sql.NullString
	var paidAt sql.NullTime
	if err := scan(&invoice.ID, &invoice.UserID, &orderID, &invoice.InvoiceNumber,
		&invoice.Amount, &invoice.Status, &invoice.DueDate, &paidAt, &method,
		&items, &invoice.CreatedAt); err != nil {
		return nil, err
	}
	if orderID.Valid {
		invoice.OrderID = orderID.String
	}
	if method.Valid {
		invoice.PaymentMethod = method.String
	}
	if paidAt.Valid {
		invoice.PaidAt = &paidAt.Time
	}
	if err := json.Unmarshal([]byte(items), &invoice.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invoice items: %w", err)
	}
	return &invoice, nil
}

// GetInvoicesByUser returns the user's most recent invoices, newest first.
func (s *SQLiteStore) GetInvoicesByUser(ctx context.Context, userID string, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *invoice)
	}
	return invoices, rows.Err()
}

// GetInvoiceByNumber retrieves an invoice by its invoice number, (nil, nil) if absent.
func (s *SQLiteStore) GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = ?`, invoiceNumber)
	invoice, err := scanInvoice(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// GetInvoiceForOrder retrieves the invoice attached to the given order
// number, (nil, nil) if either the order or its invoice is absent.
func (s *SQLiteStore) GetInvoiceForOrder(ctx context.Context, orderNumber string) (*Invoice, error) {
	order, err := s.GetOrderByNumber(ctx, orderNumber)
	if err != nil || order == nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE order_id = ?`, order.ID)
	invoice, err := scanInvoice(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// GetConversation retrieves a conversation by ID, (nil, nil) if absent.
func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	var conv Conversation
	var title sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, status, created_at, updated_at FROM conversations WHERE id = ?`,
		conversationID).Scan(&conv.ID, &conv.UserID, &title, &conv.Status, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if title.Valid {
		conv.Title = title.String
	}
	return &conv, nil
}

// CreateConversation creates a new active conversation for the user.
func (s *SQLiteStore) CreateConversation(ctx context.Context, userID, title string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.Title, conv.Status, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations returns the user's conversations, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, status, created_at, updated_at FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var conv Conversation
		var title sql.NullString
		if err := rows.Scan(&conv.ID, &conv.UserID, &title, &conv.Status, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		if title.Valid {
			conv.Title = title.String
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// GetRecentMessages returns the newest limit messages in chronological
// order. The newest rows are selected descending and then reversed so
// the caller always sees oldest-first history.
func (s *SQLiteStore) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, agent_category, reasoning, tool_calls, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var category, reasoning, toolCalls sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&category, &reasoning, &toolCalls, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if category.Valid {
			msg.AgentCategory = category.String
		}
		if reasoning.Valid {
			msg.Reasoning = reasoning.String
		}
		if toolCalls.Valid {
			msg.ToolCalls = json.RawMessage(toolCalls.String)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into oldest-first order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// AppendMessage persists one turn and bumps the conversation's
// updated_at. Fills ID and CreatedAt when unset.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	var category, reasoning, toolCalls sql.NullString
	if msg.AgentCategory != "" {
		category = sql.NullString{String: msg.AgentCategory, Valid: true}
	}
	if msg.Reasoning != "" {
		reasoning = sql.NullString{String: msg.Reasoning, Valid: true}
	}
	if len(msg.ToolCalls) > 0 {
		toolCalls = sql.NullString{String: string(msg.ToolCalls), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, agent_category, reasoning, tool_calls, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, category, reasoning, toolCalls, msg.CreatedAt)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		msg.CreatedAt, msg.ConversationID)
	return err
}

// SaveSummary persists a summary record for a conversation prefix.
func (s *SQLiteStore) SaveSummary(ctx context.Context, summary *ConversationSummary) error {
	if summary.ID == "" {
		summary.ID = uuid.New().String()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_summaries (id, conversation_id, summary, message_count, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		summary.ID, summary.ConversationID, summary.Summary, summary.MessageCount, summary.CreatedAt)
	return err
}
