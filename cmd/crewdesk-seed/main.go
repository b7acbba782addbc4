// Package main seeds the crewdesk database with demo customers,
// orders, invoices, and conversation history.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crewdesk/crewdesk/pkg/config"
	"github.com/crewdesk/crewdesk/pkg/store"
)

const (
	userCount    = 20
	orderCount   = 40
	messageQuota = 100
)

var orderStatuses = []string{
	store.OrderStatusPending,
	store.OrderStatusProcessing,
	store.OrderStatusShipped,
	store.OrderStatusDelivered,
	store.OrderStatusCancelled,
}

var invoiceStatuses = []string{
	store.InvoiceStatusPaid,
	store.InvoiceStatusPending,
	store.InvoiceStatusOverdue,
}

var paymentMethods = []string{"credit_card", "debit_card", "paypal", "bank_transfer"}

type product struct {
	id    string
	name  string
	price float64
}

var products = []product{
	{"1", `Laptop Pro 15"`, 1299.99},
	{"2", "Wireless Mouse", 29.99},
	{"3", "Mechanical Keyboard", 149.99},
	{"4", "USB-C Hub", 79.99},
	{"5", "4K Monitor", 599.99},
	{"6", "Webcam HD", 89.99},
	{"7", "Headphones Pro", 249.99},
	{"8", "Desk Lamp LED", 39.99},
	{"9", "Laptop Stand", 49.99},
	{"10", "Cable Organizer", 19.99},
}

var firstNames = []string{
	"Alice", "Ben", "Carla", "Dmitri", "Elena", "Farid", "Grace", "Hiro",
	"Ingrid", "Jonas", "Keiko", "Liam", "Mara", "Noah", "Olga", "Pedro",
	"Quinn", "Rosa", "Sven", "Tara",
}

var lastNames = []string{
	"Adler", "Brooks", "Chen", "Diaz", "Eriksen", "Fischer", "Gupta",
	"Hansen", "Ivanov", "Jensen", "Kim", "Larsen", "Moretti", "Novak",
	"Okafor", "Park", "Quintero", "Rossi", "Silva", "Tanaka",
}

var streets = []string{
	"Harbour Street", "Mill Lane", "Station Road", "Oak Avenue",
	"Riverside Drive", "Kings Road", "Elm Close", "Market Square",
	"Bridge Way", "Garden Terrace",
}

var sampleQueries = []string{
	"Where is my order?",
	"I want to track my shipment",
	"Can you help me with my invoice?",
	"I haven't received my order yet",
	"What's the status of order {orderNumber}?",
	"I need to update my shipping address",
	"Can I cancel my order?",
	"I was charged twice",
	"When will my order arrive?",
	"I need a refund",
	"My package was damaged",
	"I want to change my order",
	"Can you send me my invoice?",
	"I have a question about my bill",
	"How do I track my order?",
	"I need help with payment",
	"My order is incomplete",
	"I received the wrong item",
	"Can you expedite my shipping?",
	"I need to speak to someone about my account",
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file (YAML)")
	dbPath := flag.String("db", "", "Database path (overrides config)")
	seed := flag.Int64("seed", 42, "Random seed for reproducible data")
	flag.Parse()

	if err := run(*configPath, *dbPath, *seed); err != nil {
		log.Printf("Seeding failed: %v", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath string, seed int64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath == "" {
		dbPath = cfg.DatabasePath
	}

	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	rng := rand.New(rand.NewSource(seed))
	ctx := context.Background()

	log.Printf("Seeding database at %s", dbPath)

	users, err := seedUsers(ctx, db, rng)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	orders, err := seedOrders(ctx, db, rng, users)
	if err != nil {
		return fmt.Errorf("failed to seed orders: %w", err)
	}

	messageCount, err := seedConversations(ctx, db, rng, users, orders)
	if err != nil {
		return fmt.Errorf("failed to seed conversations: %w", err)
	}

	log.Printf("Created %d users, %d orders, %d invoices, %d messages",
		len(users), len(orders), len(orders), messageCount)
	return nil
}

func seedUsers(ctx context.Context, db *store.SQLiteStore, rng *rand.Rand) ([]*store.User, error) {
	users := make([]*store.User, 0, userCount)
	for i := 0; i < userCount; i++ {
		name := fmt.Sprintf("%s %s", firstNames[i%len(firstNames)], lastNames[rng.Intn(len(lastNames))])
		user := &store.User{
			ID:        uuid.New().String(),
			Email:     fmt.Sprintf("%s%d@example.com", strings.ToLower(firstNames[i%len(firstNames)]), i),
			Name:      name,
			CreatedAt: time.Now().UTC().AddDate(0, 0, -rng.Intn(365)),
		}
		if err := db.CreateUser(ctx, user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func seedOrders(ctx context.Context, db *store.SQLiteStore, rng *rand.Rand, users []*store.User) ([]*store.Order, error) {
	orders := make([]*store.Order, 0, orderCount)
	for i := 0; i < orderCount; i++ {
		user := users[rng.Intn(len(users))]

		numItems := 1 + rng.Intn(5)
		items := make([]store.OrderItem, 0, numItems)
		var total float64
		for j := 0; j < numItems; j++ {
			p := products[rng.Intn(len(products))]
			quantity := 1 + rng.Intn(3)
			total += p.price * float64(quantity)
			items = append(items, store.OrderItem{
				ProductID:   p.id,
				ProductName: p.name,
				Quantity:    quantity,
				Price:       p.price,
			})
		}

		status := orderStatuses[rng.Intn(len(orderStatuses))]
		createdAt := time.Now().UTC().AddDate(0, 0, -rng.Intn(60))

		order := &store.Order{
			ID:              uuid.New().String(),
			UserID:          user.ID,
			OrderNumber:     "ORD-" + alphanumeric(rng, 8),
			Status:          status,
			TotalAmount:     total,
			Items:           items,
			ShippingAddress: fmt.Sprintf("%d %s", 1+rng.Intn(200), streets[rng.Intn(len(streets))]),
			CreatedAt:       createdAt,
		}
		if status != store.OrderStatusPending {
			order.TrackingNumber = "TRK" + numeric(rng, 12)
		}
		if status == store.OrderStatusShipped {
			delivery := time.Now().UTC().AddDate(0, 0, 1+rng.Intn(30))
			order.EstimatedDelivery = &delivery
		}
		if err := db.CreateOrder(ctx, order); err != nil {
			return nil, err
		}
		orders = append(orders, order)

		if err := seedInvoice(ctx, db, rng, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func seedInvoice(ctx context.Context, db *store.SQLiteStore, rng *rand.Rand, order *store.Order) error {
	status := invoiceStatuses[rng.Intn(len(invoiceStatuses))]
	if order.Status == store.OrderStatusDelivered {
		status = store.InvoiceStatusPaid
	}

	invoice := &store.Invoice{
		ID:            uuid.New().String(),
		UserID:        order.UserID,
		OrderID:       order.ID,
		InvoiceNumber: "INV-" + alphanumeric(rng, 8),
		Amount:        order.TotalAmount,
		Status:        status,
		DueDate:       time.Now().UTC().AddDate(0, 0, 1+rng.Intn(18)),
		Items:         order.Items,
		CreatedAt:     order.CreatedAt,
	}
	if status == store.InvoiceStatusPaid {
		paidAt := time.Now().UTC().AddDate(0, 0, -rng.Intn(30))
		invoice.PaidAt = &paidAt
		invoice.PaymentMethod = paymentMethods[rng.Intn(len(paymentMethods))]
	}
	return db.CreateInvoice(ctx, invoice)
}

func seedConversations(ctx context.Context, db *store.SQLiteStore, rng *rand.Rand, users []*store.User, orders []*store.Order) (int, error) {
	ordersByUser := make(map[string][]*store.Order)
	for _, o := range orders {
		ordersByUser[o.UserID] = append(ordersByUser[o.UserID], o)
	}

	messageCount := 0
	for messageCount < messageQuota {
		user := users[rng.Intn(len(users))]
		userOrders := ordersByUser[user.ID]

		conv, err := db.CreateConversation(ctx, user.ID, sampleQueries[rng.Intn(len(sampleQueries))])
		if err != nil {
			return messageCount, err
		}

		numMessages := 2 + rng.Intn(4)
		for i := 0; i < numMessages && messageCount < messageQuota; i++ {
			msg := &store.Message{ConversationID: conv.ID}
			if i%2 == 0 {
				msg.Role = "user"
				msg.Content = userQuery(rng, userOrders)
			} else {
				msg.Role = "assistant"
				msg.AgentCategory, msg.Content = assistantReply(rng, userOrders)
			}
			if err := db.AppendMessage(ctx, msg); err != nil {
				return messageCount, err
			}
			messageCount++
		}
	}
	return messageCount, nil
}

func userQuery(rng *rand.Rand, userOrders []*store.Order) string {
	content := sampleQueries[rng.Intn(len(sampleQueries))]
	if strings.Contains(content, "{orderNumber}") {
		number := "ORD-XXXXX"
		if len(userOrders) > 0 {
			number = userOrders[rng.Intn(len(userOrders))].OrderNumber
		}
		content = strings.Replace(content, "{orderNumber}", number, 1)
	}
	return content
}

func assistantReply(rng *rand.Rand, userOrders []*store.Order) (category, content string) {
	firstOrder := "ORD-XXXXX"
	if len(userOrders) > 0 {
		firstOrder = userOrders[0].OrderNumber
	}
	replies := map[string]string{
		"order": fmt.Sprintf("I can help you track your order. Your order %s is currently %s.",
			firstOrder, orderStatuses[rng.Intn(len(orderStatuses))]),
		"billing": "I'm looking into your billing inquiry. Let me pull up your invoice details.",
		"general": "I'm here to help! Let me assist you with your question.",
	}
	categories := []string{"order", "billing", "general"}
	category = categories[rng.Intn(len(categories))]
	return category, replies[category]
}

const alphanumericChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func alphanumeric(rng *rand.Rand, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(alphanumericChars[rng.Intn(len(alphanumericChars))])
	}
	return b.String()
}

func numeric(rng *rand.Rand, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('0' + rng.Intn(10)))
	}
	return b.String()
}
