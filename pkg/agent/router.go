// Package agent implements the request pipeline of the support
// service: a Router that classifies an incoming message into an agent
// category, and a Dispatcher that runs the category's specialized agent
// over a bounded conversation context. Neither ever lets a collaborator
// failure escape: every failure path resolves to a valid, typed value.
package agent

import (
	"context"
	"strings"

	"github.com/crewdesk/crewdesk/pkg/llm"
	"github.com/crewdesk/crewdesk/pkg/logging"
	"github.com/crewdesk/crewdesk/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("agent")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		debugLog.Warnf("Failed to initialize agent logger, using stderr fallback: %v", err)
	}
}

// Default keyword tables for the deterministic routing path. Order
// keywords are evaluated strictly before billing keywords, so a message
// containing both resolves to order.
var (
	DefaultOrderKeywords = []string{
		"order", "tracking", "shipment", "delivery", "shipping", "track", "package", "dispatch",
	}
	DefaultBillingKeywords = []string{
		"invoice", "payment", "bill", "refund", "charge", "billing", "paid", "pay", "receipt",
	}
)

// classifierPrompt instructs the model-assisted fallback to reply with
// a single category token.
const classifierPrompt = `You are a routing classifier. Respond with ONLY ONE WORD.

Rules:
- If query mentions: order, tracking, shipment, delivery, shipping → Reply: ORDER
- If query mentions: invoice, payment, bill, refund, charge, billing → Reply: BILLING
- For anything else → Reply: GENERAL

RESPOND WITH ONLY ONE WORD: ORDER, BILLING, or GENERAL. NO EXPLANATIONS.`

// classifierMaxTokens bounds the fallback classification reply.
const classifierMaxTokens = 8

// Router classifies a raw user message into an agent category. The
// primary path is deterministic keyword matching with no failure mode;
// an optional model-assisted fallback refines keyword misses when a
// classifier is configured.
type Router struct {
	orderKeywords   []string
	billingKeywords []string
	classifier      llm.Generator
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithOrderKeywords replaces the order keyword table.
func WithOrderKeywords(keywords []string) RouterOption {
	return func(r *Router) {
		if len(keywords) > 0 {
			r.orderKeywords = keywords
		}
	}
}

// WithBillingKeywords replaces the billing keyword table.
func WithBillingKeywords(keywords []string) RouterOption {
	return func(r *Router) {
		if len(keywords) > 0 {
			r.billingKeywords = keywords
		}
	}
}

// WithClassifier enables the model-assisted fallback. It runs only when
// the keyword path produced general; its errors never escape, any
// failure resolves to general.
func WithClassifier(classifier llm.Generator) RouterOption {
	return func(r *Router) { r.classifier = classifier }
}

// NewRouter creates a router with the default keyword tables.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		orderKeywords:   DefaultOrderKeywords,
		billingKeywords: DefaultBillingKeywords,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route classifies the message. It never returns CategoryRouter. The
// history argument is accepted for interface symmetry with the
// model-assisted fallback; the deterministic path does not consult it.
func (r *Router) Route(ctx context.Context, message string, history []*types.Message) types.AgentCategory {
	query := strings.ToLower(message)

	for _, keyword := range r.orderKeywords {
		if strings.Contains(query, keyword) {
			debugLog.Printf("Routed to order (keyword %q): %q", keyword, message)
			return types.CategoryOrder
		}
	}

	for _, keyword := range r.billingKeywords {
		if strings.Contains(query, keyword) {
			debugLog.Printf("Routed to billing (keyword %q): %q", keyword, message)
			return types.CategoryBilling
		}
	}

	if r.classifier != nil && strings.TrimSpace(message) != "" {
		return r.classify(ctx, message)
	}

	debugLog.Printf("Routed to general (default): %q", message)
	return types.CategoryGeneral
}

// classify delegates a keyword-miss to the text generator. The reply is
// parsed case-insensitively for ORDER/BILLING containment; anything
// else, including any error, resolves to general.
func (r *Router) classify(ctx context.Context, message string) types.AgentCategory {
	result, err := r.classifier.Generate(ctx, &llm.Request{
		System:      classifierPrompt,
		UserMessage: message,
		MaxTokens:   classifierMaxTokens,
	})
	if err != nil {
		debugLog.Warnf("Classifier fallback failed, defaulting to general: %v", err)
		return types.CategoryGeneral
	}

	reply := strings.ToUpper(result.Content)
	switch {
	case strings.Contains(reply, "ORDER"):
		debugLog.Printf("Routed to order (classifier): %q", message)
		return types.CategoryOrder
	case strings.Contains(reply, "BILLING"):
		debugLog.Printf("Routed to billing (classifier): %q", message)
		return types.CategoryBilling
	default:
		debugLog.Printf("Routed to general (classifier): %q", message)
		return types.CategoryGeneral
	}
}
