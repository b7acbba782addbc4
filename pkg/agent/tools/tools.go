// Package tools defines the closed, per-category lookup toolsets the
// specialized agents expose to the text generator. Every tool is a
// read-only query against the record store with typed arguments; a
// lookup miss resolves to an explicit not-found value, and a store
// failure resolves to an error value. Nothing ever raises past the
// tool boundary.
package tools

import (
	"context"
	"encoding/json"

	"github.com/crewdesk/crewdesk/pkg/llm"
	"github.com/crewdesk/crewdesk/pkg/store"
)

type orderNumberArgs struct {
	OrderNumber string `json:"orderNumber"`
}

type invoiceNumberArgs struct {
	InvoiceNumber string `json:"invoiceNumber"`
}

// recentLookupLimit bounds the "list recent" tools.
const recentLookupLimit = 10

func decodeArgs(args map[string]interface{}, dst interface{}) {
	// Arguments arrive as a generic map from the wire; a JSON round
	// trip maps them onto the typed struct. Unknown or missing fields
	// simply leave zero values, which the handlers treat as not found.
	raw, err := json.Marshal(args)
	if err != nil {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

func errResult(message string) map[string]string {
	return map[string]string{"error": message}
}

func objectSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func orderNumberSchema(description string) map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"orderNumber": map[string]interface{}{
			"type":        "string",
			"description": description,
		},
	}, []string{"orderNumber"})
}

func invoiceNumberSchema(description string) map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"invoiceNumber": map[string]interface{}{
			"type":        "string",
			"description": description,
		},
	}, []string{"invoiceNumber"})
}

// OrderToolset returns the order-category tools bound to the given
// user. The user binding is fixed at dispatch time so the model can
// never look up another customer's orders.
func OrderToolset(records store.RecordStore, userID string) []llm.Tool {
	return []llm.Tool{
		{
			Name:        "getOrdersByUser",
			Description: "Get all orders for the current user",
			Parameters:  objectSchema(map[string]interface{}{}, nil),
			Execute: func(ctx context.Context, _ map[string]interface{}) interface{} {
				orders, err := records.GetOrdersByUser(ctx, userID, recentLookupLimit)
				if err != nil {
					return errResult("Order lookup is temporarily unavailable")
				}
				return orders
			},
		},
		{
			Name:        "getOrderByNumber",
			Description: "Get specific order details by order number",
			Parameters:  orderNumberSchema("The order number to look up"),
			Execute: func(ctx context.Context, args map[string]interface{}) interface{} {
				var in orderNumberArgs
				decodeArgs(args, &in)
				order, err := records.GetOrderByNumber(ctx, in.OrderNumber)
				if err != nil {
					return errResult("Order lookup is temporarily unavailable")
				}
				if order == nil {
					return errResult("Order not found")
				}
				return order
			},
		},
		{
			Name:        "trackOrder",
			Description: "Get tracking information for an order",
			Parameters:  orderNumberSchema("The order number to track"),
			Execute: func(ctx context.Context, args map[string]interface{}) interface{} {
				var in orderNumberArgs
				decodeArgs(args, &in)
				order, err := records.GetOrderByNumber(ctx, in.OrderNumber)
				if err != nil {
					return errResult("Order lookup is temporarily unavailable")
				}
				if order == nil {
					return errResult("Order not found")
				}
				return map[string]interface{}{
					"orderNumber":       order.OrderNumber,
					"status":            order.Status,
					"trackingNumber":    order.TrackingNumber,
					"estimatedDelivery": order.EstimatedDelivery,
					"shippingAddress":   order.ShippingAddress,
				}
			},
		},
	}
}

// BillingToolset returns the billing-category tools bound to the given
// user.
func BillingToolset(records store.RecordStore, userID string) []llm.Tool {
	return []llm.Tool{
		{
			Name:        "getInvoicesByUser",
			Description: "Get all invoices for the current user",
			Parameters:  objectSchema(map[string]interface{}{}, nil),
			Execute: func(ctx context.Context, _ map[string]interface{}) interface{} {
				invoices, err := records.GetInvoicesByUser(ctx, userID, recentLookupLimit)
				if err != nil {
					return errResult("Invoice lookup is temporarily unavailable")
				}
				return invoices
			},
		},
		{
			Name:        "getInvoiceByNumber",
			Description: "Get specific invoice details by invoice number",
			Parameters:  invoiceNumberSchema("The invoice number to look up"),
			Execute: func(ctx context.Context, args map[string]interface{}) interface{} {
				var in invoiceNumberArgs
				decodeArgs(args, &in)
				invoice, err := records.GetInvoiceByNumber(ctx, in.InvoiceNumber)
				if err != nil {
					return errResult("Invoice lookup is temporarily unavailable")
				}
				if invoice == nil {
					return errResult("Invoice not found")
				}
				return invoice
			},
		},
		{
			Name:        "getOrderInvoice",
			Description: "Get invoice for a specific order",
			Parameters:  orderNumberSchema("The order number to get invoice for"),
			Execute: func(ctx context.Context, args map[string]interface{}) interface{} {
				var in orderNumberArgs
				decodeArgs(args, &in)
				order, err := records.GetOrderByNumber(ctx, in.OrderNumber)
				if err != nil {
					return errResult("Invoice lookup is temporarily unavailable")
				}
				if order == nil {
					return errResult("Order not found")
				}
				invoice, err := records.GetInvoiceForOrder(ctx, in.OrderNumber)
				if err != nil {
					return errResult("Invoice lookup is temporarily unavailable")
				}
				if invoice == nil {
					return errResult("Invoice not found for this order")
				}
				return invoice
			},
		},
		{
			Name:        "checkPaymentStatus",
			Description: "Check payment status for an invoice",
			Parameters:  invoiceNumberSchema("The invoice number to check"),
			Execute: func(ctx context.Context, args map[string]interface{}) interface{} {
				var in invoiceNumberArgs
				decodeArgs(args, &in)
				invoice, err := records.GetInvoiceByNumber(ctx, in.InvoiceNumber)
				if err != nil {
					return errResult("Invoice lookup is temporarily unavailable")
				}
				if invoice == nil {
					return errResult("Invoice not found")
				}
				return map[string]interface{}{
					"invoiceNumber": invoice.InvoiceNumber,
					"status":        invoice.Status,
					"amount":        invoice.Amount,
					"dueDate":       invoice.DueDate,
					"paidAt":        invoice.PaidAt,
					"paymentMethod": invoice.PaymentMethod,
				}
			},
		},
	}
}
