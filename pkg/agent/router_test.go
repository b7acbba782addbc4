package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crewdesk/crewdesk/pkg/llm"
	"github.com/crewdesk/crewdesk/pkg/types"
)

// stubGenerator is a function-field fake for the text generator.
type stubGenerator struct {
	calls   int
	lastReq *llm.Request
	fn      func(req *llm.Request) (*llm.Result, error)
}

func (s *stubGenerator) Generate(_ context.Context, req *llm.Request) (*llm.Result, error) {
	s.calls++
	s.lastReq = req
	return s.fn(req)
}

func TestRouter_KeywordRouting(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    types.AgentCategory
	}{
		{"order keyword", "track my shipment", types.CategoryOrder},
		{"billing keyword", "I was charged twice", types.CategoryBilling},
		{"both keywords, order wins", "Where's my order invoice?", types.CategoryOrder},
		{"no keywords", "What products do you sell?", types.CategoryGeneral},
		{"empty message", "", types.CategoryGeneral},
		{"uppercase normalized", "TRACK MY PACKAGE", types.CategoryOrder},
		{"keyword inside word", "prepayment question", types.CategoryBilling},
		{"refund", "I want a refund for this", types.CategoryBilling},
		{"delivery", "when is the delivery arriving", types.CategoryOrder},
	}

	r := NewRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Route(context.Background(), tt.message, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouter_NeverReturnsRouterCategory(t *testing.T) {
	r := NewRouter()
	for _, message := range []string{"", "router", "route me somewhere", "hello"} {
		got := r.Route(context.Background(), message, nil)
		assert.NotEqual(t, types.CategoryRouter, got)
	}
}

func TestRouter_CustomKeywords(t *testing.T) {
	r := NewRouter(
		WithOrderKeywords([]string{"parcel"}),
		WithBillingKeywords([]string{"rechnung"}),
	)

	assert.Equal(t, types.CategoryOrder, r.Route(context.Background(), "where is my parcel", nil))
	assert.Equal(t, types.CategoryBilling, r.Route(context.Background(), "send the rechnung", nil))
	// Default keywords are replaced, not merged.
	assert.Equal(t, types.CategoryGeneral, r.Route(context.Background(), "track my shipment", nil))
}

func TestRouter_ClassifierRefinesKeywordMisses(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  types.AgentCategory
	}{
		{"order token", "ORDER", types.CategoryOrder},
		{"billing token", "BILLING", types.CategoryBilling},
		{"general token", "GENERAL", types.CategoryGeneral},
		{"lowercase reply", "billing", types.CategoryBilling},
		{"token embedded in prose", "The answer is ORDER.", types.CategoryOrder},
		{"garbage reply", "I cannot classify this", types.CategoryGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := &stubGenerator{fn: func(*llm.Request) (*llm.Result, error) {
				return &llm.Result{Content: tt.reply}, nil
			}}
			r := NewRouter(WithClassifier(classifier))

			got := r.Route(context.Background(), "something without keywords", nil)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, classifier.calls)
		})
	}
}

func TestRouter_ClassifierSkippedOnKeywordHit(t *testing.T) {
	classifier := &stubGenerator{fn: func(*llm.Request) (*llm.Result, error) {
		return &llm.Result{Content: "BILLING"}, nil
	}}
	r := NewRouter(WithClassifier(classifier))

	got := r.Route(context.Background(), "track my shipment", nil)
	assert.Equal(t, types.CategoryOrder, got)
	assert.Zero(t, classifier.calls, "keyword hits must not consult the classifier")
}

func TestRouter_ClassifierErrorDefaultsToGeneral(t *testing.T) {
	classifier := &stubGenerator{fn: func(*llm.Request) (*llm.Result, error) {
		return nil, &llm.GenerationError{Err: errors.New("quota exceeded")}
	}}
	r := NewRouter(WithClassifier(classifier))

	got := r.Route(context.Background(), "something without keywords", nil)
	assert.Equal(t, types.CategoryGeneral, got)
}

func TestRouter_ClassifierSkippedForEmptyMessage(t *testing.T) {
	classifier := &stubGenerator{fn: func(*llm.Request) (*llm.Result, error) {
		return &llm.Result{Content: "ORDER"}, nil
	}}
	r := NewRouter(WithClassifier(classifier))

	got := r.Route(context.Background(), "   ", nil)
	assert.Equal(t, types.CategoryGeneral, got)
	assert.Zero(t, classifier.calls)
}
