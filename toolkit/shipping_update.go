package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/driftwood-ai/convoy"
	"github.com/driftwood-ai/convoy/schema"
	"github.com/google/uuid"
)

var _ convoy.TypedTool[*ShippingUpdateInput] = &ShippingUpdateTool{}

type ShippingUpdateInput struct {
	IdempotencyKey string `json:"idempotency_key"`
	RequestID      string `json:"request_id"`
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	Note           string `json:"note,omitempty"`
}

type ShippingUpdateToolOptions struct {
	// Store overrides the default in-memory idempotency store.
	Store IdempotencyStore `json:"-"`
}

// IdempotencyStore remembers the result recorded for an idempotency key.
type IdempotencyStore interface {
	// Get returns the stored entry for a key, if any.
	Get(key string) (*IdempotencyEntry, bool)

	// Put stores an entry under a key.
	Put(key string, entry *IdempotencyEntry)
}

// IdempotencyEntry is one recorded write, keyed by idempotency key.
type IdempotencyEntry struct {
	RequestID string
	Result    string
}

// MemoryIdempotencyStore is the default in-memory IdempotencyStore.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*IdempotencyEntry
}

// NewMemoryIdempotencyStore returns an empty store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]*IdempotencyEntry)}
}

func (s *MemoryIdempotencyStore) Get(key string) (*IdempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *MemoryIdempotencyStore) Put(key string, entry *IdempotencyEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
}

// ShippingUpdateTool records a shipping status change for an order. It is a
// write-type handler: callers must pass an idempotency key and request id,
// validated before any mutation. Re-submitting a known key returns the
// previously stored result without repeating the effect.
type ShippingUpdateTool struct {
	store   IdempotencyStore
	mu      sync.Mutex
	applied int
}

// NewShippingUpdateTool creates a new shipping update tool.
func NewShippingUpdateTool(options ShippingUpdateToolOptions) *ShippingUpdateTool {
	store := options.Store
	if store == nil {
		store = NewMemoryIdempotencyStore()
	}
	return &ShippingUpdateTool{store: store}
}

func (t *ShippingUpdateTool) Name() string {
	return "shipping_update"
}

func (t *ShippingUpdateTool) Description() string {
	return "Updates the shipping status of an order. Requires 'idempotency_key', 'request_id', 'order_id', and 'status' parameters. Re-submitting the same idempotency_key returns the original result without repeating the update."
}

func (t *ShippingUpdateTool) Schema() schema.Schema {
	minKeyLength := 8
	return schema.Schema{
		Type:     "object",
		Required: []string{"idempotency_key", "request_id", "order_id", "status"},
		Properties: map[string]*schema.Property{
			"idempotency_key": {
				Type:        "string",
				Description: "Caller-supplied key that deduplicates retries",
				MinLength:   &minKeyLength,
			},
			"request_id": {
				Type:        "string",
				Description: "Identifier of the originating request",
			},
			"order_id": {
				Type:        "string",
				Description: "Order identifier, e.g. ord-2001",
				Pattern:     "^ord-[0-9]+$",
			},
			"status": {
				Type:        "string",
				Description: "New shipping status",
				Enum:        []string{"packed", "shipped", "delivered"},
			},
			"note": {
				Type:        "string",
				Description: "Optional note attached to the update",
			},
		},
	}
}

func (t *ShippingUpdateTool) Annotations() convoy.ToolAnnotations {
	return convoy.ToolAnnotations{
		Title:          "Shipping Update",
		IdempotentHint: true,
	}
}

type shippingUpdateOutput struct {
	EventID   string `json:"event_id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
	Replayed  bool   `json:"replayed,omitempty"`
}

func (t *ShippingUpdateTool) Call(ctx context.Context, input *ShippingUpdateInput) (*convoy.ToolResult, error) {
	if input.IdempotencyKey == "" {
		return convoy.NewToolResultError("Error: No idempotency_key provided."), nil
	}
	if input.RequestID == "" {
		return convoy.NewToolResultError("Error: No request_id provided."), nil
	}

	if entry, ok := t.store.Get(input.IdempotencyKey); ok {
		if entry.RequestID != input.RequestID {
			return convoy.NewToolResultError(fmt.Sprintf(
				"Error: idempotency_key already used by request %s", entry.RequestID)), nil
		}
		var replay shippingUpdateOutput
		if err := json.Unmarshal([]byte(entry.Result), &replay); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stored result: %w", err)
		}
		replay.Replayed = true
		replayed, err := json.Marshal(replay)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal replayed result: %w", err)
		}
		return convoy.NewToolResultText(string(replayed)), nil
	}

	t.mu.Lock()
	t.applied++
	t.mu.Unlock()

	output, err := json.Marshal(shippingUpdateOutput{
		EventID:   uuid.NewString(),
		OrderID:   input.OrderID,
		Status:    input.Status,
		RequestID: input.RequestID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shipping update result: %w", err)
	}
	t.store.Put(input.IdempotencyKey, &IdempotencyEntry{
		RequestID: input.RequestID,
		Result:    string(output),
	})
	return convoy.NewToolResultText(string(output)), nil
}

// AppliedUpdates reports how many updates actually took effect, replays
// excluded.
func (t *ShippingUpdateTool) AppliedUpdates() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applied
}
