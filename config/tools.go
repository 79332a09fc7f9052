package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/driftwood-ai/convoy"
	"github.com/driftwood-ai/convoy/toolkit"
)

// ToolInitializer builds a tool from its scenario-level configuration.
type ToolInitializer func(config map[string]any) (convoy.Tool, error)

// HandlerRegistry is the static mapping from handler name to tool
// initializer, populated at startup. Scenario files reference handlers by
// name; nothing is loaded dynamically at dispatch time.
type HandlerRegistry struct {
	mu           sync.RWMutex
	initializers map[string]ToolInitializer
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{initializers: make(map[string]ToolInitializer)}
}

// DefaultHandlerRegistry returns a registry with the bundled handlers
// registered.
func DefaultHandlerRegistry() *HandlerRegistry {
	registry := NewHandlerRegistry()
	registry.MustRegister("fraud_risk_check", InitializeFraudCheckTool)
	registry.MustRegister("shipping_update", InitializeShippingUpdateTool)
	return registry
}

// Register adds a handler under a name. Registering the same name twice is
// an error.
func (r *HandlerRegistry) Register(name string, initializer ToolInitializer) error {
	if name == "" {
		return fmt.Errorf("handler name is required")
	}
	if initializer == nil {
		return fmt.Errorf("handler %q has a nil initializer", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.initializers[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	r.initializers[name] = initializer
	return nil
}

// MustRegister is Register for startup wiring; it panics on error.
func (r *HandlerRegistry) MustRegister(name string, initializer ToolInitializer) {
	if err := r.Register(name, initializer); err != nil {
		panic(err)
	}
}

// Resolve looks up a handler initializer by name.
func (r *HandlerRegistry) Resolve(name string) (ToolInitializer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	initializer, ok := r.initializers[name]
	return initializer, ok
}

// Names returns the registered handler names, sorted.
func (r *HandlerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.initializers))
	for name := range r.initializers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func convertToolConfig(config map[string]any, options any) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal tool config: %w", err)
	}
	if err := json.Unmarshal(configJSON, options); err != nil {
		return fmt.Errorf("failed to unmarshal tool config: %w", err)
	}
	return nil
}

// InitializeFraudCheckTool initializes the fraud_risk_check tool with the
// given configuration.
func InitializeFraudCheckTool(config map[string]any) (convoy.Tool, error) {
	var options toolkit.FraudCheckToolOptions
	if config != nil {
		if err := convertToolConfig(config, &options); err != nil {
			return nil, fmt.Errorf("failed to populate fraud_risk_check tool config: %w", err)
		}
	}
	return convoy.ToolAdapter(toolkit.NewFraudCheckTool(options)), nil
}

// InitializeShippingUpdateTool initializes the shipping_update tool with the
// given configuration.
func InitializeShippingUpdateTool(config map[string]any) (convoy.Tool, error) {
	var options toolkit.ShippingUpdateToolOptions
	if config != nil {
		if err := convertToolConfig(config, &options); err != nil {
			return nil, fmt.Errorf("failed to populate shipping_update tool config: %w", err)
		}
	}
	return convoy.ToolAdapter(toolkit.NewShippingUpdateTool(options)), nil
}
