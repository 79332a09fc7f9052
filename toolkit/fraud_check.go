// Package toolkit provides the demo tool handlers used by the bundled
// scenarios: a read-only fraud risk check and a write-type shipping update.
package toolkit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/driftwood-ai/convoy"
	"github.com/driftwood-ai/convoy/schema"
)

var _ convoy.TypedTool[*FraudCheckInput] = &FraudCheckTool{}

// DefaultHighRiskAmount is the transaction amount above which risk is
// escalated regardless of other signals.
const DefaultHighRiskAmount = 5000.0

type FraudCheckInput struct {
	AccountID string  `json:"account_id"`
	Amount    float64 `json:"amount"`
	Channel   string  `json:"channel,omitempty"`
}

type FraudCheckToolOptions struct {
	HighRiskAmount float64 `json:"high_risk_amount,omitempty"`
}

// FraudCheckTool scores a transaction's fraud risk. Read-only: it performs
// no mutation and needs no idempotency key.
type FraudCheckTool struct {
	highRiskAmount float64
}

// NewFraudCheckTool creates a new fraud risk check tool.
func NewFraudCheckTool(options FraudCheckToolOptions) *FraudCheckTool {
	if options.HighRiskAmount <= 0 {
		options.HighRiskAmount = DefaultHighRiskAmount
	}
	return &FraudCheckTool{highRiskAmount: options.HighRiskAmount}
}

func (t *FraudCheckTool) Name() string {
	return "fraud_risk_check"
}

func (t *FraudCheckTool) Description() string {
	return "Scores the fraud risk of a transaction. Provide the 'account_id' and 'amount' parameters; 'channel' is optional and one of web, pos, or phone."
}

func (t *FraudCheckTool) Schema() schema.Schema {
	minAmount := 0.0
	return schema.Schema{
		Type:     "object",
		Required: []string{"account_id", "amount"},
		Properties: map[string]*schema.Property{
			"account_id": {
				Type:        "string",
				Description: "Account identifier, e.g. acct-1042",
				Pattern:     "^acct-[0-9]+$",
			},
			"amount": {
				Type:        "number",
				Description: "Transaction amount",
				Minimum:     &minAmount,
			},
			"channel": {
				Type:        "string",
				Description: "Channel the transaction arrived on",
				Enum:        []string{"web", "pos", "phone"},
			},
		},
	}
}

func (t *FraudCheckTool) Annotations() convoy.ToolAnnotations {
	return convoy.ToolAnnotations{
		Title:        "Fraud Risk Check",
		ReadOnlyHint: true,
	}
}

type fraudCheckOutput struct {
	AccountID string   `json:"account_id"`
	RiskLevel string   `json:"risk_level"`
	RiskScore float64  `json:"risk_score"`
	Signals   []string `json:"signals,omitempty"`
}

func (t *FraudCheckTool) Call(ctx context.Context, input *FraudCheckInput) (*convoy.ToolResult, error) {
	if input.AccountID == "" {
		return convoy.NewToolResultError("Error: No account_id provided."), nil
	}
	if input.Amount < 0 {
		return convoy.NewToolResultError("Error: Amount must not be negative."), nil
	}

	score := 0.0
	var signals []string
	if input.Amount >= t.highRiskAmount {
		score += 0.6
		signals = append(signals, "amount_above_threshold")
	} else if input.Amount >= t.highRiskAmount/2 {
		score += 0.3
		signals = append(signals, "amount_elevated")
	}
	if input.Channel == "phone" {
		score += 0.2
		signals = append(signals, "phone_channel")
	}

	level := "low"
	switch {
	case score >= 0.6:
		level = "high"
	case score >= 0.3:
		level = "medium"
	}

	output, err := json.Marshal(fraudCheckOutput{
		AccountID: input.AccountID,
		RiskLevel: level,
		RiskScore: score,
		Signals:   signals,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fraud check result: %w", err)
	}
	return convoy.NewToolResultText(string(output)), nil
}
