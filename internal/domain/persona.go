package domain

import (
	"fmt"
	"strings"
)

// DefaultReason categorizes why a persona fell behind on payments.
type DefaultReason string

const (
	ReasonJobLoss      DefaultReason = "job_loss"
	ReasonMedical      DefaultReason = "medical"
	ReasonOverextended DefaultReason = "overextended"
	ReasonDispute      DefaultReason = "dispute"
	ReasonOversight    DefaultReason = "oversight"
)

// CommunicationStyle describes how a persona talks to collectors.
type CommunicationStyle string

const (
	StyleCooperative CommunicationStyle = "cooperative"
	StyleEvasive     CommunicationStyle = "evasive"
	StyleAggressive  CommunicationStyle = "aggressive"
	StyleAnxious     CommunicationStyle = "anxious"
	StyleSkeptical   CommunicationStyle = "skeptical"
)

// Persona is a synthetic customer profile used to drive one simulated
// conversation. Immutable once generated; owned by the round that made it.
type Persona struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Age                int                `json:"age"`
	Occupation         string             `json:"occupation"`
	MonthlyIncome      float64            `json:"monthly_income"`
	DebtAmount         float64            `json:"debt_amount"`
	MonthsBehind       int                `json:"months_behind"`
	DefaultReason      DefaultReason      `json:"default_reason"`
	CommunicationStyle CommunicationStyle `json:"communication_style"`
	NegotiationStyle   string             `json:"negotiation_style"`
	Objections         []string           `json:"objections"`
	FinancialSituation string             `json:"financial_situation"`
	WillingnessToPay   float64            `json:"willingness_to_pay"` // 0.0-1.0
}

// Validate checks the numeric ranges a generated persona must satisfy.
func (p Persona) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("persona has no name")
	}
	if p.MonthlyIncome < 0 {
		return fmt.Errorf("persona %s: negative income %.2f", p.Name, p.MonthlyIncome)
	}
	if p.DebtAmount < 0 {
		return fmt.Errorf("persona %s: negative debt amount %.2f", p.Name, p.DebtAmount)
	}
	if p.WillingnessToPay < 0 || p.WillingnessToPay > 1 {
		return fmt.Errorf("persona %s: willingness_to_pay %.2f out of [0,1]", p.Name, p.WillingnessToPay)
	}
	return nil
}

// RoleplayPrompt renders the persona as a system prompt for the customer side
// of a simulated call.
func (p Persona) RoleplayPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are roleplaying as %s, a %d year old %s who is %d months behind on a loan of $%.2f.\n",
		p.Name, p.Age, p.Occupation, p.MonthsBehind, p.DebtAmount)
	fmt.Fprintf(&b, "Financial situation: %s\n", p.FinancialSituation)
	fmt.Fprintf(&b, "Reason for falling behind: %s\n", p.DefaultReason)
	fmt.Fprintf(&b, "Communication style: %s. Negotiation approach: %s.\n", p.CommunicationStyle, p.NegotiationStyle)
	if len(p.Objections) > 0 {
		fmt.Fprintf(&b, "Objections you tend to raise: %s\n", strings.Join(p.Objections, "; "))
	}
	b.WriteString("Respond as this character would to a debt collection call. Stay in character. " +
		"Do not reveal your willingness-to-pay number; let it shape your answers naturally.")
	return b.String()
}
