package personas

import (
	"github.com/google/uuid"

	"github.com/voicelab/scriptloop/internal/domain"
)

// catalog is the fixed fallback set used when the generation capability is
// unavailable. Loaded once; Catalog hands out copies, never the originals.
var catalog = []domain.Persona{
	{
		Name:               "Sarah Mitchell",
		Age:                38,
		Occupation:         "retail manager",
		MonthlyIncome:      3400,
		DebtAmount:         6200,
		MonthsBehind:       4,
		DefaultReason:      domain.ReasonJobLoss,
		CommunicationStyle: domain.StyleCooperative,
		NegotiationStyle:   "open to options",
		Objections:         []string{"I can only afford small payments", "I need the plan in writing first"},
		FinancialSituation: "Back at work after a layoff; catching up on rent before anything else.",
		WillingnessToPay:   0.7,
	},
	{
		Name:               "Derek Vaughn",
		Age:                45,
		Occupation:         "construction foreman",
		MonthlyIncome:      4100,
		DebtAmount:         9800,
		MonthsBehind:       6,
		DefaultReason:      domain.ReasonDispute,
		CommunicationStyle: domain.StyleAggressive,
		NegotiationStyle:   "combative, demands proof",
		Objections:         []string{"The amount is wrong", "I never agreed to those fees"},
		FinancialSituation: "Steady income but refuses to pay what he considers inflated charges.",
		WillingnessToPay:   0.3,
	},
	{
		Name:               "Amara Osei",
		Age:                31,
		Occupation:         "home health aide",
		MonthlyIncome:      2300,
		DebtAmount:         3100,
		MonthsBehind:       2,
		DefaultReason:      domain.ReasonMedical,
		CommunicationStyle: domain.StyleAnxious,
		NegotiationStyle:   "apologetic, easily overwhelmed",
		Objections:         []string{"The hospital bills came first", "I don't know what I can promise"},
		FinancialSituation: "Recovering from surgery; hours cut during recovery.",
		WillingnessToPay:   0.6,
	},
	{
		Name:               "Gene Abrams",
		Age:                58,
		Occupation:         "taxi driver",
		MonthlyIncome:      2800,
		DebtAmount:         7400,
		MonthsBehind:       8,
		DefaultReason:      domain.ReasonOverextended,
		CommunicationStyle: domain.StyleEvasive,
		NegotiationStyle:   "deflects, promises to call back",
		Objections:         []string{"Now is not a good time", "I need to talk to my wife first"},
		FinancialSituation: "Multiple debts; juggling minimum payments across cards.",
		WillingnessToPay:   0.4,
	},
	{
		Name:               "Lin Zhao",
		Age:                26,
		Occupation:         "graduate student",
		MonthlyIncome:      1600,
		DebtAmount:         2200,
		MonthsBehind:       1,
		DefaultReason:      domain.ReasonOversight,
		CommunicationStyle: domain.StyleSkeptical,
		NegotiationStyle:   "asks for everything in writing",
		Objections:         []string{"How do I know this call is legitimate?", "I thought autopay was on"},
		FinancialSituation: "Stipend covers essentials; missed payment was an autopay failure.",
		WillingnessToPay:   0.9,
	},
}

// Catalog returns up to count personas from the built-in catalog, each with a
// fresh id. Cycles through the catalog when count exceeds its size.
func Catalog(count int) []domain.Persona {
	out := make([]domain.Persona, 0, count)
	for i := 0; i < count; i++ {
		p := catalog[i%len(catalog)]
		p.Objections = append([]string(nil), p.Objections...)
		p.ID = "persona_" + uuid.New().String()[:8]
		out = append(out, p)
	}
	return out
}
