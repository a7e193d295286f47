package domain

// BaselineScript returns the built-in debt-collection script used when a run
// is started without an initial script. Nine sections covering introduction
// through closing, with keyword-triggered branching toward hardship handling
// when the customer signals they cannot pay.
func BaselineScript() *Script {
	return &Script{
		ID:      "base_debt_collection_script",
		Version: 1,
		Description: "Framework for debt collection calls: establish a repayment plan " +
			"while staying respectful of the customer's situation.",
		EntryID:    "introduction",
		FallbackID: "call_ended",
		Sections: map[string]Section{
			"introduction": {
				ID:   "introduction",
				Name: "Introduction",
				Content: "Hello, my name is [Agent Name] calling from [Company Name]. " +
					"Am I speaking with [Customer Name]? I'm calling regarding your loan account " +
					"ending in [Last 4 Digits], which is currently past due. Before we continue, " +
					"I need to inform you that this call may be recorded for quality assurance purposes.",
				Transitions: []Transition{{Target: "verification"}},
			},
			"verification": {
				ID:   "verification",
				Name: "Identity Verification",
				Content: "For security purposes, could you please verify your date of birth " +
					"and the last 4 digits of your SSN? Thank you for confirming your information.",
				Transitions: []Transition{{Target: "situation_assessment"}},
			},
			"situation_assessment": {
				ID:   "situation_assessment",
				Name: "Situation Assessment",
				Content: "I see that your account is [X] months past due with an outstanding balance " +
					"of $[Amount]. I understand that financial difficulties can happen to anyone. " +
					"Could you help me understand what has prevented you from making your payments?",
				Transitions: []Transition{
					{Trigger: "hardship", Target: "hardship_options"},
					{Trigger: "can't afford", Target: "hardship_options"},
					{Trigger: "lost my job", Target: "hardship_options"},
					{Target: "payment_discussion"},
				},
			},
			"payment_discussion": {
				ID:   "payment_discussion",
				Name: "Payment Discussion",
				Content: "Thank you for explaining your situation. We have several options to help you " +
					"get back on track. Would you be able to make a payment today? If so, how much " +
					"could you manage?",
				Transitions: []Transition{
					{Trigger: "can't", Target: "hardship_options"},
					{Trigger: "cannot", Target: "hardship_options"},
					{Target: "payment_plan"},
				},
			},
			"payment_plan": {
				ID:   "payment_plan",
				Name: "Payment Plan Setup",
				Content: "Based on what you've shared, I'd like to suggest a payment plan. " +
					"Option 1: smaller monthly amounts over a longer period. Option 2: a short-term " +
					"reduced plan followed by regular payments. Which option would work better for you?",
				Transitions: []Transition{
					{Trigger: "neither", Target: "hardship_options"},
					{Target: "confirmation"},
				},
			},
			"hardship_options": {
				ID:   "hardship_options",
				Name: "Hardship Options",
				Content: "I understand you're going through a difficult time. We have hardship programs " +
					"that might help: a temporary reduced payment plan, an interest rate reduction, or a " +
					"payment deferral for [X] months. Would any of these options help your situation?",
				Transitions: []Transition{
					{Trigger: "yes", Target: "payment_plan"},
					{Target: "escalation"},
				},
			},
			"escalation": {
				ID:   "escalation",
				Name: "Escalation",
				Content: "I understand our standard options may not work for your situation. I'd like to " +
					"connect you with our financial hardship specialist who has additional tools to assist " +
					"you. Would it be okay if I arrange a callback at a convenient time?",
				Transitions: []Transition{{Target: "confirmation"}},
			},
			"confirmation": {
				ID:   "confirmation",
				Name: "Confirmation",
				Content: "Let me confirm what we've agreed to today. You'll receive a confirmation email " +
					"within 24 hours with these details. Is there anything else I can help you with?",
				Transitions: []Transition{{Target: "closing"}},
			},
			"closing": {
				ID:   "closing",
				Name: "Closing",
				Content: "Thank you for your time today, [Customer Name]. We appreciate your commitment " +
					"to resolving this matter. If you have any questions about your plan, please call us " +
					"back. Have a good day.",
				Terminal: true,
				Resolved: true,
			},
			"call_ended": {
				ID:   "call_ended",
				Name: "Call Ended",
				Content: "I understand this isn't a good time. I'll make a note on your account and we " +
					"can pick this up another day. Thank you, [Customer Name].",
				Terminal: true,
			},
		},
	}
}
