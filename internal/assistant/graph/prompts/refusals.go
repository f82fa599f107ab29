package prompts

// Blocked queries get deterministic refusals, never model output, and never
// see retrieved context or conversation history.
const (
	// PIIRefusal answers queries blocked for personally identifiable information.
	PIIRefusal = "I noticed your message contains sensitive personal information, " +
		"so I can't process it. Please remove details like phone numbers, " +
		"ID numbers, or account information and ask again."

	// ToxicityRefusal answers queries blocked for toxic content.
	ToxicityRefusal = "Your message was flagged for toxic content, so I can't " +
		"help with this request. Please rephrase it respectfully and try again."

	// GenerationApology is the degraded answer when the generation model is
	// unavailable; the pipeline always returns some answer.
	GenerationApology = "Sorry, I'm having trouble generating a response right " +
		"now. Please try again in a moment."
)
