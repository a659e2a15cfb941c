package ai

// Models is the curated model list offered per vendor tag.
func Models() map[string][]string {
	return map[string][]string{
		VendorGoogle: {
			"gemini-3-pro-preview",
			"gemini-3-flash-preview",
			"gemini-2.5-pro",
			"gemini-2.5-flash",
			"gemini-2.5-flash-lite",
			"gemini-2.0-flash",
			"gemini-2.0-flash-lite",
		},
		VendorOpenAI: {
			"gpt-4o",
			"gpt-4o-mini",
			"gpt-4-turbo",
			"gpt-4",
			"gpt-3.5-turbo",
			"o1-preview",
			"o1-mini",
		},
		VendorAnthropic: {
			"claude-3-5-sonnet-20241022",
			"claude-3-5-haiku-20241022",
			"claude-3-opus-20240229",
			"claude-3-sonnet-20240229",
		},
		VendorOllama: {
			"llama3.2",
			"llama3.1",
			"mistral",
			"codellama",
			"phi3",
			"qwen2.5",
		},
	}
}
