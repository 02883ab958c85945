package chat

import "google.golang.org/genai"

// Generation defaults applied to every chat handle.
const maxOutputTokens = 8192

// generateConfig builds the GenerateContentConfig for a new chat handle from
// the session options. Safety settings are fully permissive: the caller owns
// content policy, and partial refusals mid-way through a multi-segment
// exchange would corrupt the threaded continuity.
func (s *Session) generateConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](1),
		TopP:             genai.Ptr[float32](0.95),
		TopK:             genai.Ptr[float32](40),
		MaxOutputTokens:  maxOutputTokens,
		ResponseMIMEType: s.opts.ResponseMIMEType,
		ResponseSchema:   s.opts.ResponseSchema,
		Tools:            s.opts.Tools,
		ThinkingConfig:   s.opts.ThinkingConfig,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}
	if s.opts.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: s.opts.SystemInstruction}},
		}
	}
	return cfg
}
