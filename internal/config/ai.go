package config

import "os"

// GeminiModels defines which Gemini models to use for grading tasks
type GeminiModels struct {
	// Suggest is for per-answer grade suggestions (interactive, needs to be fast)
	Suggest string `json:"suggest"`

	// BatchSuggest is for whole-attempt suggestion passes (quality over speed)
	BatchSuggest string `json:"batchSuggest"`
}

// AIConfig holds all AI-related configuration
type AIConfig struct {
	APIKey    string       `json:"-"` // Never serialize
	BaseURL   string       `json:"baseUrl"`
	Models    GeminiModels `json:"models"`
	TimeoutMS int          `json:"timeoutMs"`
}

// DefaultAIConfig returns the default AI configuration
func DefaultAIConfig() *AIConfig {
	return &AIConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		BaseURL: "https://generativelanguage.googleapis.com/v1beta/models",
		Models: GeminiModels{
			Suggest:      getEnvOrDefault("GEMINI_MODEL_SUGGEST", "gemini-2.5-flash"),
			BatchSuggest: getEnvOrDefault("GEMINI_MODEL_BATCH", "gemini-2.0-flash"),
		},
		TimeoutMS: 15000,
	}
}

// IsEnabled returns true if the AI API is configured
func (c *AIConfig) IsEnabled() bool {
	return c.APIKey != ""
}

// ModelEndpoint returns the full endpoint for a given model
func (c *AIConfig) ModelEndpoint(model string) string {
	return c.BaseURL + "/" + model + ":generateContent"
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
