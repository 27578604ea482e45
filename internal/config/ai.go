package config

// AIConfig configures the question generator. An empty API key disables generation.
type AIConfig struct {
	APIKey    string `json:"-"`
	BaseURL   string `json:"baseUrl"`
	Model     string `json:"model"`
	TimeoutMS int    `json:"timeoutMs"`
}

func LoadAIConfig() AIConfig {
	return AIConfig{
		APIKey:    getEnv("GEMINI_API_KEY", ""),
		BaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/models"),
		Model:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		TimeoutMS: getEnvInt("GEMINI_TIMEOUT_MS", 60000),
	}
}

// IsEnabled returns true if the generation API is configured
func (c AIConfig) IsEnabled() bool {
	return c.APIKey != ""
}

// ModelEndpoint returns the generateContent endpoint for the configured model
func (c AIConfig) ModelEndpoint() string {
	return c.BaseURL + "/" + c.Model + ":generateContent"
}
