package config

// AIConfig carries the study-assistant model settings.
type AIConfig interface {
	GetOpenAIKey() string
	GetOpenAIModel() string
}

type AI struct{}

var _ AIConfig = AI{}

func (AI) GetOpenAIKey() string {
	return GetEnv("OPENAI_API_KEY", "")
}

func (AI) GetOpenAIModel() string {
	return GetEnv("OPENAI_MODEL", "")
}
