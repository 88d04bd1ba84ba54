package config

// GoogleConfig carries the OAuth2 client settings for the Google
// Classroom driver.
type GoogleConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleRedirectURL() string
}

type Google struct{}

var _ GoogleConfig = Google{}

func (Google) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (Google) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

func (Google) GetGoogleRedirectURL() string {
	return GetEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/oauth/callback")
}
