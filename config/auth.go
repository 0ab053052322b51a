package config

import "sync"

var (
	authOnce   sync.Once
	authConfig *AuthConfig
)

// AuthConfig configures the session token source. When Token is set a static
// token is used; otherwise the refresh-token exchange against TokenURL is.
type AuthConfig struct {
	TokenURL     string
	APIKey       string
	RefreshToken string
	Token        string
}

func GetAuthConfig() *AuthConfig {
	authOnce.Do(func() {
		loadEnv()

		authConfig = &AuthConfig{
			TokenURL:     getEnv("AUTH_TOKEN_URL", ""),
			APIKey:       getEnv("AUTH_API_KEY", ""),
			RefreshToken: getEnv("AUTH_REFRESH_TOKEN", ""),
			Token:        getEnv("AUTH_TOKEN", ""),
		}
	})
	return authConfig
}
