package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment. Existing variables win and missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// ApplyEnv overrides secrets and deploy-time settings from the environment.
func ApplyEnv(cfg *Config) {
	setString(&cfg.Reddit.ClientID, "REDDIT_CLIENT_ID")
	setString(&cfg.Reddit.ClientSecret, "REDDIT_CLIENT_SECRET")
	setString(&cfg.Reddit.UserAgent, "REDDIT_USER_AGENT")

	switch cfg.Analysis.Provider {
	case ProviderOpenAI:
		setString(&cfg.Analysis.APIKey, "OPENAI_API_KEY")
		setString(&cfg.Analysis.Organization, "OPENAI_ORG")
	case ProviderAnthropic:
		setString(&cfg.Analysis.APIKey, "ANTHROPIC_API_KEY")
	case ProviderGemini:
		setString(&cfg.Analysis.APIKey, "GEMINI_API_KEY")
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Storage.Driver = DriverPostgres
		cfg.Storage.DSN = dsn
	}
	setString(&cfg.Storage.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Email.SMTPPass, "SMTP_PASS")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
