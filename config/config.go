package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/raine/skinlog-bot/internal/i18n"
)

const (
	AppName     = "skinlog-bot"
	EnvFileName = "config.env"
)

// Analysis providers selectable with SKINLOG_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config is the bot configuration read from the environment.
type Config struct {
	BotToken     string
	AdminID      int64
	Provider     string
	GeminiAPIKey string
	OpenAIAPIKey string
	DBPath       string
	CacheEnabled bool // off unless SKINLOG_CACHE is true
	CatalogPath  string
	DefaultLang  i18n.Language
	OpenAccess   bool
	SessionTTL   time.Duration // zero means the maintenance default
}

// Dir returns the application's config directory path.
func Dir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configBase, AppName), nil
}

// FilePath returns the full path to the config file.
func FilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, EnvFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configPath, err := FilePath()
	if err != nil {
		return
	}
	_ = godotenv.Load(configPath)
}

// WriteEnvFile writes values to the config file with 0600 permissions since
// it contains secrets. Returns the path written.
func WriteEnvFile(values map[string]string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	configPath := filepath.Join(dir, EnvFileName)

	content, err := godotenv.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(content+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configPath, nil
}

func provider() string {
	p := strings.ToLower(strings.TrimSpace(os.Getenv("SKINLOG_PROVIDER")))
	if p == "" {
		return ProviderGemini
	}
	return p
}

// CheckRequired returns the names of required variables that are not set.
// The API key requirement follows the selected provider.
func CheckRequired() []string {
	required := []string{"BOT_TOKEN", "ADMIN_TELEGRAM_ID"}
	if provider() == ProviderOpenAI {
		required = append(required, "OPENAI_API_KEY")
	} else {
		required = append(required, "GEMINI_API_KEY")
	}

	var missing []string
	for _, v := range required {
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

func boolEnv(name string, def bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false: %w", name, err)
	}
	return b, nil
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	if missing := CheckRequired(); len(missing) > 0 {
		return nil, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	cfg := &Config{
		BotToken:     os.Getenv("BOT_TOKEN"),
		Provider:     provider(),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		DBPath:       os.Getenv("SKINLOG_DB_PATH"),
		CatalogPath:  os.Getenv("SKINLOG_CATALOG_PATH"),
		DefaultLang:  i18n.Default,
	}
	if cfg.Provider != ProviderGemini && cfg.Provider != ProviderOpenAI {
		return nil, fmt.Errorf("SKINLOG_PROVIDER must be %s or %s, got %q", ProviderGemini, ProviderOpenAI, cfg.Provider)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "skinlog.db"
	}

	adminID, err := strconv.ParseInt(os.Getenv("ADMIN_TELEGRAM_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID must be a valid integer: %w", err)
	}
	cfg.AdminID = adminID

	if cfg.CacheEnabled, err = boolEnv("SKINLOG_CACHE", false); err != nil {
		return nil, err
	}
	if cfg.OpenAccess, err = boolEnv("SKINLOG_OPEN_ACCESS", false); err != nil {
		return nil, err
	}

	if v := os.Getenv("SKINLOG_DEFAULT_LANG"); v != "" {
		lang := i18n.Language(strings.ToLower(v))
		if !lang.Valid() {
			return nil, fmt.Errorf("SKINLOG_DEFAULT_LANG must be ko or en, got %q", v)
		}
		cfg.DefaultLang = lang
	}

	if v := os.Getenv("SKINLOG_SESSION_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SKINLOG_SESSION_TTL must be a duration: %w", err)
		}
		cfg.SessionTTL = ttl
	}

	return cfg, nil
}
