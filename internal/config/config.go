package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreSQLite     = "sqlite"
	StorePostgres   = "postgres"
	StorePocketBase = "pocketbase"

	AuthLocal      = "local"
	AuthPocketBase = "pocketbase"
)

// Account is a locally configured registrant login.
type Account struct {
	Username     string
	Email        string
	Password     string
	Organisation string
}

type ServerConfig struct {
	Addr          string
	SecureCookies bool
	UploadDir     string
	MaxUploadMB   int
}

type StoreConfig struct {
	Driver          string
	DatabaseURL     string
	PocketBaseURL   string
	PocketBaseToken string
}

type RedisConfig struct {
	URL      string
	Password string
	LockTTL  time.Duration
}

// RegistrationConfig holds the quota rules and the gate policy.
type RegistrationConfig struct {
	MaxSoloEvents int
	MaxTeamEvents int
	// GateFailOpen admits registrations when the gate setting cannot be read.
	GateFailOpen bool
	LockTimeout  time.Duration
}

type AuthConfig struct {
	Provider   string
	AdminEmail string
	Accounts   []Account
	SessionTTL time.Duration
	// DefaultPassword is the password new PocketBase accounts are issued
	// with; logging in with it forces a password change.
	DefaultPassword string
}

type Config struct {
	Server       ServerConfig
	Store        StoreConfig
	Redis        RedisConfig
	Registration RegistrationConfig
	Auth         AuthConfig
	ItemsPerPage int
	Verbose      bool
}

// Load reads the configuration from the environment, after merging in any of
// the given dotenv files that exist. Variables already set win.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", f, err)
			}
		}
	}

	accounts, err := parseAccounts(getEnv("ACCOUNTS", ""))
	if err != nil {
		return nil, err
	}

	c := &Config{
		Server: ServerConfig{
			Addr:          getEnv("HTTP_ADDR", ":8080"),
			SecureCookies: getEnvBool("SECURE_COOKIES", false),
			UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
			MaxUploadMB:   getEnvInt("MAX_UPLOAD_MB", 5),
		},
		Store: StoreConfig{
			Driver:          getEnv("STORE_DRIVER", StoreSQLite),
			DatabaseURL:     getEnv("DATABASE_URL", "sportsmeet.db"),
			PocketBaseURL:   getEnv("POCKETBASE_URL", "http://localhost:8090"),
			PocketBaseToken: getEnv("POCKETBASE_TOKEN", ""),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			LockTTL:  getEnvDuration("REDIS_LOCK_TTL", 10*time.Second),
		},
		Registration: RegistrationConfig{
			MaxSoloEvents: getEnvInt("MAX_SOLO_EVENTS", 5),
			MaxTeamEvents: getEnvInt("MAX_TEAM_EVENTS", 3),
			GateFailOpen:  getEnvBool("REGISTRATION_GATE_FAIL_OPEN", false),
			LockTimeout:   getEnvDuration("REGISTRATION_LOCK_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			Provider:        getEnv("AUTH_PROVIDER", AuthLocal),
			AdminEmail:      strings.ToLower(getEnv("ADMIN_EMAIL", "admin@aifsm2025.in")),
			Accounts:        accounts,
			SessionTTL:      getEnvDuration("SESSION_TTL", 12*time.Hour),
			DefaultPassword: getEnv("AUTH_DEFAULT_PASSWORD", "changeme"),
		},
		ItemsPerPage: getEnvInt("ITEMS_PER_PAGE", 4),
		Verbose:      getEnvBool("VERBOSE", false),
	}
	return c, c.validate()
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreSQLite, StorePostgres, StorePocketBase:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of sqlite, postgres, pocketbase, got %q", c.Store.Driver)
	}
	switch c.Auth.Provider {
	case AuthLocal, AuthPocketBase:
	default:
		return fmt.Errorf("AUTH_PROVIDER must be local or pocketbase, got %q", c.Auth.Provider)
	}
	if c.Registration.MaxSoloEvents < 1 || c.Registration.MaxTeamEvents < 1 {
		return fmt.Errorf("event limits must be positive")
	}
	if c.ItemsPerPage < 1 {
		return fmt.Errorf("ITEMS_PER_PAGE must be positive")
	}
	return nil
}

// parseAccounts reads "username|email|password|organisation" entries separated by ';'.
func parseAccounts(raw string) ([]Account, error) {
	var accounts []Account
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) != 4 {
			return nil, fmt.Errorf("ACCOUNTS entry %q must have 4 fields", entry)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if parts[0] == "" || parts[2] == "" || parts[3] == "" {
			return nil, fmt.Errorf("ACCOUNTS entry %q needs username, password and organisation", entry)
		}
		accounts = append(accounts, Account{
			Username:     strings.ToLower(parts[0]),
			Email:        strings.ToLower(parts[1]),
			Password:     parts[2],
			Organisation: parts[3],
		})
	}
	return accounts, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}
