package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Local store backends.
const (
	LocalStoreRedis  = "redis"
	LocalStoreSQLite = "sqlite"
	LocalStoreMemory = "memory"
)

type AppConfig struct {
	ListenAddr     string
	AllowedOrigins []string

	RedisURL   string
	LocalStore string
	SQLitePath string

	RemoteBaseURL string
	RemoteTimeout time.Duration

	AutoPlayFullMoves  int
	OpponentReplyDelay time.Duration
	RefreshInterval    time.Duration
	RandomMode         bool

	DatasetFile string
	MessagesDir string

	// CLI identity: device key for the local store and remote bearer token.
	Device string
	Token  string

	// exercise-api
	APIListenAddr string
	DatabaseURL   string
	APITokens     map[string]string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:         ":8080",
		SQLitePath:         "trainer.db",
		RemoteTimeout:      5 * time.Second,
		OpponentReplyDelay: 400 * time.Millisecond,
		RefreshInterval:    30 * time.Second,
		APIListenAddr:      ":8090",
		Device:             "cli",
		APITokens:          map[string]string{},
	}

	if v := strings.TrimSpace(os.Getenv("TRAINER_LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("TRAINER_ALLOWED_ORIGINS")); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.LocalStore = strings.ToLower(strings.TrimSpace(os.Getenv("LOCAL_STORE")))
	if v := strings.TrimSpace(os.Getenv("SQLITE_PATH")); v != "" {
		cfg.SQLitePath = v
	}
	if cfg.LocalStore == "" {
		if cfg.RedisURL != "" {
			cfg.LocalStore = LocalStoreRedis
		} else {
			cfg.LocalStore = LocalStoreSQLite
		}
	}

	cfg.RemoteBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("REMOTE_BASE_URL")), "/")
	if v := strings.TrimSpace(os.Getenv("REMOTE_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RemoteTimeout = time.Duration(n) * time.Millisecond
		}
	}

	// Training behaviour
	if v := strings.TrimSpace(os.Getenv("AUTOPLAY_FULL_MOVES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.AutoPlayFullMoves = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("OPPONENT_REPLY_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.OpponentReplyDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("REFRESH_INTERVAL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RefreshInterval = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("RANDOM_MODE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RandomMode = b
		}
	}

	cfg.DatasetFile = strings.TrimSpace(os.Getenv("DATASET_FILE"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	if v := strings.TrimSpace(os.Getenv("TRAINER_DEVICE")); v != "" {
		cfg.Device = v
	}
	cfg.Token = strings.TrimSpace(os.Getenv("TRAINER_TOKEN"))

	if v := strings.TrimSpace(os.Getenv("API_LISTEN_ADDR")); v != "" {
		cfg.APIListenAddr = v
	}
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if v := strings.TrimSpace(os.Getenv("API_TOKENS")); v != "" {
		cfg.APITokens = parseTokens(v)
	}

	switch cfg.LocalStore {
	case LocalStoreRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required for LOCAL_STORE=redis")
		}
	case LocalStoreSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLITE_PATH is required for LOCAL_STORE=sqlite")
		}
	case LocalStoreMemory:
	default:
		return nil, errors.New("LOCAL_STORE must be one of redis, sqlite, memory")
	}

	return cfg, nil
}

// parseTokens reads "token:owner,token:owner".
func parseTokens(raw string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		token, owner, ok := strings.Cut(p, ":")
		token = strings.TrimSpace(token)
		owner = strings.TrimSpace(owner)
		if !ok || token == "" || owner == "" {
			continue
		}
		out[token] = owner
	}
	return out
}
