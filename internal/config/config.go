package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Ledger    LedgerConfig
	BlobStore BlobStoreConfig
	Wallet    WalletConfig
	RateLimit RateLimitConfig
	Upload    UploadConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

// LedgerConfig points at the access-control contract. RPCURL, OperatorKey and
// ContractAddress must all be real values for the chain-backed adapter to be
// selected; otherwise the in-memory simulation is used.
type LedgerConfig struct {
	RPCURL          string
	ContractAddress string
	OperatorKey     string
	ChainID         int64
}

// BlobStoreConfig selects between the IPFS-backed store (project credentials
// present) and the local-disk simulation rooted at LocalDir.
type BlobStoreConfig struct {
	APIURL        string
	ProjectID     string
	ProjectSecret string
	LocalDir      string
}

type WalletConfig struct {
	MasterSecret string
	CacheSize    int
	CacheTTL     time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

type UploadConfig struct {
	MaxBytes     int64
	AllowedTypes []string
}

// MaxUploadBytes caps a single uploaded file (50MB).
const MaxUploadBytes = 50 << 20

// allowedContentTypes is the fixed upload allow-list.
var allowedContentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
	"image/png",
	"image/jpeg",
	"image/gif",
	"application/zip",
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5000")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "docuchain")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("JWT_ACCESS_TOKEN_TTL", 1440)
	viper.SetDefault("LEDGER_CHAIN_ID", 1337)
	viper.SetDefault("IPFS_API_URL", "https://ipfs.infura.io:5001")
	viper.SetDefault("BLOB_LOCAL_DIR", "./uploads/ipfs-sim")
	viper.SetDefault("WALLET_CACHE_SIZE", 1024)
	viper.SetDefault("WALLET_CACHE_TTL_MINUTES", 0)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_RPS", 10)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      getEnvOrPanic("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		JWT: JWTConfig{
			Secret:         getEnvOrPanic("JWT_SECRET"),
			AccessTokenTTL: time.Duration(viper.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
		},
		Ledger: LedgerConfig{
			RPCURL:          viper.GetString("LEDGER_RPC_URL"),
			ContractAddress: viper.GetString("LEDGER_CONTRACT_ADDRESS"),
			OperatorKey:     os.Getenv("LEDGER_OPERATOR_KEY"),
			ChainID:         viper.GetInt64("LEDGER_CHAIN_ID"),
		},
		BlobStore: BlobStoreConfig{
			APIURL:        viper.GetString("IPFS_API_URL"),
			ProjectID:     viper.GetString("IPFS_PROJECT_ID"),
			ProjectSecret: os.Getenv("IPFS_PROJECT_SECRET"),
			LocalDir:      viper.GetString("BLOB_LOCAL_DIR"),
		},
		Wallet: WalletConfig{
			MasterSecret: getEnvOrPanic("WALLET_MASTER_SECRET"),
			CacheSize:    viper.GetInt("WALLET_CACHE_SIZE"),
			CacheTTL:     time.Duration(viper.GetInt("WALLET_CACHE_TTL_MINUTES")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Upload: UploadConfig{
			MaxBytes:     MaxUploadBytes,
			AllowedTypes: allowedContentTypes,
		},
	}

	if len(cfg.JWT.Secret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 bytes; use a stronger value in production")
	}

	return cfg, nil
}

// isPlaceholder reports whether a credential-shaped value should be treated
// as absent: empty, template leftovers ("your_infura_project_id") or the
// common changeme marker.
func isPlaceholder(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	if s == "" || s == "changeme" {
		return true
	}
	return strings.HasPrefix(s, "your_") || strings.HasPrefix(s, "your-") ||
		strings.HasPrefix(s, "<") || strings.HasPrefix(s, "xxx")
}

// LedgerConfigured reports whether the chain-backed ledger adapter can be
// used: RPC endpoint, operator key and contract address all real.
func (c *Config) LedgerConfigured() bool {
	return !isPlaceholder(c.Ledger.RPCURL) &&
		!isPlaceholder(c.Ledger.OperatorKey) &&
		!isPlaceholder(c.Ledger.ContractAddress)
}

// BlobConfigured reports whether the IPFS-backed blob store can be used:
// project credentials real.
func (c *Config) BlobConfigured() bool {
	return !isPlaceholder(c.BlobStore.ProjectID) && !isPlaceholder(c.BlobStore.ProjectSecret)
}

// DevelopmentMode is derived once at startup from adapter availability and
// relaxes the reconciliation layer's ledger failure policy. It is passed to
// consumers at construction, never re-read per call.
func (c *Config) DevelopmentMode() bool {
	return !c.LedgerConfigured() || !c.BlobConfigured()
}

// IsDevelopmentEnv gates error detail in HTTP responses.
func (c *Config) IsDevelopmentEnv() bool {
	return strings.EqualFold(c.Server.Environment, "development")
}

// ContentTypeAllowed checks the upload allow-list.
func (c *Config) ContentTypeAllowed(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, a := range c.Upload.AllowedTypes {
		if ct == a {
			return true
		}
	}
	return false
}

func getEnvOrPanic(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("environment variable %s is required", key)
	}
	return v
}
