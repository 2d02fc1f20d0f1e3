package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	Backend       BackendConfig
	Solana        SolanaConfig
	Oracle        OracleConfig
	Geo           GeoConfig
	Checkout      CheckoutConfig
	JWT           JWTConfig
	Admin         AdminConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Reconcile     ReconcileConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Solana.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadPassword reads only the argon2 settings, for tools that run without
// the full service environment.
func LoadPassword() (PasswordConfig, error) {
	var cfg PasswordConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return PasswordConfig{}, fmt.Errorf("parsing password config: %w", err)
	}
	return cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"WATCHFI_APP_ENV" required:"true"`
	Port         string   `envconfig:"WATCHFI_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"WATCHFI_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"WATCHFI_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"WATCHFI_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"WATCHFI_CORS_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"WATCHFI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"WATCHFI_DB_DSN"`
	Driver string `envconfig:"WATCHFI_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"WATCHFI_DB_HOST"`
	Port     int    `envconfig:"WATCHFI_DB_PORT" default:"5432"`
	User     string `envconfig:"WATCHFI_DB_USER"`
	Password string `envconfig:"WATCHFI_DB_PASSWORD"`
	Name     string `envconfig:"WATCHFI_DB_NAME"`
	SSLMode  string `envconfig:"WATCHFI_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"WATCHFI_SQLITE_PATH" default:"watchfi.db"`

	MaxOpenConns    int           `envconfig:"WATCHFI_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"WATCHFI_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"WATCHFI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WATCHFI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"WATCHFI_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WATCHFI_REDIS_URL"`
	Address      string        `envconfig:"WATCHFI_REDIS_ADDR"`
	Password     string        `envconfig:"WATCHFI_REDIS_PASSWORD"`
	DB           int           `envconfig:"WATCHFI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WATCHFI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WATCHFI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WATCHFI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WATCHFI_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WATCHFI_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// BackendConfig points at the catalogue/booking REST API.
type BackendConfig struct {
	BaseURL string        `envconfig:"WATCHFI_API_BASE_URL" required:"true"`
	APIKey  string        `envconfig:"WATCHFI_API_KEY"`
	Timeout time.Duration `envconfig:"WATCHFI_API_TIMEOUT" default:"10s"`
}

type SolanaConfig struct {
	Network        string        `envconfig:"WATCHFI_SOLANA_NETWORK" default:"devnet"`
	RPCURL         string        `envconfig:"WATCHFI_SOLANA_RPC_URL"`
	BusinessWallet string        `envconfig:"WATCHFI_BUSINESS_WALLET" required:"true"`
	USDCMint       string        `envconfig:"WATCHFI_USDC_MINT"`
	ConfirmTimeout time.Duration `envconfig:"WATCHFI_SOLANA_CONFIRM_TIMEOUT" default:"60s"`
	PollInterval   time.Duration `envconfig:"WATCHFI_SOLANA_POLL_INTERVAL" default:"1s"`
	// WalletKeypair is a base58 private key for a server-held wallet. Dev and kiosk use only.
	WalletKeypair   string `envconfig:"WATCHFI_SOLANA_WALLET_KEYPAIR"`
	WalletBridgeURL string `envconfig:"WATCHFI_WALLET_BRIDGE_URL"`
}

func (s SolanaConfig) IsMainnet() bool {
	network := strings.ToLower(strings.TrimSpace(s.Network))
	return network == SolanaNetworkMainnet || network == "mainnet-beta"
}

// USDCMintAddress returns the configured mint or the well-known mint for the network.
func (s SolanaConfig) USDCMintAddress() string {
	if mint := strings.TrimSpace(s.USDCMint); mint != "" {
		return mint
	}
	if s.IsMainnet() {
		return USDCMintMainnet
	}
	return USDCMintDevnet
}

func (s SolanaConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Network)) {
	case SolanaNetworkMainnet, "mainnet-beta", SolanaNetworkDevnet:
	default:
		return fmt.Errorf("%s must be %s or %s, got %q", EnvSolanaNetwork, SolanaNetworkMainnet, SolanaNetworkDevnet, s.Network)
	}
	if strings.TrimSpace(s.BusinessWallet) == "" {
		return fmt.Errorf("%s is required", EnvBusinessWallet)
	}
	return nil
}

type OracleConfig struct {
	BaseURL          string        `envconfig:"WATCHFI_ORACLE_BASE_URL" default:"https://api.coingecko.com/api/v3"`
	APIKey           string        `envconfig:"WATCHFI_ORACLE_API_KEY"`
	Timeout          time.Duration `envconfig:"WATCHFI_ORACLE_TIMEOUT" default:"5s"`
	CacheTTL         time.Duration `envconfig:"WATCHFI_ORACLE_CACHE_TTL" default:"30s"`
	FallbackSOL      string        `envconfig:"WATCHFI_FALLBACK_PRICE_SOL" default:"100"`
	FallbackUSDC     string        `envconfig:"WATCHFI_FALLBACK_PRICE_USDC" default:"1"`
	BreakerFailures  uint32        `envconfig:"WATCHFI_ORACLE_BREAKER_FAILURES" default:"3"`
	BreakerOpenDelay time.Duration `envconfig:"WATCHFI_ORACLE_BREAKER_OPEN" default:"30s"`
}

type GeoConfig struct {
	BaseURL  string        `envconfig:"WATCHFI_GEO_BASE_URL" default:"http://localhost:8090/v1"`
	Timeout  time.Duration `envconfig:"WATCHFI_GEO_TIMEOUT" default:"5s"`
	CacheTTL time.Duration `envconfig:"WATCHFI_GEO_CACHE_TTL" default:"24h"`
}

type CheckoutConfig struct {
	AdvanceDelay    time.Duration `envconfig:"WATCHFI_CHECKOUT_ADVANCE_DELAY" default:"2s"`
	SessionTTL      time.Duration `envconfig:"WATCHFI_SESSION_TTL" default:"720h"`
	SessionIdle     time.Duration `envconfig:"WATCHFI_SESSION_IDLE_EVICT" default:"2h"`
	SubmitWindow    time.Duration `envconfig:"WATCHFI_SUBMIT_RATE_WINDOW" default:"1m"`
	SubmitLimit     int           `envconfig:"WATCHFI_SUBMIT_RATE_LIMIT" default:"5"`
	ConfirmDeadline time.Duration `envconfig:"WATCHFI_CHECKOUT_SUBMIT_DEADLINE" default:"3m"`
}

type JWTConfig struct {
	Secret             string `envconfig:"WATCHFI_JWT_SECRET" required:"true"`
	Issuer             string `envconfig:"WATCHFI_JWT_ISSUER" default:"watchfi"`
	ExpirationMinutes  int    `envconfig:"WATCHFI_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMin int    `envconfig:"WATCHFI_REFRESH_TOKEN_TTL_MINUTES" default:"720"`
}

// RefreshTokenTTL is how long an admin refresh session stays valid.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(j.RefreshTokenTTLMin) * time.Minute
}

// AdminConfig holds the single console operator credential.
type AdminConfig struct {
	Username     string `envconfig:"WATCHFI_ADMIN_USERNAME" default:"admin"`
	PasswordHash string `envconfig:"WATCHFI_ADMIN_PASSWORD_HASH"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"WATCHFI_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"WATCHFI_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"WATCHFI_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"WATCHFI_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"WATCHFI_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow  time.Duration `envconfig:"WATCHFI_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginLimit   int           `envconfig:"WATCHFI_AUTH_RATE_LIMIT_LOGIN_LIMIT" default:"5"`
	LoginIPLimit int           `envconfig:"WATCHFI_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type ReconcileConfig struct {
	Interval    time.Duration `envconfig:"WATCHFI_RECONCILE_INTERVAL" default:"5m"`
	BatchSize   int           `envconfig:"WATCHFI_RECONCILE_BATCH_SIZE" default:"50"`
	MaxAttempts int           `envconfig:"WATCHFI_RECONCILE_MAX_ATTEMPTS" default:"10"`
	LockTTL     time.Duration `envconfig:"WATCHFI_RECONCILE_LOCK_TTL" default:"10m"`
	TaskTimeout time.Duration `envconfig:"WATCHFI_RECONCILE_TASK_TIMEOUT" default:"4m"`
	MetricsAddr string        `envconfig:"WATCHFI_RECONCILE_METRICS_ADDR" default:":9091"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"WATCHFI_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"WATCHFI_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
