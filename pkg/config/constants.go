package config

const EnvPrefix = "WATCHFI"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	SolanaNetworkMainnet = "mainnet"
	SolanaNetworkDevnet  = "devnet"

	USDCMintMainnet = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDCMintDevnet  = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
)

const (
	EnvAppEnv         = "WATCHFI_APP_ENV"
	EnvPort           = "WATCHFI_APP_PORT"
	EnvLogLevel       = "WATCHFI_LOG_LEVEL"
	EnvDBDSN          = "WATCHFI_DB_DSN"
	EnvDBHost         = "WATCHFI_DB_HOST"
	EnvDBUser         = "WATCHFI_DB_USER"
	EnvDBName         = "WATCHFI_DB_NAME"
	EnvUseSQLite      = "WATCHFI_USE_SQLITE"
	EnvRedisURL       = "WATCHFI_REDIS_URL"
	EnvAPIBaseURL     = "WATCHFI_API_BASE_URL"
	EnvSolanaNetwork  = "WATCHFI_SOLANA_NETWORK"
	EnvBusinessWallet = "WATCHFI_BUSINESS_WALLET"
	EnvUSDCMint       = "WATCHFI_USDC_MINT"
	EnvJWTSecret      = "WATCHFI_JWT_SECRET"
	EnvJWTIssuer      = "WATCHFI_JWT_ISSUER"
	EnvAdvanceDelay   = "WATCHFI_CHECKOUT_ADVANCE_DELAY"
	EnvFallbackSOL    = "WATCHFI_FALLBACK_PRICE_SOL"
	EnvFallbackUSDC   = "WATCHFI_FALLBACK_PRICE_USDC"
	EnvWalletKeypair  = "WATCHFI_SOLANA_WALLET_KEYPAIR"
	EnvWalletBridge   = "WATCHFI_WALLET_BRIDGE_URL"
	EnvAdminPassword  = "WATCHFI_ADMIN_PASSWORD_HASH"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
