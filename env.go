package gogoblin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// SolanaRPCURLEnv defines the environment variable name containing the ledger RPC endpoint.
	SolanaRPCURLEnv = "SOLANA_RPC_URL"

	// HeliusAPIKeyEnv defines the environment variable name containing the indexing provider API key.
	HeliusAPIKeyEnv = "HELIUS_API_KEY"

	// HeliusAPIURLEnv overrides the indexing provider base URL.
	HeliusAPIURLEnv = "HELIUS_API_URL"
)

const (
	signatureLimitEnv     = "GOBLIN_SIGNATURE_LIMIT"
	detailLimitEnv        = "GOBLIN_DETAIL_LIMIT"
	indexerLimitEnv       = "GOBLIN_INDEXER_LIMIT"
	addressConcurrencyEnv = "GOBLIN_ADDRESS_CONCURRENCY"
	fetchConcurrencyEnv   = "GOBLIN_FETCH_CONCURRENCY"
	addressTimeoutEnv     = "GOBLIN_ADDRESS_TIMEOUT"
	httpTimeoutEnv        = "GOBLIN_HTTP_TIMEOUT"
	listenAddrEnv         = "GOBLIN_LISTEN_ADDR"
	rpcRateEnv            = "GOBLIN_RPC_RATE"
	rpcBurstEnv           = "GOBLIN_RPC_BURST"

	logLevelEnv          = "LOG_LEVEL"
	logFileEnabledEnv    = "LOG_FILE_ENABLED"
	logFilePathEnv       = "LOG_FILE_PATH"
	logFileMaxSizeEnv    = "LOG_FILE_MAX_SIZE_MB"
	logFileMaxBackupsEnv = "LOG_FILE_MAX_BACKUPS"
	logFileMaxAgeEnv     = "LOG_FILE_MAX_AGE_DAYS"
)

const (
	defaultSolanaRPCURL = "https://api.mainnet-beta.solana.com"
	defaultHeliusAPIURL = "https://api.helius.xyz"
	defaultListenAddr   = ":8080"
	defaultLogFilePath  = "logs/goblin.log"
)

// Config carries everything needed to wire the engine and the HTTP server.
type Config struct {
	RPCEndpoint  string
	HeliusAPIKey string
	HeliusAPIURL string
	Policy       Policy
	HTTPTimeout  time.Duration
	// RPCRate and RPCBurst override the built-in per-host limits when RPCRate > 0.
	RPCRate    float64
	RPCBurst   int
	ListenAddr string
	Log        LogConfig
}

// LoadConfig reads the provided dotenv files (".env" when none are given) and
// then builds the configuration from the process environment. Missing files
// are not an error.
func LoadConfig(filenames ...string) (Config, error) {
	if len(filenames) == 0 {
		filenames = append(filenames, ".env")
	}
	for _, filename := range filenames {
		if err := godotenv.Load(filename); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("load config file %s: %w", filename, err)
		}
	}
	return ConfigFromEnv(), nil
}

// ConfigFromEnv builds the configuration from environment variables only.
func ConfigFromEnv() Config {
	defaults := DefaultPolicy()
	return Config{
		RPCEndpoint:  loadStringEnv(SolanaRPCURLEnv, defaultSolanaRPCURL),
		HeliusAPIKey: strings.TrimSpace(os.Getenv(HeliusAPIKeyEnv)),
		HeliusAPIURL: loadStringEnv(HeliusAPIURLEnv, defaultHeliusAPIURL),
		Policy: Policy{
			SignatureLimit:     loadIntEnv(signatureLimitEnv, defaults.SignatureLimit),
			DetailLimit:        loadIntEnv(detailLimitEnv, defaults.DetailLimit),
			IndexerLimit:       loadIntEnv(indexerLimitEnv, defaults.IndexerLimit),
			AddressConcurrency: loadIntEnv(addressConcurrencyEnv, defaults.AddressConcurrency),
			FetchConcurrency:   loadIntEnv(fetchConcurrencyEnv, defaults.FetchConcurrency),
			AddressTimeout:     loadDurationEnv(addressTimeoutEnv, defaults.AddressTimeout),
		},
		HTTPTimeout: loadDurationEnv(httpTimeoutEnv, defaultHTTPTimeout),
		RPCRate:     loadFloatEnv(rpcRateEnv, 0),
		RPCBurst:    loadIntEnv(rpcBurstEnv, 0),
		ListenAddr:  loadStringEnv(listenAddrEnv, defaultListenAddr),
		Log: LogConfig{
			Level:       loadStringEnv(logLevelEnv, "info"),
			FileEnabled: os.Getenv(logFileEnabledEnv) == "true",
			FilePath:    loadStringEnv(logFilePathEnv, defaultLogFilePath),
			MaxSizeMB:   loadIntEnv(logFileMaxSizeEnv, 100),
			MaxBackups:  loadIntEnv(logFileMaxBackupsEnv, 3),
			MaxAgeDays:  loadIntEnv(logFileMaxAgeEnv, 7),
		},
	}
}

func loadStringEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func loadIntEnv(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	num, err := strconv.Atoi(value)
	if err != nil || num < 0 {
		return fallback
	}
	return num
}

func loadFloatEnv(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	num, err := strconv.ParseFloat(value, 64)
	if err != nil || num < 0 {
		return fallback
	}
	return num
}

func loadDurationEnv(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	dur, err := time.ParseDuration(value)
	if err != nil || dur < 0 {
		return fallback
	}
	return dur
}
