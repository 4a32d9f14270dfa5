package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Image generation and storage backends. The synthetic and local ones are for
// development and must be selected explicitly.
const (
	ImageBackendHuggingFace = "huggingface"
	ImageBackendSynthetic   = "synthetic"
	StorageBackendPinata    = "pinata"
	StorageBackendLocal     = "local"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	PublicBaseURL string
	DatabaseURL   string

	ImageBackend        string
	HuggingFaceAPIKey   string
	HuggingFaceModelURL string
	HuggingFaceTimeout  time.Duration

	StorageBackend        string
	PinataJWT             string
	PinataAPIURL          string
	IPFSGatewayHost       string
	StorageStrictMetadata bool
	LocalIPFSPath         string

	EthRPCURL           string
	NetworksFile        string
	SignerPrivateKey    string
	SignerKeystore      string
	SignerPassphrase    string
	MintPriceWei        string
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string

	MaxWorkflows    int
	WorkflowIdleTTL time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		ImageBackend:        strings.ToLower(getEnv("IMAGEGEN_BACKEND", ImageBackendHuggingFace)),
		HuggingFaceAPIKey:   strings.TrimSpace(os.Getenv("HF_API_KEY")),
		HuggingFaceModelURL: getEnv("HF_MODEL_URL", "https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-2"),
		HuggingFaceTimeout:  time.Second * time.Duration(getEnvInt("HF_TIMEOUT_SECONDS", 120)),

		StorageBackend:        strings.ToLower(getEnv("STORAGE_BACKEND", StorageBackendPinata)),
		PinataJWT:             strings.TrimSpace(os.Getenv("PINATA_JWT")),
		PinataAPIURL:          getEnv("PINATA_API_URL", "https://api.pinata.cloud"),
		IPFSGatewayHost:       getEnv("IPFS_GATEWAY_HOST", "ipfs.io"),
		StorageStrictMetadata: getEnvBool("STORAGE_STRICT_METADATA", false),
		LocalIPFSPath:         getEnv("LOCAL_IPFS_PATH", "./storage/ipfs"),

		EthRPCURL:           getEnv("ETH_RPC_URL", "http://127.0.0.1:8545"),
		NetworksFile:        getEnv("NETWORKS_FILE", "networks.yaml"),
		SignerPrivateKey:    strings.TrimSpace(os.Getenv("SIGNER_PRIVATE_KEY")),
		SignerKeystore:      strings.TrimSpace(os.Getenv("SIGNER_KEYSTORE")),
		SignerPassphrase:    os.Getenv("SIGNER_PASSPHRASE"),
		MintPriceWei:        strings.TrimSpace(os.Getenv("MINT_PRICE_WEI")),
		ReceiptPollInterval: time.Millisecond * time.Duration(getEnvInt("RECEIPT_POLL_MS", 1500)),
		ReceiptTimeout:      time.Second * time.Duration(getEnvInt("RECEIPT_TIMEOUT_SECONDS", 300)),

		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		MaxWorkflows:    getEnvInt("MAX_WORKFLOWS", 1000),
		WorkflowIdleTTL: time.Minute * time.Duration(getEnvInt("WORKFLOW_IDLE_MINUTES", 60)),
	}
	cfg.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+cfg.Port), "/")

	// Gateway host is used verbatim in https://<host>/ipfs/<cid>.
	cfg.IPFSGatewayHost = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(cfg.IPFSGatewayHost, "https://"), "http://"), "/")

	switch cfg.ImageBackend {
	case ImageBackendHuggingFace, ImageBackendSynthetic:
	default:
		return nil, fmt.Errorf("IMAGEGEN_BACKEND must be %q or %q", ImageBackendHuggingFace, ImageBackendSynthetic)
	}
	switch cfg.StorageBackend {
	case StorageBackendPinata, StorageBackendLocal:
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be %q or %q", StorageBackendPinata, StorageBackendLocal)
	}
	if cfg.SignerPrivateKey != "" && cfg.SignerKeystore != "" {
		return nil, fmt.Errorf("SIGNER_PRIVATE_KEY and SIGNER_KEYSTORE are mutually exclusive")
	}
	if cfg.SignerKeystore != "" && cfg.SignerPassphrase == "" {
		return nil, fmt.Errorf("SIGNER_PASSPHRASE is required with SIGNER_KEYSTORE")
	}
	if cfg.MintPriceWei != "" {
		if !isDecimal(cfg.MintPriceWei) {
			return nil, fmt.Errorf("MINT_PRICE_WEI must be an integer amount of wei")
		}
	}

	return cfg, nil
}

func isDecimal(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
