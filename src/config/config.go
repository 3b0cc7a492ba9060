package config

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
)

type Config struct {
	LogLevel string

	Port        string
	PublicURL   string
	CORSOrigins []string
	JWTSecret   string
	RateLimit   int
	RateWindow  time.Duration
	TLSCert     string
	TLSKey      string

	// JWTSecretGenerated is set when no secret was configured and a
	// random one was made for this process.
	JWTSecretGenerated bool

	MySQLDSN     string
	RedisURL     string
	StoreBackend string
	StorePoll    time.Duration

	Chain          ChainConfig
	CurrencySymbol string
	PollInterval   time.Duration

	Discord  DiscordConfig
	Manifest ManifestConfig
}

type ChainConfig struct {
	RPCURL       string
	Contract     string
	ChainID      int64
	PrivateKey   string
	HeadInterval time.Duration
	TxTimeout    time.Duration
}

type DiscordConfig struct {
	Token     string
	ChannelID string
	Enabled   bool
}

// ManifestConfig feeds the mini-app descriptor. Empty values are left out
// of the published document.
type ManifestConfig struct {
	Name            string
	Subtitle        string
	Description     string
	IconURL         string
	OGImageURL      string
	PrimaryCategory string
	OGTitle         string
	OGDescription   string
	Tags            []string

	Header    string
	Payload   string
	Signature string
}

// Load resolves the configuration using db settings when db is non-nil.
func Load(db *gorm.DB) Config {
	return LoadFrom(NewSource(db))
}

// LoadFrom resolves the configuration from src.
func LoadFrom(src Source) Config {
	discord := DiscordConfig{
		Token:     src.GetSetting("discord_token", "DISCORD_TOKEN", ""),
		ChannelID: src.GetSetting("discord_channel_id", "DISCORD_CHANNEL_ID", ""),
	}
	discord.Enabled = src.getBoolSetting("enable_discord", "ENABLE_DISCORD",
		discord.Token != "" && discord.ChannelID != "")

	mysqlDSN := src.GetSetting("mysql_dsn", "MYSQL_DSN", "")
	redisURL := src.GetSetting("redis_url", "REDIS_URL", "")
	backend := src.GetSetting("store_backend", "STORE_BACKEND", "")
	if backend == "" {
		switch {
		case redisURL != "":
			backend = "redis"
		case mysqlDSN != "":
			backend = "mysql"
		default:
			backend = "memory"
		}
	}

	secret := src.GetSetting("jwt_secret", "JWT_SECRET", "")
	generated := secret == ""
	if generated {
		secret = randomSecret()
	}

	return Config{
		LogLevel: src.GetSetting("log_level", "LOG_LEVEL", "info"),

		Port:               src.GetSetting("port", "PORT", "8080"),
		PublicURL:          src.GetSetting("public_url", "PUBLIC_URL", ""),
		CORSOrigins:        src.getListSetting("cors_origins", "CORS_ORIGINS", []string{"http://localhost:3000"}),
		JWTSecret:          secret,
		JWTSecretGenerated: generated,
		RateLimit:          int(src.getIntSetting("rate_limit", "RATE_LIMIT", 30)),
		RateWindow:         src.getDurationSetting("rate_window", "RATE_WINDOW", time.Minute),
		TLSCert:            src.GetSetting("tls_cert", "TLS_CERT", ""),
		TLSKey:             src.GetSetting("tls_key", "TLS_KEY", ""),

		MySQLDSN:     mysqlDSN,
		RedisURL:     redisURL,
		StoreBackend: backend,
		StorePoll:    src.getDurationSetting("store_poll_interval", "STORE_POLL_INTERVAL", 2*time.Second),

		Chain: ChainConfig{
			RPCURL:       src.GetSetting("rpc_url", "RPC_URL", "https://mainnet.base.org"),
			Contract:     src.GetSetting("contract_address", "CONTRACT_ADDRESS", ""),
			ChainID:      src.getIntSetting("chain_id", "CHAIN_ID", 0),
			PrivateKey:   src.GetSetting("private_key", "PRIVATE_KEY", ""),
			HeadInterval: src.getDurationSetting("head_interval", "HEAD_INTERVAL", 4*time.Second),
			TxTimeout:    src.getDurationSetting("tx_timeout", "TX_TIMEOUT", 3*time.Minute),
		},
		CurrencySymbol: src.GetSetting("currency_symbol", "CURRENCY_SYMBOL", "ETH"),
		PollInterval:   src.getDurationSetting("poll_interval", "POLL_INTERVAL", 60*time.Second),

		Discord: discord,
		Manifest: ManifestConfig{
			Name:            src.GetSetting("app_name", "APP_NAME", "Base Buddies"),
			Subtitle:        src.GetSetting("app_subtitle", "APP_SUBTITLE", ""),
			Description:     src.GetSetting("app_description", "APP_DESCRIPTION", "A fun onchain app built on Base!"),
			IconURL:         src.GetSetting("app_icon", "APP_ICON", ""),
			OGImageURL:      src.GetSetting("app_og_image", "APP_OG_IMAGE", ""),
			PrimaryCategory: src.GetSetting("app_primary_category", "APP_PRIMARY_CATEGORY", ""),
			OGTitle:         src.GetSetting("app_og_title", "APP_OG_TITLE", ""),
			OGDescription:   src.GetSetting("app_og_description", "APP_OG_DESCRIPTION", ""),
			Tags: src.getListSetting("app_tags", "APP_TAGS",
				[]string{"base buddies", "buddies", "social", "challenges", "rewards"}),
			Header:    src.GetSetting("farcaster_header", "FARCASTER_HEADER", ""),
			Payload:   src.GetSetting("farcaster_payload", "FARCASTER_PAYLOAD", ""),
			Signature: src.GetSetting("farcaster_signature", "FARCASTER_SIGNATURE", ""),
		},
	}
}

// randomSecret returns 32 random bytes hex encoded. Tokens signed with it
// do not survive a restart or reach other instances.
func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
