package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pharmabill/backend/internal/receipt"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	CatalogCacheTTLSeconds int
	SessionIdleTTLMinutes  int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	GSTEstimatePercent     decimal.Decimal
	PrinterAddr            string
	PrinterDevice          string
	ReceiptWidth           int
	ShopName               string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cacheTTL := positiveInt("CATALOG_CACHE_TTL_SECONDS", 300)
	tokenTTL := positiveInt("ACCESS_TOKEN_TTL_MINUTES", 480)
	sessionTTL := positiveInt("SESSION_IDLE_TTL_MINUTES", 720)

	gst, err := decimal.NewFromString(getEnv("GST_ESTIMATE_PERCENT", "12"))
	if err != nil || gst.IsNegative() {
		gst = decimal.NewFromInt(12)
	}

	width := receipt.Width58mm
	if strings.TrimSpace(os.Getenv("RECEIPT_WIDTH")) == "80mm" {
		width = receipt.Width80mm
	}

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		CatalogCacheTTLSeconds: cacheTTL,
		SessionIdleTTLMinutes:  sessionTTL,
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  tokenTTL,
		GSTEstimatePercent:     gst,
		PrinterAddr:            strings.TrimSpace(os.Getenv("PRINTER_ADDR")),
		PrinterDevice:          strings.TrimSpace(os.Getenv("PRINTER_DEVICE")),
		ReceiptWidth:           width,
		ShopName:               getEnv("SHOP_NAME", receipt.DefaultShopName),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
