package config

import (
	"testing"

	"pharmabill/backend/internal/receipt"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "GST_ESTIMATE_PERCENT", "CATALOG_CACHE_TTL_SECONDS", "RECEIPT_WIDTH", "SHOP_NAME", "SESSION_IDLE_TTL_MINUTES", "PRINTER_ADDR"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Address() != ":8080" {
		t.Fatalf("expected default address :8080, got %s", cfg.Address())
	}
	if cfg.GSTEstimatePercent.String() != "12" {
		t.Fatalf("expected default gst 12, got %s", cfg.GSTEstimatePercent)
	}
	if cfg.CatalogCacheTTLSeconds != 300 {
		t.Fatalf("expected default catalog ttl 300, got %d", cfg.CatalogCacheTTLSeconds)
	}
	if cfg.SessionIdleTTLMinutes != 720 {
		t.Fatalf("expected default session idle ttl 720, got %d", cfg.SessionIdleTTLMinutes)
	}
	if cfg.ReceiptWidth != receipt.Width58mm {
		t.Fatalf("expected 58mm receipt width, got %d", cfg.ReceiptWidth)
	}
	if cfg.ShopName != receipt.DefaultShopName {
		t.Fatalf("expected default shop name, got %q", cfg.ShopName)
	}
	if cfg.PrinterAddr != "" {
		t.Fatalf("expected no printer address, got %q", cfg.PrinterAddr)
	}
}

func TestLoadOverridesAndFallbacks(t *testing.T) {
	t.Setenv("GST_ESTIMATE_PERCENT", "5")
	t.Setenv("RECEIPT_WIDTH", "80mm")
	t.Setenv("CATALOG_CACHE_TTL_SECONDS", "-4")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "abc")

	cfg := Load()
	if cfg.GSTEstimatePercent.String() != "5" {
		t.Fatalf("expected gst 5, got %s", cfg.GSTEstimatePercent)
	}
	if cfg.ReceiptWidth != receipt.Width80mm {
		t.Fatalf("expected 80mm receipt width, got %d", cfg.ReceiptWidth)
	}
	if cfg.CatalogCacheTTLSeconds != 300 {
		t.Fatalf("expected fallback catalog ttl, got %d", cfg.CatalogCacheTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected fallback token ttl, got %d", cfg.AccessTokenTTLMinutes)
	}

	t.Setenv("GST_ESTIMATE_PERCENT", "0")
	if got := Load().GSTEstimatePercent.String(); got != "0" {
		t.Fatalf("expected zero gst to be kept, got %s", got)
	}

	t.Setenv("GST_ESTIMATE_PERCENT", "-1")
	if got := Load().GSTEstimatePercent.String(); got != "12" {
		t.Fatalf("expected gst fallback for negative value, got %s", got)
	}

	t.Setenv("GST_ESTIMATE_PERCENT", "not-a-number")
	if got := Load().GSTEstimatePercent.String(); got != "12" {
		t.Fatalf("expected gst fallback 12, got %s", got)
	}
}
