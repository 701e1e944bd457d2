package config

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	t.Setenv("WALLET_MASTER_SECRET", "wallet-master-secret-for-tests-xx")
}

func TestLoadConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.MongoDB.URI == "" || cfg.Redis.Host == "" {
		t.Fatalf("unexpected empty config values: %+v", cfg)
	}
	if cfg.Upload.MaxBytes != 50<<20 {
		t.Fatalf("unexpected upload cap: %d", cfg.Upload.MaxBytes)
	}
}

func TestDevelopmentModeDerivation(t *testing.T) {
	setRequiredEnv(t)

	// nothing configured -> development mode, both adapters simulated
	os.Unsetenv("LEDGER_RPC_URL")
	os.Unsetenv("LEDGER_OPERATOR_KEY")
	os.Unsetenv("LEDGER_CONTRACT_ADDRESS")
	os.Unsetenv("IPFS_PROJECT_ID")
	os.Unsetenv("IPFS_PROJECT_SECRET")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LedgerConfigured() || cfg.BlobConfigured() {
		t.Fatalf("adapters should be unconfigured")
	}
	if !cfg.DevelopmentMode() {
		t.Fatalf("expected development mode")
	}

	// placeholder credentials still count as absent
	t.Setenv("LEDGER_RPC_URL", "https://sepolia.example.org")
	t.Setenv("LEDGER_OPERATOR_KEY", "your_private_key_here")
	t.Setenv("LEDGER_CONTRACT_ADDRESS", "0x1111111111111111111111111111111111111111")
	cfg, _ = LoadConfig()
	if cfg.LedgerConfigured() {
		t.Fatalf("placeholder operator key must not select the real ledger")
	}

	// fully real ledger + blob credentials -> production posture
	t.Setenv("LEDGER_OPERATOR_KEY", "4c0883a69102937d6231471b5dbb6204fe51296170827936ea5cce4b76994b0f")
	t.Setenv("IPFS_PROJECT_ID", "2DAq9Zq8xGxEXAMPLE")
	t.Setenv("IPFS_PROJECT_SECRET", "8a51e2ab9f13EXAMPLE")
	cfg, _ = LoadConfig()
	if !cfg.LedgerConfigured() || !cfg.BlobConfigured() {
		t.Fatalf("expected both adapters configured: %+v", cfg)
	}
	if cfg.DevelopmentMode() {
		t.Fatalf("expected production posture when both adapters are configured")
	}
}

func TestContentTypeAllowed(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	cases := map[string]bool{
		"application/pdf":                true,
		"application/pdf; charset=UTF-8": true,
		"IMAGE/PNG":                      true,
		"text/plain":                     true,
		"application/x-msdownload":       false,
		"text/html":                      false,
		"":                               false,
	}
	for ct, want := range cases {
		if got := cfg.ContentTypeAllowed(ct); got != want {
			t.Fatalf("ContentTypeAllowed(%q) = %v, want %v", ct, got, want)
		}
	}
}
