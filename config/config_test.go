package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-engine/ledger"
	"github.com/warp/pos-engine/pos"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pos.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "strict", cfg.AccountMode)
	assert.Equal(t, "fifo", cfg.AdjustmentValuation)
	assert.True(t, cfg.TaxRate.IsZero())
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, time.Hour, cfg.IntegrityInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 120, cfg.RateLimit)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("POS_DB_PATH", "/tmp/shop.db")
	t.Setenv("POS_ACCOUNT_MODE", "lenient")
	t.Setenv("POS_ADJUSTMENT_VALUATION", "current_cost")
	t.Setenv("POS_TAX_RATE", "12.5")
	t.Setenv("POS_LOG_FORMAT", "json")
	t.Setenv("POS_INTEGRITY_INTERVAL", "5m")
	t.Setenv("POS_CORS_ORIGINS", "http://till.local,http://office.local")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/shop.db", cfg.DBPath)
	assert.True(t, decimal.RequireFromString("12.5").Equal(cfg.TaxRate))
	assert.Equal(t, 5*time.Minute, cfg.IntegrityInterval)
	assert.Equal(t, []string{"http://till.local", "http://office.local"}, cfg.CORSOrigins)

	opts := cfg.ProcessorOptions()
	assert.Equal(t, pos.ValuationCurrentCost, opts.AdjustmentValuation)

	books := ledger.NewBooks(nil, cfg.BooksOptions(NewLogger(cfg))...)
	assert.Equal(t, ledger.AccountModeLenient, books.Mode())
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"POS_ACCOUNT_MODE":         "loose",
		"POS_ADJUSTMENT_VALUATION": "lifo",
		"POS_TAX_RATE":             "-1",
		"POS_LOG_FORMAT":           "xml",
		"POS_LOG_LEVEL":            "chatty",
		"POS_RATE_LIMIT":           "-5",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
