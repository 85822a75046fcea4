package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAlertConfigHolderFallsBackToDefaults(t *testing.T) {
	holder, err := NewAlertConfigHolder(zaptest.NewLogger(t))
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, DefaultAlertConfig(), cfg)
}

func TestStaticAlertConfigHolder(t *testing.T) {
	holder := NewStaticAlertConfigHolder(AlertConfig{DefaultReorderPoint: 9})
	assert.Equal(t, int64(9), holder.Get().DefaultReorderPoint)
}

func TestValidateAlertConfigRejectsNegatives(t *testing.T) {
	assert.Error(t, validateAlertConfig(AlertConfig{DefaultReorderPoint: -1}))
	assert.Error(t, validateAlertConfig(AlertConfig{OverdueAfterDays: -1}))
	assert.NoError(t, validateAlertConfig(DefaultAlertConfig()))
}
