package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AlertConfig tunes when the notification fan-out fires for inventory and
// invoice events. It is hot-reloadable from alerting.yml.
type AlertConfig struct {
	// DefaultReorderPoint applies to products that do not set their own.
	DefaultReorderPoint int64 `mapstructure:"defaultReorderPoint"`
	// OverdueAfterDays is counted from the invoice due date.
	OverdueAfterDays int `mapstructure:"overdueAfterDays"`
	// TrialExpiryWarningDays warns tenant admins before a trial ends.
	TrialExpiryWarningDays int `mapstructure:"trialExpiryWarningDays"`
}

func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		DefaultReorderPoint:    5,
		OverdueAfterDays:       0,
		TrialExpiryWarningDays: 3,
	}
}

type AlertConfigHolder struct {
	current atomic.Value // holds AlertConfig
}

func NewAlertConfigHolder(log *zap.Logger) (*AlertConfigHolder, error) {
	log = log.Named("alert.config")
	v := viper.New()

	v.SetConfigName("alerting")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/ledgerline")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEDGERLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAlertConfig()
	v.SetDefault("alerting.defaultReorderPoint", defaults.DefaultReorderPoint)
	v.SetDefault("alerting.overdueAfterDays", defaults.OverdueAfterDays)
	v.SetDefault("alerting.trialExpiryWarningDays", defaults.TrialExpiryWarningDays)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg AlertConfig
	if err := v.UnmarshalKey("alerting", &cfg); err != nil {
		return nil, err
	}
	if err := validateAlertConfig(cfg); err != nil {
		return nil, err
	}

	holder := &AlertConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AlertConfig
		if err := v.UnmarshalKey("alerting", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateAlertConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticAlertConfigHolder wraps a fixed config, for tests.
func NewStaticAlertConfigHolder(cfg AlertConfig) *AlertConfigHolder {
	holder := &AlertConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *AlertConfigHolder) Get() AlertConfig {
	return h.current.Load().(AlertConfig)
}

func validateAlertConfig(cfg AlertConfig) error {
	if cfg.DefaultReorderPoint < 0 {
		return errors.New("alerting.defaultReorderPoint cannot be negative")
	}
	if cfg.OverdueAfterDays < 0 {
		return errors.New("alerting.overdueAfterDays cannot be negative")
	}
	return nil
}
