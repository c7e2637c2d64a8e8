package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Policy is the hot-reloadable account policy read from accounts.yml.
type Policy struct {
	OTP      OTPPolicy      `mapstructure:"otp"`
	Password PasswordPolicy `mapstructure:"password"`
}

type OTPPolicy struct {
	TTLMinutes     int             `mapstructure:"ttlMinutes"`
	DeliverByEmail bool            `mapstructure:"deliverByEmail"`
	RateLimit      RateLimitPolicy `mapstructure:"rateLimit"`
}

type RateLimitPolicy struct {
	// Rate is tokens refilled per second.
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

type PasswordPolicy struct {
	MinLength int `mapstructure:"minLength"`
}

func DefaultPolicy() Policy {
	return Policy{
		OTP: OTPPolicy{
			TTLMinutes:     10,
			DeliverByEmail: false,
			RateLimit:      RateLimitPolicy{Rate: 1.0 / 30, Burst: 3},
		},
		Password: PasswordPolicy{MinLength: 8},
	}
}

func (p OTPPolicy) TTL() time.Duration {
	return time.Duration(p.TTLMinutes) * time.Minute
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(p Policy) *PolicyHolder {
	h := &PolicyHolder{}
	h.current.Store(p)
	return h
}

func NewPolicyHolder(cfg Config, log *zap.Logger) (*PolicyHolder, error) {
	log = log.Named("config.policy")
	v := viper.New()

	if cfg.PolicyPath != "" {
		v.SetConfigFile(cfg.PolicyPath)
	} else {
		v.SetConfigName("accounts")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/accounts")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ACCOUNTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicy()
	v.SetDefault("otp.ttlMinutes", defaults.OTP.TTLMinutes)
	v.SetDefault("otp.deliverByEmail", defaults.OTP.DeliverByEmail)
	v.SetDefault("otp.rateLimit.rate", defaults.OTP.RateLimit.Rate)
	v.SetDefault("otp.rateLimit.burst", defaults.OTP.RateLimit.Burst)
	v.SetDefault("password.minLength", defaults.Password.MinLength)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfg.PolicyPath != "" {
			return nil, err
		}
		fileLoaded = false
		log.Info("policy file not found, using defaults")
	}

	var p Policy
	if err := v.Unmarshal(&p); err != nil {
		return nil, err
	}
	if err := validatePolicy(p); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(p)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Policy
		if err := v.Unmarshal(&updated); err != nil {
			log.Warn("policy reload failed", zap.Error(err))
			return
		}
		if err := validatePolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PolicyHolder) Get() Policy {
	return h.current.Load().(Policy)
}

func validatePolicy(p Policy) error {
	if p.OTP.TTLMinutes <= 0 {
		return errors.New("otp.ttlMinutes must be positive")
	}
	if p.OTP.RateLimit.Rate <= 0 || p.OTP.RateLimit.Burst <= 0 {
		return errors.New("otp.rateLimit rate and burst must be positive")
	}
	if p.Password.MinLength < 0 {
		return errors.New("password.minLength cannot be negative")
	}
	return nil
}
