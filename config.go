package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nimdanitro/ubibot-scraper-go/pkg/telemetry"
	"github.com/nimdanitro/ubibot-scraper-go/pkg/ubibot"
)

type Config struct {
	AccountKey   string
	BaseURL      string
	Timeout      time.Duration
	Addr         string
	PollInterval time.Duration
	Concurrency  int
	Aliases      map[string]telemetry.Kind
}

// loadConfig reads flags, falling back to the environment (optionally
// populated from a .env file). Flag names map to env vars by upper-casing
// and replacing dashes, e.g. --account-key -> UBIBOT_ACCOUNT_KEY.
func loadConfig(args []string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("ubibot-scraper", pflag.ContinueOnError)
	fs.String("account-key", "", "UbiBot account key")
	fs.String("base-url", ubibot.DefaultBaseURL, "UbiBot API base url")
	fs.Duration("timeout", ubibot.DefaultTimeout, "Timeout of a single UbiBot API call")
	fs.String("port", "5000", "HTTP port to listen on")
	fs.Duration("poll-interval", time.Minute, "Interval to record the latest readings as metrics, 0 disables")
	fs.Int("concurrency", telemetry.DefaultConcurrency, "Channel feeds fetched in parallel")
	fs.StringToStringP("aliases", "a", map[string]string{}, "Extra channel name substrings per device kind (agricultural=gs1_sensor,socket=smart_plug)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("ubibot")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	// PORT is the conventional name on hosting platforms
	if err := v.BindEnv("port", "UBIBOT_PORT", "PORT"); err != nil {
		return nil, err
	}

	cfg := &Config{
		AccountKey:   v.GetString("account-key"),
		BaseURL:      v.GetString("base-url"),
		Timeout:      v.GetDuration("timeout"),
		Addr:         ":" + v.GetString("port"),
		PollInterval: v.GetDuration("poll-interval"),
		Concurrency:  v.GetInt("concurrency"),
		Aliases:      map[string]telemetry.Kind{},
	}

	aliases := v.GetStringMapString("aliases")
	if !fs.Changed("aliases") {
		// env values arrive as a plain "sub=kind,..." string
		if raw := v.GetString("aliases"); raw != "" {
			aliases = parseAliases(raw)
		}
	}
	for sub, kind := range aliases {
		k, err := telemetry.ParseKind(kind)
		if err != nil {
			return nil, fmt.Errorf("alias %q: %w", sub, err)
		}
		cfg.Aliases[sub] = k
	}

	if cfg.AccountKey == "" {
		return nil, ubibot.ErrMissingAccountKey
	}
	return cfg, nil
}

func parseAliases(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		sub, kind, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(sub)] = strings.TrimSpace(kind)
	}
	return out
}
