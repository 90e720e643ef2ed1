// Package config holds the process-wide configuration, backed by a viper
// singleton. Sources, lowest precedence first: defaults, giveandtake.yaml,
// .env, environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	KeyScoringChannel = "scoring-channel"
	KeyChatChannel    = "chat-channel"
	KeyScanDepth      = "scan-depth"
	KeyAllocation     = "allocation"
	KeyCommandPrefix  = "command-prefix"
	KeyHealthPort     = "health-port"

	KeyFuzzyMinScore = "fuzzy.min-score"

	KeyRosterFile     = "roster.file"
	KeyRosterWatch    = "roster.watch"

	KeySlackBotToken = "slack.bot-token"
	KeySlackAppToken = "slack.app-token"
	KeySlackDebug    = "slack.debug"

	KeyNATSURL           = "nats.url"
	KeyNATSSubjectPrefix = "nats.subject-prefix"

	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"

	KeyOTelEnabled         = "otel.enabled"
	KeyOTelStdout          = "otel.stdout"
	KeyOTelEndpoint        = "otel.endpoint"
	KeyOTelMetricsEndpoint = "otel.metrics-endpoint"
	KeyOTelMetricInterval  = "otel.metric-interval"
	KeyOTelSampleRatio     = "otel.sample-ratio"
)

// EnvPrefix is prepended to every key when looking it up in the environment:
// scan-depth is GT_SCAN_DEPTH, nats.url is GT_NATS_URL.
const EnvPrefix = "GT"

// legacyEnv maps environment names used by earlier deployments of the bot.
var legacyEnv = map[string]string{
	KeyScoringChannel: "GIVE_AND_TAKE_CHANNEL",
	KeyChatChannel:    "GIVE_AND_TAKE_CHAT_CHANNEL",
	KeySlackBotToken:  "SLACK_BOT_TOKEN",
	KeySlackAppToken:  "SLACK_APP_TOKEN",

	KeyOTelEndpoint:        "OTEL_EXPORTER_OTLP_ENDPOINT",
	KeyOTelMetricsEndpoint: "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT",
}

var v *viper.Viper

// Initialize (re)builds the configuration. Safe to call more than once; each
// call starts from a fresh viper instance.
func Initialize() error {
	// A missing .env is normal; anything else (bad syntax) is reported.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}

	nv := viper.New()
	registerDefaults(nv)

	nv.SetConfigName("giveandtake")
	nv.SetConfigType("yaml")
	nv.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		nv.AddConfigPath(filepath.Join(home, ".config", "giveandtake"))
	}

	nv.SetEnvPrefix(EnvPrefix)
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	nv.AutomaticEnv()
	for key, name := range legacyEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
		if err := nv.BindEnv(key, envKey, name); err != nil {
			return fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if err := nv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: read %s: %w", nv.ConfigFileUsed(), err)
		}
	}

	v = nv
	return nil
}

func registerDefaults(nv *viper.Viper) {
	nv.SetDefault(KeyScoringChannel, "")
	nv.SetDefault(KeyChatChannel, "")
	nv.SetDefault(KeyScanDepth, 20)
	nv.SetDefault(KeyAllocation, 5)
	nv.SetDefault(KeyCommandPrefix, "!")
	nv.SetDefault(KeyHealthPort, 8080)

	nv.SetDefault(KeyFuzzyMinScore, 50)

	nv.SetDefault(KeyRosterFile, "")
	nv.SetDefault(KeyRosterWatch, true)

	nv.SetDefault(KeySlackBotToken, "")
	nv.SetDefault(KeySlackAppToken, "")
	nv.SetDefault(KeySlackDebug, false)

	nv.SetDefault(KeyNATSURL, "")
	nv.SetDefault(KeyNATSSubjectPrefix, "giveandtake.rounds.")

	nv.SetDefault(KeyLogLevel, "info")
	nv.SetDefault(KeyLogFormat, "console")

	nv.SetDefault(KeyOTelEnabled, false)
	nv.SetDefault(KeyOTelStdout, false)
	nv.SetDefault(KeyOTelEndpoint, "")
	nv.SetDefault(KeyOTelMetricsEndpoint, "")
	nv.SetDefault(KeyOTelMetricInterval, "30s")
	nv.SetDefault(KeyOTelSampleRatio, 1.0)
}

// ConfigFileUsed returns the path of the loaded config file, or "" if none.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetFloat64 retrieves a floating point configuration value.
func GetFloat64(key string) float64 {
	if v == nil {
		return 0
	}
	return v.GetFloat64(key)
}

// Set overrides a value for the rest of the process, e.g. from a CLI flag.
func Set(key string, value interface{}) {
	if v == nil {
		return
	}
	v.Set(key, value)
}

// AllSettings returns the merged configuration.
func AllSettings() map[string]interface{} {
	if v == nil {
		return nil
	}
	return v.AllSettings()
}

// ResetForTesting drops the singleton so the next Initialize starts clean.
func ResetForTesting() {
	v = nil
}
