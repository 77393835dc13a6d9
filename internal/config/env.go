package config

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"8083"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

type StorageEnv struct {
	Type         string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir      string `envconfig:"STORAGE_BASE_DIR" default:".stagetrack/data"`
	SnapshotFile string `envconfig:"SNAPSHOT_FILE" default:"projects.json"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"stagetrack/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type VAPIDEnv struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact    string `envconfig:"VAPID_CONTACT" default:"mailto:admin@example.com"`
}

type NotifyEnv struct {
	TelegramToken string `envconfig:"TELEGRAM_TOKEN"`
	SettingsFile  string `envconfig:"NOTIFY_SETTINGS_FILE" default:"notification_config.yaml"`
	// Cron spec for the deadline sweep, standard 5-field format.
	DeadlineCron string `envconfig:"DEADLINE_CRON" default:"0 9 * * *"`
}

type Env struct {
	BaseEnv
	StorageEnv
	VAPIDEnv
	NotifyEnv
}

const namespace = "STAGETRACK"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func BaseEnvFromEnv(env *Env) *BaseEnv {
	return &env.BaseEnv
}

func StorageEnvFromEnv(env *Env) *StorageEnv {
	return &env.StorageEnv
}

func VAPIDEnvFromEnv(env *Env) *VAPIDEnv {
	return &env.VAPIDEnv
}

func NotifyEnvFromEnv(env *Env) *NotifyEnv {
	return &env.NotifyEnv
}
