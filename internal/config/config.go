package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var errJWTSecretRequired = errors.New("jwt secret is required")

type Config struct {
	KubeConfig string
	KubeMaster string
	LogLevel   string
	LogFormat  string
	HTTPPort   string

	StorePath   string
	CatalogPath string
	JWTSecret   string

	NamespacePrefix string
	SSHImage        string

	PortBase  int
	PortRange int

	GrantDefaultTTL time.Duration
	GrantMaxTTL     time.Duration

	MaintenanceSchedule  string
	MaintenanceTZ        string
	MaintenanceJitterMax time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		KubeConfig: getEnvWithFallback(envKeyKubeConfig, envKeyKubeConfigFallback),
		KubeMaster: getEnvWithFallback(envKeyKubeMaster, envKeyKubeMasterFallback),
		LogLevel:   getEnvOrDefault(envKeyLogLevel, "info"),
		LogFormat:  getEnvOrDefault(envKeyLogFormat, "json"),
		HTTPPort:   getEnvOrDefault(envKeyHTTPPort, "8080"),

		StorePath:   getEnvOrDefault(envKeyStorePath, "sandboxd.db"),
		CatalogPath: getEnvOrDefault(envKeyCatalogPath, "templates.json"),
		JWTSecret:   os.Getenv(envKeyJWTSecret),

		NamespacePrefix: getEnvOrDefault(envKeyNamespacePrefix, "sandbox-"),
		SSHImage:        getEnvOrDefault(envKeySSHImage, "sandboxd-ssh:latest"),

		MaintenanceSchedule: getEnvOrDefault(envKeyMaintenanceSchedule, "*/5 * * * *"),
		MaintenanceTZ:       os.Getenv(envKeyMaintenanceTZ),
	}

	if cfg.JWTSecret == "" {
		return nil, errJWTSecretRequired
	}

	var err error

	// Defaults cover the conventional NodePort window 30000-32767.
	cfg.PortBase, err = parseIntEnv(envKeyPortBase, 30000)
	if err != nil {
		return nil, err
	}

	cfg.PortRange, err = parseIntEnv(envKeyPortRange, 2768)
	if err != nil {
		return nil, err
	}

	if cfg.PortRange <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %d", envKeyPortRange, cfg.PortRange)
	}

	cfg.GrantDefaultTTL, err = parseDurationEnv(envKeyGrantDefaultTTL, 24*time.Hour, envMinGrantTTL)
	if err != nil {
		return nil, err
	}

	cfg.GrantMaxTTL, err = parseDurationEnv(envKeyGrantMaxTTL, 7*24*time.Hour, envMinGrantTTL)
	if err != nil {
		return nil, err
	}

	if cfg.GrantMaxTTL < cfg.GrantDefaultTTL {
		return nil, fmt.Errorf("%s (%s) is below %s (%s)",
			envKeyGrantMaxTTL, cfg.GrantMaxTTL,
			envKeyGrantDefaultTTL, cfg.GrantDefaultTTL,
		)
	}

	cfg.MaintenanceJitterMax, err = parseDurationEnv(
		envKeyMaintenanceJitterMax,
		30*time.Second,
		envMinMaintenanceJitterMax,
	)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}

func getEnvWithFallback(key, fallbackKey string) string {
	value := os.Getenv(key)
	if value == "" {
		return os.Getenv(fallbackKey)
	}

	return value
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	return value, nil
}

func parseDurationEnv(key string, defaultValue, minValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}

	if value < minValue {
		return 0, fmt.Errorf("%s must be at least %s, got %s", key, minValue, value)
	}

	return value, nil
}
