package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB     DBConfig
	JWT    JWTConfig
	TOTP   TOTPConfig
	Server ServerConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Validity time.Duration
}

type TOTPConfig struct {
	// Issuer is the label authenticator apps display for enrolled accounts.
	Issuer string
	// SkewSteps is the number of 30-second steps accepted on either side of
	// the current one. 0 accepts only the current step.
	SkewSteps uint
}

type ServerConfig struct {
	Port string
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "authgate"),
			Password: getEnv("DB_PASSWORD", "authgate_secret"),
			Name:     getEnv("DB_NAME", "authgate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", ""),
			Issuer:   getEnv("JWT_ISSUER", "authgate"),
			Audience: getEnv("JWT_AUDIENCE", "authgate-clients"),
			Validity: getEnvAsDuration("JWT_VALIDITY", 3*time.Hour),
		},
		TOTP: TOTPConfig{
			Issuer:    getEnv("TOTP_ISSUER", "AuthGate"),
			SkewSteps: uint(getEnvAsInt("TOTP_SKEW_STEPS", 1)),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
