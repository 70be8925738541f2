package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	ServerPort      string
	WorkspaceHost   string
	ServingEndpoint string
	CatalogName     string
	SchemaName      string
	TokenURL        string
	ClientID        string
	ClientSecret    string
	StaticToken     string
	RedisAddr       string
	RedisPassword   string
	AWSRegion       string
	UsageTableName  string
	BackendTimeout  time.Duration
	CacheTTL        time.Duration
}

func LoadConfig() *Config {
	host := strings.TrimRight(getEnv("WORKSPACE_HOST", "http://localhost:8080"), "/")

	timeoutStr := getEnv("BACKEND_TIMEOUT", "120s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		timeout = 120 * time.Second
	}

	ttlStr := getEnv("METADATA_CACHE_TTL", "5m")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		ttl = 5 * time.Minute
	}

	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		WorkspaceHost:   host,
		ServingEndpoint: getEnv("SERVING_ENDPOINT", "samplechat-model"),
		CatalogName:     getEnv("CATALOG_NAME", "main"),
		SchemaName:      getEnv("SCHEMA_NAME", "default"),
		TokenURL:        getEnv("TOKEN_URL", host+"/oidc/v1/token"),
		ClientID:        getEnv("CLIENT_ID", ""),
		ClientSecret:    getEnv("CLIENT_SECRET", ""),
		StaticToken:     getEnv("WORKSPACE_TOKEN", ""),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		UsageTableName:  getEnv("USAGE_TABLE_NAME", "CatalogChat_UsageLogs"),
		BackendTimeout:  timeout,
		CacheTTL:        ttl,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
