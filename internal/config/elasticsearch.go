package config

import (
	"time"
)

// ElasticsearchConfig содержит конфигурацию для подключения к Elasticsearch
type ElasticsearchConfig struct {
	Enabled    bool
	URL        string
	Index      string
	Username   string
	Password   string
	MaxRetries int
	Timeout    time.Duration
}

// LoadElasticsearchConfig загружает конфигурацию Elasticsearch из переменных окружения
func LoadElasticsearchConfig() ElasticsearchConfig {
	return newLoader().elasticsearch()
}

func (l loader) elasticsearch() ElasticsearchConfig {
	timeout := 30 * time.Second
	if val := l.getEnv("ELASTICSEARCH_TIMEOUT", ""); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			timeout = parsed
		}
	}

	return ElasticsearchConfig{
		Enabled:    l.getEnvBool("ELASTICSEARCH_ENABLED", false),
		URL:        l.getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
		Index:      l.getEnv("ELASTICSEARCH_INDEX", "bookings"),
		Username:   l.getEnv("ELASTICSEARCH_USERNAME", ""),
		Password:   l.getEnv("ELASTICSEARCH_PASSWORD", ""),
		MaxRetries: l.getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3),
		Timeout:    timeout,
	}
}
