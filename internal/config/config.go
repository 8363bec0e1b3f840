package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	DefaultElasticsearchURL = "http://127.0.0.1:9200"
	DefaultIndex            = "ckan"
	DefaultTimeout          = 10 * time.Second

	DriverKafka = "kafka"
	DriverRedis = "redis"
)

type Config struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	HTTP struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
	} `yaml:"http"`

	Elasticsearch struct {
		URL           string        `yaml:"url"`
		User          string        `yaml:"user"`
		Password      string        `yaml:"password"`
		Index         string        `yaml:"index"`
		Timeout       Duration `yaml:"timeout"`
		SkipTLSVerify bool          `yaml:"skip_tls_verify"`
	} `yaml:"elasticsearch"`

	Events struct {
		Driver string `yaml:"driver"`
	} `yaml:"events"`

	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topics  []string `yaml:"topics"`
		GroupID string   `yaml:"group_id"`
	} `yaml:"kafka"`

	Redis struct {
		URL       string        `yaml:"url"`
		StreamKey string        `yaml:"stream_key"`
		Group     string        `yaml:"group"`
		Consumer  string        `yaml:"consumer"`
		BatchSize int64         `yaml:"batch_size"`
		Block     Duration `yaml:"block"`
	} `yaml:"redis"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{
		Env:      "development",
		LogLevel: "info",
	}
	cfg.HTTP.Host = "0.0.0.0"
	cfg.HTTP.Port = "8096"
	cfg.Elasticsearch.URL = DefaultElasticsearchURL
	cfg.Elasticsearch.Index = DefaultIndex
	cfg.Elasticsearch.Timeout = Duration(DefaultTimeout)
	cfg.Events.Driver = DriverKafka
	cfg.Kafka.Topics = []string{"ckan.dataset.events"}
	cfg.Kafka.GroupID = "search-indexer"
	cfg.Redis.URL = "redis://localhost:6379"
	cfg.Redis.StreamKey = "ckan:events:datasets"
	cfg.Redis.Group = "search-indexer"
	cfg.Redis.Consumer = "search-indexer-" + uuid.NewString()[:8]
	cfg.Redis.BatchSize = 10
	cfg.Redis.Block = Duration(5 * time.Second)
	return cfg
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	data = expandEnvVars(data)
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Env = getEnv("APP_ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.HTTP.Host = getEnv("APP_HOST", c.HTTP.Host)
	c.HTTP.Port = firstEnv("APP_PORT", "HTTP_PORT", c.HTTP.Port)

	c.Elasticsearch.URL = getEnv("ELASTICSEARCH_URL", c.Elasticsearch.URL)
	c.Elasticsearch.User = getEnv("ELASTICSEARCH_USER", c.Elasticsearch.User)
	c.Elasticsearch.Password = getEnv("ELASTICSEARCH_PASSWORD", c.Elasticsearch.Password)
	c.Elasticsearch.Index = getEnv("ELASTICSEARCH_INDEX", c.Elasticsearch.Index)
	if v := os.Getenv("ELASTICSEARCH_TIMEOUT"); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("config: ELASTICSEARCH_TIMEOUT: %w", err)
		}
		c.Elasticsearch.Timeout = Duration(d)
	}
	if v := os.Getenv("ELASTICSEARCH_SKIP_TLS_VERIFY"); v != "" {
		c.Elasticsearch.SkipTLSVerify = v == "true" || v == "1"
	}

	c.Events.Driver = getEnv("EVENTS_DRIVER", c.Events.Driver)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_TOPICS"); v != "" {
		c.Kafka.Topics = splitList(v)
	}
	c.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", c.Kafka.GroupID)

	c.Redis.URL = getEnv("REDIS_STREAMS_URL", c.Redis.URL)
	c.Redis.StreamKey = getEnv("REDIS_STREAM_KEY", c.Redis.StreamKey)
	c.Redis.Group = getEnv("REDIS_GROUP", c.Redis.Group)
	c.Redis.Consumer = getEnv("REDIS_CONSUMER", c.Redis.Consumer)
	if v := os.Getenv("REDIS_BATCH_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Redis.BatchSize = n
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Elasticsearch.URL) == "" {
		return errors.New("config: ELASTICSEARCH_URL is required")
	}
	if strings.TrimSpace(c.Elasticsearch.Index) == "" {
		return errors.New("config: ELASTICSEARCH_INDEX is required")
	}
	if c.Elasticsearch.Timeout < 0 {
		return errors.New("config: ELASTICSEARCH_TIMEOUT must not be negative")
	}
	switch c.Events.Driver {
	case DriverKafka, DriverRedis:
	default:
		return fmt.Errorf("config: EVENTS_DRIVER must be %q or %q, got %q", DriverKafka, DriverRedis, c.Events.Driver)
	}
	return nil
}

// Settings returns initialised connection settings for the configured engine.
// Without a URL override the default local endpoint is used.
func (c *Config) Settings() *Settings {
	s := &Settings{}
	if strings.TrimSpace(c.Elasticsearch.URL) == "" {
		s.InitDefault()
		return s
	}
	s.Init(c.Elasticsearch.URL, c.Elasticsearch.User, c.Elasticsearch.Password)
	return s
}

// parseTimeout accepts Go durations ("2500ms") and bare seconds ("10").
func parseTimeout(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, def, hasDef := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDef {
			val = def
		}
		return []byte(val)
	})
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	keys := keysAndDef[:len(keysAndDef)-1]
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
