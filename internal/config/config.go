package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig 数据库配置（postgres 直连后端）
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置（Addr 为空时不启用镜像）
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQTTConfig MQTT配置（Broker 为空时不发布报警事件）
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

const (
	BackendHTTP     = "http"
	BackendPostgres = "postgres"
)

// Config 报警服务配置
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	MQTT     MQTTConfig     `yaml:"mqtt"`

	// 远端存储配置
	Store struct {
		Backend     string        `yaml:"backend"`      // "http" 或 "postgres"
		URL         string        `yaml:"url"`          // 查询服务地址
		HTTPTimeout time.Duration `yaml:"http_timeout"` // 0 表示不设超时
		RetryCount  int           `yaml:"retry_count"`
	} `yaml:"store"`

	// 报警服务特定配置
	Alarm struct {
		PollInterval     float64 `yaml:"poll_interval"`     // 轮询间隔（秒），sleep 时向上取整
		FetchConcurrency int     `yaml:"fetch_concurrency"` // 拉取并发上限
		Observatories    []int   `yaml:"observatories"`     // 观测站白名单，空表示全部

		// Redis 缓存配置
		Cache struct {
			AlarmKeyPrefix string `yaml:"alarm_key_prefix"` // 如 "hns:obs:"
			AlarmSuffix    string `yaml:"alarm_suffix"`     // 如 ":alarms"
			AlarmTTL       int    `yaml:"alarm_ttl"`        // 秒
			StateKeyPrefix string `yaml:"state_key_prefix"` // 如 "hns:alarm:state:"
		} `yaml:"cache"`
	} `yaml:"alarm"`

	Metrics struct {
		Addr string `yaml:"addr"` // 为空时不启动 /metrics
	} `yaml:"metrics"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load 加载配置：默认值 → YAML 文件（ALARM_CONFIG）→ 环境变量
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("ALARM_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "hns"
	cfg.Database.SSLMode = "disable"

	cfg.MQTT.ClientID = "hns-alarm"
	cfg.MQTT.TopicPrefix = "hns"
	cfg.MQTT.QoS = 1

	cfg.Store.Backend = BackendHTTP
	cfg.Store.URL = "http://192.168.1.20:2000/"
	cfg.Store.HTTPTimeout = 30 * time.Second

	cfg.Alarm.PollInterval = 10
	cfg.Alarm.FetchConcurrency = 8
	cfg.Alarm.Cache.AlarmKeyPrefix = "hns:obs:"
	cfg.Alarm.Cache.AlarmSuffix = ":alarms"
	cfg.Alarm.Cache.AlarmTTL = 60
	cfg.Alarm.Cache.StateKeyPrefix = "hns:alarm:state:"

	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	return cfg
}

func applyEnv(cfg *Config) error {
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	if v, ok, err := getEnvInt("DB_PORT"); err != nil {
		return err
	} else if ok {
		cfg.Database.Port = v
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	if v, ok, err := getEnvInt("REDIS_DB"); err != nil {
		return err
	} else if ok {
		cfg.Redis.DB = v
	}

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", cfg.MQTT.Username)
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", cfg.MQTT.TopicPrefix)
	if v, ok, err := getEnvInt("MQTT_QOS"); err != nil {
		return err
	} else if ok {
		cfg.MQTT.QoS = byte(v)
	}

	cfg.Store.Backend = getEnv("ALARM_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.URL = getEnv("ALARM_DB_URL", cfg.Store.URL)
	if v := os.Getenv("ALARM_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ALARM_HTTP_TIMEOUT: %w", err)
		}
		cfg.Store.HTTPTimeout = d
	}
	if v, ok, err := getEnvInt("ALARM_HTTP_RETRY"); err != nil {
		return err
	} else if ok {
		cfg.Store.RetryCount = v
	}

	if v := os.Getenv("ALARM_POLL_INTERVAL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid ALARM_POLL_INTERVAL: %w", err)
		}
		cfg.Alarm.PollInterval = f
	}
	if v, ok, err := getEnvInt("ALARM_FETCH_CONCURRENCY"); err != nil {
		return err
	} else if ok {
		cfg.Alarm.FetchConcurrency = v
	}
	if v := os.Getenv("ALARM_OBSERVATORIES"); v != "" {
		ids, err := splitInts(v)
		if err != nil {
			return fmt.Errorf("invalid ALARM_OBSERVATORIES: %w", err)
		}
		cfg.Alarm.Observatories = ids
	}

	cfg.Alarm.Cache.AlarmKeyPrefix = getEnv("CACHE_ALARM_PREFIX", cfg.Alarm.Cache.AlarmKeyPrefix)
	cfg.Alarm.Cache.StateKeyPrefix = getEnv("CACHE_STATE_PREFIX", cfg.Alarm.Cache.StateKeyPrefix)
	if v, ok, err := getEnvInt("CACHE_ALARM_TTL"); err != nil {
		return err
	} else if ok {
		cfg.Alarm.Cache.AlarmTTL = v
	}

	cfg.Metrics.Addr = getEnv("METRICS_ADDR", cfg.Metrics.Addr)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Alarm.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.Alarm.PollInterval)
	}
	if c.Alarm.FetchConcurrency <= 0 {
		return fmt.Errorf("fetch concurrency must be positive, got %d", c.Alarm.FetchConcurrency)
	}
	switch c.Store.Backend {
	case BackendHTTP:
		if c.Store.URL == "" {
			return fmt.Errorf("store url is required for http backend")
		}
	case BackendPostgres:
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}
	return nil
}

// SleepInterval 轮询间隔向上取整到整秒
func (c *Config) SleepInterval() time.Duration {
	return time.Duration(math.Ceil(c.Alarm.PollInterval)) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string) (int, bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, true, nil
}

func splitInts(value string) ([]int, error) {
	var result []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}
