package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"apiregistry/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	LatestVersionFixed   = "fixed"
	LatestVersionHighest = "highest"

	DefaultLatestVersion = "1.0.0"
	DefaultChunkSize     = 25
	DefaultConcurrency   = 4
)

// Config is built once at startup and handed to each component by value.
type Config struct {
	Region   string `yaml:"region"`
	Service  string `yaml:"service"`
	Stage    string `yaml:"stage"`
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
	HTTPAddr string `yaml:"http_addr"`

	// TrustedProxies may set X-Forwarded-For; none are trusted by default.
	TrustedProxies []string `yaml:"trusted_proxies"`

	Authorization Authorization `yaml:"Authorization"`
	Tables        Tables        `yaml:"tables"`
	Store         Store         `yaml:"store"`
	Seed          Seed          `yaml:"seed"`
	Policy        Policy        `yaml:"policy"`
	RateLimit     RateLimit     `yaml:"rate_limit"`
}

type Authorization struct {
	WhitelistIP []string `yaml:"whitelist_ip"`
	BlacklistIP []string `yaml:"blacklist_ip"`
	PrincipalID string   `yaml:"principal_id"`
}

// Tables overrides the derived table names when set.
type Tables struct {
	ServiceInfo string `yaml:"service_info"`
	VersionInfo string `yaml:"version_info"`
}

type Store struct {
	Backend          string `yaml:"backend"`
	DynamoDBEndpoint string `yaml:"dynamodb_endpoint"`
	RedisAddr        string `yaml:"redis_addr"`
	RedisDB          int    `yaml:"redis_db"`
	RedisKeyPrefix   string `yaml:"redis_key_prefix"`

	// Credentials are only read from the environment.
	AWSAccessKeyID     string `yaml:"-"`
	AWSSecretAccessKey string `yaml:"-"`
	AWSSessionToken    string `yaml:"-"`
	RedisPassword      string `yaml:"-"`
	PostgresDSN        string `yaml:"-"`
}

type Seed struct {
	ChunkSize           int    `yaml:"chunk_size"`
	Concurrency         int    `yaml:"concurrency"`
	LatestVersionPolicy string `yaml:"latest_version_policy"`
	LatestVersion       string `yaml:"latest_version"`
	DocumentsRoot       string `yaml:"documents_root"`
	CatalogPath         string `yaml:"catalog_path"`
}

type Policy struct {
	BundlePath string `yaml:"bundle_path"`
}

type RateLimit struct {
	Requests      int `yaml:"requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

func (r RateLimit) Window() time.Duration {
	if r.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowSeconds) * time.Second
}

// Load reads the YAML file at path, then applies environment overrides and
// defaults. Every failure wraps domain.ErrConfig.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, fmt.Errorf("%w: config path is required", domain.ErrConfig)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: config load failed (%s): %v", domain.ErrConfig, path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: config parse failed: %v", domain.ErrConfig, err)
	}
	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Region = envDefault("AWS_REGION", cfg.Region)
	cfg.Service = envDefault("SERVICE", cfg.Service)
	cfg.Stage = envDefault("STAGE", cfg.Stage)
	cfg.LogLevel = envDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogJSON = envBoolDefault("LOG_JSON", cfg.LogJSON)
	cfg.HTTPAddr = envDefault("HTTP_ADDR", cfg.HTTPAddr)

	cfg.Store.Backend = envDefault("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.DynamoDBEndpoint = envDefault("DYNAMODB_ENDPOINT", cfg.Store.DynamoDBEndpoint)
	cfg.Store.RedisAddr = envDefault("REDIS_ADDR", cfg.Store.RedisAddr)
	cfg.Store.RedisDB = envIntDefault("REDIS_DB", cfg.Store.RedisDB)
	cfg.Store.AWSAccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.Store.AWSSecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	cfg.Store.AWSSessionToken = os.Getenv("AWS_SESSION_TOKEN")
	cfg.Store.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.Store.PostgresDSN = os.Getenv("POSTGRES_DSN")

	cfg.Seed.ChunkSize = envIntDefault("SEED_CHUNK_SIZE", cfg.Seed.ChunkSize)
	cfg.Seed.Concurrency = envIntDefault("SEED_CONCURRENCY", cfg.Seed.Concurrency)
	cfg.Seed.CatalogPath = envDefault("SEED_CATALOG_PATH", cfg.Seed.CatalogPath)
	cfg.Seed.DocumentsRoot = envDefault("SEED_DOCUMENTS_ROOT", cfg.Seed.DocumentsRoot)

	cfg.Policy.BundlePath = envDefault("POLICY_BUNDLE_PATH", cfg.Policy.BundlePath)

	cfg.RateLimit.Requests = envIntDefault("RATE_LIMIT_REQUESTS", cfg.RateLimit.Requests)
	cfg.RateLimit.WindowSeconds = envIntDefault("RATE_LIMIT_WINDOW_SECONDS", cfg.RateLimit.WindowSeconds)
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendDynamoDB
	}
	if cfg.Store.RedisKeyPrefix == "" {
		cfg.Store.RedisKeyPrefix = "registry"
	}
	if cfg.Seed.ChunkSize <= 0 {
		cfg.Seed.ChunkSize = DefaultChunkSize
	}
	if cfg.Seed.Concurrency <= 0 {
		cfg.Seed.Concurrency = DefaultConcurrency
	}
	if cfg.Seed.LatestVersionPolicy == "" {
		cfg.Seed.LatestVersionPolicy = LatestVersionFixed
	}
	if cfg.Seed.LatestVersion == "" {
		cfg.Seed.LatestVersion = DefaultLatestVersion
	}
	if cfg.Authorization.PrincipalID == "" {
		cfg.Authorization.PrincipalID = domain.DefaultPrincipal
	}
}

// TableName returns the configured name for kind, or the derived
// {service}-{stage}-swagger-dynamo-{kind} name.
func (c Config) TableName(kind domain.TableKind) string {
	switch kind {
	case domain.TableServiceInfo:
		if c.Tables.ServiceInfo != "" {
			return c.Tables.ServiceInfo
		}
	case domain.TableVersionInfo:
		if c.Tables.VersionInfo != "" {
			return c.Tables.VersionInfo
		}
	}
	return fmt.Sprintf("%s-%s-swagger-dynamo-%s", c.Service, c.Stage, kind)
}

// ValidateStore checks what the seeder and the table dumper need.
func ValidateStore(cfg Config) error {
	var problems []string
	if cfg.Tables.ServiceInfo == "" || cfg.Tables.VersionInfo == "" {
		if strings.TrimSpace(cfg.Service) == "" {
			problems = append(problems, "service is required to derive table names")
		}
		if strings.TrimSpace(cfg.Stage) == "" {
			problems = append(problems, "stage is required to derive table names")
		}
	}
	switch cfg.Store.Backend {
	case BackendDynamoDB:
		if cfg.Region == "" {
			problems = append(problems, "region is required for dynamodb")
		}
	case BackendRedis:
		if cfg.Store.RedisAddr == "" {
			problems = append(problems, "REDIS_ADDR is required for redis")
		}
	case BackendPostgres:
		if cfg.Store.PostgresDSN == "" {
			problems = append(problems, "POSTGRES_DSN is required for postgres")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("unsupported store backend %q", cfg.Store.Backend))
	}
	switch cfg.Seed.LatestVersionPolicy {
	case LatestVersionFixed, LatestVersionHighest:
	default:
		problems = append(problems, fmt.Sprintf("unsupported latest_version_policy %q", cfg.Seed.LatestVersionPolicy))
	}
	return joinProblems(problems)
}

// ValidateAuthorization rejects a deployment with no allowlist. An empty
// list would leave the gateway to pick a default, which is never explicit.
func ValidateAuthorization(cfg Config) error {
	if cfg.Authorization.WhitelistIP == nil {
		return fmt.Errorf("%w: Authorization.whitelist_ip is missing", domain.ErrConfig)
	}
	if len(cfg.Authorization.WhitelistIP) == 0 {
		return fmt.Errorf("%w: Authorization.whitelist_ip is empty", domain.ErrConfig)
	}
	return nil
}

func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrConfig, strings.Join(problems, "; "))
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}
