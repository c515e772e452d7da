package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/askmesh/askmesh/internal/schema"
)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

// Profile-dependent fields carry no envDefault; their defaults are set by
// defaultsForProfile and only an explicit variable overrides them.
type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Inference     InferenceConfig
	Dataset       DatasetConfig
	Mongo         MongoConfig
	SQL           SQLConfig
	Query         QueryConfig
	Session       SessionConfig
	Archive       ArchiveConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string `env:"ASKMESH_SERVICE_NAME"`
}

type HTTPConfig struct {
	Address      string        `env:"ASKMESH_HTTP_ADDR"`
	ReadTimeout  time.Duration `env:"ASKMESH_HTTP_READ_TIMEOUT"  envDefault:"5s"`
	WriteTimeout time.Duration `env:"ASKMESH_HTTP_WRITE_TIMEOUT" envDefault:"0s"`
	IdleTimeout  time.Duration `env:"ASKMESH_HTTP_IDLE_TIMEOUT"  envDefault:"60s"`
}

type InferenceConfig struct {
	Host    string        `env:"OLLAMA_HOST"               envDefault:"http://localhost:11434"`
	Model   string        `env:"ASKMESH_MODEL"             envDefault:"llama3"`
	Timeout time.Duration `env:"ASKMESH_INFERENCE_TIMEOUT" envDefault:"0s"`
}

type DatasetConfig struct {
	Variant schema.Variant `env:"ASKMESH_VARIANT" envDefault:"mongo"`
}

type MongoConfig struct {
	URI        string `env:"MONGO_URI"             envDefault:"mongodb://localhost:27017/"`
	Database   string `env:"MONGO_DB_NAME"         envDefault:"admin"`
	Collection string `env:"MONGO_COLLECTION_NAME" envDefault:"ordercollections"`
}

type SQLConfig struct {
	Driver          string        `env:"ASKMESH_SQL_DRIVER"             envDefault:"mysql"`
	DSN             string        `env:"ASKMESH_SQL_DSN"`
	Host            string        `env:"DB_HOST"                        envDefault:"localhost"`
	Port            int           `env:"DB_PORT"                        envDefault:"3306"`
	User            string        `env:"DB_USER"                        envDefault:"mysqluser"`
	Password        string        `env:"DB_PASSWORD"                    envDefault:"mysqlpassword"`
	Name            string        `env:"DB_NAME"                        envDefault:"mcp_test"`
	Table           string        `env:"ASKMESH_SQL_TABLE"              envDefault:"sales"`
	MaxOpenConns    int           `env:"ASKMESH_SQL_MAX_OPEN_CONNS"     envDefault:"10"`
	MaxIdleConns    int           `env:"ASKMESH_SQL_MAX_IDLE_CONNS"     envDefault:"5"`
	ConnMaxIdleTime time.Duration `env:"ASKMESH_SQL_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"ASKMESH_SQL_CONN_MAX_LIFETIME"  envDefault:"30m"`
}

type QueryConfig struct {
	RowLimit int `env:"ASKMESH_QUERY_ROW_LIMIT" envDefault:"0"`
}

type SessionConfig struct {
	TTL time.Duration `env:"ASKMESH_SESSION_TTL" envDefault:"30m"`
}

type ArchiveConfig struct {
	Enabled bool `env:"ASKMESH_ARCHIVE_ENABLED" envDefault:"false"`
}

type ObjectStoreConfig struct {
	Endpoint         string `env:"ASKMESH_OBJECTSTORE_ENDPOINT"   envDefault:"localhost:9000"`
	Region           string `env:"ASKMESH_OBJECTSTORE_REGION"     envDefault:"us-east-1"`
	Bucket           string `env:"ASKMESH_OBJECTSTORE_BUCKET"     envDefault:"askmesh"`
	AccessKeyID      string `env:"ASKMESH_OBJECTSTORE_ACCESS_KEY" envDefault:"minio"`
	SecretAccessKey  string `env:"ASKMESH_OBJECTSTORE_SECRET_KEY" envDefault:"miniostorage"`
	UseSSL           bool   `env:"ASKMESH_OBJECTSTORE_USE_SSL"`
	Prefix           string `env:"ASKMESH_OBJECTSTORE_PREFIX"`
	AutoCreateBucket bool   `env:"ASKMESH_OBJECTSTORE_AUTO_CREATE_BUCKET"`
}

type ObservabilityConfig struct {
	LogLevel slog.Level `env:"ASKMESH_LOG_LEVEL"`
	LogJSON  bool       `env:"ASKMESH_LOG_JSON" envDefault:"true"`
}

type AuthConfig struct {
	Required   bool   `env:"ASKMESH_AUTH_REQUIRED"`
	StaticKeys string `env:"ASKMESH_AUTH_STATIC_KEYS"`
}

// DatasetName is the table or collection the prompts and executor target.
func (c Config) DatasetName() string {
	if c.Dataset.Variant == schema.VariantSQL {
		return c.SQL.Table
	}
	return c.Mongo.Collection
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, env.ToMap(os.Environ()))
}

func Load(serviceName string, environ map[string]string) (Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}

	profile := ProfileDev
	if raw, ok := environ["ASKMESH_PROFILE"]; ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid ASKMESH_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Service.Name = strings.TrimSpace(cfg.Service.Name)
	cfg.HTTP.Address = strings.TrimSpace(cfg.HTTP.Address)
	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Query.RowLimit < 0 {
		return Config{}, fmt.Errorf("invalid ASKMESH_QUERY_ROW_LIMIT: must be >= 0")
	}
	if cfg.Session.TTL <= 0 {
		return Config{}, fmt.Errorf("invalid ASKMESH_SESSION_TTL: must be > 0")
	}
	if strings.TrimSpace(cfg.DatasetName()) == "" {
		return Config{}, fmt.Errorf("dataset name is required for variant %q", cfg.Dataset.Variant)
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "askmesh-api"},
		HTTP:    HTTPConfig{Address: ":8080"},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
		},
		ObjectStore: ObjectStoreConfig{
			UseSSL:           false,
			AutoCreateBucket: true,
		},
		Auth: AuthConfig{Required: false},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}
