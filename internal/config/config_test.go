package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/askmesh/askmesh/internal/schema"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("askmesh-api", map[string]string{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 5*time.Second || cfg.HTTP.WriteTimeout != 0 || cfg.HTTP.IdleTimeout != 60*time.Second {
		t.Fatalf("HTTP timeouts = %s/%s/%s", cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, cfg.HTTP.IdleTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug || !cfg.Observability.LogJSON {
		t.Fatalf("Observability = %+v", cfg.Observability)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Inference.Host != "http://localhost:11434" || cfg.Inference.Model != "llama3" || cfg.Inference.Timeout != 0 {
		t.Fatalf("Inference = %+v", cfg.Inference)
	}
	if cfg.Dataset.Variant != schema.VariantMongo {
		t.Fatalf("Dataset.Variant = %q", cfg.Dataset.Variant)
	}
	if cfg.Mongo.URI != "mongodb://localhost:27017/" || cfg.Mongo.Database != "admin" || cfg.Mongo.Collection != "ordercollections" {
		t.Fatalf("Mongo = %+v", cfg.Mongo)
	}
	if cfg.SQL.Driver != "mysql" || cfg.SQL.Host != "localhost" || cfg.SQL.Port != 3306 || cfg.SQL.User != "mysqluser" || cfg.SQL.Password != "mysqlpassword" || cfg.SQL.Name != "mcp_test" {
		t.Fatalf("SQL = %+v", cfg.SQL)
	}
	if cfg.SQL.Table != "sales" || cfg.SQL.MaxOpenConns != 10 {
		t.Fatalf("SQL table/pool = %q/%d", cfg.SQL.Table, cfg.SQL.MaxOpenConns)
	}
	if cfg.Query.RowLimit != 0 || cfg.Session.TTL != 30*time.Minute {
		t.Fatalf("Query/Session = %+v/%+v", cfg.Query, cfg.Session)
	}
	if cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled should default to false")
	}
	if cfg.ObjectStore.Endpoint != "localhost:9000" || cfg.ObjectStore.Bucket != "askmesh" || !cfg.ObjectStore.AutoCreateBucket {
		t.Fatalf("ObjectStore = %+v", cfg.ObjectStore)
	}
	if cfg.DatasetName() != "ordercollections" {
		t.Fatalf("DatasetName() = %q", cfg.DatasetName())
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("askmesh-api", map[string]string{"ASKMESH_PROFILE": "prod"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadTestProfileDefaults(t *testing.T) {
	cfg, err := Load("askmesh-api", map[string]string{"ASKMESH_PROFILE": " TEST "})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":18080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	cfg, err := Load("askmesh-api", map[string]string{
		"ASKMESH_PROFILE":           "prod",
		"ASKMESH_SERVICE_NAME":      "askmesh-edge",
		"ASKMESH_HTTP_ADDR":         ":9090",
		"ASKMESH_LOG_LEVEL":         "error",
		"ASKMESH_LOG_JSON":          "false",
		"ASKMESH_AUTH_REQUIRED":     "false",
		"ASKMESH_AUTH_STATIC_KEYS":  "k1:alice:asker",
		"OLLAMA_HOST":               "http://ollama:11434",
		"ASKMESH_MODEL":             "sqlcoder",
		"ASKMESH_INFERENCE_TIMEOUT": "90s",
		"ASKMESH_VARIANT":           "mysql",
		"DB_HOST":                   "mysql",
		"DB_PORT":                   "3307",
		"ASKMESH_SQL_TABLE":         "sales_2024",
		"ASKMESH_QUERY_ROW_LIMIT":   "500",
		"ASKMESH_SESSION_TTL":       "5m",
		"ASKMESH_ARCHIVE_ENABLED":   "true",
		"MONGO_URI":                 "mongodb://mongo:27017/",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "askmesh-edge" || cfg.HTTP.Address != ":9090" {
		t.Fatalf("Service/HTTP = %q/%q", cfg.Service.Name, cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelError || cfg.Observability.LogJSON {
		t.Fatalf("Observability = %+v", cfg.Observability)
	}
	if cfg.Auth.Required {
		t.Fatal("explicit ASKMESH_AUTH_REQUIRED=false must win over the prod default")
	}
	if cfg.Inference.Host != "http://ollama:11434" || cfg.Inference.Model != "sqlcoder" || cfg.Inference.Timeout != 90*time.Second {
		t.Fatalf("Inference = %+v", cfg.Inference)
	}
	if cfg.Dataset.Variant != schema.VariantSQL {
		t.Fatalf("Dataset.Variant = %q", cfg.Dataset.Variant)
	}
	if cfg.SQL.Host != "mysql" || cfg.SQL.Port != 3307 || cfg.DatasetName() != "sales_2024" {
		t.Fatalf("SQL = %+v", cfg.SQL)
	}
	if cfg.Query.RowLimit != 500 || cfg.Session.TTL != 5*time.Minute || !cfg.Archive.Enabled {
		t.Fatalf("Query/Session/Archive = %+v/%+v/%+v", cfg.Query, cfg.Session, cfg.Archive)
	}
	if cfg.Mongo.URI != "mongodb://mongo:27017/" {
		t.Fatalf("Mongo.URI = %q", cfg.Mongo.URI)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		environ map[string]string
		want    string
	}{
		{name: "profile", environ: map[string]string{"ASKMESH_PROFILE": "staging"}, want: "ASKMESH_PROFILE"},
		{name: "variant", environ: map[string]string{"ASKMESH_VARIANT": "graph"}, want: ""},
		{name: "duration", environ: map[string]string{"ASKMESH_SESSION_TTL": "soon"}, want: ""},
		{name: "port", environ: map[string]string{"DB_PORT": "mysql"}, want: ""},
		{name: "row limit", environ: map[string]string{"ASKMESH_QUERY_ROW_LIMIT": "-1"}, want: "ASKMESH_QUERY_ROW_LIMIT"},
		{name: "empty addr", environ: map[string]string{"ASKMESH_HTTP_ADDR": " "}, want: "http address"},
		{name: "log level", environ: map[string]string{"ASKMESH_LOG_LEVEL": "loud"}, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load("askmesh-api", tc.environ)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %q, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestLoadUsesServiceNameArgument(t *testing.T) {
	cfg, err := Load("askmesh-migrate", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "askmesh-migrate" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
}
