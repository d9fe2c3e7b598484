package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"ecommerce-core/internal/apperror"
)

func writeConfig(t *testing.T, dir string, cfg AppConfig) string {
	t.Helper()
	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "app_config.json")
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func validConfig() AppConfig {
	return AppConfig{
		Listeners: []string{"0.0.0.0:8080"},
		Routes:    []Route{{Path: "rpc.order.order_reserved_replica_payment", Handler: "replica"}},
		LogHandlers: []LogHandler{
			{Alias: "console", Kind: LogHandlerStdout},
		},
		Loggers: []LoggerCfg{{Name: "root", HandlerAlias: "console", Level: "info"}},
		DataStores: map[string]DataStoreCfg{
			"orders": {Kind: DataStoreSQL, MaxConns: 10, IdleTimeoutSecs: 300, DSN: "postgres://x"},
		},
		RPC:                     RPCCfg{HandlerType: RPCHandlerDummy},
		AuthKeystorePath:        "/etc/keystore",
		ConfidentialityProvider: "hkdf",
	}
}

func TestParseFromFileValid(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, validConfig())
	cfg, err := ParseFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Listeners) != 1 {
		t.Fatalf("expected one listener, got %d", len(cfg.Listeners))
	}
}

func TestValidateEmptyRouteTable(t *testing.T) {
	cfg := validConfig()
	cfg.Routes = nil
	err := cfg.Validate()
	if code, ok := apperror.CodeOf(err); !ok || code != apperror.InvalidRouteConfig {
		t.Fatalf("expected InvalidRouteConfig, got %v", err)
	}
}

func TestValidateLoggerUnknownAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Loggers[0].HandlerAlias = "nope"
	err := cfg.Validate()
	if code, ok := apperror.CodeOf(err); !ok || code != apperror.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestValidateDataStoreMaxConnsExceeded(t *testing.T) {
	cfg := validConfig()
	ds := cfg.DataStores["orders"]
	ds.MaxConns = MaxConnsLimit + 1
	cfg.DataStores["orders"] = ds
	err := cfg.Validate()
	if code, ok := apperror.CodeOf(err); !ok || code != apperror.ExceedingMaxLimit {
		t.Fatalf("expected ExceedingMaxLimit, got %v", err)
	}
}

func TestValidateFileHandlerMissingPath(t *testing.T) {
	cfg := validConfig()
	cfg.LogHandlers = append(cfg.LogHandlers, LogHandler{Alias: "file1", Kind: LogHandlerFile})
	err := cfg.Validate()
	if code, ok := apperror.CodeOf(err); !ok || code != apperror.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestResolvePathsDefaultsConfigFile(t *testing.T) {
	t.Setenv("SERVICE_BASE_PATH", "/svc")
	t.Setenv("SYS_BASE_PATH", "")
	t.Setenv("CONFIG_FILE_PATH", "")
	t.Setenv("SECRET_FILE_PATH", "")
	p := ResolvePaths()
	if p.ConfigFilePath != filepath.Join("/svc", DefaultConfigFileName) {
		t.Fatalf("unexpected default config path: %s", p.ConfigFilePath)
	}
}
