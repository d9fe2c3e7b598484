// Package config loads and validates the JSON application configuration
// described in spec.md §6, grounded on
// staff_portal/order/src/config.rs::AppConfig::parse_from_file — the
// validation order (listener -> logging -> datastore) and the failure
// codes are reproduced exactly.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"ecommerce-core/internal/apperror"
)

// Platform ceilings referenced by validation (spec.md §6).
const (
	MaxItemsLimit         = 1_000_000
	MaxConnsLimit         = 100
	MaxIdleTimeoutSecs    = 3600
	DefaultConfigFileName = "app_config.json"
)

// Route is one entry of the route table.
type Route struct {
	Path    string `json:"path"`
	Handler string `json:"handler"`
}

// LogHandlerKind distinguishes a console sink from a file sink.
type LogHandlerKind string

const (
	LogHandlerStdout LogHandlerKind = "stdout"
	LogHandlerFile   LogHandlerKind = "file"
)

// LogHandler is one destination a Logger entry may reference by alias.
type LogHandler struct {
	Alias string         `json:"alias"`
	Kind  LogHandlerKind `json:"kind"`
	Path  string         `json:"path,omitempty"`
}

// LoggerCfg binds a named logger to a declared handler alias.
type LoggerCfg struct {
	Name         string `json:"name"`
	HandlerAlias string `json:"handler_alias"`
	Level        string `json:"level"`
}

// DataStoreKind distinguishes the in-memory backend from SQL.
type DataStoreKind string

const (
	DataStoreInMemory DataStoreKind = "in-memory"
	DataStoreSQL      DataStoreKind = "sql"
)

// DataStoreCfg is one named datastore entry.
type DataStoreCfg struct {
	Kind            DataStoreKind `json:"kind"`
	MaxItems        int           `json:"max_items,omitempty"`
	DSN             string        `json:"dsn,omitempty"`
	MaxConns        int           `json:"max_conns,omitempty"`
	IdleTimeoutSecs int           `json:"idle_timeout_secs,omitempty"`
}

// RPCHandlerType selects the transport backing the RPC router (spec.md §6).
type RPCHandlerType string

const (
	RPCHandlerDummy RPCHandlerType = "dummy"
	RPCHandlerAMQP  RPCHandlerType = "AMQP"
)

// RPCCfg configures the inbound RPC transport.
type RPCCfg struct {
	HandlerType RPCHandlerType `json:"handler_type"`
	AMQPUrl     string         `json:"amqp_url,omitempty"`
}

// AppConfig is the top-level parsed configuration.
type AppConfig struct {
	Listeners               []string                `json:"listeners"`
	Routes                  []Route                 `json:"routes"`
	LogHandlers             []LogHandler             `json:"log_handlers"`
	Loggers                 []LoggerCfg              `json:"loggers"`
	DataStores              map[string]DataStoreCfg `json:"data_stores"`
	RPC                     RPCCfg                  `json:"rpc"`
	AuthKeystorePath        string                  `json:"auth_keystore_path"`
	ConfidentialityProvider string                  `json:"confidentiality_provider"`
}

// Paths resolves the four configuration-locating environment variables
// from spec.md §6.
type Paths struct {
	ServiceBasePath string
	SysBasePath     string
	ConfigFilePath  string
	SecretFilePath  string
}

// ResolvePaths reads SERVICE_BASE_PATH, SYS_BASE_PATH, CONFIG_FILE_PATH and
// SECRET_FILE_PATH. ConfigFilePath defaults to
// "<SERVICE_BASE_PATH>/app_config.json" when unset.
func ResolvePaths() Paths {
	p := Paths{
		ServiceBasePath: os.Getenv("SERVICE_BASE_PATH"),
		SysBasePath:     os.Getenv("SYS_BASE_PATH"),
		ConfigFilePath:  os.Getenv("CONFIG_FILE_PATH"),
		SecretFilePath:  os.Getenv("SECRET_FILE_PATH"),
	}
	if p.ConfigFilePath == "" && p.ServiceBasePath != "" {
		p.ConfigFilePath = filepath.Join(p.ServiceBasePath, DefaultConfigFileName)
	}
	return p
}

// ParseFromFile reads and validates the JSON config at path, matching
// parse_from_file: an unset or unreadable path is NoRouteApiServerCfg,
// malformed JSON is InvalidJsonFormat, and a validation failure carries
// the code Validate assigns to the field it names (InvalidRouteConfig,
// NoRouteApiServerCfg, InvalidInput, ExceedingMaxLimit or MissingDataStore).
func ParseFromFile(path string) (*AppConfig, error) {
	if path == "" {
		return nil, apperror.New(apperror.NoRouteAPIServerCfg, "config file path not set")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.Wrap(apperror.NoRouteAPIServerCfg, "read config file", err)
	}
	var cfg AppConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, apperror.Wrap(apperror.InvalidJSONFormat, "parse config json", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reproduces parse_from_file's validation order: listeners and
// route table first, then logging handlers/loggers, then datastore limits.
func (c *AppConfig) Validate() error {
	if len(c.Listeners) == 0 {
		return apperror.New(apperror.NoRouteAPIServerCfg, "no listeners configured")
	}
	if err := c.validateRoutes(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateDataStores(); err != nil {
		return err
	}
	if err := c.validateRPC(); err != nil {
		return err
	}
	return nil
}

func (c *AppConfig) validateRoutes() error {
	if len(c.Routes) == 0 {
		return apperror.New(apperror.InvalidRouteConfig, "route table must not be empty")
	}
	for _, r := range c.Routes {
		if r.Path == "" || r.Handler == "" {
			return apperror.New(apperror.InvalidRouteConfig, "route missing path or handler")
		}
	}
	return nil
}

func (c *AppConfig) validateLogging() error {
	aliases := make(map[string]LogHandler, len(c.LogHandlers))
	for _, h := range c.LogHandlers {
		if h.Alias == "" {
			return apperror.New(apperror.InvalidInput, "log handler missing alias")
		}
		if h.Kind == LogHandlerFile && h.Path == "" {
			return apperror.New(apperror.InvalidInput, "file log handler missing path: "+h.Alias)
		}
		aliases[h.Alias] = h
	}
	for _, l := range c.Loggers {
		if _, ok := aliases[l.HandlerAlias]; !ok {
			return apperror.New(apperror.InvalidInput, "logger references unknown handler alias: "+l.HandlerAlias)
		}
	}
	return nil
}

func (c *AppConfig) validateDataStores() error {
	if len(c.DataStores) == 0 {
		return apperror.New(apperror.MissingDataStore, "no data stores configured")
	}
	for name, ds := range c.DataStores {
		switch ds.Kind {
		case DataStoreInMemory:
			if ds.MaxItems <= 0 || ds.MaxItems > MaxItemsLimit {
				return apperror.New(apperror.ExceedingMaxLimit, "data store "+name+" max_items out of range")
			}
		case DataStoreSQL:
			if ds.MaxConns <= 0 || ds.MaxConns > MaxConnsLimit {
				return apperror.New(apperror.ExceedingMaxLimit, "data store "+name+" max_conns out of range")
			}
			if ds.IdleTimeoutSecs <= 0 || ds.IdleTimeoutSecs > MaxIdleTimeoutSecs {
				return apperror.New(apperror.ExceedingMaxLimit, "data store "+name+" idle_timeout_secs out of range")
			}
			if ds.DSN == "" {
				return apperror.New(apperror.MissingDataStore, "data store "+name+" missing dsn")
			}
		default:
			return apperror.New(apperror.MissingDataStore, "data store "+name+" has unknown kind")
		}
	}
	return nil
}

func (c *AppConfig) validateRPC() error {
	switch c.RPC.HandlerType {
	case RPCHandlerDummy:
		return nil
	case RPCHandlerAMQP:
		if c.RPC.AMQPUrl == "" {
			return apperror.New(apperror.InvalidInput, "AMQP rpc handler missing amqp_url")
		}
		return nil
	default:
		return apperror.New(apperror.InvalidInput, "unknown rpc handler_type")
	}
}
