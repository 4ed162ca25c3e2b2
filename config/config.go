package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

type ChainFamily string

const (
	ChainFamilyEVM  ChainFamily = "evm"
	ChainFamilyICON ChainFamily = "icon"
)

const (
	defaultPollInterval      = 2 * time.Second
	defaultBlockHeightMargin = 5
)

type RPCConfig struct {
	Host    string   `yaml:"host"`
	Timeout Duration `yaml:"timeout"`
}

type ChainConfig struct {
	ChainID      string      `yaml:"-"`
	Name         string      `yaml:"name"`
	Family       ChainFamily `yaml:"family"`
	RPC          *RPCConfig  `yaml:"rpc"`
	XCallAddress string      `yaml:"xcall_address"`
	BlockTime    Duration    `yaml:"block_time"`
}

type RedisConfig struct {
	Host string `yaml:"host" envconfig:"REDIS_HOST"`
	Port int    `yaml:"port" envconfig:"REDIS_PORT"`
}

type DBConfig struct {
	User     string `yaml:"user" envconfig:"POSTGRES_USER"`
	Password string `yaml:"password" envconfig:"POSTGRES_PASSWORD"`
	Host     string `yaml:"host" envconfig:"POSTGRES_HOST"`
	Port     int    `yaml:"port" envconfig:"POSTGRES_PORT"`
	DB       string `yaml:"database" envconfig:"POSTGRES_DB"`
}

type StorageConfig struct {
	Backend  string       `yaml:"backend"`
	Redis    *RedisConfig `yaml:"redis"`
	Postgres *DBConfig    `yaml:"postgres"`
}

type PresenterConfig struct {
	Host string `yaml:"host"`
}

type Config struct {
	LogLevel          Level                   `yaml:"log_level" envconfig:"LOG_LEVEL"`
	HubChainID        string                  `yaml:"hub_chain"`
	PollInterval      Duration                `yaml:"poll_interval"`
	BlockHeightMargin uint64                  `yaml:"block_height_margin"`
	Chains            map[string]*ChainConfig `yaml:"chains"`
	Storage           *StorageConfig          `yaml:"storage"`
	Presenter         *PresenterConfig        `yaml:"presenter"`
}

func ReadConfig(blob []byte) (*Config, error) {
	cfg := new(Config)
	blob = []byte(os.ExpandEnv(string(blob)))
	if err := parseYaml(cfg, blob); err != nil {
		return nil, err
	}
	if err := envconfig.Process("tracker", cfg); err != nil {
		return nil, fmt.Errorf("can't process env config overrides: %w", err)
	}
	if err := cfg.init(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ReadConfigFromFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file: %w", err)
	}
	return ReadConfig(blob)
}

func (cfg *Config) init() error {
	if cfg.LogLevel == 0 {
		cfg.LogLevel = Level(logrus.InfoLevel)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}
	if cfg.BlockHeightMargin == 0 {
		cfg.BlockHeightMargin = defaultBlockHeightMargin
	}
	if len(cfg.Chains) == 0 {
		return fmt.Errorf("no chains configured")
	}
	for chainID, chain := range cfg.Chains {
		chain.ChainID = chainID
		if chain.Name == "" {
			chain.Name = chainID
		}
		switch chain.Family {
		case ChainFamilyEVM, ChainFamilyICON:
		default:
			return fmt.Errorf("chain %s has unsupported family %q", chainID, chain.Family)
		}
		if chain.RPC == nil || chain.RPC.Host == "" {
			return fmt.Errorf("chain %s has no rpc host", chainID)
		}
		if chain.RPC.Timeout == 0 {
			chain.RPC.Timeout = Duration(10 * time.Second)
		}
	}
	if _, ok := cfg.Chains[cfg.HubChainID]; !ok {
		return fmt.Errorf("hub chain %q is not present in chains", cfg.HubChainID)
	}
	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{Backend: "memory"}
	}
	switch cfg.Storage.Backend {
	case "", "memory":
		cfg.Storage.Backend = "memory"
	case "redis":
		// envconfig allocates nested pointers, so check fields, not nil
		if cfg.Storage.Redis == nil || cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis storage backend requires a redis host")
		}
	case "postgres":
		if cfg.Storage.Postgres == nil || cfg.Storage.Postgres.Host == "" {
			return fmt.Errorf("postgres storage backend requires a postgres host")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
	return nil
}

func (cfg *Config) ChainNames() map[string]string {
	names := make(map[string]string, len(cfg.Chains))
	for chainID, chain := range cfg.Chains {
		names[chainID] = chain.Name
	}
	return names
}
