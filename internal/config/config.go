package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel   string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	SocketPort string `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`
	Redis      Redis  `yaml:"redis"`
	Node       Node   `yaml:"node"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// Node is the static pairing configuration. The two paired deployments point
// at each other and carry the two distinct symbols.
type Node struct {
	ID        string `yaml:"id" env:"NODE_ID"`
	PartnerID string `yaml:"partner-id" env:"NODE_PARTNER_ID"`
	Symbol    string `yaml:"symbol" env:"NODE_SYMBOL" env-default:"X"`
	Topic     string `yaml:"topic" env:"FEDERATION_TOPIC" env-default:"tictactoe:federation"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
