package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort string   `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Redis    Redis    `yaml:"redis"`
	Postgres Postgres `yaml:"postgres"`
	Match    Match    `yaml:"match"`
	Players  Players  `yaml:"players"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// Postgres - finished matches are archived only when DSN is set.
type Postgres struct {
	DSN string `yaml:"dsn" env:"POSTGRES_DSN" env-default:""`
}

type Match struct {
	MaxRetries  int           `yaml:"max-retries" env:"MATCH_MAX_RETRIES" env-default:"3"`
	MoveTimeout time.Duration `yaml:"move-timeout" env:"MATCH_MOVE_TIMEOUT" env-default:"90s"`
	MoveDelay   time.Duration `yaml:"move-delay" env:"MATCH_MOVE_DELAY" env-default:"0s"`
	Seed        int64         `yaml:"seed" env:"MATCH_SEED" env-default:"0"`
}

type Players struct {
	X Player `yaml:"x" env-prefix:"PLAYER_X_"`
	O Player `yaml:"o" env-prefix:"PLAYER_O_"`
}

// Player - kind is one of random, openai, openrouter or anthropic.
// Empty model and base-url fall back to the provider's environment variables.
type Player struct {
	Kind      string `yaml:"kind" env:"KIND" env-default:"random"`
	Model     string `yaml:"model" env:"MODEL" env-default:""`
	BaseURL   string `yaml:"base-url" env:"BASE_URL" env-default:""`
	MaxTokens int    `yaml:"max-tokens" env:"MAX_TOKENS" env-default:"0"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	return config, nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
