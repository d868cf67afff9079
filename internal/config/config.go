package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`

	// RequiredPlayers is the team size: room capacity and the auto-start
	// headcount in one.
	RequiredPlayers int `mapstructure:"required_players"`
	// Leaderboard is how long final results stay up before a finished
	// room purges back to lobby.
	Leaderboard time.Duration `mapstructure:"leaderboard"`

	ReadLimit int64 `mapstructure:"read_limit"`
}

func Load() (*Config, error) {
	// Local overrides land in the environment before viper binds it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("required_players", 4)
	v.SetDefault("leaderboard", "10s")
	v.SetDefault("read_limit", 32768)

	_ = v.BindEnv("port", "PORT")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.RequiredPlayers < 1 {
		return nil, fmt.Errorf("required_players must be >= 1, got %d", cfg.RequiredPlayers)
	}
	if cfg.Leaderboard <= 0 {
		return nil, fmt.Errorf("leaderboard duration must be positive, got %s", cfg.Leaderboard)
	}
	return &cfg, nil
}
