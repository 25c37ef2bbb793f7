// internal/config/config.go
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	MQTT struct {
		Broker   string `mapstructure:"broker"`
		ClientID string `mapstructure:"client_id"`
		Topic    string `mapstructure:"topic"`
	} `mapstructure:"mqtt"`
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Storage struct {
		// Empty PostgresURL selects the in-memory store.
		PostgresURL string `mapstructure:"postgres_url"`
		RedisAddr   string `mapstructure:"redis_addr"`
	} `mapstructure:"storage"`
	Broadcast struct {
		SubscriberBuffer int `mapstructure:"subscriber_buffer"`
	} `mapstructure:"broadcast"`
	LogLevel string `mapstructure:"log_level"`
}

// Load reads config.yaml from the given directory, with environment
// variables (GATEWAY_MQTT_BROKER etc.) overriding file values and
// defaults covering the rest. A missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mqtt.broker", "tcp://test.mosquitto.org:1883")
	v.SetDefault("mqtt.client_id", "telemetry-gateway")
	v.SetDefault("mqtt.topic", "sensors/raw")
	v.SetDefault("server.port", 8000)
	v.SetDefault("storage.postgres_url", "")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("broadcast.subscriber_buffer", 256)
	v.SetDefault("log_level", "info")
}
