package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

type DeviceConfig struct {
	Kind       string // "serial" or "network"
	SerialPort string
	SerialBaud int
	Host       string
	Port       int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

type SlackConfig struct {
	BotToken  string
	ChannelID string
}

type ServerConfig struct {
	Addr string
}

type Config struct {
	Device       DeviceConfig
	Database     DatabaseConfig
	MQTT         MQTTConfig
	Slack        SlackConfig
	Server       ServerConfig
	SettingsPath string `json:"settingspath"`
}

// LoadConfig reads configuration from the environment, with .env.local as an
// optional source when APP_ENV is local.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.BindEnv("device.kind", "DEVICE_KIND")
	v.BindEnv("device.serialport", "DEVICE_SERIAL_PORT")
	v.BindEnv("device.serialbaud", "DEVICE_SERIAL_BAUD")
	v.BindEnv("device.host", "DEVICE_HOST")
	v.BindEnv("device.port", "DEVICE_PORT")

	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")

	v.BindEnv("mqtt.broker", "MQTT_BROKER")
	v.BindEnv("mqtt.clientid", "MQTT_CLIENT_ID")
	v.BindEnv("mqtt.username", "MQTT_USERNAME")
	v.BindEnv("mqtt.password", "MQTT_PASSWORD")

	v.BindEnv("slack.bottoken", "SLACK_BOT_TOKEN")
	v.BindEnv("slack.channelid", "SLACK_CHANNEL_ID")

	v.BindEnv("server.addr", "SERVER_ADDR")
	v.BindEnv("settingspath", "SETTINGS_PATH")

	v.SetDefault("device.kind", "serial")
	v.SetDefault("device.serialbaud", 9600)
	v.SetDefault("device.port", 80)
	v.SetDefault("server.addr", ":3005")
	v.SetDefault("settingspath", "settings.json")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	if env == "local" {
		v.SetConfigFile(".env.local")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file .env.local: %w", err)
			}
			log.Println(".env.local not found, relying on environment variables.")
		} else {
			log.Printf("Loaded configuration from %s", v.ConfigFileUsed())
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// DSN returns the PostgreSQL connection string.
func (cfg *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		cfg.Database.Host,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.Port,
		cfg.Database.SSLMode,
	)
}
