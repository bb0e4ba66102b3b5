package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort       int      `mapstructure:"http_port"`
	LogLevel       string   `mapstructure:"log_level"`
	DatabaseURL    string   `mapstructure:"database_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// JwtSecret signs every session token; the server refuses to start
	// without it (checked in main, not here).
	JwtSecret     string `mapstructure:"jwt_secret"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`

	// Media host (Cloudinary) credentials and the folder all covers live under.
	CloudName      string `mapstructure:"cloudinary_cloud_name"`
	CloudAPIKey    string `mapstructure:"cloudinary_api_key"`
	CloudAPISecret string `mapstructure:"cloudinary_api_secret"`
	MediaFolder    string `mapstructure:"media_folder"`
}

var AppConfig Config

func InitConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variable overrides
	viper.SetEnvPrefix("MYBLOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("http_port", 8080)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("token_ttl_hours", 24)
	viper.SetDefault("media_folder", "blog-images")
	viper.SetDefault("allowed_origins", []string{"http://localhost:5173"})

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults and environment variables.")
		} else {
			panic(fmt.Errorf("fatal error reading config file: %w", err))
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		panic(fmt.Errorf("unable to decode config into struct: %w", err))
	}
}
