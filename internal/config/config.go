package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/quantprep/preprocessing-go/internal/models"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Preprocessing PreprocessingConfig `mapstructure:"preprocessing"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	InputTopic     string   `mapstructure:"input_topic"`
	CompletedTopic string   `mapstructure:"completed_topic"`
	FailedTopic    string   `mapstructure:"failed_topic"`
	GroupID        string   `mapstructure:"group_id"`
}

// PreprocessingConfig holds the pipeline defaults applied when an inbound
// event or request does not specify its own configuration.
type PreprocessingConfig struct {
	InterpolationMethod string  `mapstructure:"interpolation_method"`
	OutlierMethod       string  `mapstructure:"outlier_method"`
	OutlierThreshold    float64 `mapstructure:"outlier_threshold"`
	LagFeatures         []int   `mapstructure:"lag_features"`
	RollingWindowSizes  []int   `mapstructure:"rolling_window_sizes"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if config.Server.Port <= 0 {
		return nil, fmt.Errorf("server port must be positive, got %d", config.Server.Port)
	}
	if len(config.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	// The pipeline defaults must themselves be a valid pipeline config.
	if _, err := config.Preprocessing.PipelineDefaults(); err != nil {
		return nil, fmt.Errorf("invalid preprocessing defaults: %w", err)
	}

	return &config, nil
}

// PipelineDefaults converts the configured defaults into a validated
// pipeline configuration.
func (p PreprocessingConfig) PipelineDefaults() (models.PreprocessingConfig, error) {
	return models.NewPreprocessingConfig(models.PreprocessingConfig{
		InterpolationMethod: models.InterpolationMethod(p.InterpolationMethod),
		OutlierMethod:       models.OutlierMethod(p.OutlierMethod),
		OutlierThreshold:    p.OutlierThreshold,
		LagFeatures:         p.LagFeatures,
		RollingWindowSizes:  p.RollingWindowSizes,
	})
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"*"})

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "timeseries")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.input_topic", "data.ingestion.completed")
	viper.SetDefault("kafka.completed_topic", "data.preprocessing.completed")
	viper.SetDefault("kafka.failed_topic", "data.processing.failed")
	viper.SetDefault("kafka.group_id", "preprocessing-service-group")

	viper.SetDefault("preprocessing.interpolation_method", "linear")
	viper.SetDefault("preprocessing.outlier_method", "iqr")
	viper.SetDefault("preprocessing.outlier_threshold", 3.0)
	viper.SetDefault("preprocessing.lag_features", []int{1, 7, 30})
	viper.SetDefault("preprocessing.rolling_window_sizes", []int{7, 30})
}
