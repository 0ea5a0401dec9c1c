package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Data        DataConfig        `mapstructure:"data"`
	Recommender RecommenderConfig `mapstructure:"recommender"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DataConfig struct {
	Dir         string `mapstructure:"dir"`
	RatingsFile string `mapstructure:"ratings_file"`
	MoviesFile  string `mapstructure:"movies_file"`
	TagsFile    string `mapstructure:"tags_file"`
}

// RecommenderConfig is read once at startup and handed to the hybrid
// recommender's constructor as an immutable value. There is no mutable
// process-wide weight state.
type RecommenderConfig struct {
	Weights       WeightsConfig       `mapstructure:"weights"`
	RatingScale   RatingScaleConfig   `mapstructure:"rating_scale"`
	Collaborative CollaborativeConfig `mapstructure:"collaborative"`
	Content       ContentConfig       `mapstructure:"content"`
	Factorization FactorizationConfig `mapstructure:"factorization"`
	Novelty       NoveltyConfig       `mapstructure:"novelty"`
	Diversity     DiversityConfig     `mapstructure:"diversity"`
}

// WeightsConfig holds the (alpha, beta, gamma, delta) combination
// weights. They need not sum to 1, but none may be negative.
type WeightsConfig struct {
	Collaborative float64 `mapstructure:"collaborative" validate:"gte=0"`
	Content       float64 `mapstructure:"content" validate:"gte=0"`
	Factorization float64 `mapstructure:"factorization" validate:"gte=0"`
	Novelty       float64 `mapstructure:"novelty" validate:"gte=0"`
}

type RatingScaleConfig struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max" validate:"gtfield=Min"`
}

type CollaborativeConfig struct {
	KNeighbors int `mapstructure:"k_neighbors" validate:"gte=1"`
}

type ContentConfig struct {
	MaxFeatures int `mapstructure:"max_features" validate:"gte=1"`
}

type FactorizationConfig struct {
	Factors        int     `mapstructure:"factors" validate:"gte=1"`
	Epochs         int     `mapstructure:"epochs" validate:"gte=0"`
	LearningRate   float64 `mapstructure:"learning_rate" validate:"gt=0"`
	Regularization float64 `mapstructure:"regularization" validate:"gte=0"`
	InitStdDev     float64 `mapstructure:"init_std_dev" validate:"gt=0"`
	Seed           int64   `mapstructure:"seed"`
}

type NoveltyConfig struct {
	Dampening float64 `mapstructure:"dampening" validate:"gt=0"`
}

type DiversityConfig struct {
	Lambda float64 `mapstructure:"lambda" validate:"gte=0"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks a configuration against its struct constraints.
func Validate(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults() {
	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Data defaults (MovieLens CSV layout)
	viper.SetDefault("data.dir", "./data")
	viper.SetDefault("data.ratings_file", "ratings.csv")
	viper.SetDefault("data.movies_file", "movies.csv")
	viper.SetDefault("data.tags_file", "tags.csv")

	// Combination weights
	viper.SetDefault("recommender.weights.collaborative", 0.25)
	viper.SetDefault("recommender.weights.content", 0.25)
	viper.SetDefault("recommender.weights.factorization", 0.35)
	viper.SetDefault("recommender.weights.novelty", 0.15)

	// Rating scale
	viper.SetDefault("recommender.rating_scale.min", 0.5)
	viper.SetDefault("recommender.rating_scale.max", 5.0)

	// Scorer defaults
	viper.SetDefault("recommender.collaborative.k_neighbors", 30)
	viper.SetDefault("recommender.content.max_features", 500)
	viper.SetDefault("recommender.factorization.factors", 100)
	viper.SetDefault("recommender.factorization.epochs", 20)
	viper.SetDefault("recommender.factorization.learning_rate", 0.005)
	viper.SetDefault("recommender.factorization.regularization", 0.02)
	viper.SetDefault("recommender.factorization.init_std_dev", 0.1)
	viper.SetDefault("recommender.factorization.seed", 42)
	viper.SetDefault("recommender.novelty.dampening", 0.3)
	viper.SetDefault("recommender.diversity.lambda", 0.3)
}
