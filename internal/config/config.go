package config

import (
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port          int    `env:"PORT"            envDefault:"8080"`
	UploadDir     string `env:"UPLOAD_DIR"      envDefault:"./uploads"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE" envDefault:"104857600"`
	DBPath        string `env:"DB_PATH"         envDefault:"./framegrab.db"`
	LogLevel      string `env:"LOG_LEVEL"       envDefault:"info"`

	AIProvider   string `env:"AI_PROVIDER"    envDefault:"openai"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	OpenAIModel  string `env:"OPENAI_MODEL"   envDefault:"gpt-4o"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL"   envDefault:"gemini-2.0-flash"`
	LanguageHint string `env:"LANGUAGE_HINT"  envDefault:"English"`

	FrameCount    int `env:"FRAME_COUNT"     envDefault:"0"`
	MaxDimension  int `env:"MAX_DIMENSION"   envDefault:"1024"`
	DedupDistance int `env:"DEDUP_DISTANCE"  envDefault:"0"`

	SweepSchedule string `env:"CACHE_SWEEP_SCHEDULE" envDefault:"@daily"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
