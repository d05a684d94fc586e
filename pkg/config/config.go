// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App     AppConfig     `koanf:"app"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Engine  EngineConfig  `koanf:"engine"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // путь к файлу логов
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // количество бэкапов
	MaxAge     int    `koanf:"max_age"`     // дней
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// EngineConfig - настройки DDD/C-SND движка
type EngineConfig struct {
	// DeltaT - шаг дискретизации по умолчанию (минуты). cmd/solve это
	// поле не читает: delta_t всегда передаётся обязательным аргументом CLI.
	DeltaT float64 `koanf:"delta_t"`

	// MaxIterations ограничивает число итераций fixed-point цикла DDD.
	MaxIterations int `koanf:"max_iterations"`

	// SolverTimeout ограничивает время решения одной MIP-модели.
	SolverTimeout time.Duration `koanf:"solver_timeout"`

	// TotalTimeout ограничивает суммарное время работы DDD driver.
	TotalTimeout time.Duration `koanf:"total_timeout"`

	// RelaxedInitial - флаг relaxed режима округления для начальной
	// дискретизации. Это поле нигде не читается: ddd.Run всегда строит
	// граф в relaxed режиме, а cmd/solve -f - всегда в non-relaxed.
	RelaxedInitial bool `koanf:"relaxed_initial"`

	// FeasibilityPreflight включает предварительную проверку
	// достижимости каждого commodity на плоском графе перед
	// построением time-expanded графа.
	FeasibilityPreflight bool `koanf:"feasibility_preflight"`

	// InstanceDir - директория с файлами инстансов.
	InstanceDir string `koanf:"instance_dir"`
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.Engine.DeltaT < 0 {
		errs = append(errs, "engine.delta_t must be non-negative")
	}

	if c.Engine.MaxIterations <= 0 {
		errs = append(errs, fmt.Sprintf("engine.max_iterations must be positive, got %d", c.Engine.MaxIterations))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment проверяет режим разработки
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction проверяет продакшн режим
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
