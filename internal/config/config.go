// Package config handles application configuration loading from a YAML file
// with environment variable overrides.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`

	// AI generation backend
	AI AIConfig `json:"ai" yaml:"ai"`

	// Placement assessment tuning
	Assessment AssessmentConfig `json:"assessment" yaml:"assessment"`

	// Mastery tracking tuning
	Mastery MasteryConfig `json:"mastery" yaml:"mastery"`

	// Lesson seeding worker
	Seeder SeederConfig `json:"seeder" yaml:"seeder"`

	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port          string   `json:"port" yaml:"port"`
	AdminUsername string   `json:"admin_username" yaml:"admin_username"`
	AdminPassword string   `json:"admin_password" yaml:"admin_password"`
	SessionSecret string   `json:"session_secret" yaml:"session_secret"`
	Debug         bool     `json:"debug" yaml:"debug"`
	LogLevel      string   `json:"log_level" yaml:"log_level"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// AIConfig represents the chat-completions backend used for content generation
type AIConfig struct {
	URL         string `json:"url" yaml:"url"`
	Model       string `json:"model" yaml:"model"`
	APIKey      string `json:"api_key" yaml:"api_key"`
	MaxTokens   int    `json:"max_tokens" yaml:"max_tokens"`
	MaxAttempts int    `json:"max_attempts" yaml:"max_attempts"`
}

// AssessmentConfig tunes the adaptive placement assessment
type AssessmentConfig struct {
	QuestionsPerLevel int `json:"questions_per_level" yaml:"questions_per_level"`
	QuestionBudget    int `json:"question_budget" yaml:"question_budget"`
}

// MasteryConfig tunes subtopic mastery tracking
type MasteryConfig struct {
	WindowSize    int `json:"window_size" yaml:"window_size"`
	PassThreshold int `json:"pass_threshold" yaml:"pass_threshold"`
	TierSize      int `json:"tier_size" yaml:"tier_size"`
	MaxDifficulty int `json:"max_difficulty" yaml:"max_difficulty"`
}

// SeederConfig tunes the lesson seeding worker
type SeederConfig struct {
	Concurrency         int           `json:"concurrency" yaml:"concurrency"`
	DelayBetweenBatches time.Duration `json:"delay_between_batches" yaml:"delay_between_batches"`
	LessonsPerSubtopic  int           `json:"lessons_per_subtopic" yaml:"lessons_per_subtopic"`
	CheckpointFile      string        `json:"checkpoint_file" yaml:"checkpoint_file"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "http://localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "studypath-backend"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`   // Default: true
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`   // Default: true
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`   // Default: true
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`       // Default: false
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"`     // Default: 1.0 (100%)
}

// QuestionsPerLevel returns the configured diagnostic questions per level, or the default
func (c *Config) QuestionsPerLevel() int {
	if c.Assessment.QuestionsPerLevel > 0 {
		return c.Assessment.QuestionsPerLevel
	}
	return DefaultQuestionsPerLevel
}

// QuestionBudget returns the configured assessment question budget, or the default
func (c *Config) QuestionBudget() int {
	if c.Assessment.QuestionBudget > 0 {
		return c.Assessment.QuestionBudget
	}
	return DefaultQuestionBudget
}

// MasteryWindow returns the trailing window size for mastery scores, or the default
func (c *Config) MasteryWindow() int {
	if c.Mastery.WindowSize > 0 {
		return c.Mastery.WindowSize
	}
	return DefaultMasteryWindow
}

// MasteryPassThreshold returns the pass threshold percentage, or the default
func (c *Config) MasteryPassThreshold() int {
	if c.Mastery.PassThreshold > 0 {
		return c.Mastery.PassThreshold
	}
	return DefaultMasteryPassThreshold
}

// MasteryTierSize returns how many answers advance one difficulty tier, or the default
func (c *Config) MasteryTierSize() int {
	if c.Mastery.TierSize > 0 {
		return c.Mastery.TierSize
	}
	return DefaultMasteryTierSize
}

// MasteryMaxDifficulty returns the highest difficulty tier, or the default
func (c *Config) MasteryMaxDifficulty() int {
	if c.Mastery.MaxDifficulty > 0 {
		return c.Mastery.MaxDifficulty
	}
	return DefaultMaxDifficulty
}

// SeederConcurrency returns the number of subtopics processed concurrently, or the default
func (c *Config) SeederConcurrency() int {
	if c.Seeder.Concurrency > 0 {
		return c.Seeder.Concurrency
	}
	return DefaultSeederConcurrency
}

// SeederDelay returns the pause between seeding batches, or the default
func (c *Config) SeederDelay() time.Duration {
	if c.Seeder.DelayBetweenBatches > 0 {
		return c.Seeder.DelayBetweenBatches
	}
	return DefaultSeederDelay
}

// LessonsPerSubtopic returns how many lessons are generated per subtopic, or the default
func (c *Config) LessonsPerSubtopic() int {
	if c.Seeder.LessonsPerSubtopic > 0 {
		return c.Seeder.LessonsPerSubtopic
	}
	return DefaultLessonsPerSubtopic
}

// AIMaxAttempts returns the generation retry budget, or the default
func (c *Config) AIMaxAttempts() int {
	if c.AI.MaxAttempts > 0 {
		return c.AI.MaxAttempts
	}
	return DefaultAIMaxAttempts
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, err
	}

	config.overrideFromEnv()

	return config, nil
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnvWithPrefix(c, "")
}

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		// Skip unexported fields
		if !field.CanSet() {
			continue
		}

		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		yamlTag = strings.Split(yamlTag, ",")[0]

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type() == reflect.TypeOf(time.Duration(0)) {
					if d, err := time.ParseDuration(envVal); err == nil {
						field.SetInt(int64(d))
					}
				} else if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type().Elem().Kind() == reflect.String {
					slice := strings.Split(envVal, ",")
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), fieldPrefix)
			}
		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Interface(), fieldPrefix)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file, honoring STUDYPATH_CONFIG_FILE
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv("STUDYPATH_CONFIG_FILE"); envPath != "" {
		return loadConfigFromFile(envPath)
	}

	return loadConfigFromFile("config.yaml")
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
