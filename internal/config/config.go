package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel      string `yaml:"log_level"`
	TraceExporter string `yaml:"trace_exporter"` // none, stdout, otlp
	OTLPEndpoint  string `yaml:"otlp_endpoint"`
	OTLPInsecure  bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind                  string `yaml:"bind"`
	Port                  int    `yaml:"port"`
	GenerateTimeoutSecond int    `yaml:"generate_timeout_seconds"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Journal     JournalConfig   `yaml:"journal"`
	LLM         LLMConfig       `yaml:"llm"`
	TTS         TTSConfig       `yaml:"tts"`
	Output      OutputConfig    `yaml:"output"`
	Lecture     LectureConfig   `yaml:"lecture"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type JournalConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"` // ephemeral, session, persistent
	RetentionDays int    `yaml:"retention_days"`
	MaxRequests   int    `yaml:"max_requests"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type LLMConfig struct {
	Mode              string  `yaml:"mode"` // mock, gemini, ollama, exec
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	Endpoint          string  `yaml:"endpoint"`
	Command           string  `yaml:"command"`
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float64 `yaml:"temperature"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
}

type TTSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Mode       string `yaml:"mode"` // mock, exec
	Command    string `yaml:"command"`
	ModelDir   string `yaml:"model_dir"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
}

type OutputConfig struct {
	Root      string `yaml:"root"`
	URLPrefix string `yaml:"url_prefix"`
	Cover     bool   `yaml:"cover"`
}

type LectureConfig struct {
	DefaultVoice string `yaml:"default_voice"`
	DefaultStyle string `yaml:"default_style"`
}

func Default() Config {
	return Config{
		RuntimeName: "aetherlearn",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:                  "0.0.0.0",
			Port:                  8000,
			GenerateTimeoutSecond: 300,
		},
		Telemetry: TelemetryConfig{
			LogLevel:      "info",
			TraceExporter: "stdout",
			OTLPInsecure:  true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Journal: JournalConfig{
			Path:          "./data/aether-journal.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxRequests:   10000,
		},
		LLM: LLMConfig{
			Mode:              "gemini",
			Model:             "gemini-2.5-flash",
			Endpoint:          "http://localhost:11434",
			MaxTokens:         8192,
			Temperature:       0.7,
			RequestsPerMinute: 10,
		},
		TTS: TTSConfig{
			Enabled:    true,
			Mode:       "exec",
			ModelDir:   "./KokoroTTS",
			SampleRate: 24000,
			Channels:   1,
		},
		Output: OutputConfig{
			Root:      "./generated",
			URLPrefix: "/generated",
			Cover:     false,
		},
		Lecture: LectureConfig{
			DefaultVoice: "af_sky",
			DefaultStyle: "educational",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment. A .env file in the working directory is honoured when present.
func Load(path string) (Config, error) {
	cfg := Default()

	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "AETHER_RUNTIME_NAME")
	overrideString(&cfg.Environment, "AETHER_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "AETHER_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "AETHER_HTTP_PORT")
	overrideInt(&cfg.HTTP.GenerateTimeoutSecond, "AETHER_HTTP_GENERATE_TIMEOUT_SECONDS")
	overrideString(&cfg.Telemetry.LogLevel, "AETHER_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.TraceExporter, "AETHER_TELEMETRY_TRACE_EXPORTER")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "AETHER_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "AETHER_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Enabled, "AETHER_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "AETHER_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "AETHER_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "AETHER_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "AETHER_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "AETHER_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "AETHER_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "AETHER_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "AETHER_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "AETHER_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Journal.Path, "AETHER_JOURNAL_PATH")
	overrideString(&cfg.Journal.RetentionMode, "AETHER_JOURNAL_RETENTION_MODE")
	overrideInt(&cfg.Journal.RetentionDays, "AETHER_JOURNAL_RETENTION_DAYS")
	overrideInt(&cfg.Journal.MaxRequests, "AETHER_JOURNAL_MAX_REQUESTS")
	overrideBool(&cfg.Journal.VacuumOnStart, "AETHER_JOURNAL_VACUUM_ON_START")
	overrideString(&cfg.LLM.Mode, "AETHER_LLM_MODE")
	overrideString(&cfg.LLM.APIKey, "GEMINI_API_KEY")
	overrideString(&cfg.LLM.APIKey, "AETHER_LLM_API_KEY")
	overrideString(&cfg.LLM.Model, "AETHER_LLM_MODEL")
	overrideString(&cfg.LLM.Endpoint, "AETHER_LLM_ENDPOINT")
	overrideString(&cfg.LLM.Command, "AETHER_LLM_COMMAND")
	overrideInt(&cfg.LLM.MaxTokens, "AETHER_LLM_MAX_TOKENS")
	overrideFloat(&cfg.LLM.Temperature, "AETHER_LLM_TEMPERATURE")
	overrideInt(&cfg.LLM.RequestsPerMinute, "AETHER_LLM_REQUESTS_PER_MINUTE")
	overrideBool(&cfg.TTS.Enabled, "AETHER_TTS_ENABLED")
	overrideString(&cfg.TTS.Mode, "AETHER_TTS_MODE")
	overrideString(&cfg.TTS.Command, "AETHER_TTS_COMMAND")
	overrideString(&cfg.TTS.ModelDir, "AETHER_TTS_MODEL_DIR")
	overrideInt(&cfg.TTS.SampleRate, "AETHER_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Channels, "AETHER_TTS_CHANNELS")
	overrideString(&cfg.Output.Root, "AETHER_OUTPUT_ROOT")
	overrideString(&cfg.Output.URLPrefix, "AETHER_OUTPUT_URL_PREFIX")
	overrideBool(&cfg.Output.Cover, "AETHER_OUTPUT_COVER")
	overrideString(&cfg.Lecture.DefaultVoice, "AETHER_LECTURE_DEFAULT_VOICE")
	overrideString(&cfg.Lecture.DefaultStyle, "AETHER_LECTURE_DEFAULT_STYLE")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.HTTP.GenerateTimeoutSecond < 0 {
		return errors.New("http.generate_timeout_seconds must be >= 0")
	}
	switch cfg.Telemetry.TraceExporter {
	case "none", "stdout", "otlp":
	default:
		return errors.New("telemetry.trace_exporter must be one of none|stdout|otlp")
	}
	if cfg.Telemetry.TraceExporter == "otlp" && strings.TrimSpace(cfg.Telemetry.OTLPEndpoint) == "" {
		return errors.New("telemetry.otlp_endpoint must be set when trace_exporter=otlp")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Journal.RetentionMode {
	case "ephemeral", "session", "persistent":
	default:
		return errors.New("journal.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Journal.RetentionMode != "ephemeral" && cfg.Journal.Path == "" {
		return errors.New("journal.path must not be empty")
	}
	if cfg.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be >= 0")
	}
	switch cfg.LLM.Mode {
	case "mock", "gemini", "ollama", "exec":
	default:
		return errors.New("llm.mode must be one of mock|gemini|ollama|exec")
	}
	if cfg.LLM.Mode == "ollama" && cfg.LLM.Endpoint == "" {
		return errors.New("llm.endpoint must be set when mode=ollama")
	}
	if cfg.LLM.Mode == "exec" && cfg.LLM.Command == "" {
		return errors.New("llm.command must be set when mode=exec")
	}
	if cfg.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must be >= 0")
	}
	if cfg.LLM.RequestsPerMinute < 0 {
		return errors.New("llm.requests_per_minute must be >= 0")
	}
	if cfg.TTS.Enabled {
		switch cfg.TTS.Mode {
		case "mock", "exec":
		default:
			return errors.New("tts.mode must be one of mock|exec")
		}
		if cfg.TTS.SampleRate <= 0 {
			return errors.New("tts.sample_rate must be positive")
		}
		if cfg.TTS.Channels <= 0 {
			return errors.New("tts.channels must be positive")
		}
	}
	if cfg.Output.Root == "" {
		return errors.New("output.root must not be empty")
	}
	if !strings.HasPrefix(cfg.Output.URLPrefix, "/") {
		return errors.New("output.url_prefix must start with /")
	}
	return nil
}
