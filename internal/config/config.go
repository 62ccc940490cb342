package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifies the configured LLM backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// LLM gateway
	LLMProvider     Provider
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GatewayTimeout  time.Duration

	// Orchestration
	HistoryWindow int // messages of context sent to the model
	ParseAttempts int // normal parse attempts before the strict retry

	// Server
	ListenAddr string

	// Generated files
	OutputDir string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors the optional YAML config file. File values seed the
// defaults; environment variables still win.
type fileConfig struct {
	SurrealDB struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
		User      string `yaml:"user"`
		Pass      string `yaml:"pass"`
		AuthLevel string `yaml:"auth_level"`
	} `yaml:"surrealdb"`
	LLM struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"llm"`
	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`
	OutputDir string `yaml:"output_dir"`
	LogFile   string `yaml:"log_file"`
	LogLevel  string `yaml:"log_level"`
}

// Load reads configuration from the optional YAML file (PAGEWRIGHT_CONFIG
// or ~/.pagewright.yaml) and the environment. Env vars override the file.
func Load() Config {
	fc := loadFile()

	timeout := 60 * time.Second
	if raw := getEnv("PAGEWRIGHT_GATEWAY_TIMEOUT", fc.LLM.Timeout); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			timeout = d
		}
	}

	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", orDefault(fc.SurrealDB.URL, "ws://localhost:8000/rpc")),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", orDefault(fc.SurrealDB.Namespace, "pagewright")),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", orDefault(fc.SurrealDB.Database, "conversations")),
		SurrealDBUser:      getEnv("SURREALDB_USER", orDefault(fc.SurrealDB.User, "root")),
		SurrealDBPass:      getEnv("SURREALDB_PASS", orDefault(fc.SurrealDB.Pass, "root")),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", orDefault(fc.SurrealDB.AuthLevel, "root")),

		LLMProvider:     Provider(getEnv("PAGEWRIGHT_LLM_PROVIDER", orDefault(fc.LLM.Provider, string(ProviderOllama)))),
		LLMModel:        getEnv("PAGEWRIGHT_LLM_MODEL", orDefault(fc.LLM.Model, "llama3.1")),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GatewayTimeout:  timeout,

		HistoryWindow: getEnvInt("PAGEWRIGHT_HISTORY_WINDOW", 10),
		ParseAttempts: getEnvInt("PAGEWRIGHT_PARSE_ATTEMPTS", 2),

		ListenAddr: getEnv("PAGEWRIGHT_LISTEN", orDefault(fc.Server.Listen, ":8473")),

		OutputDir: getEnv("PAGEWRIGHT_OUTPUT_DIR", orDefault(fc.OutputDir, "./generated")),

		LogFile:  getEnv("PAGEWRIGHT_LOG_FILE", orDefault(fc.LogFile, "/tmp/pagewright.log")),
		LogLevel: parseLogLevel(getEnv("PAGEWRIGHT_LOG_LEVEL", orDefault(fc.LogLevel, "INFO"))),
	}
}

// ConfigFilePath returns the path of the YAML config file to try.
func ConfigFilePath() string {
	if p := os.Getenv("PAGEWRIGHT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pagewright.yaml")
}

func loadFile() fileConfig {
	var fc fileConfig
	path := ConfigFilePath()
	if path == "" {
		return fc
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring malformed config file %s: %v\n", path, err)
		return fileConfig{}
	}
	return fc
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func orDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
