package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	HTTP     struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
	LLM struct {
		Provider         string  `json:"provider"`
		BaseURL          string  `json:"base_url"`
		APIKey           string  `json:"api_key"`
		Model            string  `json:"model"`
		MaxTokens        int     `json:"max_tokens"`
		Temperature      float32 `json:"temperature"`
		MaxContextTokens int     `json:"max_context_tokens"`
		OutputReserve    int     `json:"output_reserve"`
	} `json:"llm"`
	Autopilot struct {
		ThinkingDelayMS int `json:"thinking_delay_ms"`
		MaxConcurrent   int `json:"max_concurrent"`
	} `json:"autopilot"`
	Scheduler struct {
		PollIntervalSeconds int `json:"poll_interval_seconds"`
	} `json:"scheduler"`
	// WhatsApp holds channel credentials for the Cloud or Evolution API.
	// The transport itself is not implemented; this exists so a deployment
	// can be configured ahead of wiring a real connector.
	WhatsApp struct {
		Provider          string `json:"provider"`
		PhoneNumberID     string `json:"phone_number_id,omitempty"`
		BusinessAccountID string `json:"business_account_id,omitempty"`
		AccessToken       string `json:"access_token,omitempty"`
		BaseURL           string `json:"base_url,omitempty"`
		APIKey            string `json:"api_key,omitempty"`
		InstanceName      string `json:"instance_name,omitempty"`
		WebhookURL        string `json:"webhook_url,omitempty"`
		VerifyToken       string `json:"verify_token,omitempty"`
	} `json:"whatsapp"`
}

func Load(path string) (*Config, error) {
	// Best effort: a .env next to the working directory feeds the env
	// overrides below.
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".chatpilot"),
		LogLevel: "info",
	}
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = "127.0.0.1:8321"
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 1000
	cfg.LLM.Temperature = 0.7
	cfg.LLM.MaxContextTokens = 128000
	cfg.LLM.OutputReserve = 4096
	cfg.Autopilot.ThinkingDelayMS = 3000
	cfg.Autopilot.MaxConcurrent = 2
	cfg.Scheduler.PollIntervalSeconds = 5
	cfg.WhatsApp.Provider = "cloud"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if listen := os.Getenv("CHATPILOT_HTTP_LISTEN"); listen != "" {
		cfg.HTTP.Listen = listen
	}
	if token := os.Getenv("WHATSAPP_ACCESS_TOKEN"); token != "" {
		cfg.WhatsApp.AccessToken = token
	}
	if key := os.Getenv("WHATSAPP_API_KEY"); key != "" {
		cfg.WhatsApp.APIKey = key
	}

	return cfg, nil
}

// Save writes the config to disk using atomic write (temp file + rename).
func Save(path string, cfg *Config) error {
	return writeDefaults(path, cfg)
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
