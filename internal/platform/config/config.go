package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	Scanner  ScannerConfig  `koanf:"scanner"`
	Audit    AuditConfig    `koanf:"audit"`
	Harvest  HarvestConfig  `koanf:"harvest"`
	Export   ExportConfig   `koanf:"export"`
}

type ServerConfig struct {
	Host        string   `koanf:"host"`
	Port        int      `koanf:"port"`
	CORSOrigins []string `koanf:"corsorigins"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MigrationsPath string `koanf:"migrationspath"`
	MaxConns       int    `koanf:"maxconns"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type AuthConfig struct {
	DevMode bool      `koanf:"devmode"`
	JWT     JWTConfig `koanf:"jwt"`
}

type JWTConfig struct {
	SigningKey  string `koanf:"signingkey"`
	Issuer      string `koanf:"issuer"`
	ExpiryHours int    `koanf:"expiryhours"`
}

// ScannerConfig controls the oracle second opinion. Rules always run.
type ScannerConfig struct {
	UseLLM        bool   `koanf:"usellm"`
	LLMModel      string `koanf:"llmmodel"`
	AnthropicKey  string `koanf:"anthropickey"`
	BaseURL       string `koanf:"baseurl"`
	TimeoutSecs   int    `koanf:"timeoutsecs"`
	MaxChars      int    `koanf:"maxchars"`
	Concurrency   int    `koanf:"concurrency"`
	StrictVerdict bool   `koanf:"strictverdict"`
}

// OracleReady reports whether the oracle is both enabled and credentialed.
func (c ScannerConfig) OracleReady() bool {
	return c.UseLLM && c.AnthropicKey != ""
}

type AuditConfig struct {
	BufferSize    int `koanf:"buffersize"`
	BatchSize     int `koanf:"batchsize"`
	FlushInterval int `koanf:"flushinterval"` // milliseconds
}

type HarvestConfig struct {
	IntervalMins int          `koanf:"intervalmins"` // 0 disables the background harvester
	Reddit       RedditConfig `koanf:"reddit"`
	GitHub       GitHubConfig `koanf:"github"`
}

type RedditConfig struct {
	Enabled      bool     `koanf:"enabled"`
	Mode         string   `koanf:"mode"` // "json" or "feed"
	BaseURL      string   `koanf:"baseurl"`
	Subreddits   []string `koanf:"subreddits"`
	Queries      []string `koanf:"queries"`
	MinScore     int      `koanf:"minscore"`
	LookbackDays int      `koanf:"lookbackdays"`
}

type GitHubConfig struct {
	Enabled        bool     `koanf:"enabled"`
	APIURL         string   `koanf:"apiurl"`
	RawURL         string   `koanf:"rawurl"`
	Token          string   `koanf:"token"`
	Queries        []string `koanf:"queries"`
	MinStars       int      `koanf:"minstars"`
	TrustedAuthors []string `koanf:"trustedauthors"`
}

type ExportConfig struct {
	Dir             string `koanf:"dir"`
	IncludeMetadata bool   `koanf:"includemetadata"`
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.port":                 8080,
		"server.host":                 "0.0.0.0",
		"database.maxconns":           10,
		"database.migrationspath":     "migrations",
		"log.level":                   "info",
		"log.format":                  "json",
		"auth.devmode":                false,
		"auth.jwt.issuer":             "tipwarden",
		"auth.jwt.expiryhours":        24,
		"scanner.usellm":              false,
		"scanner.llmmodel":            "claude-sonnet-4-20250514",
		"scanner.baseurl":             "https://api.anthropic.com",
		"scanner.timeoutsecs":         5,
		"scanner.maxchars":            3000,
		"scanner.concurrency":         4,
		"audit.buffersize":            1024,
		"audit.batchsize":             50,
		"audit.flushinterval":         500,
		"harvest.intervalmins":        0,
		"harvest.reddit.enabled":      true,
		"harvest.reddit.mode":         "json",
		"harvest.reddit.baseurl":      "https://www.reddit.com",
		"harvest.reddit.subreddits":   []string{"ClaudeAI"},
		"harvest.reddit.queries":      []string{"claude code tip"},
		"harvest.reddit.minscore":     20,
		"harvest.reddit.lookbackdays": 7,
		"harvest.github.enabled":      true,
		"harvest.github.apiurl":       "https://api.github.com",
		"harvest.github.rawurl":       "https://raw.githubusercontent.com",
		"harvest.github.queries":      []string{"filename:CLAUDE.md"},
		"harvest.github.minstars":     10,
		"export.dir":                  "export",
		"export.includemetadata":      true,
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Config file is optional, skip if not found
			continue
		}
	}

	// Environment variables override everything
	// TIPWARDEN_SCANNER_USELLM -> scanner.usellm
	_ = k.Load(env.Provider("TIPWARDEN_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "TIPWARDEN_")),
			"_", ".",
		)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Well-known credentials used by the upstream tools.
	if cfg.Scanner.AnthropicKey == "" {
		cfg.Scanner.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Harvest.GitHub.Token == "" {
		cfg.Harvest.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}

	return &cfg, nil
}
