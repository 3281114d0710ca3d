// Package config loads process settings from the environment and YAML files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"mfg-report-go/internal/actionable"
	"mfg-report-go/internal/resolver"
)

type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	DBPath         string
	ProfilesPath   string
	AliasesPath    string
	UploadRate     float64
	UploadBurst    int
	AllowedOrigins []string
	MaxUploadMB    int64
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	c := Config{
		Port:           envOr("PORT", "8080"),
		Environment:    envOr("ENVIRONMENT", "local"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		DBPath:         envOr("DB_PATH", "mfg-report.db"),
		ProfilesPath:   os.Getenv("PROFILES_PATH"),
		AliasesPath:    os.Getenv("ALIASES_PATH"),
		AllowedOrigins: splitList(envOr("ALLOWED_ORIGINS", "*")),
	}
	var err error
	if c.UploadRate, err = strconv.ParseFloat(envOr("UPLOAD_RATE_PER_SEC", "2"), 64); err != nil {
		return Config{}, fmt.Errorf("UPLOAD_RATE_PER_SEC: %w", err)
	}
	if c.UploadBurst, err = strconv.Atoi(envOr("UPLOAD_BURST", "5")); err != nil {
		return Config{}, fmt.Errorf("UPLOAD_BURST: %w", err)
	}
	if c.MaxUploadMB, err = strconv.ParseInt(envOr("MAX_UPLOAD_MB", "32"), 10, 64); err != nil {
		return Config{}, fmt.Errorf("MAX_UPLOAD_MB: %w", err)
	}
	return c, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type profilesFile struct {
	Profiles []actionable.Profile `yaml:"profiles"`
}

// LoadProfiles returns the built-in presets overlaid with the profiles
// defined in the YAML file at path. An empty path yields the presets.
func LoadProfiles(path string) (map[string]actionable.Profile, error) {
	out := actionable.Presets()
	if path == "" {
		return out, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	for _, p := range f.Profiles {
		if p.Tiers == (actionable.Tiers{}) {
			p.Tiers = actionable.DefaultTiers()
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.Name, err)
		}
		out[p.Name] = p
	}
	return out, nil
}

// LoadAliases returns the default column aliases with the YAML overrides at
// path applied. Overrides replace a field's whole candidate list.
func LoadAliases(path string) (resolver.Aliases, error) {
	def := resolver.DefaultAliases()
	if path == "" {
		return def, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases: %w", err)
	}
	var override resolver.Aliases
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse aliases: %w", err)
	}
	return def.Merge(override), nil
}
