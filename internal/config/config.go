// Package config loads the intake server's YAML configuration. A missing
// file yields the defaults; secrets never live here and come from the
// environment instead (ANTHROPIC_API_KEY).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Services holds the base URLs of the remote collaborators.
type Services struct {
	DocScanURL   string `yaml:"docscan_url"`
	CaseCheckURL string `yaml:"casecheck_url"`
	RefDataURL   string `yaml:"refdata_url"`
	NarrativeURL string `yaml:"narrative_url,omitempty"`
}

// Narrative selects the analysis backend: "llm" talks to the model directly,
// "http" goes through the analysis service at services.narrative_url.
type Narrative struct {
	Backend string `yaml:"backend"`
}

// Config models the intake server's config file.
type Config struct {
	Addr        string    `yaml:"addr"`
	UploadDir   string    `yaml:"upload_dir"`
	ArchivePath string    `yaml:"archive_path"`
	Services    Services  `yaml:"services"`
	Narrative   Narrative `yaml:"narrative"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Addr:        ":8095",
		UploadDir:   "./uploads",
		ArchivePath: "./intake-archive.db",
		Services: Services{
			DocScanURL:   "http://localhost:8180",
			CaseCheckURL: "http://localhost:8181",
			RefDataURL:   "http://localhost:8182",
		},
		Narrative: Narrative{Backend: "llm"},
	}
}

// Load reads and validates the config at path. A missing file is not an
// error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = def.Addr
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		c.UploadDir = def.UploadDir
	}
	if strings.TrimSpace(c.ArchivePath) == "" {
		c.ArchivePath = def.ArchivePath
	}
	if strings.TrimSpace(c.Narrative.Backend) == "" {
		c.Narrative.Backend = def.Narrative.Backend
	}
}

func (c *Config) normalize() {
	c.Addr = strings.TrimSpace(c.Addr)
	c.UploadDir = strings.TrimSpace(c.UploadDir)
	c.ArchivePath = strings.TrimSpace(c.ArchivePath)
	c.Narrative.Backend = strings.ToLower(strings.TrimSpace(c.Narrative.Backend))
	c.Services.DocScanURL = trimURL(c.Services.DocScanURL)
	c.Services.CaseCheckURL = trimURL(c.Services.CaseCheckURL)
	c.Services.RefDataURL = trimURL(c.Services.RefDataURL)
	c.Services.NarrativeURL = trimURL(c.Services.NarrativeURL)
}

func (c Config) validate() error {
	if c.Services.DocScanURL == "" {
		return fmt.Errorf("services.docscan_url is required")
	}
	if c.Services.CaseCheckURL == "" {
		return fmt.Errorf("services.casecheck_url is required")
	}
	if c.Services.RefDataURL == "" {
		return fmt.Errorf("services.refdata_url is required")
	}
	switch c.Narrative.Backend {
	case "llm":
	case "http":
		if c.Services.NarrativeURL == "" {
			return fmt.Errorf("services.narrative_url is required for the http narrative backend")
		}
	default:
		return fmt.Errorf("narrative.backend must be 'llm' or 'http'")
	}
	return nil
}

func trimURL(v string) string {
	return strings.TrimRight(strings.TrimSpace(v), "/")
}
