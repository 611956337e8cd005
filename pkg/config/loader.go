package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig builds the configuration for env from configDir:
//
//  1. base.yaml
//  2. <env>.yaml merged over it, when present
//  3. ${VAR} placeholders substituted from secrets.env, when present
//  4. environment variables (env tags) override the result
func LoadConfig(env string, configDir string) (*Config, error) {
	if configDir == "" {
		configDir = "config"
	}

	merged, err := loadYAMLFile(filepath.Join(configDir, "base.yaml"))
	if err != nil {
		return nil, fmt.Errorf("load base.yaml: %w", err)
	}

	if env != "" && env != "base" {
		envConfig, err := loadYAMLFile(filepath.Join(configDir, env+".yaml"))
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("load %s.yaml: %w", env, err)
		default:
			merged = mergeMaps(merged, envConfig)
		}
	}

	secrets, err := godotenv.Read(filepath.Join(configDir, "secrets.env"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("load secrets.env: %w", err)
	default:
		merged = substituteEnvVars(merged, secrets)
	}

	raw, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("re-encode config: %w", err)
	}
	cfg := &Config{Env: env}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAMLFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// mergeMaps returns dst with src laid over it, recursing into nested maps.
func mergeMaps(dst, src map[string]any) map[string]any {
	result := make(map[string]any, len(dst))
	for k, v := range dst {
		result[k] = v
	}
	for k, v := range src {
		dstMap, dstOK := result[k].(map[string]any)
		srcMap, srcOK := v.(map[string]any)
		if dstOK && srcOK {
			result[k] = mergeMaps(dstMap, srcMap)
			continue
		}
		result[k] = v
	}
	return result
}

func substituteEnvVars(config map[string]any, vars map[string]string) map[string]any {
	result := make(map[string]any, len(config))
	for k, v := range config {
		switch val := v.(type) {
		case string:
			result[k] = substituteString(val, vars)
		case map[string]any:
			result[k] = substituteEnvVars(val, vars)
		default:
			result[k] = v
		}
	}
	return result
}

func substituteString(s string, vars map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	for key, value := range vars {
		s = strings.ReplaceAll(s, "${"+key+"}", value)
	}
	return s
}

// ConfigEnv returns CONFIG_ENV, defaulting to local.
func ConfigEnv() string {
	if v := os.Getenv("CONFIG_ENV"); v != "" {
		return v
	}
	return "local"
}
