package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Discovery order: an explicit leakwatch file beats inference from the
// package manifest.
var configFileNames = []string{"leakwatch.yaml", "leakwatch.yml", "leakwatch.toml"}

// Load reads a leakwatch configuration from the provided path.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := &Config{Path: absPath}
	switch filepath.Ext(absPath) {
	case ".toml":
		md, err := toml.DecodeFile(absPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: decode: %w", absPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%s: unknown key %q", absPath, undecoded[0].String())
		}
	default:
		f, err := os.Open(absPath)
		if err != nil {
			return nil, fmt.Errorf("open config file: %w", err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", absPath, err)
		}
	}

	for name, profile := range cfg.Profiles {
		if profile == nil {
			continue
		}
		profile.Name = name
		for k, v := range profile.Env {
			profile.Env[k] = os.ExpandEnv(v)
		}
		if err := profile.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", absPath, err)
		}
	}
	return cfg, nil
}

// Discover resolves the effective configuration for a project directory.
// It never fails: a directory without any recognizable configuration yields
// an empty Config whose Path is empty, which downstream code treats as
// "defaults apply".
func Discover(dir string) *Config {
	if dir == "" {
		dir = "."
	}
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := Load(path)
		if err != nil {
			continue
		}
		return cfg
	}

	manifest := filepath.Join(dir, "package.json")
	if data, err := os.ReadFile(manifest); err == nil {
		if ports := inferPortsFromPackageJSON(data); len(ports) > 0 {
			return &Config{Path: manifest, Ports: ports}
		}
	}
	return &Config{}
}

var scriptPortPattern = regexp.MustCompile(`(?:--port[= ]|-p )(\d{2,5})|PORT=(\d{2,5})`)

// inferPortsFromPackageJSON pulls ports out of a package manifest: the
// conventional config.port field first, then --port/-p/PORT= occurrences in
// the dev and start scripts.
func inferPortsFromPackageJSON(data []byte) []int {
	if !gjson.ValidBytes(data) {
		return nil
	}
	seen := make(map[int]struct{})
	var ports []int
	add := func(port int) {
		if port <= 0 || port > 65535 {
			return
		}
		if _, dup := seen[port]; dup {
			return
		}
		seen[port] = struct{}{}
		ports = append(ports, port)
	}

	if v := gjson.GetBytes(data, "config.port"); v.Exists() {
		add(int(v.Int()))
	}
	for _, script := range []string{"scripts.dev", "scripts.start", "scripts.serve"} {
		v := gjson.GetBytes(data, script)
		if !v.Exists() {
			continue
		}
		for _, match := range scriptPortPattern.FindAllStringSubmatch(v.String(), -1) {
			for _, group := range match[1:] {
				if group == "" {
					continue
				}
				if port, err := strconv.Atoi(group); err == nil {
					add(port)
				}
			}
		}
	}
	return ports
}
