package config

import (
	"fmt"
	"sort"
	"time"
)

// DefaultPorts is the fallback port set monitored when no explicit list is
// given and no project configuration can be discovered.
var DefaultPorts = []int{3000, 5173, 8080}

// Duration wraps time.Duration for YAML/TOML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the resolved leakwatch configuration for one project. Path
// records where it was discovered, or is empty for a synthesized default.
type Config struct {
	Path     string              `yaml:"-" toml:"-" json:"configPath,omitempty"`
	Ports    []int               `yaml:"ports" toml:"ports" json:"ports,omitempty"`
	Memory   MemoryLimits        `yaml:"memory" toml:"memory" json:"memory,omitempty"`
	Profiles map[string]*Profile `yaml:"profiles" toml:"profiles" json:"profiles,omitempty"`
}

// MemoryLimits bounds acceptable memory growth between a baseline and a
// follow-up snapshot. Zero values disable the corresponding check.
type MemoryLimits struct {
	MaxDeltaMB      int     `yaml:"maxDeltaMB" toml:"max_delta_mb" json:"maxDeltaMB,omitempty"`
	MaxDeltaPercent float64 `yaml:"maxDeltaPercent" toml:"max_delta_percent" json:"maxDeltaPercent,omitempty"`
}

// Profile describes how one supervised dev process is launched and how its
// readiness is inferred from streamed output.
type Profile struct {
	Name          string            `yaml:"-" toml:"-" json:"name"`
	Command       []string          `yaml:"command" toml:"command" json:"command"`
	Dir           string            `yaml:"dir" toml:"dir" json:"dir,omitempty"`
	Env           map[string]string `yaml:"env" toml:"env" json:"env,omitempty"`
	Port          int               `yaml:"port" toml:"port" json:"port,omitempty"`
	ReadyPatterns []string          `yaml:"readyPatterns" toml:"ready_patterns" json:"readyPatterns,omitempty"`
	ErrorPatterns []string          `yaml:"errorPatterns" toml:"error_patterns" json:"errorPatterns,omitempty"`
	ReadyTimeout  Duration          `yaml:"readyTimeout" toml:"ready_timeout" json:"readyTimeout,omitempty"`
}

// Validate rejects profiles that cannot be spawned or matched.
func (p *Profile) Validate() error {
	if len(p.Command) == 0 {
		return fmt.Errorf("profile %s: command is required", p.Name)
	}
	if len(p.ReadyPatterns) == 0 && len(p.ErrorPatterns) == 0 {
		return fmt.Errorf("profile %s: at least one ready or error pattern is required", p.Name)
	}
	return nil
}

// Profile resolves a named profile, consulting the built-in registry when
// the project configuration does not define one.
func (c *Config) Profile(name string) (*Profile, error) {
	if c != nil {
		if p, ok := c.Profiles[name]; ok && p != nil {
			p.Name = name
			if p.Port == 0 {
				p.Port = c.firstPort()
			}
			return p, p.Validate()
		}
	}
	if p, ok := builtinProfiles[name]; ok {
		clone := *p
		clone.Name = name
		return &clone, nil
	}
	return nil, fmt.Errorf("unknown process profile %q", name)
}

// ProfileNames lists every resolvable profile, configured and built-in.
func (c *Config) ProfileNames() []string {
	seen := make(map[string]struct{})
	var names []string
	if c != nil {
		for name := range c.Profiles {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	for name := range builtinProfiles {
		if _, dup := seen[name]; !dup {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (c *Config) firstPort() int {
	if c == nil || len(c.Ports) == 0 {
		return 0
	}
	return c.Ports[0]
}

// MonitoredPorts applies the port-resolution precedence: an explicit list
// wins, then configured/inferred ports, then the fixed defaults.
func (c *Config) MonitoredPorts(explicit []int) []int {
	if len(explicit) > 0 {
		return explicit
	}
	if c != nil && len(c.Ports) > 0 {
		return c.Ports
	}
	return append([]int(nil), DefaultPorts...)
}

// builtinProfiles covers common dev servers so that leakwatch run works
// without any project configuration.
var builtinProfiles = map[string]*Profile{
	"vite": {
		Command:       []string{"npx", "vite", "dev"},
		Port:          5173,
		ReadyPatterns: []string{`ready in \d+`, `Local:\s+http`},
		ErrorPatterns: []string{`(?i)error while starting`, `EADDRINUSE`},
	},
	"next": {
		Command:       []string{"npx", "next", "dev"},
		Port:          3000,
		ReadyPatterns: []string{`(?i)ready`, `started server on`},
		ErrorPatterns: []string{`EADDRINUSE`, `(?i)failed to start`},
	},
	"astro": {
		Command:       []string{"npx", "astro", "dev"},
		Port:          4321,
		ReadyPatterns: []string{`(?i)ready in`, `Local\s+http`},
		ErrorPatterns: []string{`EADDRINUSE`, `(?i)unable to start`},
	},
}
