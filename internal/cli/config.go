package cli

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/probelens/probelens/pkg/engine"
	perrors "github.com/probelens/probelens/pkg/errors"
	"github.com/probelens/probelens/pkg/flow"
	"github.com/probelens/probelens/pkg/flow/lane"
	"github.com/probelens/probelens/pkg/flow/layout"
)

// configFile is the default config file looked up in the working directory.
const configFile = "probelens.toml"

// Config is the TOML configuration shared by all commands. Every section is
// optional; zero values fall back to the built-in defaults.
type Config struct {
	Server ServerConfig `toml:"server"`
	Cache  CacheConfig  `toml:"cache"`
	Layout LayoutConfig `toml:"layout"`
	Lanes  []LaneConfig `toml:"lane"`
	Rules  []RuleConfig `toml:"rule"`

	// DefaultLane receives nodes matching no rule. Only meaningful when
	// lanes are configured.
	DefaultLane string `toml:"default_lane"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr          string   `toml:"addr"`
	SafetyTimeout duration `toml:"safety_timeout"`
}

// CacheConfig selects the artifact cache backend.
type CacheConfig struct {
	// RedisURL switches the artifact cache to redis (redis://host:port/db).
	// Empty selects the file cache.
	RedisURL string `toml:"redis_url"`
}

// LayoutConfig overrides the spacing constants.
type LayoutConfig struct {
	BaseX            float64 `toml:"base_x"`
	CenterY          float64 `toml:"center_y"`
	LevelSpacing     float64 `toml:"level_spacing"`
	IntraLaneSpacing float64 `toml:"intra_lane_spacing"`
}

// LaneConfig declares one lane.
type LaneConfig struct {
	Name    string  `toml:"name"`
	Role    string  `toml:"role"` // "main", "thematic", "validation", "final"
	YOffset float64 `toml:"y_offset"`
}

// RuleConfig declares one classification rule.
type RuleConfig struct {
	Keywords []string `toml:"keywords"`
	Kinds    []string `toml:"kinds"`
	Lane     string   `toml:"lane"`
}

// duration wraps time.Duration for TOML decoding of strings like "5m".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// LoadConfig reads the config from path. An empty path tries probelens.toml
// in the working directory and returns defaults when it does not exist; an
// explicit path must exist.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = configFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &Config{}, nil
		}
		return nil, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "read config %s", path)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	return &cfg, nil
}

// Spacing returns the layout spacing, defaulted field by field so partial
// overrides work.
func (c *Config) Spacing() layout.Spacing {
	s := layout.DefaultSpacing()
	if c.Layout.BaseX != 0 {
		s.BaseX = c.Layout.BaseX
	}
	if c.Layout.CenterY != 0 {
		s.CenterY = c.Layout.CenterY
	}
	if c.Layout.LevelSpacing != 0 {
		s.LevelSpacing = c.Layout.LevelSpacing
	}
	if c.Layout.IntraLaneSpacing != 0 {
		s.IntraLaneSpacing = c.Layout.IntraLaneSpacing
	}
	return s
}

// Classifier builds the lane classifier from the config, or the default one
// when no lanes are declared.
func (c *Config) Classifier() (*lane.Classifier, error) {
	if len(c.Lanes) == 0 {
		return lane.Default(), nil
	}

	lanes := make([]lane.Lane, 0, len(c.Lanes))
	for _, lc := range c.Lanes {
		role, err := laneRole(lc.Role)
		if err != nil {
			return nil, err
		}
		lanes = append(lanes, lane.Lane{Name: lc.Name, Role: role, YOffset: lc.YOffset})
	}

	rules := make([]lane.Rule, 0, len(c.Rules))
	for _, rc := range c.Rules {
		kinds := make([]flow.Kind, 0, len(rc.Kinds))
		for _, k := range rc.Kinds {
			kinds = append(kinds, flow.Kind(k))
		}
		rules = append(rules, lane.Rule{Keywords: rc.Keywords, Kinds: kinds, Lane: rc.Lane})
	}

	def := c.DefaultLane
	if def == "" {
		def = lanes[0].Name
	}

	cl, err := lane.NewClassifier(lanes, rules, def)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "build classifier")
	}
	return cl, nil
}

func laneRole(s string) (lane.Role, error) {
	switch s {
	case "", "main":
		return lane.RoleMain, nil
	case "thematic":
		return lane.RoleThematic, nil
	case "validation":
		return lane.RoleValidation, nil
	case "final":
		return lane.RoleFinal, nil
	}
	return "", perrors.New(perrors.ErrCodeInvalidConfig, "unknown lane role %q", s)
}

// ServerAddr returns the configured listen address or the default.
func (c *Config) ServerAddr() string {
	if c.Server.Addr != "" {
		return c.Server.Addr
	}
	return ":8080"
}

// SafetyTimeout returns the configured session timeout or the default.
func (c *Config) SafetyTimeout() time.Duration {
	if c.Server.SafetyTimeout > 0 {
		return time.Duration(c.Server.SafetyTimeout)
	}
	return 5 * time.Minute
}

// EngineOptions converts the config into engine options.
func (c *Config) EngineOptions() ([]engine.Option, error) {
	cl, err := c.Classifier()
	if err != nil {
		return nil, err
	}
	return []engine.Option{engine.WithClassifier(cl), engine.WithSpacing(c.Spacing())}, nil
}
