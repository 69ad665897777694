package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vovakirdan/topicrooms/internal/core"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	StaticDir         string        `mapstructure:"static_dir" yaml:"static_dir"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`

	DefaultRoom       string  `mapstructure:"default_room" yaml:"default_room"`
	CaseSensitive     bool    `mapstructure:"case_sensitive" yaml:"case_sensitive"`
	UnknownRoomPolicy string  `mapstructure:"unknown_room_policy" yaml:"unknown_room_policy"`
	QueueSize         int     `mapstructure:"queue_size" yaml:"queue_size"`
	ControlRate       float64 `mapstructure:"control_rate" yaml:"control_rate"`
	ControlBurst      int     `mapstructure:"control_burst" yaml:"control_burst"`

	Feed  FeedConfig   `mapstructure:"feed" yaml:"feed"`
	Rooms []RoomConfig `mapstructure:"rooms" yaml:"rooms"`
}

// FeedConfig selects and configures the upstream feed. File wins over URL.
type FeedConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	Token          string        `mapstructure:"token" yaml:"token,omitempty"`
	File           string        `mapstructure:"file" yaml:"file,omitempty"`
	ReplayRate     float64       `mapstructure:"replay_rate" yaml:"replay_rate,omitempty"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	MaxReconnects  int           `mapstructure:"max_reconnects" yaml:"max_reconnects"`
}

// RoomConfig describes one topic room. Topics are read from TopicsFile
// (one per line, relative to the config file) and/or listed inline.
type RoomConfig struct {
	ID         string   `mapstructure:"id" yaml:"id"`
	Label      string   `mapstructure:"label" yaml:"label"`
	TopicsFile string   `mapstructure:"topics_file" yaml:"topics_file,omitempty"`
	Topics     []string `mapstructure:"topics" yaml:"topics,omitempty"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		StaticDir:         "public",
		MaxMessageBytes:   4096,
		DefaultRoom:       "nba",
		UnknownRoomPolicy: string(core.UnknownRoomClear),
		QueueSize:         core.DefaultQueueSize,
		ControlRate:       5,
		ControlBurst:      10,
		Feed: FeedConfig{
			URL:            "https://stream.twitter.com/1.1/statuses/filter.json",
			ReconnectDelay: 5 * time.Second,
			MaxReconnects:  10,
		},
		Rooms: []RoomConfig{
			{ID: "nba", Label: "NBA hashtags", TopicsFile: "public/nba.txt"},
			{ID: "rust", Label: "Rust, async-std, http-rs and all that jazz", TopicsFile: "public/rust.txt"},
			{ID: "premier", Label: "Premier League teams", TopicsFile: "public/premier.txt"},
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DefaultRoom != "" {
		c.DefaultRoom = other.DefaultRoom
	}
	if other.Feed.File != "" {
		c.Feed.File = other.Feed.File
	}
	if other.Feed.URL != "" {
		c.Feed.URL = other.Feed.URL
	}
}

// Validate checks values that cannot be caught by the registry.
func (c *Config) Validate() error {
	if len(c.Rooms) == 0 {
		return core.NewConfigError("no rooms configured")
	}
	if strings.TrimSpace(c.DefaultRoom) == "" {
		return core.NewConfigError("default_room is required")
	}
	found := false
	for _, r := range c.Rooms {
		if strings.TrimSpace(r.ID) == c.DefaultRoom {
			found = true
			break
		}
	}
	if !found {
		return core.NewConfigError("default room %q is not configured", c.DefaultRoom)
	}
	if _, err := core.ParseUnknownRoomPolicy(c.UnknownRoomPolicy); err != nil {
		return core.NewConfigError("%v", err)
	}
	if c.QueueSize < 0 {
		return core.NewConfigError("queue_size must not be negative")
	}
	if c.Feed.File == "" && c.Feed.URL == "" {
		return core.NewConfigError("either feed.url or feed.file is required")
	}
	return nil
}

// RoomSpecs resolves topic files relative to baseDir and returns registry
// input in configuration order.
func (c *Config) RoomSpecs(baseDir string) ([]core.RoomSpec, error) {
	specs := make([]core.RoomSpec, 0, len(c.Rooms))
	for _, r := range c.Rooms {
		var b strings.Builder
		if r.TopicsFile != "" {
			path := r.TopicsFile
			if !filepath.IsAbs(path) && baseDir != "" {
				path = filepath.Join(baseDir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, core.NewConfigError("room %q: read topics: %v", r.ID, err)
			}
			b.Write(data)
			b.WriteByte('\n')
		}
		for _, topic := range r.Topics {
			b.WriteString(topic)
			b.WriteByte('\n')
		}
		specs = append(specs, core.RoomSpec{ID: r.ID, Label: r.Label, RawTopics: b.String()})
	}
	return specs, nil
}
