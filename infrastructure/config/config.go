// Package config loads the startup surface: CLI flags (port, socket,
// config) and the [server:main]/[backend:main] sections of an INI file.
package config

import (
	"flag"
	"fmt"

	"gopkg.in/ini.v1"

	"nodetree/pkg/utils"
)

// ServerConfig mirrors [server:main].
type ServerConfig struct {
	Port       int    `validate:"min=0"`
	Socket     string
	AdminUser  string
	AdminPass  string
	MaxThreads int `validate:"min=1"`
}

// BackendConfig mirrors [backend:main].
type BackendConfig struct {
	DSN   string `validate:"required"`
	CPMin int    `validate:"min=1"`
	CPMax int    `validate:"min=1"`
}

// Config is the fully resolved startup configuration.
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
}

// Defaults matches the values original_source's configure() bakes in.
func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:       8000,
			MaxThreads: 4,
		},
		Backend: BackendConfig{
			DSN:   "postgres://localhost/nodetree",
			CPMin: 2,
			CPMax: 4,
		},
	}
}

// Flags holds the parsed CLI options (§6 Startup surface).
type Flags struct {
	Port       int
	Socket     string
	ConfigPath string
}

// ParseFlags parses the three CLI options from args (excluding argv[0]).
func ParseFlags(args []string) Flags {
	fs := flag.NewFlagSet("nodetreed", flag.ContinueOnError)
	port := fs.Int("port", 0, "TCP port to listen on")
	socket := fs.String("socket", "", "Unix socket path; supersedes -port when set")
	configPath := fs.String("config", "etc/default.ini", "path to the INI configuration file")
	_ = fs.Parse(args)
	return Flags{Port: *port, Socket: *socket, ConfigPath: *configPath}
}

// Load reads the INI file at path (if it exists) over the built-in
// defaults, then applies CLI flag overrides for port and socket.
func Load(flags Flags) (Config, error) {
	cfg := defaults()

	file, err := ini.LoadSources(ini.LoadOptions{Loose: true, Insensitive: false}, flags.ConfigPath)
	if err != nil {
		return cfg, fmt.Errorf("loading config file %s: %w", flags.ConfigPath, err)
	}

	if s, err := file.GetSection("server:main"); err == nil {
		cfg.Server.Port = s.Key("port").MustInt(cfg.Server.Port)
		cfg.Server.AdminUser = s.Key("admin_user").MustString(cfg.Server.AdminUser)
		cfg.Server.AdminPass = s.Key("admin_pass").MustString(cfg.Server.AdminPass)
		cfg.Server.MaxThreads = s.Key("max_threads").MustInt(cfg.Server.MaxThreads)
	}
	if s, err := file.GetSection("backend:main"); err == nil {
		cfg.Backend.DSN = s.Key("dsn").MustString(cfg.Backend.DSN)
		cfg.Backend.CPMin = s.Key("cp_min").MustInt(cfg.Backend.CPMin)
		cfg.Backend.CPMax = s.Key("cp_max").MustInt(cfg.Backend.CPMax)
	}

	if flags.Port != 0 {
		cfg.Server.Port = flags.Port
	}
	if flags.Socket != "" {
		cfg.Server.Socket = flags.Socket
	}

	if err := utils.ValidateStruct(cfg.Server); err != nil {
		return cfg, fmt.Errorf("invalid [server:main] section: %w", err)
	}
	if err := utils.ValidateStruct(cfg.Backend); err != nil {
		return cfg, fmt.Errorf("invalid [backend:main] section: %w", err)
	}

	return cfg, nil
}
