package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nir0k/photokeep/internal/config"
)

// Commands accepted on the command line.
const (
	CommandCapture  = "capture"
	CommandList     = "list"
	CommandDetails  = "details"
	CommandLatest   = "latest"
	CommandShow     = "show"
	CommandDescribe = "describe"
	CommandDelete   = "delete"
	CommandRescan   = "rescan"
	CommandSend     = "send"
)

// Options represents user-provided CLI parameters.
type Options struct {
	ConfigPath string
	Command    string
	Args       []string

	Backend     string
	ImagePath   string
	Front       bool
	Description string
	GPXPath     string
	Latitude    float64
	Longitude   float64
	Altitude    float64
	HasFix      bool

	LogLevel string
	LogFile  string
}

// ApplyConfig fills options the user left empty from the loaded
// configuration. Flags always win; it runs before Validate so the usual
// fallbacks still apply when the configuration is silent too.
func (o *Options) ApplyConfig(cfg config.Config) {
	if strings.TrimSpace(o.GPXPath) == "" {
		o.GPXPath = cfg.GPXTrack
	}
	if strings.TrimSpace(o.LogLevel) == "" {
		o.LogLevel = cfg.Log.Level
	}
	if strings.TrimSpace(o.LogFile) == "" {
		o.LogFile = cfg.Log.File
	}
}

// Validate performs basic validation and assigns defaults where needed.
func (o *Options) Validate() error {
	o.ConfigPath = strings.TrimSpace(o.ConfigPath)
	o.Command = strings.TrimSpace(strings.ToLower(o.Command))
	o.Backend = strings.TrimSpace(o.Backend)
	o.ImagePath = strings.TrimSpace(o.ImagePath)
	o.GPXPath = strings.TrimSpace(o.GPXPath)
	o.LogLevel = strings.TrimSpace(o.LogLevel)
	o.LogFile = strings.TrimSpace(o.LogFile)

	switch o.Command {
	case CommandCapture:
		if o.ImagePath == "" {
			return fmt.Errorf("an image file is required for %s", CommandCapture)
		}
	case CommandList, CommandDetails, CommandLatest, CommandRescan:
	case CommandShow, CommandDelete, CommandSend:
		if len(o.Args) != 1 {
			return fmt.Errorf("%s takes exactly one locator", o.Command)
		}
	case CommandDescribe:
		if len(o.Args) != 2 {
			return fmt.Errorf("%s takes a locator and a description", CommandDescribe)
		}
	case "":
		return fmt.Errorf("a command is required (capture, list, details, latest, show, describe, delete, rescan, send)")
	default:
		return fmt.Errorf("unknown command %q", o.Command)
	}

	if o.LogLevel == "" {
		o.LogLevel = "info"
	}
	if o.LogFile == "" {
		defaultPath, err := defaultLogPath()
		if err != nil {
			return err
		}
		o.LogFile = defaultPath
	}
	return nil
}

func defaultLogPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	dir := filepath.Dir(exe)
	// When running via `go run`, executable resides in temp; prefer current working dir then.
	if strings.HasPrefix(dir, os.TempDir()) {
		cwd, err := os.Getwd()
		if err == nil {
			dir = cwd
		}
	}
	return filepath.Join(dir, "photokeep.log"), nil
}
