package commands

import (
	"github.com/aweist/docket-watcher/config"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	EnvFile    string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}
