package config

import "github.com/spf13/pflag"

var (
	flagConfig  = new(string)
	flagDebug   = new(bool)
	flagQuiet   = new(bool)
	flagServer  = new(string)
	flagUser    = new(string)
	flagWidth   = new(int)
	flagHeight  = new(int)
	flagFPS     = new(int)
	flagLogFile = new(string)
)

// BindFlags registers the configuration flags on a flag set.
// Call this on the root command's persistent flags before parsing.
func BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(flagConfig, "config", "", "Path to config file")
	fs.BoolVar(flagDebug, "debug", false, "Enable debug logging")
	fs.BoolVar(flagQuiet, "quiet", false, "Do not log to the console")
	fs.StringVar(flagServer, "server", "", "Backend base URL")
	fs.StringVar(flagUser, "user", "", "User id sent as X-User")
	fs.IntVar(flagWidth, "width", 0, "Viewer window width")
	fs.IntVar(flagHeight, "height", 0, "Viewer window height")
	fs.IntVar(flagFPS, "fps", 0, "Viewer frame rate limit")
	fs.StringVar(flagLogFile, "log-file", "", "Write logs to this file")
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagQuiet {
		cfg.Logging.Quiet = true
	}
	if *flagServer != "" {
		cfg.Server.BaseURL = *flagServer
	}
	if *flagUser != "" {
		cfg.Server.UserID = *flagUser
	}
	if *flagWidth > 0 {
		cfg.Viewer.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Viewer.Height = *flagHeight
	}
	if *flagFPS > 0 {
		cfg.Viewer.FPSLimit = *flagFPS
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
}
