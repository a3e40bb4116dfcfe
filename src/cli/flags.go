package cli

import (
	"github.com/spf13/cobra"

	"restic-exporter/src/restic"
)

type runOptions struct {
	ConfigPath   string
	Interval     uint
	Timeout      uint
	LogLevel     string
	Verbose      bool
	Host         string
	Port         uint16
	ResticBinary string
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to the configuration file")
	f.UintVarP(&opts.Interval, "interval", "i", 300, "Metrics collection frequency in seconds")
	f.UintVar(&opts.Timeout, "timeout", 0, "Timeout in seconds for each repository operation (0 disables it)")
	f.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "Log at debug level with source locations")
	f.StringVar(&opts.Host, "host", "0.0.0.0", "Server host")
	f.Uint16Var(&opts.Port, "port", 8080, "Server port")
	f.StringVar(&opts.ResticBinary, "restic-binary", restic.DefaultBinary, "restic binary path or name on PATH")
	_ = cmd.MarkFlagRequired("config")
}
