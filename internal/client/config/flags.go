package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/flagx"
)

// parseFlags overlays cfg with the flags it owns; other arguments in args
// are ignored.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-i", "-t", "-s", "-l"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the record store API")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the device database")
	onlineCheck := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "remote request timeout (in seconds)")
	syncEvery := fs.Int("s", int(cfg.SyncInterval.Seconds()), "background sync interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheck) * time.Second
	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
	cfg.SyncInterval = time.Duration(*syncEvery) * time.Second
	return nil
}
