package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/lexisync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-l string   log level
//	-b string   store backend: file, kv, s3 or postgres
//	-f string   data file for the file backend
//	-d string   PostgreSQL DSN
//	-s string   static files directory
//
// args is filtered with flagx.FilterArgs first so that flags owned by other
// components (-c / -config) do not make parsing fail.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-l", "-b", "-f", "-d", "-s"})

	fs := flag.NewFlagSet("lexisync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.Address, "a", config.Address, "address and port to run server")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.StoreBackend, "b", config.StoreBackend, "store backend")
	fs.StringVar(&config.StoreFilePath, "f", config.StoreFilePath, "data file for the file backend")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.StaticDir, "s", config.StaticDir, "static files directory")

	return fs.Parse(args)
}
