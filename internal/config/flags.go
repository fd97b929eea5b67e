package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/feedvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-r string   MongoDB URI of the remote document store
//	-d string   database name
//	-t string   access token
//	-k string   keystore file path
//	-s string   local data directory
//	-i int      remote request timeout in seconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-r", "-d", "-t", "-k", "-s", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.RemoteURI, "r", cfg.RemoteURI, "MongoDB URI of the remote document store")
	fs.StringVar(&cfg.Database, "d", cfg.Database, "database name")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
	fs.StringVar(&cfg.KeystorePath, "k", cfg.KeystorePath, "keystore file path")
	fs.StringVar(&cfg.DataDir, "s", cfg.DataDir, "local data directory")
	requestTimeout := fs.Int("i", int(cfg.RequestTimeout.Seconds()), "remote request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
