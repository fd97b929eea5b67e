package config

import "time"

// Config holds runtime settings for the FeedVault client.
//
// Fields:
//   - RemoteURI: MongoDB connection string of the shared document store.
//   - Database: database name holding the feed and profile collections.
//   - AccessToken: bearer token identifying the user; its user_id claim
//     scopes every remote query.
//   - KeystorePath: path of the passphrase-protected private key file.
//   - DataDir: directory for the local feed database.
//   - RequestTimeout: per-request deadline for remote calls.
//   - S3Bucket / S3Region / S3BaseEndpoint: object storage used for
//     encrypted feed snapshots.
type Config struct {
	RemoteURI      string
	Database       string
	AccessToken    string
	KeystorePath   string
	DataDir        string
	RequestTimeout time.Duration
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.RemoteURI = "mongodb://127.0.0.1:27017"
	c.Database = "feedvault"
	c.KeystorePath = "keystore.bin"
	c.DataDir = "."
	c.RequestTimeout = 12 * time.Second
	c.S3Region = "us-east-1"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
