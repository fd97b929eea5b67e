// Package config loads runtime configuration for the FeedVault client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-r string   MongoDB URI of the remote document store
//	-d string   database name
//	-t string   access token
//	-k string   keystore file path
//	-s string   local data directory
//	-i int      remote request timeout (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for the timeout, so values can be
// either strings like "12s" or integer nanoseconds:
//
//	{
//	  "remote_uri": "mongodb://127.0.0.1:27017",
//	  "database": "feedvault",
//	  "request_timeout": "12s",
//	  "s3_bucket": "feedvault-snapshots"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
