// Package config loads runtime configuration for the VoxKeeper client.
//
// Sources, lowest precedence first:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. An optional JSON file selected with -c or -config.
//  3. Short command-line flags (see parseFlags).
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds. Keys left out of the file keep
// their defaults:
//
//	{
//	  "owner_id": "3f0c...",
//	  "jwt_secret": "change-me-change-me",
//	  "records_dsn": "postgres://voxkeeper@db/voxkeeper",
//	  "s3_endpoint": "http://127.0.0.1:9000",
//	  "s3_use_path_style": true,
//	  "online_check_interval": "3s",
//	  "orphan_grace": "1h"
//	}
//
// The result is checked with validator struct tags plus the size policy's
// own ordering rules.
package config
