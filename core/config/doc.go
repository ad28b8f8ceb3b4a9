// Package config provides configuration management for crm-bridge.
//
// Settings come from environment variables, optionally seeded from a .env
// file. Every key has a default declared in a `default` struct tag next to
// its `mapstructure` name; nested sections map to SECTION_KEY variables
// (e.g. SYNC_CYCLE_TIMEOUT, PROJECT_LIMITS_BURST).
//
// # Sections
//
//   - Server: port, API key, public paths
//   - Database: state store driver and connection
//   - Storage: report archive bucket (MinIO/S3)
//   - Log: level and format
//   - Redis: optional distributed cycle lock
//   - Sync: interval, timeouts, entity types, concurrency, mapping file
//   - Project, CRM: remote endpoints, tokens and rate limits
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Sync.Interval)
package config
