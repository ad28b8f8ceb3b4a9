// Package database handles state store connections and schema inspection.
//
// It provides a wrapper around GORM to configure MySQL or sqlite connections
// from the application's configuration.
//
// # Connect
//
// Connect opens the configured driver, applies pool settings and verifies the
// connection with a ping. With Tracing enabled the otelgorm plugin records a
// span per query.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns back the integrity check, which verifies
// that the sync tables carry every column the store expects.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	missing, err := database.MissingColumns(db, "sync_links", []string{"canonical_id"})
package database
