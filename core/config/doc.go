// Package config provides configuration management for the sync service.
//
// Values come from the environment (optionally seeded from a .env file through godotenv)
// and are read with Viper. Defaults live in `default:"..."` struct tags and nested keys
// map to upper-case variables joined by underscores (zotero.api_key -> ZOTERO_API_KEY).
//
// # Configuration Structure
//
//   - Server: HTTP port, API key, read timeout, metrics endpoint
//   - Log: level and format
//   - Zotero: API base URL, default API key and library, client timeout
//   - Storage: S3/MinIO credentials and the snapshot bucket
//   - Database: MySQL connection for the sync history
//   - Cache: entry TTL and snapshot archiving
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Zotero.Library)
package config
