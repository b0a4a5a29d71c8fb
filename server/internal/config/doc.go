// Package config loads the funnelstack configuration from config.yaml.
//
// Config fields:
//   - Server.HTTPPort       - port for the REST API (default 3000)
//   - Server.CORSOrigin     - Access-Control-Allow-Origin value (default "*")
//   - Data.Driver           - "file" or "sqlite" (default "file")
//   - Data.Path             - stage file for the file driver (default data/pipeline.json)
//   - Data.DSN, Data.Query  - database path and optional query for the sqlite driver
//   - Telemetry.EndpointEnv - env var holding the OTLP/HTTP endpoint; empty disables export
//   - Log.Level             - slog level (default info)
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, fn) reloads the file on change and hands the new Config to fn.
package config
