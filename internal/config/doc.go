// Package config loads simwire.yaml.
//
// Every field has a default, so an empty file (or none at all) yields a
// working single-region simulator with an in-memory terrain store.
//
// # Configuration File Structure
//
//	udp:
//	  address: 0.0.0.0:9000
//	http:
//	  address: 0.0.0.0:9080
//	circuit:
//	  resend_timeout: 2s
//	  max_resends: 5
//	  idle_timeout: 60s
//	event_queue:
//	  poll_timeout: 30s
//	  max_events: 128
//	trusted_peers:
//	  - 10.0.0.5
//	region:
//	  name: Sandbox
//	  grid_x: 1000
//	  grid_y: 1000
//	terrain:
//	  store: sql
//	  sql:
//	    driver: sqlite3
//	    dsn: terrain.db
//	log:
//	  level: info
//	  format: json
//
// # Usage
//
//	cfg, err := config.LoadFile("simwire.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv := server.New(cfg.ServerConfig())
package config
