// Package config provides configuration management for SigStreams
// applications.
//
// Two kinds of input live here. Application configuration (node identity,
// NATS connection, logging, metrics, tap tuning) loads from layered JSON
// files plus environment overrides into a Config. The channel manifest, a
// YAML description of the producing pipeline's channel layout, loads into a
// Manifest whose Build method replays it into a channel registry.
//
// SafeConfig wraps a Config behind a lock and hands out deep copies, for
// processes that reload configuration while running.
//
// # Loading Configuration
//
// Layers merge with last-wins semantics, so a deployment file only has to
// name the fields it changes:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.json")
//	loader.AddLayer("config/production.json") // Overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Environment variables override both layers:
//
//	export SIGSTREAMS_NODE_ID="rig01"
//	export SIGSTREAMS_NATS_URLS="nats://server1:4222,nats://server2:4222"
//
// # Channel Manifests
//
// A manifest names every channel the pipeline produces. Loading one yields
// the registry that resolves incoming packets:
//
//	manifest, err := config.LoadManifest(cfg.Tap.Manifest)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	registry, err := manifest.Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// A minimal manifest:
//
//	version: "1.0.0"
//	stages:
//	  - id: 100
//	    name: acquisition
//	    streams:
//	      - sub_stream: 0
//	        sample_rate: 30000
//	        continuous:
//	          - kind: headstage
//	            count: 64
//	        events:
//	          - kind: ttl
//	            channels: 8
//	            name: digital-in
//
// # File Handling
//
// Config and manifest files pass through the same checks before parsing:
// a 10MB size cap, a JSON nesting limit, path traversal rejection and a
// regular-file requirement. Oversized or malformed input fails the load
// instead of reaching the parser.
package config
