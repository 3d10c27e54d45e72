// Package config handles loading and validating Gray Logic Tracker configuration.
//
// This package manages:
//   - Loading an optional .env file into the environment
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Per-router defaults (port 49000, 30s polling, 180s consider-home)
//   - Validation of required fields, reporting every problem at once
//
// Security Considerations:
//   - Router and broker passwords should be set via environment variables
//     (GRAYTRACKER_ROUTER_<ID>_PASSWORD, GRAYTRACKER_MQTT_PASSWORD)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	if err := config.LoadDotEnv(""); err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range cfg.Routers {
//	    fmt.Println(r.ID, r.ConsiderHomeDuration())
//	}
package config
