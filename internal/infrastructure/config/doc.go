// Package config handles loading and validating partcompat configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading an optional .env file before environment overrides
//   - Overriding with PARTCOMPAT_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Sensitive values (MQTT passwords, InfluxDB tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.Path)
package config
