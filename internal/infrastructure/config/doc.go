// Package config handles loading and validating moonsim configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (MOONSIM_*)
//   - Validation of required fields
//   - Default value handling
//
// Configuration is loaded once at startup; there is no runtime overhead
// after the initial load.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Manager.StartPort)
package config
