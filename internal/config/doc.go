// Package config loads node configuration. Default() gives the baseline,
// Load overlays a JSON or YAML file through viper, and FromEnv overlays
// BIFROST_* variables.
//
// Example:
//
//	cfg, err := config.Load("/etc/bifrost/bifrost.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	n, _ := node.Open(node.Options{Config: cfg})
//	defer n.Close()
package config
