// Package config loads execkit configuration.
//
// It uses Viper to read a YAML/JSON/TOML file, godotenv to load an optional
// .env file, and binds prefixed environment variables on top, so
// EXECKIT_PROCESS_GRACE_PERIOD=2s overrides process.grace_period from the file.
//
// # Usage
//
//	var cfg MyConfig
//	err := config.Load("execkit", &cfg, config.WithConfigFile("execkit.yml"))
package config
