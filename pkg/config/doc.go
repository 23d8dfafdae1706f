// Package config loads typed configuration from environment variables.
//
// Values are read with github.com/caarlos0/env/v11 after an optional .env file
// is applied with github.com/joho/godotenv, then checked with
// github.com/go-playground/validator/v10 struct tags. Load caches each config
// type for the life of the process; Parse skips the cache and is handy in tests.
package config
