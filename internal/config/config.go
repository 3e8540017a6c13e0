// Package config provides configuration parsing and validation for the SOS gateway.
package config

import (
	"fmt"
)

// Store backend selection.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration parameters for the SOS gateway.
type Config struct {
	HTTPAddr    string
	Store       string
	PostgresDSN string

	// KafkaBrokers empty disables the audit pipeline.
	KafkaBrokers string
	AlertsTopic  string

	// RedisAddr empty disables metrics collection.
	RedisAddr string

	JWTSecret string

	// SupervisorList grants supervisors access to the alert listing endpoint.
	SupervisorList bool
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http-addr cannot be empty")
	}
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("store must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	if c.Store == StorePostgres && c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty when store is postgres")
	}
	if c.KafkaBrokers != "" && c.AlertsTopic == "" {
		return fmt.Errorf("alerts-topic cannot be empty when kafka-brokers is set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt-secret cannot be empty")
	}
	return nil
}
