// Package config loads application configuration from environment
// variables.  Required values go through must/mustInt and stop the process
// when missing; optional concerns have their own loaders with defaults.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds the core runtime settings of the checkout service.
type Config struct {
	Env               string // application environment (dev/test/prod)
	Port              string // HTTP port to listen on
	DBUser            string
	DBPass            string // may be empty
	DBHost            string
	DBPort            string
	DBName            string
	AutoMigrate       bool   // apply the schema on start
	JWTSecret         string // signs actor and admin tokens
	AccessTTLMin      int    // token lifetime in minutes
	AdminPasswordHash string // bcrypt hash; admin login is disabled when empty
	Currency          string // ISO 4217 code used for orders and payments

	// TrustClientStudentID lets session requests carry a self-asserted
	// student id.  Off by default in production, where member pricing must
	// not rest on an id nobody verified.
	TrustClientStudentID bool
}

// Load reads the core configuration.
func Load() Config {
	env := must("APP_ENV")
	return Config{
		Env:               env,
		Port:              must("APP_PORT"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"),
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		AutoMigrate:       envBool("DB_AUTO_MIGRATE", false),
		JWTSecret:         must("JWT_SECRET"),
		AccessTTLMin:      mustInt("ACCESS_TOKEN_TTL_MIN"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		Currency:          strings.ToUpper(envStr("CURRENCY", "NOK")),

		TrustClientStudentID: trustClientStudentID(env),
	}
}

func trustClientStudentID(env string) bool {
	switch strings.ToLower(env) {
	case "prod", "production":
		return envBool("TRUST_CLIENT_STUDENT_ID", false)
	}
	return envBool("TRUST_CLIENT_STUDENT_ID", true)
}

// must retrieves a required environment variable and exits when it is
// unset or empty.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is must for integers.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
