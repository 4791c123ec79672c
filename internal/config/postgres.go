package config

import (
	"fmt"
	"strings"
)

type PostgresConfig struct {
	Host     string  `hcl:"host"`
	Port     *int    `hcl:"port"`
	User     *string `hcl:"user"`
	Password *string `hcl:"password"`
	Database *string `hcl:"database"`
}

// DSN assembles a keyword/value connection string for pgx. Absent
// optional fields are left to the driver's defaults.
func (c PostgresConfig) DSN() string {
	parts := []string{fmt.Sprintf("host=%s", c.Host)}

	if c.Port != nil {
		parts = append(parts, fmt.Sprintf("port=%d", *c.Port))
	}

	if c.User != nil {
		parts = append(parts, fmt.Sprintf("user=%s", *c.User))
	}

	if c.Password != nil {
		parts = append(parts, fmt.Sprintf("password=%s", *c.Password))
	}

	if c.Database != nil {
		parts = append(parts, fmt.Sprintf("dbname=%s", *c.Database))
	}

	return strings.Join(parts, " ")
}
