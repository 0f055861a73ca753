package config

import "fmt"

// Connection holds the source-database connection parameters spec.md
// §6 lists as CLI flags: --host/-h, --port/-p, --user/-u, --password,
// --sslmode, --sslrootcert. These are never part of the JSON sync
// document (which only names the logical database via "database") —
// they come from flags or environment and are layered on top.
type Connection struct {
	Host        string
	Port        int
	User        string
	Password    string
	SSLMode     string
	SSLRootCert string
}

var validSSLModes = map[string]bool{
	"allow": true, "disable": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

// ValidSSLMode reports whether mode is one of the six modes spec.md §6
// allows.
func ValidSSLMode(mode string) bool {
	return validSSLModes[mode]
}

// DSN builds a libpq connection string for dbName using c's connection
// parameters, suitable for pgx.Connect / pgxpool.New.
func (c Connection) DSN(dbName string) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s", c.Host, c.Port, c.User, dbName)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	if c.SSLMode != "" {
		dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
	}
	if c.SSLRootCert != "" {
		dsn += fmt.Sprintf(" sslrootcert=%s", c.SSLRootCert)
	}
	return dsn
}
