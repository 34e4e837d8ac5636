// Package registry resolves tenant ids to connection descriptors.
//
// Tenant records live in the framework database's applications relation.
// Resolution results are cached process-wide by the Router; the registry
// is queried at most once per tenant id even under concurrent load.
package registry

import (
	"fmt"
	"log/slog"
	"strings"
)

// Descriptor holds the connection parameters for one tenant database.
// Immutable after construction — the Router replaces cache entries
// instead of editing them.
type Descriptor struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// DSN renders the descriptor as a keyword/value connection string
// understood by pgx. Values are quoted so passwords may contain spaces.
func (d *Descriptor) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s",
		quoteDSNValue(d.Host), d.Port, quoteDSNValue(d.Database),
		quoteDSNValue(d.User), quoteDSNValue(d.Password))
}

// LogValue redacts the password so descriptors are safe to log.
func (d *Descriptor) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", d.Host),
		slog.Int("port", d.Port),
		slog.String("database", d.Database),
		slog.String("user", d.User),
	)
}

func quoteDSNValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
