package db

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"
)

// ErrInvalidTenantSchema rejects malformed tenant identifiers before any
// query touches the database.
var ErrInvalidTenantSchema = errors.New("invalid_tenant_schema")

var schemaNamePattern = regexp.MustCompile(`^tenant_[a-z0-9_]+$`)

// ValidSchemaName reports whether s is a well-formed tenant schema
// identifier (tenant_<slug>).
func ValidSchemaName(s string) bool {
	return schemaNamePattern.MatchString(s)
}

// SchemaTable qualifies a tenant-scoped table for the active dialect.
// Postgres uses real schemas ("tenant_x"."bookings"); sqlite has none, so
// tests get a prefixed table name instead.
func SchemaTable(conn *gorm.DB, schema, table string) (string, error) {
	if !ValidSchemaName(schema) {
		return "", ErrInvalidTenantSchema
	}
	if strings.EqualFold(conn.Dialector.Name(), "postgres") {
		return fmt.Sprintf("%q.%q", schema, table), nil
	}
	return fmt.Sprintf("%q", schema+"_"+table), nil
}
