package postgres

import (
	"errors"
	"fmt"
	"testing"

	"user-admin/internal/shared/storage/dbutil"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestDialect(t *testing.T) {
	d := NewDialect()
	assert.Equal(t, dbutil.DriverPostgres, d.DriverType())
	assert.Equal(t, "SELECT 1 WHERE a = $1", d.Rebind("SELECT 1 WHERE a = $1"))
	assert.Equal(t, "email ILIKE $3", d.ILike("email", "$3"))
}

func TestIsUniqueViolation(t *testing.T) {
	d := NewDialect()
	dup := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}

	assert.True(t, d.IsUniqueViolation(dup))
	assert.True(t, d.IsUniqueViolation(fmt.Errorf("insert user: %w", dup)))
	assert.False(t, d.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, d.IsUniqueViolation(errors.New("connection refused")))
}
