package pkg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolationError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505"}
	assert.True(t, IsUniqueViolationError(pgErr))
	assert.True(t, IsUniqueViolationError(fmt.Errorf("insert: %w", pgErr)))
	assert.False(t, IsUniqueViolationError(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolationError(errors.New("not a pg error")))
	assert.False(t, IsUniqueViolationError(nil))
}

func TestIsForeignKeyViolationError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503"}
	assert.True(t, IsForeignKeyViolationError(pgErr))
	assert.True(t, IsForeignKeyViolationError(fmt.Errorf("insert: %w", pgErr)))
	assert.False(t, IsForeignKeyViolationError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsForeignKeyViolationError(errors.New("not a pg error")))
	assert.False(t, IsForeignKeyViolationError(nil))
}
