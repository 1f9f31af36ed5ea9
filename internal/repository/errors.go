package repository

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation  = "23505"
	pgNotNullViolation = "23502"
	pgCheckViolation   = "23514"
)

// DuplicateError reports a unique constraint violation.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s: %s", e.Field, e.Value)
}

// ValidationError reports rows rejected by storage-level constraints.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

var constraintFields = map[string]string{
	"users_email_key":        "email",
	"users_display_name_key": "displayName",
	"users_public_id_key":    "id",
}

var pgKeyDetail = regexp.MustCompile(`Key \((.+)\)=\((.*)\) already exists`)

// translate maps driver errors onto the store's typed errors.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		dup := &DuplicateError{Field: constraintFields[pgErr.ConstraintName]}
		if m := pgKeyDetail.FindStringSubmatch(pgErr.Detail); m != nil {
			if dup.Field == "" {
				dup.Field = m[1]
			}
			dup.Value = m[2]
		}
		if dup.Value == "" {
			dup.Value = dup.Field
		}
		return dup
	case pgNotNullViolation:
		return &ValidationError{Messages: []string{fmt.Sprintf("%s is required", pgErr.ColumnName)}}
	case pgCheckViolation:
		return &ValidationError{Messages: []string{pgErr.Message}}
	}
	return err
}
