// Package pgerr classifies PostgreSQL errors returned through pgx.
package pgerr

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

func code(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool { return code(err) == codeUniqueViolation }

func IsForeignKeyViolation(err error) bool { return code(err) == codeForeignKeyViolation }

// IsInvalidText reports a malformed literal, such as a non-UUID id.
func IsInvalidText(err error) bool { return code(err) == codeInvalidText }
