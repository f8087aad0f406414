package errors

import (
	stdErrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE classes the store cares about.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgSerialization       = "40001"
	pgDeadlock            = "40P01"
)

// PGDiagnostics is the Postgres detail carried by a driver error. The pgx
// driver is used at runtime; lib/pq errors still surface from goose.
type PGDiagnostics struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

func pgDiagnostics(err error) (PGDiagnostics, bool) {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return PGDiagnostics{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return PGDiagnostics{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return PGDiagnostics{}, false
}

// FromStore wraps a storage error with the code its SQLSTATE implies, so a
// unique violation surfaces as CONFLICT instead of DEPENDENCY_ERROR.
func FromStore(err error, message string) *Error {
	diag, ok := pgDiagnostics(err)
	if !ok {
		return Wrap(CodeDependency, err, message)
	}
	switch diag.Code {
	case pgUniqueViolation:
		return Wrap(CodeConflict, err, message)
	case pgForeignKeyViolation:
		return Wrap(CodeNotFound, err, message)
	case pgCheckViolation:
		return Wrap(CodeValidation, err, message)
	default:
		return Wrap(CodeDependency, err, message)
	}
}

// LogFields flattens err for structured logging. Postgres fields are added
// only when present.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error_code": CodeOf(err)}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, e.Error())
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	if diag, ok := pgDiagnostics(err); ok {
		for key, value := range map[string]string{
			"pg_code":       diag.Code,
			"pg_constraint": diag.Constraint,
			"pg_table":      diag.Table,
			"pg_column":     diag.Column,
			"pg_detail":     diag.Detail,
			"pg_message":    diag.Message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
		if diag.Code == pgSerialization || diag.Code == pgDeadlock {
			fields["pg_retryable"] = true
		}
	}
	return fields
}
