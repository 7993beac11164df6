package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnostics is the log-only view of an error: its code, the unwrap chain,
// and the Postgres error fields when a driver error sits in the chain.
type Diagnostics struct {
	Message   string
	Code      Code
	Retryable bool
	Chain     []string
	Postgres  *PostgresDetail
}

// PostgresDetail holds the fields shared by pgconn.PgError and pq.Error.
type PostgresDetail struct {
	SQLState   string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

func Diagnose(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}
	diag := Diagnostics{Message: err.Error(), Code: CodeInternal}
	if typed := As(err); typed != nil {
		diag.Code = typed.Code()
	}
	diag.Retryable = MetadataFor(diag.Code).Retryable

	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		diag.Chain = append(diag.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	diag.Postgres = postgresDetail(err)
	return diag
}

func postgresDetail(err error) *PostgresDetail {
	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) {
		return &PostgresDetail{
			SQLState:   pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Column:     pgErr.ColumnName,
			Detail:     pgErr.Detail,
			Message:    pgErr.Message,
		}
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return &PostgresDetail{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}

// Fields flattens the diagnostics for logger.WithFields. Empty Postgres
// fields are left out.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.Message,
		"error_code":  d.Code,
		"retryable":   d.Retryable,
		"error_chain": d.Chain,
	}
	if pg := d.Postgres; pg != nil {
		for key, value := range map[string]string{
			"pg_code":       pg.SQLState,
			"pg_constraint": pg.Constraint,
			"pg_table":      pg.Table,
			"pg_column":     pg.Column,
			"pg_detail":     pg.Detail,
			"pg_message":    pg.Message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}
