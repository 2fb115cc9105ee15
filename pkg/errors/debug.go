package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields describes err for structured logs: its code, every link of the
// unwrap chain and, when a Postgres driver error is inside, the server's
// diagnostics. pgx and lib/pq errors are both recognised.
func LogFields(err error) map[string]any {
	if err == nil {
		return nil
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = typed.Code()
	}

	var chain []string
	for link := err; link != nil; link = stdErrors.Unwrap(link) {
		chain = append(chain, fmt.Sprintf("%T", link))
	}
	fields["error_chain"] = chain

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		addPGFields(fields, pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail)
	case stdErrors.As(err, &pqErr):
		addPGFields(fields, string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail)
	}
	return fields
}

func addPGFields(fields map[string]any, code, constraint, table, detail string) {
	fields["pg_code"] = code
	for key, value := range map[string]string{"pg_constraint": constraint, "pg_table": table, "pg_detail": detail} {
		if value != "" {
			fields[key] = value
		}
	}
}
