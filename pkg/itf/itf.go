// Package itf holds small helpers for service-level tests: a context wired
// the way middleware wires production requests, with a no-op transaction so
// InTx joins instead of opening one on a pool that does not exist in tests.
package itf

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fieldrow/fieldrow/pkg/composables"
)

// NopTx satisfies pgx.Tx without touching a database. Statement-level calls
// fail loudly so a test exercising SQL by accident is caught immediately.
type NopTx struct{}

var errNopTx = pgx.ErrTxClosed

func (NopTx) Begin(ctx context.Context) (pgx.Tx, error) { return NopTx{}, nil }
func (NopTx) Commit(ctx context.Context) error          { return nil }
func (NopTx) Rollback(ctx context.Context) error        { return nil }

func (NopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errNopTx
}

func (NopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (NopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }

func (NopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errNopTx
}

func (NopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNopTx
}

func (NopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNopTx
}

func (NopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return errRow{} }

func (NopTx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errNopTx }

// ServiceContext builds a context carrying tenant, actor and a NopTx, which
// is what service methods see when called from a request that already runs
// inside a transaction.
func ServiceContext(tenantID, userID uuid.UUID) context.Context {
	ctx := composables.WithTx(context.Background(), NopTx{})
	ctx = composables.WithTenantID(ctx, tenantID)
	return composables.WithUserID(ctx, userID)
}
