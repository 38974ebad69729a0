package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/catalog-orders/internal/port"
)

const (
	erLockWaitTimeout  = 1205
	erLockDeadlock     = 1213
	erDupEntry         = 1062
	erRowIsReferenced2 = 1451

	defaultMaxRetries = 3
	retryBackoff      = 20 * time.Millisecond
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type MySQLAdapter struct {
	db         *sql.DB
	maxRetries int
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, maxRetries: defaultMaxRetries}
}

// WithinTx runs fn in a READ COMMITTED transaction. Deadlocks and lock wait
// timeouts restart fn in a fresh transaction, up to maxRetries times.
func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	for attempt := 0; ; attempt++ {
		err := m.runTx(ctx, opts, fn)
		if err == nil || !isRetryable(err) || attempt >= m.maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt+1) * retryBackoff):
		}
	}
}

func (m *MySQLAdapter) ReadOnly(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	return m.runTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true}, fn)
}

func (m *MySQLAdapter) runTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, repos port.Repositories) error) error {
	tx, err := m.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, repositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func repositories(q querier) port.Repositories {
	return port.Repositories{
		Products:  &productRepository{q: q},
		Orders:    &orderRepository{q: q},
		Revisions: &revisionRepository{q: q},
	}
}

func mysqlErrorNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isRetryable(err error) bool {
	switch mysqlErrorNumber(err) {
	case erLockDeadlock, erLockWaitTimeout:
		return true
	}
	return false
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
