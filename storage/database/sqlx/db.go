// Package sqlxrepos stores the application data in PostgreSQL. Queries are built with squirrel and scanned
// with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type DB struct {
	db *sqlx.DB
}

var _ core.Transactor = (*DB)(nil)

func NewDB(db *sqlx.DB) *DB {
	return &DB{db: db}
}

type txKey struct{}

// txOptions gives reads one snapshot. Writes keep the database default isolation.
func txOptions(readOnly bool) *sql.TxOptions {
	if readOnly {
		return &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}
	}
	return &sql.TxOptions{}
}

// InTx runs `fn` in a database transaction, committed only when `fn` succeeds.
// A transaction already carried by `ctx` is reused.
func (db *DB) InTx(ctx context.Context, readOnly bool, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.db.BeginTxx(ctx, txOptions(readOnly))
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			// the connection state is unknown
			return errors.Wrap(core.NewShutdownError("rolling back: "+rbErr.Error()), err.Error())
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// exec returns the transaction of `ctx`, or the pool when there is none.
func (db *DB) exec(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db.db
}

func (db *DB) selectAll(ctx context.Context, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, db.exec(ctx), dest, query, args...)
}

// get scans the single row of `b` into `dest`, and returns `notFound` when there is none.
func (db *DB) get(ctx context.Context, dest interface{}, b sq.Sqlizer, notFound error) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	err = sqlx.GetContext(ctx, db.exec(ctx), dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

func (db *DB) execute(ctx context.Context, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := db.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// insert runs `b` and returns the id it reports.
func (db *DB) insert(ctx context.Context, b sq.InsertBuilder) (int, error) {
	var id int
	query, args, err := b.Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	err = sqlx.GetContext(ctx, db.exec(ctx), &id, query, args...)
	return id, err
}

func lower(secteurs []string) []string {
	out := make([]string, len(secteurs))
	for i, s := range secteurs {
		out[i] = core.CleanString(s, true)
	}
	return out
}

// secteurIn filters `column` on `secteurs`, case-insensitively. A nil list matches everything and an empty one
// matches nothing.
func secteurIn(column string, secteurs []string) sq.Sqlizer {
	if secteurs == nil {
		return sq.Expr("TRUE")
	}
	return sq.Eq{"lower(" + column + ")": lower(secteurs)}
}
