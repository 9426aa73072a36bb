package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// sqlStatements holds the dialect-specific statements shared by the SQL
// backends. insert takes (key, payload); update takes (payload, key,
// revision).
type sqlStatements struct {
	insert string
	update string
}

func sqlGet(ctx context.Context, db *sql.DB, query, key string) (Item, error) {
	var (
		payload  []byte
		revision int64
	)
	err := db.QueryRowContext(ctx, query, key).Scan(&payload, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, nil
	}
	if err != nil {
		return Item{}, fmt.Errorf("select %s: %w", key, err)
	}
	return Item{Value: payload, Revision: Revision(strconv.FormatInt(revision, 10))}, nil
}

func sqlCommit(ctx context.Context, db *sql.DB, writes []Write, stmts sqlStatements) (retErr error) {
	if err := checkWrites(writes); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, w := range writes {
		var res sql.Result
		if w.Expect == "" {
			res, err = tx.ExecContext(ctx, stmts.insert, w.Key, w.Value)
		} else {
			rev, perr := strconv.ParseInt(string(w.Expect), 10, 64)
			if perr != nil {
				return conflict(w.Key)
			}
			res, err = tx.ExecContext(ctx, stmts.update, w.Value, w.Key, rev)
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", w.Key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected %s: %w", w.Key, err)
		}
		if n != 1 {
			return conflict(w.Key)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
