package db

import (
	"database/sql"
	"fmt"
)

// rowScanner is implemented by row types that read themselves from a cursor
type rowScanner interface {
	Scan(rows *sql.Rows) error
}

// collect drains rows into freshly allocated values of T
func collect[T any, PT interface {
	*T
	rowScanner
}](rows *sql.Rows) ([]*T, error) {
	out := []*T{}
	for rows.Next() {
		v := PT(new(T))
		if err := v.Scan(rows); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, (*T)(v))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// first returns the single row of a keyed lookup, or ErrNotFound
func first[T any, PT interface {
	*T
	rowScanner
}](rows *sql.Rows, what string) (*T, error) {
	all, err := collect[T, PT](rows)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return all[0], nil
}
