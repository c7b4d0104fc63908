package repositories

import (
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/myrjola/keeper/internal/errors"
)

var ErrNotFound = errors.NewSentinel("record not found")

// notFound translates sql.ErrNoRows to ErrNotFound.
func notFound(err error, msg string, attrs ...slog.Attr) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(ErrNotFound, msg, attrs...)
	}
	return errors.Wrap(err, msg, attrs...)
}

// toJSON encodes v for a JSON text column.
func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "marshal json column")
	}
	return string(b), nil
}

// nullJSON encodes v for a nullable JSON text column. A nil v is stored as NULL.
func nullJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	s, err := toJSON(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// fromJSON decodes a JSON text column into v. NULL and empty columns leave v untouched.
func fromJSON(column sql.NullString, v any) error {
	if !column.Valid || column.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(column.String), v); err != nil {
		return errors.Wrap(err, "unmarshal json column")
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
