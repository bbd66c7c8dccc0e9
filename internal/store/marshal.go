package store

import (
	"database/sql"
	"fmt"

	"github.com/crocs-muni/scrutiny-viz/internal/record"
)

// marshalValue converts an optional record value to a nullable JSON column.
// An absent value is SQL NULL; an explicit null is the JSON text "null".
func marshalValue(v record.Value) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := record.MarshalValue(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal value: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalValue is the inverse of marshalValue.
func unmarshalValue(col sql.NullString) (record.Value, error) {
	if !col.Valid {
		return nil, nil
	}
	v, err := record.Decode([]byte(col.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
