// internal/domain/erp/fields.go
package erp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// The ERP encodes "no value" as JSON false for almost every field type.
// These wrappers convert that encoding once, at the boundary.

var jsonFalse = []byte("false")

func isEmpty(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || bytes.Equal(data, jsonFalse) || bytes.Equal(data, []byte("null"))
}

// Many2One is a relation field: false or [id, "display name"].
type Many2One struct {
	ID    int64
	Name  string
	Valid bool
}

func (m *Many2One) UnmarshalJSON(data []byte) error {
	*m = Many2One{}
	if isEmpty(data) {
		return nil
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("many2one: %w", err)
	}
	if len(pair) == 0 {
		return nil
	}
	if err := json.Unmarshal(pair[0], &m.ID); err != nil {
		return fmt.Errorf("many2one id: %w", err)
	}
	if len(pair) > 1 && !isEmpty(pair[1]) {
		if err := json.Unmarshal(pair[1], &m.Name); err != nil {
			return fmt.Errorf("many2one name: %w", err)
		}
	}
	m.Valid = true
	return nil
}

func (m Many2One) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return jsonFalse, nil
	}
	return json.Marshal([]any{m.ID, m.Name})
}

// Text is a char/text field that may arrive as false.
type Text struct {
	String string
	Valid  bool
}

func (t *Text) UnmarshalJSON(data []byte) error {
	*t = Text{}
	if isEmpty(data) {
		return nil
	}
	if err := json.Unmarshal(data, &t.String); err != nil {
		return fmt.Errorf("text: %w", err)
	}
	t.Valid = t.String != ""
	return nil
}

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return jsonFalse, nil
	}
	return json.Marshal(t.String)
}

const (
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
)

// DateTime is a datetime or date field in UTC.
type DateTime struct {
	Time  time.Time
	Valid bool
}

func (d *DateTime) UnmarshalJSON(data []byte) error {
	*d = DateTime{}
	if isEmpty(data) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("datetime: %w", err)
	}
	for _, layout := range []string{DateTimeLayout, DateLayout, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			d.Time, d.Valid = t, true
			return nil
		}
	}
	return fmt.Errorf("datetime: unrecognised value %q", s)
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return jsonFalse, nil
	}
	return json.Marshal(d.Time.UTC().Format(DateTimeLayout))
}
