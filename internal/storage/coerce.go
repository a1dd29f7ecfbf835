package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Numeric is a float64 that scans Postgres NUMERIC columns. lib/pq hands
// NUMERIC back as []byte; without this wrapper the value ends up a string
// and bankroll arithmetic degenerates into concatenation ("1000" + "100.00")
// producing NaN bankrolls downstream.
type Numeric float64

// Scan implements sql.Scanner.
func (n *Numeric) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*n = 0
		return nil
	case float64:
		*n = Numeric(v)
		return nil
	case int64:
		*n = Numeric(v)
		return nil
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return fmt.Errorf("scan numeric %q: %w", v, err)
		}
		f, _ := d.Float64()
		*n = Numeric(f)
		return nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("scan numeric %q: %w", v, err)
		}
		f, _ := d.Float64()
		*n = Numeric(f)
		return nil
	default:
		return fmt.Errorf("scan numeric: unsupported type %T", src)
	}
}

// Value implements driver.Valuer.
func (n Numeric) Value() (driver.Value, error) {
	return float64(n), nil
}

// Float64 unwraps.
func (n Numeric) Float64() float64 { return float64(n) }

// NullNumeric is a nullable Numeric.
type NullNumeric struct {
	Numeric Numeric
	Valid   bool
}

// Scan implements sql.Scanner.
func (n *NullNumeric) Scan(src interface{}) error {
	if src == nil {
		n.Numeric, n.Valid = 0, false
		return nil
	}
	n.Valid = true
	return n.Numeric.Scan(src)
}

// Value implements driver.Valuer.
func (n NullNumeric) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return float64(n.Numeric), nil
}

// Float64 unwraps, zero when NULL.
func (n NullNumeric) Float64() float64 { return float64(n.Numeric) }

// Ptr returns the value as *float64, nil when NULL.
func (n NullNumeric) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	f := float64(n.Numeric)
	return &f
}

// FromPtr builds a NullNumeric from an optional float.
func FromPtr(f *float64) NullNumeric {
	if f == nil {
		return NullNumeric{}
	}
	return NullNumeric{Numeric: Numeric(*f), Valid: true}
}

// Date scans a Postgres DATE column into its plain YYYY-MM-DD form.
// Lookup maps key on "city|date", so dates must stay strings; letting the
// driver produce time.Time shifts the day across timezones.
type Date string

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = ""
		return nil
	case time.Time:
		*d = Date(v.Format("2006-01-02"))
		return nil
	case []byte:
		*d = Date(trimDate(string(v)))
		return nil
	case string:
		*d = Date(trimDate(v))
		return nil
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return string(d), nil
}

func (d Date) String() string { return string(d) }

func trimDate(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

// JSONMap serializes a string-keyed map as an explicit JSONB column.
type JSONMap map[string]float64

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("scan jsonb map: unsupported type %T", src)
	}
	return json.Unmarshal(b, m)
}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// JSONStrings serializes a string slice as an explicit JSONB column.
type JSONStrings []string

// Scan implements sql.Scanner.
func (s *JSONStrings) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("scan jsonb strings: unsupported type %T", src)
	}
	return json.Unmarshal(b, s)
}

// Value implements driver.Valuer.
func (s JSONStrings) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// EvaluatorLog is the trimmed per-cycle monitor snapshot list on a trade.
type EvaluatorLog []EvaluatorSnapshot

// EvaluatorSnapshot is one monitor pass over an open trade.
type EvaluatorSnapshot struct {
	At              time.Time `json:"at"`
	Bid             float64   `json:"bid"`
	Ask             float64   `json:"ask"`
	ModelProb       float64   `json:"model_prob"`
	CorrectedProb   float64   `json:"corrected_prob"`
	ObservationHigh *float64  `json:"observation_high,omitempty"`
	WUHigh          *float64  `json:"wu_high,omitempty"`
	Signals         []string  `json:"signals,omitempty"`
}

// Scan implements sql.Scanner.
func (l *EvaluatorLog) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("scan evaluator log: unsupported type %T", src)
	}
	return json.Unmarshal(b, l)
}

// Value implements driver.Valuer.
func (l EvaluatorLog) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Append adds a snapshot, keeping only the newest maxLen entries.
func (l EvaluatorLog) Append(s EvaluatorSnapshot, maxLen int) EvaluatorLog {
	out := append(l, s)
	if maxLen > 0 && len(out) > maxLen {
		out = out[len(out)-maxLen:]
	}
	return out
}
