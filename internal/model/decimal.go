package model

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Decimal is a fixed-point decimal stored as a string at the persistence
// boundary. Monetary and aggregate-sum columns use this type instead of
// float64 so that repeated upserts and sums never accumulate binary
// floating-point drift.
//
// Internally the value is held as an integer number of "units" (1e-4 of the
// nominal value, i.e. 4 decimal places of precision) which is enough for the
// revenue/value/sum fields this system ingests without needing an
// arbitrary-precision library.
type Decimal struct {
	units int64
}

const decimalScale = 10000 // 4 decimal places

// NewDecimalFromFloat builds a Decimal from a float64, rounding to 4 decimal
// places. Use only at ingestion boundaries where the upstream API itself
// represents money as JSON numbers; never use float64 arithmetic downstream.
func NewDecimalFromFloat(f float64) Decimal {
	return Decimal{units: int64(math.Round(f * decimalScale))}
}

// ParseDecimal parses a decimal string like "123.45" or "-7".
func ParseDecimal(s string) (Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Decimal{}, nil
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	parts := strings.SplitN(s, ".", 2)
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if len(frac) > 4 {
		frac = frac[:4]
	}
	for len(frac) < 4 {
		frac += "0"
	}

	wholeVal, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	fracVal, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}

	units := wholeVal*decimalScale + fracVal
	if neg {
		units = -units
	}
	return Decimal{units: units}, nil
}

// Float64 converts to a float64 for use in analytics computations, where
// binary-float error is acceptable because the result is a derived
// statistic, not a persisted monetary value.
func (d Decimal) Float64() float64 {
	return float64(d.units) / decimalScale
}

// Add returns d + other.
func (d Decimal) Add(other Decimal) Decimal {
	return Decimal{units: d.units + other.units}
}

// IsZero reports whether d is the zero value.
func (d Decimal) IsZero() bool {
	return d.units == 0
}

func (d Decimal) String() string {
	neg := d.units < 0
	units := d.units
	if neg {
		units = -units
	}
	whole := units / decimalScale
	frac := units % decimalScale
	s := fmt.Sprintf("%d.%04d", whole, frac)
	if neg {
		s = "-" + s
	}
	return s
}

// Value implements driver.Valuer so Decimal can be written through sqlx/lib/pq
// as a numeric/text column.
func (d Decimal) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner.
func (d *Decimal) Scan(src interface{}) error {
	if src == nil {
		*d = Decimal{}
		return nil
	}
	switch v := src.(type) {
	case string:
		parsed, err := ParseDecimal(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := ParseDecimal(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case float64:
		*d = NewDecimalFromFloat(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Decimal", src)
	}
}

// MarshalJSON encodes as a JSON string, matching upstream's own
// string-encoded decimal convention for monetary fields.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*d = Decimal{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		s = strings.Trim(s, `"`)
		parsed, err := ParseDecimal(s)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("unmarshal decimal %q: %w", s, err)
	}
	*d = NewDecimalFromFloat(f)
	return nil
}
