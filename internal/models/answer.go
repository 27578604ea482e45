package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Answer holds either a single value or an ordered set of values (multi-select).
// It is persisted as text: a plain string for single values and a JSON array for sets.
type Answer struct {
	Single string   `json:"-"`
	Set    []string `json:"-"`
	IsSet  bool     `json:"-"`
}

func SingleAnswer(value string) Answer {
	return Answer{Single: value}
}

func SetAnswer(values ...string) Answer {
	set := make([]string, len(values))
	copy(set, values)
	return Answer{Set: set, IsSet: true}
}

// ParseAnswer decodes the stored text form. Text that looks like a JSON array but does not
// decode is kept as a raw single value.
func ParseAnswer(raw string) Answer {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[") {
		return SingleAnswer(raw)
	}

	var values []string
	if err := json.Unmarshal([]byte(trimmed), &values); err == nil {
		return SetAnswer(values...)
	}

	var mixed []interface{}
	if err := json.Unmarshal([]byte(trimmed), &mixed); err == nil {
		values = make([]string, 0, len(mixed))
		for _, v := range mixed {
			values = append(values, fmt.Sprint(v))
		}
		return SetAnswer(values...)
	}

	return SingleAnswer(raw)
}

// Raw returns the stored text form of the answer.
func (a Answer) Raw() string {
	if !a.IsSet {
		return a.Single
	}
	data, err := json.Marshal(a.Set)
	if err != nil {
		return ""
	}
	return string(data)
}

func (a Answer) IsEmpty() bool {
	if a.IsSet {
		return len(a.Set) == 0
	}
	return strings.TrimSpace(a.Single) == ""
}

func (a Answer) String() string {
	return a.Raw()
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.IsSet {
		if a.Set == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Set)
	}
	return json.Marshal(a.Single)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*a = Answer{}
		return nil
	case strings.HasPrefix(trimmed, "["):
		*a = ParseAnswer(trimmed)
		if !a.IsSet {
			return fmt.Errorf("invalid answer array: %s", trimmed)
		}
		return nil
	case strings.HasPrefix(trimmed, "\""):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = ParseAnswer(s)
		return nil
	default:
		// numbers and booleans are accepted as their literal text
		*a = SingleAnswer(trimmed)
		return nil
	}
}

// Value implements driver.Valuer.
func (a Answer) Value() (driver.Value, error) {
	return a.Raw(), nil
}

// Scan implements sql.Scanner.
func (a *Answer) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = Answer{}
	case string:
		*a = ParseAnswer(v)
	case []byte:
		*a = ParseAnswer(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Answer", src)
	}
	return nil
}

func (Answer) GormDataType() string {
	return "text"
}
