package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONB stores free-form documents such as prescription data.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	b, err := json.Marshal(j)
	return string(b), err
}

func (j *JSONB) Scan(value interface{}) error {
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, j)
}

// IntList is a JSON encoded list of integers, used for reminder offsets.
type IntList []int

func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *IntList) Scan(value interface{}) error {
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, l)
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case nil:
		return []byte("null"), nil
	default:
		return nil, errors.New("type assertion to []byte failed")
	}
}
