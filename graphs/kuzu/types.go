package kuzu

import (
	"errors"
	"fmt"
)

// ErrUnexpectedValue is returned when a result column does not hold the expected type.
var ErrUnexpectedValue = errors.New("unexpected value in query result")

// stringValue reads a STRING column. NULL converts to the empty string.
func stringValue(record map[string]any, key string) (string, error) {
	value, ok := record[key]
	if !ok {
		return "", fmt.Errorf("%w: missing column %s", ErrUnexpectedValue, key)
	}

	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("%w: column %s is %T", ErrUnexpectedValue, key, value)
	}
}

// int64Value reads an integer column, accepting every width KuzuDB may return.
func int64Value(record map[string]any, key string) (int64, error) {
	value, ok := record[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing column %s", ErrUnexpectedValue, key)
	}

	switch v := value.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: column %s is %T", ErrUnexpectedValue, key, value)
	}
}
