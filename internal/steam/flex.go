package steam

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexInt decodes a JSON number or numeric string. Empty strings, null and
// unparseable strings decode as 0.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	v, err := flexNumber(data)
	if err != nil {
		return err
	}
	*f = flexInt(v)
	return nil
}

// flexFloat is the float counterpart of flexInt.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	v, err := flexNumber(data)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func flexNumber(data []byte) (float64, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0, nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, fmt.Errorf("flex number: %w", err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, nil
		}
		return v, nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("flex number: %w", err)
	}
	return v, nil
}
