package jsonmap

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONMap represents a JSON object as a map.
type JSONMap map[string]interface{}

// Parse decodes a JSON object. Numbers are kept as json.Number so that
// their text survives a round trip.
func Parse(data []byte) (JSONMap, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("JSON string is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m JSONMap
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSONMap: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("failed to unmarshal JSONMap: not an object")
	}

	return m, nil
}
