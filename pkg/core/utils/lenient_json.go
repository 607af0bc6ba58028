package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// DecodeLenient unmarshals data into v, tolerating hand-edited JSON.
// Order of attempts:
// 1. Standard JSON
// 2. JSON repair (trailing commas, single quotes, unclosed brackets)
// 3. Hjson (comments, unquoted keys)
func DecodeLenient(data []byte, v interface{}) error {
	firstErr := json.Unmarshal(data, v)
	if firstErr == nil {
		return nil
	}

	if repaired, err := jsonrepair.RepairJSON(string(data)); err == nil {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return nil
		}
	}

	var generic interface{}
	if err := hjson.Unmarshal(data, &generic); err == nil {
		normalized, err := json.Marshal(generic)
		if err == nil {
			if err := json.Unmarshal(normalized, v); err == nil {
				return nil
			}
		}
	}

	return fmt.Errorf("failed to decode JSON: %w", firstErr)
}
