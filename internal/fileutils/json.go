package fileutils

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes v as indented JSON, without escaping HTML characters, ending with a newline.
//
// The output only depends on v, which makes it suitable for files compared between runs.
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("couldn't encode JSON: %v", err)
	}
	return buf.Bytes(), nil
}

// WriteJSON atomically writes v as indented JSON to path.
func WriteJSON(path string, v any) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return err
	}
	return AtomicWrite(path, data)
}
