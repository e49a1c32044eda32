package domain

import (
	"bytes"
	"encoding/json"
)

// PrettyIndent is the indentation of documents served to public readers.
const PrettyIndent = "    "

// MarshalPretty renders v for public readers: indented with PrettyIndent,
// with '/', '<', '>' and '&' left unescaped and no trailing newline.
func MarshalPretty(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", PrettyIndent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
