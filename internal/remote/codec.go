package remote

import (
	"encoding/base64"
	"fmt"
)

// EncodeContent converts file text into the base64 form the contents API expects
func EncodeContent(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// DecodeContent converts base64 content from the contents API back to text.
// Line breaks inside the payload are ignored.
func DecodeContent(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("error decoding file content: %w", err)
	}
	return string(data), nil
}
