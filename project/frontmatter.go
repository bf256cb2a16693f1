package project

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---"

func encodeFrontMatter(meta any, body string) ([]byte, error) {
	header, err := yaml.Marshal(meta)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(fence + "\n")
	buf.Write(header)
	buf.WriteString(fence + "\n\n")
	buf.WriteString(strings.TrimSpace(body))
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// decodeFrontMatter splits a document into its YAML header and body. A
// document without a header is all body.
func decodeFrontMatter(data []byte, meta any) (string, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(text, fence+"\n") {
		return strings.TrimSpace(text), nil
	}
	rest := text[len(fence)+1:]
	end := strings.Index(rest, "\n"+fence+"\n")
	var header, body string
	switch {
	case end >= 0:
		header, body = rest[:end+1], rest[end+len(fence)+2:]
	case strings.HasSuffix(rest, "\n"+fence):
		header = strings.TrimSuffix(rest, fence)
	default:
		return "", fmt.Errorf("unterminated front matter")
	}
	if err := yaml.Unmarshal([]byte(header), meta); err != nil {
		return "", fmt.Errorf("invalid front matter: %w", err)
	}
	return strings.TrimSpace(body), nil
}
