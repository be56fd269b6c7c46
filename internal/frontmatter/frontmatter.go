// Package frontmatter separates a leading YAML metadata block from a note body.
package frontmatter

import (
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Document is a note split into its front matter block and body.
//
// Block holds the front matter exactly as written, opening and closing
// delimiter lines included, and always ends with a newline when non-empty.
// Concatenating Block and Body reproduces the input minus any blank lines
// that preceded the opening delimiter.
type Document struct {
	Block  string
	Body   string
	Fields map[string]any
}

// Split extracts a leading front matter block. Content without a block,
// with an unterminated block, or with invalid YAML inside the delimiters is
// returned entirely as Body.
func Split(content string) Document {
	trimmed := strings.TrimLeft(content, "\r\n")
	if !strings.HasPrefix(trimmed, delim) {
		return Document{Body: content}
	}
	firstNL := strings.IndexByte(trimmed, '\n')
	if firstNL < 0 || strings.TrimSpace(trimmed[:firstNL]) != delim {
		return Document{Body: content}
	}

	rest := trimmed[firstNL+1:]
	end := -1
	offset := 0
	for {
		nl := strings.IndexByte(rest[offset:], '\n')
		line := rest[offset:]
		if nl >= 0 {
			line = rest[offset : offset+nl]
		}
		if strings.TrimRight(line, "\r") == delim {
			end = offset
			break
		}
		if nl < 0 {
			break
		}
		offset += nl + 1
	}
	if end < 0 {
		return Document{Body: content}
	}

	yamlBlock := rest[:end]
	var fields map[string]any
	if err := yaml.Unmarshal([]byte(yamlBlock), &fields); err != nil {
		return Document{Body: content}
	}

	closeEnd := end + len(delim)
	if closeEnd < len(rest) && rest[closeEnd] == '\r' {
		closeEnd++
	}
	if closeEnd < len(rest) && rest[closeEnd] == '\n' {
		closeEnd++
	}
	block := trimmed[:firstNL+1] + rest[:closeEnd]
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	return Document{
		Block:  block,
		Body:   rest[closeEnd:],
		Fields: fields,
	}
}

// Join places block above body. An empty block yields body unchanged.
func Join(block, body string) string {
	if block == "" {
		return body
	}
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	return block + body
}

// Wrap rebuilds a document around a new body, keeping the front matter of
// content and never adding a second block.
func Wrap(content, body string) string {
	doc := Split(content)
	return Join(doc.Block, body)
}
