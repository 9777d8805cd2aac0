// Package render loads stack definitions from the workspace and expands
// {{variable}} placeholders in them.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/valyala/fasttemplate"

	"github.com/bcnelson/portainer-stack-deploy/internal/domain"
)

const (
	startTag = "{{"
	endTag   = "}}"
)

// Renderer reads definition files relative to a workspace root.
type Renderer struct {
	root string
	log  logr.Logger
}

// New creates a Renderer rooted at root. An empty root is the working directory.
func New(root string, log logr.Logger) *Renderer {
	if root == "" {
		root = "."
	}
	return &Renderer{root: root, log: log}
}

// Render reads source and, when vars is non-nil, expands its placeholders.
func (r *Renderer) Render(source string, vars map[string]string) (string, error) {
	path := filepath.Join(r.root, source)
	r.log.Info("Reading stack definition file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &domain.NotFoundError{
				Resource: "stack definition file",
				Name:     path,
				Message:  "could not find stack definition file: " + path,
			}
		}
		return "", fmt.Errorf("reading stack definition file %s: %w", path, err)
	}
	if len(data) == 0 {
		return "", &domain.NotFoundError{
			Resource: "stack definition file",
			Name:     path,
			Message:  "stack definition file is empty: " + path,
		}
	}

	text := string(data)
	if vars == nil {
		return text, nil
	}

	r.log.Info("Applying template variables", "keys", sortedKeys(vars))
	return Expand(text, vars)
}

// Expand replaces every {{key}} in text with vars[key]. Whitespace inside
// the braces is ignored. Placeholders without a matching key are kept as
// the exact literal text.
func Expand(text string, vars map[string]string) (string, error) {
	return fasttemplate.ExecuteFuncStringWithErr(text, startTag, endTag, func(w io.Writer, tag string) (int, error) {
		if v, ok := vars[strings.TrimSpace(tag)]; ok {
			return io.WriteString(w, v)
		}
		var buf bytes.Buffer
		buf.Grow(len(startTag) + len(tag) + len(endTag))
		buf.WriteString(startTag)
		buf.WriteString(tag)
		buf.WriteString(endTag)
		return w.Write(buf.Bytes())
	})
}

func sortedKeys(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
