// Package tags rewrites image tags inside stack definitions.
//
// Matching is textual: any line shaped like "<indent>image:<ws>name[:tag]"
// is a candidate, wherever it sits in the document. The definition is never
// parsed as YAML, so comments, quoting and indentation survive untouched.
package tags

import (
	"regexp"
	"strings"

	"github.com/distribution/reference"
	"github.com/pmezard/go-difflib/difflib"
)

// Replacement pins one image to a new tag.
type Replacement struct {
	Image string
	Tag   string
}

// Spec is a set of replacements with unique image names.
type Spec []Replacement

// Parse reads one "image:tag" pair per line. Blank lines and entries that
// are not a tagged image reference are skipped. A later line for the same
// image overrides an earlier one.
func Parse(raw string) Spec {
	var spec Spec
	index := make(map[string]int)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r, ok := parseLine(line)
		if !ok {
			continue
		}
		if i, seen := index[r.Image]; seen {
			spec[i] = r
			continue
		}
		index[r.Image] = len(spec)
		spec = append(spec, r)
	}
	return spec
}

func parseLine(line string) (Replacement, bool) {
	ref, err := reference.Parse(line)
	if err != nil {
		return Replacement{}, false
	}
	named, ok := ref.(reference.Named)
	if !ok {
		return Replacement{}, false
	}
	tagged, ok := ref.(reference.Tagged)
	if !ok || tagged.Tag() == "" {
		return Replacement{}, false
	}
	if _, digested := ref.(reference.Digested); digested {
		return Replacement{}, false
	}
	return Replacement{Image: named.Name(), Tag: tagged.Tag()}, true
}

// Images returns the image names in the spec, in input order.
func (s Spec) Images() []string {
	names := make([]string, len(s))
	for i, r := range s {
		names[i] = r.Image
	}
	return names
}

// String renders the spec back into its multi-line input form.
func (s Spec) String() string {
	lines := make([]string, len(s))
	for i, r := range s {
		lines[i] = r.Image + ":" + r.Tag
	}
	return strings.Join(lines, "\n")
}

// pattern groups: 1 separator before the key, 2 key and spacing,
// 3 opening quote, 4 old tag, 5 closing quote, 6 terminator.
func pattern(image string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)(^|[\s{,\[])(image:[ \t]+)(["']?)` +
		regexp.QuoteMeta(image) +
		`(:[^\s"'#,}\]]*)?(["']?)([\s,}\]#]|$)`)
}

// Replace rewrites the tag of every image declaration matching a name in
// spec. Images not in spec are left alone.
func Replace(text string, spec Spec) string {
	for _, r := range spec {
		// Image names and tags that passed reference parsing never contain '$'.
		repl := "${1}${2}${3}" + r.Image + ":" + r.Tag + "${5}${6}"
		text = pattern(r.Image).ReplaceAllString(text, repl)
	}
	return text
}

// Changes returns a unified diff between two renderings of a definition,
// or an empty string when they are equal.
func Changes(before, after string) string {
	if before == after {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "definition",
		ToFile:   "definition (tags replaced)",
		Context:  1,
	})
	if err != nil {
		return ""
	}
	return diff
}
