package tags

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"single", "alpine:3.20", "alpine:3.20"},
		{"multiple with blanks", "\n  alpine:3.20 \n\nbusybox:1.37.0\n", "alpine:3.20\nbusybox:1.37.0"},
		{"registry with port", "localhost:5000/app:1.2", "localhost:5000/app:1.2"},
		{"namespaced", "ghcr.io/user/repo:sha-0142c14", "ghcr.io/user/repo:sha-0142c14"},
		{"missing colon dropped", "alpine\nbusybox:1.37.0", "busybox:1.37.0"},
		{"empty tag dropped", "alpine:", ""},
		{"empty image dropped", ":3.20", ""},
		{"digest dropped", "alpine@sha256:" + strings.Repeat("a", 64), ""},
		{"later entry wins", "alpine:3.19\nalpine:3.20", "alpine:3.20"},
		{"uppercase repository dropped", "Alpine:1\nMyOrg/App:1.0", ""},
		{"invalid tag characters dropped", "app:1.0+build", ""},
		{"invalid line does not affect valid ones", "MyOrg/App:1.0\nalpine:3.20", "alpine:3.20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.raw).String()
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestReplace(t *testing.T) {
	tests := []struct {
		name string
		text string
		spec string
		want string
	}{
		{
			name: "flow mapping",
			text: "services: {a: {image: alpine:latest}}",
			spec: "alpine:3.20",
			want: "services: {a: {image: alpine:3.20}}",
		},
		{
			name: "untagged image gets tag",
			text: "services:\n  a:\n    image: alpine\n",
			spec: "alpine:3.20",
			want: "services:\n  a:\n    image: alpine:3.20\n",
		},
		{
			name: "multiple services and images",
			text: "services:\n  a:\n    image: alpine:latest\n  b:\n    image: busybox:1.36\n  c:\n    image: alpine:3.18\n",
			spec: "alpine:3.20\nbusybox:1.37.0",
			want: "services:\n  a:\n    image: alpine:3.20\n  b:\n    image: busybox:1.37.0\n  c:\n    image: alpine:3.20\n",
		},
		{
			name: "quoted value and trailing comment",
			text: "  image: \"alpine:latest\" # pinned\n  image: 'alpine'\n",
			spec: "alpine:3.20",
			want: "  image: \"alpine:3.20\" # pinned\n  image: 'alpine:3.20'\n",
		},
		{
			name: "registry with port",
			text: "    image: localhost:5000/app:1.0\n",
			spec: "localhost:5000/app:1.2",
			want: "    image: localhost:5000/app:1.2\n",
		},
		{
			name: "prefix of another image untouched",
			text: "    image: alpine-extra:1\n    image: library/alpine:1\n    image: alpine/git:1\n",
			spec: "alpine:3.20",
			want: "    image: alpine-extra:1\n    image: library/alpine:1\n    image: alpine/git:1\n",
		},
		{
			name: "unmatched image is a no-op",
			text: "    image: nginx:latest\n",
			spec: "alpine:3.20",
			want: "    image: nginx:latest\n",
		},
		{
			name: "other keys ending in image untouched",
			text: "    base_image: alpine:1\n    image: alpine:1\n",
			spec: "alpine:3.20",
			want: "    base_image: alpine:1\n    image: alpine:3.20\n",
		},
		{
			name: "tabs and wide spacing preserved",
			text: "\t\t  image:\t   alpine:old\n",
			spec: "alpine:new",
			want: "\t\t  image:\t   alpine:new\n",
		},
		{
			name: "image at start of text without trailing newline",
			text: "image: alpine:1",
			spec: "alpine:2",
			want: "image: alpine:2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Replace(tt.text, Parse(tt.spec))
			if got != tt.want {
				t.Errorf("Replace() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestReplace_Idempotent(t *testing.T) {
	text := "services:\n  a:\n    image: alpine:latest\n  b:\n    image: busybox\n"
	spec := Parse("alpine:3.20\nbusybox:1.37.0")

	once := Replace(text, spec)
	twice := Replace(once, spec)
	if once != twice {
		t.Errorf("Expected idempotent replacement:\n%s\nvs\n%s", once, twice)
	}
}

func TestReplace_OrderIndependent(t *testing.T) {
	text := "services:\n  a:\n    image: alpine:latest\n  b:\n    image: busybox:1\n  c:\n    image: nginx\n"

	forward := Replace(text, Parse("alpine:3.20\nbusybox:1.37.0\nnginx:1.27"))
	backward := Replace(text, Parse("nginx:1.27\nbusybox:1.37.0\nalpine:3.20"))
	if forward != backward {
		t.Errorf("Expected same result regardless of order:\n%s\nvs\n%s", forward, backward)
	}
}

func TestReplace_PreservesLeadingWhitespace(t *testing.T) {
	text := "version: '3'\nservices:\n  a:\n      image: alpine:1\n  b:\n    image:   busybox:1\n\t image: nginx\n"
	got := Replace(text, Parse("alpine:2\nbusybox:2\nnginx:2"))

	before := strings.Split(text, "\n")
	after := strings.Split(got, "\n")
	if len(before) != len(after) {
		t.Fatalf("Line count changed: %d vs %d", len(before), len(after))
	}
	lead := func(s string) string {
		return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
	}
	for i := range before {
		if lead(before[i]) != lead(after[i]) {
			t.Errorf("Line %d leading whitespace changed: %q -> %q", i, before[i], after[i])
		}
	}
	if got == text {
		t.Error("Expected tags to be rewritten")
	}
}

func TestChanges(t *testing.T) {
	before := "services:\n  a:\n    image: alpine:latest\n"
	after := Replace(before, Parse("alpine:3.20"))

	diff := Changes(before, after)
	if !strings.Contains(diff, "-    image: alpine:latest") || !strings.Contains(diff, "+    image: alpine:3.20") {
		t.Errorf("Unexpected diff:\n%s", diff)
	}
	if Changes(before, before) != "" {
		t.Error("Expected empty diff for identical text")
	}
}
