package execution

import (
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\\n(.*?)```")

// StripFences extracts the content of the first fenced code block in text,
// or, if no fence is present, returns text with only leading/trailing
// whitespace trimmed; prose in an unfenced reply is not removed.
// Models routinely wrap a file's new content in a ```lang ... ``` block
// with a sentence or two of preamble; the sandbox write must receive only
// the file content.
func StripFences(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimRight(m[1], "\n") + "\n"
	}
	return strings.TrimSpace(text) + "\n"
}

// dockerfileFixups are deterministic corrections for well-known syntactic
// traps.
var dockerfileFixups = []struct {
	from, to string
}{
	{"--no-installfrrecommends", "--no-install-recommends"},
}

var runInlineComment = regexp.MustCompile(`(?m)^(RUN\s+.*?)\s+#.*$`)

// ApplyLanguageFixups applies known deterministic fix-ups for the
// diagnosed language. lang is matched case-insensitively against common
// names derived from the file extension.
func ApplyLanguageFixups(lang, content string) string {
	if strings.EqualFold(lang, "dockerfile") {
		for _, fx := range dockerfileFixups {
			content = strings.ReplaceAll(content, fx.from, fx.to)
		}
		content = runInlineComment.ReplaceAllString(content, "$1")
	}
	return content
}

// LanguageFor maps a file path's extension (or the literal basename
// "Dockerfile") to the lint/fixup language key.
func LanguageFor(path string) string {
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	if base == "Dockerfile" || strings.HasPrefix(base, "Dockerfile.") {
		return "dockerfile"
	}
	switch {
	case strings.HasSuffix(base, ".ts"), strings.HasSuffix(base, ".tsx"):
		return "typescript"
	case strings.HasSuffix(base, ".js"), strings.HasSuffix(base, ".jsx"):
		return "javascript"
	case strings.HasSuffix(base, ".yaml"), strings.HasSuffix(base, ".yml"):
		return "yaml"
	case strings.HasSuffix(base, ".py"):
		return "python"
	default:
		return ""
	}
}
