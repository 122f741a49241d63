package execution

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator checks a candidate file's content and reports a human-readable
// error describing why it's invalid, or "" if it passes.
type Validator func(ctx context.Context, content string) string

// validators is the language-specific lint/validate table.
var validators = map[string]Validator{
	"yaml":       validateYAML,
	"dockerfile": validateDockerfile,
	"javascript": validateBraceBalance,
	"typescript": validateBraceBalance,
}

// ValidatorFor returns the validator for a language key, or nil if this
// tree has no validator for it (languages with no validator pass
// unconditionally).
func ValidatorFor(lang string) Validator {
	return validators[lang]
}

func validateYAML(ctx context.Context, content string) string {
	var out interface{}
	if err := yaml.Unmarshal([]byte(content), &out); err != nil {
		return fmt.Sprintf("yaml parse error: %v", err)
	}
	return ""
}

var dockerfileDirective = regexp.MustCompile(`(?i)^(FROM|RUN|CMD|COPY|ADD|ENV|EXPOSE|WORKDIR|USER|ENTRYPOINT|ARG|LABEL|VOLUME|ONBUILD|STOPSIGNAL|HEALTHCHECK|SHELL|MAINTAINER)\b`)

// validateDockerfile is a structural check, not a full parser: every
// non-blank, non-comment, non-continuation line must begin with a
// recognized directive, and the file must contain at least one FROM.
func validateDockerfile(ctx context.Context, content string) string {
	hasFrom := false
	cont := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			cont = false
			continue
		}
		if cont {
			cont = strings.HasSuffix(trimmed, "\\")
			continue
		}
		if !dockerfileDirective.MatchString(trimmed) {
			return fmt.Sprintf("dockerfile structural error: unrecognized instruction %q", trimmed)
		}
		if strings.HasPrefix(strings.ToUpper(trimmed), "FROM") {
			hasFrom = true
		}
		cont = strings.HasSuffix(trimmed, "\\")
	}
	if !hasFrom {
		return "dockerfile structural error: no FROM instruction"
	}
	return ""
}

// validateBraceBalance is a coarse transpile-check stand-in: balanced
// braces/brackets/parens is necessary (not sufficient) for syntactically
// valid JS/TS, and catches the common truncated-output failure mode.
func validateBraceBalance(ctx context.Context, content string) string {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	inString := rune(0)
	for i, r := range content {
		if inString != 0 {
			if r == inString && (i == 0 || content[i-1] != '\\') {
				inString = 0
			}
			continue
		}
		switch r {
		case '\'', '"', '`':
			inString = r
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return fmt.Sprintf("transpile check failed: unbalanced %q", string(r))
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) != 0 {
		return "transpile check failed: unclosed brace/bracket/paren"
	}
	return ""
}
