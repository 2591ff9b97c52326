package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrMissingVariables is returned by Substitute when the provided values do
// not cover every placeholder in the template. No partial fill happens.
var ErrMissingVariables = errors.New("missing template variables")

// varPattern matches [[name]] placeholders. Whitespace inside the brackets is
// tolerated, so [[ topic ]] and [[topic]] name the same variable.
var varPattern = regexp.MustCompile(`\[\[\s*(\w+)\s*\]\]`)

// ExtractVariables returns the unique placeholder names in text, sorted.
func ExtractVariables(text string) []string {
	matches := varPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	var names []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

// HasVariables reports whether text contains any placeholders.
func HasVariables(text string) bool {
	return varPattern.MatchString(text)
}

// Substitute replaces every placeholder in text with its value. Every
// placeholder must have a value; otherwise ErrMissingVariables is returned
// with the missing names and the text is left untouched. A value that itself
// contains a placeholder is rejected so the result is always fully resolved.
func Substitute(text string, values map[string]string) (string, error) {
	var missing []string
	for _, name := range ExtractVariables(text) {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingVariables, strings.Join(missing, ", "))
	}

	result := varPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		return values[name]
	})

	if leftover := ExtractVariables(result); len(leftover) > 0 {
		return "", fmt.Errorf("substitution left unresolved placeholders: %s", strings.Join(leftover, ", "))
	}
	return result, nil
}

// HashText returns the hex SHA-256 of the template text. Used to detect
// whether a prompt changed between exports.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
