// Package config handles jac.yaml loading. Values act as defaults for
// the global CLI flags.
package config

import (
	"os"
	"regexp"
	"strings"
)

// envRef matches $${...} (escaped), ${VAR} and ${VAR:-default}.
var envRef = regexp.MustCompile(`\$?\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in a config file.
//
//	${VAR}            value of VAR, or "" when unset
//	${VAR:-default}   value of VAR, or default when unset or empty
//	$${VAR}           the literal text ${VAR}
//
// An unset variable is not an error here; an empty port or socket fails
// later when the session opens.
func ExpandEnv(input string) string {
	var b strings.Builder
	last := 0
	for _, m := range envRef.FindAllStringSubmatchIndex(input, -1) {
		b.WriteString(input[last:m[0]])
		last = m[1]

		ref := input[m[0]:m[1]]
		if strings.HasPrefix(ref, "$$") {
			b.WriteString(ref[1:])
			continue
		}

		name := input[m[2]:m[3]]
		if value, ok := os.LookupEnv(name); ok && value != "" {
			b.WriteString(value)
		} else if m[4] >= 0 {
			b.WriteString(input[m[4]:m[5]])
		}
	}
	b.WriteString(input[last:])
	return b.String()
}
