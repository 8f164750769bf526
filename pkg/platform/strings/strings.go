// Package strings parses list-valued query parameters.
package strings

import (
	"slices"
	"strings"
)

// SplitList flattens repeated and comma-separated query values into lowercase tokens.
// Blank tokens are dropped and duplicates keep their first position, so
// ?status=Pending,inprogress&status=done,pending yields [pending inprogress done].
func SplitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, token := range strings.Split(v, ",") {
			token = strings.ToLower(strings.TrimSpace(token))
			if token != "" && !slices.Contains(out, token) {
				out = append(out, token)
			}
		}
	}
	return out
}
