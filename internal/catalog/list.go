package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	gerr "github.com/withindevelopment-activate/within-the-app-sub000/internal/errors"
)

// ParseList decodes a list cell of the catalog exports. Both JSON
// (["A","B"]) and single-quoted (['A', 'B']) encodings are accepted; anything
// else is rejected with ErrMalformedList.
func ParseList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("%w: %q", gerr.ErrMalformedList, s)
	}

	var out []string
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return trimAll(out), nil
	}

	out, err := parseQuoted(s[1 : len(s)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", gerr.ErrMalformedList, s, err)
	}
	return trimAll(out), nil
}

func parseQuoted(body string) ([]string, error) {
	var (
		out []string
		rs  = []rune(body)
		i   = 0
	)
	skipSpace := func() {
		for i < len(rs) && (rs[i] == ' ' || rs[i] == '\t' || rs[i] == '\n' || rs[i] == '\r') {
			i++
		}
	}

	for {
		skipSpace()
		if i >= len(rs) {
			return out, nil
		}
		q := rs[i]
		if q != '\'' && q != '"' {
			return nil, fmt.Errorf("unquoted item at %d", i)
		}
		i++
		var b strings.Builder
		closed := false
		for i < len(rs) {
			r := rs[i]
			if r == '\\' && i+1 < len(rs) {
				b.WriteRune(rs[i+1])
				i += 2
				continue
			}
			i++
			if r == q {
				closed = true
				break
			}
			b.WriteRune(r)
		}
		if !closed {
			return nil, fmt.Errorf("unterminated item")
		}
		out = append(out, b.String())

		skipSpace()
		if i >= len(rs) {
			return out, nil
		}
		if rs[i] != ',' {
			return nil, fmt.Errorf("expected ',' at %d", i)
		}
		i++
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
