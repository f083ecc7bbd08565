package postgres

import "strings"

// serializeHstore renders a string map as a Postgres hstore literal,
// e.g. `"k1"=>"v1", "k2"=>"v2"`. Postgres accepts this literal directly
// as a bound ::hstore parameter.
func serializeHstore(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, quoteHstoreScalar(k)+"=>"+quoteHstoreScalar(v))
	}
	return strings.Join(parts, ", ")
}

func quoteHstoreScalar(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// parseHstore parses the text form Postgres returns for an hstore
// column (e.g. from casting `node_value::text`) back into a map.
// Handles quoted keys/values with escaped backslashes/quotes and the
// NULL value form `"k"=>NULL`.
func parseHstore(text string) map[string]string {
	out := map[string]string{}
	i, n := 0, len(text)
	for i < n {
		for i < n && (text[i] == ' ' || text[i] == ',') {
			i++
		}
		if i >= n {
			break
		}
		key, next := parseHstoreScalar(text, i)
		i = next
		for i < n && text[i] == ' ' {
			i++
		}
		if i+1 < n && text[i] == '=' && text[i+1] == '>' {
			i += 2
		}
		for i < n && text[i] == ' ' {
			i++
		}
		if strings.HasPrefix(text[i:], "NULL") {
			out[key] = ""
			i += 4
			continue
		}
		val, next2 := parseHstoreScalar(text, i)
		i = next2
		out[key] = val
	}
	return out
}

func parseHstoreScalar(text string, i int) (string, int) {
	n := len(text)
	if i >= n || text[i] != '"' {
		return "", i + 1
	}
	i++
	var b strings.Builder
	for i < n {
		c := text[i]
		if c == '\\' && i+1 < n {
			b.WriteByte(text[i+1])
			i += 2
			continue
		}
		if c == '"' {
			i++
			break
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), i
}
