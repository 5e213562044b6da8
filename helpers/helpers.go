package helpers

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// IntToString converts int64 to string.
func IntToString(i int64) string {
	return strconv.FormatInt(i, 10)
}

// ToJsonString converts any value to JSON string.
func ToJsonString(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Subject joins lowercase tokens with dots. Empty tokens become "_" and
// characters NATS treats as separators or wildcards are replaced.
func Subject(tokens ...string) string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			out[i] = "_"
			continue
		}
		out[i] = subjectReplacer.Replace(t)
	}
	return strings.Join(out, ".")
}

var subjectReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")
