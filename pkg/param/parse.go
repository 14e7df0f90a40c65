package param

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/pingcap/errors"
)

var (
	keyValueRe = regexp.MustCompile(`^(@?\w+)\s*=\s*(.+)$`)
	intRe      = regexp.MustCompile(`^-?\d+$`)
	decimalRe  = regexp.MustCompile(`^-?\d+\.\d+$`)
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	datetimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}$`)

	execPrefixRe = regexp.MustCompile(`(?i)^(?:EXEC|EXECUTE|CALL)\s+[\w.\x60\[\]]+\s*`)
)

// Parse converts a parameter text in one of the supported input formats into
// a structured Set:
//
//   - key=value list:  @p1=100, @p2='abc', @p3=NULL
//   - statement form:  EXEC proc @p1=100  /  CALL proc(100, 'abc')
//   - JSON array:      [{"name":"@p1","value":100,"data_type":"int"}]
//
// A CALL argument list without names yields a positional Set.
func Parse(input string) (Set, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	if strings.HasPrefix(input, "[") && strings.HasSuffix(input, "]") {
		var set Set
		if err := json.Unmarshal([]byte(input), &set); err != nil {
			return nil, errors.Annotate(err, "invalid JSON parameter list")
		}
		return set, nil
	}

	if loc := execPrefixRe.FindStringIndex(input); loc != nil {
		input = input[loc[1]:]
		// CALL proc(...) keeps the argument list inside parentheses.
		if strings.HasPrefix(input, "(") && strings.HasSuffix(input, ")") {
			input = input[1 : len(input)-1]
		}
	}

	set := make(Set, 0, 4)
	for _, part := range splitArgs(input) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name := ""
		valueText := part
		if m := keyValueRe.FindStringSubmatch(part); m != nil {
			name = m[1]
			if !strings.HasPrefix(name, "@") {
				name = "@" + name
			}
			valueText = m[2]
		}

		value, err := inferValue(strings.TrimSpace(valueText))
		if err != nil {
			return nil, errors.Trace(err)
		}
		set = append(set, Param{Name: name, Value: value})
	}

	named := 0
	for _, p := range set {
		if p.Name != "" {
			named++
		}
	}
	if named != 0 && named != len(set) {
		return nil, errors.Errorf("mixed named and positional parameters in %q", input)
	}
	return set, nil
}

// splitArgs splits a comma separated argument list, ignoring commas inside
// quoted literals.
func splitArgs(s string) []string {
	parts := make([]string, 0, 4)
	var (
		current   strings.Builder
		inQuotes  bool
		quoteChar rune
	)
	for i, r := range s {
		if (r == '\'' || r == '"') && (i == 0 || s[i-1] != '\\') {
			if !inQuotes {
				inQuotes = true
				quoteChar = r
			} else if r == quoteChar {
				inQuotes = false
			}
		}
		if r == ',' && !inQuotes {
			parts = append(parts, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// inferValue maps a SQL literal to a tagged Value.
func inferValue(s string) (Value, error) {
	if strings.EqualFold(s, "NULL") {
		return Null(), nil
	}

	if strings.HasPrefix(s, "N'") && strings.HasSuffix(s, "'") && len(s) >= 3 {
		return String(unescapeQuoted(s[2 : len(s)-1])), nil
	}
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return String(unescapeQuoted(s[1 : len(s)-1])), nil
		}
	}

	switch {
	case datetimeRe.MatchString(s), dateRe.MatchString(s):
		t, err := parseTimeLiteral(s)
		if err != nil {
			return Value{}, errors.Trace(err)
		}
		return Time(t), nil
	case intRe.MatchString(s):
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, errors.Annotatef(err, "integer literal %q", s)
		}
		return Int(i), nil
	case decimalRe.MatchString(s):
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, errors.Annotatef(err, "decimal literal %q", s)
		}
		return Decimal(f), nil
	case strings.EqualFold(s, "TRUE"):
		return Bool(true), nil
	case strings.EqualFold(s, "FALSE"):
		return Bool(false), nil
	}
	return String(s), nil
}

func unescapeQuoted(s string) string {
	s = strings.ReplaceAll(s, "''", "'")
	return strings.ReplaceAll(s, `\'`, "'")
}
