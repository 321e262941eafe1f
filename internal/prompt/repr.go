package prompt

import (
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/autolysis-cli/internal/dataset"
)

// The model reads dataset facts as Python literals, the same way a dataframe
// summary prints them.

func dtypeDict(cols []dataset.Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = pyString(c.Name) + ": " + pyString(c.DType)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func missingDict(cols []dataset.Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = pyString(c.Name) + ": " + strconv.Itoa(c.Missing)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func exampleRecords(sum *dataset.Summary) string {
	rows := make([]string, len(sum.Sample))
	for i, row := range sum.Sample {
		parts := make([]string, len(sum.Columns))
		for j, c := range sum.Columns {
			v := ""
			if j < len(row) {
				v = row[j]
			}
			parts[j] = pyString(c.Name) + ": " + pyValue(c.DType, v)
		}
		rows[i] = "{" + strings.Join(parts, ", ") + "}"
	}
	return "[" + strings.Join(rows, ", ") + "]"
}

// pyValue renders a raw cell as the literal its column dtype would produce.
func pyValue(dtype, raw string) string {
	if dataset.IsMissing(raw) {
		return "nan"
	}
	t := strings.TrimSpace(raw)
	switch dtype {
	case dataset.DTypeInt64:
		if _, err := strconv.ParseInt(t, 10, 64); err == nil {
			return t
		}
	case dataset.DTypeFloat64:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return pyFloat(f)
		}
	case dataset.DTypeBool:
		switch strings.ToLower(t) {
		case "true":
			return "True"
		case "false":
			return "False"
		}
	}
	return pyString(raw)
}

func pyFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// pyString quotes s like Python's repr: single quotes unless the text holds a
// single quote and no double quote.
func pyString(s string) string {
	q := byte('\'')
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(q):
			b.WriteByte('\\')
			b.WriteByte(q)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}
