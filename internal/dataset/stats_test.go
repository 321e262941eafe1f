package dataset

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func numericCSV(rows int) string {
	var b strings.Builder
	b.WriteString("a,b,c\n")
	for i := 1; i <= rows; i++ {
		fmt.Fprintf(&b, "%d,%d.5,%d\n", i, i*2, i*i)
	}
	return b.String()
}

func TestLoadNumericShape(t *testing.T) {
	p := writeFile(t, "nums.csv", []byte(numericCSV(10)))
	s, err := Load(p, DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Rows != 10 || len(s.Columns) != 3 {
		t.Fatalf("shape = %d x %d", s.Rows, len(s.Columns))
	}
	if s.Shape() != "(10, 3)" {
		t.Fatalf("Shape() = %q", s.Shape())
	}
	if s.Encoding != EncodingUTF8 {
		t.Fatalf("encoding = %q", s.Encoding)
	}
	wantTypes := []string{DTypeInt64, DTypeFloat64, DTypeInt64}
	for i, c := range s.Columns {
		if c.Missing != 0 {
			t.Errorf("%s: missing = %d", c.Name, c.Missing)
		}
		if c.DType != wantTypes[i] {
			t.Errorf("%s: dtype = %s, want %s", c.Name, c.DType, wantTypes[i])
		}
	}
	if len(s.Sample) != 3 {
		t.Fatalf("expected 3 sample rows, got %d", len(s.Sample))
	}
	if s.Sample[0][0] != "1" {
		t.Fatalf("sample not in file order: %v", s.Sample[0])
	}
}

func TestLoadFallsBackToLatin1(t *testing.T) {
	content := []byte("city,temp\nCaf\xe9 Town,21\nS\xe3o Paulo,27\n")
	p := writeFile(t, "latin.csv", content)
	s, err := Load(p, DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Encoding != EncodingLatin1 {
		t.Fatalf("encoding = %q", s.Encoding)
	}
	if s.Rows != 2 || len(s.Columns) != 2 {
		t.Fatalf("shape = %s", s.Shape())
	}
	if s.Sample[0][0] != "Café Town" {
		t.Fatalf("latin-1 not decoded: %q", s.Sample[0][0])
	}
}

func TestLoadStripsUTF8BOM(t *testing.T) {
	p := writeFile(t, "bom.csv", append([]byte{0xEF, 0xBB, 0xBF}, []byte("id,name\n1,x\n")...))
	s, err := Load(p, DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Columns[0].Name != "id" {
		t.Fatalf("BOM leaked into header: %q", s.Columns[0].Name)
	}
}

func TestDecodeRejectsOtherEncodings(t *testing.T) {
	cases := map[string][]byte{
		"utf16le": {0xFF, 0xFE, 'a', 0x00, ',', 0x00},
		"utf16be": {0xFE, 0xFF, 0x00, 'a'},
		"nul":     []byte("a,b\n1,\x002\n"),
	}
	for name, raw := range cases {
		_, _, err := Decode(raw)
		if !errors.Is(err, ErrUnsupportedEncoding) {
			t.Errorf("%s: expected ErrUnsupportedEncoding, got %v", name, err)
		}
	}
}

func TestMissingValuesAndDtypes(t *testing.T) {
	content := "id,score,label,flag,empty\n" +
		"1,10,a,True,\n" +
		"2,NA,b,False,\n" +
		"3,7,,True,NaN\n" +
		"4,n/a,a,False,\n"
	s, err := Parse("m.csv", strings.NewReader(content), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := map[string]Column{}
	for _, c := range s.Columns {
		got[c.Name] = c
	}
	check := func(name, dtype string, missing int) {
		t.Helper()
		c := got[name]
		if c.DType != dtype || c.Missing != missing {
			t.Errorf("%s: dtype=%s missing=%d, want %s/%d", name, c.DType, c.Missing, dtype, missing)
		}
	}
	check("id", DTypeInt64, 0)
	check("score", DTypeFloat64, 2)
	check("label", DTypeObject, 1)
	check("flag", DTypeBool, 0)
	check("empty", DTypeFloat64, 4)

	if l := got["label"]; l.Top != "a" || l.Freq != 2 || l.Unique != 2 {
		t.Errorf("label stats: %+v", l)
	}
	if sc := got["score"]; sc.Mean != 8.5 || sc.Count != 2 {
		t.Errorf("score stats: %+v", sc)
	}
}

func TestShortRowsArePadded(t *testing.T) {
	s, err := Parse("short.csv", strings.NewReader("a,b,c\n1,2\n3,4,5\n"), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Rows != 2 {
		t.Fatalf("rows = %d", s.Rows)
	}
	if s.Columns[2].Missing != 1 {
		t.Fatalf("padded cell not counted as missing: %+v", s.Columns[2])
	}
}

func TestMalformedInputFails(t *testing.T) {
	cases := map[string]string{
		"extra fields":      "a,b\n1,2,3\n",
		"extra after quote": "a,b\n\"x\",2,3\n",
	}
	for name, content := range cases {
		if _, err := Parse(name, strings.NewReader(content), DefaultOptions()); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := Parse("empty.csv", strings.NewReader(""), DefaultOptions()); !errors.Is(err, ErrNoColumns) {
		t.Errorf("empty: expected ErrNoColumns, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.csv"), DefaultOptions()); err == nil {
		t.Error("missing file: expected error")
	}
}

func TestBareQuoteInUnquotedField(t *testing.T) {
	s, err := Parse("items.csv", strings.NewReader("item,size\nTV,55\" screen\nPhone,6\n"), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Rows != 2 || len(s.Columns) != 2 {
		t.Fatalf("shape = %s", s.Shape())
	}
	if s.Sample[0][1] != `55" screen` {
		t.Fatalf("bare quote not kept: %q", s.Sample[0][1])
	}
	if s.Columns[1].DType != DTypeObject {
		t.Fatalf("size dtype = %s", s.Columns[1].DType)
	}
}

func TestNaNSpellingsCountAsMissing(t *testing.T) {
	s, err := Parse("nan.csv", strings.NewReader("a,b\nNAN,1\nNan,2\n"), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	a := s.Columns[0]
	if a.Missing != 2 || a.Count != 0 || a.DType != DTypeFloat64 {
		t.Fatalf("column a = %+v", a)
	}
	mixed, err := Parse("mixed.csv", strings.NewReader("a\nNAN\n1.5\n2.5\n"), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c := mixed.Columns[0]
	if c.Missing != 1 || c.Count != 2 || c.Min != 1.5 || c.Max != 2.5 {
		t.Fatalf("column a = %+v", c)
	}
	_ = s.Markdown()
}

func TestColumnNamesMangleDuplicates(t *testing.T) {
	got := columnNames([]string{"a", "a", "", "a", "a.1"})
	want := []string{"a", "a.1", "Unnamed: 2", "a.2", "a.1.1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("columnNames = %v, want %v", got, want)
		}
	}
}

func TestOutliersAndQuartiles(t *testing.T) {
	vals := []string{"10", "11", "9.5", "10.5", "9.8", "10.2", "8.8", "9.7", "50"}
	content := "score\n" + strings.Join(vals, "\n") + "\n"
	s, err := Parse("o.csv", strings.NewReader(content), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c := s.Columns[0]
	if c.OutliersCount != 1 {
		t.Fatalf("outliers = %d", c.OutliersCount)
	}
	if c.Median != 10 || c.Min != 8.8 || c.Max != 50 {
		t.Fatalf("order stats: %+v", c)
	}

	q, _ := Parse("q.csv", strings.NewReader("x\n1\n2\n3\n4\n"), DefaultOptions())
	x := q.Columns[0]
	if x.Q1 != 1.75 || x.Median != 2.5 || x.Q3 != 3.25 {
		t.Fatalf("quartiles = %v %v %v", x.Q1, x.Median, x.Q3)
	}
	if x.OutlierThreshold != 0 {
		t.Fatalf("outliers should need at least 8 values")
	}
}

func TestCorrelations(t *testing.T) {
	content := "x,y,z,label\n1,2,5,a\n2,4,3,b\n3,6,4,c\n4,8,1,d\n"
	s, err := Parse("c.csv", strings.NewReader(content), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Corr == nil || len(s.Corr.Columns) != 3 {
		t.Fatalf("expected 3 numeric columns in matrix: %+v", s.Corr)
	}
	pairs := s.Corr.TopPairs(1)
	if len(pairs) != 1 || pairs[0].A != "x" || pairs[0].B != "y" || math.Abs(pairs[0].R-1) > 1e-9 {
		t.Fatalf("top pair = %+v", pairs)
	}

	opt := DefaultOptions()
	opt.Correlations = false
	s2, _ := Parse("c.csv", strings.NewReader(content), opt)
	if s2.Corr != nil {
		t.Fatal("correlations computed while disabled")
	}
}

func TestMarkdownDigest(t *testing.T) {
	s, err := Parse("nums.csv", strings.NewReader(numericCSV(10)), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	md := s.Markdown()
	for _, want := range []string{"[DATASET SUMMARY]", "File: nums.csv", "Shape: (10, 3)", "- a: int64 (non-null 10, missing 0.0%)", "[CORRELATIONS]", "[HEAD AND SAMPLE ROWS]"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestMarkdownTruncatesOnRunes(t *testing.T) {
	long := strings.Repeat("é", 100)
	s, err := Parse("wide.csv", strings.NewReader("a\n"+long+"\n"), DefaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	md := s.Markdown()
	if !utf8.ValidString(md) {
		t.Fatal("digest is not valid UTF-8")
	}
	if !strings.Contains(md, strings.Repeat("é", 77)+"...") {
		t.Fatalf("long cell not truncated to 77 runes:\n%s", md)
	}
}

func TestTSVDelimiterSniffed(t *testing.T) {
	p := writeFile(t, "data.tsv", []byte("a\tb\n1\t2\n"))
	s, err := Load(p, DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Columns) != 2 {
		t.Fatalf("expected tab split, got %d columns", len(s.Columns))
	}
}
