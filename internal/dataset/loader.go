package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encodings reported in Summary.Encoding.
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)

var (
	// ErrUnsupportedEncoding is returned for content that is neither UTF-8 nor
	// plausibly Latin-1 (UTF-16/32 byte-order marks, NUL bytes).
	ErrUnsupportedEncoding = errors.New("unsupported text encoding")
	// ErrNoColumns is returned when the file has no header row.
	ErrNoColumns = errors.New("no columns to parse from file")
)

// Options controls how a CSV is loaded and digested.
type Options struct {
	// SampleRows determines how many leading rows are kept as examples.
	SampleRows int
	// Delimiter for CSV. If 0, '\t' for .tsv files and ',' otherwise.
	Delimiter rune
	// OutlierThreshold is the robust |z| (MAD) cut-off; 0 means 3.5.
	OutlierThreshold float64
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
}

// DefaultOptions mirrors what a plain dataframe load followed by head(3) gives.
func DefaultOptions() Options {
	return Options{
		SampleRows:       3,
		OutlierThreshold: 3.5,
		Correlations:     true,
	}
}

// Load reads path, decoding it as UTF-8 and falling back to Latin-1, and
// returns its digest.
func Load(path string, opt Options) (*Summary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	text, enc, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	s, err := Parse(filepath.Base(path), strings.NewReader(text), opt)
	if err != nil {
		return nil, err
	}
	s.Path = path
	s.Encoding = enc
	return s, nil
}

// Decode returns the text of raw and the encoding that was used.
func Decode(raw []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		raw = raw[3:]
	case bytes.HasPrefix(raw, []byte{0x00, 0x00, 0xFE, 0xFF}),
		bytes.HasPrefix(raw, []byte{0xFF, 0xFE}),
		bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		return "", "", fmt.Errorf("%w: UTF-16/UTF-32 byte-order mark", ErrUnsupportedEncoding)
	}
	if bytes.IndexByte(raw, 0x00) >= 0 {
		return "", "", fmt.Errorf("%w: NUL bytes in content", ErrUnsupportedEncoding)
	}
	if utf8.Valid(raw) {
		return string(raw), EncodingUTF8, nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnsupportedEncoding, err)
	}
	return string(out), EncodingLatin1, nil
}

// Parse digests already-decoded CSV text.
func Parse(name string, src io.Reader, opt Options) (*Summary, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	// a bare quote inside an unquoted field is kept as text
	r.LazyQuotes = true
	if opt.Delimiter != 0 {
		r.Comma = opt.Delimiter
	}

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", name, ErrNoColumns)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	names := columnNames(header)
	ncol := len(names)
	cols := make([]*colAcc, ncol)
	for i := range cols {
		cols[i] = &colAcc{name: names[i]}
	}

	sampleRows := opt.SampleRows
	if sampleRows < 0 {
		sampleRows = 0
	}
	s := &Summary{Name: name}
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", s.Rows+1, err)
		}
		if len(rec) > ncol {
			return nil, fmt.Errorf("read row %d: expected %d fields, saw %d", s.Rows+1, ncol, len(rec))
		}
		s.Rows++
		if len(s.Sample) < sampleRows {
			row := make([]string, ncol)
			copy(row, rec)
			s.Sample = append(s.Sample, row)
		}
		for j, c := range cols {
			v := ""
			if j < len(rec) {
				v = rec[j]
			}
			c.add(v)
		}
	}

	s.Columns = make([]Column, ncol)
	for j, c := range cols {
		s.Columns[j] = c.summarize(opt)
	}
	if opt.Correlations {
		s.Corr = correlations(s.Columns, cols)
	}
	return s, nil
}

// columnNames applies the usual dataframe conventions: blank headers become
// "Unnamed: i" and duplicates get ".1", ".2", ... suffixes.
func columnNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			base := name
			for {
				n++
				cand := fmt.Sprintf("%s.%d", base, n)
				if _, taken := seen[cand]; !taken {
					seen[base] = n
					name = cand
					break
				}
			}
		}
		seen[name] = 0
		out[i] = name
	}
	return out
}

// naTokens are the cell values treated as missing, as in pandas' defaults.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissing reports whether a raw cell counts as a missing value. Spellings
// of NaN outside naTokens (NAN, Nan) still parse to a NaN float, so they are
// missing too.
func IsMissing(v string) bool {
	t := strings.TrimSpace(v)
	if _, ok := naTokens[t]; ok {
		return true
	}
	f, err := strconv.ParseFloat(t, 64)
	return err == nil && math.IsNaN(f)
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
