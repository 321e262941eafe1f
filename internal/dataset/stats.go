package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Column dtypes, named the way dataframe libraries report them.
const (
	DTypeInt64   = "int64"
	DTypeFloat64 = "float64"
	DTypeBool    = "bool"
	DTypeObject  = "object"
)

// Summary is the digest of a loaded CSV. It is built once per run and treated
// as read-only afterwards.
type Summary struct {
	// Path is the file as given to Load; Name is its base name.
	Path     string
	Name     string
	Encoding string
	Rows     int
	Columns  []Column
	// Sample holds the first rows as read, aligned with Columns. Short rows
	// are padded with "".
	Sample [][]string
	Corr   *CorrMatrix
}

// Column captures the inferred dtype and statistics of one column.
type Column struct {
	Name    string
	DType   string
	Count   int // non-missing values
	Missing int
	// Numeric stats
	Mean, Std                float64
	Min, Q1, Median, Q3, Max float64
	OutliersCount            int
	OutliersMaxAbsZ          float64
	OutlierThreshold         float64
	// Object/bool stats
	Unique int
	Top    string
	Freq   int
}

// IsNumeric reports whether the column holds numbers.
func (c Column) IsNumeric() bool { return c.DType == DTypeInt64 || c.DType == DTypeFloat64 }

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
// Pairs without enough overlapping values are NaN.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
}

// Shape renders (rows, columns).
func (s *Summary) Shape() string { return fmt.Sprintf("(%d, %d)", s.Rows, len(s.Columns)) }

// TopPairs lists up to n off-diagonal pairs ordered by |r|, skipping NaN.
func (m *CorrMatrix) TopPairs(n int) []PairCorr {
	if m == nil {
		return nil
	}
	var pairs []PairCorr
	for i := range m.Columns {
		for j := i + 1; j < len(m.Columns); j++ {
			r := m.Values[i][j]
			if math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: r})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if n > 0 && len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs
}

// colAcc accumulates one column, row-aligned.
type colAcc struct {
	name    string
	cells   []string
	nums    []float64 // NaN where missing or non-numeric
	missing int
	nonNum  int
	nonInt  int
	nonBool int
}

func (c *colAcc) add(v string) {
	if IsMissing(v) {
		c.missing++
		c.cells = append(c.cells, "")
		c.nums = append(c.nums, math.NaN())
		return
	}
	c.cells = append(c.cells, v)
	t := strings.TrimSpace(v)
	x, isInt, ok := parseNumber(t)
	if !ok {
		c.nonNum++
		c.nonInt++
		x = math.NaN()
	} else if !isInt {
		c.nonInt++
	}
	c.nums = append(c.nums, x)
	if _, ok := parseBool(t); !ok {
		c.nonBool++
	}
}

func (c *colAcc) summarize(opt Options) Column {
	count := len(c.cells) - c.missing
	s := Column{Name: c.name, Count: count, Missing: c.missing}
	switch {
	case count == 0:
		// all-missing columns load as floats full of NaN
		s.DType = DTypeFloat64
	case c.nonNum == 0:
		s.DType = DTypeFloat64
		if c.nonInt == 0 && c.missing == 0 {
			s.DType = DTypeInt64
		}
		c.numericStats(&s, opt)
	case c.nonBool == 0 && c.missing == 0:
		s.DType = DTypeBool
		c.objectStats(&s)
	default:
		s.DType = DTypeObject
		c.objectStats(&s)
	}
	return s
}

func (c *colAcc) numericStats(s *Column, opt Options) {
	vals := make([]float64, 0, len(c.nums))
	var n int
	var mean, m2 float64
	for _, x := range c.nums {
		if math.IsNaN(x) {
			continue
		}
		vals = append(vals, x)
		// Welford update
		n++
		delta := x - mean
		mean += delta / float64(n)
		m2 += delta * (x - mean)
	}
	s.Mean = mean
	if n > 1 {
		s.Std = math.Sqrt(m2 / float64(n-1))
	} else {
		s.Std = math.NaN()
	}
	if len(vals) == 0 {
		return
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Q1 = quantile(sorted, 0.25)
	s.Median = quantile(sorted, 0.5)
	s.Q3 = quantile(sorted, 0.75)

	thr := opt.OutlierThreshold
	if thr <= 0 {
		thr = 3.5
	}
	if len(vals) < 8 {
		return
	}
	median, mad := medianMAD(vals)
	s.OutlierThreshold = thr
	if mad == 0 {
		return
	}
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			s.OutliersCount++
		}
		if az > s.OutliersMaxAbsZ {
			s.OutliersMaxAbsZ = az
		}
	}
}

func (c *colAcc) objectStats(s *Column) {
	counts := map[string]int{}
	var order []string
	for _, v := range c.cells {
		if v == "" {
			continue
		}
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	s.Unique = len(counts)
	for _, v := range order {
		if counts[v] > s.Freq {
			s.Top, s.Freq = v, counts[v]
		}
	}
}

func parseNumber(s string) (x float64, isInt bool, ok bool) {
	if s == "" {
		return 0, false, false
	}
	if l := strings.ToLower(s); strings.Contains(l, "0x") || strings.Contains(s, "_") {
		return 0, false, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return float64(i), true, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, false
	}
	return f, false, true
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "True", "TRUE", "true":
		return true, true
	case "False", "FALSE", "false":
		return false, true
	}
	return false, false
}

// correlations computes pairwise-complete Pearson coefficients.
func correlations(cols []Column, accs []*colAcc) *CorrMatrix {
	var idx []int
	for i, c := range cols {
		if c.IsNumeric() {
			idx = append(idx, i)
		}
	}
	if len(idx) < 2 {
		return nil
	}
	m := &CorrMatrix{Columns: make([]string, len(idx)), Values: make([][]float64, len(idx))}
	for a, i := range idx {
		m.Columns[a] = cols[i].Name
		m.Values[a] = make([]float64, len(idx))
	}
	for a := range idx {
		m.Values[a][a] = 1
		for b := a + 1; b < len(idx); b++ {
			r := pearson(accs[idx[a]].nums, accs[idx[b]].nums)
			m.Values[a][b] = r
			m.Values[b][a] = r
		}
	}
	return m
}

func pearson(xs, ys []float64) float64 {
	var n, sumX, sumY, sumXX, sumYY, sumXY float64
	for i := range xs {
		x, y := xs[i], ys[i]
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		n++
		sumX += x
		sumY += y
		sumXX += x * x
		sumYY += y * y
		sumXY += x * y
	}
	if n < 2 {
		return math.NaN()
	}
	denom := math.Sqrt((n*sumXX - sumX*sumX) * (n*sumYY - sumY*sumY))
	if denom == 0 || math.IsNaN(denom) {
		return math.NaN()
	}
	r := (n*sumXY - sumX*sumY) / denom
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r
}

// Markdown renders a compact digest for terminals and prompts.
func (s *Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if s.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", s.Name))
	}
	if s.Encoding != "" {
		b.WriteString(fmt.Sprintf("Encoding: %s\n", s.Encoding))
	}
	b.WriteString(fmt.Sprintf("Shape: %s\n\n", s.Shape()))

	b.WriteString("[SCHEMA]\n")
	for _, c := range s.Columns {
		total := c.Count + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.DType, c.Count, missPct))
		switch {
		case c.IsNumeric() && c.Count > 0:
			b.WriteString(fmt.Sprintf(": min %.4g, median %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Median, c.Max, c.Mean, c.Std))
			if c.OutlierThreshold > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
				if c.OutliersMaxAbsZ > 0 {
					b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ))
				}
			}
		case c.Unique > 0:
			b.WriteString(fmt.Sprintf("; top: %s(%d); unique=%d", safeVal(c.Top), c.Freq, c.Unique))
		}
		b.WriteString("\n")
	}
	if pairs := s.Corr.TopPairs(10); len(pairs) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, p := range pairs {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
		}
	}
	if len(s.Sample) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString("| ")
		for i, c := range s.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n|")
		for range s.Columns {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range s.Sample {
			b.WriteString("| ")
			for i := range s.Columns {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if r := []rune(val); len(r) > 80 {
					val = string(r[:77]) + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

// quantile interpolates linearly between closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
