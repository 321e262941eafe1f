package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/autolysis-cli/internal/dataset"
)

func parse(t *testing.T, content string) *dataset.Summary {
	t.Helper()
	s, err := dataset.Parse("data.csv", strings.NewReader(content), dataset.DefaultOptions())
	require.NoError(t, err)
	return s
}

func TestAnalysisPromptCarriesDatasetFacts(t *testing.T) {
	s := parse(t, "id,score,name\n1,2.5,O'Brien\n2,NA,Smith\n3,4,Lee\n4,5,Kim\n")
	msgs, err := Default().Analysis(s, "/work")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "You are an expert data scientist.", msgs[0].Content)

	user := msgs[1].Content
	assert.Contains(t, user, "- Dataset: data.csv")
	assert.Contains(t, user, "- Shape: (4, 3)")
	assert.Contains(t, user, "- Columns: {'id': 'int64', 'score': 'float64', 'name': 'object'}")
	assert.Contains(t, user, "- Missing values: {'id': 0, 'score': 1, 'name': 0}")
	assert.Contains(t, user, `{'id': 1, 'score': 2.5, 'name': "O'Brien"}`)
	assert.Contains(t, user, "{'id': 2, 'score': nan, 'name': 'Smith'}")
	assert.Contains(t, user, "{'id': 3, 'score': 4.0, 'name': 'Lee'}")
	assert.NotContains(t, user, "'Kim'", "only three example rows")
	assert.Contains(t, user, "- Save chart location: /work")
	assert.Contains(t, user, "512x512")
	assert.Contains(t, user, "R-squared")
	assert.Contains(t, user, "ISO-8859-1")
	assert.NotContains(t, user, "fallback will be needed")
	assert.NotContains(t, user, "{{")
}

func TestAnalysisPromptIsDeterministic(t *testing.T) {
	content := "b,a,c\n1,x,True\n2,y,False\n"
	m1, err := Default().Analysis(parse(t, content), "/w")
	require.NoError(t, err)
	m2, err := Default().Analysis(parse(t, content), "/w")
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
	assert.Contains(t, m1[1].Content, "{'b': 'int64', 'a': 'object', 'c': 'bool'}")
	assert.Contains(t, m1[1].Content, "{'b': 1, 'a': 'x', 'c': True}")
}

func TestAnalysisPromptNotesLatin1(t *testing.T) {
	s := parse(t, "a\n1\n")
	s.Encoding = dataset.EncodingLatin1
	msgs, err := Default().Analysis(s, "")
	require.NoError(t, err)
	assert.Contains(t, msgs[1].Content, "fallback will be needed")
}

func TestDatasetRefRelativeToWorkDir(t *testing.T) {
	root := t.TempDir()
	s := &dataset.Summary{Name: "x.csv", Path: filepath.Join(root, "in", "x.csv")}
	assert.Equal(t, filepath.Join("in", "x.csv"), datasetRef(s, root))

	other := t.TempDir()
	assert.Equal(t, s.Path, datasetRef(s, other))
}

func TestSummaryPrompt(t *testing.T) {
	msgs, err := Default().Summary("hello from snippet 1\nError executing code: ZeroDivisionError: division by zero")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	user := msgs[1].Content
	assert.True(t, strings.HasPrefix(user, "The following Python functions were executed"))
	assert.Contains(t, user, "Execution Results:\nhello from snippet 1\nError executing code: ZeroDivisionError")
	assert.True(t, strings.HasSuffix(user, "List limitations and suggest future analyses."))
}

func TestPromptDirOverride(t *testing.T) {
	dir := t.TempDir()
	override := "system = \"terse\"\nuser = \"Summarize: {{.Transcript}}\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, SummaryFile), []byte(override), 0o644))

	set, err := Load(dir)
	require.NoError(t, err)
	a, s := set.Sources()
	assert.Equal(t, "builtin:"+AnalysisFile, a)
	assert.Equal(t, filepath.Join(dir, SummaryFile), s)

	msgs, err := set.Summary("out")
	require.NoError(t, err)
	assert.Equal(t, "terse", msgs[0].Content)
	assert.Equal(t, "Summarize: out", msgs[1].Content)
}

func TestPromptDirRejectsBrokenTemplates(t *testing.T) {
	cases := map[string]string{
		"bad toml":      "user = ",
		"empty user":    "system = \"x\"\n",
		"bad template":  "user = \"{{.Transcript\"\n",
		"unknown field": "user = \"{{.Nope}}\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, SummaryFile), []byte(body), 0o644))
			set, err := Load(dir)
			if err == nil {
				_, err = set.Summary("x")
			}
			assert.Error(t, err)
		})
	}
}

func TestPyString(t *testing.T) {
	assert.Equal(t, "'plain'", pyString("plain"))
	assert.Equal(t, `"it's"`, pyString("it's"))
	assert.Equal(t, `'both \' and "'`, pyString(`both ' and "`))
	assert.Equal(t, `'a\nb'`, pyString("a\nb"))
	assert.Equal(t, `'c:\\x'`, pyString(`c:\x`))
}

func TestPyFloat(t *testing.T) {
	assert.Equal(t, "4.0", pyFloat(4))
	assert.Equal(t, "2.5", pyFloat(2.5))
	assert.Equal(t, "1e+21", pyFloat(1e21))
}
