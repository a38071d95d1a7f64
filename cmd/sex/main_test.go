package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"execsim/internal/emit"
	"execsim/internal/storage"
	"execsim/pkg/quant"
)

// isolate keeps config discovery away from the developer's files.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdirT(t, dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, "SEX_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	return dir
}

func writeQuotes(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "quotes.tsv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func requireQty(t *testing.T, want, got string) {
	t.Helper()
	g, err := quant.ParseDecimal(got)
	require.NoError(t, err)
	require.True(t, quant.MustDecimal(want).Equal(g), "want %s, got %s", want, got)
}

func invoke(args []string, stdin string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_Scenario(t *testing.T) {
	dir := isolate(t)
	quotes := writeQuotes(t, dir, "100.000000000\tXYZ\tA1\t10.00\t5")

	code, out, stderr := invoke([]string{quotes}, "99.000000000\tB\tXYZ\t3\n")
	require.Equal(t, 0, code, stderr)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	exe := strings.Split(lines[0], "\t")
	require.Equal(t, []string{"100.000000000", "XYZ", "EXE"}, exe[:3])
	acc := strings.Split(lines[1], "\t")
	require.Equal(t, []string{"100.000000000", "XYZ", "ACC"}, acc[:3])
}

func TestRun_PairFilter(t *testing.T) {
	dir := isolate(t)
	quotes := writeQuotes(t, dir,
		"100.000000000\tXYZ\tA1\t10.00\t5",
		"100.000000000\tABC\tA1\t20.00\t5",
	)

	code, out, stderr := invoke([]string{"-p", "ABC", quotes}, "99\tB\tXYZ\t1\n99\tB\tABC\t1\n")
	require.Equal(t, 0, code, stderr)
	require.NotContains(t, out, "XYZ")
	require.Contains(t, out, "ABC\tEXE")
}

func TestRun_DefaultQuantityFlag(t *testing.T) {
	dir := isolate(t)
	quotes := writeQuotes(t, dir, "100\tXYZ\tA1\t10\t5")

	code, out, stderr := invoke([]string{"--qty", "2", quotes}, "99\tB\tXYZ\n")
	require.Equal(t, 0, code, stderr)
	exe := strings.Split(strings.SplitN(out, "\n", 2)[0], "\t")
	require.Equal(t, "EXE", exe[2])
	requireQty(t, "2", exe[3])
}

func TestRun_MissingQuotes(t *testing.T) {
	isolate(t)
	code, out, stderr := invoke(nil, "")
	require.Equal(t, 1, code)
	require.Empty(t, out)
	require.Contains(t, stderr, "Error: QUOTES file is mandatory.")
}

func TestRun_UnreadableQuotes(t *testing.T) {
	dir := isolate(t)
	code, _, stderr := invoke([]string{filepath.Join(dir, "nope.tsv")}, "")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "cannot open QUOTES file")
}

func TestRun_BadOptions(t *testing.T) {
	dir := isolate(t)
	quotes := writeQuotes(t, dir, "100\tXYZ\tA1\t10\t5")

	for _, args := range [][]string{
		{"-d", "5x", quotes},
		{"-d", "-1", quotes},
		{"-q", "0", quotes},
		{"-c", "abc", quotes},
		{"--queue-size", "0", quotes},
		{"--no-such-flag", quotes},
	} {
		code, out, _ := invoke(args, "")
		require.Equal(t, 1, code, "args %v", args)
		require.Empty(t, out, "args %v", args)
	}
}

func TestRun_Help(t *testing.T) {
	isolate(t)
	code, _, stderr := invoke([]string{"--help"}, "")
	require.Equal(t, 0, code)
	require.Contains(t, stderr, "Usage: sex")
}

func TestRun_ConfigFileAndFlagPrecedence(t *testing.T) {
	dir := isolate(t)
	quotes := writeQuotes(t, dir, "100\tXYZ\tA1\t10\t5")
	cfg := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("quantity: \"4\"\n"), 0644))

	code, out, stderr := invoke([]string{"--config", cfg, quotes}, "99\tB\tXYZ\n")
	require.Equal(t, 0, code, stderr)
	requireQty(t, "4", strings.Split(out, "\t")[3])

	code, out, stderr = invoke([]string{"--config", cfg, "-q", "1", quotes}, "99\tB\tXYZ\n")
	require.Equal(t, 0, code, stderr)
	requireQty(t, "1", strings.Split(out, "\t")[3])
}

func TestRun_Journal(t *testing.T) {
	dir := isolate(t)
	quotes := writeQuotes(t, dir, "100\tXYZ\tA1\t10\t5")
	db := filepath.Join(dir, "runs", "journal.db")

	code, out, stderr := invoke([]string{"--journal", db, quotes}, "99\tB\tXYZ\t3\n")
	require.Equal(t, 0, code, stderr)

	j, err := storage.NewJournal(db, "reader")
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	id, err := j.LatestRun(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	recs, err := j.LoadRecords(ctx, id)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, emit.KindExecution, recs[0].Kind)
	require.Equal(t, emit.KindAccount, recs[1].Kind)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	for i, r := range recs {
		require.Equal(t, lines[i], r.Line)
	}
}

func TestRun_VerboseBanner(t *testing.T) {
	dir := isolate(t)
	quotes := writeQuotes(t, dir, "100\tXYZ\tA1\t10\t5")

	code, _, stderr := invoke([]string{"-v", quotes}, "")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stderr, "offline execution simulator")
	require.Contains(t, stderr, "level=DEBUG")
}

// chdirT mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores it when the test finishes.
func chdirT(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			panic("chdirT: restoring working directory: " + err.Error())
		}
	})
}
