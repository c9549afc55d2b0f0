package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alexflint/gblog/config"
	"github.com/alexflint/gblog/publish"
	"github.com/alexflint/go-arg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseArgs(t *testing.T, cmdline ...string) *args {
	t.Helper()
	var a args
	p, err := arg.NewParser(arg.Config{}, &a)
	require.NoError(t, err)
	require.NoError(t, p.Parse(cmdline))
	return &a
}

func TestParseArgs(t *testing.T) {
	a := parseArgs(t,
		"-f", "post.html",
		"-t", "My Title",
		"-b", "https://x.blogspot.com",
		"--blog-id", "123",
		"-l", "go, blogging",
		"--draft",
		"-c", "creds.json",
		"--token", "tok.js",
		"-C", "gblog.yaml",
		"-v")

	assert.Equal(t, "post.html", a.File)
	assert.Equal(t, "My Title", a.Title)
	assert.Equal(t, "gblog.yaml", a.Config)
	assert.True(t, a.Verbose)

	assert.Equal(t, config.Settings{
		BlogURL:     "https://x.blogspot.com",
		BlogID:      "123",
		Credentials: "creds.json",
		Token:       "tok.js",
		Labels:      []string{"go", "blogging"},
		Draft:       true,
	}, a.settings())
}

func TestParseArgsRequiresFile(t *testing.T) {
	var a args
	p, err := arg.NewParser(arg.Config{}, &a)
	require.NoError(t, err)
	assert.Error(t, p.Parse([]string{"-t", "title"}))
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "gblog.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("blog_url: https://file.blogspot.com\ntoken: file-token.json\n"), 0o644))

	f, err := config.Load(cfgPath)
	require.NoError(t, err)

	a := parseArgs(t, "-f", "post.html", "-b", "https://flag.blogspot.com")
	s := config.Resolve(a.settings(), f.Settings(), config.Defaults())
	assert.Equal(t, "https://flag.blogspot.com", s.BlogURL)
	assert.Equal(t, "file-token.json", s.Token)
	assert.Equal(t, config.DefaultCredentialsFile, s.Credentials)
}

func TestRunInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "gblog.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("draft: [oops"), 0o644))

	a := parseArgs(t, "-f", filepath.Join(dir, "post.html"), "-C", cfgPath)
	err := run(context.Background(), a)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRunMissingTitle(t *testing.T) {
	dir := t.TempDir()
	post := filepath.Join(dir, "post.html")
	require.NoError(t, os.WriteFile(post, []byte("no title here"), 0o644))

	// the credentials file does not exist, so reaching authentication would fail differently
	a := parseArgs(t, "-f", post, "-c", filepath.Join(dir, "missing.json"))
	err := run(context.Background(), a)
	assert.ErrorIs(t, err, publish.ErrMissingTitle)
}

func TestRunMissingFile(t *testing.T) {
	a := parseArgs(t, "-f", filepath.Join(t.TempDir(), "missing.html"), "-t", "T")
	err := run(context.Background(), a)
	assert.ErrorIs(t, err, publish.ErrMissingFile)
}
