package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// run executes bundlectl with args and returns its standard output.
// The user config directory is redirected so no real config is read.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// packFixture packs two assets into dir/chars with a companion manifest and
// returns an origin serving dir.
func packFixture(t *testing.T, dir string) *httptest.Server {
	t.Helper()
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "hero.fbx"), strings.Repeat("vertex data ", 64))
	writeFile(t, filepath.Join(src, "notes.txt"), "hello")

	out, err := run(t, "pack", "--out", filepath.Join(dir, "chars"), "--companion",
		filepath.Join(src, "hero.fbx"), filepath.Join(src, "notes.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "sha256:"), out)

	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(srv.Close)
	return srv
}

func TestPackEnsureGet(t *testing.T) {
	dir := t.TempDir()
	srv := packFixture(t, dir)
	cacheDir := t.TempDir()

	out, err := run(t, "ensure", "--base-url", srv.URL, "--cache-dir", cacheDir, "chars")
	require.NoError(t, err)
	assert.Equal(t, "OK\tchars\n", out)

	out, err = run(t, "ensure", "--base-url", srv.URL, "--cache-dir", cacheDir, "chars")
	require.NoError(t, err)
	assert.Equal(t, "CACHED\tchars\n", out)

	target := filepath.Join(t.TempDir(), "hero.fbx")
	_, err = run(t, "get", "--base-url", srv.URL, "--type", "model", "--out", target, "chars", "hero.fbx")
	require.NoError(t, err)
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("vertex data ", 64), string(got))

	out, err = run(t, "get", "--base-url", srv.URL, "chars", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	_, err = run(t, "get", "--base-url", srv.URL, "--type", "audio", "chars", "notes.txt")
	assert.Error(t, err)

	_, err = run(t, "clear-cache", "--cache-dir", cacheDir)
	require.NoError(t, err)
	out, err = run(t, "ensure", "--base-url", srv.URL, "--cache-dir", cacheDir, "chars")
	require.NoError(t, err)
	assert.Equal(t, "OK\tchars\n", out)
}

func TestEnsureReportsFailures(t *testing.T) {
	dir := t.TempDir()
	srv := packFixture(t, dir)

	out, err := run(t, "ensure", "--base-url", srv.URL, "chars", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 files failed")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "OK\tchars", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "FAIL\tmissing\t"), lines[1])

	_, err = run(t, "ensure", "chars")
	assert.ErrorContains(t, err, "base URL is required")
}

func TestSize(t *testing.T) {
	dir := t.TempDir()
	srv := packFixture(t, dir)
	info, err := os.Stat(filepath.Join(dir, "chars"))
	require.NoError(t, err)

	out, err := run(t, "size", "--bytes", "--base-url", srv.URL, "chars")
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(info.Size(), 10)+"\n", out)
}

func TestEncryptDecrypt(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain")
	enc := filepath.Join(dir, "enc")
	dec := filepath.Join(dir, "dec")
	writeFile(t, plain, "bundle bytes")

	_, err := run(t, "encrypt", "--password", "pw", "--salt", "saltsalt", plain, enc)
	require.NoError(t, err)
	ciphertext, err := os.ReadFile(enc)
	require.NoError(t, err)
	assert.NotEqual(t, "bundle bytes", string(ciphertext))

	_, err = run(t, "decrypt", "--password", "pw", "--salt", "saltsalt", enc, dec)
	require.NoError(t, err)
	got, err := os.ReadFile(dec)
	require.NoError(t, err)
	assert.Equal(t, "bundle bytes", string(got))

	_, err = run(t, "encrypt", "--salt", "saltsalt", plain, enc)
	assert.ErrorContains(t, err, "password is required")
	_, err = run(t, "encrypt", "--password", "pw", "--salt", "short", plain, enc)
	assert.Error(t, err)
}

func TestEncryptedBundleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "secret.txt")
	writeFile(t, src, "classified")

	packed := filepath.Join(t.TempDir(), "secret")
	_, err := run(t, "pack", "--out", packed, src)
	require.NoError(t, err)
	_, err = run(t, "encrypt", "--password", "pw", "--salt", "saltsalt", packed, filepath.Join(dir, "secret"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	out, err := run(t, "get", "--base-url", srv.URL, "--password", "pw", "--salt", "saltsalt", "secret", "secret.txt")
	require.NoError(t, err)
	assert.Equal(t, "classified", out)
}

func TestConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "base-url: http://file.example/\nmanifest: file.json\nconcurrency: 2\npassword: secret\nvariants: [hd, sd]\n")
	t.Setenv("BUNDLECTL_MANIFEST", "env.json")

	out, err := run(t, "config", "show", "--config", path, "--concurrency", "7")
	require.NoError(t, err)

	var got config
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "http://file.example/", got.BaseURL)
	assert.Equal(t, "env.json", got.Manifest)
	assert.Equal(t, 7, got.Concurrency)
	assert.Equal(t, []string{"hd", "sd"}, got.Variants)
	assert.Equal(t, "******", got.Password)
}

func TestConfigFileErrors(t *testing.T) {
	_, err := run(t, "config", "show", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	out, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "concurrency: 4")
}

func TestPackOptions(t *testing.T) {
	t.Parallel()

	_, err := packOptions("brotli", "default")
	assert.Error(t, err)
	_, err = packOptions("zstd", "ludicrous")
	assert.Error(t, err)
	opts, err := packOptions("lz4", "ignored")
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	assert.Equal(t, "model", string(typeForFile("a/b/Hero.FBX")))
	assert.Equal(t, "blob", string(typeForFile("data.bin")))
}
