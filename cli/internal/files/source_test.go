package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadSource(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.PY", []byte("print('hi')\n"))

	src, err := LoadSource(path)
	require.NoError(t, err)
	assert.Equal(t, "main.PY", src.Name)
	assert.Equal(t, path, src.Path)
	assert.Equal(t, "print('hi')\n", src.Text)
	assert.Equal(t, protocol.LanguagePython, src.Language)
}

func TestLoadSourceUnknownExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", []byte("hello"))

	src, err := LoadSource(path)
	require.NoError(t, err)
	assert.Equal(t, protocol.DefaultLanguage, src.Language)
}

func TestLoadSourceErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"directory", dir, ErrIsDirectory},
		{"empty", writeFile(t, dir, "empty.go", nil), ErrEmpty},
		{"too large", writeFile(t, dir, "big.js", []byte(strings.Repeat("a", MaxSourceSize+1))), ErrTooLarge},
		{"binary", writeFile(t, dir, "blob.c", []byte{0xff, 0xfe, 0x00}), ErrNotText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSource(tt.path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := LoadSource(filepath.Join(dir, "missing.go"))
	assert.ErrorContains(t, err, "does not exist")
}

func TestLanguageFor(t *testing.T) {
	tests := map[string]protocol.Language{
		"a.ts":       protocol.LanguageTypeScript,
		"b.cpp":      protocol.LanguageCpp,
		"c.yml":      protocol.LanguageYAML,
		"index.html": protocol.LanguageHTML,
		"Main.java":  protocol.LanguageJava,
		"main.go":    protocol.LanguageGo,
	}
	for name, want := range tests {
		got, ok := LanguageFor(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := LanguageFor("README")
	assert.False(t, ok)
}
