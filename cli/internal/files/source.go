package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// MaxSourceSize keeps a loaded document under the server's frame limit.
const MaxSourceSize = 60 * 1024

var (
	ErrIsDirectory = errors.New("is a directory")
	ErrEmpty       = errors.New("file is empty")
	ErrTooLarge    = errors.New("file is too large")
	ErrNotText     = errors.New("file is not UTF-8 text")
)

var extensions = map[string]protocol.Language{
	".js":   protocol.LanguageJavaScript,
	".mjs":  protocol.LanguageJavaScript,
	".cjs":  protocol.LanguageJavaScript,
	".java": protocol.LanguageJava,
	".c":    protocol.LanguageCpp,
	".h":    protocol.LanguageCpp,
	".cc":   protocol.LanguageCpp,
	".cpp":  protocol.LanguageCpp,
	".cxx":  protocol.LanguageCpp,
	".hpp":  protocol.LanguageCpp,
	".py":   protocol.LanguagePython,
	".ts":   protocol.LanguageTypeScript,
	".go":   protocol.LanguageGo,
	".yaml": protocol.LanguageYAML,
	".yml":  protocol.LanguageYAML,
	".html": protocol.LanguageHTML,
	".htm":  protocol.LanguageHTML,
}

// Source is a local source file ready to be run or shared.
type Source struct {
	// Path is the absolute path to the file
	Path string

	// Name is the filename without directory
	Name string

	Text string

	// Language is inferred from the extension, or DefaultLanguage when
	// the extension is unknown.
	Language protocol.Language
}

// LanguageFor infers the document language from a file name.
func LanguageFor(name string) (protocol.Language, bool) {
	lang, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return lang, ok
}

// LoadSource checks that path is a readable text file of acceptable size
// and reads it.
func LoadSource(path string) (*Source, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get absolute path: %w", path, err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: file does not exist", path)
		}
		return nil, fmt.Errorf("%s: failed to stat file: %w", path, err)
	}
	switch {
	case stat.IsDir():
		return nil, fmt.Errorf("%s: %w", path, ErrIsDirectory)
	case stat.Size() == 0:
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	case stat.Size() > MaxSourceSize:
		return nil, fmt.Errorf("%s: %w (%d bytes, limit %d)", path, ErrTooLarge, stat.Size(), MaxSourceSize)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("%s: cannot read file (check permissions): %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotText)
	}

	lang, ok := LanguageFor(absPath)
	if !ok {
		lang = protocol.DefaultLanguage
	}

	return &Source{
		Path:     absPath,
		Name:     filepath.Base(absPath),
		Text:     string(data),
		Language: lang,
	}, nil
}
