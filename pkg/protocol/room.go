package protocol

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Language is a shared document attribute.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguageJava       Language = "java"
	LanguageCpp        Language = "c_cpp"
	LanguagePython     Language = "python"
	LanguageTypeScript Language = "typescript"
	LanguageGo         Language = "golang"
	LanguageYAML       Language = "yaml"
	LanguageHTML       Language = "html"
)

// DefaultLanguage is the language of a freshly created room.
const DefaultLanguage = LanguageJava

// Languages lists the supported languages in menu order.
var Languages = []Language{
	LanguageJavaScript,
	LanguageJava,
	LanguageCpp,
	LanguagePython,
	LanguageTypeScript,
	LanguageGo,
	LanguageYAML,
	LanguageHTML,
}

// ParseLanguage validates s against the supported languages.
func ParseLanguage(s string) (Language, error) {
	for _, l := range Languages {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
}

// NewRoomID returns a fresh random room id.
func NewRoomID() string {
	return uuid.NewString()
}

// ValidateRoomID accepts only canonical UUID strings.
func ValidateRoomID(id string) error {
	// uuid.Parse also accepts urn: and braced forms
	if len(id) != 36 {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, id)
	}
	return nil
}

// ValidateDisplayName trims name and rejects empty identities.
func ValidateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrMissingIdentity
	}
	return name, nil
}
