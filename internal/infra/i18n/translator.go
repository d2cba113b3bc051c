package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"applyassist/internal/domain"
)

//go:embed locales
var LocalesFS embed.FS

// Translator turns message keys and domain errors into user-facing text.
type Translator struct {
	translations map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := filepath.Join("locales", fmt.Sprintf("%s.yaml", langCode))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	return newTranslatorFromBytes(data)
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

// T returns the translation for key, or key itself when missing.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Message returns the user-facing text for err. Nil-safe on t.
func (t *Translator) Message(err error) string {
	if t == nil || err == nil {
		return ""
	}
	var nf *domain.PlanNotFoundError
	switch {
	case errors.As(err, &nf):
		name, ok := t.translations["plan."+nf.PlanID]
		if !ok {
			name = nf.PlanID
		}
		return t.T("error.plan_not_found", name)
	case errors.Is(err, domain.ErrCancelledByUser):
		return t.T("error.cancelled")
	case errors.Is(err, domain.ErrUnsupportedEnvironment):
		return t.T("error.unsupported_environment")
	case errors.Is(err, domain.ErrConfiguration):
		return t.T("error.configuration")
	case errors.Is(err, domain.ErrUnauthenticated):
		return t.T("error.unauthenticated")
	case errors.Is(err, domain.ErrInvalidArgument):
		return t.T("error.invalid_argument")
	case errors.Is(err, domain.ErrNotFound):
		return t.T("error.not_found")
	case errors.Is(err, domain.ErrBackendUnavailable):
		return t.T("error.backend_unavailable")
	}
	return t.T("error.unknown")
}
