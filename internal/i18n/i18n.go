// Package i18n serves the dashboard's translated strings. Translation trees
// are embedded YAML documents, one per language, addressed by dotted keys
// such as "whois.registrar".
package i18n

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Language is a supported UI language code.
type Language string

const (
	French  Language = "fr"
	English Language = "en"
)

// DefaultLanguage is used until SetLanguage is called.
const DefaultLanguage = French

var (
	loadOnce sync.Once
	trees    map[Language]map[string]any
	loadErr  error
)

func loadTrees() (map[Language]map[string]any, error) {
	loadOnce.Do(func() {
		trees = make(map[Language]map[string]any)
		for _, lang := range []Language{French, English} {
			data, err := localeFS.ReadFile("locales/" + string(lang) + ".yaml")
			if err != nil {
				loadErr = fmt.Errorf("failed to read %s translations: %w", lang, err)
				return
			}
			var tree map[string]any
			if err := yaml.Unmarshal(data, &tree); err != nil {
				loadErr = fmt.Errorf("failed to parse %s translations: %w", lang, err)
				return
			}
			trees[lang] = tree
		}
	})
	return trees, loadErr
}

// Languages returns the supported languages, sorted.
func Languages() []Language {
	t, _ := loadTrees()
	out := make([]Language, 0, len(t))
	for lang := range t {
		out = append(out, lang)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseLanguage validates a language code.
func ParseLanguage(s string) (Language, error) {
	lang := Language(strings.ToLower(strings.TrimSpace(s)))
	t, err := loadTrees()
	if err != nil {
		return "", err
	}
	if _, ok := t[lang]; !ok {
		return "", fmt.Errorf("unsupported language %q", s)
	}
	return lang, nil
}

// Value is the result of a lookup: a string, a subtree, or the missing key.
type Value struct {
	key  string
	text string
	tree map[string]any
}

// IsText reports whether the value is a leaf string.
func (v Value) IsText() bool { return v.tree == nil }

// IsTree reports whether the value is a subtree.
func (v Value) IsTree() bool { return v.tree != nil }

// String returns the text, or the key for subtrees and missing entries.
func (v Value) String() string {
	if v.tree != nil {
		return v.key
	}
	return v.text
}

// Get reads a direct child string of a subtree. Missing children yield the
// joined key.
func (v Value) Get(child string) string {
	if s, ok := v.tree[child].(string); ok {
		return s
	}
	return v.key + "." + child
}

// Localizer resolves keys against the active language. It is safe for
// concurrent use.
type Localizer struct {
	mu   sync.RWMutex
	lang Language
}

// New creates a Localizer set to lang.
func New(lang Language) (*Localizer, error) {
	if _, err := ParseLanguage(string(lang)); err != nil {
		return nil, err
	}
	return &Localizer{lang: lang}, nil
}

// Default creates a Localizer on DefaultLanguage.
func Default() *Localizer {
	return &Localizer{lang: DefaultLanguage}
}

// Language returns the active language.
func (l *Localizer) Language() Language {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lang
}

// SetLanguage switches the active language.
func (l *Localizer) SetLanguage(lang Language) error {
	if _, err := ParseLanguage(string(lang)); err != nil {
		return err
	}
	l.mu.Lock()
	l.lang = lang
	l.mu.Unlock()
	return nil
}

// Toggle flips between French and English and returns the new language.
func (l *Localizer) Toggle() Language {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lang == French {
		l.lang = English
	} else {
		l.lang = French
	}
	return l.lang
}

// Lookup walks a dotted key. When any segment is missing the key itself is
// returned as text.
func (l *Localizer) Lookup(key string) Value {
	t, err := loadTrees()
	if err != nil {
		return Value{key: key, text: key}
	}
	var node any = t[l.Language()]
	for _, seg := range strings.Split(key, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return Value{key: key, text: key}
		}
		next, ok := m[seg]
		if !ok {
			return Value{key: key, text: key}
		}
		node = next
	}
	switch n := node.(type) {
	case string:
		return Value{key: key, text: n}
	case map[string]any:
		return Value{key: key, tree: n}
	default:
		return Value{key: key, text: fmt.Sprint(n)}
	}
}

// T returns the string at key, or key when it is missing or not a string.
func (l *Localizer) T(key string) string {
	return l.Lookup(key).String()
}
