// Package i18n resolves the add-on's message keys for a language.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every key must exist in.
const BaseLocale = "en"

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

//go:embed lang/*.yaml
var embedded embed.FS

// Catalog is a set of translated messages for several locales.
type Catalog struct {
	builder *catalog.Builder
	tags    []language.Tag
	keys    map[language.Tag]map[string]struct{}
}

// LoadEmbedded loads the catalogs shipped with the add-on.
func LoadEmbedded() (*Catalog, error) {
	return LoadFromFS(embedded)
}

// LoadFromFS loads lang/*.yaml from fsys.
func LoadFromFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "lang/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	c := &Catalog{
		builder: catalog.NewBuilder(catalog.Fallback(language.Make(BaseLocale))),
		keys:    map[language.Tag]map[string]struct{}{},
	}

	hasBase := false
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}

		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if strings.TrimSpace(file.Locale) == "" {
			return nil, fmt.Errorf("catalog %s: locale is required", path)
		}

		tag, err := language.Parse(file.Locale)
		if err != nil {
			return nil, fmt.Errorf("parse locale tag %q: %w", file.Locale, err)
		}
		if _, dup := c.keys[tag]; dup {
			return nil, fmt.Errorf("catalog %s: locale %q already defined", path, file.Locale)
		}
		c.keys[tag] = map[string]struct{}{}

		// the matcher falls back to the first tag
		if file.Locale == BaseLocale {
			hasBase = true
			c.tags = append([]language.Tag{tag}, c.tags...)
		} else {
			c.tags = append(c.tags, tag)
		}

		for key, msg := range file.Messages {
			// messages use {name} placeholders, so % is always literal
			if err := c.builder.SetString(tag, key, strings.ReplaceAll(msg, "%", "%%")); err != nil {
				return nil, fmt.Errorf("catalog %s: set %q: %w", path, key, err)
			}
			c.keys[tag][key] = struct{}{}
		}
	}

	if !hasBase {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	return c, nil
}

// Localizer formats messages for one language.
type Localizer struct {
	catalog *Catalog
	printer *message.Printer
	base    *message.Printer
	tag     language.Tag
}

// Localizer returns a localizer for the closest available match of lang.
func (c *Catalog) Localizer(lang string) *Localizer {
	want, err := language.Parse(lang)
	if err != nil {
		want = language.Make(BaseLocale)
	}

	_, idx, _ := language.NewMatcher(c.tags).Match(want)
	tag := c.tags[idx]

	return &Localizer{
		catalog: c,
		printer: message.NewPrinter(tag, message.Catalog(c.builder)),
		base:    message.NewPrinter(c.tags[0], message.Catalog(c.builder)),
		tag:     tag,
	}
}

func (l *Localizer) Language() string { return l.tag.String() }

// Localize resolves key and fills {name} placeholders from data. Keys
// missing from the language come from the base locale; unknown keys are
// returned as is.
func (l *Localizer) Localize(key string, data map[string]string) string {
	var msg string
	switch {
	case l.has(l.tag, key):
		msg = l.printer.Sprintf(key)
	case l.has(l.catalog.tags[0], key):
		msg = l.base.Sprintf(key)
	default:
		return key
	}

	if len(data) == 0 {
		return msg
	}

	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

func (l *Localizer) has(tag language.Tag, key string) bool {
	_, ok := l.catalog.keys[tag][key]
	return ok
}
