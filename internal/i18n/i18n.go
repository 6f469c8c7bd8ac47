// Package i18n holds the English and Spanish strings used in responses,
// model instructions and the UI dictionary served to clients.
package i18n

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type Lang string

const (
	English Lang = "en"
	Spanish Lang = "es"
)

// Languages lists the supported languages in display order.
var Languages = []Lang{English, Spanish}

// Parse returns the language for s and whether it is supported.
func Parse(s string) (Lang, bool) {
	switch Lang(strings.ToLower(strings.TrimSpace(s))) {
	case English:
		return English, true
	case Spanish:
		return Spanish, true
	}
	return "", false
}

// Normalize maps anything unsupported to English.
func Normalize(s string) Lang {
	if l, ok := Parse(s); ok {
		return l
	}
	return English
}

//go:embed catalog.yaml
var catalogYAML []byte

type bundle struct {
	UI       map[string]string   `yaml:"ui"`
	Messages map[string]string   `yaml:"messages"`
	Lists    map[string][]string `yaml:"lists"`
}

type Catalog struct {
	bundles map[Lang]bundle
}

// Load parses a catalog document. Every supported language must be present.
func Load(data []byte) (*Catalog, error) {
	raw := map[Lang]bundle{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for _, l := range Languages {
		if _, ok := raw[l]; !ok {
			return nil, fmt.Errorf("catalog has no %q section", l)
		}
	}
	return &Catalog{bundles: raw}, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(catalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// T returns the message for key, falling back to English and then to the key.
func (c *Catalog) T(lang Lang, key string) string {
	if s, ok := c.bundles[lang].Messages[key]; ok {
		return s
	}
	if s, ok := c.bundles[English].Messages[key]; ok {
		return s
	}
	return key
}

// Format is T with {name} placeholders replaced from args.
func (c *Catalog) Format(lang Lang, key string, args map[string]string) string {
	s := c.T(lang, key)
	if len(args) == 0 {
		return s
	}
	pairs := make([]string, 0, len(args)*2)
	for k, v := range args {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// List returns a copy of the list stored under key.
func (c *Catalog) List(lang Lang, key string) []string {
	items, ok := c.bundles[lang].Lists[key]
	if !ok {
		items = c.bundles[English].Lists[key]
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}

// Dictionary returns a copy of the UI strings for lang.
func (c *Catalog) Dictionary(lang Lang) map[string]string {
	ui := c.bundles[Normalize(string(lang))].UI
	out := make(map[string]string, len(ui))
	for k, v := range ui {
		out[k] = v
	}
	return out
}
