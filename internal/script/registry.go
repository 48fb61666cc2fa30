// Package script holds the per-language conversation scripts handed to the voice agent.
//
// A Registry is built once at startup and is read-only afterwards, so it is safe for
// concurrent use by request handlers.
package script

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"callagent/internal/domain"
)

//go:embed scripts.yaml
var defaultScripts []byte

// Script is a rendered conversation script.
type Script struct {
	Opening      string
	Instructions string
}

// Vars are the customer fields substituted into a script. Blank fields render the
// language's placeholder phrase.
type Vars struct {
	Name   string
	Area   string
	Budget string
}

type entry struct {
	NameFallback   string `yaml:"nameFallback"`
	AreaFallback   string `yaml:"areaFallback"`
	BudgetFallback string `yaml:"budgetFallback"`
	Opening        string `yaml:"opening"`
	Instructions   string `yaml:"instructions"`
}

type compiled struct {
	entry
	opening      *template.Template
	instructions *template.Template
}

type data struct {
	Name      string
	Area      string
	Budget    string
	HasArea   bool
	HasBudget bool
}

type Registry struct {
	scripts map[domain.Language]compiled
}

// Default returns the registry built from the embedded scripts.
func Default() (*Registry, error) {
	return Parse(defaultScripts)
}

// Load reads scripts from path, or the embedded defaults when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scripts file: %w", err)
	}
	return Parse(b)
}

// Parse compiles a scripts document. Every supported language must be present and
// must render non-empty text with all customer fields absent.
func Parse(b []byte) (*Registry, error) {
	var raw map[string]entry
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse scripts: %w", err)
	}

	r := &Registry{scripts: make(map[domain.Language]compiled, len(domain.SupportedLanguages))}
	for _, lang := range domain.SupportedLanguages {
		e, ok := raw[string(lang)]
		if !ok {
			return nil, fmt.Errorf("scripts: missing language %q", lang)
		}
		if strings.TrimSpace(e.NameFallback) == "" || strings.TrimSpace(e.AreaFallback) == "" || strings.TrimSpace(e.BudgetFallback) == "" {
			return nil, fmt.Errorf("scripts: %s: placeholder phrases are required", lang)
		}
		op, err := template.New(string(lang) + ".opening").Option("missingkey=error").Parse(e.Opening)
		if err != nil {
			return nil, fmt.Errorf("scripts: %s opening: %w", lang, err)
		}
		in, err := template.New(string(lang) + ".instructions").Option("missingkey=error").Parse(e.Instructions)
		if err != nil {
			return nil, fmt.Errorf("scripts: %s instructions: %w", lang, err)
		}
		c := compiled{entry: e, opening: op, instructions: in}

		s, err := c.render(Vars{})
		if err != nil {
			return nil, fmt.Errorf("scripts: %s: %w", lang, err)
		}
		if strings.TrimSpace(s.Opening) == "" || strings.TrimSpace(s.Instructions) == "" {
			return nil, fmt.Errorf("scripts: %s renders empty text", lang)
		}
		r.scripts[lang] = c
	}
	return r, nil
}

// Render produces the opening utterance and instruction text. Languages without a
// script use domain.DefaultLanguage.
func (r *Registry) Render(lang domain.Language, v Vars) (Script, error) {
	return r.lookup(lang).render(v)
}

// DisplayName is the customer name as the agent will address them.
func (r *Registry) DisplayName(lang domain.Language, name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return r.lookup(lang).NameFallback
}

func (r *Registry) lookup(lang domain.Language) compiled {
	if c, ok := r.scripts[lang]; ok {
		return c
	}
	return r.scripts[domain.DefaultLanguage]
}

func (c compiled) render(v Vars) (Script, error) {
	d := data{
		Name:   orDefault(v.Name, c.NameFallback),
		Area:   orDefault(v.Area, c.AreaFallback),
		Budget: orDefault(v.Budget, c.BudgetFallback),
	}
	d.HasArea = strings.TrimSpace(v.Area) != ""
	d.HasBudget = strings.TrimSpace(v.Budget) != ""

	var op, in bytes.Buffer
	if err := c.opening.Execute(&op, d); err != nil {
		return Script{}, fmt.Errorf("render opening: %w", err)
	}
	if err := c.instructions.Execute(&in, d); err != nil {
		return Script{}, fmt.Errorf("render instructions: %w", err)
	}
	return Script{
		Opening:      strings.TrimSpace(op.String()),
		Instructions: strings.TrimSpace(in.String()),
	}, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
