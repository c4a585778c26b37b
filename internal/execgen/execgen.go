// Package execgen provides a code generator that shells out to an external
// tool per language. It is the bridge between warren.yml language definitions
// and the orchestrator's Generator contract: each language names the argv to
// run and the output files the tool is expected to produce.
package execgen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dyluth/warren/internal/codegen"
	"github.com/dyluth/warren/pkg/buildgraph"
)

// LanguageSpec describes one output language of an external generator tool.
type LanguageSpec struct {
	// Name is the language name, e.g. "java".
	Name string

	// Consumers lists the target labels whose presence marks a target as a
	// consumer of this language's generated output.
	Consumers []string

	// Command is the argv template run once per generation source. Elements
	// may contain the placeholders {target}, {lang}, {out_dir} and
	// {sources}; an element that is exactly "{sources}" is replaced by the
	// source's files, one argument each, while an inline occurrence joins
	// them with spaces.
	Command []string

	// Outputs are the file path templates the command is expected to
	// produce, with the same placeholders. Every expanded path must exist
	// after the command succeeds.
	Outputs []string
}

// Generator runs external generator commands. It implements
// codegen.Generator.
type Generator struct {
	artifactRoot string
	genLabel     string
	specs        map[string]LanguageSpec
}

// New creates a Generator. genLabel is the label marking generation-source
// targets; specs define the supported languages.
func New(artifactRoot, genLabel string, specs []LanguageSpec) (*Generator, error) {
	if artifactRoot == "" {
		return nil, fmt.Errorf("artifact root must not be empty")
	}
	if genLabel == "" {
		return nil, fmt.Errorf("generator label must not be empty")
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one language spec is required")
	}

	byName := make(map[string]LanguageSpec, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("language spec has empty name")
		}
		if _, dup := byName[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate language spec: %s", spec.Name)
		}
		if len(spec.Command) == 0 {
			return nil, fmt.Errorf("language %s has no command", spec.Name)
		}
		if len(spec.Outputs) == 0 {
			return nil, fmt.Errorf("language %s declares no outputs", spec.Name)
		}
		byName[spec.Name] = spec
	}

	return &Generator{
		artifactRoot: artifactRoot,
		genLabel:     genLabel,
		specs:        byName,
	}, nil
}

// IsGenTarget reports whether target carries the generator's source label.
func (g *Generator) IsGenTarget(t *buildgraph.Target) bool {
	return t.HasLabel(g.genLabel)
}

// Languages returns one codegen.Language per spec. A target consumes a
// language when it carries any of the spec's consumer labels.
func (g *Generator) Languages() []codegen.Language {
	names := make([]string, 0, len(g.specs))
	for name := range g.specs {
		names = append(names, name)
	}
	sort.Strings(names)

	langs := make([]codegen.Language, 0, len(names))
	for _, name := range names {
		labels := g.specs[name].Consumers
		langs = append(langs, codegen.Language{
			Name:     name,
			Consumes: consumesAny(labels),
		})
	}
	return langs
}

func consumesAny(labels []string) buildgraph.Predicate {
	return func(t *buildgraph.Target) bool {
		for _, label := range labels {
			if t.HasLabel(label) {
				return true
			}
		}
		return false
	}
}

// Generate runs the language's command once per target and returns the
// expanded output paths. A missing declared output after a successful run is
// an error: the declaration is the caching contract.
func (g *Generator) Generate(ctx context.Context, lang string, targets []*buildgraph.Target) ([]string, error) {
	spec, ok := g.specs[lang]
	if !ok {
		return nil, fmt.Errorf("unknown language: %s", lang)
	}

	var artifacts []string
	for _, t := range targets {
		outDir := g.outDir(lang)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output dir for %s: %w", t.ID, err)
		}

		argv := expandCommand(spec.Command, t, lang, outDir)
		if err := g.run(ctx, argv); err != nil {
			return nil, fmt.Errorf("generating %s for %s: %w", lang, t.ID, err)
		}

		for _, tmpl := range spec.Outputs {
			out := expand(tmpl, t, lang, outDir)
			if _, err := os.Stat(out); err != nil {
				return nil, fmt.Errorf("declared output %s missing after generating %s for %s: %w", out, lang, t.ID, err)
			}
			artifacts = append(artifacts, out)
		}
	}
	return artifacts, nil
}

// SyntheticTarget names the synthetic target "<source>.<lang>" and declares
// the expanded output paths as its sources.
func (g *Generator) SyntheticTarget(lang string, source *buildgraph.Target, dependees []*buildgraph.Target) (*buildgraph.Target, error) {
	spec, ok := g.specs[lang]
	if !ok {
		return nil, fmt.Errorf("unknown language: %s", lang)
	}

	outDir := g.outDir(lang)
	outputs := make([]string, 0, len(spec.Outputs))
	for _, tmpl := range spec.Outputs {
		outputs = append(outputs, expand(tmpl, source, lang, outDir))
	}
	return buildgraph.NewTarget(source.ID+"."+lang, outputs...), nil
}

func (g *Generator) outDir(lang string) string {
	return filepath.Join(g.artifactRoot, lang)
}

// run executes argv, with stderr captured for the error message.
func (g *Generator) run(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = g.artifactRoot

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("command %v failed: %w: %s", argv, err, msg)
		}
		return fmt.Errorf("command %v failed: %w", argv, err)
	}
	return nil
}

// expandCommand expands the argv template for one target. The {sources}
// element splices in the target's source files.
func expandCommand(command []string, t *buildgraph.Target, lang, outDir string) []string {
	argv := make([]string, 0, len(command))
	for _, arg := range command {
		if arg == "{sources}" {
			argv = append(argv, t.Sources...)
			continue
		}
		argv = append(argv, expand(arg, t, lang, outDir))
	}
	return argv
}

// expand substitutes the {target}, {lang}, {out_dir} and {sources}
// placeholders. {target} is the target ID with path separators flattened so
// it is safe in a filename.
func expand(s string, t *buildgraph.Target, lang, outDir string) string {
	r := strings.NewReplacer(
		"{target}", flatten(t.ID),
		"{lang}", lang,
		"{out_dir}", outDir,
		"{sources}", strings.Join(t.Sources, " "),
	)
	return r.Replace(s)
}

func flatten(id string) string {
	return strings.Map(func(r rune) rune {
		if r == ':' || r == '/' {
			return '_'
		}
		return r
	}, id)
}
