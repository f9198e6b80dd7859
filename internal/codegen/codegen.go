// Package codegen renders aggregate artifacts and sync hooks into Go source
// files and writes the DDL for added columns.
package codegen

import (
	"embed"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"aggregen/internal/aggregate"
	"aggregen/internal/naming"
	"aggregen/internal/platform"
	"aggregen/internal/schema"
)

//go:embed templates/*.tmpl
var templates embed.FS

// SupportFileName holds the shared declarations used by generated methods.
const SupportFileName = "aggregate_support.go"

// File is one generated output file.
type File struct {
	Path    string
	Content []byte
}

// Generator renders generated files for one Go package.
type Generator struct {
	tpl   *template.Template
	pkg   string
	namer *naming.Namer
}

// New parses the embedded templates.
func New(pkg string, namer *naming.Namer) (*Generator, error) {
	if pkg == "" {
		return nil, fmt.Errorf("output package name is required")
	}
	if namer == nil {
		namer = naming.Default()
	}
	tpl, err := template.New("aggregen").Funcs(template.FuncMap{
		"quote": strconv.Quote,
		"zero":  zeroValue,
	}).ParseFS(templates, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Generator{tpl: tpl, pkg: pkg, namer: namer}, nil
}

// Render executes the named template. It implements aggregate.Renderer.
func (g *Generator) Render(name string, data any) (string, error) {
	var w strings.Builder
	if err := g.tpl.ExecuteTemplate(&w, name, data); err != nil {
		return "", err
	}
	return w.String(), nil
}

type fileData struct {
	Package string
	Imports []string
	Methods []aggregate.Artifact
}

// Generate renders one file per parent table with bindings, one file per
// child table with sync units, and the support file. Files are returned in
// registry order.
func (g *Generator) Generate(db *schema.Database, result aggregate.Result) ([]File, error) {
	byTable := make(map[*schema.Table]aggregate.TableResult, len(result.Tables))
	for _, tr := range result.Tables {
		byTable[tr.Table] = tr
	}

	var files []File
	for _, table := range db.Tables {
		if tr, ok := byTable[table]; ok && len(tr.Artifacts) > 0 {
			f, err := g.file(table, "_aggregate.go", tr.Artifacts, []string{"context", "database/sql", "fmt"})
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
		if hooks := aggregate.EmitHooks(table); len(hooks) > 0 {
			f, err := g.file(table, "_aggregate_sync.go", hooks, []string{"context"})
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, nil
	}

	support, err := g.source(SupportFileName, "support", fileData{Package: g.pkg})
	if err != nil {
		return nil, err
	}
	return append(files, support), nil
}

func (g *Generator) file(table *schema.Table, suffix string, artifacts []aggregate.Artifact, imports []string) (File, error) {
	rendered, err := aggregate.RenderArtifacts(g, artifacts)
	if err != nil {
		return File{}, err
	}
	name := g.namer.FileStem(table.QualifiedName()) + suffix
	return g.source(name, "file", fileData{Package: g.pkg, Imports: imports, Methods: rendered})
}

func (g *Generator) source(name, tpl string, data fileData) (File, error) {
	raw, err := g.Render(tpl, data)
	if err != nil {
		return File{}, fmt.Errorf("render %s: %w", name, err)
	}
	formatted, err := format.Source([]byte(raw))
	if err != nil {
		return File{}, fmt.Errorf("format %s: %w", name, err)
	}
	return File{Path: name, Content: formatted}, nil
}

// DDL returns ALTER TABLE statements for every column added during the pass.
func DDL(p platform.Platform, result aggregate.Result) string {
	var b strings.Builder
	for _, tr := range result.Tables {
		for _, col := range tr.AddedColumns {
			fmt.Fprintf(&b, "ALTER TABLE %s ADD COLUMN %s %s;\n",
				p.QuoteIdentifier(tr.Table.QualifiedName()),
				p.QuoteIdentifier(col.Name),
				col.Type,
			)
		}
	}
	return b.String()
}

// WriteFiles writes files under dir, creating it when needed.
func WriteFiles(dir string, files []File) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, f := range files {
		path := filepath.Join(dir, f.Path)
		if err := os.WriteFile(path, f.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

func zeroValue(goType string) string {
	switch goType {
	case "int64", "float64":
		return "0"
	case "bool":
		return "false"
	default:
		return `""`
	}
}
