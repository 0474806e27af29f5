// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package generator turns a job descriptor into the file sets for a
// project's three deployable artifacts: the public site, the admin
// dashboard, and the companion app. Content generation is pure
// template expansion; the interesting decisions (which admin modules
// ship, which tier applies) are delegated to the resolver and the
// tier engine.
package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/huddleeco/siteforge/pkg/logging"
	"github.com/huddleeco/siteforge/services/forge/datatypes"
	"github.com/huddleeco/siteforge/services/forge/modules"
	"github.com/huddleeco/siteforge/services/forge/tiers"
)

// Artifact names the three deployable units produced per job.
const (
	ArtifactSite      = "site"
	ArtifactAdmin     = "admin"
	ArtifactCompanion = "companion"
)

const defaultTheme = "harbor"

var defaultPages = []string{"home", "about", "contact"}

// Output is one job's generated content, keyed by artifact.
type Output struct {
	// Files maps artifact name to its repo file set (relative path
	// to content).
	Files map[string]map[string]string

	// Modules is the resolved, shippable admin module list in
	// dependency order.
	Modules []string

	// Tier is the admin tier actually applied ("pro"), after any
	// auto-suggestion.
	Tier string

	// TierSource records how the tier was chosen when AdminTier was
	// "auto"; empty for explicit tiers.
	TierSource string

	// Pages are the page identifiers generated for the site.
	Pages []string

	// GeneratedAt timestamps the run.
	GeneratedAt time.Time
}

// Generator expands job descriptors into project file trees.
type Generator struct {
	registry *modules.Registry
	resolver *modules.Resolver
	engine   *tiers.Engine
	logger   *logging.Logger
}

// New creates a Generator. All collaborators are required.
func New(registry *modules.Registry, engine *tiers.Engine, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{
		registry: registry,
		resolver: modules.NewResolver(registry, logger),
		engine:   engine,
		logger:   logger,
	}
}

// Generate produces the full Output for one job. The admin bundle is
// the union of the tier's modules and the explicitly requested ones,
// expanded and ordered by the resolver, with platform-internal
// modules excluded from the shipped set.
func (g *Generator) Generate(job datatypes.JobDescriptor) (*Output, error) {
	if job.Name == "" {
		return nil, fmt.Errorf("generator: job %s has no name", job.ID)
	}

	out := &Output{
		Files:       make(map[string]map[string]string, 3),
		Pages:       job.Pages,
		GeneratedAt: time.Now(),
	}
	if len(out.Pages) == 0 {
		out.Pages = defaultPages
	}

	tier, source, tierMods := g.pickTier(job)
	out.Tier = tier
	out.TierSource = source

	requested := append(append([]string(nil), tierMods...), job.Modules...)
	ordered, dropped := g.resolver.Resolve(requested)
	if len(dropped) > 0 {
		g.logger.Warn("unknown modules dropped from admin bundle",
			"job", job.ID, "dropped", strings.Join(dropped, ","))
	}
	out.Modules = g.resolver.Shippable(ordered)

	site, err := g.renderSite(job, out)
	if err != nil {
		return nil, fmt.Errorf("generator: site for %s: %w", job.ID, err)
	}
	out.Files[ArtifactSite] = site

	admin, err := g.renderAdmin(job, out)
	if err != nil {
		return nil, fmt.Errorf("generator: admin for %s: %w", job.ID, err)
	}
	out.Files[ArtifactAdmin] = admin

	companion, err := g.renderCompanion(job, out)
	if err != nil {
		return nil, fmt.Errorf("generator: companion for %s: %w", job.ID, err)
	}
	out.Files[ArtifactCompanion] = companion

	return out, nil
}

// WriteTo materializes the output under dir, one subdirectory per
// artifact. Existing files are overwritten.
func (g *Generator) WriteTo(dir string, out *Output) error {
	for artifact, files := range out.Files {
		for rel, content := range files {
			path := filepath.Join(dir, artifact, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
				return fmt.Errorf("generator: mkdir for %s: %w", rel, err)
			}
			if err := os.WriteFile(path, []byte(content), 0640); err != nil {
				return fmt.Errorf("generator: write %s: %w", rel, err)
			}
		}
	}
	return nil
}

// pickTier resolves the admin tier: explicit tiers pass through,
// "auto" (or empty) consults the suggestion engine.
func (g *Generator) pickTier(job datatypes.JobDescriptor) (tier, source string, mods []string) {
	if job.AdminTier != "" && job.AdminTier != "auto" {
		if mods, ok := g.engine.TierModules(job.AdminTier); ok {
			return job.AdminTier, "", mods
		}
		g.logger.Warn("unknown admin tier, falling back to suggestion",
			"job", job.ID, "tier", job.AdminTier)
	}
	suggestion := g.engine.Suggest(job.Industry, job.Tagline)
	return suggestion.Tier, suggestion.Source, suggestion.Modules
}

// templateData is the single context handed to every template.
type templateData struct {
	Job     datatypes.JobDescriptor
	Theme   string
	Pages   []string
	Modules []string
	Tier    string
	Year    int
}

func (g *Generator) data(job datatypes.JobDescriptor, out *Output) templateData {
	theme := job.Theme
	if theme == "" {
		theme = defaultTheme
	}
	return templateData{
		Job:     job,
		Theme:   theme,
		Pages:   out.Pages,
		Modules: out.Modules,
		Tier:    out.Tier,
		Year:    out.GeneratedAt.Year(),
	}
}

func (g *Generator) renderSite(job datatypes.JobDescriptor, out *Output) (map[string]string, error) {
	data := g.data(job, out)
	files := make(map[string]string, len(out.Pages)+2)

	for _, page := range out.Pages {
		body, err := render(pageTemplate, struct {
			templateData
			Page string
		}{data, page})
		if err != nil {
			return nil, fmt.Errorf("page %s: %w", page, err)
		}
		name := "index.html"
		if page != "home" {
			name = page + ".html"
		}
		files[name] = body
	}

	cfg, err := siteConfig(job, out)
	if err != nil {
		return nil, err
	}
	files["site.config.json"] = cfg

	css, err := render(stylesTemplate, data)
	if err != nil {
		return nil, err
	}
	files["styles.css"] = css

	return files, nil
}

func (g *Generator) renderAdmin(job datatypes.JobDescriptor, out *Output) (map[string]string, error) {
	data := g.data(job, out)
	files := make(map[string]string, 2)

	body, err := render(adminTemplate, data)
	if err != nil {
		return nil, err
	}
	files["index.html"] = body

	manifest := struct {
		Business string   `json:"business"`
		Tier     string   `json:"tier"`
		Modules  []string `json:"modules"`
	}{job.Name, out.Tier, out.Modules}
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	files["admin.config.json"] = string(encoded)

	return files, nil
}

func (g *Generator) renderCompanion(job datatypes.JobDescriptor, out *Output) (map[string]string, error) {
	body, err := render(companionTemplate, g.data(job, out))
	if err != nil {
		return nil, err
	}
	return map[string]string{"index.html": body}, nil
}

func siteConfig(job datatypes.JobDescriptor, out *Output) (string, error) {
	cfg := struct {
		Name        string    `json:"name"`
		Industry    string    `json:"industry,omitempty"`
		Tagline     string    `json:"tagline,omitempty"`
		Location    string    `json:"location,omitempty"`
		Theme       string    `json:"theme"`
		Pages       []string  `json:"pages"`
		AdminTier   string    `json:"adminTier"`
		GeneratedAt time.Time `json:"generatedAt"`
	}{
		Name:        job.Name,
		Industry:    job.Industry,
		Tagline:     job.Tagline,
		Location:    job.Location,
		Theme:       job.Theme,
		Pages:       out.Pages,
		AdminTier:   out.Tier,
		GeneratedAt: out.GeneratedAt,
	}
	if cfg.Theme == "" {
		cfg.Theme = defaultTheme
	}
	encoded, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en" data-theme="{{.Theme}}">
<head>
  <meta charset="utf-8">
  <title>{{.Job.Name}}{{if ne .Page "home"}} | {{.Page}}{{end}}</title>
  <link rel="stylesheet" href="styles.css">
</head>
<body>
  <header>
    <h1>{{.Job.Name}}</h1>
    {{- if .Job.Tagline}}
    <p class="tagline">{{.Job.Tagline}}</p>
    {{- end}}
    <nav>
      {{- range .Pages}}
      <a href="{{if eq . "home"}}index{{else}}{{.}}{{end}}.html">{{.}}</a>
      {{- end}}
    </nav>
  </header>
  <main data-page="{{.Page}}"></main>
  <footer>
    {{- if .Job.Location}}
    <p>{{.Job.Location}}</p>
    {{- end}}
    <p>&copy; {{.Year}} {{.Job.Name}}</p>
  </footer>
</body>
</html>
`))

var stylesTemplate = template.Must(template.New("styles").Parse(`:root[data-theme="{{.Theme}}"] {
  --page-max-width: 960px;
}
body {
  margin: 0 auto;
  max-width: var(--page-max-width);
  font-family: system-ui, sans-serif;
}
`))

var adminTemplate = template.Must(template.New("admin").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Job.Name}} admin</title>
</head>
<body>
  <h1>{{.Job.Name}} dashboard ({{.Tier}})</h1>
  <ul id="modules">
    {{- range .Modules}}
    <li data-module="{{.}}">{{.}}</li>
    {{- end}}
  </ul>
</body>
</html>
`))

var companionTemplate = template.Must(template.New("companion").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{.Job.Name}} companion</title>
</head>
<body>
  <h1>{{.Job.Name}}</h1>
  <p>Companion app for {{.Job.Name}}{{if .Job.Location}} in {{.Job.Location}}{{end}}.</p>
</body>
</html>
`))
