// Package dashboard renders a static HTML status page from the
// collected data.
package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/apiobserve/collector/pkg/analyze"
	"github.com/apiobserve/collector/pkg/config"
	"github.com/apiobserve/collector/pkg/entity"
	"github.com/apiobserve/collector/pkg/errors"
	"github.com/apiobserve/collector/pkg/store"
)

// Publisher delivers a rendered page to wherever it is served from.
type Publisher interface {
	Publish(ctx context.Context, content []byte, contentType string) error
}

// PageData is the template input.
type PageData struct {
	GeneratedAt    string
	LookbackDays   int
	TotalRecords   int
	IssueRecords   int
	SuccessRate    string
	LatestAnalysis string
	HasAnalysis    bool
}

// Builder aggregates store contents into a status page.
type Builder struct {
	cfg       *config.AnalysisConfig
	partition string
	store     store.EntityStore
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewBuilder wires a Builder over the given store and publisher.
func NewBuilder(cfg *config.AnalysisConfig, partition string, st store.EntityStore, p Publisher, logger *zap.Logger) *Builder {
	return &Builder{
		cfg:       cfg,
		partition: partition,
		store:     st,
		publisher: p,
		logger:    logger,
		now:       time.Now,
	}
}

// Run renders the page from current store contents and publishes it.
func (b *Builder) Run(ctx context.Context) error {
	data, err := b.collect(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to render dashboard")
	}

	if err := b.publisher.Publish(ctx, buf.Bytes(), "text/html"); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to publish dashboard")
	}

	b.logger.Info("published dashboard",
		zap.Int("total_records", data.TotalRecords),
		zap.Int("issue_records", data.IssueRecords))
	return nil
}

func (b *Builder) collect(ctx context.Context) (*PageData, error) {
	cutoff := b.now().UTC().AddDate(0, 0, -b.cfg.LookbackDays)

	recent, err := b.store.QueryEntities(ctx, b.partition, func(e *entity.Entity) bool {
		return inWindow(e, cutoff)
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read records for dashboard")
	}

	issues := 0
	for _, e := range recent {
		if b.isIssue(e) {
			issues++
		}
	}

	data := &PageData{
		GeneratedAt:  b.now().UTC().Format(time.RFC3339),
		LookbackDays: b.cfg.LookbackDays,
		TotalRecords: len(recent),
		IssueRecords: issues,
		SuccessRate:  successRate(len(recent), issues),
	}

	analyses, err := b.store.ListEntities(ctx, analyze.AnalysisPartition)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read stored analyses")
	}
	if len(analyses) > 0 {
		// Row keys are generation timestamps, so the last one sorts latest.
		latest := analyses[len(analyses)-1]
		data.LatestAnalysis = latest.Attributes["summary"]
		data.HasAnalysis = true
	}

	return data, nil
}

// isIssue uses the same containment matching as the analyzer's record
// filter.
func (b *Builder) isIssue(e *entity.Entity) bool {
	if b.cfg.FilterField == "" {
		return false
	}
	v, ok := e.Attributes[b.cfg.FilterField]
	if !ok {
		return false
	}
	for _, want := range b.cfg.FilterValues {
		if strings.Contains(v, strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

func inWindow(e *entity.Entity, cutoff time.Time) bool {
	raw, ok := e.Attributes[entity.FetchedAtField]
	if !ok {
		return true
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return true
	}
	return !ts.Before(cutoff)
}

func successRate(total, issues int) string {
	if total == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(total-issues)/float64(total)*100)
}

var pageTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>API Collection Status</title>
  <style>
    body { font-family: sans-serif; margin: 2rem auto; max-width: 48rem; color: #222; }
    .cards { display: flex; gap: 1rem; }
    .card { flex: 1; border: 1px solid #ddd; border-radius: 6px; padding: 1rem; }
    .card .value { font-size: 2rem; font-weight: bold; }
    .issues .value { color: #b00020; }
    pre { background: #f6f6f6; padding: 1rem; border-radius: 6px; white-space: pre-wrap; }
    footer { color: #777; font-size: 0.8rem; margin-top: 2rem; }
  </style>
</head>
<body>
  <h1>API Collection Status</h1>
  <p>Last {{.LookbackDays}} days</p>
  <div class="cards">
    <div class="card"><div class="value">{{.TotalRecords}}</div>records collected</div>
    <div class="card issues"><div class="value">{{.IssueRecords}}</div>issues</div>
    <div class="card"><div class="value">{{.SuccessRate}}</div>success rate</div>
  </div>
{{if .HasAnalysis}}
  <h2>Latest analysis</h2>
  <pre>{{.LatestAnalysis}}</pre>
{{end}}
  <footer>Generated {{.GeneratedAt}}</footer>
</body>
</html>
`))
