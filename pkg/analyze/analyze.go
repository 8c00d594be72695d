// Package analyze summarizes recently collected records with a language
// model and stores the summary alongside the data.
package analyze

import (
	"context"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/apiobserve/collector/pkg/config"
	"github.com/apiobserve/collector/pkg/entity"
	"github.com/apiobserve/collector/pkg/errors"
	"github.com/apiobserve/collector/pkg/store"
)

// AnalysisPartition holds generated summaries, separate from raw data.
const AnalysisPartition = "AI_ANALYSIS"

// Summarizer turns a rendered prompt into a text summary.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Analyzer selects recent records, renders the prompt and stores the
// model's summary.
type Analyzer struct {
	cfg        *config.AnalysisConfig
	partition  string
	tsField    string
	store      store.EntityStore
	summarizer Summarizer
	logger     *zap.Logger
	now        func() time.Time
}

// NewAnalyzer wires an Analyzer over the given store and summarizer.
// timestampField names the record attribute used for window filtering;
// records without it fall back to their fetched_at stamp.
func NewAnalyzer(cfg *config.AnalysisConfig, partition, timestampField string, st store.EntityStore, s Summarizer, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		cfg:        cfg,
		partition:  partition,
		tsField:    timestampField,
		store:      st,
		summarizer: s,
		logger:     logger,
		now:        time.Now,
	}
}

// Run generates and stores one analysis. With no summarizer configured
// it logs and returns without error so scheduled runs stay green.
func (a *Analyzer) Run(ctx context.Context) error {
	if a.summarizer == nil {
		a.logger.Info("analysis not configured, skipping")
		return nil
	}

	records, err := a.selectRecords(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.logger.Info("no records matched the analysis window, skipping")
		return nil
	}

	prompt, err := a.renderPrompt(records)
	if err != nil {
		return err
	}

	summary, err := a.summarizer.Summarize(ctx, prompt)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeUpstream, "summarization failed")
	}

	generated := a.now().UTC()
	result := &entity.Entity{
		PartitionKey: AnalysisPartition,
		RowKey:       generated.Format("20060102T150405Z"),
		Attributes: map[string]string{
			"summary":      summary,
			"generated_at": generated.Format(time.RFC3339),
			"record_count": entity.Stringify(len(records)),
		},
	}
	if err := a.store.UpsertEntity(ctx, result); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to store analysis")
	}

	a.logger.Info("stored analysis",
		zap.String("row_key", result.RowKey),
		zap.Int("records", len(records)))
	return nil
}

// selectRecords applies the lookback window and the status filter, then
// samples down to the configured size.
func (a *Analyzer) selectRecords(ctx context.Context) ([]*entity.Entity, error) {
	cutoff := a.now().UTC().AddDate(0, 0, -a.cfg.LookbackDays)

	matched, err := a.store.QueryEntities(ctx, a.partition, func(e *entity.Entity) bool {
		return a.inWindow(e, cutoff) && a.matchesFilter(e)
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read records for analysis")
	}

	if a.cfg.SampleSize > 0 && len(matched) > a.cfg.SampleSize {
		matched = matched[:a.cfg.SampleSize]
	}
	return matched, nil
}

// inWindow keeps records whose timestamp falls inside the lookback
// window, preferring the record's own timestamp field over the
// fetched_at stamp. Records with an unparsable timestamp are kept so a
// format drift upstream never silently empties the analysis.
func (a *Analyzer) inWindow(e *entity.Entity, cutoff time.Time) bool {
	raw, ok := "", false
	if a.tsField != "" {
		raw, ok = e.Attributes[a.tsField]
	}
	if !ok {
		raw, ok = e.Attributes[entity.FetchedAtField]
	}
	if !ok {
		return true
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return true
	}
	return !ts.Before(cutoff)
}

// matchesFilter uses containment, not equality, so a composed status
// like "Error: timeout" still matches an "Error" filter value.
func (a *Analyzer) matchesFilter(e *entity.Entity) bool {
	if a.cfg.FilterField == "" || len(a.cfg.FilterValues) == 0 {
		return true
	}
	v, ok := e.Attributes[a.cfg.FilterField]
	if !ok {
		return false
	}
	for _, want := range a.cfg.FilterValues {
		if strings.Contains(v, strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

// renderPrompt substitutes the serialized records for the {data}
// placeholder in the configured template.
func (a *Analyzer) renderPrompt(records []*entity.Entity) (string, error) {
	rows := make([]map[string]string, 0, len(records))
	for _, e := range records {
		row := map[string]string{"row_key": e.RowKey}
		for k, v := range e.Attributes {
			row[k] = v
		}
		rows = append(rows, row)
	}
	data, err := gojson.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "failed to serialize records for prompt")
	}
	return strings.ReplaceAll(a.cfg.PromptTemplate, "{data}", string(data)), nil
}
