// Package normalizer applies a columns configuration to a table.Frame.
//
// A run walks five phases in a fixed order: align columns to the
// configuration (rename alias headers, reorder), convert configured
// missing-value markers, apply the grouped normalization steps, convert
// markers again (steps can mint fresh marker values), then fill missing
// cells. Configuration problems are fatal before the table is touched;
// per-column and per-group problems during a run are logged and skipped
// so a run always hands back a frame.
package normalizer

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tablenorm/internal/config"
	"tablenorm/internal/metrics"
	"tablenorm/internal/table"
)

// ErrNoConfig is returned by Run when the engine was built without a
// columns configuration.
var ErrNoConfig = errors.New("normalizer: run without a columns configuration")

// Engine executes normalization runs against one configuration.
type Engine struct {
	conf *config.ColumnsConfig
	log  *zap.Logger
}

// New builds an engine. conf may be nil; Run will then fail with
// ErrNoConfig. A nil logger disables logging.
func New(conf *config.ColumnsConfig, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{conf: conf, log: log}
}

// Run normalizes the frame in place and returns it together with a run
// report. The only fatal failure is a missing configuration; everything
// else degrades to logged skips.
func (e *Engine) Run(f *table.Frame) (*table.Frame, *Report, error) {
	if e.conf == nil {
		metrics.Inc("norm_runs_total", 1, metrics.Labels{"status": "error"})
		return nil, nil, ErrNoConfig
	}

	start := time.Now()
	rep := &Report{
		RunID:   uuid.NewString(),
		Config:  e.conf.Meta.Name,
		Rows:    f.NumRows(),
		Columns: f.NumCols(),
	}
	log := e.log.With(
		zap.String("run_id", rep.RunID),
		zap.String("config", rep.Config),
	)
	log.Info("normalization run starting",
		zap.Int("rows", rep.Rows),
		zap.Int("columns", rep.Columns),
	)

	phase := func(name string, fn func()) {
		t := time.Now()
		fn()
		d := time.Since(t)
		metrics.Observe("norm_phase_duration_seconds", d.Seconds(), metrics.Labels{"phase": name})
		log.Debug("phase complete",
			zap.String("phase", name),
			zap.Duration("duration", d.Truncate(time.Microsecond)),
		)
	}

	phase("align", func() { rep.Renamed = e.alignColumns(f, log) })
	phase("convert_na_pre", func() { rep.NAConvertedPre = e.convertNA(f, "pre", log) })
	phase("apply", func() { rep.GroupsApplied, rep.GroupsSkipped = e.applyGroups(f, log) })
	phase("convert_na_post", func() { rep.NAConvertedPost = e.convertNA(f, "post", log) })
	phase("fill", func() { rep.CellsFilled = e.fillNA(f, log) })

	rep.Duration = time.Since(start)
	metrics.Inc("norm_runs_total", 1, metrics.Labels{"status": "ok"})
	log.Info("normalization run complete",
		zap.Int("groups_applied", rep.GroupsApplied),
		zap.Int("groups_skipped", rep.GroupsSkipped),
		zap.Int("na_converted", rep.NAConvertedPre+rep.NAConvertedPost),
		zap.Int("cells_filled", rep.CellsFilled),
		zap.Duration("duration", rep.Duration.Truncate(time.Millisecond)),
	)
	return f, rep, nil
}

// alignColumns renames alias headers to their primary column name and
// reorders the frame: configured columns first in declaration order,
// unconfigured columns after in their incoming order. Returns the number
// of renames.
func (e *Engine) alignColumns(f *table.Frame, log *zap.Logger) int {
	renamed := 0
	for _, name := range f.Names() {
		col, err := e.conf.Get(name)
		if err != nil || col.Name == name {
			continue
		}
		if err := f.Rename(name, col.Name); err != nil {
			log.Warn("cannot rename alias header, leaving as is",
				zap.String("header", name),
				zap.String("column", col.Name),
				zap.Error(err),
			)
			continue
		}
		log.Debug("renamed alias header",
			zap.String("header", name),
			zap.String("column", col.Name),
		)
		renamed++
	}

	order := make([]string, 0, f.NumCols())
	for _, name := range e.conf.Names() {
		if f.Has(name) {
			order = append(order, name)
		}
	}
	for _, name := range f.Names() {
		c, err := e.conf.Get(name)
		if err != nil || c.Name != name {
			// Unconfigured column, or an alias header that could not be
			// renamed; keep it after the configured block.
			order = append(order, name)
		}
	}
	if err := f.Reorder(order); err != nil {
		log.Warn("column reorder failed", zap.Error(err))
	}
	return renamed
}

// applyGroups walks the execution plan and dispatches each step group to
// its routine. Unknown methods and fully absent column groups are logged
// and skipped.
func (e *Engine) applyGroups(f *table.Frame, log *zap.Logger) (applied, skipped int) {
	for _, g := range e.conf.GroupByNormalization() {
		fn, ok := routines[g.Spec.Method]
		if !ok {
			log.Warn("unknown normalization method, skipping group",
				zap.String("method", g.Spec.Method),
				zap.Strings("columns", g.Columns),
			)
			metrics.Inc("norm_groups_total", 1, metrics.Labels{"status": "skipped"})
			skipped++
			continue
		}

		present := make([]string, 0, len(g.Columns))
		for _, name := range g.Columns {
			if f.Has(name) {
				present = append(present, name)
				continue
			}
			log.Warn("configured column missing from table",
				zap.String("column", name),
				zap.String("method", g.Spec.Method),
			)
		}
		if len(present) == 0 {
			metrics.Inc("norm_groups_total", 1, metrics.Labels{"status": "skipped"})
			skipped++
			continue
		}

		log.Debug("applying normalization step",
			zap.String("step", g.Spec.Hash()),
			zap.Strings("columns", present),
		)
		f = fn(e, f, present, g.Spec.ParamsMap())
		metrics.Inc("norm_groups_total", 1, metrics.Labels{"status": "applied"})
		applied++
	}
	return applied, skipped
}
