package usecase

import (
	"fmt"

	"TrendScanner/internal/domain/models"
	domsvc "TrendScanner/internal/domain/service"
	"TrendScanner/internal/services/indicators"
	"TrendScanner/internal/services/macro"
	"TrendScanner/internal/services/risk"
	"TrendScanner/internal/services/setup"
	"TrendScanner/pkg/logger"
)

// Analyzer runs one instrument through indicators, classification and the
// risk filter with a single parameter set.
type Analyzer struct {
	Params     models.EngineParams
	Engine     domsvc.IndicatorEngine
	Classifier domsvc.SetupClassifier
	Risk       domsvc.RiskFilter
	Calendar   domsvc.MacroCalendar
}

// NewAnalyzer wires the stock services for params.
func NewAnalyzer(params models.EngineParams, log *logger.Logger, calOpts ...macro.Option) (*Analyzer, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("preset %q: %w", params.Name, err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	calOpts = append([]macro.Option{macro.WithLogger(log)}, calOpts...)
	return &Analyzer{
		Params:     params,
		Engine:     indicators.NewEngine(params),
		Classifier: setup.NewClassifier(params),
		Risk:       risk.NewFilter(params, log),
		Calendar:   macro.NewCalendar(params, calOpts...),
	}, nil
}

// Analyze classifies series and applies the risk veto.
func (a *Analyzer) Analyze(series models.PriceSeries) (models.ClassificationRecord, error) {
	snap, err := a.Engine.Snapshot(series)
	if err != nil {
		return models.ClassificationRecord{}, err
	}
	rec, err := a.Classifier.Classify(series.Ticker, snap)
	if err != nil {
		return models.ClassificationRecord{}, err
	}
	rec.RiskApproved, rec.RiskVetoReason = a.Risk.Evaluate(rec.Trend, snap)
	return rec, nil
}

// Analyzers holds one analyzer per preset name.
type Analyzers map[string]*Analyzer

// NewAnalyzers builds an analyzer for every preset.
func NewAnalyzers(presets models.Presets, log *logger.Logger, calOpts ...macro.Option) (Analyzers, error) {
	out := make(Analyzers, len(presets))
	for name, p := range presets {
		p.Name = name
		a, err := NewAnalyzer(p, log, calOpts...)
		if err != nil {
			return nil, err
		}
		out[name] = a
	}
	return out, nil
}

// Get resolves an analyzer; an empty name selects the default preset.
func (as Analyzers) Get(name string) (*Analyzer, error) {
	if name == "" {
		name = models.PresetDefault
	}
	a, ok := as[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownPreset, name)
	}
	return a, nil
}
