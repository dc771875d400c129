package classify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vigil-triage/config"
	"vigil-triage/core/oracle"
	"vigil-triage/core/store"
	"vigil-triage/core/utils"
)

var (
	// ErrInsufficientInput means the report carries nothing to judge: no
	// text, no recognized fields, and no reachable oracle.
	ErrInsufficientInput = errors.New("insufficient input for classification")
	// ErrSuperseded means a newer classification for the same report
	// started while this one was in flight.
	ErrSuperseded = errors.New("classification superseded")
)

// LocalPublisher receives the optimistic prediction before the store write
// lands, so connected sessions see results without waiting on the database.
type LocalPublisher interface {
	PublishLocal(rec *store.PredictionRecord)
}

// Service runs the full triage pipeline for a report and owns the
// per-report generation counters that order concurrent classifications.
type Service struct {
	oracle      oracle.Client
	fallback    oracle.Client
	reports     store.ReportsStore
	predictions store.PredictionsStore
	audits      store.AuditStore
	publisher   LocalPublisher
	calibration config.CalibrationConfig
	writeTO     time.Duration
	logger      *utils.Logger

	mu          sync.Mutex
	generations map[string]uint64
	inFlight    map[string]context.CancelFunc
}

type ServiceDeps struct {
	Oracle      oracle.Client
	Fallback    oracle.Client
	Reports     store.ReportsStore
	Predictions store.PredictionsStore
	Audits      store.AuditStore
	Publisher   LocalPublisher
	Calibration config.CalibrationConfig
	WriteTO     time.Duration
	Logger      *utils.Logger
}

func NewService(deps ServiceDeps) *Service {
	if deps.Fallback == nil {
		deps.Fallback = oracle.NewHeuristic()
	}
	if deps.WriteTO <= 0 {
		deps.WriteTO = 10 * time.Second
	}
	return &Service{
		oracle:      deps.Oracle,
		fallback:    deps.Fallback,
		reports:     deps.Reports,
		predictions: deps.Predictions,
		audits:      deps.Audits,
		publisher:   deps.Publisher,
		calibration: deps.Calibration,
		writeTO:     deps.WriteTO,
		logger:      deps.Logger,
		generations: make(map[string]uint64),
		inFlight:    make(map[string]context.CancelFunc),
	}
}

// Classify runs the pipeline and returns the judgment that was shown to
// observers. The durable write happens in the background; its failure is
// logged, never surfaced to the reporter.
func (s *Service) Classify(ctx context.Context, rep *store.Report) (*store.PredictionRecord, error) {
	fs := EncodeFeatures(rep)
	if fs.Text == "" && fs.AllUnknown() && !s.oracle.Available() {
		return nil, ErrInsufficientInput
	}

	gen, callCtx := s.begin(ctx, rep.ID)
	defer s.finish(rep.ID, gen)

	req := oracle.Request{
		Text:   fs.Text,
		Fields: fs.OracleFields(),
		Signals: oracle.Signals{
			LifeThreatening: fs.Flags.LifeThreatening,
			ChildSafety:     fs.Flags.ChildSafety,
			Violence:        fs.Flags.Violence,
			Generic:         fs.Flags.Generic,
			WordCount:       fs.WordCount,
		},
	}
	result, err := s.oracle.Classify(callCtx, req)
	if err != nil {
		if callCtx.Err() != nil && ctx.Err() == nil {
			return nil, ErrSuperseded
		}
		s.logger.Infof("classify: oracle unavailable for report %s, using %s: %v", rep.ID, s.fallback.Name(), err)
		if s.audits != nil {
			s.audits.LogAction(ctx, "system", "oracle_fallback",
				fmt.Sprintf("report=%s reason=%v", rep.ID, err))
		}
		result, err = s.fallback.Classify(callCtx, req)
		if err != nil {
			return nil, err
		}
	}

	cal := Calibrate(result.Confidence, fs, s.calibration)
	outcome := ApplyOverrides(OverrideInput{
		Tier:          result.Tier,
		Confidence:    cal.Confidence,
		Probabilities: result.Probabilities,
		Flags:         fs.Flags,
		Generic:       cal.Generic,
		UnknownRatio:  fs.UnknownRatio(),
		ShortText:     fs.WordCount < s.calibration.ShortTextWords,
		UnknownLimit:  s.calibration.UnknownRatioLimit,
	})
	rec := &store.PredictionRecord{
		ReportID:       rep.ID,
		Generation:     gen,
		Tier:           outcome.Tier,
		Confidence:     outcome.Confidence,
		Probabilities:  outcome.Probabilities,
		Reasoning:      BuildReasoning(outcome, fs, cal, s.calibration.CaveatUnknownFields),
		Overridden:     outcome.Overridden,
		OverrideImmune: outcome.Immune,
		Current:        true,
		OriginatedAt:   time.Now().UTC(),
	}

	if !s.stillCurrent(rep.ID, gen) {
		return nil, ErrSuperseded
	}
	if s.publisher != nil {
		s.publisher.PublishLocal(rec)
	}
	go s.persist(rec)
	return rec, nil
}

// Reclassify reruns the pipeline for a stored report. The new generation
// supersedes any in-flight classification for the same report.
func (s *Service) Reclassify(ctx context.Context, reportID string) (*store.PredictionRecord, error) {
	rep, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return s.Classify(ctx, rep)
}

// begin bumps the report's generation and cancels any older in-flight
// oracle call for it.
func (s *Service) begin(ctx context.Context, reportID string) (uint64, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.inFlight[reportID]; ok {
		cancel()
	}
	s.generations[reportID]++
	gen := s.generations[reportID]
	callCtx, cancel := context.WithCancel(ctx)
	s.inFlight[reportID] = cancel
	return gen, callCtx
}

func (s *Service) finish(reportID string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[reportID] == gen {
		if cancel, ok := s.inFlight[reportID]; ok {
			cancel()
			delete(s.inFlight, reportID)
		}
	}
}

func (s *Service) stillCurrent(reportID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[reportID] == gen
}

func (s *Service) persist(rec *store.PredictionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTO)
	defer cancel()
	if err := s.predictions.MarkRequested(ctx, rec.ReportID, rec.OriginatedAt); err != nil {
		s.logger.Errorf("classify: mark requested failed for report %s: %v", rec.ReportID, err)
	}
	if err := s.predictions.UpsertPrediction(ctx, rec); err != nil {
		s.logger.Errorf("classify: persist failed for report %s gen %d: %v", rec.ReportID, rec.Generation, err)
	}
}
