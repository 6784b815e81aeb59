package service

import (
	"context"
	"time"

	"moviequery/internal/metrics"
	"moviequery/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Executor runs a predicate against storage
type Executor interface {
	Execute(ctx context.Context, p *model.Predicate) ([]model.ResultRow, error)
}

// QueryService runs the classify, build, execute and format pipeline
type QueryService struct {
	classifier *IntentClassifier
	builder    *PredicateBuilder
	executor   Executor
	logger     zerolog.Logger
}

// NewQueryService creates a new query service
func NewQueryService(
	classifier *IntentClassifier,
	builder *PredicateBuilder,
	executor Executor,
	logger zerolog.Logger,
) *QueryService {
	return &QueryService{
		classifier: classifier,
		builder:    builder,
		executor:   executor,
		logger:     logger,
	}
}

// EmitFunc receives intermediate pipeline results as they become available
type EmitFunc func(event string, data any) error

// Run answers one natural language query. It never fails: any error leaves
// the response without rows, with Display set to NoResultsMessage and Error
// describing the cause.
func (s *QueryService) Run(ctx context.Context, raw string) *model.QueryResponse {
	return s.RunStream(ctx, raw, nil)
}

// RunStream is Run with the classified intent and the built predicate
// emitted before execution. A failing emit is logged and ignored.
func (s *QueryService) RunStream(ctx context.Context, raw string, emit EmitFunc) *model.QueryResponse {
	startTime := time.Now()
	resp := &model.QueryResponse{
		RequestID: uuid.NewString(),
		Query:     raw,
		Movies:    []model.ResultRow{},
		Overviews: []model.ResultRow{},
	}

	logger := s.logger.With().Str("request_id", resp.RequestID).Logger()
	ctx = logger.WithContext(ctx)

	defer func() {
		resp.Took = time.Since(startTime).Milliseconds()
		if resp.Display == "" {
			resp.Display = DisplayResults(resp.Movies, resp.Overviews)
		}
		event := logger.Info()
		if resp.Error != "" {
			event = logger.Warn().Str("error", resp.Error)
		}
		intent := ""
		if resp.Intent != nil {
			intent = string(resp.Intent.Intent)
		}
		metrics.QueriesTotal.WithLabelValues(intentLabel(intent), metrics.Outcome(resp.Error != "", resp.Empty())).Inc()
		event.Str("query", raw).
			Str("intent", intent).
			Int("movies", len(resp.Movies)).
			Int("overviews", len(resp.Overviews)).
			Int64("took_ms", resp.Took).
			Msg("Query completed")
	}()

	intentResult, err := s.classifier.Classify(ctx, raw)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Intent = intentResult
	s.emit(logger, emit, "intent", intentResult)

	predicate, err := s.builder.Build(intentResult)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Predicate = predicate
	s.emit(logger, emit, "predicate", predicate)

	rows, err := s.executor.Execute(ctx, predicate)
	if err != nil {
		logger.Error().Err(err).Msg("Query execution failed")
		resp.Error = err.Error()
		return resp
	}

	formatted := FormatRows(rows)
	if predicate.Projection == model.ProjectOverviews {
		resp.Overviews = formatted
	} else {
		resp.Movies = formatted
	}
	return resp
}

func (s *QueryService) emit(logger zerolog.Logger, emit EmitFunc, event string, data any) {
	if emit == nil {
		return
	}
	if err := emit(event, data); err != nil {
		logger.Debug().Err(err).Str("event", event).Msg("Failed to emit event")
	}
}

func intentLabel(intent string) string {
	if intent == "" {
		return "unclassified"
	}
	return intent
}
