package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/ports"
)

// Service dispatches code to the backend and normalizes the response.
type Service struct {
	Backend   ports.Backend
	Results   ports.ResultRepository
	Notifier  ports.Notifier
	TimeRange ports.TimeRangeSource
	Logger    ports.Logger

	// History is optional; when set every log entry is persisted.
	History ports.HistoryRepository
	// SessionID tags persisted log entries.
	SessionID      string
	NotifyDuration time.Duration
	Now            func() time.Time
}

// Execute runs req.Code as req.Kind. Backend failures are reported through
// the returned Outcome; the error is reserved for caller mistakes.
func (s *Service) Execute(req domain.ExecuteRequest) (domain.Outcome, error) {
	if s.Backend == nil || s.Results == nil || s.Logger == nil {
		return domain.Outcome{}, errors.New("query.Service dependencies not satisfied")
	}
	if req.Kind == domain.KindPromQL && s.TimeRange == nil {
		return domain.Outcome{}, errors.New("query.Service: promQL requires a time range source")
	}

	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}

	s.Logger.Debug("dispatching code", map[string]interface{}{
		"kind":  string(req.Kind),
		"bytes": len(req.Code),
	})

	var (
		resp   domain.ExecutionResponse
		err    error
		window domain.PromRange
	)
	switch req.Kind {
	case domain.KindSQL:
		resp, err = s.Backend.RunSQL(ctx, req.Code)
	case domain.KindScript:
		resp, err = s.Backend.RunScript(ctx, req.Code)
	case domain.KindPromQL:
		window = s.TimeRange.PromRange()
		resp, err = s.Backend.RunPromQL(ctx, req.Code, window)
	default:
		return domain.Outcome{}, fmt.Errorf("%w: %q", domain.ErrUnknownQueryKind, req.Kind)
	}

	var outcome domain.Outcome
	if err != nil {
		outcome = s.failureOutcome(req, err)
	} else {
		outcome = s.successOutcome(req, resp, window)
	}

	if outcome.Log != nil {
		s.record(ctx, outcome.Log)
	}
	return outcome, nil
}

func (s *Service) successOutcome(req domain.ExecuteRequest, resp domain.ExecutionResponse, window domain.PromRange) domain.Outcome {
	if s.Notifier != nil {
		s.Notifier.Success(domain.RunSuccessMessage, s.notifyDuration())
	}

	log := &domain.LogEntry{
		CreatedAt:       s.now(),
		Type:            req.Kind,
		CodeInfo:        req.Code,
		Code:            resp.Code,
		ExecutionTimeMS: resp.ExecutionTimeMS,
		Results:         make([]domain.LogResult, 0, len(resp.Output)),
	}

	var record *domain.ResultRecord
	for _, item := range resp.Output {
		if item.Records != nil {
			rows := item.Records.RowCount()
			log.Results = append(log.Results, domain.RecordsResult(rows))

			dims := domain.EmptyDimensions()
			if rows != 0 {
				dims = domain.DeriveDimensions(item.Records.Schema.ColumnSchemas)
			}
			rec := domain.ResultRecord{
				Key:                s.Results.NextKey(),
				Type:               req.Kind,
				Records:            *item.Records,
				DimensionsAndXName: dims,
			}
			if !req.SkipSave {
				s.Results.Append(rec)
			}
			// Only the last record set is returned; all of them are stored.
			record = &rec
		}
		if item.AffectedRows != nil {
			log.Results = append(log.Results, domain.AffectedRowsResult(*item.AffectedRows))
		}
	}

	if req.Kind == domain.KindPromQL {
		log.PromInfo = window.Info(req.Code)
	}

	if record == nil {
		return domain.Outcome{Kind: domain.OutcomeNoRecord, Log: log}
	}
	return domain.Outcome{Kind: domain.OutcomeRecord, Log: log, Record: record}
}

func (s *Service) failureOutcome(req domain.ExecuteRequest, err error) domain.Outcome {
	be, ok := domain.AsBackendError(err)
	if !ok {
		s.Logger.Debug("execution transport failure", map[string]interface{}{
			"kind":  string(req.Kind),
			"cause": err.Error(),
		})
		return domain.Outcome{
			Kind:  domain.OutcomeTransportFailure,
			Error: domain.TransportFailureMessage,
			Cause: err,
		}
	}

	s.Logger.Info("backend rejected code", map[string]interface{}{
		"kind":  string(req.Kind),
		"code":  be.Code,
		"error": be.Message,
	})
	return domain.Outcome{
		Kind: domain.OutcomeRecoveredFailure,
		Log: &domain.LogEntry{
			CreatedAt:       s.now(),
			Type:            req.Kind,
			CodeInfo:        req.Code,
			Code:            be.Code,
			Error:           be.Message,
			ExecutionTimeMS: be.ExecutionTimeMS,
		},
	}
}

// SaveScript persists code under name. Unlike Execute, failures are returned
// as a *domain.SaveError.
func (s *Service) SaveScript(ctx context.Context, name, code string, kind domain.QueryKind) (domain.SavedScript, error) {
	if s.Backend == nil {
		return domain.SavedScript{}, errors.New("query.Service dependencies not satisfied")
	}
	if kind == "" {
		kind = domain.KindScript
	}
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := s.Backend.SaveScript(ctx, name, code)
	if err != nil {
		return domain.SavedScript{}, domain.NewSaveError(err)
	}
	return domain.SavedScript{
		Type:            kind,
		CodeInfo:        name,
		Code:            resp.Code,
		ExecutionTimeMS: resp.ExecutionTimeMS,
	}, nil
}

func (s *Service) record(ctx context.Context, entry *domain.LogEntry) {
	if s.History == nil {
		return
	}
	entry.SessionID = s.SessionID
	if err := s.History.Save(ctx, *entry); err != nil {
		s.Logger.Warn("history save failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) notifyDuration() time.Duration {
	if s.NotifyDuration <= 0 {
		return domain.DefaultNotifyDuration
	}
	return s.NotifyDuration
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Compile-time interface compliance check
var _ domain.QueryService = (*Service)(nil)
