package query

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/dexplorer/internal/application/results"
	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/pkg/logger"
)

func tsValSchema() domain.Schema {
	return domain.Schema{ColumnSchemas: []domain.SchemaColumn{
		{Name: "ts", DataType: "Timestamp"},
		{Name: "val", DataType: "Int64"},
	}}
}

func recordsItem(schema domain.Schema, rows ...[]any) domain.Output {
	if rows == nil {
		rows = [][]any{}
	}
	return domain.Output{Records: &domain.RecordsOutput{Schema: schema, Rows: rows}}
}

func affectedItem(n int) domain.Output {
	return domain.Output{AffectedRows: &n}
}

func newService(backend *stubBackend) (*Service, *results.Store, *stubNotifier) {
	store := results.NewStore()
	notifier := &stubNotifier{}
	svc := &Service{
		Backend:   backend,
		Results:   store,
		Notifier:  notifier,
		TimeRange: stubRange{window: domain.PromRange{Start: 0, End: 3600, Step: "30s"}},
		Logger:    logger.NewStd(false),
		Now:       func() time.Time { return time.Unix(1_700_000_000, 0) },
	}
	return svc, store, notifier
}

func TestExecuteSelectOne(t *testing.T) {
	backend := &stubBackend{resp: domain.ExecutionResponse{
		Output: []domain.Output{recordsItem(tsValSchema(), []any{1_700_000_000_000, 1})},
	}}
	svc, store, notifier := newService(backend)

	out, err := svc.Execute(domain.ExecuteRequest{Code: "SELECT 1", Kind: domain.KindSQL})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeRecord, out.Kind)
	require.NotNil(t, out.Record)
	assert.Equal(t, []domain.Dimension{{Name: "ts"}, {Name: "val"}}, out.Record.DimensionsAndXName.Dimensions)
	assert.Equal(t, "ts", out.Record.DimensionsAndXName.XName)
	assert.Equal(t, domain.KindSQL, out.Record.Type)
	assert.Equal(t, 1, store.Len())

	require.NotNil(t, out.Log)
	require.Len(t, out.Log.Results, 1)
	require.NotNil(t, out.Log.Results[0].Records)
	assert.Equal(t, 1, *out.Log.Results[0].Records)
	assert.Nil(t, out.Log.Results[0].AffectedRows)
	assert.Equal(t, "SELECT 1", out.Log.CodeInfo)
	assert.Nil(t, out.Log.PromInfo)

	assert.Equal(t, []string{"sql"}, backend.calls)
	assert.Equal(t, []string{domain.RunSuccessMessage}, notifier.messages)
	assert.Equal(t, domain.DefaultNotifyDuration, notifier.durations[0])
}

func TestExecuteSkipSaveReturnsRecordWithoutStoring(t *testing.T) {
	backend := &stubBackend{resp: domain.ExecutionResponse{
		Output: []domain.Output{recordsItem(tsValSchema(), []any{1, 2})},
	}}
	svc, store, _ := newService(backend)

	out, err := svc.Execute(domain.ExecuteRequest{Code: "SELECT 1", Kind: domain.KindSQL, SkipSave: true})
	require.NoError(t, err)
	require.NotNil(t, out.Record)
	assert.Equal(t, 0, store.Len())
}

func TestExecuteZeroRowsSkipsDerivation(t *testing.T) {
	backend := &stubBackend{resp: domain.ExecutionResponse{
		Output: []domain.Output{recordsItem(tsValSchema())},
	}}
	svc, store, _ := newService(backend)

	out, err := svc.Execute(domain.ExecuteRequest{Code: "SELECT * FROM empty", Kind: domain.KindSQL})
	require.NoError(t, err)
	require.NotNil(t, out.Record)
	assert.Empty(t, out.Record.DimensionsAndXName.Dimensions)
	assert.Equal(t, "", out.Record.DimensionsAndXName.XName)
	assert.Equal(t, 0, *out.Log.Results[0].Records)
	assert.Equal(t, 1, store.Len())
}

func TestExecuteAffectedRowsOnly(t *testing.T) {
	backend := &stubBackend{resp: domain.ExecutionResponse{
		Output:          []domain.Output{affectedItem(3)},
		ExecutionTimeMS: 12,
	}}
	svc, store, _ := newService(backend)

	out, err := svc.Execute(domain.ExecuteRequest{Code: "INSERT ...", Kind: domain.KindSQL})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoRecord, out.Kind)
	assert.Nil(t, out.Record)
	require.Len(t, out.Log.Results, 1)
	assert.Equal(t, 3, *out.Log.Results[0].AffectedRows)
	assert.Equal(t, int64(12), out.Log.ExecutionTimeMS)
	assert.Equal(t, 0, store.Len())
}

func TestExecuteMultipleRecordSetsReturnsLastStoresAll(t *testing.T) {
	first := domain.Schema{ColumnSchemas: []domain.SchemaColumn{{Name: "a", DataType: "Int32"}}}
	backend := &stubBackend{resp: domain.ExecutionResponse{
		Output: []domain.Output{
			recordsItem(first, []any{1}),
			affectedItem(2),
			recordsItem(tsValSchema(), []any{1, 2}, []any{3, 4}),
		},
	}}
	svc, store, _ := newService(backend)

	out, err := svc.Execute(domain.ExecuteRequest{Code: "multi", Kind: domain.KindSQL})
	require.NoError(t, err)

	stored := store.Results()
	require.Len(t, stored, 2)
	assert.Less(t, stored[0].Key, stored[1].Key)
	assert.Equal(t, stored[1].Key, out.Record.Key)
	assert.Equal(t, "ts", out.Record.DimensionsAndXName.XName)

	require.Len(t, out.Log.Results, 3)
	assert.Equal(t, 1, *out.Log.Results[0].Records)
	assert.Equal(t, 2, *out.Log.Results[1].AffectedRows)
	assert.Equal(t, 2, *out.Log.Results[2].Records)
}

func TestExecuteMultipleRecordSetsWithSkipSave(t *testing.T) {
	backend := &stubBackend{resp: domain.ExecutionResponse{
		Output: []domain.Output{
			recordsItem(tsValSchema(), []any{1, 2}),
			recordsItem(tsValSchema(), []any{1, 2}),
		},
	}}
	svc, store, _ := newService(backend)

	out, err := svc.Execute(domain.ExecuteRequest{Code: "multi", Kind: domain.KindSQL, SkipSave: true})
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 2, out.Record.Key)
}

func TestExecuteKeysIncreaseAcrossExecutions(t *testing.T) {
	backend := &stubBackend{resp: domain.ExecutionResponse{
		Output: []domain.Output{recordsItem(tsValSchema(), []any{1, 2})},
	}}
	svc, _, _ := newService(backend)

	prev := 0
	for i := 0; i < 5; i++ {
		out, err := svc.Execute(domain.ExecuteRequest{Code: "SELECT 1", Kind: domain.KindSQL})
		require.NoError(t, err)
		require.Greater(t, out.Record.Key, prev)
		prev = out.Record.Key
	}
}

func TestExecutePromQLAttachesPromInfo(t *testing.T) {
	backend := &stubBackend{resp: domain.ExecutionResponse{
		Output: []domain.Output{recordsItem(tsValSchema(), []any{1, 2})},
	}}
	svc, store, _ := newService(backend)

	out, err := svc.Execute(domain.ExecuteRequest{Code: "up", Kind: domain.KindPromQL})
	require.NoError(t, err)

	require.NotNil(t, out.Log.PromInfo)
	assert.Equal(t, time.Unix(0, 0).Format(domain.PromTimeFormat), out.Log.PromInfo.Start)
	assert.Equal(t, time.Unix(3600, 0).Format(domain.PromTimeFormat), out.Log.PromInfo.End)
	assert.Equal(t, "30s", out.Log.PromInfo.Step)
	assert.Equal(t, "up", out.Log.PromInfo.Query)
	assert.Equal(t, domain.PromRange{Start: 0, End: 3600, Step: "30s"}, backend.window)
	assert.Equal(t, domain.KindPromQL, store.Results()[0].Type)
}

func TestExecuteScriptUsesScriptEndpoint(t *testing.T) {
	backend := &stubBackend{resp: domain.ExecutionResponse{Output: []domain.Output{affectedItem(0)}}}
	svc, _, _ := newService(backend)

	out, err := svc.Execute(domain.ExecuteRequest{Code: "my_script", Kind: domain.KindScript})
	require.NoError(t, err)
	assert.Equal(t, []string{"script"}, backend.calls)
	assert.Nil(t, out.Log.PromInfo)
}

func TestExecuteStructuredFailureIsRecovered(t *testing.T) {
	backend := &stubBackend{err: &domain.BackendError{Code: 1004, Message: "syntax error", ExecutionTimeMS: 3}}
	svc, store, notifier := newService(backend)

	out, err := svc.Execute(domain.ExecuteRequest{Code: "SELEC 1", Kind: domain.KindSQL})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeRecoveredFailure, out.Kind)
	assert.Nil(t, out.Record)
	require.NotNil(t, out.Log)
	assert.Equal(t, domain.KindSQL, out.Log.Type)
	assert.Equal(t, "SELEC 1", out.Log.CodeInfo)
	assert.Equal(t, "syntax error", out.Log.Error)
	assert.Equal(t, 1004, out.Log.Code)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, notifier.messages)
}

func TestExecuteTransportFailureReturnsSentinel(t *testing.T) {
	backend := &stubBackend{err: errors.New("dial tcp 127.0.0.1:4000: connection refused")}
	svc, store, _ := newService(backend)

	out, err := svc.Execute(domain.ExecuteRequest{Code: "SELECT 1", Kind: domain.KindSQL})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeTransportFailure, out.Kind)
	assert.Equal(t, "error", out.Error)
	assert.Nil(t, out.Log)
	assert.Nil(t, out.Record)
	assert.Error(t, out.Cause)
	assert.Equal(t, 0, store.Len())
}

func TestExecuteTransportFailureStaysQuietWithoutVerbose(t *testing.T) {
	var logs bytes.Buffer
	svc, _, _ := newService(&stubBackend{err: errors.New("connection refused")})
	svc.Logger = logger.New(&logs, false)

	out, err := svc.Execute(domain.ExecuteRequest{Code: "SELECT 1", Kind: domain.KindSQL})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeTransportFailure, out.Kind)
	assert.Empty(t, logs.String())

	svc.Logger = logger.New(&logs, true)
	_, err = svc.Execute(domain.ExecuteRequest{Code: "SELECT 1", Kind: domain.KindSQL})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "connection refused")
}

func TestExecuteUnknownKind(t *testing.T) {
	svc, _, _ := newService(&stubBackend{})
	_, err := svc.Execute(domain.ExecuteRequest{Code: "x", Kind: "python"})
	assert.ErrorIs(t, err, domain.ErrUnknownQueryKind)
}

func TestExecuteRequiresDependencies(t *testing.T) {
	svc := &Service{}
	_, err := svc.Execute(domain.ExecuteRequest{Code: "x", Kind: domain.KindSQL})
	assert.Error(t, err)
}

func TestExecutePersistsHistory(t *testing.T) {
	backend := &stubBackend{resp: domain.ExecutionResponse{Output: []domain.Output{affectedItem(1)}}}
	svc, _, _ := newService(backend)
	hist := &stubHistory{}
	svc.History = hist
	svc.SessionID = "session-1"

	_, err := svc.Execute(domain.ExecuteRequest{Code: "DELETE ...", Kind: domain.KindSQL})
	require.NoError(t, err)
	require.Len(t, hist.saved, 1)
	assert.Equal(t, "session-1", hist.saved[0].SessionID)
	assert.Equal(t, "DELETE ...", hist.saved[0].CodeInfo)

	backend.err = errors.New("timeout")
	_, err = svc.Execute(domain.ExecuteRequest{Code: "SELECT 1", Kind: domain.KindSQL})
	require.NoError(t, err)
	assert.Len(t, hist.saved, 1, "transport failures carry no log entry")
}

func TestExecuteHistoryFailureDoesNotFailExecution(t *testing.T) {
	backend := &stubBackend{resp: domain.ExecutionResponse{Output: []domain.Output{affectedItem(1)}}}
	svc, _, _ := newService(backend)
	svc.History = &stubHistory{err: errors.New("disk full")}

	out, err := svc.Execute(domain.ExecuteRequest{Code: "DELETE ...", Kind: domain.KindSQL})
	require.NoError(t, err)
	assert.True(t, out.Succeeded())
}

func TestSaveScriptSuccess(t *testing.T) {
	backend := &stubBackend{resp: domain.ExecutionResponse{Code: 0, ExecutionTimeMS: 7}}
	svc, _, _ := newService(backend)

	saved, err := svc.SaveScript(context.Background(), "my_script", "print(1)", "")
	require.NoError(t, err)
	assert.Equal(t, domain.KindScript, saved.Type)
	assert.Equal(t, "my_script", saved.CodeInfo)
	assert.Equal(t, int64(7), saved.ExecutionTimeMS)
	assert.Equal(t, []string{"save"}, backend.calls)
}

func TestSaveScriptStructuredFailure(t *testing.T) {
	backend := &stubBackend{err: &domain.BackendError{Code: 1004, Message: "bad script"}}
	svc, _, _ := newService(backend)

	_, err := svc.SaveScript(context.Background(), "my_script", "print(", domain.KindScript)
	require.Error(t, err)

	var saveErr *domain.SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.JSONEq(t, `{"code":1004,"error":"bad script","execution_time_ms":0}`, err.Error())
}

func TestSaveScriptTransportFailure(t *testing.T) {
	backend := &stubBackend{err: errors.New("EOF")}
	svc, _, _ := newService(backend)

	_, err := svc.SaveScript(context.Background(), "my_script", "print(1)", domain.KindScript)
	require.Error(t, err)
	assert.Equal(t, "error", err.Error())
}

type stubBackend struct {
	resp   domain.ExecutionResponse
	err    error
	calls  []string
	window domain.PromRange
}

func (s *stubBackend) RunSQL(context.Context, string) (domain.ExecutionResponse, error) {
	s.calls = append(s.calls, "sql")
	return s.resp, s.err
}

func (s *stubBackend) RunScript(context.Context, string) (domain.ExecutionResponse, error) {
	s.calls = append(s.calls, "script")
	return s.resp, s.err
}

func (s *stubBackend) RunPromQL(_ context.Context, _ string, window domain.PromRange) (domain.ExecutionResponse, error) {
	s.calls = append(s.calls, "promql")
	s.window = window
	return s.resp, s.err
}

func (s *stubBackend) SaveScript(context.Context, string, string) (domain.ExecutionResponse, error) {
	s.calls = append(s.calls, "save")
	return s.resp, s.err
}

func (s *stubBackend) Health(context.Context) error { return s.err }

type stubNotifier struct {
	messages  []string
	durations []time.Duration
}

func (s *stubNotifier) Success(message string, duration time.Duration) {
	s.messages = append(s.messages, message)
	s.durations = append(s.durations, duration)
}

type stubRange struct {
	window domain.PromRange
}

func (s stubRange) PromRange() domain.PromRange { return s.window }

type stubHistory struct {
	saved []domain.LogEntry
	err   error
}

func (s *stubHistory) Save(_ context.Context, entry domain.LogEntry) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, entry)
	return nil
}

func (s *stubHistory) Records(context.Context, domain.HistoryFilter) ([]domain.LogEntry, error) {
	return s.saved, nil
}

func (s *stubHistory) Clear(context.Context) error                        { return nil }
func (s *stubHistory) ExportJSON(context.Context, string) error           { return nil }
func (s *stubHistory) PruneOlderThan(context.Context, int) (int64, error) { return 0, nil }
func (s *stubHistory) Path() string                                       { return "" }
