package greptime

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/dexplorer/internal/domain"
)

type capturedRequest struct {
	method string
	path   string
	query  map[string]string
	form   map[string]string
	body   string
	user   string
	pass   string
}

func newTestServer(t *testing.T, status int, payload string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{query: map[string]string{}, form: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		for k := range r.URL.Query() {
			captured.query[k] = r.URL.Query().Get(k)
		}
		if r.Header.Get("content-type") == "application/x-www-form-urlencoded" {
			require.NoError(t, r.ParseForm())
			for k := range r.PostForm {
				captured.form[k] = r.PostForm.Get(k)
			}
		} else {
			raw, _ := io.ReadAll(r.Body)
			captured.body = string(raw)
		}
		captured.user, captured.pass, _ = r.BasicAuth()
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newTestClient(url string) *Client {
	cfg := domain.Config{Backend: domain.BackendSettings{URL: url, Database: "metrics"}}
	return NewClient(cfg, nil, nil)
}

func TestRunSQLDecodesRecordsAndAffectedRows(t *testing.T) {
	payload := `{
		"code": 0,
		"output": [
			{"records": {"schema": {"column_schemas": [
				{"name": "ts", "data_type": "TimestampMillisecond"},
				{"name": "val", "data_type": "Float64"}
			]}, "rows": [[1700000000000, 1.5]]}},
			{"affectedrows": 2}
		],
		"execution_time_ms": 4
	}`
	srv, captured := newTestServer(t, http.StatusOK, payload)
	client := newTestClient(srv.URL)

	resp, err := client.RunSQL(context.Background(), "SELECT * FROM cpu")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/v1/sql", captured.path)
	assert.Equal(t, "metrics", captured.query["db"])
	assert.Equal(t, "SELECT * FROM cpu", captured.form["sql"])

	require.Len(t, resp.Output, 2)
	require.NotNil(t, resp.Output[0].Records)
	assert.Equal(t, 1, resp.Output[0].Records.RowCount())
	assert.Equal(t, "TimestampMillisecond", resp.Output[0].Records.Schema.ColumnSchemas[0].DataType)
	require.NotNil(t, resp.Output[1].AffectedRows)
	assert.Equal(t, 2, *resp.Output[1].AffectedRows)
	assert.Equal(t, int64(4), resp.ExecutionTimeMS)
}

func TestRunPromQLSendsRange(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `{"code":0,"output":[]}`)
	client := newTestClient(srv.URL)

	_, err := client.RunPromQL(context.Background(), "rate(http_requests_total[5m])", domain.PromRange{Start: 100, End: 400, Step: "15s"})
	require.NoError(t, err)

	assert.Equal(t, "/v1/promql", captured.path)
	assert.Equal(t, "rate(http_requests_total[5m])", captured.form["query"])
	assert.Equal(t, "100", captured.form["start"])
	assert.Equal(t, "400", captured.form["end"])
	assert.Equal(t, "15s", captured.form["step"])
}

func TestRunScriptAndSaveScript(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `{"code":0,"output":[{"affectedrows":0}]}`)
	client := newTestClient(srv.URL)

	_, err := client.RunScript(context.Background(), "my_script")
	require.NoError(t, err)
	assert.Equal(t, "/v1/run-script", captured.path)
	assert.Equal(t, "my_script", captured.query["name"])

	_, err = client.SaveScript(context.Background(), "my_script", "@coprocessor\ndef f(): pass")
	require.NoError(t, err)
	assert.Equal(t, "/v1/scripts", captured.path)
	assert.Equal(t, "my_script", captured.query["name"])
	assert.Equal(t, "@coprocessor\ndef f(): pass", captured.body)
}

func TestStructuredErrorBecomesBackendError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusBadRequest, `{"code":1004,"error":"syntax error","execution_time_ms":1}`)
	client := newTestClient(srv.URL)

	_, err := client.RunSQL(context.Background(), "SELEC 1")
	require.Error(t, err)

	be, ok := domain.AsBackendError(err)
	require.True(t, ok)
	assert.Equal(t, 1004, be.Code)
	assert.Equal(t, "syntax error", be.Message)
	assert.Equal(t, http.StatusBadRequest, be.HTTPStatus)
}

func TestErrorFieldOnOKStatusIsStillBackendError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{"code":3000,"error":"table not found"}`)
	client := newTestClient(srv.URL)

	_, err := client.RunSQL(context.Background(), "SELECT * FROM nope")
	_, ok := domain.AsBackendError(err)
	assert.True(t, ok)
}

func TestEmptyErrorFieldIsBackendError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusOK} {
		_, err := decodeResponse(status, []byte(`{"code":1004,"error":""}`))
		be, ok := domain.AsBackendError(err)
		require.True(t, ok, "status %d", status)
		assert.Equal(t, 1004, be.Code)
		assert.Empty(t, be.Message)
	}
}

func TestUnstructuredFailuresAreTransportErrors(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusBadGateway, `<html>bad gateway</html>`)
	client := newTestClient(srv.URL)

	_, err := client.RunSQL(context.Background(), "SELECT 1")
	require.Error(t, err)
	_, ok := domain.AsBackendError(err)
	assert.False(t, ok)

	srv2, _ := newTestServer(t, http.StatusInternalServerError, `{}`)
	_, err = newTestClient(srv2.URL).RunSQL(context.Background(), "SELECT 1")
	require.Error(t, err)
	_, ok = domain.AsBackendError(err)
	assert.False(t, ok)
}

func TestConnectionRefusedIsTransportError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).RunSQL(context.Background(), "SELECT 1")
	require.Error(t, err)
	_, ok := domain.AsBackendError(err)
	assert.False(t, ok)
}

func TestContextCancellation(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{"code":0,"output":[]}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL).RunSQL(ctx, "SELECT 1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBasicAuthFromEnv(t *testing.T) {
	t.Setenv("TEST_GT_USER", "alice")
	t.Setenv("TEST_GT_PASS", "secret")
	srv, captured := newTestServer(t, http.StatusOK, `{"code":0,"output":[]}`)

	cfg := domain.Config{Backend: domain.BackendSettings{
		URL:            srv.URL,
		UsernameEnvVar: "TEST_GT_USER",
		PasswordEnvVar: "TEST_GT_PASS",
	}}
	_, err := NewClient(cfg, nil, nil).RunSQL(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "alice", captured.user)
	assert.Equal(t, "secret", captured.pass)
	assert.Equal(t, domain.DefaultDatabase, captured.query["db"])
}

func TestHealth(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `{}`)
	require.NoError(t, newTestClient(srv.URL).Health(context.Background()))
	assert.Equal(t, "/health", captured.path)
	assert.Equal(t, http.MethodGet, captured.method)

	bad, _ := newTestServer(t, http.StatusServiceUnavailable, `{}`)
	assert.Error(t, newTestClient(bad.URL).Health(context.Background()))
}
