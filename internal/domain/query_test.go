package domain_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/dexplorer/internal/domain"
)

func TestParseQueryKind(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want domain.QueryKind
	}{
		{"sql", domain.KindSQL},
		{"script", domain.KindScript},
		{"promQL", domain.KindPromQL},
		{"promql", domain.KindPromQL},
	} {
		got, err := domain.ParseQueryKind(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
		assert.True(t, got.Valid())
	}

	_, err := domain.ParseQueryKind("python")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownQueryKind)
	assert.False(t, domain.QueryKind("python").Valid())
}

func TestSaveErrorClassification(t *testing.T) {
	structured := domain.NewSaveError(&domain.BackendError{Code: 1004, Message: "invalid script"})
	assert.JSONEq(t, `{"code":1004,"error":"invalid script","execution_time_ms":0}`, structured.Error())

	cause := errors.New("dial tcp: connection refused")
	generic := domain.NewSaveError(fmt.Errorf("post: %w", cause))
	assert.Equal(t, "error", generic.Error())
	assert.ErrorIs(t, generic, cause)
}

func TestPromFormNormalize(t *testing.T) {
	form := domain.PromForm{IsRelative: true, Time: 0}.Normalize()
	assert.False(t, form.IsRelative)
	assert.Equal(t, domain.DefaultRelativeMinutes, form.Time)

	kept := domain.PromForm{IsRelative: true, Time: 15}.Normalize()
	assert.True(t, kept.IsRelative)
	assert.Equal(t, 15, kept.Time)
}

func TestPromFormResolve(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	rel := domain.PromForm{IsRelative: true, Time: 5, Step: "15s"}.Resolve(now)
	assert.Equal(t, int64(1_700_000_000-300), rel.Start)
	assert.Equal(t, int64(1_700_000_000), rel.End)
	assert.Equal(t, "15s", rel.Step)

	abs := domain.PromForm{Start: 10, End: 20, Step: "1s"}.Resolve(now)
	assert.Equal(t, domain.PromRange{Start: 10, End: 20, Step: "1s"}, abs)
}

func TestPromRangeInfo(t *testing.T) {
	r := domain.PromRange{Start: 0, End: 60, Step: "30s"}
	info := r.Info("up")
	assert.Equal(t, time.Unix(0, 0).Format(domain.PromTimeFormat), info.Start)
	assert.Equal(t, time.Unix(60, 0).Format(domain.PromTimeFormat), info.End)
	assert.Equal(t, "30s", info.Step)
	assert.Equal(t, "up", info.Query)
}
