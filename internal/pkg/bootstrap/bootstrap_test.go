package bootstrap_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"flashdeal/internal/pkg/bootstrap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_StopsInReverseOrder(t *testing.T) {
	var lc bootstrap.Lifecycle
	var order []string
	boom := errors.New("boom")

	for _, name := range []string{"tracer", "kafka", "pool", "consumer"} {
		name := name
		lc.Append(name, func(context.Context) error {
			order = append(order, name)
			if name == "pool" {
				return boom
			}
			return nil
		})
	}

	err := lc.Stop(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"consumer", "pool", "kafka", "tracer"}, order)

	// 第二次 Stop 不会重复执行
	require.NoError(t, lc.Stop(context.Background()))
	assert.Len(t, order, 4)
}

func TestNewRouter(t *testing.T) {
	r := bootstrap.NewRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
