// AngelaMos | 2026
// handler_test.go

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/carterperez-dev/leadboard/internal/core"
)

func newReportRouter(t *testing.T, store *fakeStore) http.Handler {
	t.Helper()

	r := chi.NewRouter()
	NewHandler(newTestService(t, store)).RegisterRoutes(r)
	return r
}

func call(h http.Handler, path string) (*httptest.ResponseRecorder, core.Response) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp core.Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, resp
}

func TestViewEndpoint(t *testing.T) {
	store := &fakeStore{respond: func(p mongo.Pipeline) ([]bson.M, error) {
		if isCount(p) {
			return []bson.M{{"total": int32(11)}}, nil
		}
		return []bson.M{{"name": "ann"}}, nil
	}}
	h := newReportRouter(t, store)

	rec, resp := call(h, "/reports/leads?page=2&limit=5&name=an")
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 11, data["totalRecords"])
	assert.EqualValues(t, 3, data["totalPages"])
	assert.EqualValues(t, 2, data["currentPage"])
}

func TestViewEndpointCSV(t *testing.T) {
	store := &fakeStore{respond: func(mongo.Pipeline) ([]bson.M, error) {
		return []bson.M{{"name": "ann", "email": "ann@x.com"}}, nil
	}}
	h := newReportRouter(t, store)

	rec, _ := call(h, "/reports/leads?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="leads.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "email,name\nann@x.com,ann\n", rec.Body.String())

	require.Len(t, store.calls, 1)
	assert.NotContains(t, stageNames(store.calls[0].pipeline), "$limit")
}

func TestReportEndpointErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		respond    func(mongo.Pipeline) ([]bson.M, error)
		wantStatus int
		wantCode   string
	}{
		{"unknown dataset", "/reports/secrets", nil, http.StatusNotFound, "NOT_FOUND"},
		{"bad format", "/reports/leads?format=xml", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad sort", "/reports/leads?sortBy=$where", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad range", "/reports/leads/credit-distribution?dateRange=yesterday", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"ungroupable field", "/reports/leads/counts/password", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{
			"store down", "/reports/leads/lead-summary",
			func(mongo.Pipeline) ([]bson.M, error) {
				return nil, fmt.Errorf("aggregate: %w: %w", core.ErrDependency, errors.New("no primary"))
			},
			http.StatusServiceUnavailable, "DEPENDENCY_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newReportRouter(t, &fakeStore{respond: tt.respond})

			rec, resp := call(h, tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestCountsEndpoint(t *testing.T) {
	store := &fakeStore{respond: func(mongo.Pipeline) ([]bson.M, error) {
		return []bson.M{{"_id": "google", "count": int32(2)}}, nil
	}}
	h := newReportRouter(t, store)

	rec, resp := call(h, "/reports/leads/counts/source?limit=5&dateRange=custom&startDate=2026-03-01&endDate=2026-03-02")
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]any)
	assert.Equal(t, []any{"google"}, data["labels"])

	p := store.lastPipeline(t)
	assert.Equal(t, int64(5), p[3][0].Value)
	_, ok := lookup(stageValue(t, p[0]), "createdAt")
	assert.True(t, ok)
}

func TestLeadSummaryDefaultsToThisWeek(t *testing.T) {
	store := &fakeStore{}
	h := newReportRouter(t, store)

	rec, resp := call(h, "/reports/leads/lead-summary")
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]any)
	assert.Len(t, data["labels"], 7)

	created, ok := lookup(stageValue(t, store.lastPipeline(t)[0]), "createdAt")
	require.True(t, ok)
	bounds := created.(bson.D)
	start, _ := lookup(bounds, "$gte")
	assert.True(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).Equal(start.(time.Time)))
}

func TestCreditDistributionEndpointWithoutRange(t *testing.T) {
	store := &fakeStore{}
	h := newReportRouter(t, store)

	rec, _ := call(h, "/reports/leads/credit-distribution")
	require.Equal(t, http.StatusOK, rec.Code)

	match := stageValue(t, store.lastPipeline(t)[0])
	_, ok := lookup(match, "createdAt")
	assert.False(t, ok)
}

func TestTimelineDefaultsToThisMonth(t *testing.T) {
	store := &fakeStore{respond: func(mongo.Pipeline) ([]bson.M, error) {
		return []bson.M{{"_id": "2026-03-02", "count": int32(5)}}, nil
	}}
	h := newReportRouter(t, store)

	rec, resp := call(h, "/reports/leads/timeline")
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]any)
	assert.Equal(t, []any{"2026-03-02"}, data["labels"])
	assert.Equal(t, []any{float64(5)}, data["counts"])

	created, ok := lookup(stageValue(t, store.lastPipeline(t)[0]), "createdAt")
	require.True(t, ok)
	start, _ := lookup(created.(bson.D), "$gte")
	assert.True(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Equal(start.(time.Time)))
}

func TestTimelineCustomRange(t *testing.T) {
	store := &fakeStore{}
	h := newReportRouter(t, store)

	rec, _ := call(h, "/reports/leads/timeline?dateRange=custom&startDate=2026-02-10&endDate=2026-02-12")
	require.Equal(t, http.StatusOK, rec.Code)

	created, _ := lookup(stageValue(t, store.lastPipeline(t)[0]), "createdAt")
	end, _ := lookup(created.(bson.D), "$lte")
	assert.True(t, time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond).Equal(end.(time.Time)))

	rec, _ = call(h, "/reports/leads/timeline?dateRange=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverviewEndpoint(t *testing.T) {
	store := &fakeStore{respond: func(mongo.Pipeline) ([]bson.M, error) {
		return []bson.M{{
			"total":     bson.A{bson.M{"count": int32(3)}},
			"geography": bson.A{bson.M{"_id": "9", "count": int32(3)}},
		}}, nil
	}}
	h := newReportRouter(t, store)

	rec, resp := call(h, "/reports/leads/overview")
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 3, data["total"])
	assert.EqualValues(t, 0, data["status"].(map[string]any)["Pending"])
	assert.Equal(t, []any{"Delhi"}, data["geography"].(map[string]any)["labels"])
	assert.Equal(t, []string{"$facet"}, stageNames(store.lastPipeline(t)))

	rec, _ = call(h, "/reports/unknown/overview")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
