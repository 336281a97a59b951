package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/yield-risk-core/internal/fetch"
	"github.com/yourorg/yield-risk-core/internal/model"
	"github.com/yourorg/yield-risk-core/internal/security"
)

type stubService struct {
	list      []model.Opportunity
	health    map[string]bool
	refreshed int
}

func (s *stubService) GetAllOpportunities(context.Context) []model.Opportunity { return s.list }

func (s *stubService) GetEnrichedOpportunities(context.Context) []model.EnrichedOpportunity {
	out := make([]model.EnrichedOpportunity, len(s.list))
	for i, o := range s.list {
		out[i] = model.EnrichedOpportunity{Opportunity: o, Enrichment: "historical"}
	}
	return out
}

func (s *stubService) GetFullyEnhancedOpportunities(ctx context.Context) []model.EnrichedOpportunity {
	out := s.GetEnrichedOpportunities(ctx)
	for i := range out {
		out[i].Enrichment = "enhanced"
	}
	return out
}

func (s *stubService) GetOpportunityByID(_ context.Context, id string) (*model.Opportunity, error) {
	if _, _, _, err := fetch.ParseID(id); err != nil {
		return nil, err
	}
	for _, o := range s.list {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, nil
}

func (s *stubService) GetAdapterStats(context.Context) model.AdapterStats {
	return model.AdapterStats{TotalOpportunities: len(s.list)}
}

func (s *stubService) GetCacheStats() model.CacheStats { return model.CacheStats{EntriesCount: 2} }

func (s *stubService) HealthCheck(context.Context) map[string]bool { return s.health }

func (s *stubService) BreakerStates() map[string]string {
	return map[string]string{"ALEX": "closed", "Arkadiko": "open"}
}

func (s *stubService) RefreshAllData(context.Context) map[string][]model.Opportunity {
	s.refreshed++
	return map[string][]model.Opportunity{"ALEX": s.list, "Arkadiko": {}}
}

func newStubService() *stubService {
	return &stubService{
		list: []model.Opportunity{
			{ID: "alex-stx-usda", Protocol: "ALEX", Pool: "STX/USDA", TVLUSD: 1_000_000, APY: 8},
		},
		health: map[string]bool{"ALEX": true, "Arkadiko": false},
	}
}

func do(t *testing.T, h http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOpportunities_ETag(t *testing.T) {
	s := New(newStubService(), Config{})

	rec := do(t, s.Handler(), http.MethodGet, "/opportunities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var list []model.Opportunity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "alex-stx-usda", list[0].ID)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	again := do(t, s.Handler(), http.MethodGet, "/opportunities", http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusNotModified, again.Code)
	assert.Empty(t, again.Body.Bytes())
}

func TestEnriched(t *testing.T) {
	s := New(newStubService(), Config{})

	var list []model.EnrichedOpportunity
	rec := do(t, s.Handler(), http.MethodGet, "/opportunities/enriched", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "historical", list[0].Enrichment)

	rec = do(t, s.Handler(), http.MethodGet, "/opportunities/enriched?full=true", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, "enhanced", list[0].Enrichment)
}

func TestOpportunityByID(t *testing.T) {
	s := New(newStubService(), Config{})

	rec := do(t, s.Handler(), http.MethodGet, "/opportunities/alex-stx-usda", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s.Handler(), http.MethodGet, "/opportunities/alex-diko-usda", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s.Handler(), http.MethodGet, "/opportunities/alex_stx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid opportunity id")
}

func TestHealth(t *testing.T) {
	svc := newStubService()
	s := New(svc, Config{})

	rec := do(t, s.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "open", resp.Breakers["Arkadiko"])

	svc.health = map[string]bool{"ALEX": false}
	rec = do(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatsCacheAndRefresh(t *testing.T) {
	svc := newStubService()
	s := New(svc, Config{})

	rec := do(t, s.Handler(), http.MethodGet, "/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalOpportunities":1`)

	rec = do(t, s.Handler(), http.MethodGet, "/cache", nil)
	assert.Contains(t, rec.Body.String(), `"entriesCount":2`)

	rec = do(t, s.Handler(), http.MethodGet, "/refresh", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, s.Handler(), http.MethodPost, "/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result map[string][]model.Opportunity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result["ALEX"], 1)
	assert.Empty(t, result["Arkadiko"])
	assert.Equal(t, 1, svc.refreshed)
}

func TestSignedEnvelope(t *testing.T) {
	unsigned := New(newStubService(), Config{})
	rec := do(t, unsigned.Handler(), http.MethodGet, "/opportunities?signed=true", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	signer, err := security.NewDataIntegrityService(security.VerificationOptions{SignatureEnabled: true})
	require.NoError(t, err)
	s := New(newStubService(), Config{Signer: signer})

	rec = do(t, s.Handler(), http.MethodGet, "/opportunities?signed=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var env security.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	addr, err := security.Verify(&env, time.Now())
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), addr.Hex())
}

func TestRateLimit(t *testing.T) {
	s := New(newStubService(), Config{RateLimitRPS: 0.001, RateLimitBurst: 1})

	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/stats", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, s.Handler(), http.MethodGet, "/stats", nil).Code)
}

func TestRequestIDPropagation(t *testing.T) {
	s := New(newStubService(), Config{})
	id := "3f0c5d0e-8f4b-4a8e-9c61-2b1f0e6f7a10"

	rec := do(t, s.Handler(), http.MethodGet, "/cache", http.Header{RequestIDHeader: {id}})
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	rec = do(t, s.Handler(), http.MethodGet, "/cache", http.Header{RequestIDHeader: {"not-a-uuid"}})
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(RequestIDHeader))
}

func TestMetricsMount(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("yield_opportunities 3\n"))
	})
	s := New(newStubService(), Config{MetricsHandler: metrics})
	rec := do(t, s.Handler(), http.MethodGet, "/metrics", nil)
	assert.Contains(t, rec.Body.String(), "yield_opportunities")

	rec = do(t, New(newStubService(), Config{}).Handler(), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
