package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/estaterec/core"
	"github.com/rushteam/estaterec/search"
	"github.com/rushteam/estaterec/service"
)

type fakeEngine struct {
	likes     map[string]bool
	refreshes int
	err       error
	health    service.Health
}

func (f *fakeEngine) Like(_ context.Context, userID, propertyID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := userID + "/" + propertyID
	if f.likes[key] {
		return false, nil
	}
	f.likes[key] = true
	return true, nil
}

func (f *fakeEngine) Unlike(_ context.Context, userID, propertyID string) (bool, error) {
	delete(f.likes, userID+"/"+propertyID)
	return true, f.err
}

func (f *fakeEngine) Liked(context.Context, string) ([]string, error) { return nil, f.err }

func (f *fakeEngine) Bookmarked(context.Context, string) ([]core.Listing, error) {
	return []core.Listing{{ID: "p1"}}, f.err
}

func (f *fakeEngine) Recommend(_ context.Context, userID string) (*service.Recommendation, error) {
	if userID == "" {
		return nil, core.InvalidInput(core.ModuleService, "invalid user_id")
	}
	return &service.Recommendation{Source: service.SourcePopular, Listings: []core.Listing{{ID: "p2"}}}, f.err
}

func (f *fakeEngine) RequestRefresh() { f.refreshes++ }

func (f *fakeEngine) Health() service.Health { return f.health }

func (f *fakeEngine) Property(_ context.Context, id string) (core.Listing, error) {
	if id != "p1" {
		return core.Listing{}, core.ErrListingNotFound
	}
	price := 100.0
	return core.Listing{ID: "p1", Description: "house", Region: "North", Price: &price}, nil
}

func (f *fakeEngine) Search(context.Context, string, string) ([]core.Listing, error) {
	return nil, core.Unavailable(core.ModuleSearch, errors.New("model down"), "embed query")
}

func (f *fakeEngine) Stats(context.Context, string) (search.Stats, error) {
	return nil, errors.New("boom")
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Like(t *testing.T) {
	eng := &fakeEngine{likes: map[string]bool{}}
	h := NewRouter(eng, zerolog.Nop())
	body := `{"user_id":"u1","property_id":"p1"}`

	rec := do(t, h, http.MethodPost, "/like/", body)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Fatalf("first like = %d %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodPost, "/like", body)
	var resp likeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Message != "unique constraint failed" {
		t.Errorf("duplicate like = %+v", resp)
	}

	rec = do(t, h, http.MethodDelete, "/like/", body)
	if !strings.Contains(rec.Body.String(), "reaction deleted") {
		t.Errorf("unlike = %s", rec.Body)
	}

	rec = do(t, h, http.MethodPost, "/like/", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/like/?user_id=u1", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("liked = %s, want []", rec.Body)
	}
}

func TestRouter_ErrorMapping(t *testing.T) {
	h := NewRouter(&fakeEngine{likes: map[string]bool{}}, zerolog.Nop())

	tests := []struct {
		target string
		status int
		code   string
	}{
		{"/property/?property_id=p1", http.StatusOK, ""},
		{"/property/?property_id=p9", http.StatusNotFound, core.ErrorCodeNotFound},
		{"/recommendation/", http.StatusBadRequest, core.ErrorCodeInvalidInput},
		{"/search/?text=lake", http.StatusServiceUnavailable, core.ErrorCodeUnavailable},
		{"/stats/?text=lake", http.StatusInternalServerError, core.ErrorCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
			if tt.code == "" {
				return
			}
			var body map[string]errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["error"].Code != tt.code {
				t.Errorf("code = %s, want %s", body["error"].Code, tt.code)
			}
		})
	}
}

func TestRouter_PropertyJSONUsesCatalogColumns(t *testing.T) {
	h := NewRouter(&fakeEngine{}, zerolog.Nop())
	rec := do(t, h, http.MethodGet, "/property?property_id=p1", "")

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["id"] != "p1" || got["Regionname"] != "North" || got["Price"] != 100.0 {
		t.Errorf("property = %v", got)
	}
	if v, ok := got["Rooms"]; !ok || v != nil {
		t.Errorf("missing Rooms should be null, got %v (present=%v)", v, ok)
	}
}

func TestRouter_RefreshAndHealth(t *testing.T) {
	eng := &fakeEngine{health: service.Health{Status: "degraded", CachedUsers: 3, Embedder: "open"}}
	h := NewRouter(eng, zerolog.Nop())

	rec := do(t, h, http.MethodPost, "/recommendation/", "")
	if rec.Code != http.StatusAccepted || eng.refreshes != 1 {
		t.Errorf("refresh = %d, refreshes = %d", rec.Code, eng.refreshes)
	}
	rec = do(t, h, http.MethodGet, "/recommendation/?user_id=u1", "")
	if !strings.Contains(rec.Body.String(), `"source":"popular"`) {
		t.Errorf("recommend = %s", rec.Body)
	}
	rec = do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK ||
		!strings.Contains(rec.Body.String(), `"status":"degraded"`) ||
		!strings.Contains(rec.Body.String(), `"cached_users":3`) ||
		!strings.Contains(rec.Body.String(), `"cache_updated_at":null`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, h, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("metrics = %d", rec.Code)
	}
}
