package service

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/rushteam/estaterec/cache"
	"github.com/rushteam/estaterec/core"
	"github.com/rushteam/estaterec/embedding"
	"github.com/rushteam/estaterec/search"
	"github.com/rushteam/estaterec/store"
)

const catalogCSV = `id,Rooms,Price,Landsize,Regionname,description
p1,3,900000,300,Northern Metropolitan,3 bedroom house near the lake
p2,2,650000,,Northern Metropolitan,2 bedroom unit close to trains
p3,4,1200000,500,Southern Metropolitan,4 bedroom family home by the bay
p4,3,800000,250,Southern Metropolitan,3 bedroom townhouse near the lake shore
`

type fixture struct {
	svc          *Service
	interactions *store.InteractionStore
	refresher    *cache.Refresher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	kv := store.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })
	interactions := store.NewInteractionStore(kv, "")

	listings, err := store.LoadListingsCSV(strings.NewReader(catalogCSV))
	if err != nil {
		t.Fatal(err)
	}
	catalog, err := store.NewMemoryListingStore(listings)
	if err != nil {
		t.Fatal(err)
	}

	refresher := cache.NewRefresher(interactions, cache.New())
	embedder := embedding.NewHashing(embedding.DefaultHashingDimensions)
	ranker := search.NewRanker(embedder, search.WithListingCache(embedding.NewListingCache(embedder)))

	svc, err := New(ctx, Deps{
		Interactions: interactions,
		Listings:     catalog,
		Refresher:    refresher,
		Ranker:       ranker,
		Aggregator:   search.NewAggregator(ranker),
	}, WithPopularN(2), WithSearchTopK(3))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, interactions: interactions, refresher: refresher}
}

func ids(listings []core.Listing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(context.Background(), Deps{}); err == nil {
		t.Fatal("expected error for missing deps")
	}
}

func TestService_LikeUnlike(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ok, err := f.svc.Like(ctx, "u1", "p1")
	if err != nil || !ok {
		t.Fatalf("Like() = %v, %v; want true", ok, err)
	}
	ok, err = f.svc.Like(ctx, "u1", "p1")
	if err != nil || ok {
		t.Fatalf("duplicate Like() = %v, %v; want false, nil", ok, err)
	}
	if _, err := f.svc.Like(ctx, "u1", "missing"); !core.IsNotFound(err) {
		t.Errorf("Like(unknown property) error = %v, want NOT_FOUND", err)
	}
	if _, err := f.svc.Like(ctx, "", "p1"); !core.IsInvalidInput(err) {
		t.Errorf("Like(empty user) error = %v, want INVALID_INPUT", err)
	}
	if _, err := f.svc.Like(ctx, strings.Repeat("u", 129), "p1"); !core.IsInvalidInput(err) {
		t.Errorf("Like(long user) error = %v, want INVALID_INPUT", err)
	}

	liked, err := f.svc.Liked(ctx, "u1")
	if err != nil || !reflect.DeepEqual(liked, []string{"p1"}) {
		t.Fatalf("Liked() = %v, %v", liked, err)
	}
	bookmarked, err := f.svc.Bookmarked(ctx, "u1")
	if err != nil || !reflect.DeepEqual(ids(bookmarked), []string{"p1"}) {
		t.Fatalf("Bookmarked() = %v, %v", ids(bookmarked), err)
	}

	ok, err = f.svc.Unlike(ctx, "u1", "p1")
	if err != nil || !ok {
		t.Fatalf("Unlike() = %v, %v", ok, err)
	}
	ok, err = f.svc.Unlike(ctx, "u1", "p1")
	if err != nil || !ok {
		t.Fatalf("repeated Unlike() = %v, %v; want true", ok, err)
	}
	liked, _ = f.svc.Liked(ctx, "u1")
	if len(liked) != 0 {
		t.Errorf("Liked() after unlike = %v", liked)
	}
}

func TestService_Recommend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// 直接写入存储，不触发后台刷新
	for _, in := range [][2]string{{"u1", "p1"}, {"u1", "p2"}, {"u2", "p1"}, {"u2", "p3"}, {"u3", "p3"}} {
		if _, err := f.interactions.Create(ctx, in[0], in[1]); err != nil {
			t.Fatal(err)
		}
	}

	rec, err := f.svc.Recommend(ctx, "newcomer")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Source != SourcePopular || !reflect.DeepEqual(ids(rec.Listings), []string{"p1", "p3"}) {
		t.Errorf("new user = %+v, want popular [p1 p3]", rec)
	}

	rec, err = f.svc.Recommend(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Source != SourceCollaborative || !rec.Pending || len(rec.Listings) != 0 {
		t.Errorf("known user before refresh = %+v, want pending", rec)
	}

	if err := f.refresher.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	rec, err = f.svc.Recommend(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Pending || !reflect.DeepEqual(ids(rec.Listings), []string{"p3"}) {
		t.Errorf("u1 = %+v, want [p3]", rec)
	}
}

func TestService_LikeTriggersRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.Like(ctx, "u1", "p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Like(ctx, "u2", "p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Like(ctx, "u2", "p4"); err != nil {
		t.Fatal(err)
	}
	f.svc.RequestRefresh()
	f.refresher.Close()

	// 最后一次触发可能被进行中的刷新合并，这里同步再算一次
	if err := f.refresher.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	got, ok := f.refresher.Cache().Get("u1")
	if !ok || !reflect.DeepEqual(got, []string{"p4"}) {
		t.Errorf("cache[u1] = %v, %v; want [p4]", got, ok)
	}
}

func TestService_Property(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	l, err := f.svc.Property(ctx, "p3")
	if err != nil || l.Region != "Southern Metropolitan" {
		t.Fatalf("Property(p3) = %+v, %v", l, err)
	}
	if _, err := f.svc.Property(ctx, "nope"); !core.IsNotFound(err) {
		t.Errorf("Property(nope) error = %v, want NOT_FOUND", err)
	}
}

func TestService_Search(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	got, err := f.svc.Search(ctx, "3 bedroom near lake", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want topK 3", len(got))
	}

	got, err = f.svc.Search(ctx, "3 bedroom near lake", `listing.region == "Southern Metropolitan"`)
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range got {
		if l.Region != "Southern Metropolitan" {
			t.Errorf("filtered search returned %s in %s", l.ID, l.Region)
		}
	}
	if len(got) != 2 {
		t.Errorf("filtered len = %d, want 2", len(got))
	}

	if _, err := f.svc.Search(ctx, "", ""); !core.IsInvalidInput(err) {
		t.Errorf("empty query error = %v, want INVALID_INPUT", err)
	}
	if _, err := f.svc.Search(ctx, "lake", "listing.price >"); !core.IsInvalidInput(err) {
		t.Errorf("bad filter error = %v, want INVALID_INPUT", err)
	}
}

func TestService_Stats(t *testing.T) {
	f := newFixture(t)
	stats, err := f.svc.Stats(context.Background(), "bedroom")
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range search.DefaultFields {
		if _, ok := stats[field]; !ok {
			t.Errorf("stats missing field %s", field)
		}
	}
	if _, err := f.svc.Stats(context.Background(), " "); err == nil {
		t.Error("expected error for blank query")
	}
}

type stubBreaker string

func (b stubBreaker) State() string { return string(b) }

func TestService_Health(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	h := f.svc.Health()
	if h.Status != "ok" || h.CacheUpdatedAt != nil || h.CachedUsers != 0 || h.Embedder != "" {
		t.Fatalf("Health() before refresh = %+v", h)
	}

	if _, err := f.interactions.Create(ctx, "u1", "p1"); err != nil {
		t.Fatal(err)
	}
	if err := f.refresher.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	h = f.svc.Health()
	if h.CacheUpdatedAt == nil || h.CacheUpdatedAt.IsZero() || h.CachedUsers != 1 {
		t.Errorf("Health() after refresh = %+v", h)
	}

	WithBreaker(stubBreaker("open"))(f.svc)
	if h := f.svc.Health(); h.Status != "degraded" || h.Embedder != "open" {
		t.Errorf("Health() with open breaker = %+v", h)
	}
}
