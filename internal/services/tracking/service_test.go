package tracking

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/ParcelMatch/internal/errs"
	"github.com/BearBump/ParcelMatch/internal/gateway"
	"github.com/BearBump/ParcelMatch/internal/models"
	"github.com/BearBump/ParcelMatch/internal/session"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu       sync.Mutex
	calls    int
	packages map[string]*models.TrackedPackage
	err      error

	// gate, если задан, блокирует GetPackage до закрытия канала.
	gate chan struct{}
}

func (f *fakeGateway) GetPackage(ctx context.Context, key string) (*models.TrackedPackage, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	pkg, ok := f.packages[key]
	if !ok {
		return nil, &errs.NetworkError{StatusCode: 404, Msg: "package not found"}
	}
	cp := *pkg
	return &cp, nil
}

func (f *fakeGateway) ListMyMatches(ctx context.Context) ([]*models.CarrierMatch, error) {
	return nil, nil
}
func (f *fakeGateway) FindCarriers(ctx context.Context, req gateway.FindCarriersRequest) ([]*models.CarrierCandidate, error) {
	return nil, nil
}
func (f *fakeGateway) CreateMatch(ctx context.Context, packageID, carrierID string) (*models.CarrierMatch, error) {
	return nil, nil
}
func (f *fakeGateway) AcceptMatch(ctx context.Context, matchID, notes string) (*models.CarrierMatch, error) {
	return nil, nil
}
func (f *fakeGateway) RejectMatch(ctx context.Context, matchID, notes string) (*models.CarrierMatch, error) {
	return nil, nil
}
func (f *fakeGateway) CancelMatch(ctx context.Context, matchID, reason string) (*models.CarrierMatch, error) {
	return nil, nil
}

type fakeKV struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newFakeKV() *fakeKV { return &fakeKV{m: map[string][]byte{}} }

func (c *fakeKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok, nil
}
func (c *fakeKV) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}
func (c *fakeKV) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

func authedSession() *session.Memory {
	s := session.NewMemory()
	s.SetToken("tok", "user-1")
	return s
}

func pkg(code, status string) *models.TrackedPackage {
	return &models.TrackedPackage{
		ID:           "id-" + code,
		TrackingCode: code,
		Status:       status,
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLookup_Validation(t *testing.T) {
	s := New(&fakeGateway{}, authedSession(), nil)

	_, err := s.Lookup(context.Background(), "   ")
	require.True(t, errs.IsValidation(err))
}

func TestLookup_AuthRequired(t *testing.T) {
	s := New(&fakeGateway{}, session.NewMemory(), nil)

	_, err := s.Lookup(context.Background(), "TRK123")
	require.ErrorIs(t, err, errs.ErrAuthRequired)
}

func TestLookup_StoresSnapshotAndRecent(t *testing.T) {
	eta := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	p := pkg("TRK123", models.PackageStatusInTransit)
	p.EstimatedDeliveryTime = &eta

	gw := &fakeGateway{packages: map[string]*models.TrackedPackage{"TRK123": p}}
	kv := newFakeKV()
	s := New(gw, authedSession(), kv)

	got, err := s.Lookup(context.Background(), "TRK123")
	require.NoError(t, err)
	require.Equal(t, models.PackageStatusInTransit, got.Status)

	cached, ok := s.Get("TRK123")
	require.True(t, ok)
	require.Equal(t, &eta, cached.EstimatedDeliveryTime)
	require.Equal(t, []string{"TRK123"}, s.RecentSearches())

	// Кэш зеркалится в хранилище.
	b, ok, err := kv.Get(context.Background(), "trackingHistory")
	require.NoError(t, err)
	require.True(t, ok)
	var persisted map[string]*models.TrackedPackage
	require.NoError(t, json.Unmarshal(b, &persisted))
	require.Contains(t, persisted, "TRK123")
}

func TestLookup_AlwaysFetches(t *testing.T) {
	gw := &fakeGateway{packages: map[string]*models.TrackedPackage{
		"TRK123": pkg("TRK123", models.PackageStatusInTransit),
	}}
	s := New(gw, authedSession(), nil)

	_, err := s.Lookup(context.Background(), "TRK123")
	require.NoError(t, err)

	// Второй поиск — второй сетевой вызов, кэш его не срезает.
	gw.packages["TRK123"] = pkg("TRK123", models.PackageStatusDelivered)
	_, err = s.Lookup(context.Background(), "TRK123")
	require.NoError(t, err)

	require.Equal(t, 2, gw.calls)
	cached, _ := s.Get("TRK123")
	require.Equal(t, models.PackageStatusDelivered, cached.Status)
}

func TestLookup_FailureKeepsCache(t *testing.T) {
	gw := &fakeGateway{packages: map[string]*models.TrackedPackage{
		"TRK123": pkg("TRK123", models.PackageStatusInTransit),
	}}
	s := New(gw, authedSession(), nil)

	_, err := s.Lookup(context.Background(), "TRK123")
	require.NoError(t, err)

	gw.err = &errs.NetworkError{StatusCode: 500, Msg: "boom"}
	_, err = s.Lookup(context.Background(), "TRK123")
	require.True(t, errs.IsLookup(err))
	require.Contains(t, err.Error(), "boom")

	cached, ok := s.Get("TRK123")
	require.True(t, ok)
	require.Equal(t, models.PackageStatusInTransit, cached.Status)
}

func TestLookup_SessionExpiredPassesThrough(t *testing.T) {
	gw := &fakeGateway{err: errs.ErrSessionExpired}
	s := New(gw, authedSession(), nil)

	_, err := s.Lookup(context.Background(), "TRK123")
	require.ErrorIs(t, err, errs.ErrSessionExpired)
}

func TestRecentSearches_BoundedAndDeduplicated(t *testing.T) {
	gw := &fakeGateway{packages: map[string]*models.TrackedPackage{}}
	for _, code := range []string{"A", "B", "C", "D", "E", "F"} {
		gw.packages[code] = pkg(code, models.PackageStatusPending)
	}
	s := New(gw, authedSession(), nil)

	for _, code := range []string{"A", "B", "C", "D", "E", "F"} {
		_, err := s.Lookup(context.Background(), code)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"F", "E", "D", "C", "B"}, s.RecentSearches())

	// Повторный поиск поднимает код наверх без дублей.
	_, err := s.Lookup(context.Background(), "D")
	require.NoError(t, err)
	require.Equal(t, []string{"D", "F", "E", "C", "B"}, s.RecentSearches())
	require.Len(t, s.RecentSearches(), 5)
}

func TestRefresh_SuccessUpdatesWithoutRecent(t *testing.T) {
	gw := &fakeGateway{packages: map[string]*models.TrackedPackage{
		"TRK123": pkg("TRK123", models.PackageStatusPickupReady),
	}}
	s := New(gw, authedSession(), nil)

	got := s.Refresh(context.Background(), "TRK123")
	require.NotNil(t, got)
	require.Equal(t, models.PackageStatusPickupReady, got.Status)

	_, ok := s.Get("TRK123")
	require.True(t, ok)
	require.Empty(t, s.RecentSearches())
}

func TestRefresh_FailureIsNonDestructive(t *testing.T) {
	gw := &fakeGateway{packages: map[string]*models.TrackedPackage{
		"TRK123": pkg("TRK123", models.PackageStatusInTransit),
	}}
	s := New(gw, authedSession(), nil)

	_, err := s.Lookup(context.Background(), "TRK123")
	require.NoError(t, err)

	gw.err = &errs.NetworkError{Msg: "temporarily unreachable"}
	require.Nil(t, s.Refresh(context.Background(), "TRK123"))

	cached, ok := s.Get("TRK123")
	require.True(t, ok)
	require.Equal(t, models.PackageStatusInTransit, cached.Status)
}

func TestRefresh_NoSessionReturnsNil(t *testing.T) {
	s := New(&fakeGateway{}, session.NewMemory(), nil)
	require.Nil(t, s.Refresh(context.Background(), "TRK123"))
}

func TestClearOne_Idempotent(t *testing.T) {
	gw := &fakeGateway{packages: map[string]*models.TrackedPackage{
		"A": pkg("A", models.PackageStatusPending),
		"B": pkg("B", models.PackageStatusPending),
	}}
	kv := newFakeKV()
	s := New(gw, authedSession(), kv)

	_, _ = s.Lookup(context.Background(), "A")
	_, _ = s.Lookup(context.Background(), "B")

	s.ClearOne(context.Background(), "A")
	_, ok := s.Get("A")
	require.False(t, ok)
	require.Equal(t, []string{"B"}, s.RecentSearches())

	s.ClearOne(context.Background(), "A") // повтор — no-op
	require.Equal(t, []string{"B"}, s.RecentSearches())
}

func TestClearAll_RemovesDurableCopies(t *testing.T) {
	gw := &fakeGateway{packages: map[string]*models.TrackedPackage{
		"A": pkg("A", models.PackageStatusPending),
	}}
	kv := newFakeKV()
	s := New(gw, authedSession(), kv)

	_, _ = s.Lookup(context.Background(), "A")
	_, ok, _ := kv.Get(context.Background(), "trackingHistory")
	require.True(t, ok)

	s.ClearAll(context.Background())
	require.Empty(t, s.History())
	require.Empty(t, s.RecentSearches())

	_, ok, _ = kv.Get(context.Background(), "trackingHistory")
	require.False(t, ok)
	_, ok, _ = kv.Get(context.Background(), "recentSearches")
	require.False(t, ok)
}

func TestHydrate_RestoresState(t *testing.T) {
	kv := newFakeKV()
	history := map[string]*models.TrackedPackage{"TRK123": pkg("TRK123", models.PackageStatusInTransit)}
	b, _ := json.Marshal(history)
	require.NoError(t, kv.Set(context.Background(), "trackingHistory", b))
	require.NoError(t, kv.Set(context.Background(), "recentSearches", []byte(`["TRK123"]`)))

	s := New(&fakeGateway{}, authedSession(), kv)
	s.Hydrate(context.Background())

	cached, ok := s.Get("TRK123")
	require.True(t, ok)
	require.Equal(t, models.PackageStatusInTransit, cached.Status)
	require.Equal(t, []string{"TRK123"}, s.RecentSearches())
}

func TestHydrate_MalformedIsTreatedAsEmpty(t *testing.T) {
	kv := newFakeKV()
	require.NoError(t, kv.Set(context.Background(), "trackingHistory", []byte(`{broken`)))
	require.NoError(t, kv.Set(context.Background(), "recentSearches", []byte(`not json`)))

	s := New(&fakeGateway{}, authedSession(), kv)
	s.Hydrate(context.Background())

	require.Empty(t, s.History())
	require.Empty(t, s.RecentSearches())
}

func TestLookup_LastIssuedWins(t *testing.T) {
	gate := make(chan struct{})
	gw := &fakeGateway{
		packages: map[string]*models.TrackedPackage{
			"TRK123": pkg("TRK123", models.PackageStatusInTransit),
		},
		gate: gate,
	}
	s := New(gw, authedSession(), nil)

	// Первый запрос висит в сети.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Lookup(context.Background(), "TRK123")
	}()

	// Ждём, пока первый вызов займёт свой номер.
	require.Eventually(t, func() bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return gw.calls == 1
	}, time.Second, 5*time.Millisecond)

	// Второй запрос того же кода стартует позже и завершается раньше.
	gw.mu.Lock()
	gw.gate = nil
	gw.packages["TRK123"] = pkg("TRK123", models.PackageStatusDelivered)
	gw.mu.Unlock()

	_, err := s.Lookup(context.Background(), "TRK123")
	require.NoError(t, err)

	// Теперь отпускаем первый: его устаревший ответ не должен перетереть кэш.
	gw.mu.Lock()
	gw.packages["TRK123"] = pkg("TRK123", models.PackageStatusInTransit)
	gw.mu.Unlock()
	close(gate)
	<-done

	cached, _ := s.Get("TRK123")
	require.Equal(t, models.PackageStatusDelivered, cached.Status)
}
