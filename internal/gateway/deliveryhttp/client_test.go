package deliveryhttp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/ParcelMatch/internal/errs"
	"github.com/BearBump/ParcelMatch/internal/gateway"
	"github.com/BearBump/ParcelMatch/internal/session"
	"github.com/stretchr/testify/require"
)

func newSession(token string) *session.Memory {
	s := session.NewMemory()
	if token != "" {
		s.SetToken(token, "user-1")
	}
	return s
}

func TestClient_GetPackage(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"pkg-1","trackingCode":"TRK123","status":"in_transit","estimatedDeliveryTime":"2024-01-05T10:00:00Z","createdAt":"2024-01-01T00:00:00Z"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, newSession("tok-1"), 5*time.Second)
	pkg, err := c.GetPackage(context.Background(), "TRK123")
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-1", gotAuth)
	require.Equal(t, "/packages/TRK123", gotPath)
	require.Equal(t, "TRK123", pkg.TrackingCode)
	require.Equal(t, "in_transit", pkg.Status)
	require.NotNil(t, pkg.EstimatedDeliveryTime)
}

func TestClient_NoToken(t *testing.T) {
	c := New("http://localhost:1", newSession(""), time.Second)
	_, err := c.GetPackage(context.Background(), "TRK123")
	require.ErrorIs(t, err, errs.ErrAuthRequired)
}

func TestClient_TokenReadPerCall(t *testing.T) {
	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer srv.Close()

	sess := newSession("tok-old")
	c := New(srv.URL, sess, 5*time.Second)

	_, err := c.ListMyMatches(context.Background())
	require.NoError(t, err)

	// Ротация токена посреди сессии подхватывается следующим вызовом.
	sess.SetToken("tok-new", "user-1")
	_, err = c.ListMyMatches(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"Bearer tok-old", "Bearer tok-new"}, auths)
}

func TestClient_SessionExpiredOn401And403(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		c := New(srv.URL, newSession("tok"), time.Second)
		_, err := c.AcceptMatch(context.Background(), "m1", "")
		require.ErrorIs(t, err, errs.ErrSessionExpired)
		srv.Close()
	}
}

func TestClient_FailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"package not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, newSession("tok"), time.Second)
	_, err := c.GetPackage(context.Background(), "NOPE")
	require.True(t, errs.IsNetwork(err))
	require.Contains(t, err.Error(), "package not found")
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, newSession("tok"), time.Second)
	_, err := c.ListMyMatches(context.Background())
	require.True(t, errs.IsNetwork(err))
}

func TestClient_FindCarriersBody(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"success":true,"data":[{"carrierId":"carrier-001","matchScore":0.94,"compensation":15.99}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, newSession("tok"), time.Second)
	cs, err := c.FindCarriers(context.Background(), gateway.FindCarriersRequest{
		PackageID: "pkg-1", Radius: 10, MaxCarriers: 5,
	})
	require.NoError(t, err)
	require.Len(t, cs, 1)
	require.Equal(t, "carrier-001", cs[0].CarrierID)
	require.JSONEq(t, `{"packageId":"pkg-1","radius":10,"maxCarriers":5}`, gotBody)
}
