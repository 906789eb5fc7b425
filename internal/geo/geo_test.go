package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		ip    string
		label string
		ok    bool
	}{
		{"", UnknownLocation, true},
		{"not-an-ip", UnknownLocation, true},
		{"127.0.0.1", "Local Network (127.0.0.1)", true},
		{"::1", "Local Network (::1)", true},
		{"10.1.2.3", "Local Network (10.1.2.3)", true},
		{"192.168.0.10", "Local Network (192.168.0.10)", true},
		{"172.16.5.4", "Local Network (172.16.5.4)", true},
		{"169.254.1.1", "Local Network (169.254.1.1)", true},
		{"0.0.0.0", "Local Network (0.0.0.0)", true},
		{"8.8.8.8", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			label, ok := Classify(tt.ip)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.label, label)
		})
	}
}

type lookupFunc func(ctx context.Context, ip string) (string, error)

func (f lookupFunc) Lookup(ctx context.Context, ip string) (string, error) { return f(ctx, ip) }

func TestResolver_LocalSkipsRemote(t *testing.T) {
	called := false
	r := NewResolver(lookupFunc(func(context.Context, string) (string, error) {
		called = true
		return "x", nil
	}), time.Second)

	assert.Equal(t, "Local Network (127.0.0.1)", r.Locate(context.Background(), "127.0.0.1"))
	assert.False(t, called)
}

func TestResolver_TimeoutFallsBack(t *testing.T) {
	r := NewResolver(lookupFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), 50*time.Millisecond)

	start := time.Now()
	got := r.Locate(context.Background(), "8.8.8.8")
	assert.Equal(t, UnknownLocation, got)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolver_RemoteResult(t *testing.T) {
	r := NewResolver(lookupFunc(func(context.Context, string) (string, error) {
		return "Almaty, Kazakhstan", nil
	}), time.Second)
	assert.Equal(t, "Almaty, Kazakhstan", r.Locate(context.Background(), "8.8.8.8"))

	r.Remote = lookupFunc(func(context.Context, string) (string, error) { return "  ", nil })
	assert.Equal(t, UnknownLocation, r.Locate(context.Background(), "8.8.8.8"))
}

func TestIPAPI_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/8.8.8.8", r.URL.Path)
		assert.Equal(t, "city,country,status", r.URL.Query().Get("fields"))
		_, _ = w.Write([]byte(`{"status":"success","city":"Mountain View","country":"United States"}`))
	}))
	defer srv.Close()

	loc, err := NewIPAPI(srv.URL + "/").Lookup(context.Background(), "8.8.8.8")
	require.NoError(t, err)
	assert.Equal(t, "Mountain View, United States", loc)
}

func TestIPAPI_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1.1.1.1":
			_, _ = w.Write([]byte(`{"status":"fail"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	api := NewIPAPI(srv.URL)

	loc, err := api.Lookup(context.Background(), "1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, UnknownLocation, loc)

	_, err = api.Lookup(context.Background(), "9.9.9.9")
	require.Error(t, err)
}

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func TestCached_Lookup(t *testing.T) {
	calls := 0
	store := &memStore{data: map[string]string{}}
	c := &Cached{Store: store, TTL: time.Hour, Next: lookupFunc(func(_ context.Context, ip string) (string, error) {
		calls++
		if ip == "2.2.2.2" {
			return UnknownLocation, nil
		}
		return "Paris, France", nil
	})}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		loc, err := c.Lookup(ctx, "5.5.5.5")
		require.NoError(t, err)
		assert.Equal(t, "Paris, France", loc)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, "Paris, France", store.data["geo:5.5.5.5"])

	_, err := c.Lookup(ctx, "2.2.2.2")
	require.NoError(t, err)
	_, cached := store.data["geo:2.2.2.2"]
	assert.False(t, cached, "unknown results are not cached")
}

func TestCached_StoreErrorBypassed(t *testing.T) {
	store := &memStore{data: map[string]string{}, err: errors.New("redis down")}
	c := &Cached{Store: store, Next: lookupFunc(func(context.Context, string) (string, error) {
		return "Oslo, Norway", nil
	})}

	loc, err := c.Lookup(context.Background(), "5.5.5.5")
	require.NoError(t, err)
	assert.Equal(t, "Oslo, Norway", loc)
}
