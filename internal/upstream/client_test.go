package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/analytics-sync/backend/infrastructure/config"
	"github.com/analytics-sync/backend/infrastructure/errors"
	"github.com/analytics-sync/backend/infrastructure/logging"
	"github.com/analytics-sync/backend/infrastructure/resilience"
	"github.com/analytics-sync/backend/internal/jsonapi"
)

var testLogger = logging.New("upstream-test", "error", "json")

func newTestClient(baseURL string) *Client {
	return New(Config{
		BaseURL:            baseURL,
		Credential:         "test-key",
		AuthScheme:         config.AuthSchemeAPIKey,
		MinRequestInterval: time.Millisecond,
		MaxConcurrent:      4,
		RetryConfig: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
		},
		BreakerConfig: resilience.Config{
			MaxFailures: 10,
			Timeout:     time.Second,
		},
	}, testLogger)
}

func TestClient_Get_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Klaviyo-API-Key test-key" {
			t.Errorf("Authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"type":"campaign","id":"c1","attributes":{"name":"x"}}],"links":{}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	page, err := c.Get(context.Background(), "/campaigns", jsonapi.Params{})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].ID != "c1" {
		t.Fatalf("page.Data = %+v", page.Data)
	}
}

func TestClient_Get_Unauthorized_NotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Get(context.Background(), "/campaigns", jsonapi.Params{})
	if err == nil {
		t.Fatalf("expected an error")
	}
	se := errors.GetServiceError(err)
	if se == nil || se.Code != errors.ErrCodeUnauthorized {
		t.Fatalf("error = %v, want Unauthorized", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("server called %d times, want exactly 1 (non-retryable)", calls)
	}
}

func TestClient_Get_ServerError_Retried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[],"links":{}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Get(context.Background(), "/campaigns", jsonapi.Params{})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("server called %d times, want 3 (2 failures then success)", calls)
	}
}

func TestClient_GetPaginated_FollowsCursor(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.Write([]byte(`{"data":[{"type":"campaign","id":"c1","attributes":{}}],"links":{"next":"http://` + r.Host + `/campaigns?page%5Bcursor%5D=next1"}}`))
			return
		}
		w.Write([]byte(`{"data":[{"type":"campaign","id":"c2","attributes":{}}],"links":{}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	var ids []string
	err := c.GetPaginated(context.Background(), "/campaigns", jsonapi.Params{}, func(page jsonapi.Page) error {
		for _, r := range page.Data {
			ids = append(ids, r.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("GetPaginated() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "c1" || ids[1] != "c2" {
		t.Fatalf("ids = %v, want [c1 c2]", ids)
	}
}

func TestClient_Get_CoalescesConcurrentIdenticalRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte(`{"data":[],"links":{}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := c.Get(context.Background(), "/campaigns", jsonapi.Params{})
			done <- err
		}()
	}
	for i := 0; i < 10; i++ {
		if err := <-done; err != nil {
			t.Errorf("Get() error = %v", err)
		}
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("server called %d times, want exactly 1 for coalesced identical requests", calls)
	}
}
