package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LMJ-01/stylemate/internal/domain"
	"github.com/LMJ-01/stylemate/internal/platform/retry"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedPage = `<!doctype html>
<html>
<head>
  <meta name="_csrf" content="tok-abc">
  <meta name="_csrf_header" content="X-CSRF-TOKEN">
</head>
<body>
  <div class="vote-box" data-feed-id="12" data-start-iso="2025-10-14T10:00:00" data-end-iso="2025-10-14T22:00:00">
    <span data-part="countA">??</span><span data-part="countB">??</span>
  </div>
  <div class="vote-box" data-feed-id=" 15 "></div>
  <div class="vote-box" data-feed-id="12"></div>
  <div class="vote-box" data-feed-id=""></div>
  <div class="vote-box"></div>
  <div class="feed-card" data-feed-id="99"></div>
</body>
</html>`

func TestParse(t *testing.T) {
	page, err := Parse(strings.NewReader(feedPage))
	require.NoError(t, err)

	assert.Equal(t, domain.CSRF{Header: "X-CSRF-TOKEN", Token: "tok-abc"}, page.CSRF)
	require.Len(t, page.Items, 2)
	assert.Equal(t, domain.FeedItem{FeedID: "12", StartISO: "2025-10-14T10:00:00", EndISO: "2025-10-14T22:00:00"}, page.Items[0])
	assert.Equal(t, domain.FeedItem{FeedID: "15"}, page.Items[1])
}

func TestParse_NoCSRF(t *testing.T) {
	page, err := Parse(strings.NewReader(`<div class="vote-box" data-feed-id="1"></div>`))
	require.NoError(t, err)

	assert.False(t, page.CSRF.Present())
	assert.Len(t, page.Items, 1)
}

func TestDiscover_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "votewatch/")
		_, _ = w.Write([]byte(feedPage))
	}))
	defer srv.Close()

	loader := NewLoader(srv.URL+"/feeds", srv.Client(), clockwork.NewRealClock())
	page, err := loader.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestDiscover_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(feedPage))
	}))
	defer srv.Close()

	loader := NewLoader(srv.URL, srv.Client(), clockwork.NewRealClock())
	loader.policy = retry.Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond, RateLimitBackoff: time.Millisecond}

	page, err := loader.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDiscover_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	loader := NewLoader(srv.URL, srv.Client(), clockwork.NewRealClock())
	loader.policy = retry.Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond}

	_, err := loader.Discover(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, retry.After, classify(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.Equal(t, retry.Retry, classify(&StatusError{StatusCode: http.StatusServiceUnavailable}))
	assert.Equal(t, retry.Stop, classify(&StatusError{StatusCode: http.StatusNotFound}))
	assert.Equal(t, retry.Stop, classify(errMarkup))
	assert.Equal(t, retry.Retry, classify(assert.AnError))
}
