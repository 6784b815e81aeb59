package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"moviequery/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, sleeps *[]time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.CatalogConfig{
		APIKey:      "tmdb-key",
		APIBase:     server.URL,
		Language:    "en-US",
		MaxAttempts: 5,
		Timeout:     5,
	}
	return NewClient(cfg, zerolog.Nop(), WithSleep(func(_ context.Context, d time.Duration) error {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		return nil
	}))
}

func TestClient_Discover(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/discover/movie", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "tmdb-key", q.Get("api_key"))
		assert.Equal(t, "popularity.desc", q.Get("sort_by"))
		assert.Equal(t, "3", q.Get("page"))
		assert.Equal(t, "2000-01-01", q.Get("primary_release_date.gte"))
		assert.Equal(t, "2005-12-31", q.Get("primary_release_date.lte"))
		w.Write([]byte(`{"page":3,"total_pages":42,"results":[
			{"id":27205,"title":"Inception","vote_average":8.4,"genre_ids":[28,878],"release_date":"2010-07-15","overview":"Dreams."}
		]}`))
	})

	client := newTestClient(t, mux, nil)
	page, err := client.Discover(context.Background(), 3, &config.DateRange{From: "2000-01-01", To: "2005-12-31"})
	require.NoError(t, err)
	assert.Equal(t, 42, page.TotalPages)
	require.Len(t, page.Results, 1)
	assert.Equal(t, DiscoverMovie{
		ID:          27205,
		Title:       "Inception",
		VoteAverage: 8.4,
		GenreIDs:    []int{28, 878},
		ReleaseDate: "2010-07-15",
		Overview:    "Dreams.",
	}, page.Results[0])
}

func TestClient_DiscoverWithoutRange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/discover/movie", func(w http.ResponseWriter, r *http.Request) {
		_, hasFrom := r.URL.Query()["primary_release_date.gte"]
		assert.False(t, hasFrom)
		w.Write([]byte(`{"page":1,"total_pages":1,"results":[]}`))
	})

	_, err := newTestClient(t, mux, nil).Discover(context.Background(), 1, nil)
	require.NoError(t, err)
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/discover/movie", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"page":1,"total_pages":1,"results":[]}`))
	})

	var sleeps []time.Duration
	_, err := newTestClient(t, mux, &sleeps).Discover(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, sleeps)
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/discover/movie", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	var sleeps []time.Duration
	_, err := newTestClient(t, mux, &sleeps).Discover(context.Background(), 7, nil)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
	assert.Len(t, sleeps, 4)
	assert.Equal(t, time.Second, sleeps[0], "missing Retry-After defaults to one second")
}

func TestClient_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/discover/movie", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status_message":"Invalid API key"}`))
	})

	_, err := newTestClient(t, mux, nil).Discover(context.Background(), 1, nil)
	assert.ErrorContains(t, err, "status 401")
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestClient_TotalPages(t *testing.T) {
	tests := []struct {
		name  string
		total string
		want  int
	}{
		{"under cap", "42", 42},
		{"capped", "38000", MaxDiscoverPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/discover/movie", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"page":1,"total_pages":` + tt.total + `,"results":[]}`))
			})

			got, err := newTestClient(t, mux, nil).TotalPages(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_GenresCached(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/genre/movie/list", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "en-US", r.URL.Query().Get("language"))
		w.Write([]byte(`{"genres":[{"id":28,"name":"Action"},{"id":18,"name":"Drama"}]}`))
	})

	client := newTestClient(t, mux, nil)
	for i := 0; i < 3; i++ {
		genres, err := client.Genres(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[int]string{28: "Action", 18: "Drama"}, genres)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Credits(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantDirector string
		wantCast     []string
	}{
		{
			name: "director and top five",
			body: `{"cast":[{"name":"A"},{"name":"B"},{"name":"C"},{"name":"D"},{"name":"E"},{"name":"F"}],
				"crew":[{"name":"Hans Zimmer","job":"Original Music Composer"},{"name":"Christopher Nolan","job":"Director"}]}`,
			wantDirector: "Christopher Nolan",
			wantCast:     []string{"A", "B", "C", "D", "E"},
		},
		{
			name:         "no director",
			body:         `{"cast":[{"name":"A"}],"crew":[]}`,
			wantDirector: DefaultDirector,
			wantCast:     []string{"A"},
		},
		{
			name:         "empty credits",
			body:         `{}`,
			wantDirector: DefaultDirector,
			wantCast:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/movie/27205/credits", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			credits, err := newTestClient(t, mux, nil).Credits(context.Background(), 27205)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDirector, credits.Director)
			assert.Equal(t, tt.wantCast, credits.Cast)
		})
	}
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 10*time.Second, retryAfter("10"))
	assert.Equal(t, time.Second, retryAfter(""))
	assert.Equal(t, time.Second, retryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}
