package trends

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/trendpersona/internal/logging"
	"github.com/ibeckermayer/trendpersona/internal/retry"
	"github.com/ibeckermayer/trendpersona/internal/types"
)

const fixture = `<!doctype html>
<html><body>
<table class="table">
<thead><tr><th>#</th><th>Topic</th></tr></thead>
<tbody>
<tr><td>1</td><td><a class="tweet" href="https://x.com/search?q=Galatasaray" tweetcount="120K">Galatasaray</a></td></tr>
<tr><td>2</td><td><a class="tweet" href="https://x.com/search?q=%E6%9D%B1%E4%BA%AC" tweetcount="80K">東京</a></td></tr>
<tr><td>3</td><td>advert row</td></tr>
<tr><td>4</td><td><a class="tweet big" href="https://x.com/search?q=Deprem">  Deprem
   Haberleri </a></td></tr>
<tr><td>5</td><td><a class="tweet" href="https://x.com/search?q=%23GoLang" tweetcount="9K">#GoLang</a></td></tr>
<tr><td>6</td><td><a class="tweet" href="https://x.com/search?q=%C5%9Fampiyon" tweetcount="5K">Şampiyon 🏆</a></td></tr>
</tbody>
</table>
</body></html>`

func TestParse(t *testing.T) {
	got, err := Parse(strings.NewReader(fixture), 15)
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.Equal(t, types.Trend{Rank: 1, Name: "Galatasaray", URL: "https://x.com/search?q=Galatasaray", Count: "120K"}, got[0])
	assert.Equal(t, "Deprem Haberleri", got[2].Name)
	assert.Equal(t, "N/A", got[2].Count)
}

func TestParseScanLimitCountsRows(t *testing.T) {
	got, err := Parse(strings.NewReader(fixture), 3)
	require.NoError(t, err)
	assert.Len(t, got, 2, "the third row has no link but is still scanned")
}

func TestLatinScript(t *testing.T) {
	assert.True(t, LatinScript("Galatasaray"))
	assert.True(t, LatinScript("Çağrı Öğüş İstanbul"))
	assert.True(t, LatinScript("#GoLang 2026 – final"))
	assert.True(t, LatinScript("café (Paris)"))
	assert.False(t, LatinScript("東京"))
	assert.False(t, LatinScript("Москва"))
	assert.False(t, LatinScript("Şampiyon 🏆"))
}

type staticSource struct {
	page string
}

func (s staticSource) Fetch(context.Context) ([]byte, error) { return []byte(s.page), nil }
func (s staticSource) URL() string                           { return "static" }

func TestFetcherTopFiltersAndRenumbers(t *testing.T) {
	f := New(staticSource{fixture}, 15, 2, logging.Discard())

	got, err := f.Top(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Galatasaray", got[0].Name)
	assert.Equal(t, 1, got[0].Rank)
	assert.Equal(t, "Deprem Haberleri", got[1].Name)
	assert.Equal(t, 2, got[1].Rank)

	assert.Equal(t,
		"1. Galatasaray (120K Tweets) URL: https://x.com/search?q=Galatasaray\n"+
			"2. Deprem Haberleri (N/A Tweets) URL: https://x.com/search?q=Deprem",
		Format(got))
}

func TestPick(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	_, ok := Pick(nil, rng)
	assert.False(t, ok)

	list := []types.Trend{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tr, ok := Pick(list, rng)
		require.True(t, ok)
		seen[tr.Name] = true
	}
	assert.Len(t, seen, 3)
}

func TestHTTPSourceRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, HTTPOptions{
		Retry: retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	body, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(body), "Galatasaray")
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestHTTPSourceDoesNotRetryNotFound(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, HTTPOptions{
		Retry: retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
