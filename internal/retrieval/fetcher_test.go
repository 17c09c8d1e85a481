package retrieval

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strata-search/strata/internal/config"
)

func TestFetchReturnsSnippets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "go generics", r.URL.Query().Get("q"))
		require.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"url":"https://example.com/a","title":"A","content":"first snippet"},
			{"url":"","title":"no url","content":"skipped"},
			{"url":"https://example.com/b","title":"B","content":"second snippet"},
			{"url":"https://example.com/c","title":"C","content":"third snippet"}
		]}`))
	}))
	defer server.Close()

	fetcher := NewLiveFetcher(config.FetcherConfig{
		Endpoint:      server.URL,
		MaxResults:    2,
		TimeoutMS:     2000,
		RatePerSecond: 100,
		Burst:         10,
	})
	items, err := fetcher.Fetch(context.Background(), "go generics")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "https://example.com/a", items[0].URL)
	require.Equal(t, "first snippet", items[0].Text)
	require.Equal(t, "https://example.com/b", items[1].URL)
}

func TestFetchSearchErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := NewLiveFetcher(config.FetcherConfig{
		Endpoint:      server.URL,
		MaxResults:    2,
		TimeoutMS:     2000,
		RatePerSecond: 100,
		Burst:         10,
	})
	_, err := fetcher.Fetch(context.Background(), "anything")
	require.Error(t, err)
	require.Contains(t, err.Error(), "backend exploded")
}

func TestFetchPageFailureFallsBackToSnippet(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"url":"` + server.URL + `/page","title":"P","content":"snippet text"}]}`))
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	fetcher := NewLiveFetcher(config.FetcherConfig{
		Endpoint:      server.URL,
		MaxResults:    5,
		TimeoutMS:     2000,
		RatePerSecond: 100,
		Burst:         10,
		FetchPages:    true,
	})
	items, err := fetcher.Fetch(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "snippet text", items[0].Text)
}

func TestFetchPagePullsBodyText(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"url":"` + server.URL + `/page","title":"P","content":"snippet"}]}`))
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><script>var x=1;</script></head><body><p>full page text</p></body></html>`))
	})

	fetcher := NewLiveFetcher(config.FetcherConfig{
		Endpoint:      server.URL,
		MaxResults:    5,
		TimeoutMS:     2000,
		RatePerSecond: 100,
		Burst:         10,
		FetchPages:    true,
	})
	items, err := fetcher.Fetch(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "full page text", items[0].Text)
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips tags",
			in:   `<div><p>hello</p> <b>world</b></div>`,
			want: "hello world",
		},
		{
			name: "drops script and style bodies",
			in:   `<script>alert(1)</script><style>p{}</style>text`,
			want: "text",
		},
		{
			name: "unescapes entities",
			in:   `a &amp; b &lt;c&gt;`,
			want: "a & b <c>",
		},
		{
			name: "collapses blank lines",
			in:   "a\n\n\n\n\nb",
			want: "a\n\nb",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ExtractText(tt.in))
		})
	}
}
