package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchMapsVideos(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "lofi beats" || q.Get("key") != "test-key" || q.Get("type") != "video" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"id":{"videoId":"abc"},"snippet":{"title":"Lofi one","thumbnails":{"default":{"url":"d.jpg"},"medium":{"url":"m.jpg"}}}},
			{"id":{"channelId":"skip"},"snippet":{"title":"A channel"}},
			{"id":{"videoId":"def"},"snippet":{"title":"Lofi two","thumbnails":{"default":{"url":"d2.jpg"}}}}
		]}`))
	}))
	defer server.Close()

	client, err := NewClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	results, err := client.Search(context.Background(), "lofi beats")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "abc" || results[0].ThumbnailURL != "m.jpg" {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if results[1].ThumbnailURL != "d2.jpg" {
		t.Fatalf("expected default thumbnail fallback, got %q", results[1].ThumbnailURL)
	}
}

func TestSearchEmptyIsNotNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("k"), WithBaseURL(server.URL))
	results, err := client.Search(context.Background(), "nothing")
	if err != nil || results == nil || len(results) != 0 {
		t.Fatalf("expected empty results, got %#v, %v", results, err)
	}
}

func TestSearchReportsQuotaErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"quotaExceeded"}}`))
	}))
	defer server.Close()

	client, _ := NewClient(WithAPIKey("k"), WithBaseURL(server.URL))
	if _, err := client.Search(context.Background(), "lofi"); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected missing key error")
	}
}
