package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), "test-key", []byte(`{}`), "UCtest",
		WithEndpoint(server.URL),
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestVerifyChannel(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/channels") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"items": [{
				"id": "UCtest",
				"snippet": {"title": "Prosperidad Divina"},
				"statistics": {"subscriberCount": "12500", "videoCount": "320"}
			}]
		}`))
	})

	client := newTestClient(t, handler)
	ch, err := client.VerifyChannel(context.Background())
	if err != nil {
		t.Fatalf("VerifyChannel failed: %v", err)
	}

	if ch.Title != "Prosperidad Divina" {
		t.Errorf("Title = %q", ch.Title)
	}
	if ch.Subscribers != 12500 {
		t.Errorf("Subscribers = %d, want 12500", ch.Subscribers)
	}
}

func TestVerifyChannelNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items": []}`))
	})

	client := newTestClient(t, handler)
	if _, err := client.VerifyChannel(context.Background()); err == nil {
		t.Error("VerifyChannel succeeded for missing channel")
	}
}

func TestRecentVideos(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/channels"):
			w.Write([]byte(`{
				"items": [{"contentDetails": {"relatedPlaylists": {"uploads": "UUtest"}}}]
			}`))
		case strings.HasSuffix(r.URL.Path, "/playlistItems"):
			if got := r.URL.Query().Get("playlistId"); got != "UUtest" {
				t.Errorf("playlistId = %q, want UUtest", got)
			}
			w.Write([]byte(`{
				"items": [
					{"snippet": {"title": "Oración de la mañana", "publishedAt": "2026-03-15T08:00:00Z", "resourceId": {"videoId": "vid1"}}},
					{"snippet": {"title": "Decreto de abundancia", "publishedAt": "2026-03-14T08:00:00Z", "resourceId": {"videoId": "vid2"}}}
				]
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	client := newTestClient(t, handler)
	videos, err := client.RecentVideos(context.Background())
	if err != nil {
		t.Fatalf("RecentVideos failed: %v", err)
	}

	if len(videos) != 2 {
		t.Fatalf("got %d videos, want 2", len(videos))
	}
	if videos[0].ID != "vid1" || videos[0].Title != "Oración de la mañana" {
		t.Errorf("videos[0] = %+v", videos[0])
	}
	want := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	if !videos[0].Published.Equal(want) {
		t.Errorf("Published = %v, want %v", videos[0].Published, want)
	}
}

func TestTopLevelComments(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/commentThreads") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("textFormat"); got != "plainText" {
			t.Errorf("textFormat = %q, want plainText", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"items": [
				{
					"snippet": {
						"totalReplyCount": 0,
						"topLevelComment": {
							"id": "c-new",
							"snippet": {
								"textDisplay": "Amén, gracias por tanto",
								"authorDisplayName": "María",
								"authorChannelId": {"value": "chan-maria"},
								"publishedAt": "2026-03-15T09:00:00Z",
								"likeCount": 3
							}
						}
					}
				},
				{
					"snippet": {
						"totalReplyCount": 2,
						"topLevelComment": {
							"id": "c-old",
							"snippet": {
								"textDisplay": "Comentario viejo",
								"authorDisplayName": "Pedro",
								"publishedAt": "2026-03-10T09:00:00Z"
							}
						}
					}
				}
			]
		}`))
	})

	client := newTestClient(t, handler)
	since := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	comments, err := client.TopLevelComments(context.Background(), "vid1", "Oración", since)
	if err != nil {
		t.Fatalf("TopLevelComments failed: %v", err)
	}

	if len(comments) != 1 {
		t.Fatalf("got %d comments, want 1 (old one filtered by since)", len(comments))
	}
	c := comments[0]
	if c.ID != "c-new" {
		t.Errorf("ID = %q", c.ID)
	}
	if c.AuthorID != "chan-maria" || c.AuthorName != "María" {
		t.Errorf("author = %q/%q", c.AuthorID, c.AuthorName)
	}
	if c.VideoID != "vid1" || c.VideoTitle != "Oración" {
		t.Errorf("video = %q/%q", c.VideoID, c.VideoTitle)
	}
	if c.LikeCount != 3 {
		t.Errorf("LikeCount = %d", c.LikeCount)
	}
}

func TestPostReply(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/comments") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "reply-123"}`))
	})

	client := newTestClient(t, handler)
	id, err := client.PostReply(context.Background(), "c1", "Bendiciones 🙏")
	if err != nil {
		t.Fatalf("PostReply failed: %v", err)
	}
	if id != "reply-123" {
		t.Errorf("id = %q, want reply-123", id)
	}
}

func TestPostReplyWithoutWriteClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), "test-key", nil, "UCtest",
		WithEndpoint(server.URL),
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.PostReply(context.Background(), "c1", "hola"); err == nil {
		t.Error("PostReply succeeded without write client")
	}
}
