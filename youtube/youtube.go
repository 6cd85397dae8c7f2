// Package youtube wraps the YouTube Data API v3 for this bot's two needs:
// reading recent comment threads (API key) and posting replies (OAuth).
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"
)

const (
	defaultVideosPerPoll    = 8
	defaultCommentsPerVideo = 50
)

// Channel is the polled channel's identity, used for startup verification.
type Channel struct {
	ID          string
	Title       string
	Subscribers uint64
	Videos      uint64
}

// Video is one recent upload of the channel.
type Video struct {
	ID        string
	Title     string
	Published time.Time
}

// Comment is a top-level comment thread's root comment. Read-only to this
// system; it is fetched once per poll.
type Comment struct {
	ID         string
	Text       string
	AuthorID   string
	AuthorName string
	VideoID    string
	VideoTitle string
	Published  time.Time
	ReplyCount int64
	LikeCount  int64
}

// Client holds the read (API key) and write (OAuth) service handles.
type Client struct {
	read             *ytapi.Service
	write            *ytapi.Service
	channelID        string
	videosPerPoll    int64
	commentsPerVideo int64
}

// Option configures a Client.
type Option func(*settings)

type settings struct {
	videosPerPoll    int64
	commentsPerVideo int64
	endpoint         string
	httpClient       *http.Client
}

// WithVideosPerPoll bounds how many recent uploads are scanned per run.
func WithVideosPerPoll(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.videosPerPoll = n
		}
	}
}

// WithCommentsPerVideo bounds the comment page fetched per video.
func WithCommentsPerVideo(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.commentsPerVideo = n
		}
	}
}

// WithEndpoint points both services at a custom base URL (for testing).
// Authentication is disabled when set.
func WithEndpoint(url string) Option {
	return func(s *settings) {
		s.endpoint = url
	}
}

// WithHTTPClient sets the underlying HTTP client (for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		s.httpClient = c
	}
}

// NewClient builds the hybrid read/write client. oauthJSON is the
// authorized-user credentials JSON for the write path; when nil the client is
// read-only and PostReply fails.
func NewClient(ctx context.Context, apiKey string, oauthJSON []byte, channelID string, opts ...Option) (*Client, error) {
	s := &settings{
		videosPerPoll:    defaultVideosPerPoll,
		commentsPerVideo: defaultCommentsPerVideo,
	}
	for _, opt := range opts {
		opt(s)
	}

	readOpts := s.baseOptions()
	if s.endpoint == "" {
		readOpts = append(readOpts, option.WithAPIKey(apiKey))
	}
	read, err := ytapi.NewService(ctx, readOpts...)
	if err != nil {
		return nil, fmt.Errorf("create read service: %w", err)
	}

	c := &Client{
		read:             read,
		channelID:        channelID,
		videosPerPoll:    s.videosPerPoll,
		commentsPerVideo: s.commentsPerVideo,
	}

	if oauthJSON != nil {
		writeOpts := s.baseOptions()
		if s.endpoint == "" {
			creds, err := google.CredentialsFromJSON(ctx, oauthJSON, ytapi.YoutubeForceSslScope)
			if err != nil {
				return nil, fmt.Errorf("parse oauth credentials: %w", err)
			}
			writeOpts = append(writeOpts, option.WithTokenSource(creds.TokenSource))
		}
		write, err := ytapi.NewService(ctx, writeOpts...)
		if err != nil {
			return nil, fmt.Errorf("create write service: %w", err)
		}
		c.write = write
	}

	return c, nil
}

func (s *settings) baseOptions() []option.ClientOption {
	var opts []option.ClientOption
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint), option.WithoutAuthentication())
	}
	if s.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(s.httpClient))
	}
	return opts
}

// VerifyChannel checks the configured channel id resolves and returns its
// identity.
func (c *Client) VerifyChannel(ctx context.Context) (*Channel, error) {
	resp, err := c.read.Channels.List([]string{"id", "snippet", "statistics"}).
		Id(c.channelID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list channel: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("channel %s not found", c.channelID)
	}

	item := resp.Items[0]
	ch := &Channel{ID: item.Id, Title: item.Snippet.Title}
	if item.Statistics != nil {
		ch.Subscribers = item.Statistics.SubscriberCount
		ch.Videos = item.Statistics.VideoCount
	}
	return ch, nil
}

// RecentVideos returns the channel's most recent uploads, listing order
// (recency) preserved.
func (c *Client) RecentVideos(ctx context.Context) ([]Video, error) {
	chResp, err := c.read.Channels.List([]string{"contentDetails"}).
		Id(c.channelID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list channel content details: %w", err)
	}
	if len(chResp.Items) == 0 {
		return nil, fmt.Errorf("channel %s not found", c.channelID)
	}

	uploads := chResp.Items[0].ContentDetails.RelatedPlaylists.Uploads

	plResp, err := c.read.PlaylistItems.List([]string{"snippet"}).
		PlaylistId(uploads).MaxResults(c.videosPerPoll).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list uploads playlist: %w", err)
	}

	videos := make([]Video, 0, len(plResp.Items))
	for _, item := range plResp.Items {
		published, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		videos = append(videos, Video{
			ID:        item.Snippet.ResourceId.VideoId,
			Title:     item.Snippet.Title,
			Published: published,
		})
	}
	return videos, nil
}

// TopLevelComments fetches a page of the video's newest top-level comments as
// plain text, keeping only those published after since.
func (c *Client) TopLevelComments(ctx context.Context, videoID, videoTitle string, since time.Time) ([]Comment, error) {
	resp, err := c.read.CommentThreads.List([]string{"snippet"}).
		VideoId(videoID).Order("time").MaxResults(c.commentsPerVideo).
		TextFormat("plainText").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list comment threads: %w", err)
	}

	var comments []Comment
	for _, thread := range resp.Items {
		top := thread.Snippet.TopLevelComment
		if top == nil || top.Snippet == nil {
			continue
		}
		snippet := top.Snippet

		published, err := time.Parse(time.RFC3339, snippet.PublishedAt)
		if err != nil {
			continue
		}
		if !since.IsZero() && published.Before(since) {
			continue
		}

		authorID := ""
		if snippet.AuthorChannelId != nil {
			authorID = snippet.AuthorChannelId.Value
		}

		comments = append(comments, Comment{
			ID:         top.Id,
			Text:       snippet.TextDisplay,
			AuthorID:   authorID,
			AuthorName: snippet.AuthorDisplayName,
			VideoID:    videoID,
			VideoTitle: videoTitle,
			Published:  published,
			ReplyCount: thread.Snippet.TotalReplyCount,
			LikeCount:  snippet.LikeCount,
		})
	}
	return comments, nil
}

// PostReply inserts a reply under the given parent comment and returns the
// new comment's id.
func (c *Client) PostReply(ctx context.Context, parentID, text string) (string, error) {
	if c.write == nil {
		return "", fmt.Errorf("write client not configured")
	}

	reply := &ytapi.Comment{
		Snippet: &ytapi.CommentSnippet{
			ParentId:     parentID,
			TextOriginal: text,
		},
	}

	posted, err := c.write.Comments.Insert([]string{"snippet"}, reply).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert reply: %w", err)
	}
	return posted.Id, nil
}
