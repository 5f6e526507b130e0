// Package platform defines the capability set a social platform client must
// support and the registry that dispatches on the platform tag.
package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Known platform tags.
const (
	Instagram = "instagram"
	Twitter   = "twitter"
)

// Post is one post as reported by a platform.
type Post struct {
	ID   string
	Text string
}

// Comment is one comment as reported by a platform.
type Comment struct {
	ID     string
	PostID string
	UserID int32
	Text   string
}

// Client is the fixed capability set every platform variant implements.
// Implementations report failure via error values, never transport panics;
// the dispatcher converts those errors into result data.
type Client interface {
	// Name returns the platform tag.
	Name() string

	// CreatePost publishes a post with an optional image URL.
	CreatePost(ctx context.Context, imageURL, caption string) (string, error)

	// CreateComment posts a comment under a post.
	CreateComment(ctx context.Context, postID, text string) (string, error)

	// CreateReply replies to an existing comment.
	CreateReply(ctx context.Context, commentID, text string) (string, error)

	// FetchPost loads a post and its text.
	FetchPost(ctx context.Context, postID string) (Post, error)

	// FetchComments lists recent comments on a post.
	FetchComments(ctx context.Context, postID string, limit int) ([]Comment, error)
}

// UnsupportedPlatformError reports a dispatch against an unknown platform tag.
// It is fatal for that action and aborts before any side effect.
type UnsupportedPlatformError struct {
	Platform string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %s", e.Platform)
}

// Registry maps platform tags to clients. Concurrent-safe.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds a client under its own name, replacing any prior entry.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Name()] = c
}

// Resolve returns the client for a platform tag.
func (r *Registry) Resolve(platform string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[platform]
	if !ok {
		return nil, &UnsupportedPlatformError{Platform: platform}
	}
	return c, nil
}

// Names lists the registered platform tags in stable order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
