// Package orchestrator runs the end-to-end action cycles: resolve
// preferences, generate content, dispatch to the platform, notify the
// operator. It is also the event bus consumer that turns incoming comments
// and replies into response cycles.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/socialbot/bot/dispatch"
	"github.com/hrygo/socialbot/bot/eventbus"
	"github.com/hrygo/socialbot/bot/generate"
	"github.com/hrygo/socialbot/bot/notify"
	"github.com/hrygo/socialbot/bot/platform"
	"github.com/hrygo/socialbot/bot/prefs"
	"github.com/hrygo/socialbot/store"
)

// Options configures the cycle runner. GenerationRetries is the number of
// extra generation attempts after a retryable failure; zero means a single
// attempt only.
type Options struct {
	OperatorUserID    int32
	OperatorEmail     string
	GenerationRetries int
}

// Orchestrator wires the pipeline stages together. Each public method runs
// one complete cycle and always attempts notification before returning, even
// when the dispatched action failed.
type Orchestrator struct {
	store      *store.Store
	resolver   *prefs.Resolver
	generator  *generate.Generator
	dispatcher *dispatch.Dispatcher
	registry   *platform.Registry
	notifier   *notify.Notifier
	opts       Options
}

func New(
	s *store.Store,
	resolver *prefs.Resolver,
	generator *generate.Generator,
	dispatcher *dispatch.Dispatcher,
	registry *platform.Registry,
	notifier *notify.Notifier,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		store:      s,
		resolver:   resolver,
		generator:  generator,
		dispatcher: dispatcher,
		registry:   registry,
		notifier:   notifier,
		opts:       opts,
	}
}

// CreatePost picks a stored caption, generates post text from it, and
// publishes it on the given platform. The image URL is optional.
func (o *Orchestrator) CreatePost(ctx context.Context, platformName, imageURL string) (*store.ActionResult, error) {
	cycle := uuid.NewString()
	slog.Info("starting post cycle", "cycle_id", cycle, "platform", platformName)

	resolved, err := o.resolver.Resolve(ctx, o.opts.OperatorUserID, prefs.ScopePost)
	if err != nil {
		return nil, err
	}

	caption, err := o.pickCaption(ctx, resolved.Category)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pick a caption")
	}

	text, err := o.generateWithRetry(ctx, generate.GenerationRequest{
		Scope:       prefs.ScopePost,
		ContextText: caption.Text,
		Preferences: resolved,
	})
	if err != nil {
		return nil, err
	}

	result, err := o.dispatcher.Dispatch(ctx, dispatch.Request{
		Action:   store.ActionPost,
		Platform: platformName,
		ImageURL: imageURL,
		Text:     text,
	})
	if err != nil {
		return nil, err
	}

	o.notify(ctx, resolved, []*store.ActionResult{result})
	return result, nil
}

// CommentToPost generates and publishes a comment under an existing post.
// The post's own text is fetched first and fed to generation as context.
func (o *Orchestrator) CommentToPost(ctx context.Context, platformName, postID string) (*store.ActionResult, error) {
	cycle := uuid.NewString()
	slog.Info("starting comment cycle", "cycle_id", cycle, "platform", platformName, "post_id", postID)

	client, err := o.registry.Resolve(platformName)
	if err != nil {
		return nil, err
	}

	post, err := client.FetchPost(ctx, postID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch post %s", postID)
	}

	resolved, err := o.resolver.Resolve(ctx, o.opts.OperatorUserID, prefs.ScopeComment)
	if err != nil {
		return nil, err
	}

	text, err := o.generateWithRetry(ctx, generate.GenerationRequest{
		Scope:       prefs.ScopeComment,
		ContextText: post.Text,
		Preferences: resolved,
	})
	if err != nil {
		return nil, err
	}

	result, err := o.dispatcher.Dispatch(ctx, dispatch.Request{
		Action:   store.ActionComment,
		Platform: platformName,
		TargetID: postID,
		Text:     text,
	})
	if err != nil {
		return nil, err
	}

	o.notify(ctx, resolved, []*store.ActionResult{result})
	return result, nil
}

// ReplyToComments fetches up to numComments recent comments on a post and
// replies to each one, resolving the comment author's preferences
// independently per item. A failed item is recorded as a failure result and
// the batch continues, so the result list always has one entry per comment
// attempted. Cancellation is honored at item boundaries, so already-completed
// items keep their results. Notification routing follows the operator's
// settings.
func (o *Orchestrator) ReplyToComments(ctx context.Context, platformName, postID string, numComments int) ([]*store.ActionResult, error) {
	cycle := uuid.NewString()
	slog.Info("starting reply cycle",
		"cycle_id", cycle, "platform", platformName, "post_id", postID, "num_comments", numComments)

	operator, err := o.resolver.Resolve(ctx, o.opts.OperatorUserID, prefs.ScopeReply)
	if err != nil {
		return nil, err
	}

	client, err := o.registry.Resolve(platformName)
	if err != nil {
		return nil, err
	}

	comments, err := client.FetchComments(ctx, postID, numComments)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch comments for post %s", postID)
	}
	if len(comments) == 0 {
		slog.Info("no comments to reply to", "cycle_id", cycle, "post_id", postID)
		return nil, nil
	}

	results := make([]*store.ActionResult, 0, len(comments))
	for _, comment := range comments {
		if err := ctx.Err(); err != nil {
			o.notify(ctx, operator, results)
			return results, err
		}

		result, err := o.replyToComment(ctx, platformName, comment)
		if err != nil {
			if ctx.Err() != nil {
				o.notify(ctx, operator, results)
				return results, ctx.Err()
			}
			slog.Error("reply generation failed, recording failure",
				"cycle_id", cycle, "comment_id", comment.ID, "error", err)
			result = o.dispatcher.RecordFailure(ctx, dispatch.Request{
				Action:   store.ActionReply,
				Platform: platformName,
				TargetID: comment.ID,
			}, err)
		}
		results = append(results, result)
	}

	o.notify(ctx, operator, results)
	return results, nil
}

// replyToComment resolves the comment author's own preferences, so each reply
// matches the tone and style that author asked for. Unknown authors fall back
// to system defaults inside the resolver.
func (o *Orchestrator) replyToComment(ctx context.Context, platformName string, comment platform.Comment) (*store.ActionResult, error) {
	resolved, err := o.resolver.Resolve(ctx, comment.UserID, prefs.ScopeReply)
	if err != nil {
		return nil, err
	}

	text, err := o.generateWithRetry(ctx, generate.GenerationRequest{
		Scope:         prefs.ScopeReply,
		ContextText:   comment.Text,
		ThreadHistory: []string{comment.Text},
		Preferences:   resolved,
	})
	if err != nil {
		return nil, err
	}

	return o.dispatcher.Dispatch(ctx, dispatch.Request{
		Action:   store.ActionReply,
		Platform: platformName,
		TargetID: comment.ID,
		Text:     text,
	})
}

// RegisterHandlers subscribes the orchestrator's event handlers on the bus.
// New comments and replies trigger response cycles; user preference changes
// invalidate the preference cache.
func (o *Orchestrator) RegisterHandlers(bus *eventbus.Bus) {
	bus.Subscribe("comments", eventbus.KindNewComment, o.handleNewComment)
	bus.Subscribe("replies", eventbus.KindNewReply, o.handleNewReply)
	bus.Subscribe("user_preferences", eventbus.KindRowUpdated, o.handlePreferencesChanged)
	bus.Subscribe("user_preferences", eventbus.KindRowDeleted, o.handlePreferencesChanged)
}

// commentRow matches the row payload the change feed emits for the comments
// and replies tables.
type commentRow struct {
	ID        string `json:"id"`
	PostID    string `json:"post_id"`
	CommentID string `json:"comment_id"`
	UserID    int32  `json:"user_id"`
	Platform  string `json:"platform"`
	Text      string `json:"text"`
}

// handleNewComment replies to a freshly inserted comment. Delivery is
// at-least-once, so a redelivered event produces at most a duplicate reply
// attempt, never an inconsistent state.
func (o *Orchestrator) handleNewComment(ctx context.Context, ev eventbus.Event) error {
	var row commentRow
	if err := json.Unmarshal(ev.Row, &row); err != nil {
		return errors.Wrapf(err, "malformed comment row for event %s", ev.ID)
	}
	if row.Platform == "" {
		slog.Warn("comment has no platform tag, skipping", "comment_id", row.ID)
		return nil
	}

	operator, err := o.resolver.Resolve(ctx, o.opts.OperatorUserID, prefs.ScopeReply)
	if err != nil {
		return err
	}

	result, err := o.replyToComment(ctx, row.Platform, platform.Comment{
		ID:     row.ID,
		PostID: row.PostID,
		UserID: row.UserID,
		Text:   row.Text,
	})
	if err != nil {
		return err
	}

	o.notify(ctx, operator, []*store.ActionResult{result})
	return nil
}

// handleNewReply responds to a reply in an ongoing thread.
func (o *Orchestrator) handleNewReply(ctx context.Context, ev eventbus.Event) error {
	var row commentRow
	if err := json.Unmarshal(ev.Row, &row); err != nil {
		return errors.Wrapf(err, "malformed reply row for event %s", ev.ID)
	}
	if row.Platform == "" {
		slog.Warn("reply has no platform tag, skipping", "reply_id", row.ID)
		return nil
	}

	operator, err := o.resolver.Resolve(ctx, o.opts.OperatorUserID, prefs.ScopeReply)
	if err != nil {
		return err
	}

	result, err := o.replyToComment(ctx, row.Platform, platform.Comment{
		ID:     row.ID,
		UserID: row.UserID,
		Text:   row.Text,
	})
	if err != nil {
		return err
	}

	o.notify(ctx, operator, []*store.ActionResult{result})
	return nil
}

func (o *Orchestrator) handlePreferencesChanged(_ context.Context, ev eventbus.Event) error {
	userID, err := strconv.ParseInt(ev.ID, 10, 32)
	if err != nil {
		return errors.Wrapf(err, "malformed user id %q in preferences event", ev.ID)
	}
	o.store.InvalidateUserPreferences(int32(userID))
	slog.Debug("invalidated cached preferences", "user_id", userID)
	return nil
}

// pickCaption prefers the user's category but falls back to the whole pool
// when that category is empty.
func (o *Orchestrator) pickCaption(ctx context.Context, category string) (*store.Caption, error) {
	if category != "" {
		caption, err := o.store.RandomCaption(ctx, &category)
		if err == nil {
			return caption, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		slog.Debug("no captions in preferred category, falling back", "category", category)
	}
	return o.store.RandomCaption(ctx, nil)
}

// generateWithRetry retries retryable generation failures up to the
// configured budget. Parent cancellation always wins over the retry budget.
func (o *Orchestrator) generateWithRetry(ctx context.Context, req generate.GenerationRequest) (string, error) {
	attempts := 1 + o.opts.GenerationRetries
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := o.generator.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retryable(err) {
			return "", err
		}
		if attempt < attempts {
			slog.Warn("generation failed, retrying",
				"scope", req.Scope, "attempt", attempt, "max_attempts", attempts, "error", err)
		}
	}
	return "", lastErr
}

func retryable(err error) bool {
	var genErr *generate.GenerationError
	return errors.As(err, &genErr) || errors.Is(err, context.DeadlineExceeded)
}

// notify sends a cycle summary, honoring the user's notification settings.
// Notification failures never fail the cycle.
func (o *Orchestrator) notify(ctx context.Context, resolved *prefs.Resolved, results []*store.ActionResult) {
	if len(results) == 0 {
		return
	}
	recipient := notify.RecipientFromPreferences(resolved, o.opts.OperatorEmail)
	o.notifier.Notify(ctx, recipient, results)
}
