// Package dispatch executes platform-facing actions and records their
// outcome. Transport failures become result data; only a capability mismatch
// aborts before side effects.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/socialbot/bot/platform"
	"github.com/hrygo/socialbot/store"
)

// Request describes one platform action.
type Request struct {
	Action   string // store.ActionPost, ActionComment, ActionReply
	Platform string
	// TargetID is the post to comment on or the comment to reply to.
	// Unused for posts.
	TargetID string
	// ImageURL is optional post material.
	ImageURL string
	// Text is the generated content to publish.
	Text string
}

// Dispatcher performs actions through the platform registry and persists
// every outcome before reporting it.
type Dispatcher struct {
	registry *platform.Registry
	store    *store.Store
	timeout  time.Duration
}

func NewDispatcher(registry *platform.Registry, s *store.Store) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		store:    s,
		timeout:  30 * time.Second,
	}
}

// Dispatch validates the platform, performs the call, and persists the
// ActionResult before returning it (audit-before-report). A platform call
// failure is captured in the result, never returned as an error; the caller
// can always continue to notification. The only error return is an
// unsupported platform, which happens before any side effect.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*store.ActionResult, error) {
	client, err := d.registry.Resolve(req.Platform)
	if err != nil {
		return nil, err
	}

	result := &store.ActionResult{
		ID:            shortuuid.New(),
		Action:        req.Action,
		Platform:      req.Platform,
		Status:        store.ActionStatusSuccess,
		GeneratedText: req.Text,
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	targetID, callErr := d.call(callCtx, client, req)
	if callErr != nil {
		result.Status = store.ActionStatusFailure
		result.Error = callErr.Error()
		slog.Error("platform action failed",
			"action", req.Action, "platform", req.Platform, "target", req.TargetID, "error", callErr)
	} else {
		result.TargetID = targetID
		slog.Info("platform action completed",
			"action", req.Action, "platform", req.Platform, "target_id", targetID)
	}

	// Persist before reporting. A failure here leaves an audit gap, which is
	// logged; the in-memory result still flows to notification.
	persisted, persistErr := d.store.CreateActionResult(ctx, result)
	if persistErr != nil {
		slog.Error("failed to persist action result", "action_id", result.ID, "error", persistErr)
		return result, nil
	}

	return persisted, nil
}

// RecordFailure persists a failure result for an action that never reached
// the platform, such as a generation failure inside a batch. The audit trail
// stays complete and the caller gets a result it can report like any other.
func (d *Dispatcher) RecordFailure(ctx context.Context, req Request, cause error) *store.ActionResult {
	result := &store.ActionResult{
		ID:       shortuuid.New(),
		Action:   req.Action,
		Platform: req.Platform,
		TargetID: req.TargetID,
		Status:   store.ActionStatusFailure,
		Error:    cause.Error(),
	}

	persisted, err := d.store.CreateActionResult(ctx, result)
	if err != nil {
		slog.Error("failed to persist action result", "action_id", result.ID, "error", err)
		return result
	}
	return persisted
}

func (d *Dispatcher) call(ctx context.Context, client platform.Client, req Request) (string, error) {
	switch req.Action {
	case store.ActionPost:
		return client.CreatePost(ctx, req.ImageURL, req.Text)
	case store.ActionComment:
		return client.CreateComment(ctx, req.TargetID, req.Text)
	case store.ActionReply:
		return client.CreateReply(ctx, req.TargetID, req.Text)
	default:
		return "", errors.Errorf("unknown action %q", req.Action)
	}
}
