package store

// Action variants.
const (
	ActionPost    = "post"
	ActionComment = "comment"
	ActionReply   = "reply"
)

// Action result statuses.
const (
	ActionStatusSuccess = "success"
	ActionStatusFailure = "failure"
)

// ActionResult is the audit record for one platform-facing action. Dispatch
// failures are captured here as data rather than propagated, so persistence
// and notification always run.
type ActionResult struct {
	ID            string
	Action        string
	Platform      string
	TargetID      string
	Status        string
	GeneratedText string
	Error         string
	CreatedTs     int64
}

// Succeeded reports whether the action completed on the platform.
func (r *ActionResult) Succeeded() bool {
	return r.Status == ActionStatusSuccess
}

// FindActionResult specifies the conditions for finding action results.
type FindActionResult struct {
	Platform *string
	Action   *string
	Status   *string
	Limit    *int
}
