// Package eventbus maintains a live subscription to storage change
// notifications and routes each receipt to its registered handlers with
// at-least-once, per-table-ordered delivery.
package eventbus

import (
	"encoding/json"
	"time"
)

// Kind classifies a change receipt for subscription matching.
type Kind string

const (
	KindNewComment Kind = "new_comment"
	KindNewReply   Kind = "new_reply"
	KindRowUpdated Kind = "row_updated"
	KindRowDeleted Kind = "row_deleted"
)

// Change operations as reported by the transports.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// KindOf maps a table/op pair to the event kind. Inserts on the comments and
// replies tables are the domain triggers; everything else is a generic row
// change.
func KindOf(table, op string) Kind {
	switch op {
	case OpInsert:
		switch table {
		case "comments":
			return KindNewComment
		case "replies":
			return KindNewReply
		}
		return KindRowUpdated
	case OpDelete:
		return KindRowDeleted
	default:
		return KindRowUpdated
	}
}

// Receipt is one change notification as decoded off a transport. The same
// receipt may be delivered more than once; identity is (Table, ID, CommitTs).
type Receipt struct {
	Table    string
	Op       string
	ID       string
	Row      json.RawMessage
	CommitTs time.Time
}

// Event is a receipt classified for handler dispatch.
type Event struct {
	Kind       Kind
	Table      string
	ID         string
	Row        json.RawMessage
	CommitTs   time.Time
	ReceivedAt time.Time
}
