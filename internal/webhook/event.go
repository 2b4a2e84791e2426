package webhook

// EventKind enumerates the webhook event types this service understands.
// Dispatch happens through a switch over this closed set with an explicit
// default arm, so future kinds fall through to an "ignored" outcome
// instead of failing.
type EventKind string

const (
	EventPush         EventKind = "push"
	EventPullRequest  EventKind = "pull_request"
	EventIssues       EventKind = "issues"
	EventIssueComment EventKind = "issue_comment"
	EventDiscussion   EventKind = "discussion"
	EventCreate       EventKind = "create"
	EventDelete       EventKind = "delete"
)

// ParseEventKind maps the X-GitHub-Event header value onto the enum.  The
// second return is false for kinds this service does not handle.
func ParseEventKind(s string) (EventKind, bool) {
	switch k := EventKind(s); k {
	case EventPush, EventPullRequest, EventIssues, EventIssueComment,
		EventDiscussion, EventCreate, EventDelete:
		return k, true
	default:
		return EventKind(s), false
	}
}
