package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/VaradSinghal/EchoV3/internal/model"
	"github.com/VaradSinghal/EchoV3/internal/queue"
	"github.com/VaradSinghal/EchoV3/internal/repository"
)

var (
	// ErrMalformedPayload means the body was not valid JSON.  Terminal;
	// the provider is never asked to retry.
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrInvalidSignature means the delivery matched none of the
	// repository's active secrets.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrNoSecrets means the repository has no active registration to
	// verify against.  Deliveries are rejected rather than trusted.
	ErrNoSecrets = errors.New("no active webhook secret registered")
)

// Store is the slice of the data-access layer the dispatcher needs.
type Store interface {
	GetRepositoryByFullName(ctx context.Context, fullName string) (model.Repository, error)
	ListActiveWebhooks(ctx context.Context, repositoryID string) ([]model.Webhook, error)
	SetOpenIssuesCount(ctx context.Context, repositoryID string, count int) error
	TouchGitHubUpdatedAt(ctx context.Context, repositoryID string, at time.Time) error
	RecordDelivery(ctx context.Context, webhookID, status string, at time.Time) error
}

// Delivery is one inbound webhook call: the raw body plus the headers the
// contract cares about.
type Delivery struct {
	Event      string // X-GitHub-Event
	Signature  string // X-Hub-Signature-256
	DeliveryID string // X-GitHub-Delivery
	Body       []byte
}

// Outcome is the structured result returned to the provider.  The HTTP
// status only signals transport success; business results live here.
type Outcome struct {
	Status string         `json:"status"` // "processed" or "ignored"
	Event  string         `json:"event,omitempty"`
	Reason string         `json:"reason,omitempty"`
	Result map[string]any `json:"result,omitempty"`
}

func ignored(event, reason string) Outcome {
	return Outcome{Status: "ignored", Event: event, Reason: reason}
}

// payload is the subset of GitHub's event payloads the handlers read.
type payload struct {
	Action     string `json:"action"`
	Ref        string `json:"ref"`
	RefType    string `json:"ref_type"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Pusher struct {
		Name string `json:"name"`
	} `json:"pusher"`
	Commits     []json.RawMessage `json:"commits"`
	PullRequest struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		User   struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"pull_request"`
	Issue struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		User   struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"issue"`
	Comment struct {
		User struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"comment"`
	Discussion struct {
		Title string `json:"title"`
		User  struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"discussion"`
}

// Dispatcher validates inbound webhook deliveries and routes them by
// event kind.  Processing within one delivery is strictly sequential:
// parse, resolve, authenticate, dedup, dispatch.
type Dispatcher struct {
	store Store
	dedup Deduper
	now   func() time.Time

	// Notify, when set, is called after a successful dispatch so the
	// delivery can be relayed to the message broker.  Failures there are
	// the publisher's problem, not the webhook's.
	Notify func(ctx context.Context, ev queue.RepoEvent)
}

// NewDispatcher builds a dispatcher over the given store and dedup cache.
func NewDispatcher(store Store, dedup Deduper) *Dispatcher {
	return &Dispatcher{store: store, dedup: dedup, now: time.Now}
}

// WithClock replaces the dispatcher clock.  Tests only.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Process runs one delivery through the state machine.  Errors are
// limited to ErrMalformedPayload, ErrInvalidSignature, ErrNoSecrets and
// store failures; everything else resolves to an Outcome.
func (d *Dispatcher) Process(ctx context.Context, del Delivery) (Outcome, error) {
	var p payload
	if err := json.Unmarshal(del.Body, &p); err != nil {
		return Outcome{}, ErrMalformedPayload
	}

	if p.Repository.FullName == "" {
		log.Printf("webhook: %s delivery without repository info", del.Event)
		return ignored(del.Event, "no repository in payload"), nil
	}

	repo, err := d.store.GetRepositoryByFullName(ctx, p.Repository.FullName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("webhook: delivery for untracked repo %s", p.Repository.FullName)
			return ignored(del.Event, "repository not tracked"), nil
		}
		return Outcome{}, err
	}

	hooks, err := d.store.ListActiveWebhooks(ctx, repo.ID)
	if err != nil {
		return Outcome{}, err
	}
	if len(hooks) == 0 {
		log.Printf("webhook: %s has no active secrets, rejecting delivery", repo.FullName)
		return Outcome{}, ErrNoSecrets
	}
	matched := -1
	for i, h := range hooks {
		if VerifySignature(del.Body, del.Signature, h.Secret) {
			matched = i
			break
		}
	}
	if matched < 0 {
		log.Printf("webhook: invalid signature for %s", repo.FullName)
		return Outcome{}, ErrInvalidSignature
	}

	if del.DeliveryID != "" && d.dedup != nil && d.dedup.Seen(ctx, del.DeliveryID) {
		log.Printf("webhook: duplicate delivery %s for %s", del.DeliveryID, repo.FullName)
		return ignored(del.Event, "duplicate delivery"), nil
	}

	out, err := d.dispatch(ctx, del.Event, p, repo)
	status := "success"
	if err != nil {
		status = "failed"
	}
	if recErr := d.store.RecordDelivery(ctx, hooks[matched].ID, status, d.now().UTC()); recErr != nil {
		log.Printf("webhook: record delivery state: %v", recErr)
	}
	if err == nil && out.Status == "processed" && d.Notify != nil {
		d.Notify(ctx, queue.RepoEvent{
			DeliveryID: del.DeliveryID,
			Repository: repo.FullName,
			Event:      del.Event,
			Action:     p.Action,
			Status:     out.Status,
			ReceivedAt: d.now().UTC().Format(time.RFC3339),
		})
	}
	return out, err
}

// dispatch routes a verified delivery to its event handler.
func (d *Dispatcher) dispatch(ctx context.Context, event string, p payload, repo model.Repository) (Outcome, error) {
	kind, known := ParseEventKind(event)
	if !known {
		log.Printf("webhook: unhandled event type %q on %s", event, repo.FullName)
		return ignored(event, "unhandled event: "+event), nil
	}

	switch kind {
	case EventPush:
		return d.handlePush(ctx, p, repo)
	case EventIssues:
		return d.handleIssues(ctx, p, repo)
	case EventPullRequest:
		log.Printf("webhook: pr %s on %s: #%d by %s", p.Action, repo.FullName, p.PullRequest.Number, p.PullRequest.User.Login)
		return Outcome{Status: "processed", Event: event, Result: map[string]any{
			"action":    p.Action,
			"pr_number": p.PullRequest.Number,
			"title":     p.PullRequest.Title,
			"user":      p.PullRequest.User.Login,
		}}, nil
	case EventIssueComment:
		log.Printf("webhook: issue comment %s on %s: issue #%d", p.Action, repo.FullName, p.Issue.Number)
		return Outcome{Status: "processed", Event: event, Result: map[string]any{
			"action":       p.Action,
			"issue_number": p.Issue.Number,
			"comment_user": p.Comment.User.Login,
		}}, nil
	case EventDiscussion:
		log.Printf("webhook: discussion %s on %s: %s", p.Action, repo.FullName, p.Discussion.Title)
		return Outcome{Status: "processed", Event: event, Result: map[string]any{
			"action":           p.Action,
			"discussion_title": p.Discussion.Title,
			"discussion_user":  p.Discussion.User.Login,
		}}, nil
	case EventCreate, EventDelete:
		log.Printf("webhook: %s %s on %s: %s", kind, p.RefType, repo.FullName, p.Ref)
		return Outcome{Status: "processed", Event: event, Result: map[string]any{
			"ref_type": p.RefType,
			"ref":      p.Ref,
		}}, nil
	default:
		return ignored(event, "unhandled event: "+event), nil
	}
}

// handlePush touches the repository's remote updated timestamp.
func (d *Dispatcher) handlePush(ctx context.Context, p payload, repo model.Repository) (Outcome, error) {
	log.Printf("webhook: push to %s: %d commits by %s", repo.FullName, len(p.Commits), p.Pusher.Name)
	if err := d.store.TouchGitHubUpdatedAt(ctx, repo.ID, d.now().UTC()); err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: "processed", Event: string(EventPush), Result: map[string]any{
		"branch":        strings.TrimPrefix(p.Ref, "refs/heads/"),
		"commits_count": len(p.Commits),
		"pusher":        p.Pusher.Name,
	}}, nil
}

// handleIssues maintains the open-issue counter: opened increments,
// closed decrements clamped at zero, everything else is logged only.
func (d *Dispatcher) handleIssues(ctx context.Context, p payload, repo model.Repository) (Outcome, error) {
	log.Printf("webhook: issue %s on %s: #%d by %s", p.Action, repo.FullName, p.Issue.Number, p.Issue.User.Login)
	switch p.Action {
	case "opened":
		if err := d.store.SetOpenIssuesCount(ctx, repo.ID, repo.OpenIssuesCount+1); err != nil {
			return Outcome{}, err
		}
	case "closed":
		next := repo.OpenIssuesCount - 1
		if next < 0 {
			next = 0
		}
		if err := d.store.SetOpenIssuesCount(ctx, repo.ID, next); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{Status: "processed", Event: string(EventIssues), Result: map[string]any{
		"action":       p.Action,
		"issue_number": p.Issue.Number,
		"title":        p.Issue.Title,
		"user":         p.Issue.User.Login,
	}}, nil
}
