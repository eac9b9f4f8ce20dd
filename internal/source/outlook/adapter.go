package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/worklist/internal/model"
	"github.com/nhle/worklist/internal/source"
	"github.com/nhle/worklist/internal/source/rest"
)

const (
	defaultBaseURL = "https://graph.microsoft.com/v1.0"

	// maxTop is the hard cap on messages examined per fetch. Filtering
	// happens client-side, so flagged or important mail older than the
	// newest maxTop messages is not seen.
	maxTop = 100

	archiveFolder = "archive"
)

// selectFields are the message properties requested on fetch.
var selectFields = []string{
	"id", "subject", "from", "receivedDateTime", "bodyPreview",
	"importance", "flag", "isRead", "webLink",
}

// Options configures an Adapter.
type Options struct {
	BaseURL    string
	Tokens     source.TokenProvider
	HTTPClient *http.Client

	// Top is how many of the most recent messages to examine, capped at 100.
	Top int

	Now func() time.Time
}

// Adapter implements source.Source and source.Archiver for Microsoft
// Graph mail.
type Adapter struct {
	client *rest.Client
	top    int
	now    func() time.Time
}

var (
	_ source.Source   = (*Adapter)(nil)
	_ source.Archiver = (*Adapter)(nil)
)

// NewAdapter creates a new Graph mail adapter.
func NewAdapter(opts Options) *Adapter {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	top := opts.Top
	if top <= 0 || top > maxTop {
		top = maxTop
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Adapter{
		client: rest.NewClient(
			model.SourceTypeOutlook, baseURL, opts.Tokens, opts.HTTPClient,
		),
		top: top,
		now: now,
	}
}

// Type returns the source type identifier for Outlook.
func (a *Adapter) Type() model.SourceType {
	return model.SourceTypeOutlook
}

// FetchActionable retrieves the most recent messages and keeps those that
// are flagged or of high importance.
func (a *Adapter) FetchActionable(
	ctx context.Context,
) (*source.FetchResult, error) {
	query := url.Values{}
	query.Set("$select", strings.Join(selectFields, ","))
	query.Set("$orderby", "receivedDateTime desc")
	query.Set("$top", strconv.Itoa(a.top))

	var resp MessagesResponse
	if err := a.client.Get(
		ctx, "fetch", "/me/messages", query, &resp,
	); err != nil {
		return nil, fmt.Errorf("fetching Outlook messages: %w", err)
	}

	fetchedAt := a.now()
	result := &source.FetchResult{
		Items: make([]model.Task, 0, len(resp.Value)),
	}
	for _, raw := range resp.Value {
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil ||
			strings.TrimSpace(msg.ID) == "" {
			result.Skipped++
			continue
		}
		if !isActionable(msg) {
			continue
		}
		result.Items = append(result.Items, messageToTask(msg, fetchedAt))
	}

	return result, nil
}

// Archive moves the message to the well-known archive folder. Graph gives
// a moved message a new id, so a repeated archive answers 404; that is
// treated as already archived.
func (a *Adapter) Archive(ctx context.Context, id string) error {
	path := fmt.Sprintf("/me/messages/%s/move", url.PathEscape(id))

	var moved MoveResponse
	err := a.client.Post(ctx, "archive", path, nil,
		MoveRequest{DestinationID: archiveFolder}, &moved)
	if err != nil {
		if source.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("archiving Outlook message %s: %w", id, err)
	}
	return nil
}

// isActionable reports whether a message is flagged or high importance.
func isActionable(msg Message) bool {
	return isFlagged(msg) || isImportant(msg)
}

func isFlagged(msg Message) bool {
	return msg.Flag != nil &&
		strings.EqualFold(msg.Flag.FlagStatus, "flagged")
}

func isImportant(msg Message) bool {
	return strings.EqualFold(msg.Importance, "high")
}

// messageToTask converts a Graph message to a model.Task.
func messageToTask(msg Message, fetchedAt time.Time) model.Task {
	var name, address string
	if msg.From != nil {
		name, address = source.Actor(
			msg.From.EmailAddress.Name, msg.From.EmailAddress.Address,
		)
	} else {
		name, address = source.Actor("", "")
	}

	return model.Task{
		ID:              msg.ID,
		Source:          model.SourceTypeOutlook,
		Title:           source.OrPlaceholder(msg.Subject, model.NoSubject),
		ActorName:       name,
		ActorIdentifier: address,
		Timestamp: source.ParseTime(
			msg.ReceivedDateTime, fetchedAt, time.RFC3339Nano,
		),
		Summary: source.Summary(msg.BodyPreview),
		Flags: model.Flags{
			Important: isImportant(msg),
			Flagged:   isFlagged(msg),
			Read:      msg.IsRead != nil && *msg.IsRead,
		},
		URL: msg.WebLink,
	}
}
