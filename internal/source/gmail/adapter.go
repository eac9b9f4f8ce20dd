package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/nhle/worklist/internal/model"
	"github.com/nhle/worklist/internal/source"
)

const (
	defaultBaseURL = "https://gmail.googleapis.com/"
	defaultQuery   = "is:starred OR is:important"
	defaultUserID  = "me"
	defaultMax     = 50
	maxResultsCap  = 100

	labelInbox     = "INBOX"
	labelImportant = "IMPORTANT"
	labelStarred   = "STARRED"
	labelUnread    = "UNREAD"

	webURLPrefix = "https://mail.google.com/mail/u/0/#all/"
)

// metadataHeaders are the headers requested with format=metadata.
var metadataHeaders = []string{"From", "Subject", "Date"}

// Options configures an Adapter.
type Options struct {
	BaseURL    string
	UserID     string
	Query      string
	MaxResults int
	Tokens     source.TokenProvider
	HTTPClient *http.Client
	Now        func() time.Time
}

// Adapter implements source.Source and source.Archiver for Gmail.
type Adapter struct {
	baseURL    string
	userID     string
	query      string
	maxResults int
	tokens     source.TokenProvider
	httpClient *http.Client
	now        func() time.Time
}

var (
	_ source.Source   = (*Adapter)(nil)
	_ source.Archiver = (*Adapter)(nil)
)

// NewAdapter creates a new Gmail source adapter.
func NewAdapter(opts Options) *Adapter {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	userID := opts.UserID
	if userID == "" {
		userID = defaultUserID
	}
	query := opts.Query
	if query == "" {
		query = defaultQuery
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMax
	}
	if maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Adapter{
		baseURL:    baseURL,
		userID:     userID,
		query:      query,
		maxResults: maxResults,
		tokens:     opts.Tokens,
		httpClient: httpClient,
		now:        now,
	}
}

// Type returns the source type identifier for Gmail.
func (a *Adapter) Type() model.SourceType {
	return model.SourceTypeGmail
}

// FetchActionable lists messages matching the configured query, then
// fetches each one's metadata. A message that vanished or cannot be
// decoded is skipped; auth, throttling and network failures abort the
// whole fetch.
func (a *Adapter) FetchActionable(
	ctx context.Context,
) (*source.FetchResult, error) {
	srv, err := a.service(ctx, "fetch")
	if err != nil {
		return nil, err
	}

	list, err := srv.Users.Messages.List(a.userID).
		Q(a.query).
		MaxResults(int64(a.maxResults)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("listing Gmail messages: %w", a.classify("fetch", err))
	}

	fetchedAt := a.now()
	result := &source.FetchResult{
		Items: make([]model.Task, 0, len(list.Messages)),
	}
	for _, ref := range list.Messages {
		if ref == nil || ref.Id == "" {
			result.Skipped++
			continue
		}

		msg, err := srv.Users.Messages.Get(a.userID, ref.Id).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Context(ctx).
			Do()
		if err != nil {
			adapterErr := a.classify("fetch", err)
			switch adapterErr.Kind {
			case source.KindMalformedResponse, source.KindRejected:
				result.Skipped++
				continue
			default:
				return nil, fmt.Errorf(
					"getting Gmail message %s: %w", ref.Id, adapterErr,
				)
			}
		}

		result.Items = append(result.Items, messageToTask(msg, fetchedAt))
	}

	return result, nil
}

// Archive removes the INBOX label. Removing an absent label is a no-op on
// Gmail's side, so repeated calls converge on the same state.
func (a *Adapter) Archive(ctx context.Context, id string) error {
	srv, err := a.service(ctx, "archive")
	if err != nil {
		return err
	}

	_, err = srv.Users.Messages.Modify(a.userID, id, &gmailapi.ModifyMessageRequest{
		RemoveLabelIds: []string{labelInbox},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("archiving Gmail message %s: %w", id, a.classify("archive", err))
	}
	return nil
}

// service builds a Gmail API client carrying the current bearer token.
func (a *Adapter) service(
	ctx context.Context,
	op string,
) (*gmailapi.Service, error) {
	tok, err := a.tokens.Token(ctx, model.SourceTypeGmail, op)
	if err != nil {
		return nil, err
	}

	authed := &http.Client{
		Timeout: a.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(tok),
			Base:   a.httpClient.Transport,
		},
	}

	srv, err := gmailapi.NewService(ctx,
		option.WithHTTPClient(authed),
		option.WithEndpoint(a.baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("creating Gmail service: %w", err)
	}
	return srv, nil
}

// classify maps a Gmail client error to an AdapterError. API errors carry
// an HTTP status; transport errors have a *url.Error in the chain;
// anything else is a response that failed to decode.
func (a *Adapter) classify(op string, err error) *source.AdapterError {
	adapterErr := &source.AdapterError{
		Source: model.SourceTypeGmail,
		Op:     op,
		Err:    err,
	}

	var apiErr *googleapi.Error
	var transportErr interface{ Timeout() bool }
	switch {
	case errors.As(err, &apiErr):
		adapterErr.StatusCode = apiErr.Code
		adapterErr.Kind = source.KindForStatus(apiErr.Code)
		if adapterErr.Kind == source.KindRateLimited {
			adapterErr.RetryAfter = source.ParseRetryAfter(
				apiErr.Header.Get("Retry-After"), a.now(),
			)
		}
	case errors.As(err, &transportErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		adapterErr.Kind = source.KindUnreachable
	default:
		adapterErr.Kind = source.KindMalformedResponse
	}
	return adapterErr
}

// messageToTask converts a Gmail metadata message to a model.Task.
func messageToTask(msg *gmailapi.Message, fetchedAt time.Time) model.Task {
	headers := headerMap(msg.Payload)

	name, address := source.ParseSender(headers["from"])

	return model.Task{
		ID:              msg.Id,
		Source:          model.SourceTypeGmail,
		Title:           source.OrPlaceholder(headers["subject"], model.NoSubject),
		ActorName:       name,
		ActorIdentifier: address,
		Timestamp:       messageTime(msg, headers["date"], fetchedAt),
		Summary:         source.Summary(msg.Snippet),
		Flags: model.Flags{
			Important: hasLabel(msg.LabelIds, labelImportant),
			Flagged:   hasLabel(msg.LabelIds, labelStarred),
			Read:      msg.LabelIds != nil && !hasLabel(msg.LabelIds, labelUnread),
		},
		URL: webURLPrefix + msg.Id,
	}
}

// messageTime prefers internalDate (epoch milliseconds), then the Date
// header, then the time of the fetch.
func messageTime(msg *gmailapi.Message, dateHeader string, fetchedAt time.Time) time.Time {
	if msg.InternalDate > 0 {
		return time.UnixMilli(msg.InternalDate).UTC()
	}
	if dateHeader != "" {
		if t, err := mail.ParseDate(dateHeader); err == nil {
			return t
		}
	}
	return fetchedAt
}

// headerMap indexes the payload headers by lower-cased name. The first
// occurrence of a header wins.
func headerMap(part *gmailapi.MessagePart) map[string]string {
	headers := make(map[string]string)
	if part == nil {
		return headers
	}
	for _, h := range part.Headers {
		if h == nil {
			continue
		}
		key := strings.ToLower(h.Name)
		if _, seen := headers[key]; !seen {
			headers[key] = h.Value
		}
	}
	return headers
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}
