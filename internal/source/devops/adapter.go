package devops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nhle/worklist/internal/model"
	"github.com/nhle/worklist/internal/source"
	"github.com/nhle/worklist/internal/source/rest"
)

const (
	apiVersion         = "7.1"
	defaultBaseURL     = "https://dev.azure.com"
	defaultClosedState = "Closed"
	defaultMax         = 50
	maxResultsCap      = 100

	jsonPatchContentType = "application/json-patch+json"
	stateFieldPath       = "/fields/System.State"
)

// fetchFields are the work-item fields requested on fetch.
var fetchFields = []string{
	"System.Id", "System.Title", "System.State", "System.WorkItemType",
	"System.AssignedTo", "System.CreatedBy", "System.CreatedDate",
	"System.Description", "Microsoft.VSTS.Common.Priority",
}

// terminalStates are excluded from the open-items query in addition to
// the configured closed state.
var terminalStates = []string{"Closed", "Done", "Removed", "Resolved"}

// Options configures an Adapter.
type Options struct {
	BaseURL      string
	Organization string
	Project      string

	// ClosedState is the workflow state Complete transitions to.
	ClosedState string

	MaxResults int
	Tokens     source.TokenProvider
	HTTPClient *http.Client
	Now        func() time.Time
}

// Adapter implements source.Source and source.Completer for a work-item
// tracker speaking the WIQL / JSON Patch REST API.
type Adapter struct {
	client      *rest.Client
	webBase     string
	closedState string
	maxResults  int
	now         func() time.Time
}

var (
	_ source.Source    = (*Adapter)(nil)
	_ source.Completer = (*Adapter)(nil)
)

// NewAdapter creates a new work-item source adapter.
func NewAdapter(opts Options) *Adapter {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	for _, segment := range []string{opts.Organization, opts.Project} {
		if segment = strings.TrimSpace(segment); segment != "" {
			baseURL += "/" + url.PathEscape(segment)
		}
	}
	closedState := strings.TrimSpace(opts.ClosedState)
	if closedState == "" {
		closedState = defaultClosedState
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMax
	}
	if maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Adapter{
		client: rest.NewClient(
			model.SourceTypeDevOps, baseURL, opts.Tokens, opts.HTTPClient,
		),
		webBase:     baseURL,
		closedState: closedState,
		maxResults:  maxResults,
		now:         now,
	}
}

// Type returns the source type identifier for the work-item tracker.
func (a *Adapter) Type() model.SourceType {
	return model.SourceTypeDevOps
}

// FetchActionable runs a WIQL query for open items assigned to the
// current user, then reads their fields in one batch.
func (a *Adapter) FetchActionable(
	ctx context.Context,
) (*source.FetchResult, error) {
	query := url.Values{}
	query.Set("api-version", apiVersion)
	query.Set("$top", strconv.Itoa(a.maxResults))

	var wiql WIQLResponse
	if err := a.client.Post(
		ctx, "fetch", "/_apis/wit/wiql", query,
		WIQLRequest{Query: a.openItemsQuery()}, &wiql,
	); err != nil {
		return nil, fmt.Errorf("querying work items: %w", err)
	}

	ids := make([]string, 0, len(wiql.WorkItems))
	for _, ref := range wiql.WorkItems {
		if ref.ID > 0 && len(ids) < a.maxResults {
			ids = append(ids, strconv.Itoa(ref.ID))
		}
	}
	if len(ids) == 0 {
		return &source.FetchResult{Items: []model.Task{}}, nil
	}

	batch := url.Values{}
	batch.Set("ids", strings.Join(ids, ","))
	batch.Set("fields", strings.Join(fetchFields, ","))
	batch.Set("errorPolicy", "omit")
	batch.Set("api-version", apiVersion)

	var items WorkItemsResponse
	if err := a.client.Get(
		ctx, "fetch", "/_apis/wit/workitems", batch, &items,
	); err != nil {
		return nil, fmt.Errorf("reading work items: %w", err)
	}

	fetchedAt := a.now()
	result := &source.FetchResult{
		Items: make([]model.Task, 0, len(items.Value)),
	}
	for _, raw := range items.Value {
		var item WorkItem
		if err := json.Unmarshal(raw, &item); err != nil || item.ID <= 0 {
			result.Skipped++
			continue
		}
		result.Items = append(result.Items, a.workItemToTask(item, fetchedAt))
	}

	return result, nil
}

// Complete moves the work item to the closed state with a JSON Patch that
// names only the state field, so concurrent edits to other fields are
// left alone. Patching an already-closed item is accepted as a no-op.
func (a *Adapter) Complete(ctx context.Context, id string) error {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil || n <= 0 {
		return &source.AdapterError{
			Source: model.SourceTypeDevOps,
			Op:     "complete",
			Kind:   source.KindRejected,
			Err:    fmt.Errorf("invalid work item id %q", id),
		}
	}

	query := url.Values{}
	query.Set("api-version", apiVersion)

	patch := []PatchOperation{{
		Op:    "add",
		Path:  stateFieldPath,
		Value: a.closedState,
	}}

	var updated WorkItem
	path := "/_apis/wit/workitems/" + strconv.Itoa(n)
	if err := a.client.Patch(
		ctx, "complete", path, query, jsonPatchContentType, patch, &updated,
	); err != nil {
		return fmt.Errorf("completing work item %d: %w", n, err)
	}
	return nil
}

// openItemsQuery builds the WIQL selecting open items for @Me.
func (a *Adapter) openItemsQuery() string {
	states := []string{a.closedState}
	for _, s := range terminalStates {
		if !strings.EqualFold(s, a.closedState) {
			states = append(states, s)
		}
	}
	quoted := make([]string, len(states))
	for i, s := range states {
		quoted[i] = "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}

	return "SELECT [System.Id] FROM WorkItems" +
		" WHERE [System.AssignedTo] = @Me" +
		" AND [System.State] NOT IN (" + strings.Join(quoted, ", ") + ")" +
		" ORDER BY [System.ChangedDate] DESC"
}

// workItemToTask converts a work item to a model.Task.
func (a *Adapter) workItemToTask(item WorkItem, fetchedAt time.Time) model.Task {
	actor := item.Fields.AssignedTo
	if actor == nil {
		actor = item.Fields.CreatedBy
	}
	name, identifier := source.Actor("", "")
	if actor != nil {
		name, identifier = source.Actor(actor.DisplayName, actor.UniqueName)
	}

	id := strconv.Itoa(item.ID)
	return model.Task{
		ID:              id,
		Source:          model.SourceTypeDevOps,
		Title:           source.OrPlaceholder(item.Fields.Title, model.NoTitle),
		ActorName:       name,
		ActorIdentifier: identifier,
		Timestamp: source.ParseTime(
			item.Fields.CreatedDate, fetchedAt, time.RFC3339Nano,
		),
		Summary: source.Summary(htmlToText(item.Fields.Description)),
		Flags: model.Flags{
			Important: item.Fields.Priority != nil && *item.Fields.Priority == 1,
			// Work items carry no flag or unread marker.
			Flagged: false,
			Read:    true,
		},
		URL: a.webBase + "/_workitems/edit/" + id,
	}
}

// htmlToText renders a rich-text description as plain text.
func htmlToText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	// Keep block boundaries as word breaks.
	doc.Find("br, p, div, li, tr, h1, h2, h3, h4").AppendHtml(" ")
	return doc.Text()
}
