package devops

import "encoding/json"

// WIQLRequest is the body of POST /_apis/wit/wiql.
type WIQLRequest struct {
	Query string `json:"query"`
}

// WIQLResponse lists the ids matched by a WIQL query.
type WIQLResponse struct {
	WorkItems []WorkItemReference `json:"workItems"`
}

// WorkItemReference is an id/url pair returned by WIQL.
type WorkItemReference struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// WorkItemsResponse is the response from GET /_apis/wit/workitems. With
// errorPolicy=omit, ids that could not be read come back as null.
type WorkItemsResponse struct {
	Count int               `json:"count"`
	Value []json.RawMessage `json:"value"`
}

// WorkItem is a single work item with the requested fields.
type WorkItem struct {
	ID     int            `json:"id"`
	Rev    int            `json:"rev"`
	Fields WorkItemFields `json:"fields"`
}

// WorkItemFields holds the fields requested on fetch.
type WorkItemFields struct {
	Title        string    `json:"System.Title"`
	State        string    `json:"System.State"`
	WorkItemType string    `json:"System.WorkItemType"`
	AssignedTo   *Identity `json:"System.AssignedTo"`
	CreatedBy    *Identity `json:"System.CreatedBy"`
	CreatedDate  string    `json:"System.CreatedDate"`
	Description  string    `json:"System.Description"`
	Priority     *int      `json:"Microsoft.VSTS.Common.Priority"`
}

// Identity is a user reference.
type Identity struct {
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

// PatchOperation is one JSON Patch (RFC 6902) operation.
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}
