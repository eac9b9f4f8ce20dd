package outlook

import "encoding/json"

// MessagesResponse is the response from GET /me/messages. Items are kept
// raw so that one undecodable message does not fail the whole page.
type MessagesResponse struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink,omitempty"`
}

// Message is the subset of a Graph message selected by the adapter.
type Message struct {
	ID               string        `json:"id"`
	Subject          string        `json:"subject"`
	From             *Recipient    `json:"from"`
	ReceivedDateTime string        `json:"receivedDateTime"`
	BodyPreview      string        `json:"bodyPreview"`
	Importance       string        `json:"importance"`
	Flag             *FollowupFlag `json:"flag"`
	IsRead           *bool         `json:"isRead"`
	WebLink          string        `json:"webLink"`
}

// Recipient wraps an email address as Graph returns it.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// EmailAddress is a display name plus SMTP address.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// FollowupFlag is the follow-up flag of a message.
type FollowupFlag struct {
	FlagStatus string `json:"flagStatus"`
}

// MoveRequest is the body of POST /me/messages/{id}/move.
type MoveRequest struct {
	DestinationID string `json:"destinationId"`
}

// MoveResponse is the moved message; Graph assigns it a new id.
type MoveResponse struct {
	ID string `json:"id"`
}
