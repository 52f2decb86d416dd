package core

import (
	"context"
	"time"
)

// AttachmentMeta describes one remote attachment as reported by the
// ticketing service. FileName is already de-duplicated within the batch it
// was listed in (see TicketingClient.ListAttachments).
type AttachmentMeta struct {
	ID        string
	URL       string
	FileName  string
	CreatedAt time.Time
}

// TicketingClient is the boundary to the remote ticketing service. The
// production implementation lives in internal/zendesk; it is treated as an
// opaque, pre-authenticated handle.
type TicketingClient interface {
	// SearchAssigneeID resolves a user email to the service-side user id.
	// found is false when no user matches.
	SearchAssigneeID(ctx context.Context, email string) (id string, found bool, err error)

	// ListOpenTicketIDs returns the ids of the assignee's tickets that are
	// not yet solved or closed (the service filters those out).
	ListOpenTicketIDs(ctx context.Context, assigneeID string) ([]string, error)

	// ListAttachments returns the attachment metadata for one ticket, in
	// comment order. File names recurring within this one result carry a
	// "(n)" counter suffix so they never collide on disk. An empty slice
	// means the ticket has no attachments.
	ListAttachments(ctx context.Context, ticketID string) ([]AttachmentMeta, error)

	// FetchTicketStatuses returns the current status of each ticket,
	// batched service-side and concatenated in request order.
	FetchTicketStatuses(ctx context.Context, ticketIDs []string) ([]TicketStatus, error)
}
