package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/elajah-datadog/dogflare/internal/core"
)

// MockTicketingClient serves canned attachment metadata and statuses.
type MockTicketingClient struct {
	mu          sync.Mutex
	assignees   map[string]string                // email -> id
	openTickets map[string][]string              // assignee id -> ticket ids
	attachments map[string][]core.AttachmentMeta // ticket id -> metas
	statuses    map[string]string                // ticket id -> status
	listErr     error
}

var _ core.TicketingClient = (*MockTicketingClient)(nil)

// NewMockTicketingClient creates an empty MockTicketingClient.
func NewMockTicketingClient() *MockTicketingClient {
	return &MockTicketingClient{
		assignees:   make(map[string]string),
		openTickets: make(map[string][]string),
		attachments: make(map[string][]core.AttachmentMeta),
		statuses:    make(map[string]string),
	}
}

// AddAssignee registers an email -> assignee id mapping with open tickets.
func (m *MockTicketingClient) AddAssignee(email, id string, ticketIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignees[email] = id
	m.openTickets[id] = ticketIDs
}

// AddAttachment registers one attachment for a ticket.
func (m *MockTicketingClient) AddAttachment(ticketID string, meta core.AttachmentMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachments[ticketID] = append(m.attachments[ticketID], meta)
}

// SetStatus sets the status returned for a ticket.
func (m *MockTicketingClient) SetStatus(ticketID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[ticketID] = status
}

// FailListAttachments makes every ListAttachments call return err.
func (m *MockTicketingClient) FailListAttachments(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

func (m *MockTicketingClient) SearchAssigneeID(_ context.Context, email string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.assignees[email]
	return id, ok, nil
}

func (m *MockTicketingClient) ListOpenTicketIDs(_ context.Context, assigneeID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openTickets[assigneeID], nil
}

func (m *MockTicketingClient) ListAttachments(_ context.Context, ticketID string) ([]core.AttachmentMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.attachments[ticketID], nil
}

func (m *MockTicketingClient) FetchTicketStatuses(_ context.Context, ticketIDs []string) ([]core.TicketStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	statuses := make([]core.TicketStatus, 0, len(ticketIDs))
	for _, id := range ticketIDs {
		status, ok := m.statuses[id]
		if !ok {
			continue
		}
		statuses = append(statuses, core.TicketStatus{ID: id, Status: status})
	}
	return statuses, nil
}

// MockFetcher serves canned bodies by URL.
type MockFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	// FailAfter truncates a body mid-stream after this many bytes when > 0.
	FailAfter int
}

var _ core.Fetcher = (*MockFetcher)(nil)

// NewMockFetcher creates an empty MockFetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		bodies: make(map[string][]byte),
		errs:   make(map[string]error),
	}
}

// AddResource registers a body served for url.
func (f *MockFetcher) AddResource(url string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[url] = body
}

// FailResource makes fetches of url return err.
func (f *MockFetcher) FailResource(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = err
}

func (f *MockFetcher) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("no such resource: %s", url)
	}
	if f.FailAfter > 0 {
		return io.NopCloser(&truncatedReader{r: bytes.NewReader(body), remaining: f.FailAfter}), nil
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// truncatedReader fails with an error after remaining bytes, simulating a
// connection dropped mid-stream.
type truncatedReader struct {
	r         io.Reader
	remaining int
}

func (t *truncatedReader) Read(p []byte) (int, error) {
	if t.remaining <= 0 {
		return 0, fmt.Errorf("connection reset mid-stream")
	}
	if len(p) > t.remaining {
		p = p[:t.remaining]
	}
	n, err := t.r.Read(p)
	t.remaining -= n
	return n, err
}
