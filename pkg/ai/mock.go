package ai

import (
	"context"
	"errors"
	"sync"
)

// MockResponse is a canned reply for MockClient. Text answers Complete,
// Args answers CompleteStructured.
type MockResponse struct {
	Text string
	Args map[string]interface{}
	Err  error
}

// MockClient is a deterministic Client for tests. It returns canned responses in
// FIFO order and records every request.
type MockClient struct {
	mu        sync.Mutex
	responses []MockResponse

	Completions []CompletionRequest
	Structured  []StructuredRequest
}

// NewMockClient creates a MockClient with the given canned responses.
func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{responses: responses}
}

func (m *MockClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Completions = append(m.Completions, req)
	resp, err := m.next()
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (m *MockClient) CompleteStructured(_ context.Context, req StructuredRequest) (map[string]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Structured = append(m.Structured, req)
	resp, err := m.next()
	if err != nil {
		return nil, err
	}
	return resp.Args, nil
}

func (m *MockClient) Provider() string { return "mock" }

func (m *MockClient) Model() string { return "mock" }

// AddResponse appends a canned response to the queue.
func (m *MockClient) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of calls made so far.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Completions) + len(m.Structured)
}

func (m *MockClient) next() (MockResponse, error) {
	if len(m.responses) == 0 {
		return MockResponse{}, &CallError{Provider: "mock", Err: errors.New("no canned response left")}
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	if resp.Err != nil {
		return MockResponse{}, resp.Err
	}
	return resp, nil
}
