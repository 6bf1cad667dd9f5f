package services

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/yash-217/yash.fun/application/ports"
)

type MockSearchClient struct {
	mock.Mock
}

func (m *MockSearchClient) SubmitTicket(ctx context.Context, query ports.SearchQuery) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

func (m *MockSearchClient) TicketStatus(ctx context.Context, ticketID string) (*ports.TicketStatus, error) {
	args := m.Called(ctx, ticketID)
	status, _ := args.Get(0).(*ports.TicketStatus)
	return status, args.Error(1)
}

func (m *MockSearchClient) TicketResult(ctx context.Context, ticketID string) (json.RawMessage, error) {
	args := m.Called(ctx, ticketID)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

type MockStructureSource struct {
	mock.Mock
}

func (m *MockStructureSource) FetchStructure(ctx context.Context, structureID string) (string, error) {
	args := m.Called(ctx, structureID)
	return args.String(0), args.Error(1)
}
