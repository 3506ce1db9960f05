package testhelpers

import (
	"context"
	"time"

	"pointsbank/domain/entities"

	"github.com/stretchr/testify/mock"
)

// MockGameService is a mock implementation of GameService
type MockGameService struct {
	mock.Mock
}

func (m *MockGameService) Play(ctx context.Context, req entities.GameRequest) (*entities.GameResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GameResult), args.Error(1)
}

func (m *MockGameService) Games() []entities.GameKind {
	args := m.Called()
	return args.Get(0).([]entities.GameKind)
}

// MockBlackjackService is a mock implementation of BlackjackService
type MockBlackjackService struct {
	mock.Mock
}

func (m *MockBlackjackService) Start(ctx context.Context, username string, bet int64) (*entities.BlackjackResult, error) {
	args := m.Called(ctx, username, bet)
	return blackjackResult(args)
}

func (m *MockBlackjackService) Hit(ctx context.Context, username string) (*entities.BlackjackResult, error) {
	args := m.Called(ctx, username)
	return blackjackResult(args)
}

func (m *MockBlackjackService) Stand(ctx context.Context, username string) (*entities.BlackjackResult, error) {
	args := m.Called(ctx, username)
	return blackjackResult(args)
}

func (m *MockBlackjackService) Session(username string) *entities.BlackjackSession {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*entities.BlackjackSession)
}

func (m *MockBlackjackService) Sweep(ctx context.Context, now time.Time) ([]*entities.BlackjackResult, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.BlackjackResult), args.Error(1)
}

func blackjackResult(args mock.Arguments) (*entities.BlackjackResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BlackjackResult), args.Error(1)
}

// MockDuelService is a mock implementation of DuelService
type MockDuelService struct {
	mock.Mock
}

func (m *MockDuelService) Challenge(ctx context.Context, challenger, target string, stake int64, all bool) (*entities.DuelResult, error) {
	args := m.Called(ctx, challenger, target, stake, all)
	return duelResult(args)
}

func (m *MockDuelService) ChallengeSponsored(ctx context.Context, challenger, target string, pot int64, sponsor *entities.Sponsorship) (*entities.DuelResult, error) {
	args := m.Called(ctx, challenger, target, pot, sponsor)
	return duelResult(args)
}

func (m *MockDuelService) Accept(ctx context.Context, target, challenger string) (*entities.DuelResult, error) {
	args := m.Called(ctx, target, challenger)
	return duelResult(args)
}

func (m *MockDuelService) Decline(ctx context.Context, target, challenger string) (*entities.DuelResult, error) {
	args := m.Called(ctx, target, challenger)
	return duelResult(args)
}

func (m *MockDuelService) Pending(username string) []*entities.PendingDuel {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*entities.PendingDuel)
}

func (m *MockDuelService) Sweep(ctx context.Context, now time.Time) ([]*entities.DuelResult, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.DuelResult), args.Error(1)
}

func duelResult(args mock.Arguments) (*entities.DuelResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DuelResult), args.Error(1)
}

// MockMarketplaceService is a mock implementation of MarketplaceService
type MockMarketplaceService struct {
	mock.Mock
}

func (m *MockMarketplaceService) Buy(ctx context.Context, username, action string) (*entities.PurchaseResult, error) {
	args := m.Called(ctx, username, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PurchaseResult), args.Error(1)
}

func (m *MockMarketplaceService) SponsorDuel(ctx context.Context, buyer, challenger, target string) (*entities.PurchaseResult, error) {
	args := m.Called(ctx, buyer, challenger, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PurchaseResult), args.Error(1)
}
