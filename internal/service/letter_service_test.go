package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/draftwise/coverletter-api/internal/domain"
	"github.com/draftwise/coverletter-api/internal/service"
	"github.com/draftwise/coverletter-api/pkg/config"
)

// ---------- Mocks ----------

type mockLetterRepo struct {
	mu      sync.Mutex
	nextID  int64
	letters []*domain.Letter
}

func (m *mockLetterRepo) Create(_ context.Context, l *domain.Letter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	l.ID = m.nextID
	cp := *l
	m.letters = append(m.letters, &cp)
	return nil
}

func (m *mockLetterRepo) ListByUser(_ context.Context, userID int64, limit, offset int) ([]domain.Letter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []domain.Letter
	for _, l := range m.letters {
		if l.UserID != nil && *l.UserID == userID {
			result = append(result, *l)
		}
	}
	return result, nil
}

type mockGuestRepo struct {
	mu     sync.Mutex
	nextID int64
	byIP   map[string]*domain.Guest
}

func newMockGuestRepo() *mockGuestRepo {
	return &mockGuestRepo{byIP: make(map[string]*domain.Guest)}
}

func (m *mockGuestRepo) FindOrCreateByIP(_ context.Context, ip string, defaultUseLimit int) (*domain.Guest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, exists := m.byIP[ip]; exists {
		cp := *g
		return &cp, nil
	}
	m.nextID++
	g := &domain.Guest{ID: m.nextID, IP: ip, UseLimit: defaultUseLimit}
	m.byIP[ip] = g
	cp := *g
	return &cp, nil
}

func (m *mockGuestRepo) ConsumeUse(_ context.Context, guestID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, g := range m.byIP {
		if g.ID != guestID {
			continue
		}
		if g.ExhaustedUses >= g.UseLimit {
			return false, nil
		}
		g.ExhaustedUses++
		return true, nil
	}
	return false, fmt.Errorf("guest %d not found", guestID)
}

type mockGenerator struct {
	mu      sync.Mutex
	calls   int
	content string
	err     error
}

func (m *mockGenerator) GenerateLetter(_ context.Context, req *domain.GenerateLetterRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if m.content != "" {
		return m.content, nil
	}
	return "Dear Hiring Manager at " + req.CompanyName + ",", nil
}

// ---------- Test Setup ----------

func testCreditsConfig() *config.Config {
	return &config.Config{
		Credits: config.CreditsConfig{
			UserFreeUses:  5,
			GuestFreeUses: 2,
		},
	}
}

func setupLetterService(users *mockUserRepo) (service.LetterService, *mockLetterRepo, *mockGuestRepo, *mockGenerator) {
	letters := &mockLetterRepo{}
	guests := newMockGuestRepo()
	gen := &mockGenerator{}
	bus := &mockPublisher{}

	svc := service.NewLetterService(letters, users, guests, gen, bus, testCreditsConfig())
	return svc, letters, guests, gen
}

func generateReq() *domain.GenerateLetterRequest {
	return &domain.GenerateLetterRequest{
		JobTitle:       "Backend Engineer",
		CompanyName:    "Acme Corp",
		JobDescription: "Build and operate Go services.",
	}
}

// ---------- Tests ----------

func TestGenerate_UserSpendsOneUse(t *testing.T) {
	users := newMockUserRepo(verifiedUser(1, 5))
	svc, letters, _, _ := setupLetterService(users)
	user := verifiedUser(1, 5)

	resp, err := svc.Generate(context.Background(), service.Identity{User: user}, generateReq())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Letter == nil || resp.Letter.Content == "" {
		t.Fatal("Expected generated letter content")
	}
	if resp.RemainingUses != 4 {
		t.Fatalf("Expected 4 remaining uses, got %d", resp.RemainingUses)
	}

	history, _ := letters.ListByUser(context.Background(), user.ID, 10, 0)
	if len(history) != 1 {
		t.Fatalf("Expected 1 letter in history, got %d", len(history))
	}
}

func TestGenerate_UserQuotaExhausted(t *testing.T) {
	users := newMockUserRepo(verifiedUser(1, 1))
	svc, _, _, gen := setupLetterService(users)
	user := verifiedUser(1, 1)

	if _, err := svc.Generate(context.Background(), service.Identity{User: user}, generateReq()); err != nil {
		t.Fatalf("First generation should succeed: %v", err)
	}

	_, err := svc.Generate(context.Background(), service.Identity{User: user}, generateReq())
	if !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("Expected ErrQuotaExhausted, got %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("Provider must not be called once the allowance is spent, got %d calls", gen.calls)
	}
}

func TestGenerate_GuestAllowance(t *testing.T) {
	users := newMockUserRepo()
	svc, _, guests, gen := setupLetterService(users)
	id := service.Identity{GuestIP: "203.0.113.9"}

	// Guests get two uses by default.
	resp, err := svc.Generate(context.Background(), id, generateReq())
	if err != nil {
		t.Fatalf("First guest generation failed: %v", err)
	}
	if resp.RemainingUses != 1 {
		t.Fatalf("Expected 1 remaining use, got %d", resp.RemainingUses)
	}

	resp, err = svc.Generate(context.Background(), id, generateReq())
	if err != nil {
		t.Fatalf("Second guest generation failed: %v", err)
	}
	if resp.RemainingUses != 0 {
		t.Fatalf("Expected 0 remaining uses, got %d", resp.RemainingUses)
	}

	_, err = svc.Generate(context.Background(), id, generateReq())
	if !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("Expected ErrQuotaExhausted on third attempt, got %v", err)
	}
	if gen.calls != 2 {
		t.Fatalf("Expected 2 provider calls, got %d", gen.calls)
	}

	// A different IP has its own allowance.
	if _, err := svc.Generate(context.Background(), service.Identity{GuestIP: "198.51.100.4"}, generateReq()); err != nil {
		t.Fatalf("Other guest IP should have a fresh allowance: %v", err)
	}
	if len(guests.byIP) != 2 {
		t.Fatalf("Expected 2 guest records, got %d", len(guests.byIP))
	}
}

func TestGenerate_ValidationRunsBeforeSpend(t *testing.T) {
	users := newMockUserRepo(verifiedUser(1, 5))
	svc, _, _, gen := setupLetterService(users)
	user := verifiedUser(1, 5)

	req := generateReq()
	req.JobTitle = ""

	_, err := svc.Generate(context.Background(), service.Identity{User: user}, req)
	if err == nil {
		t.Fatal("Expected validation error for empty job title")
	}
	if gen.calls != 0 {
		t.Fatalf("Provider must not be called for invalid input, got %d calls", gen.calls)
	}
	if got := users.useLimit(t, user.ID); got != 5 {
		t.Fatalf("Validation failure must not spend a use, limit %d", got)
	}
}

func TestGenerate_ProviderFailure(t *testing.T) {
	users := newMockUserRepo(verifiedUser(1, 5))
	svc, _, _, gen := setupLetterService(users)
	gen.err = errors.New("upstream timeout")
	user := verifiedUser(1, 5)

	_, err := svc.Generate(context.Background(), service.Identity{User: user}, generateReq())
	if !errors.Is(err, service.ErrGenerationFailed) {
		t.Fatalf("Expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerate_ConcurrentGuestsNeverOverspend(t *testing.T) {
	users := newMockUserRepo()
	svc, _, guests, gen := setupLetterService(users)
	id := service.Identity{GuestIP: "203.0.113.20"}

	const attempts = 10

	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Generate(context.Background(), id, generateReq())
			results[i] = err
		}(i)
	}
	wg.Wait()

	var ok, exhausted int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrQuotaExhausted):
			exhausted++
		default:
			t.Fatalf("Unexpected error under concurrency: %v", err)
		}
	}
	if ok != 2 || exhausted != attempts-2 {
		t.Fatalf("Expected 2 successes and %d rejections, got %d and %d", attempts-2, ok, exhausted)
	}

	g := guests.byIP[id.GuestIP]
	if g.ExhaustedUses != 2 {
		t.Fatalf("Guest allowance overspent: exhausted %d of %d", g.ExhaustedUses, g.UseLimit)
	}
	if gen.calls != 2 {
		t.Fatalf("Expected 2 provider calls, got %d", gen.calls)
	}
}
