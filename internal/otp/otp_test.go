package otp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/soko/internal/apierr"
	"github.com/jkaninda/soko/internal/domain"
)

type memStore struct {
	mu         sync.Mutex
	challenges []*domain.OTPChallenge
	principals map[string]*domain.Principal
}

func newMemStore() *memStore {
	return &memStore{principals: make(map[string]*domain.Principal)}
}

func (m *memStore) CreateChallenge(_ context.Context, c *domain.OTPChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.challenges = append(m.challenges, &cp)
	return nil
}

func (m *memStore) LatestChallenge(_ context.Context, phone string) (*domain.OTPChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.challenges) - 1; i >= 0; i-- {
		if m.challenges[i].Phone == phone {
			cp := *m.challenges[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) find(id uuid.UUID) *domain.OTPChallenge {
	for _, c := range m.challenges {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (m *memStore) ReserveAttempt(_ context.Context, id uuid.UUID, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(id)
	if c.Attempts >= limit {
		return domain.ErrStale
	}
	c.Attempts++
	return nil
}

func (m *memStore) ConsumeChallenge(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(id)
	if c.ConsumedAt != nil {
		return domain.ErrStale
	}
	c.ConsumedAt = &at
	return nil
}

func (m *memStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*domain.OTPChallenge
	for _, c := range m.challenges {
		if !c.ExpiresAt.Before(before) {
			kept = append(kept, c)
		}
	}
	n := int64(len(m.challenges) - len(kept))
	m.challenges = kept
	return n, nil
}

func (m *memStore) GetByPhone(_ context.Context, phone string) (*domain.Principal, error) {
	p, ok := m.principals[phone]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *memStore) MarkPhoneVerified(_ context.Context, id uuid.UUID) error {
	for _, p := range m.principals {
		if p.ID == id {
			p.PhoneVerified = true
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeSender struct {
	name string
	err  error
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, _, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	if f.err != nil {
		return "", f.err
	}
	return f.name + "-msg", nil
}

var digits = regexp.MustCompile(`[0-9]{6}`)

func (f *fakeSender) lastCode(t *testing.T) string {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("no message sent")
	}
	return digits.FindString(f.sent[len(f.sent)-1])
}

type countingObserver struct {
	calls     map[string]int
	failovers []string
}

func (o *countingObserver) ObserveUpstream(_, provider string, _ time.Duration, _ error) {
	o.calls[provider]++
}

func (o *countingObserver) ObserveFailover(service, from, to string) {
	o.failovers = append(o.failovers, service+":"+from+"->"+to)
}

const phone = "+255712345678"

func newTestService(store Store, senders ...Sender) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	issue := func(p *domain.Principal) (any, error) { return "token-for-" + p.Username, nil }
	return NewService(store, senders, issue, nil, Config{}, logger)
}

func TestSend_FallsBackToSecondGateway(t *testing.T) {
	store := newMemStore()
	primary := &fakeSender{name: "primary", err: errors.New("503")}
	fallback := &fakeSender{name: "fallback"}
	svc := newTestService(store, primary, fallback)
	obs := &countingObserver{calls: map[string]int{}}
	svc.observer = obs

	res, err := svc.Send(context.Background(), SendRequest{Phone: phone})
	if err != nil {
		t.Fatal(err)
	}
	if res.Phone != phone || !res.ExpiresAt.After(time.Now()) {
		t.Errorf("result = %+v", res)
	}
	ch, err := store.LatestChallenge(context.Background(), phone)
	if err != nil {
		t.Fatal(err)
	}
	if ch.Provider != "fallback" {
		t.Errorf("provider = %q, want fallback", ch.Provider)
	}
	if ch.CodeHash == fallback.lastCode(t) {
		t.Error("code stored in clear text")
	}
	if obs.calls["primary"] != 1 || obs.calls["fallback"] != 1 {
		t.Errorf("observer calls = %v", obs.calls)
	}
	if len(obs.failovers) != 1 || obs.failovers[0] != "sms:primary->fallback" {
		t.Errorf("failovers = %v", obs.failovers)
	}
}

func TestSend_AllGatewaysDown(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store,
		&fakeSender{name: "primary", err: errors.New("timeout")},
		&fakeSender{name: "fallback", err: errors.New("401 unauthorized")},
	)
	_, err := svc.Send(context.Background(), SendRequest{Phone: phone})
	if !apierr.Is(err, apierr.KindUpstream) {
		t.Fatalf("err = %v, want Upstream", err)
	}
	if len(store.challenges) != 0 {
		t.Error("challenge stored although no code was delivered")
	}
}

func TestSend_RateLimitedPerPhone(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeSender{name: "primary"})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := svc.Send(ctx, SendRequest{Phone: phone}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if _, err := svc.Send(ctx, SendRequest{Phone: phone}); !apierr.Is(err, apierr.KindRateLimited) {
		t.Fatalf("err = %v, want RateLimited", err)
	}
	if _, err := svc.Send(ctx, SendRequest{Phone: "+255798765432"}); err != nil {
		t.Errorf("other phone throttled: %v", err)
	}
}

func TestVerify(t *testing.T) {
	store := newMemStore()
	store.principals[phone] = &domain.Principal{ID: uuid.New(), Username: "amina", Phone: phone, IsActive: true}
	sender := &fakeSender{name: "primary"}
	svc := newTestService(store, sender)
	ctx := context.Background()

	if _, err := svc.Send(ctx, SendRequest{Phone: phone}); err != nil {
		t.Fatal(err)
	}
	code := sender.lastCode(t)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	if _, err := svc.Verify(ctx, VerifyRequest{Phone: phone, Code: wrong}); !apierr.Is(err, apierr.KindInvalidInput) {
		t.Fatalf("wrong code: err = %v, want InvalidInput", err)
	}
	res, err := svc.Verify(ctx, VerifyRequest{Phone: phone, Code: code})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Verified || res.Session != "token-for-amina" {
		t.Errorf("result = %+v", res)
	}
	if !store.principals[phone].PhoneVerified {
		t.Error("phone not marked verified")
	}

	_, err = svc.Verify(ctx, VerifyRequest{Phone: phone, Code: code})
	if !errors.Is(err, ErrChallengeExpired) {
		t.Errorf("replayed code: err = %v, want ErrChallengeExpired", err)
	}
}

func TestVerify_ExpiredAndExhausted(t *testing.T) {
	store := newMemStore()
	sender := &fakeSender{name: "primary"}
	svc := newTestService(store, sender)
	ctx := context.Background()

	if _, err := svc.Verify(ctx, VerifyRequest{Phone: phone, Code: "123456"}); !errors.Is(err, ErrChallengeExpired) {
		t.Errorf("no challenge: err = %v", err)
	}

	if _, err := svc.Send(ctx, SendRequest{Phone: phone}); err != nil {
		t.Fatal(err)
	}
	code := sender.lastCode(t)
	store.challenges[0].Attempts = svc.cfg.MaxAttempts
	if _, err := svc.Verify(ctx, VerifyRequest{Phone: phone, Code: code}); !apierr.Is(err, apierr.KindInvalidInput) {
		t.Errorf("exhausted: err = %v, want InvalidInput", err)
	}

	store.challenges[0].Attempts = 0
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := svc.Verify(ctx, VerifyRequest{Phone: phone, Code: code}); !errors.Is(err, ErrChallengeExpired) {
		t.Errorf("expired: err = %v, want ErrChallengeExpired", err)
	}

	n, err := svc.Cleanup(ctx)
	if err != nil || n != 1 {
		t.Errorf("Cleanup = (%d, %v), want (1, nil)", n, err)
	}
}

func TestVerify_ConcurrentGuessesBounded(t *testing.T) {
	store := newMemStore()
	sender := &fakeSender{name: "primary"}
	svc := newTestService(store, sender)
	ctx := context.Background()

	if _, err := svc.Send(ctx, SendRequest{Phone: phone}); err != nil {
		t.Fatal(err)
	}
	wrong := "000000"
	if sender.lastCode(t) == wrong {
		wrong = "111111"
	}

	const guesses = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		compared int
		refused  int
	)
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Verify(ctx, VerifyRequest{Phone: phone, Code: wrong})
			msg := "verified"
			if e := apierr.As(err); e != nil {
				msg = e.Message
			}
			mu.Lock()
			defer mu.Unlock()
			switch msg {
			case "invalid code":
				compared++
			case "too many attempts, request a new code":
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	limit := svc.cfg.MaxAttempts
	if compared != limit || refused != guesses-limit {
		t.Errorf("compared = %d, refused = %d, want %d and %d", compared, refused, limit, guesses-limit)
	}
	if got := store.challenges[0].Attempts; got != limit {
		t.Errorf("stored attempts = %d, want %d", got, limit)
	}
}

func TestSend_NoGateways(t *testing.T) {
	svc := newTestService(newMemStore())
	if _, err := svc.Send(context.Background(), SendRequest{Phone: phone}); !apierr.Is(err, apierr.KindUpstream) {
		t.Errorf("err = %v, want Upstream", err)
	}
	if _, err := svc.Send(context.Background(), SendRequest{Phone: "0712"}); !apierr.Is(err, apierr.KindInvalidInput) {
		t.Errorf("err = %v, want InvalidInput", err)
	}
}
