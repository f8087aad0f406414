package scores

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeUsers struct {
	mu          sync.Mutex
	byToken     map[string][]uuid.UUID
	scores      map[uuid.UUID]int64
	resolveErr  map[string]error
	incrErr     map[uuid.UUID]error
	resolved    []string
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byToken:    map[string][]uuid.UUID{},
		scores:     map[uuid.UUID]int64{},
		resolveErr: map[string]error{},
		incrErr:    map[uuid.UUID]error{},
	}
}

func (f *fakeUsers) add(token string) uuid.UUID {
	id := uuid.New()
	f.byToken[token] = append(f.byToken[token], id)
	f.scores[id] = 0
	return id
}

func (f *fakeUsers) FindIDsByAvatarToken(ctx context.Context, token string) ([]uuid.UUID, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, token)
	if err := f.resolveErr[token]; err != nil {
		return nil, err
	}
	return append([]uuid.UUID(nil), f.byToken[token]...), nil
}

func (f *fakeUsers) IncrementScore(ctx context.Context, id uuid.UUID, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.incrErr[id]; err != nil {
		return err
	}
	if _, ok := f.scores[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.scores[id] += delta
	return nil
}

func newTestService(t *testing.T, users userStore, limit int) *Service {
	t.Helper()
	svc, err := NewService(users, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}), nil, limit)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestSettleScoresRewardsCreatorAndContributors(t *testing.T) {
	users := newFakeUsers()
	creator := users.add("a")
	u2 := users.add("b")
	u3 := users.add("c")
	svc := newTestService(t, users, 4)

	if err := svc.SettleScores(context.Background(), creator, []string{"b", "c"}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if users.scores[creator] != 10 {
		t.Fatalf("creator score %d, want 10", users.scores[creator])
	}
	if users.scores[u2] != 5 || users.scores[u3] != 5 {
		t.Fatalf("contributor scores %d/%d, want 5/5", users.scores[u2], users.scores[u3])
	}
}

func TestSettleScoresIsNotIdempotent(t *testing.T) {
	users := newFakeUsers()
	creator := users.add("a")
	member := users.add("b")
	svc := newTestService(t, users, 1)

	for i := 0; i < 2; i++ {
		if err := svc.SettleScores(context.Background(), creator, []string{"b"}); err != nil {
			t.Fatalf("settle %d: %v", i, err)
		}
	}
	if users.scores[creator] != 20 || users.scores[member] != 10 {
		t.Fatalf("scores after two settlements %d/%d", users.scores[creator], users.scores[member])
	}
}

func TestSettleScoresRewardsEveryUserSharingAToken(t *testing.T) {
	users := newFakeUsers()
	creator := users.add("a")
	first := users.add("shared")
	second := users.add("shared")
	svc := newTestService(t, users, 2)

	if err := svc.SettleScores(context.Background(), creator, []string{"shared"}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if users.scores[first] != 5 || users.scores[second] != 5 {
		t.Fatalf("shared token scores %d/%d, want 5/5", users.scores[first], users.scores[second])
	}
}

func TestSettleScoresSkipsUnknownAndBlankTokens(t *testing.T) {
	users := newFakeUsers()
	creator := users.add("a")
	member := users.add("b")
	svc := newTestService(t, users, 2)

	if err := svc.SettleScores(context.Background(), creator, []string{"ghost", "", "b", "b"}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if users.scores[member] != 5 {
		t.Fatalf("member score %d, want 5", users.scores[member])
	}
	if len(users.resolved) != 2 {
		t.Fatalf("expected two distinct lookups, got %v", users.resolved)
	}
}

func TestSettleScoresCreatorFailureStopsSettlement(t *testing.T) {
	users := newFakeUsers()
	member := users.add("b")
	svc := newTestService(t, users, 2)

	err := svc.SettleScores(context.Background(), uuid.New(), []string{"b"})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if users.scores[member] != 0 || len(users.resolved) != 0 {
		t.Fatalf("contributors must not be processed after creator failure")
	}

	creator := users.add("a")
	users.incrErr[creator] = errors.New("store down")
	err = svc.SettleScores(context.Background(), creator, []string{"b"})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestSettleScoresCollectsContributorFailures(t *testing.T) {
	users := newFakeUsers()
	creator := users.add("a")
	ok := users.add("b")
	broken := users.add("c")
	users.incrErr[broken] = errors.New("timeout")
	users.resolveErr["d"] = errors.New("query failed")
	svc := newTestService(t, users, 3)

	err := svc.SettleScores(context.Background(), creator, []string{"b", "c", "d"})
	if pkgerrors.CodeOf(err) != pkgerrors.CodePartialFailure {
		t.Fatalf("expected partial failure, got %v", err)
	}
	details, _ := pkgerrors.As(err).Details().(map[string]any)
	if details["failed"] != 2 || details["rewarded"] != 1 {
		t.Fatalf("unexpected details %+v", details)
	}
	if users.scores[creator] != 10 || users.scores[ok] != 5 {
		t.Fatalf("applied increments must stay: creator=%d ok=%d", users.scores[creator], users.scores[ok])
	}
}

func TestSettleScoresBoundsConcurrency(t *testing.T) {
	users := newFakeUsers()
	users.delay = 5 * time.Millisecond
	creator := users.add("creator")
	tokens := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		token := uuid.NewString()
		users.add(token)
		tokens = append(tokens, token)
	}
	svc := newTestService(t, users, 3)

	if err := svc.SettleScores(context.Background(), creator, tokens); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if max := users.maxInFlight.Load(); max > 3 {
		t.Fatalf("observed %d concurrent lookups, limit is 3", max)
	}
	for _, token := range tokens {
		if users.scores[users.byToken[token][0]] != 5 {
			t.Fatalf("token %s not rewarded before return", token)
		}
	}
}

func TestSettleScoresRequiresCreator(t *testing.T) {
	svc := newTestService(t, newFakeUsers(), 1)
	if err := svc.SettleScores(context.Background(), uuid.Nil, nil); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
