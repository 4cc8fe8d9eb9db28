package engine

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/eventbus/testbus"
	"github.com/colonyops/refine/internal/core/session"
	"github.com/colonyops/refine/internal/core/suggest"
	"github.com/colonyops/refine/internal/core/version"
	"github.com/rs/zerolog"
)

const (
	original  = "int main() {\n  int x;\n  return x;\n}\n"
	improved  = "int main() {\n  int x = 0;\n  return x;\n}\n"
	rewritten = "int main() {\n  return 0;\n}\n"
)

var epoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// memStore is an in-memory session.Store with failure injection.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]session.Session
	versions map[string][]version.Version

	failAppend     error
	failSetCurrent error
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]session.Session),
		versions: make(map[string][]version.Version),
	}
}

func (s *memStore) Create(_ context.Context, sess session.Session, root version.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return errors.New("duplicate session")
	}
	s.sessions[sess.ID] = sess
	s.versions[sess.ID] = []version.Version{root}
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return sess, nil
}

func (s *memStore) List(_ context.Context) ([]session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out, nil
}

func (s *memStore) AppendVersion(_ context.Context, id string, v version.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend != nil {
		return s.failAppend
	}
	sess, ok := s.sessions[id]
	if !ok {
		return session.ErrNotFound
	}
	s.versions[id] = append(s.versions[id], v)
	sess.CurrentVersion = v.ID
	s.sessions[id] = sess
	return nil
}

func (s *memStore) SetCurrent(_ context.Context, id string, versionID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSetCurrent != nil {
		return s.failSetCurrent
	}
	sess, ok := s.sessions[id]
	if !ok {
		return session.ErrNotFound
	}
	sess.CurrentVersion = versionID
	s.sessions[id] = sess
	return nil
}

func (s *memStore) Versions(_ context.Context, id string) ([]version.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.versions[id]), nil
}

func (s *memStore) SetState(_ context.Context, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[sess.ID]
	if !ok {
		return session.ErrNotFound
	}
	stored.State = sess.State
	stored.UpdatedAt = sess.UpdatedAt
	s.sessions[sess.ID] = stored
	return nil
}

func (s *memStore) current(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id].CurrentVersion
}

func (s *memStore) stored(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.versions[id])
}

// reply answers every request with text.
func reply(text string) suggest.Collaborator {
	return suggest.CollaboratorFunc(func(context.Context, suggest.Context) (suggest.Suggestion, error) {
		return suggest.Suggestion{Text: text, Rationale: "initialize before use"}, nil
	})
}

// replies answers successive requests with texts in order.
func replies(texts ...string) suggest.Collaborator {
	var (
		mu sync.Mutex
		i  int
	)
	return suggest.CollaboratorFunc(func(context.Context, suggest.Context) (suggest.Suggestion, error) {
		mu.Lock()
		defer mu.Unlock()
		text := texts[i%len(texts)]
		i++
		return suggest.Suggestion{Text: text}, nil
	})
}

func failing(err error) suggest.Collaborator {
	return suggest.CollaboratorFunc(func(context.Context, suggest.Context) (suggest.Suggestion, error) {
		return suggest.Suggestion{}, err
	})
}

// gate blocks every request until released or until the request context
// ends. entered receives once per request.
type gate struct {
	entered chan struct{}
	release chan struct{}
	text    string
}

func newGate(text string) *gate {
	return &gate{
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
		text:    text,
	}
}

func (g *gate) Suggest(ctx context.Context, _ suggest.Context) (suggest.Suggestion, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return suggest.Suggestion{Text: g.text}, nil
	case <-ctx.Done():
		return suggest.Suggestion{}, ctx.Err()
	}
}

func (g *gate) wait(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("collaborator was not called")
	}
}

func testAnalyzer() *analysis.Analyzer {
	return analysis.New(analysis.DefaultRegistry(), zerolog.Nop())
}

func testOptions() ControllerOptions {
	return ControllerOptions{Now: func() time.Time { return epoch }}
}

type controllerFixture struct {
	ctrl  *Controller
	store *memStore
	bus   *testbus.Bus
}

func newControllerFixture(t *testing.T, collab suggest.Collaborator, opts ControllerOptions) controllerFixture {
	t.Helper()
	return newBudgetFixture(t, original, 0, collab, opts)
}

// newBudgetFixture starts the session from text with a request budget.
func newBudgetFixture(t *testing.T, text string, budget int, collab suggest.Collaborator, opts ControllerOptions) controllerFixture {
	t.Helper()

	analyzer := testAnalyzer()
	store := newMemStore()
	tree := version.NewTree(text, analyzer.Analyze(text), epoch)

	sess := session.Session{ID: "s1", Name: "s1", State: session.StateActive, CurrentVersion: 1}
	if err := store.Create(context.Background(), sess, tree.Current()); err != nil {
		t.Fatal(err)
	}

	bus := testbus.New(t)
	ctrl := NewController("s1", tree, store, analyzer, suggest.NewBuilder(budget), collab, bus.EventBus, opts, zerolog.Nop())
	return controllerFixture{ctrl: ctrl, store: store, bus: bus}
}

func newTestService(t *testing.T, store session.Store, collab suggest.Collaborator) (*SessionService, *testbus.Bus) {
	t.Helper()
	bus := testbus.New(t)
	svc := NewSessionService(store, testAnalyzer(), suggest.NewBuilder(0), collab, bus.EventBus, testOptions(), zerolog.Nop())
	return svc, bus
}
