// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/your-org/order-assistant/internal/handler"
	"github.com/your-org/order-assistant/internal/openai"
	"github.com/your-org/order-assistant/internal/store"
)

func newTestManager(t *testing.T, config ManagerConfig) *Manager {
	t.Helper()
	return NewManager(config, Dependencies{
		Gateway: store.NewMemoryStore(),
		Logger:  zaptest.NewLogger(t),
	})
}

func TestManagerCreateAndGet(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})

	router := m.Create()
	if !ValidateSessionID(router.SessionID()) {
		t.Fatalf("Generated session ID is invalid: %s", router.SessionID())
	}

	got, err := m.Get(router.SessionID())
	if err != nil {
		t.Fatalf("Expected session, got error: %v", err)
	}
	if got != router {
		t.Error("Expected the same router instance")
	}

	if _, err := m.Get("missing"); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}

	if m.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", m.Len())
	}
	if m.DefaultProvider() != openai.ProviderOpenAI {
		t.Errorf("Expected default provider openai, got %s", m.DefaultProvider())
	}
}

func TestManagerSessionsAreIsolated(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})
	ctx := context.Background()

	a := m.Create()
	b := m.Create()

	a.ProcessMessage(ctx, "hello")
	a.ProcessMessage(ctx, "Title A")

	if b.Context().Phase != handler.PhaseAwaitingRequest {
		t.Errorf("Expected untouched session, got phase %s", b.Context().Phase)
	}
	if a.Context().Order.Title != "Title A" {
		t.Errorf("Expected title on session A, got %q", a.Context().Order.Title)
	}
}

func TestManagerEvictsLeastRecentlyUsed(t *testing.T) {
	m := newTestManager(t, ManagerConfig{MaxSessions: 2})

	first := m.Create()
	second := m.Create()
	if _, err := m.Get(first.SessionID()); err != nil {
		t.Fatalf("Expected first session: %v", err)
	}
	m.Create()

	if _, err := m.Get(second.SessionID()); err != ErrSessionNotFound {
		t.Errorf("Expected least recently used session to be evicted, got %v", err)
	}
	if _, err := m.Get(first.SessionID()); err != nil {
		t.Errorf("Expected recently used session to survive: %v", err)
	}
}

func TestManagerExpiresIdleSessions(t *testing.T) {
	m := newTestManager(t, ManagerConfig{SessionTTL: 50 * time.Millisecond})

	router := m.Create()
	time.Sleep(150 * time.Millisecond)

	if _, err := m.Get(router.SessionID()); err != ErrSessionNotFound {
		t.Errorf("Expected expired session, got %v", err)
	}
}

func TestManagerGetOrCreateAndDelete(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})

	router := m.GetOrCreate("cli-session")
	if router.SessionID() != "cli-session" {
		t.Errorf("Expected requested ID, got %s", router.SessionID())
	}
	if again := m.GetOrCreate("cli-session"); again != router {
		t.Error("Expected existing router to be returned")
	}

	if !m.Delete("cli-session") {
		t.Error("Expected delete to report removal")
	}
	if _, err := m.Get("cli-session"); err != ErrSessionNotFound {
		t.Errorf("Expected deleted session to be gone, got %v", err)
	}
}

func TestManagerGetOrCreateConcurrent(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})

	const workers = 32
	routers := make([]*Router, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			routers[i] = m.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	stored, err := m.Get("shared")
	if err != nil {
		t.Fatalf("Expected shared session, got error: %v", err)
	}
	for i, router := range routers {
		if router != stored {
			t.Fatalf("Worker %d got a router that is not the stored session", i)
		}
	}
	if m.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", m.Len())
	}
}

func TestManagerDeleteIsNotUndoneByGet(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})

	for i := 0; i < 50; i++ {
		router := m.Create()
		id := router.SessionID()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = m.Get(id)
		}()
		go func() {
			defer wg.Done()
			m.Delete(id)
		}()
		wg.Wait()

		if _, err := m.Get(id); err != ErrSessionNotFound {
			t.Fatalf("Deleted session %s came back: %v", id, err)
		}
	}
	if m.Len() != 0 {
		t.Errorf("Expected no sessions, got %d", m.Len())
	}
}

func TestManagerSwitchProvider(t *testing.T) {
	m := NewManager(ManagerConfig{DefaultProvider: openai.ProviderOpenAI}, Dependencies{
		Providers: openai.NewRegistry([]openai.Settings{
			{Provider: openai.ProviderGroq, APIKey: "gsk_test"}, // pragma: allowlist secret
		}, zaptest.NewLogger(t)),
		Logger: zaptest.NewLogger(t),
	})

	existing := m.Create()
	existing.ProcessMessage(context.Background(), "hello")

	if err := m.SwitchProvider("groq"); err != nil {
		t.Fatalf("Expected switch to succeed: %v", err)
	}
	if existing.ProviderInfo().Provider != "groq" || !existing.ProviderInfo().Available {
		t.Errorf("Expected live session to use groq, got %+v", existing.ProviderInfo())
	}
	if existing.Context().Phase != handler.PhaseAwaitingTitle {
		t.Errorf("Expected phase to be preserved, got %s", existing.Context().Phase)
	}

	created := m.Create()
	if created.ProviderInfo().Provider != "groq" {
		t.Errorf("Expected new session to use groq, got %s", created.ProviderInfo().Provider)
	}

	if err := m.SwitchProvider("mystery"); err == nil {
		t.Error("Expected unknown provider to be rejected")
	}
}
