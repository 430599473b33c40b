package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/searchchat/chat-api/internal/domain/llm"
	"github.com/searchchat/chat-api/internal/domain/models"
)

// mockLister is a func-field mock of llm.ModelLister.
type mockLister struct {
	ListModelsFunc func(ctx context.Context) ([]llm.Model, error)
	calls          int
}

func (m *mockLister) ListModels(ctx context.Context) ([]llm.Model, error) {
	m.calls++
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}
	return nil, nil
}

func TestCatalogCachesWithinTTL(t *testing.T) {
	lister := &mockLister{
		ListModelsFunc: func(context.Context) ([]llm.Model, error) {
			return []llm.Model{{ID: "model-a"}}, nil
		},
	}
	catalog := models.NewCatalog(lister, time.Hour, zerolog.Nop())

	for i := 0; i < 3; i++ {
		list, err := catalog.List(context.Background())
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(list) != 1 || list[0].ID != "model-a" {
			t.Fatalf("List() = %+v, want model-a", list)
		}
	}

	if lister.calls != 1 {
		t.Errorf("upstream calls = %d, want 1 (served from cache)", lister.calls)
	}
}

func TestCatalogRefreshesAfterInvalidate(t *testing.T) {
	ids := []string{"model-a", "model-b"}
	lister := &mockLister{}
	lister.ListModelsFunc = func(context.Context) ([]llm.Model, error) {
		return []llm.Model{{ID: ids[lister.calls-1]}}, nil
	}
	catalog := models.NewCatalog(lister, time.Hour, zerolog.Nop())

	if _, err := catalog.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	catalog.Invalidate()

	list, err := catalog.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if list[0].ID != "model-b" {
		t.Errorf("List() after invalidate = %q, want model-b", list[0].ID)
	}
	if lister.calls != 2 {
		t.Errorf("upstream calls = %d, want 2", lister.calls)
	}
}

func TestCatalogServesStaleOnRefreshError(t *testing.T) {
	lister := &mockLister{}
	lister.ListModelsFunc = func(context.Context) ([]llm.Model, error) {
		if lister.calls == 1 {
			return []llm.Model{{ID: "model-a"}}, nil
		}
		return nil, errors.New("upstream down")
	}
	// Zero-length TTL: every access is a refresh attempt.
	catalog := models.NewCatalog(lister, -time.Second, zerolog.Nop())

	if _, err := catalog.List(context.Background()); err != nil {
		t.Fatalf("first List() error = %v", err)
	}

	list, err := catalog.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v, want stale cache served", err)
	}
	if len(list) != 1 || list[0].ID != "model-a" {
		t.Errorf("List() = %+v, want stale model-a", list)
	}
}

func TestCatalogErrorsWithoutCache(t *testing.T) {
	lister := &mockLister{
		ListModelsFunc: func(context.Context) ([]llm.Model, error) {
			return nil, errors.New("upstream down")
		},
	}
	catalog := models.NewCatalog(lister, time.Hour, zerolog.Nop())

	if _, err := catalog.List(context.Background()); err == nil {
		t.Error("List() error = nil, want upstream failure with no cache to fall back on")
	}
}
