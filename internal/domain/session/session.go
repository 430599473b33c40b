package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a session cannot be resolved by its public ID.
var ErrNotFound = errors.New("session not found")

// Session groups the messages of one conversation.
type Session struct {
	ID        uint      `json:"-"`
	PublicID  string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists sessions.
type Repository interface {
	Create(ctx context.Context, sess *Session) error
	FindByPublicID(ctx context.Context, publicID string) (*Session, error)
	List(ctx context.Context) ([]Session, error)
	UpdateTitle(ctx context.Context, id uint, title string) error
	Delete(ctx context.Context, id uint) error
}

// Service exposes session CRUD.
type Service struct {
	repo Repository
}

// NewService wires the repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create opens a new session. An empty title is allowed; the chat service
// backfills it from the first user message.
func (s *Service) Create(ctx context.Context, title string) (*Session, error) {
	sess := &Session{
		PublicID: fmt.Sprintf("sess_%s", uuid.NewString()),
		Title:    strings.TrimSpace(title),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Get resolves a session by public ID.
func (s *Service) Get(ctx context.Context, publicID string) (*Session, error) {
	return s.repo.FindByPublicID(ctx, publicID)
}

// List returns all sessions, newest first.
func (s *Service) List(ctx context.Context) ([]Session, error) {
	return s.repo.List(ctx)
}

// Rename updates the session title.
func (s *Service) Rename(ctx context.Context, publicID, title string) (*Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("session title must not be empty")
	}

	sess, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTitle(ctx, sess.ID, title); err != nil {
		return nil, fmt.Errorf("rename session: %w", err)
	}
	sess.Title = title
	return sess, nil
}

// Delete removes a session and its messages.
func (s *Service) Delete(ctx context.Context, publicID string) error {
	sess, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, sess.ID)
}
