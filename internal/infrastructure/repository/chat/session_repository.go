package chat

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/searchchat/chat-api/internal/domain/session"
	"github.com/searchchat/chat-api/internal/infrastructure/database/entities"
)

// SessionRepository persists chat sessions. It implements session.Repository.
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository constructs the session repository.
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

var _ session.Repository = (*SessionRepository)(nil)

func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	entity := &entities.ChatSession{
		PublicID: sess.PublicID,
		Title:    sess.Title,
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("create chat session: %w", err)
	}
	sess.ID = entity.ID
	sess.CreatedAt = entity.CreatedAt
	sess.UpdatedAt = entity.UpdatedAt
	return nil
}

func (r *SessionRepository) FindByPublicID(ctx context.Context, publicID string) (*session.Session, error) {
	var entity entities.ChatSession
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("find chat session: %w", err)
	}
	return sessionToDomain(entity), nil
}

func (r *SessionRepository) List(ctx context.Context) ([]session.Session, error) {
	var rows []entities.ChatSession
	err := r.db.WithContext(ctx).Order("updated_at DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, *sessionToDomain(row))
	}
	return sessions, nil
}

func (r *SessionRepository) UpdateTitle(ctx context.Context, id uint, title string) error {
	err := r.db.WithContext(ctx).
		Model(&entities.ChatSession{}).
		Where("id = ?", id).
		Update("title", title).Error
	if err != nil {
		return fmt.Errorf("update session title: %w", err)
	}
	return nil
}

// Delete removes a session together with its messages.
func (r *SessionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&entities.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("delete session messages: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&entities.ChatSession{}).Error; err != nil {
			return fmt.Errorf("delete chat session: %w", err)
		}
		return nil
	})
}

func sessionToDomain(entity entities.ChatSession) *session.Session {
	return &session.Session{
		ID:        entity.ID,
		PublicID:  entity.PublicID,
		Title:     entity.Title,
		CreatedAt: entity.CreatedAt,
		UpdatedAt: entity.UpdatedAt,
	}
}
