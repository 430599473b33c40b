package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	domain "github.com/searchchat/chat-api/internal/domain/chat"
	"github.com/searchchat/chat-api/internal/infrastructure/database/entities"
)

// MessageRepository persists chat messages. It implements domain.MessageStore.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs the message repository.
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

var _ domain.MessageStore = (*MessageRepository)(nil)

// Append inserts a message and returns its record ID.
func (r *MessageRepository) Append(ctx context.Context, msg *domain.Message) (uint, error) {
	entity, err := toEntity(msg)
	if err != nil {
		return 0, err
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return 0, fmt.Errorf("append chat message: %w", err)
	}
	msg.ID = entity.ID
	return entity.ID, nil
}

// UpdateResult attaches a tool result to a previously appended tool_call row.
func (r *MessageRepository) UpdateResult(ctx context.Context, recordID uint, result string) error {
	err := r.db.WithContext(ctx).
		Model(&entities.ChatMessage{}).
		Where("id = ?", recordID).
		Update("tool_result", result).Error
	if err != nil {
		return fmt.Errorf("update tool result: %w", err)
	}
	return nil
}

// ListBySession returns a session's messages in insertion order.
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID uint) ([]domain.Message, error) {
	var rows []entities.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list session messages: %w", err)
	}

	messages := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := toDomain(row)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func toEntity(msg *domain.Message) (*entities.ChatMessage, error) {
	entity := &entities.ChatMessage{
		ID:         msg.ID,
		SessionID:  msg.SessionID,
		Role:       string(msg.Role),
		Content:    msg.Content,
		ToolName:   msg.ToolName,
		ToolResult: msg.ToolResult,
		CallID:     msg.CallID,
	}
	if msg.ToolArgs != nil {
		raw, err := json.Marshal(msg.ToolArgs)
		if err != nil {
			return nil, fmt.Errorf("encode tool args: %w", err)
		}
		entity.ToolArgs = raw
	}
	return entity, nil
}

func toDomain(entity entities.ChatMessage) (domain.Message, error) {
	msg := domain.Message{
		ID:         entity.ID,
		SessionID:  entity.SessionID,
		Role:       domain.Role(entity.Role),
		Content:    entity.Content,
		ToolName:   entity.ToolName,
		ToolResult: entity.ToolResult,
		CallID:     entity.CallID,
		CreatedAt:  entity.CreatedAt,
	}
	if len(entity.ToolArgs) > 0 {
		if err := json.Unmarshal(entity.ToolArgs, &msg.ToolArgs); err != nil {
			return domain.Message{}, fmt.Errorf("decode tool args: %w", err)
		}
	}
	return msg, nil
}
