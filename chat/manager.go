// Package chat keeps chat sessions with the external chat agent.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"startup-hub/agent"
	"startup-hub/apperrors"
	"startup-hub/constants"
	"startup-hub/metrics"
	"startup-hub/models"
)

// Manager persists sessions and relays prompts to the chat agent. The agent
// keeps the conversation context itself, keyed by user id.
type Manager struct {
	db      *gorm.DB
	agent   agent.Asker
	logger  zerolog.Logger
	metrics *metrics.Recorder
}

func NewManager(db *gorm.DB, asker agent.Asker, logger zerolog.Logger, rec *metrics.Recorder) *Manager {
	return &Manager{db: db, agent: asker, logger: logger, metrics: rec}
}

// ValidatePrompt rejects empty and oversized prompts.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return apperrors.Validation(constants.ErrPromptRequired)
	}
	if utf8.RuneCountInString(prompt) > constants.MaxPromptLength {
		return apperrors.Validation(constants.ErrPromptTooLong, constants.MaxPromptLength)
	}
	return nil
}

// CreateSession opens a session and, when firstPrompt is set, runs the first
// exchange. The returned session carries its messages.
func (m *Manager) CreateSession(ctx context.Context, userID uint, topic *string, firstPrompt string) (*models.ChatSession, error) {
	if firstPrompt != "" {
		if err := ValidatePrompt(firstPrompt); err != nil {
			return nil, err
		}
	}

	session := models.ChatSession{UserID: userID, Topic: topic}
	if err := m.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}
	m.logger.Info().Uint("session_id", session.ID).Uint("user_id", userID).Msg("chat session created")

	if firstPrompt != "" {
		if _, err := m.SendMessage(ctx, &session, firstPrompt); err != nil {
			return nil, err
		}
	}
	return m.Session(context.WithoutCancel(ctx), userID, session.ID)
}

// Send validates the prompt, resolves the caller's session and relays it.
func (m *Manager) Send(ctx context.Context, userID, sessionID uint, prompt string) (*models.ChatMessage, error) {
	if err := ValidatePrompt(prompt); err != nil {
		return nil, err
	}
	var session models.ChatSession
	err := m.db.WithContext(ctx).Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("chat session")
	}
	if err != nil {
		return nil, fmt.Errorf("load chat session %d: %w", sessionID, err)
	}
	return m.SendMessage(ctx, &session, prompt)
}

// SendMessage stores the USER message, asks the agent and stores the AI
// reply. Agent failures become the reply text; only database errors are
// returned.
func (m *Manager) SendMessage(ctx context.Context, session *models.ChatSession, prompt string) (*models.ChatMessage, error) {
	userMsg := models.ChatMessage{SessionID: session.ID, Role: models.RoleUser, Content: prompt}
	if err := m.db.WithContext(ctx).Create(&userMsg).Error; err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}
	m.metrics.IncChatMessage(string(models.RoleUser))

	reply, err := m.agent.Ask(ctx, agent.Chat, map[string]string{
		"user_id": strconv.FormatUint(uint64(session.UserID), 10),
		"prompt":  prompt,
	})
	if err != nil {
		reply = apology(err)
		m.logger.Warn().Err(err).Uint("session_id", session.ID).Msg("chat agent failed, replying with apology")
	}

	aiMsg := models.ChatMessage{SessionID: session.ID, Role: models.RoleAI, Content: reply}
	if err := m.db.WithContext(context.WithoutCancel(ctx)).Create(&aiMsg).Error; err != nil {
		return nil, fmt.Errorf("store ai message: %w", err)
	}
	m.metrics.IncChatMessage(string(models.RoleAI))
	return &aiMsg, nil
}

func apology(err error) string {
	switch {
	case agent.IsParse(err):
		return constants.ChatReplyUnparseable
	case agent.IsTransport(err), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Sprintf(constants.ChatReplyUnreachable, err)
	default:
		return constants.ChatReplyFallback
	}
}

// Sessions lists the caller's sessions newest first, with their messages.
func (m *Manager) Sessions(ctx context.Context, userID uint) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := m.db.WithContext(ctx).
		Preload("Messages", orderedMessages).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}
	for i := range sessions {
		if sessions[i].Messages == nil {
			sessions[i].Messages = []models.ChatMessage{}
		}
	}
	return sessions, nil
}

// Session returns one of the caller's sessions with messages in order.
func (m *Manager) Session(ctx context.Context, userID, id uint) (*models.ChatSession, error) {
	var session models.ChatSession
	err := m.db.WithContext(ctx).
		Preload("Messages", orderedMessages).
		Where("id = ? AND user_id = ?", id, userID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("chat session")
	}
	if err != nil {
		return nil, fmt.Errorf("get chat session %d: %w", id, err)
	}
	if session.Messages == nil {
		session.Messages = []models.ChatMessage{}
	}
	return &session, nil
}

func orderedMessages(db *gorm.DB) *gorm.DB {
	return db.Order("created_at, id")
}
