package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"vachat/internal/app/ai"
	"vachat/internal/app/storage"
	"vachat/internal/app/store"
	"vachat/internal/app/typing"
	"vachat/internal/app/user"
	"vachat/internal/pkg/errs"
	"vachat/internal/pkg/logx"
	"vachat/internal/pkg/randx"
)

// systemPrompt frames all assistant replies on the authenticated path.
const systemPrompt = "You are a helpful assistant inside a chat application. " +
	"Answer clearly and concisely, and use the conversation history for context."

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// Config carries the handlers' quota and AI parameters.
type Config struct {
	// DailyLimitStandard and DailyLimitPremium are the per-tier daily message quotas.
	DailyLimitStandard int
	DailyLimitPremium  int

	// AIHistoryWindow bounds how many recent messages feed a completion.
	AIHistoryWindow int

	// Model, Temperature, and MaxTokens are passed through to the completion client.
	Model       string
	Temperature float32
	MaxTokens   int
}

// Handlers processes the authenticated socket events.
type Handlers struct {
	store       store.Store
	typing      *typing.Coordinator
	ai          ai.Client
	storage     storage.Service
	broadcaster Broadcaster
	cfg         Config
	logger      zerolog.Logger
}

// NewHandlers constructs the authenticated event handlers.
func NewHandlers(st store.Store, tc *typing.Coordinator, aiClient ai.Client, storageSvc storage.Service, b Broadcaster, cfg Config) *Handlers {
	return &Handlers{
		store:       st,
		typing:      tc,
		ai:          aiClient,
		storage:     storageSvc,
		broadcaster: b,
		cfg:         cfg,
		logger:      logx.Logger().With().Str("component", "chat").Logger(),
	}
}

// dailyLimit returns the sender's daily message quota by tier.
func (h *Handlers) dailyLimit(u user.User) int {
	if u.Tier == user.TierPremium {
		return h.cfg.DailyLimitPremium
	}
	return h.cfg.DailyLimitStandard
}

// authorize re-validates conversation ownership against the durable store.
// Authorization is never cached beyond a single check: room membership alone
// is not trusted for any subsequent operation.
func (h *Handlers) authorize(ctx context.Context, sess Session, conversationID string) (*store.Conversation, bool) {
	if conversationID == "" {
		EmitError(sess, errs.NewError(errs.ErrInvalidMessageData))
		return nil, false
	}

	conversation, err := h.store.ConversationByIDAndOwner(ctx, conversationID, sess.User().ID)
	if errors.Is(err, store.ErrNotFound) {
		EmitError(sess, errs.NewError(errs.ErrConversationNotFound))
		return nil, false
	}
	if err != nil {
		h.logger.Error().Err(err).
			Str("conversation_id", conversationID).
			Str("user_id", sess.User().ID).
			Msg("Conversation ownership check failed.")
		EmitError(sess, errs.NewError(errs.ErrInternal))
		return nil, false
	}

	return conversation, true
}

// HandleJoinConversation verifies ownership, joins the socket to the
// conversation room, and notifies existing members.
func (h *Handlers) HandleJoinConversation(ctx context.Context, sess Session, conversationID string) {
	if _, ok := h.authorize(ctx, sess, conversationID); !ok {
		return
	}

	room := ConversationRoom(conversationID)
	sess.JoinRoom(room)

	sess.Emit("conversation_joined", map[string]any{
		"conversationId": conversationID,
	})

	h.broadcaster.ToRoomExcept(room, "user_joined_conversation", map[string]any{
		"conversationId": conversationID,
		"userId":         sess.User().ID,
		"displayName":    sess.User().DisplayName,
	}, sess.ConnectionID())
}

// HandleLeaveConversation leaves the room and notifies remaining members.
func (h *Handlers) HandleLeaveConversation(ctx context.Context, sess Session, conversationID string) {
	room := ConversationRoom(conversationID)
	sess.LeaveRoom(room)

	sess.Emit("conversation_left", map[string]any{
		"conversationId": conversationID,
	})

	h.broadcaster.ToRoom(room, "user_left_conversation", map[string]any{
		"conversationId": conversationID,
		"userId":         sess.User().ID,
	})
}

// SendMessageInput is the validated shape of a send_message event.
type SendMessageInput struct {
	ConversationID string
	Content        string
	FileIDs        []string
}

// HandleSendMessage validates and persists a user message, fans it out to the
// conversation room and the sender's other devices, then orchestrates the AI
// reply. A failure after persistence never rolls the user's message back.
func (h *Handlers) HandleSendMessage(ctx context.Context, sess Session, input SendMessageInput) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		EmitError(sess, errs.NewError(errs.ErrInvalidMessageData))
		return
	}

	if len(input.FileIDs) > MaxAttachmentsCount {
		EmitError(sess, errs.NewError(errs.ErrInvalidMessageData))
		return
	}

	if _, ok := h.authorize(ctx, sess, input.ConversationID); !ok {
		return
	}

	sender := sess.User()

	count, err := h.store.CountMessagesToday(ctx, sender.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", sender.ID).Msg("Daily quota count failed.")
		EmitError(sess, errs.NewError(errs.ErrInternal))
		return
	}
	if count >= int64(h.dailyLimit(sender)) {
		EmitError(sess, errs.NewError(errs.ErrMessageLimitExceeded))
		return
	}

	var files []store.File
	if len(input.FileIDs) > 0 {
		files, err = h.store.FilesByIDsAndOwner(ctx, input.FileIDs, sender.ID)
		if err != nil {
			h.logger.Error().Err(err).Str("user_id", sender.ID).Msg("File ownership check failed.")
			EmitError(sess, errs.NewError(errs.ErrInternal))
			return
		}
		if len(files) != len(input.FileIDs) {
			EmitError(sess, errs.NewError(errs.ErrFileAccessDenied))
			return
		}
	}

	userMsg := store.Message{
		ID:             randx.ID(),
		ConversationID: input.ConversationID,
		UserID:         sender.ID,
		Role:           store.RoleUser,
		Content:        content,
		FileIDs:        input.FileIDs,
	}

	if err := h.store.CreateMessage(ctx, &userMsg); err != nil {
		h.logger.Error().Err(err).
			Str("conversation_id", input.ConversationID).
			Str("user_id", sender.ID).
			Msg("Failed to persist user message.")
		EmitError(sess, errs.NewError(errs.ErrInternal))
		return
	}

	payload := h.messagePayload(ctx, userMsg, files)
	h.broadcaster.ToRoom(ConversationRoom(input.ConversationID), "message_received", payload)
	h.broadcaster.ToRoom(UserRoom(sender.ID), "message_sent", payload)

	h.generateReply(ctx, sess, input.ConversationID)
}

// generateReply assembles bounded history, invokes the AI collaborator with a
// typing indicator raised, persists the reply, and fans it out. Failures are
// reported to the sender only; the user's own message is already durable.
func (h *Handlers) generateReply(ctx context.Context, sess Session, conversationID string) {
	room := ConversationRoom(conversationID)

	h.broadcaster.ToRoom(room, "ai_typing", map[string]any{
		"conversationId": conversationID,
		"isTyping":       true,
	})
	defer h.broadcaster.ToRoom(room, "ai_typing", map[string]any{
		"conversationId": conversationID,
		"isTyping":       false,
	})

	history, err := h.store.RecentMessages(ctx, conversationID, h.cfg.AIHistoryWindow)
	if err != nil {
		h.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to load completion history.")
		h.emitAIError(sess, conversationID)
		return
	}

	messages := make([]ai.Message, 0, len(history)+1)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPrompt})
	for _, msg := range history {
		messages = append(messages, ai.Message{Role: msg.Role, Content: msg.Content})
	}

	reply, err := h.ai.Complete(ctx, messages, ai.Options{
		Model:       h.cfg.Model,
		Temperature: h.cfg.Temperature,
		MaxTokens:   h.cfg.MaxTokens,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("AI completion failed.")
		h.emitAIError(sess, conversationID)
		return
	}

	assistantMsg := store.Message{
		ID:             randx.ID(),
		ConversationID: conversationID,
		UserID:         sess.User().ID,
		Role:           store.RoleAssistant,
		Content:        reply,
	}

	if err := h.store.CreateMessage(ctx, &assistantMsg); err != nil {
		h.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to persist assistant message.")
		h.emitAIError(sess, conversationID)
		return
	}

	payload := h.messagePayload(ctx, assistantMsg, nil)
	h.broadcaster.ToRoom(room, "ai_response", payload)
	h.broadcaster.ToRoom(UserRoom(sess.User().ID), "ai_response", payload)
}

func (h *Handlers) emitAIError(sess Session, conversationID string) {
	customErr := errs.NewError(errs.ErrAIResponse)
	sess.Emit("ai_error", map[string]any{
		"conversationId": conversationID,
		"message":        customErr.Message,
		"code":           customErr.Code,
	})
}

// HandleGetHistory returns one chronological page of the conversation's
// persisted messages with pagination metadata.
func (h *Handlers) HandleGetHistory(ctx context.Context, sess Session, conversationID string, page, limit int) {
	if _, ok := h.authorize(ctx, sess, conversationID); !ok {
		return
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, total, err := h.store.ListMessages(ctx, conversationID, page, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("Failed to list messages.")
		EmitError(sess, errs.NewError(errs.ErrInternal))
		return
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)

	sess.Emit("conversation_history", map[string]any{
		"conversationId": conversationID,
		"messages":       messages,
		"pagination": map[string]any{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

// HandleDeleteMessage deletes a message when the caller authored it and it is
// a user-role message, then broadcasts the deletion to the room.
func (h *Handlers) HandleDeleteMessage(ctx context.Context, sess Session, messageID, conversationID string) {
	if _, ok := h.authorize(ctx, sess, conversationID); !ok {
		return
	}

	msg, err := h.store.MessageByID(ctx, messageID, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		EmitError(sess, errs.NewError(errs.ErrMessageNotFound))
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("message_id", messageID).Msg("Message lookup failed.")
		EmitError(sess, errs.NewError(errs.ErrInternal))
		return
	}

	if msg.UserID != sess.User().ID || msg.Role != store.RoleUser {
		EmitError(sess, errs.NewError(errs.ErrDeleteNotAllowed))
		return
	}

	if err := h.store.DeleteMessage(ctx, messageID); err != nil {
		h.logger.Error().Err(err).Str("message_id", messageID).Msg("Message delete failed.")
		EmitError(sess, errs.NewError(errs.ErrInternal))
		return
	}

	h.broadcaster.ToRoom(ConversationRoom(conversationID), "message_deleted", map[string]any{
		"messageId":      messageID,
		"conversationId": conversationID,
		"deletedBy":      sess.User().ID,
	})
}

// HandleTyping upserts or clears the caller's typing record and broadcasts
// the resulting live set to the other room members.
func (h *Handlers) HandleTyping(ctx context.Context, sess Session, conversationID string, isTyping bool) {
	if _, ok := h.authorize(ctx, sess, conversationID); !ok {
		return
	}

	users, err := h.typing.SetTyping(ctx, conversationID, sess.User().ID, sess.User().DisplayName, isTyping)
	if err != nil {
		h.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("Typing state update failed.")
		EmitError(sess, errs.NewError(errs.ErrTyping))
		return
	}

	h.broadcastTypingUpdate(conversationID, users, sess.ConnectionID())

	sess.Emit("typing_confirmed", map[string]any{
		"conversationId": conversationID,
		"isTyping":       isTyping,
	})
}

// HandleTypingTimeout is the explicit client-driven cleanup path, idempotent
// with TTL-based expiry.
func (h *Handlers) HandleTypingTimeout(ctx context.Context, sess Session, conversationID string) {
	if _, ok := h.authorize(ctx, sess, conversationID); !ok {
		return
	}

	users, err := h.typing.ClearUser(ctx, conversationID, sess.User().ID)
	if err != nil {
		h.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("Typing timeout cleanup failed.")
		EmitError(sess, errs.NewError(errs.ErrTyping))
		return
	}

	h.broadcastTypingUpdate(conversationID, users, sess.ConnectionID())
}

// HandleGetTypingUsers returns the conversation's current typing set,
// excluding the requester.
func (h *Handlers) HandleGetTypingUsers(ctx context.Context, sess Session, conversationID string) {
	if _, ok := h.authorize(ctx, sess, conversationID); !ok {
		return
	}

	users, err := h.typing.UsersExcept(ctx, conversationID, sess.User().ID)
	if err != nil {
		h.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("Typing set read failed.")
		EmitError(sess, errs.NewError(errs.ErrTyping))
		return
	}

	sess.Emit("typing_update", map[string]any{
		"conversationId": conversationID,
		"typingUsers":    users,
	})
}

// HandleDisconnect clears the departing user's typing records across every
// conversation room the connection had joined, broadcasting one update per
// affected room, and persists the last-active timestamp.
func (h *Handlers) HandleDisconnect(ctx context.Context, sess Session) {
	updated, err := h.typing.ClearUserEverywhere(ctx, sess.User().ID, sess.ConversationIDs())
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", sess.User().ID).Msg("Typing cleanup on disconnect failed.")
	}

	for conversationID, users := range updated {
		h.broadcastTypingUpdate(conversationID, users, sess.ConnectionID())
	}

	if err := h.store.TouchUserLastActive(ctx, sess.User().ID); err != nil {
		h.logger.Warn().Err(err).Str("user_id", sess.User().ID).Msg("Failed to persist last-active timestamp.")
	}
}

func (h *Handlers) broadcastTypingUpdate(conversationID string, users []typing.User, exceptConnectionID string) {
	h.broadcaster.ToRoomExcept(ConversationRoom(conversationID), "typing_update", map[string]any{
		"conversationId": conversationID,
		"typingUsers":    users,
	}, exceptConnectionID)
}

// messagePayload shapes a persisted message for fan-out, resolving any file
// attachments into presigned views.
func (h *Handlers) messagePayload(ctx context.Context, msg store.Message, files []store.File) map[string]any {
	payload := map[string]any{
		"id":             msg.ID,
		"conversationId": msg.ConversationID,
		"userId":         msg.UserID,
		"role":           msg.Role,
		"content":        msg.Content,
		"createdAt":      msg.CreatedAt,
	}

	if attachments := h.buildAttachments(ctx, files); attachments != nil {
		payload["attachments"] = attachments
	}

	return payload
}

// EmitError sends a typed error event to one connection.
func EmitError(sess Session, customErr *errs.CustomError) {
	sess.Emit("error", map[string]any{
		"message": customErr.Message,
		"code":    customErr.Code,
	})
}
