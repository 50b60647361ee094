package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/makroxyz/simplechat/internal/models"
	"github.com/makroxyz/simplechat/internal/policy"
)

type messageStore interface {
	Create(ctx context.Context, senderID int64, receiverID int64, text string) (*models.Message, error)
	GetByID(ctx context.Context, id int64) (*models.Message, error)
	SoftDelete(ctx context.Context, messageID int64, userID int64) error
	DeleteConversationFor(ctx context.Context, userID int64, contactID int64) error
	SetConversationReadState(ctx context.Context, readerID int64, contactID int64, isNew bool) error
	MarkMessagesRead(ctx context.Context, messageIDs []int64, readerID int64) error
	DirectionsBetween(ctx context.Context, userID int64, contactID int64) (received bool, sent bool, err error)
	ListBetween(ctx context.Context, userID int64, contactID int64, limit int, offset int, ascending bool) ([]models.Message, int, error)
}

type conversationLister interface {
	ListForUser(ctx context.Context, userID int64) ([]models.ConversationSummary, error)
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// ChatService implements the direct-messaging operations on top of the
// message store. Conversations are derived per read; every bulk mutation is
// a single statement so concurrent readers see either the old or the new
// state of a pair, never a mix.
type ChatService struct {
	conversationRepo conversationLister
	messageRepo      messageStore
	userRepo         userReader
	resolver         IdentityResolver
	markReadOnView   bool
}

// ChatDelivery carries a stored message together with the party it should be
// pushed to.
type ChatDelivery struct {
	Message     *models.Message
	RecipientID int64
}

func NewChatService(
	conversationRepo conversationLister,
	messageRepo messageStore,
	userRepo userReader,
	resolver IdentityResolver,
	markReadOnView bool,
) *ChatService {
	return &ChatService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		resolver:         resolver,
		markReadOnView:   markReadOnView,
	}
}

func (s *ChatService) SendMessage(
	ctx context.Context,
	senderID int64,
	receiverID int64,
	text string,
) (*ChatDelivery, error) {
	if senderID <= 0 || receiverID <= 0 || senderID == receiverID {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > models.MaxMessageTextLength {
		return nil, ErrInvalidInput
	}

	if _, err := s.userRepo.GetByID(ctx, receiverID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, storeError(err)
	}

	message, err := s.messageRepo.Create(ctx, senderID, receiverID, trimmed)
	if err != nil {
		return nil, storeError(err)
	}

	return &ChatDelivery{
		Message:     message,
		RecipientID: receiverID,
	}, nil
}

// ListConversations returns one row per contact the user has a visible
// message with, most recently active first. A contact that no longer
// resolves to an account is reported with placeholder identity data instead
// of failing the list.
func (s *ChatService) ListConversations(
	ctx context.Context,
	userID int64,
) ([]models.ConversationSummary, error) {
	if userID <= 0 {
		return nil, ErrInvalidInput
	}

	summaries, err := s.conversationRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}

	for i := range summaries {
		identity, err := s.resolver.Resolve(ctx, summaries[i].ContactID)
		if err != nil {
			identity = PlaceholderIdentity(summaries[i].ContactID)
		}
		summaries[i].Contact = identity
	}

	return summaries, nil
}

// ListMessages returns the page of the thread between userID and contactID
// that is visible to userID. When configured, viewing a page marks the
// received messages on it as read.
func (s *ChatService) ListMessages(
	ctx context.Context,
	userID int64,
	contactID int64,
	page int,
	limit int,
	ascending bool,
) ([]models.Message, int, error) {
	if userID <= 0 || contactID <= 0 || userID == contactID || page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	messages, total, err := s.messageRepo.ListBetween(
		ctx,
		userID,
		contactID,
		limit,
		(page-1)*limit,
		ascending,
	)
	if err != nil {
		return nil, 0, storeError(err)
	}

	if s.markReadOnView {
		unreadIDs := make([]int64, 0, len(messages))
		for _, message := range messages {
			if message.ReceiverID == userID && message.IsNew {
				unreadIDs = append(unreadIDs, message.ID)
			}
		}

		if err := s.messageRepo.MarkMessagesRead(ctx, unreadIDs, userID); err != nil {
			return nil, 0, storeError(err)
		}

		for i := range messages {
			if messages[i].ReceiverID == userID {
				messages[i].IsNew = false
			}
		}
	}

	return messages, total, nil
}

// DeleteMessage sets the caller's own deletion flag. Deleting a message that
// the caller already deleted is a no-op; the other party's copy is never
// affected.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID int64, userID int64) error {
	if messageID <= 0 || userID <= 0 {
		return ErrInvalidInput
	}

	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return storeError(err)
	}

	if !policy.CanMutate(message, userID, policy.ActionDelete) {
		return ErrForbidden
	}
	if !policy.CanView(message, userID) {
		return nil
	}

	return storeError(s.messageRepo.SoftDelete(ctx, messageID, userID))
}

// DeleteConversation sets the caller's deletion flag on every message
// between the caller and the contact in one atomic bulk update.
func (s *ChatService) DeleteConversation(ctx context.Context, userID int64, contactID int64) error {
	if userID <= 0 || contactID <= 0 || userID == contactID {
		return ErrInvalidInput
	}

	received, sent, err := s.messageRepo.DirectionsBetween(ctx, userID, contactID)
	if err != nil {
		return storeError(err)
	}
	if !received && !sent {
		return ErrNotFound
	}

	return storeError(s.messageRepo.DeleteConversationFor(ctx, userID, contactID))
}

// MarkConversationRead clears the unread flag on every message the caller
// received from the contact.
func (s *ChatService) MarkConversationRead(ctx context.Context, userID int64, contactID int64) error {
	return s.setConversationReadState(ctx, userID, contactID, false)
}

// MarkConversationUnread flags every message the caller received from the
// contact as unread again.
func (s *ChatService) MarkConversationUnread(ctx context.Context, userID int64, contactID int64) error {
	return s.setConversationReadState(ctx, userID, contactID, true)
}

func (s *ChatService) setConversationReadState(
	ctx context.Context,
	userID int64,
	contactID int64,
	isNew bool,
) error {
	if userID <= 0 || contactID <= 0 || userID == contactID {
		return ErrInvalidInput
	}

	received, sent, err := s.messageRepo.DirectionsBetween(ctx, userID, contactID)
	if err != nil {
		return storeError(err)
	}
	if !received {
		// Only the receiving side may toggle read state. A caller who has
		// only ever sent to this contact is the sender of everything in the
		// pair, so the toggle is a policy violation, not a missing resource.
		if sent {
			return ErrForbidden
		}
		return ErrNotFound
	}

	return storeError(s.messageRepo.SetConversationReadState(ctx, userID, contactID, isNew))
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
