package repository

import (
	"context"
	"fmt"

	"github.com/makroxyz/simplechat/internal/models"
)

const messageColumns = `id, sender_id, receiver_id, text, is_new,
		is_deleted_by_sender, is_deleted_by_receiver, created_at`

// visibleBetween filters messages between $1 (the viewer) and $2 (the
// contact) to those the viewer has not deleted on their own side.
const visibleBetween = `
		((sender_id = $1 AND receiver_id = $2 AND NOT is_deleted_by_sender)
		OR (sender_id = $2 AND receiver_id = $1 AND NOT is_deleted_by_receiver))`

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(
	ctx context.Context,
	senderID int64,
	receiverID int64,
	text string,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (sender_id, receiver_id, text)
		VALUES ($1, $2, $3)
		RETURNING ` + messageColumns

	var message models.Message
	err := r.db.QueryRow(ctx, query, senderID, receiverID, text).Scan(
		&message.ID,
		&message.SenderID,
		&message.ReceiverID,
		&message.Text,
		&message.IsNew,
		&message.IsDeletedBySender,
		&message.IsDeletedByReceiver,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE id = $1
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, id).Scan(
		&message.ID,
		&message.SenderID,
		&message.ReceiverID,
		&message.Text,
		&message.IsNew,
		&message.IsDeletedBySender,
		&message.IsDeletedByReceiver,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// SoftDelete sets the caller's own deletion flag on a single message. The OR
// makes repeated application a no-op; the other side's flag is never touched.
func (r *MessageRepository) SoftDelete(ctx context.Context, messageID int64, userID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_deleted_by_sender   = is_deleted_by_sender OR sender_id = $2,
		    is_deleted_by_receiver = is_deleted_by_receiver OR receiver_id = $2
		WHERE id = $1
		  AND (sender_id = $2 OR receiver_id = $2)
	`, messageID, userID)
	return err
}

// DeleteConversationFor sets the caller's deletion flag on every message
// between the caller and the contact. A single statement keeps the update
// atomic with respect to concurrent aggregation reads.
func (r *MessageRepository) DeleteConversationFor(
	ctx context.Context,
	userID int64,
	contactID int64,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_deleted_by_sender   = is_deleted_by_sender OR sender_id = $1,
		    is_deleted_by_receiver = is_deleted_by_receiver OR receiver_id = $1
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
	`, userID, contactID)
	return err
}

// SetConversationReadState toggles is_new on every message the reader
// received from the contact. Messages the reader sent are never touched.
func (r *MessageRepository) SetConversationReadState(
	ctx context.Context,
	readerID int64,
	contactID int64,
	isNew bool,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_new = $3
		WHERE receiver_id = $1
		  AND sender_id = $2
		  AND is_new <> $3
	`, readerID, contactID, isNew)
	return err
}

// MarkMessagesRead clears is_new on the given messages where the reader is
// the receiver. Used when viewing a thread counts as reading it.
func (r *MessageRepository) MarkMessagesRead(
	ctx context.Context,
	messageIDs []int64,
	readerID int64,
) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_new = FALSE
		WHERE id = ANY($1)
		  AND receiver_id = $2
		  AND is_new
	`, messageIDs, readerID)
	return err
}

// DirectionsBetween reports whether userID has received any message from
// contactID and whether they have sent any to them, regardless of deletion
// flags.
func (r *MessageRepository) DirectionsBetween(
	ctx context.Context,
	userID int64,
	contactID int64,
) (received bool, sent bool, err error) {
	err = r.db.QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM messages WHERE receiver_id = $1 AND sender_id = $2),
			EXISTS (SELECT 1 FROM messages WHERE sender_id = $1 AND receiver_id = $2)
	`, userID, contactID).Scan(&received, &sent)
	return received, sent, err
}

// ListBetween returns the page of messages between userID and contactID that
// are visible to userID, plus the total count of visible messages.
func (r *MessageRepository) ListBetween(
	ctx context.Context,
	userID int64,
	contactID int64,
	limit int,
	offset int,
	ascending bool,
) ([]models.Message, int, error) {
	totalQuery := `
		SELECT COUNT(*)
		FROM messages
		WHERE ` + visibleBetween

	var total int
	if err := r.db.QueryRow(ctx, totalQuery, userID, contactID).Scan(&total); err != nil {
		return nil, 0, err
	}

	direction := "DESC"
	if ascending {
		direction = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE `+visibleBetween+`
		ORDER BY created_at %s, id %s
		LIMIT $3 OFFSET $4
	`, direction, direction)

	rows, err := r.db.Query(ctx, query, userID, contactID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.SenderID,
			&message.ReceiverID,
			&message.Text,
			&message.IsNew,
			&message.IsDeletedBySender,
			&message.IsDeletedByReceiver,
			&message.CreatedAt,
		); err != nil {
			return nil, 0, err
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}
