package repository

import (
	"context"
	"fmt"

	"github.com/makroxyz/simplechat/internal/models"
	"github.com/makroxyz/simplechat/internal/policy"
)

// ConversationRepository derives conversations from the raw message log.
// There is no conversations table: one row per counterpart is computed on
// every read by grouping visible messages on the contact id and taking the
// highest message id, so the view is always consistent with the log.
type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) ListForUser(
	ctx context.Context,
	userID int64,
) ([]models.ConversationSummary, error) {
	query := fmt.Sprintf(`
		WITH conversation AS (
			SELECT
				%s AS contact_id,
				MAX(m.id) AS last_message_id
			FROM messages m
			WHERE (m.receiver_id = $1 AND NOT m.is_deleted_by_receiver)
			   OR (m.sender_id = $1 AND NOT m.is_deleted_by_sender)
			GROUP BY 1
		)
		SELECT
			c.contact_id,
			lm.id,
			lm.sender_id,
			lm.receiver_id,
			lm.text,
			lm.is_new,
			lm.is_deleted_by_sender,
			lm.is_deleted_by_receiver,
			lm.created_at,
			COALESCE(uc.unread_count, 0)
		FROM conversation c
		JOIN messages lm ON lm.id = c.last_message_id
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE receiver_id = $1
			  AND sender_id = c.contact_id
			  AND is_new
			  AND NOT is_deleted_by_receiver
		) uc ON TRUE
		ORDER BY c.last_message_id DESC
	`, policy.ContactSQL("m.sender_id", "m.receiver_id", "$1"))

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var last models.Message

		if err := rows.Scan(
			&summary.ContactID,
			&last.ID,
			&last.SenderID,
			&last.ReceiverID,
			&last.Text,
			&last.IsNew,
			&last.IsDeletedBySender,
			&last.IsDeletedByReceiver,
			&last.CreatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		summary.LastMessage = &last
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}
