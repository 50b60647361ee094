// Package policy holds the pure rules for direct messages: who counts as the
// "other party" of a message, who may see it, and who may mutate it. The
// functions are side-effect free so the same rules can be applied to loaded
// rows and translated into store queries from a single definition.
package policy

import (
	"fmt"

	"github.com/makroxyz/simplechat/internal/models"
)

type Action int

const (
	ActionDelete Action = iota
	ActionToggleRead
)

// ContactID returns the counterpart of viewerID on a message. The viewer is
// assumed to be a party to the message; self-messages are rejected upstream.
func ContactID(senderID, receiverID, viewerID int64) int64 {
	if senderID == viewerID {
		return receiverID
	}
	return senderID
}

// ContactSQL renders ContactID as a SQL CASE expression over the given
// columns, with viewerParam as the placeholder for the viewing user. Query
// code must build its contact column from this instead of restating the
// conditional per dialect.
func ContactSQL(senderCol, receiverCol, viewerParam string) string {
	return fmt.Sprintf(
		"CASE WHEN %s = %s THEN %s ELSE %s END",
		senderCol, viewerParam, receiverCol, senderCol,
	)
}

// IsParty reports whether userID is the sender or the receiver.
func IsParty(m *models.Message, userID int64) bool {
	return userID == m.SenderID || userID == m.ReceiverID
}

// CanView reports whether the message appears in userID's view: the user is
// a party and their own deletion flag is unset. Each side's flag is
// independent; one party deleting never hides the row from the other.
func CanView(m *models.Message, userID int64) bool {
	switch userID {
	case m.SenderID:
		return !m.IsDeletedBySender
	case m.ReceiverID:
		return !m.IsDeletedByReceiver
	default:
		return false
	}
}

// CanMutate reports whether userID may apply the action to the message.
// Either party may delete (affecting only their own flag); only the receiver
// may toggle the read state.
func CanMutate(m *models.Message, userID int64, action Action) bool {
	switch action {
	case ActionDelete:
		return IsParty(m, userID)
	case ActionToggleRead:
		return userID == m.ReceiverID
	default:
		return false
	}
}
