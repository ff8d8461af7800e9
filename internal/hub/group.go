package hub

import (
	"strconv"
	"strings"
)

const (
	conversationPrefix   = "conversation:"
	friendRequestsPrefix = "friend-requests:"
	commentLikesPrefix   = "comment-likes:"
)

// ConversationGroup addresses one participant's view of a room.
func ConversationGroup(roomID string, viewerID int64) string {
	return conversationPrefix + roomID + ":" + strconv.FormatInt(viewerID, 10)
}

func FriendRequestGroup(participantID int64) string {
	return friendRequestsPrefix + strconv.FormatInt(participantID, 10)
}

func CommentLikeGroup(participantID int64) string {
	return commentLikesPrefix + strconv.FormatInt(participantID, 10)
}

// RequiresAuth reports whether anonymous connections are barred from the
// group. Only the personal notification groups have an anonymous path, and
// even there the dispatcher answers instead of joining.
func RequiresAuth(group string) bool {
	return !strings.HasPrefix(group, friendRequestsPrefix) && !strings.HasPrefix(group, commentLikesPrefix)
}
