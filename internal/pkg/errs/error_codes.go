/*
Package errs provides custom error types and application-level error code constants.

These error codes form a stable vocabulary shared with clients: they are sent
verbatim in socket error events and HTTP responses, so renaming one is a
breaking protocol change.
*/
package errs

// Validation and request handling
const (
	// ErrInvalidMessageData indicates that an event payload failed validation
	// (empty content, malformed ids, unrecognized shape).
	ErrInvalidMessageData = "INVALID_MESSAGE_DATA"

	// ErrRateLimitExceeded indicates the per-identity event rate limit or the
	// guest per-minute message limit was exceeded.
	ErrRateLimitExceeded = "RATE_LIMIT_EXCEEDED"

	// ErrInvalidUserIDs indicates a presence query carried an empty or malformed id list.
	ErrInvalidUserIDs = "INVALID_USER_IDS"

	// ErrTooManyUserIDs indicates a presence query exceeded the batch-size ceiling.
	ErrTooManyUserIDs = "TOO_MANY_USER_IDS"

	// ErrInvalidPresenceStatus indicates a manual presence update requested a
	// status outside the online/away/offline enum.
	ErrInvalidPresenceStatus = "INVALID_PRESENCE_STATUS"
)

// Authorization and resource access
const (
	// ErrConversationNotFound indicates the conversation does not exist or is
	// not owned by the caller. The two cases are deliberately indistinguishable.
	ErrConversationNotFound = "CONVERSATION_NOT_FOUND"

	// ErrMessageNotFound indicates the referenced message does not exist in the conversation.
	ErrMessageNotFound = "MESSAGE_NOT_FOUND"

	// ErrDeleteNotAllowed indicates a delete attempt by a non-author, or on an
	// assistant-role message.
	ErrDeleteNotAllowed = "DELETE_NOT_ALLOWED"

	// ErrFileAccessDenied indicates a message referenced a file the sender does not own.
	ErrFileAccessDenied = "FILE_ACCESS_DENIED"
)

// Quotas
const (
	// ErrMessageLimitExceeded indicates the caller hit their tier's daily message quota.
	ErrMessageLimitExceeded = "MESSAGE_LIMIT_EXCEEDED"
)

// Downstream and internal failures
const (
	// ErrAIResponse indicates the AI completion collaborator failed or timed out.
	ErrAIResponse = "AI_RESPONSE_ERROR"

	// ErrGetPresence indicates a presence read against the shared cache failed.
	ErrGetPresence = "GET_PRESENCE_ERROR"

	// ErrTyping indicates a typing-state mutation against the shared cache failed.
	ErrTyping = "TYPING_ERROR"

	// ErrInternal represents an unclassified server-side error surfaced to the
	// client as a generic error event.
	ErrInternal = "INTERNAL_ERROR"
)
