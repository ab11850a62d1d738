/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
socket error events and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (string), and the value contains the user message and HTTP status code.
var errorMap = map[string]CustomError{
	// Validation and request handling
	ErrInvalidMessageData:    {Code: ErrInvalidMessageData, Message: "Invalid message data."},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please slow down.", Status: http.StatusTooManyRequests},
	ErrInvalidUserIDs:        {Code: ErrInvalidUserIDs, Message: "Invalid user ID list."},
	ErrTooManyUserIDs:        {Code: ErrTooManyUserIDs, Message: "Too many user IDs requested. Maximum is %d."},
	ErrInvalidPresenceStatus: {Code: ErrInvalidPresenceStatus, Message: "Invalid presence status. Must be online, away, or offline."},

	// Authorization and resource access
	ErrConversationNotFound: {Code: ErrConversationNotFound, Message: "Conversation not found.", Status: http.StatusNotFound},
	ErrMessageNotFound:      {Code: ErrMessageNotFound, Message: "Message not found.", Status: http.StatusNotFound},
	ErrDeleteNotAllowed:     {Code: ErrDeleteNotAllowed, Message: "You can only delete your own messages.", Status: http.StatusForbidden},
	ErrFileAccessDenied:     {Code: ErrFileAccessDenied, Message: "One or more files are not accessible.", Status: http.StatusForbidden},

	// Quotas
	ErrMessageLimitExceeded: {Code: ErrMessageLimitExceeded, Message: "Daily message limit reached. Upgrade for a higher limit.", Status: http.StatusTooManyRequests},

	// Downstream and internal failures
	ErrAIResponse:  {Code: ErrAIResponse, Message: "Failed to generate a response. Please try again."},
	ErrGetPresence: {Code: ErrGetPresence, Message: "Failed to fetch presence data."},
	ErrTyping:      {Code: ErrTyping, Message: "Failed to update typing status."},
	ErrInternal:    {Code: ErrInternal, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
