package shrubbi_errors

import "errors"

// Common errors
var (
	ErrAccessDenied      = errors.New("access denied")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrBlankBody         = errors.New("text message body cannot be blank")
	ErrCrossChannelReply = errors.New("reply target belongs to a different channel")
	ErrEmojiLength       = errors.New("emoji must be 1-32 characters")
	ErrNoChannel         = errors.New("no channel selected")
)
