package telegram

import "fmt"

// Envelope is the bridge's response wrapper. It mirrors the Telegram Bot
// API envelope so MTProto error metadata (retry_after, FLOOD_WAIT_n
// descriptions) flows through unchanged.
type Envelope[T any] struct {
	OK          bool                `json:"ok"`
	Result      T                   `json:"result,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *ResponseParameters `json:"parameters,omitempty"`
}

// ResponseParameters carries additional error metadata.
type ResponseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

// APIError is a non-OK bridge response.
type APIError struct {
	Code        int
	Description string
	RetryAfter  int // seconds, non-zero on rate limiting
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: bridge error %d: %s", e.Code, e.Description)
}

// ConnectResult is the payload returned by the connect method.
type ConnectResult struct {
	SessionID string `json:"session_id"`
}

// Message is a message in a dialog, trimmed to the fields the claimer
// inspects.
type Message struct {
	ID          int64                 `json:"message_id"`
	Date        int64                 `json:"date"`
	Text        string                `json:"text,omitempty"`
	Out         bool                  `json:"out"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// InlineKeyboardMarkup is an inline keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is one button of an inline keyboard.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}
