package room

import (
	"errors"

	"github.com/mcdev12/drawrelay/go/internal/identity"
	"github.com/mcdev12/drawrelay/go/internal/store"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrRoomAlreadyStarted = errors.New("room already started")
	ErrInvalidRoomCode    = errors.New("room code must be 4 digits")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidSettings    = errors.New("invalid room settings")
	ErrThemeRequired      = errors.New("theme is required")
	ErrNotEnoughPlayers   = errors.New("at least 2 players are required")
	ErrNotHost            = errors.New("only the host can do this")
	ErrNotInRoom          = errors.New("player is not in a room")
	ErrInvalidRequest     = errors.New("invalid request")
)

// UserMessage is the inline message shown for a failed room action.
// Anything that is not a validation error reads as "try again".
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "この部屋が見つかりません。コードを確認してください。"
	case errors.Is(err, ErrRoomAlreadyStarted):
		return "この部屋はすでにゲームが始まっています。"
	case errors.Is(err, ErrRoomFull):
		return "この部屋は満員です（最大8人）。"
	case errors.Is(err, ErrInvalidRoomCode):
		return "ルームコードを入力してください"
	case errors.Is(err, identity.ErrEmptyUsername):
		return "ニックネームを入力してください"
	case errors.Is(err, identity.ErrUsernameTooLong):
		return "ニックネームは12文字以内で入力してください"
	case errors.Is(err, ErrNotEnoughPlayers):
		return "ゲームを開始するには、少なくとも2人必要です。"
	case errors.Is(err, ErrThemeRequired):
		return "お題を設定してください。"
	case errors.Is(err, ErrNotHost):
		return "ホストのみ操作できます。"
	case errors.Is(err, ErrInvalidSettings):
		return "設定が正しくありません。"
	case errors.Is(err, ErrInvalidRequest):
		return "リクエストが正しくありません。"
	case errors.Is(err, store.ErrUnavailable):
		return "通信に失敗しました。もう一度お試しください。"
	default:
		return "操作に失敗しました。もう一度お試しください。"
	}
}

// IsValidation reports whether err is a user input or room state error
// rather than a store failure.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrRoomNotFound, ErrRoomFull, ErrRoomAlreadyStarted, ErrInvalidRoomCode,
		ErrInvalidUsername, ErrInvalidSettings, ErrThemeRequired, ErrNotEnoughPlayers,
		ErrNotHost, ErrNotInRoom, ErrInvalidRequest, identity.ErrEmptyUsername, identity.ErrUsernameTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
