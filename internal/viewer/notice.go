package viewer

import (
	"errors"
	"fmt"

	"caspview/internal/api"
	"caspview/internal/config"
	"caspview/internal/survey"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a user-facing message. Persistent notices replace the content
// area and stay until the next successful load; the rest are toasts.
type Notice struct {
	Level      Level
	Text       string
	Persistent bool
	Retryable  bool
}

// VoteRecorded is shown after a successful vote.
var VoteRecorded = Notice{Level: LevelSuccess, Text: "Vote recorded!"}

// Classify maps an error from Load or Cast to the notice shown for it.
func Classify(err error) Notice {
	var (
		transport *api.TransportError
		rejected  *api.VoteRejectedError
	)

	switch {
	case err == nil:
		return Notice{}
	case errors.Is(err, config.ErrNotConfigured):
		return Notice{
			Level:      LevelError,
			Text:       "Configuration required: set api_url in " + config.ConfigPath() + " or CASPVIEW_API_URL",
			Persistent: true,
		}
	case errors.Is(err, ErrAlreadyVoted):
		return Notice{Level: LevelInfo, Text: "You have already voted for this response"}
	case errors.As(err, &rejected):
		return Notice{Level: LevelError, Text: "Failed to record vote. Please try again."}
	case errors.Is(err, survey.ErrMalformedPayload):
		return Notice{
			Level:      LevelError,
			Text:       "Failed to load responses: the server sent data in an unexpected format",
			Persistent: true,
			Retryable:  true,
		}
	case errors.As(err, &transport):
		return Notice{
			Level:      LevelError,
			Text:       fmt.Sprintf("Failed to load responses: %v", transport),
			Persistent: true,
			Retryable:  true,
		}
	default:
		return Notice{Level: LevelError, Text: err.Error(), Persistent: true, Retryable: true}
	}
}

// ClassifyVote is Classify for errors returned by Cast. Transport failures
// there are toasts, not banners.
func ClassifyVote(err error) Notice {
	n := Classify(err)
	var transport *api.TransportError
	if errors.As(err, &transport) {
		return Notice{Level: LevelError, Text: "Failed to record vote. Please try again."}
	}
	return n
}
