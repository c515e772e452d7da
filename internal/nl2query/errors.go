package nl2query

import (
	"errors"
	"strings"
)

var ErrEmptyQuestion = errors.New("question is required")

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-visible message produced while reducing a model response
// to a query.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// ExtractionError reports that a response could not be reduced to any
// executable query shape.
type ExtractionError struct {
	Candidate string
	Notices   []Notice
}

func (e *ExtractionError) Error() string {
	messages := make([]string, 0, len(e.Notices))
	for _, notice := range e.Notices {
		if notice.Level == NoticeError {
			messages = append(messages, notice.Message)
		}
	}
	if len(messages) == 0 {
		return "model response did not contain an executable query"
	}
	return strings.Join(messages, "; ")
}
