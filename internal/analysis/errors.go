package analysis

import (
	"errors"

	"github.com/memohai/lineassist/internal/chat"
	"github.com/memohai/lineassist/internal/media"
	"github.com/memohai/lineassist/internal/messenger"
)

// ErrNotAnImage indicates fetched content was expected to be an image but was not.
var ErrNotAnImage = errors.New("content is not an image")

// ErrWorkflowPanic wraps a panic recovered from a workflow step.
var ErrWorkflowPanic = errors.New("workflow panicked")

// ErrorKind names the step at which a workflow failed.
type ErrorKind string

const (
	KindContentFetch ErrorKind = "content_fetch"
	KindNotAnImage   ErrorKind = "not_an_image"
	KindCompletion   ErrorKind = "completion"
	KindDelivery     ErrorKind = "delivery"
	KindUnknown      ErrorKind = "unknown"
)

// ClassifyError maps a workflow error to its kind. A nil error has no kind.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotAnImage):
		return KindNotAnImage
	case errors.Is(err, media.ErrContentFetch):
		return KindContentFetch
	case errors.Is(err, chat.ErrCompletion):
		return KindCompletion
	case errors.Is(err, messenger.ErrDelivery):
		return KindDelivery
	default:
		return KindUnknown
	}
}

// Outcome is the terminal result of one workflow run. Text holds the message
// delivered on success; Kind and Err describe a failure, after which the user
// was sent an apology.
type Outcome struct {
	Workflow string
	Text     string
	Kind     ErrorKind
	Err      error
}

// OK reports whether the workflow delivered its answer.
func (o Outcome) OK() bool {
	return o.Err == nil
}
