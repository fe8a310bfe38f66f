package domain

// ColorHint is a semantic presentation category attached to progress
// events. It carries no control-flow meaning.
type ColorHint string

const (
	ColorPrimary   ColorHint = "primary"
	ColorSecondary ColorHint = "secondary"
	ColorError     ColorHint = "error"
	ColorWarning   ColorHint = "warning"
	ColorInfo      ColorHint = "info"
	ColorSuccess   ColorHint = "success"
)

// ProgressEvent is one update on the consumer-facing progress stream.
type ProgressEvent struct {
	Phase   Phase     `json:"phase"`
	Percent float64   `json:"percent"`
	Label   string    `json:"label"`
	Color   ColorHint `json:"color"`
}
