package events

import "github.com/asaskevich/EventBus"

// Topics published during a run. Workers push, the progress renderer
// subscribes; nothing on the bus affects verification outcomes.
const (
	// TopicBytesHashed carries an int64 count of bytes just hashed.
	TopicBytesHashed = "validate:bytes"

	// TopicFileDone carries the record.Status string of a completed file.
	TopicFileDone = "validate:file:done"

	// TopicStageStarted / TopicStageDone carry the stage name.
	TopicStageStarted = "pipeline:stage:started"
	TopicStageDone    = "pipeline:stage:done"
)

// New returns a bus for one run. The bus is created per pipeline
// invocation and passed explicitly; there is no process-wide instance.
func New() EventBus.Bus {
	return EventBus.New()
}
