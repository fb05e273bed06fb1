package extension

import (
	"github.com/inbucket/mandrill-inbound/pkg/extension/event"
)

// Host defines the extension points of inbound processing.
type Host struct {
	Events *Events
}

// Events defines all the event types supported by the extension host.
//
// Before-events let extensions alter how an attachment is handled. They run synchronously and
// the first listener to respond with a non-nil value decides; the rest are not called.
//
// After-events let extensions act once something has happened. They run in parallel with
// the rest of processing; call Wait on the broker to block until they finish.
type Events struct {
	AfterMessageParsed    AsyncEventBroker[event.InboundMessage]
	BeforeAttachmentSaved EventBroker[event.Attachment, event.SaveResponse]
	AfterAttachmentSaved  AsyncEventBroker[event.Attachment]
}

// NewHost creates a new extension host.
func NewHost() *Host {
	return &Host{Events: &Events{}}
}

// Wait blocks until all after-event listeners have returned.
func (h *Host) Wait() {
	h.Events.AfterMessageParsed.Wait()
	h.Events.AfterAttachmentSaved.Wait()
}
