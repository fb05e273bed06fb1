// Package event holds the values passed to extension listeners.
package event

import (
	"net/mail"
)

// Actions a before-event listener may respond with.
const (
	ActionAllow = iota
	ActionDeny
)

// InboundMessage summarizes a parsed inbound message.
type InboundMessage struct {
	MessageID   string
	Subject     string
	From        *mail.Address
	To          []*mail.Address
	Cc          []*mail.Address
	MailboxHash string
	Tags        []string
	SpamScore   float64
	DKIM        bool
	SPF         string
	Attachments int
}

// Attachment describes an attachment about to be, or just, written to disk.
type Attachment struct {
	MessageID   string
	Name        string
	ContentType string
	Size        int64
	Path        string
}

// SaveResponse is a before-event decision on an attachment. Name, when set, replaces the file
// name the attachment is saved under.
type SaveResponse struct {
	Action int
	Name   string
	Reason string
}
