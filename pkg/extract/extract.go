// Package extract saves the attachments of inbound messages to disk, consulting extensions
// before each write.
package extract

import (
	"errors"
	"fmt"
	"net/mail"
	"path/filepath"
	"strings"

	"github.com/inbucket/mandrill-inbound/pkg/extension"
	"github.com/inbucket/mandrill-inbound/pkg/extension/event"
	"github.com/inbucket/mandrill-inbound/pkg/inbound"
	"github.com/rs/zerolog/log"
)

// Result describes what happened to one attachment.
type Result struct {
	Name        string // Name the attachment was, or would have been, saved under.
	ContentType string
	Path        string
	Saved       bool
	Reason      string // Why the attachment was skipped.
}

// Extractor writes attachments into Dir.
type Extractor struct {
	Dir          string
	AllowedTypes []string
	ExtHost      *extension.Host
}

// New creates an Extractor. extHost may be nil.
func New(dir string, allowedTypes []string, extHost *extension.Host) *Extractor {
	if extHost == nil {
		extHost = extension.NewHost()
	}
	return &Extractor{Dir: dir, AllowedTypes: allowedTypes, ExtHost: extHost}
}

// Extract saves each attachment of msg in payload order. Attachments rejected by an extension,
// by AllowedTypes, or whose name would leave Dir are reported as skipped; any other failure stops extraction and is
// returned along with the results so far.
func (e *Extractor) Extract(msg *inbound.Message) ([]Result, error) {
	events := e.events()
	messageID := msg.MessageID()
	logger := log.With().Str("module", "extract").Str("messageid", messageID).Logger()

	events.AfterMessageParsed.Emit(MessageEvent(msg))

	atts := msg.Attachments()
	results := make([]Result, 0, len(atts))
	for _, att := range atts {
		ev := &event.Attachment{
			MessageID:   messageID,
			Name:        att.Name(),
			ContentType: att.ContentType(),
			Size:        att.Size(),
		}
		if resp := events.BeforeAttachmentSaved.Emit(ev); resp != nil {
			if resp.Action == event.ActionDeny {
				logger.Info().Str("name", att.Name()).Str("reason", resp.Reason).
					Msg("Extension denied attachment")
				results = append(results, Result{
					Name:        att.Name(),
					ContentType: att.ContentType(),
					Reason:      resp.Reason,
				})
				continue
			}
			if resp.Name != "" && resp.Name != att.Name() {
				logger.Debug().Str("name", att.Name()).Str("rename", resp.Name).
					Msg("Extension renamed attachment")
				att = att.Renamed(resp.Name)
			}
		}

		res := Result{
			Name:        att.Name(),
			ContentType: att.ContentType(),
		}
		if !safeName(att.Name()) {
			logger.Warn().Str("name", att.Name()).Msg("Refusing attachment name outside directory")
			res.Reason = fmt.Sprintf("unsafe attachment name %q", att.Name())
			results = append(results, res)
			continue
		}
		res.Path = e.Dir + att.Name()
		if err := att.Download(e.Dir, e.AllowedTypes...); err != nil {
			if errors.Is(err, inbound.ErrPolicy) {
				logger.Info().Str("name", att.Name()).Err(err).Msg("Attachment type not allowed")
				res.Path = ""
				res.Reason = err.Error()
				results = append(results, res)
				continue
			}
			return results, err
		}
		res.Saved = true
		results = append(results, res)

		ev.Name = res.Name
		ev.Path = res.Path
		events.AfterAttachmentSaved.Emit(ev)
	}

	return results, nil
}

// safeName reports whether name is a plain file name that stays within the directory it is
// appended to.
func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}

func (e *Extractor) events() *extension.Events {
	if e.ExtHost == nil {
		e.ExtHost = extension.NewHost()
	}
	return e.ExtHost.Events
}

// MessageEvent summarizes msg for extension listeners.
func MessageEvent(msg *inbound.Message) *event.InboundMessage {
	sender := msg.Sender()
	ev := &event.InboundMessage{
		MessageID:   msg.MessageID(),
		Subject:     msg.Subject(),
		To:          mailAddresses(msg.To()),
		Cc:          mailAddresses(msg.Cc()),
		MailboxHash: msg.MailboxHash(),
		Tags:        msg.Tags(),
		SpamScore:   msg.SpamScore(),
		DKIM:        msg.DKIM(),
		SPF:         string(msg.SPF()),
		Attachments: len(msg.Attachments()),
	}
	if sender.Email != "" || sender.Name != "" {
		ev.From = sender.MailAddress()
	}
	return ev
}

func mailAddresses(addrs []inbound.Address) []*mail.Address {
	out := make([]*mail.Address, len(addrs))
	for i, a := range addrs {
		out[i] = a.MailAddress()
	}
	return out
}
