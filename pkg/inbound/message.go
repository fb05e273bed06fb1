package inbound

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/mail"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/inbucket/mandrill-inbound/pkg/sanitize"
	"github.com/jhillyerd/enmime/v2"
	"github.com/rs/zerolog/log"
)

const (
	headerDate      = "Date"
	headerMessageID = "Message-Id"
)

var mailboxHashPattern = regexp.MustCompile(`\+(\S+)@`)

// Source supplies the event to New. Exactly one field must be set.
type Source struct {
	// JSON is the serialized event, or an array of events.
	JSON []byte
	// Decoded is an already decoded event: *Envelope, Envelope, []Envelope, or the
	// map[string]any / []any values produced by encoding/json.
	Decoded any
}

// Message is a read-only view of one inbound event.
type Message struct {
	ts  int64
	msg *Payload
}

// New validates the event and wraps it. If the event is an array, only the first element is
// used.
func New(src Source) (*Message, error) {
	data, err := src.bytes()
	if err != nil {
		return nil, err
	}
	events, err := splitEvents(data)
	if err != nil {
		return nil, err
	}
	if len(events) > 1 {
		log.Warn().Str("module", "inbound").Int("dropped", len(events)-1).
			Msg("Batch contained more than one event, using the first")
	}
	return decodeEvent(events[0])
}

// Parse is shorthand for New with JSON input.
func Parse(data []byte) (*Message, error) {
	return New(Source{JSON: data})
}

// ParseBatch decodes every event of a batch. Any invalid event fails the whole batch.
func ParseBatch(data []byte) ([]*Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: json is required", ErrConfiguration)
	}
	events, err := splitEvents(data)
	if err != nil {
		return nil, err
	}
	msgs := make([]*Message, len(events))
	for i, ev := range events {
		m, err := decodeEvent(ev)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		msgs[i] = m
	}
	return msgs, nil
}

func (s Source) bytes() ([]byte, error) {
	hasJSON := len(s.JSON) > 0
	hasDecoded := !isNil(s.Decoded)
	switch {
	case hasJSON && hasDecoded:
		return nil, fmt.Errorf("%w: provide json or a decoded source, not both", ErrConfiguration)
	case hasJSON:
		return s.JSON, nil
	case hasDecoded:
		// Decoded values take the same path as JSON so both produce identical messages.
		data, err := json.Marshal(s.Decoded)
		if err != nil {
			return nil, fmt.Errorf("%w: decoded source could not be normalized: %w", ErrValidation, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: you must provide json or a decoded source", ErrConfiguration)
}

// isNil reports true for nil and for typed nil pointers, maps and slices, which carry no event.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// splitEvents returns the events in data, which holds either one event or an array of them.
func splitEvents(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var events []json.RawMessage
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("%w: malformed event batch: %w", ErrValidation, err)
		}
		if len(events) == 0 {
			return nil, fmt.Errorf("%w: event batch is empty", ErrValidation)
		}
		return events, nil
	}
	return []json.RawMessage{data}, nil
}

func decodeEvent(data json.RawMessage) (*Message, error) {
	var env struct {
		Event string          `json:"event"`
		TS    int64           `json:"ts"`
		Msg   json.RawMessage `json:"msg"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed event: %w", ErrValidation, err)
	}
	if env.Event != EventInbound {
		return nil, fmt.Errorf("%w: event %q is not inbound", ErrValidation, env.Event)
	}
	if isEmptyObject(env.Msg) {
		return nil, fmt.Errorf("%w: msg not found", ErrValidation)
	}
	msg := &Payload{}
	if err := json.Unmarshal(env.Msg, msg); err != nil {
		return nil, fmt.Errorf("%w: malformed msg: %w", ErrValidation, err)
	}
	log.Debug().Str("module", "inbound").Str("subject", msg.Subject).
		Int("attachments", len(msg.Attachments)).Msg("Parsed inbound event")
	return &Message{ts: env.TS, msg: msg}, nil
}

// isEmptyObject reports true for missing, null, and {} values; anything that is not an object
// is treated as empty too.
func isEmptyObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return true
	}
	return len(fields) == 0
}

// Subject of the message.
func (m *Message) Subject() string {
	return m.msg.Subject
}

// FromName is the display name of the sender.
func (m *Message) FromName() string {
	return m.msg.FromName
}

// FromEmail is the address of the sender.
func (m *Message) FromEmail() string {
	return m.msg.FromEmail
}

// Sender returns the sender name and email.
func (m *Message) Sender() Address {
	return Address{Name: m.msg.FromName, Email: m.msg.FromEmail}
}

// To returns the direct recipients in payload order.
func (m *Message) To() []Address {
	return copyAddresses(m.msg.To)
}

// Cc returns the carbon-copy recipients in payload order, empty if none were sent.
func (m *Message) Cc() []Address {
	return copyAddresses(m.msg.Cc)
}

// Recipients returns To followed by Cc.
func (m *Message) Recipients() []Address {
	return append(m.To(), m.msg.Cc...)
}

func copyAddresses(addrs []Address) []Address {
	return append(make([]Address, 0, len(addrs)), addrs...)
}

// Headers returns every header as received. Keys are case-sensitive.
func (m *Message) Headers() Header {
	return m.msg.Headers.Clone()
}

// MessageID returns the Message-Id header, or "" when absent.
func (m *Message) MessageID() string {
	return m.msg.Headers.Get(headerMessageID)
}

// Attachments wraps each attachment record, in payload order. A fresh slice is built on every
// call.
func (m *Message) Attachments() []*Attachment {
	return wrapRecords(m.msg.Attachments)
}

// HasAttachments reports whether the message carries any attachments.
func (m *Message) HasAttachments() bool {
	return len(m.msg.Attachments) > 0
}

// Images wraps the inline images, in payload order.
func (m *Message) Images() []*Attachment {
	return wrapRecords(m.msg.Images)
}

func wrapRecords(recs Records) []*Attachment {
	atts := make([]*Attachment, len(recs))
	for i, rec := range recs {
		atts[i] = newAttachment(rec)
	}
	return atts
}

// HTMLBody returns the HTML part, or "".
func (m *Message) HTMLBody() string {
	return m.msg.HTML
}

// SanitizedHTMLBody returns the HTML part with scripts and unsafe styling removed.
func (m *Message) SanitizedHTMLBody() (string, error) {
	return sanitize.HTML(m.msg.HTML)
}

// TextBody returns the plain text part, or "".
func (m *Message) TextBody() string {
	return m.msg.Text
}

// Tags returns the tags the provider attached, inbound events usually have none.
func (m *Message) Tags() []string {
	return append([]string(nil), m.msg.Tags...)
}

// DKIM reports whether the DKIM signature validated.
func (m *Message) DKIM() bool {
	return m.msg.DKIM != nil && m.msg.DKIM.Valid
}

// DKIMSigned reports whether the message carried a DKIM signature.
func (m *Message) DKIMSigned() bool {
	return m.msg.DKIM != nil && m.msg.DKIM.Signed
}

// SPF returns the SPF result, or "" when not reported.
func (m *Message) SPF() SPFResult {
	if m.msg.SPF == nil {
		return ""
	}
	return m.msg.SPF.Result
}

// SPFDetail returns the human readable SPF explanation.
func (m *Message) SPFDetail() string {
	if m.msg.SPF == nil {
		return ""
	}
	return m.msg.SPF.Detail
}

// SpamScore returns the SpamAssassin score.
func (m *Message) SpamScore() float64 {
	if m.msg.SpamReport == nil {
		return 0
	}
	return m.msg.SpamReport.Score
}

// SpamRules returns the SpamAssassin rules that matched.
func (m *Message) SpamRules() []SpamRule {
	if m.msg.SpamReport == nil {
		return nil
	}
	return append([]SpamRule(nil), m.msg.SpamReport.MatchedRules...)
}

// Email is the inbound address the message was delivered to.
func (m *Message) Email() string {
	return m.msg.Email
}

// MailboxHash returns the plus-addressing tag of the inbound address, e.g. "123" for
// "inbox+123@example.com", or "".
func (m *Message) MailboxHash() string {
	if match := mailboxHashPattern.FindStringSubmatch(m.msg.Email); match != nil {
		return match[1]
	}
	return ""
}

// SendDate parses the Date header. ok is false if the header is missing or malformed.
func (m *Message) SendDate() (date time.Time, ok bool) {
	raw := strings.TrimSpace(m.msg.Headers.Get(headerDate))
	if raw == "" {
		return time.Time{}, false
	}
	date, err := mail.ParseDate(raw)
	if err != nil {
		log.Debug().Str("module", "inbound").Str("date", raw).Err(err).
			Msg("Unparseable Date header")
		return time.Time{}, false
	}
	return date, true
}

// TS returns the time the provider received the event.
func (m *Message) TS() time.Time {
	return time.Unix(m.ts, 0)
}

// RawMessage returns the full RFC 5322 source, when the provider included it.
func (m *Message) RawMessage() string {
	return m.msg.RawMsg
}

// MIME parses the raw message source into its MIME parts.
func (m *Message) MIME() (*enmime.Envelope, error) {
	if m.msg.RawMsg == "" {
		return nil, fmt.Errorf("%w: raw_msg not present", ErrValidation)
	}
	env, err := enmime.ReadEnvelope(strings.NewReader(m.msg.RawMsg))
	if err != nil {
		return nil, fmt.Errorf("%w: raw_msg: %w", ErrDecode, err)
	}
	return env, nil
}
