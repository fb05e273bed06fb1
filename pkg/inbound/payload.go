package inbound

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/mail"
)

// EventInbound is the only event type this package accepts.
const EventInbound = "inbound"

// Envelope is a single webhook event.
type Envelope struct {
	Event string   `json:"event"`
	TS    int64    `json:"ts"`
	Msg   *Payload `json:"msg"`
}

// Payload is the msg object of an inbound event.
type Payload struct {
	RawMsg      string      `json:"raw_msg,omitempty"`
	Headers     Header      `json:"headers,omitempty"`
	Text        string      `json:"text,omitempty"`
	HTML        string      `json:"html,omitempty"`
	FromEmail   string      `json:"from_email,omitempty"`
	FromName    string      `json:"from_name,omitempty"`
	To          []Address   `json:"to,omitempty"`
	Cc          []Address   `json:"cc,omitempty"`
	Email       string      `json:"email,omitempty"`
	Subject     string      `json:"subject,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Sender      string      `json:"sender,omitempty"`
	DKIM        *DKIM       `json:"dkim,omitempty"`
	SPF         *SPF        `json:"spf,omitempty"`
	SpamReport  *SpamReport `json:"spam_report,omitempty"`
	Attachments Records     `json:"attachments,omitempty"`
	Images      Records     `json:"images,omitempty"`
}

// DKIM holds the provider's DKIM verdict.
type DKIM struct {
	Signed bool `json:"signed"`
	Valid  bool `json:"valid"`
}

// SPF holds the provider's SPF verdict.
type SPF struct {
	Result SPFResult `json:"result"`
	Detail string    `json:"detail,omitempty"`
}

// SpamReport holds the SpamAssassin score and the rules that contributed to it.
type SpamReport struct {
	Score        float64    `json:"score"`
	MatchedRules []SpamRule `json:"matched_rules,omitempty"`
}

// SpamRule is a single matched SpamAssassin rule.
type SpamRule struct {
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Description string  `json:"description,omitempty"`
}

// SPFResult is the outcome of an SPF check.
type SPFResult string

// SPF results reported by Mandrill.
const (
	SPFPass      SPFResult = "pass"
	SPFNeutral   SPFResult = "neutral"
	SPFFail      SPFResult = "fail"
	SPFSoftFail  SPFResult = "softfail"
	SPFTempError SPFResult = "temperror"
	SPFPermError SPFResult = "permerror"
	SPFNone      SPFResult = "none"
)

// Valid reports whether r is one of the known SPF results.
func (r SPFResult) Valid() bool {
	switch r {
	case SPFPass, SPFNeutral, SPFFail, SPFSoftFail, SPFTempError, SPFPermError, SPFNone:
		return true
	}
	return false
}

// Address is a recipient name and email. The payload delivers these as [email, name] pairs.
type Address struct {
	Name  string
	Email string
}

// UnmarshalJSON decodes an [email, name] pair, either element may be null.
func (a *Address) UnmarshalJSON(b []byte) error {
	var pair []*string
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("address must be an [email, name] pair: %w", err)
	}
	*a = Address{}
	if len(pair) > 0 && pair[0] != nil {
		a.Email = *pair[0]
	}
	if len(pair) > 1 && pair[1] != nil {
		a.Name = *pair[1]
	}
	return nil
}

// MarshalJSON encodes the address back into its [email, name] form.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{a.Email, a.Name})
}

// MailAddress converts the address for use with net/mail.
func (a Address) MailAddress() *mail.Address {
	return &mail.Address{Name: a.Name, Address: a.Email}
}

// String formats the address per RFC 5322.
func (a Address) String() string {
	return a.MailAddress().String()
}

// Header maps header names, exactly as delivered, to their values. Repeated headers such as
// Received arrive as arrays and keep every value.
type Header map[string][]string

// Get returns the first value of the named header, or "". Names are case-sensitive.
func (h Header) Get(key string) string {
	if v := h[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns all values of the named header.
func (h Header) Values(key string) []string {
	return h[key]
}

// Clone returns a deep copy of h.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	c := make(Header, len(h))
	for k, v := range h {
		c[k] = append([]string(nil), v...)
	}
	return c
}

// UnmarshalJSON accepts string or string-array header values.
func (h *Header) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("headers must be an object: %w", err)
	}
	if raw == nil {
		*h = nil
		return nil
	}
	out := make(Header, len(raw))
	for k, v := range raw {
		out[k] = headerValues(v)
	}
	*h = out
	return nil
}

// MarshalJSON writes single values as strings, repeated values as arrays.
func (h Header) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(h))
	for k, v := range h {
		if len(v) == 1 {
			out[k] = v[0]
		} else {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

func headerValues(raw json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	if t := bytes.TrimSpace(raw); len(t) == 0 || string(t) == "null" {
		return []string{}
	}
	// Numbers and other oddities are kept as their literal text.
	return []string{string(bytes.TrimSpace(raw))}
}

// AttachmentRecord is a single attachment or inline image as delivered.
type AttachmentRecord struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	// Base64 is false for attachments Mandrill delivers as plain text. Absent means base64.
	Base64 *bool `json:"base64,omitempty"`
}

// Records is an ordered list of attachment records. The payload delivers them as an object
// keyed by file name; decoding keeps the key order of the document.
type Records []AttachmentRecord

// UnmarshalJSON decodes a filename-keyed object, or an array, of attachment records.
func (r *Records) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*r = nil
		return nil
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return fmt.Errorf("attachments must be an object, got %v", tok)
	}
	recs := Records{}
	for dec.More() {
		key := ""
		if delim == '{' {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ = tok.(string)
		}
		var rec AttachmentRecord
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("attachment %q: %w", key, err)
		}
		if rec.Name == "" {
			rec.Name = key
		}
		recs = append(recs, rec)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = recs
	return nil
}

// MarshalJSON writes the records as an object keyed by name, in order.
func (r Records) MarshalJSON() ([]byte, error) {
	b := &bytes.Buffer{}
	b.WriteByte('{')
	for i, rec := range r {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(rec.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
