package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/inbucket/mandrill-inbound/pkg/inbound"
	"github.com/inbucket/mandrill-inbound/pkg/stringutil"
	"github.com/jhillyerd/enmime/v2"
)

const none = "(none)"

type inspectCmd struct {
	sanitize bool
	mime     bool
}

func (*inspectCmd) Name() string {
	return "inspect"
}

func (*inspectCmd) Synopsis() string {
	return "summarize an inbound webhook payload"
}

func (*inspectCmd) Usage() string {
	return `inspect [flags] <payload.json|->:
	print the headers, authentication results, attachments and bodies of an
	inbound event
`
}

func (i *inspectCmd) SetFlags(f *flag.FlagSet) {
	i.sanitize = true
	f.BoolVar(&i.sanitize, "sanitize", i.sanitize, "sanitize the HTML body (default from config)")
	f.BoolVar(&i.mime, "mime", false, "list the MIME parts of raw_msg")
}

func (i *inspectCmd) Execute(
	_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	name := f.Arg(0)
	if name == "" {
		return usage("payload file required")
	}
	sanitize := configFrom(args).Extract.SanitizeHTML
	f.Visit(func(fl *flag.Flag) {
		if fl.Name == "sanitize" {
			sanitize = i.sanitize
		}
	})

	data, err := readPayload(name)
	if err != nil {
		return fatal("Couldn't read payload", err)
	}
	msg, err := inbound.Parse(data)
	if err != nil {
		return fatal("Invalid payload", err)
	}
	out, err := formatMessage(msg, sanitize)
	if err != nil {
		return fatal("Couldn't format message", err)
	}
	if i.mime {
		env, err := msg.MIME()
		if err != nil {
			return fatal("Couldn't parse raw_msg", err)
		}
		out = append(out, formatMIME(env)...)
	}
	if _, err := os.Stdout.Write(out); err != nil {
		return fatal("Error", err)
	}

	return subcommands.ExitSuccess
}

// formatMessage renders a human readable summary of msg.
func formatMessage(msg *inbound.Message, sanitize bool) ([]byte, error) {
	b := &bytes.Buffer{}
	field(b, "Subject", msg.Subject())
	from := msg.Sender()
	if from.Email == "" && from.Name == "" {
		field(b, "From", "")
	} else {
		field(b, "From", stringutil.StringAddress(from.MailAddress()))
	}
	field(b, "To", addressList(msg.To()))
	field(b, "Cc", addressList(msg.Cc()))
	field(b, "Message-Id", msg.MessageID())
	field(b, "Email", msg.Email())
	field(b, "Mailbox hash", msg.MailboxHash())
	if date, ok := msg.SendDate(); ok {
		field(b, "Date", date.Format(time.RFC1123Z))
	} else {
		field(b, "Date", "")
	}
	field(b, "Received", msg.TS().UTC().Format(time.RFC3339))
	field(b, "Tags", strings.Join(msg.Tags(), ", "))
	field(b, "DKIM", fmt.Sprintf("signed=%t valid=%t", msg.DKIMSigned(), msg.DKIM()))
	spf := string(msg.SPF())
	if detail := msg.SPFDetail(); spf != "" && detail != "" {
		spf += " (" + detail + ")"
	}
	field(b, "SPF", spf)
	field(b, "Spam score", formatScore(msg.SpamScore()))
	for _, r := range msg.SpamRules() {
		fmt.Fprintf(b, "  %s %s: %s\n", r.Name, formatScore(r.Score), r.Description)
	}
	attachmentList(b, "Attachments", msg.Attachments())
	attachmentList(b, "Images", msg.Images())

	if text := msg.TextBody(); text != "" {
		section(b, "text", text)
	}
	html := msg.HTMLBody()
	if html != "" {
		if sanitize {
			var err error
			if html, err = msg.SanitizedHTMLBody(); err != nil {
				return nil, err
			}
		}
		section(b, "html", html)
	}

	return b.Bytes(), nil
}

// formatMIME renders the part tree of a parsed raw_msg.
func formatMIME(env *enmime.Envelope) []byte {
	b := &bytes.Buffer{}
	b.WriteString("\n--- mime ---\n")
	if env.Root != nil {
		writePart(b, env.Root, 0)
	}
	fmt.Fprintf(b, "Text parts: %d bytes, HTML parts: %d bytes\n", len(env.Text), len(env.HTML))
	fmt.Fprintf(b, "Attachments: %d, Inlines: %d, Other parts: %d\n",
		len(env.Attachments), len(env.Inlines), len(env.OtherParts))
	for _, e := range env.Errors {
		fmt.Fprintf(b, "Error: %v\n", e)
	}
	return b.Bytes()
}

func writePart(b *bytes.Buffer, p *enmime.Part, depth int) {
	for ; p != nil; p = p.NextSibling {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(p.ContentType)
		if p.FileName != "" {
			fmt.Fprintf(b, " %q", p.FileName)
		}
		if p.Disposition != "" {
			b.WriteString(" [" + p.Disposition + "]")
		}
		b.WriteByte('\n')
		writePart(b, p.FirstChild, depth+1)
	}
}

func field(b *bytes.Buffer, label, value string) {
	if value == "" {
		value = none
	}
	fmt.Fprintf(b, "%-14s%s\n", label+":", value)
}

func section(b *bytes.Buffer, name, body string) {
	fmt.Fprintf(b, "\n--- %s ---\n", name)
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
}

func addressList(addrs []inbound.Address) string {
	mailAddrs := make([]*mail.Address, len(addrs))
	for i, a := range addrs {
		mailAddrs[i] = a.MailAddress()
	}
	return strings.Join(stringutil.StringAddressList(mailAddrs), ", ")
}

func attachmentList(b *bytes.Buffer, label string, atts []*inbound.Attachment) {
	if len(atts) == 0 {
		field(b, label, "")
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, a := range atts {
		size := "invalid content"
		if n := a.Size(); n >= 0 {
			size = strconv.FormatInt(n, 10) + " bytes"
		}
		fmt.Fprintf(b, "  %s (%s, %s)\n", a.Name(), a.ContentType(), size)
	}
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
