package inbound_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/inbucket/mandrill-inbound/pkg/inbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func parseFixture(t *testing.T, name string) *inbound.Message {
	t.Helper()
	msg, err := inbound.Parse(readFixture(t, name))
	require.NoError(t, err)
	return msg
}

func TestMessageFixture(t *testing.T) {
	msg := parseFixture(t, "valid_http_post.json")

	assert.Equal(t, "Testing", msg.Subject())
	assert.Equal(t, inbound.Address{Name: "John Smith", Email: "john@example.com"}, msg.Sender())
	assert.Equal(t, "John Smith", msg.FromName())
	assert.Equal(t, "john@example.com", msg.FromEmail())
	assert.Equal(t,
		[]inbound.Address{{Name: "Testing Staging", Email: "testing+123testing@example.com"}},
		msg.To())
	assert.Equal(t, []inbound.Address{{Name: "Bob Johnson", Email: "bob@example.com"}}, msg.Cc())
	assert.Equal(t, "<54C9A31C34DF40409355EC9BB763EF15@example.com>", msg.MessageID())
	assert.Equal(t, "1.0", msg.Headers().Get("Mime-Version"))
	assert.Equal(t, "<p>We no speak americano</p>", msg.HTMLBody())
	assert.Equal(t, "\nThis is awesome!\n\n", msg.TextBody())
	assert.Equal(t, "testing+123testing@example.com", msg.Email())
	assert.Equal(t, "123testing", msg.MailboxHash())
	assert.Empty(t, msg.Tags())
	assert.True(t, msg.HasAttachments())
	assert.Len(t, msg.Attachments(), 1)
	assert.Empty(t, msg.Images())

	date, ok := msg.SendDate()
	require.True(t, ok)
	assert.Equal(t, 2013, date.Year())
	assert.Equal(t, 2013, msg.TS().Year())
	assert.Equal(t, int64(1368214102), msg.TS().Unix())
}

func TestMessageAuthResults(t *testing.T) {
	msg := parseFixture(t, "valid_http_post.json")

	assert.True(t, msg.DKIM())
	assert.True(t, msg.DKIMSigned())
	assert.Equal(t, inbound.SPFPass, msg.SPF())
	assert.True(t, msg.SPF().Valid())
	assert.Equal(t, "sender SPF authorized", msg.SPFDetail())
	assert.InDelta(t, -0.8, msg.SpamScore(), 0.0001)

	rules := msg.SpamRules()
	require.Len(t, rules, 3)
	assert.Equal(t, "RCVD_IN_DNSWL_LOW", rules[0].Name)
	assert.InDelta(t, -0.7, rules[0].Score, 0.0001)
}

func TestMessageNoCc(t *testing.T) {
	msg := parseFixture(t, "valid_http_post_no_cc.json")

	cc := msg.Cc()
	assert.NotNil(t, cc)
	assert.Empty(t, cc)
	assert.Equal(t, msg.To(), msg.Recipients())
}

func TestMessageRecipients(t *testing.T) {
	msg := parseFixture(t, "valid_http_post.json")

	want := []inbound.Address{
		{Name: "Testing Staging", Email: "testing+123testing@example.com"},
		{Name: "Bob Johnson", Email: "bob@example.com"},
	}
	assert.Equal(t, want, msg.Recipients())
	assert.Equal(t, append(msg.To(), msg.Cc()...), msg.Recipients())
}

func TestMessageAccessorsReturnCopies(t *testing.T) {
	msg := parseFixture(t, "valid_http_post.json")

	to := msg.To()
	to[0].Name = "changed"
	headers := msg.Headers()
	headers["Mime-Version"][0] = "2.0"
	msg.Attachments()[0] = nil

	assert.Equal(t, "Testing Staging", msg.To()[0].Name)
	assert.Equal(t, "1.0", msg.Headers().Get("Mime-Version"))
	assert.NotNil(t, msg.Attachments()[0])
}

func TestMessageRepeatedHeader(t *testing.T) {
	msg := parseFixture(t, "valid_http_post.json")

	received := msg.Headers().Values("Received")
	require.Len(t, received, 2)
	assert.Equal(t, "from mail.example.com by mx.mandrillapp.com", received[0])
	assert.Equal(t, received[0], msg.Headers().Get("Received"))
}

func TestMessageHeaderValueShapes(t *testing.T) {
	data := []byte(`{"event": "inbound", "msg": {"headers": {
		"X-Number": 42, "X-Null": null, "X-List": ["a", "b"], "x-lower": "kept"
	}}}`)
	msg, err := inbound.Parse(data)
	require.NoError(t, err)

	h := msg.Headers()
	assert.Equal(t, []string{"42"}, h.Values("X-Number"))
	assert.Equal(t, []string{}, h.Values("X-Null"))
	assert.Equal(t, []string{"a", "b"}, h.Values("X-List"))
	assert.Equal(t, "kept", h.Get("x-lower"))
	assert.Equal(t, "", h.Get("X-Lower"), "header names are case-sensitive")
}

func TestMessageRawAndDecodedAgree(t *testing.T) {
	data := readFixture(t, "valid_http_post.json")

	var generic any
	require.NoError(t, json.Unmarshal(data, &generic))
	var env inbound.Envelope
	require.NoError(t, json.Unmarshal(data, &env))

	sources := map[string]inbound.Source{
		"generic":        {Decoded: generic},
		"generic list":   {Decoded: []any{generic}},
		"envelope":       {Decoded: env},
		"envelope ptr":   {Decoded: &env},
		"envelope slice": {Decoded: []inbound.Envelope{env}},
	}

	raw, err := inbound.New(inbound.Source{JSON: data})
	require.NoError(t, err)
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			got, err := inbound.New(src)
			require.NoError(t, err)
			assertSameMessage(t, raw, got)
		})
	}
}

func assertSameMessage(t *testing.T, want, got *inbound.Message) {
	t.Helper()
	assert.Equal(t, want.Subject(), got.Subject())
	assert.Equal(t, want.Sender(), got.Sender())
	assert.Equal(t, want.To(), got.To())
	assert.Equal(t, want.Cc(), got.Cc())
	assert.Equal(t, want.Recipients(), got.Recipients())
	assert.Equal(t, want.Headers(), got.Headers())
	assert.Equal(t, want.MessageID(), got.MessageID())
	assert.Equal(t, want.HTMLBody(), got.HTMLBody())
	assert.Equal(t, want.TextBody(), got.TextBody())
	assert.Equal(t, want.Tags(), got.Tags())
	assert.Equal(t, want.MailboxHash(), got.MailboxHash())
	assert.Equal(t, want.TS(), got.TS())
	assert.Equal(t, want.DKIM(), got.DKIM())
	assert.Equal(t, want.SPF(), got.SPF())
	assert.Equal(t, want.SpamScore(), got.SpamScore())
	assert.Equal(t, want.RawMessage(), got.RawMessage())
	wantDate, wantOK := want.SendDate()
	gotDate, gotOK := got.SendDate()
	assert.Equal(t, wantOK, gotOK)
	assert.True(t, wantDate.Equal(gotDate))

	wantAtts, gotAtts := want.Attachments(), got.Attachments()
	require.Len(t, gotAtts, len(wantAtts))
	for i := range wantAtts {
		assert.Equal(t, wantAtts[i].Name(), gotAtts[i].Name())
		assert.Equal(t, wantAtts[i].ContentType(), gotAtts[i].ContentType())
		wantContent, err := wantAtts[i].Read()
		require.NoError(t, err)
		gotContent, err := gotAtts[i].Read()
		require.NoError(t, err)
		assert.Equal(t, wantContent, gotContent)
	}
}

func TestNewSourceErrors(t *testing.T) {
	data := readFixture(t, "valid_http_post.json")

	_, err := inbound.New(inbound.Source{})
	assert.ErrorIs(t, err, inbound.ErrConfiguration)

	_, err = inbound.New(inbound.Source{JSON: data, Decoded: map[string]any{}})
	assert.ErrorIs(t, err, inbound.ErrConfiguration)

	_, err = inbound.New(inbound.Source{Decoded: func() {}})
	assert.ErrorIs(t, err, inbound.ErrValidation)

	typedNils := map[string]any{
		"envelope ptr":   (*inbound.Envelope)(nil),
		"map":            map[string]any(nil),
		"envelope slice": []inbound.Envelope(nil),
		"any slice":      []any(nil),
	}
	for name, decoded := range typedNils {
		t.Run(name, func(t *testing.T) {
			_, err := inbound.New(inbound.Source{Decoded: decoded})
			assert.ErrorIs(t, err, inbound.ErrConfiguration)

			// A typed nil alongside JSON is not a second input.
			msg, err := inbound.New(inbound.Source{JSON: data, Decoded: decoded})
			require.NoError(t, err)
			assert.Equal(t, "Testing", msg.Subject())
		})
	}
}

func TestNewValidationErrors(t *testing.T) {
	testCases := map[string]string{
		"malformed json":    `{"event": "inbound",`,
		"missing event":     `{"ts": 1, "msg": {"subject": "x"}}`,
		"wrong event":       `{"event": "send", "msg": {"subject": "x"}}`,
		"event not string":  `{"event": 1, "msg": {"subject": "x"}}`,
		"missing msg":       `{"event": "inbound"}`,
		"null msg":          `{"event": "inbound", "msg": null}`,
		"empty msg":         `{"event": "inbound", "msg": {}}`,
		"msg not object":    `{"event": "inbound", "msg": "hello"}`,
		"empty batch":       `[]`,
		"not an object":     `"inbound"`,
		"bad first element": `[{"event": "send", "msg": {"subject": "x"}}]`,
	}
	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := inbound.Parse([]byte(data))
			assert.ErrorIs(t, err, inbound.ErrValidation)
		})
	}
}

func TestNewUsesFirstEventOfBatch(t *testing.T) {
	data := []byte(`[
		{"event": "inbound", "msg": {"subject": "first"}},
		{"event": "inbound", "msg": {"subject": "second"}}
	]`)

	msg, err := inbound.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "first", msg.Subject())
}

func TestParseBatch(t *testing.T) {
	data := []byte(`[
		{"event": "inbound", "msg": {"subject": "first"}},
		{"event": "inbound", "msg": {"subject": "second"}}
	]`)

	msgs, err := inbound.ParseBatch(data)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Subject())
	assert.Equal(t, "second", msgs[1].Subject())

	msgs, err = inbound.ParseBatch(readFixture(t, "valid_http_post.json"))
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestParseBatchErrors(t *testing.T) {
	_, err := inbound.ParseBatch(nil)
	assert.ErrorIs(t, err, inbound.ErrConfiguration)

	data := []byte(`[
		{"event": "inbound", "msg": {"subject": "first"}},
		{"event": "inbound", "msg": {}}
	]`)
	_, err = inbound.ParseBatch(data)
	require.ErrorIs(t, err, inbound.ErrValidation)
	assert.Contains(t, err.Error(), "event 1")
}

func TestMailboxHash(t *testing.T) {
	testCases := []struct {
		email, want string
	}{
		{"testing+123testing@example.com", "123testing"},
		{"inbox+a@example.com", "a"},
		{"inbox@example.com", ""},
		{"inbox+@example.com", ""},
		{"", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.email, func(t *testing.T) {
			data, err := json.Marshal(map[string]any{
				"event": "inbound",
				"msg":   map[string]any{"email": tc.email, "subject": "x"},
			})
			require.NoError(t, err)
			msg, err := inbound.Parse(data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, msg.MailboxHash())
		})
	}
}

func TestLenientAccessors(t *testing.T) {
	msg, err := inbound.Parse([]byte(`{"event": "inbound", "msg": {"subject": "bare"}}`))
	require.NoError(t, err)

	assert.Equal(t, "", msg.MessageID())
	assert.Empty(t, msg.To())
	assert.NotNil(t, msg.Cc())
	assert.Empty(t, msg.Recipients())
	assert.False(t, msg.HasAttachments())
	assert.Empty(t, msg.Attachments())
	assert.False(t, msg.DKIM())
	assert.Equal(t, inbound.SPFResult(""), msg.SPF())
	assert.Zero(t, msg.SpamScore())
	assert.Nil(t, msg.SpamRules())
	_, ok := msg.SendDate()
	assert.False(t, ok)
}

func TestSendDateMalformed(t *testing.T) {
	msg, err := inbound.Parse([]byte(
		`{"event": "inbound", "msg": {"headers": {"Date": "last tuesday"}}}`))
	require.NoError(t, err)

	_, ok := msg.SendDate()
	assert.False(t, ok)
}

func TestAddressNullElements(t *testing.T) {
	msg, err := inbound.Parse([]byte(`{"event": "inbound", "msg": {
		"to": [["a@example.com", null], [null, "Nobody"]]
	}}`))
	require.NoError(t, err)

	want := []inbound.Address{{Email: "a@example.com"}, {Name: "Nobody"}}
	assert.Equal(t, want, msg.To())
}

func TestSanitizedHTMLBody(t *testing.T) {
	msg, err := inbound.Parse([]byte(`{"event": "inbound", "msg": {
		"html": "<p onclick=\"x()\">Hi<script>alert(1)</script></p>"
	}}`))
	require.NoError(t, err)

	got, err := msg.SanitizedHTMLBody()
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi</p>", got)
}

func TestMIME(t *testing.T) {
	msg := parseFixture(t, "valid_http_post.json")

	env, err := msg.MIME()
	require.NoError(t, err)
	assert.Equal(t, "Testing", env.GetHeader("Subject"))
	assert.Contains(t, env.Text, "This is awesome!")
	assert.Contains(t, env.HTML, "We no speak americano")
	require.Len(t, env.Attachments, 1)
	assert.Equal(t, "equal.jpg", env.Attachments[0].FileName)

	att := msg.Attachments()[0]
	content, err := att.Read()
	require.NoError(t, err)
	assert.Equal(t, content, env.Attachments[0].Content)
}

func TestMIMEWithoutRawMessage(t *testing.T) {
	msg := parseFixture(t, "ordered_attachments.json")

	_, err := msg.MIME()
	assert.ErrorIs(t, err, inbound.ErrValidation)
}
