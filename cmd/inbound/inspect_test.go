package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/inbucket/mandrill-inbound/pkg/extract"
	"github.com/inbucket/mandrill-inbound/pkg/inbound"
	"github.com/jhillyerd/goldiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMessageFull(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "valid_http_post.json"))
	require.NoError(t, err)
	msg, err := inbound.Parse(data)
	require.NoError(t, err)

	got, err := formatMessage(msg, true)
	require.NoError(t, err)
	goldiff.File(t, got, "testdata", "full.golden")
}

func TestFormatMessageBare(t *testing.T) {
	msg, err := inbound.Parse([]byte(`{"event": "inbound", "msg": {"subject": "bare"}}`))
	require.NoError(t, err)

	got, err := formatMessage(msg, true)
	require.NoError(t, err)
	goldiff.File(t, got, "testdata", "bare.golden")
}

func TestFormatMessageSanitize(t *testing.T) {
	msg, err := inbound.Parse([]byte(`{"event": "inbound", "msg": {
		"html": "<div>Hello<script>alert(1)</script></div>"
	}}`))
	require.NoError(t, err)

	got, err := formatMessage(msg, true)
	require.NoError(t, err)
	assert.Contains(t, string(got), "--- html ---\n<div>Hello</div>\n")

	got, err = formatMessage(msg, false)
	require.NoError(t, err)
	assert.Contains(t, string(got), "<script>alert(1)</script>")
}

func TestFormatMIME(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "valid_http_post.json"))
	require.NoError(t, err)
	msg, err := inbound.Parse(data)
	require.NoError(t, err)
	env, err := msg.MIME()
	require.NoError(t, err)

	got := string(formatMIME(env))
	assert.Contains(t, got, "--- mime ---\nmultipart/mixed\n  multipart/alternative\n")
	assert.Contains(t, got, "    text/plain\n    text/html\n")
	assert.Contains(t, got, `  image/jpeg "equal.jpg" [attachment]`)
	assert.Contains(t, got, "Attachments: 1, Inlines: 0")
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "saved   a.txt -> out/a.txt",
		formatResult(extract.Result{Name: "a.txt", Path: "out/a.txt", Saved: true}))
	assert.Equal(t, "skipped b.exe: no executables",
		formatResult(extract.Result{Name: "b.exe", Reason: "no executables"}))
}

func TestSplitTypes(t *testing.T) {
	assert.Equal(t, []string{"image/jpeg", "application/pdf"},
		splitTypes(" image/jpeg, ,application/pdf "))
	assert.Nil(t, splitTypes(""))
}
