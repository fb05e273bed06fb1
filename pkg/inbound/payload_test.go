package inbound

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordsKeepKeyOrder(t *testing.T) {
	data := []byte(`{"b.txt": {"type": "text/plain", "content": ""},
		"a.txt": {"name": "a.txt", "type": "text/plain", "content": ""}}`)

	var recs Records
	require.NoError(t, json.Unmarshal(data, &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "b.txt", recs[0].Name)
	assert.Equal(t, "a.txt", recs[1].Name)

	out, err := json.Marshal(recs)
	require.NoError(t, err)
	assert.Regexp(t, `^\{"b\.txt":.*"a\.txt":`, string(out))
}

func TestRecordsAcceptArray(t *testing.T) {
	var recs Records
	require.NoError(t, json.Unmarshal(
		[]byte(`[{"name": "x.txt", "type": "text/plain", "content": "eA=="}]`), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "x.txt", recs[0].Name)
}

func TestRecordsRejectScalar(t *testing.T) {
	var recs Records
	assert.Error(t, json.Unmarshal([]byte(`"equal.jpg"`), &recs))
}

func TestHeaderMarshalShapes(t *testing.T) {
	h := Header{"Subject": {"Testing"}, "Received": {"one", "two"}}

	out, err := json.Marshal(h)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Subject": "Testing", "Received": ["one", "two"]}`, string(out))
}

func TestAddressPair(t *testing.T) {
	var a Address
	require.NoError(t, json.Unmarshal([]byte(`["bob@example.com", "Bob Johnson"]`), &a))
	assert.Equal(t, Address{Name: "Bob Johnson", Email: "bob@example.com"}, a)
	assert.Equal(t, `"Bob Johnson" <bob@example.com>`, a.String())

	assert.Error(t, json.Unmarshal([]byte(`"bob@example.com"`), &a))
}

func TestSPFResultValid(t *testing.T) {
	for _, r := range []SPFResult{SPFPass, SPFNeutral, SPFFail, SPFSoftFail, SPFTempError,
		SPFPermError, SPFNone} {
		assert.True(t, r.Valid(), string(r))
	}
	assert.False(t, SPFResult("maybe").Valid())
	assert.False(t, SPFResult("").Valid())
}

func TestAttachmentDecodesOnce(t *testing.T) {
	att := newAttachment(AttachmentRecord{Name: "hi.txt", Type: "text/plain", Content: "aGk="})
	require.Equal(t, int64(2), att.Size())

	// Later reads come from the first decode, not the record.
	att.rec.Content = "not base64!"
	got, err := att.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)

	renamed := att.Renamed("renamed.txt")
	assert.Same(t, att.decoded, renamed.decoded)
	got, err = renamed.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), got)

	dir := t.TempDir() + "/"
	require.NoError(t, renamed.Download(dir))
	assert.FileExists(t, dir+"renamed.txt")
}

func TestAttachmentReadReturnsCopy(t *testing.T) {
	att := newAttachment(AttachmentRecord{Name: "hi.txt", Content: "aGk="})

	got, err := att.Read()
	require.NoError(t, err)
	got[0] = 'X'

	again, err := att.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), again)
}

func TestAttachmentDecodeErrorIsKept(t *testing.T) {
	att := newAttachment(AttachmentRecord{Name: "bad.bin", Content: "***"})

	assert.Equal(t, int64(-1), att.Size())
	_, err := att.Read()
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, att.Download(t.TempDir()+"/"), ErrDecode)
}
