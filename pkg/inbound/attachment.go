package inbound

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"sync"

	"github.com/inbucket/mandrill-inbound/pkg/stringutil"
	"github.com/rs/zerolog/log"
)

// Attachment wraps a single attachment record and decodes its content on demand. The content
// is decoded at most once per wrapper.
type Attachment struct {
	rec     AttachmentRecord
	decoded *decodedContent
}

// decodedContent is shared by an attachment and its renamed copies.
type decodedContent struct {
	once    sync.Once
	content []byte
	err     error
}

func newAttachment(rec AttachmentRecord) *Attachment {
	return &Attachment{rec: rec, decoded: &decodedContent{}}
}

// Name is the attachment file name.
func (a *Attachment) Name() string {
	return a.rec.Name
}

// ContentType is the MIME type of the attachment.
func (a *Attachment) ContentType() string {
	return a.rec.Type
}

// Renamed returns a copy of the attachment that will be saved under name.
func (a *Attachment) Renamed(name string) *Attachment {
	rec := a.rec
	rec.Name = name
	return &Attachment{rec: rec, decoded: a.decoded}
}

// Read returns a copy of the decoded attachment content.
func (a *Attachment) Read() ([]byte, error) {
	content, err := a.content()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(content), nil
}

// Size returns the decoded length of the content, or -1 if it cannot be decoded.
func (a *Attachment) Size() int64 {
	content, err := a.content()
	if err != nil {
		return -1
	}
	return int64(len(content))
}

// content decodes the record on first use; callers must not modify the result.
func (a *Attachment) content() ([]byte, error) {
	d := a.decoded
	d.once.Do(func() {
		if a.rec.Base64 != nil && !*a.rec.Base64 {
			d.content = []byte(a.rec.Content)
			return
		}
		d.content, d.err = base64.StdEncoding.DecodeString(a.rec.Content)
		if d.err != nil {
			d.err = fmt.Errorf("%w: attachment %q is not valid base64: %w", ErrDecode, a.rec.Name, d.err)
		}
	})
	return d.content, d.err
}

// Download writes the decoded content to directory+Name(). The directory is not joined with a
// separator, callers must supply a trailing slash. If allowedTypes is non-empty, the content
// type must be one of them.
func (a *Attachment) Download(directory string, allowedTypes ...string) error {
	if directory == "" {
		return fmt.Errorf("%w: you must provide the download directory", ErrConfiguration)
	}
	if len(allowedTypes) > 0 && !stringutil.SliceContains(allowedTypes, a.rec.Type) {
		return fmt.Errorf("%w: the file type %q is not allowed", ErrPolicy, a.rec.Type)
	}
	content, err := a.content()
	if err != nil {
		return err
	}
	path := directory + a.rec.Name
	if err := writeFile(path, content); err != nil {
		return fmt.Errorf("%w: cannot save %q, check path and permissions: %w", ErrIO, path, err)
	}
	log.Debug().Str("module", "inbound").Str("path", path).Int("size", len(content)).
		Msg("Saved attachment")
	return nil
}

// writeFile creates path and writes content, the file is closed on every return.
func writeFile(path string, content []byte) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = f.Write(content)
	return err
}
