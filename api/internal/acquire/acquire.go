// Package acquire turns an uploaded file, a data: URL or a remote URL into
// validated image bytes (or, for PDFs, question text).
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	pdflib "github.com/ledongthuc/pdf"
	_ "golang.org/x/image/webp"

	"jee-solver/api/internal/util"
)

type Kind string

const (
	KindInvalidReference  Kind = "invalid_reference"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindFetch             Kind = "fetch"
	KindTooLarge          Kind = "too_large"
)

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("acquire: %s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func fail(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the Kind of an acquisition error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// Image is an acquired input. For PDFs Data is nil and Text carries the
// extracted question text.
type Image struct {
	Data []byte
	MIME string
	Text string
}

func (im Image) IsPDF() bool { return im.MIME == "application/pdf" }

var allowedExt = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".gif":  "gif",
	".webp": "webp",
	".pdf":  "pdf",
}

// AllowedExtension reports whether a file name has an accepted extension.
func AllowedExtension(name string) bool {
	_, ok := allowedExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

type Acquirer struct {
	MaxBytes int64
	client   *http.Client
}

func New(maxBytes int64, fetchTimeout time.Duration) *Acquirer {
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	return &Acquirer{
		MaxBytes: maxBytes,
		client:   &http.Client{Timeout: fetchTimeout},
	}
}

// FromUpload validates an uploaded file against its extension.
func (a *Acquirer) FromUpload(filename string, r io.Reader) (Image, error) {
	want, ok := allowedExt[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return Image{}, fail(KindUnsupportedFormat, "file type not allowed: %q", filename)
	}
	data, err := a.readLimited(r)
	if err != nil {
		return Image{}, err
	}
	return validate(data, want)
}

// FromDataURL decodes data:<mime>;base64,<payload>.
func (a *Acquirer) FromDataURL(ref string) (Image, error) {
	data, _, err := util.DecodeBase64MaybeDataURL(ref)
	if err != nil {
		return Image{}, &Error{Kind: KindInvalidReference, Err: err}
	}
	if a.MaxBytes > 0 && int64(len(data)) > a.MaxBytes {
		return Image{}, fail(KindTooLarge, "decoded image is %d bytes (limit %d)", len(data), a.MaxBytes)
	}
	return validate(data, "")
}

// Resolve accepts either a data: URL or an http(s) URL.
func (a *Acquirer) Resolve(ctx context.Context, ref string) (Image, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "data:") {
		return a.FromDataURL(ref)
	}
	return a.Fetch(ctx, ref)
}

// Fetch downloads a remote image. The client timeout bounds the whole
// exchange, ctx may cut it shorter.
func (a *Acquirer) Fetch(ctx context.Context, rawURL string) (Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Image{}, fail(KindInvalidReference, "not an http(s) URL: %q", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Image{}, &Error{Kind: KindInvalidReference, Err: err}
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return Image{}, &Error{Kind: KindFetch, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Image{}, fail(KindFetch, "GET %s: status %d", u.Redacted(), resp.StatusCode)
	}
	if a.MaxBytes > 0 && resp.ContentLength > a.MaxBytes {
		return Image{}, fail(KindTooLarge, "remote image is %d bytes (limit %d)", resp.ContentLength, a.MaxBytes)
	}
	data, err := a.readLimited(resp.Body)
	if err != nil {
		if _, ok := KindOf(err); !ok {
			err = &Error{Kind: KindFetch, Err: err}
		}
		return Image{}, err
	}
	return validate(data, "")
}

func (a *Acquirer) readLimited(r io.Reader) ([]byte, error) {
	if a.MaxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, a.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > a.MaxBytes {
		return nil, fail(KindTooLarge, "input exceeds %d bytes", a.MaxBytes)
	}
	return data, nil
}

// validate checks the bytes really are what they claim. want is the expected
// format ("png", "jpeg", "gif", "webp", "pdf") or "" for any accepted one.
func validate(data []byte, want string) (Image, error) {
	if len(data) == 0 {
		return Image{}, fail(KindInvalidReference, "empty input")
	}
	mime := util.SniffMimeHTTP(data)
	if mime == "application/pdf" {
		if want != "" && want != "pdf" {
			return Image{}, fail(KindUnsupportedFormat, "content is a PDF, expected %s", want)
		}
		text, err := pdfText(data)
		if err != nil {
			return Image{}, &Error{Kind: KindUnsupportedFormat, Err: err}
		}
		if text == "" {
			return Image{}, fail(KindUnsupportedFormat, "pdf has no extractable text")
		}
		return Image{MIME: mime, Text: text}, nil
	}
	if want == "pdf" {
		return Image{}, fail(KindUnsupportedFormat, "content is not a PDF")
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fail(KindUnsupportedFormat, "not a decodable image: %v", err)
	}
	if want != "" && format != want {
		return Image{}, fail(KindUnsupportedFormat, "content is %s, expected %s", format, want)
	}
	return Image{Data: data, MIME: "image/" + format}, nil
}

func pdfText(data []byte) (text string, err error) {
	// ledongthuc/pdf panics on malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf: malformed document: %v", r)
		}
	}()
	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return strings.Join(strings.Fields(string(b)), " "), nil
}
