package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alnah/go-ogcard"
	"github.com/alnah/go-ogcard/internal/uploads"
)

// mockGenerator records the request it receives and returns a canned
// result, standing in for the render pool.
type mockGenerator struct {
	lastReq ogcard.Request
	out     *ogcard.Output
	err     error
}

func (m *mockGenerator) Generate(_ context.Context, req ogcard.Request) (*ogcard.Output, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.out, nil
}

func jpegOutput() *ogcard.Output {
	return &ogcard.Output{
		Bytes:    []byte{0xff, 0xd8, 0xff, 0xe0},
		MimeType: "image/jpeg",
		Width:    ogcard.CardWidth,
		Height:   ogcard.CardHeight,
	}
}

func newTestServer(t *testing.T, gen cardGenerator) *server {
	t.Helper()
	return &server{
		log:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		pool:           gen,
		imageMode:      ImageModeInline,
		maxUploadBytes: defaultMaxUploadBytes,
		allowedTypes:   allowedTypeSet(nil),
	}
}

// multipartBody builds a multipart form from fields plus an optional
// file part named "image".
func multipartBody(t *testing.T, fields map[string]string, imageData []byte, imageType string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if imageData != nil {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="image"; filename="pic"`)
		if imageType != "" {
			hdr.Set("Content-Type", imageType)
		}
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(imageData)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func postGenerate(t *testing.T, h http.Handler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/generate-og-image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHandleGenerate_Success(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{out: jpegOutput()}
	h := newTestServer(t, gen).routes([]string{"*"})

	body, ct := multipartBody(t, map[string]string{
		"title":   "Hello",
		"content": "World",
	}, nil, "")
	rec := postGenerate(t, h, body, ct)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, jpegOutput().Bytes, rec.Body.Bytes())

	require.NotNil(t, gen.lastReq.Title)
	assert.Equal(t, "Hello", *gen.lastReq.Title)
	require.NotNil(t, gen.lastReq.Content)
	assert.Equal(t, "World", *gen.lastReq.Content)
	assert.Nil(t, gen.lastReq.Image)
}

func TestHandleGenerate_FieldPresence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		fields      map[string]string
		wantTitle   *string
		wantContent *string
	}{
		{
			name:        "absent fields stay nil",
			fields:      map[string]string{},
			wantTitle:   nil,
			wantContent: nil,
		},
		{
			name:        "empty submitted fields stay empty strings",
			fields:      map[string]string{"title": "", "content": ""},
			wantTitle:   ogcard.String(""),
			wantContent: ogcard.String(""),
		},
		{
			name:        "title only",
			fields:      map[string]string{"title": "x"},
			wantTitle:   ogcard.String("x"),
			wantContent: nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := &mockGenerator{out: jpegOutput()}
			h := newTestServer(t, gen).routes([]string{"*"})

			body, ct := multipartBody(t, tt.fields, nil, "")
			postGenerate(t, h, body, ct)

			assert.Equal(t, tt.wantTitle, gen.lastReq.Title)
			assert.Equal(t, tt.wantContent, gen.lastReq.Content)
		})
	}
}

func TestHandleGenerate_InlineImage(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{out: jpegOutput()}
	h := newTestServer(t, gen).routes([]string{"*"})

	data := []byte{0x89, 'P', 'N', 'G'}
	body, ct := multipartBody(t, map[string]string{
		"title":   "t",
		"content": "c",
	}, data, "image/png")
	rec := postGenerate(t, h, body, ct)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gen.lastReq.Image)
	assert.Equal(t, ogcard.ImageRaw, gen.lastReq.Image.Kind)
	assert.Equal(t, data, gen.lastReq.Image.Data)
	assert.Equal(t, "image/png", gen.lastReq.Image.ContentType)
}

func TestHandleGenerate_DiskImage(t *testing.T) {
	t.Parallel()

	store, err := uploads.NewStore(t.TempDir())
	require.NoError(t, err)

	gen := &mockGenerator{out: jpegOutput()}
	srv := newTestServer(t, gen)
	srv.imageMode = ImageModeDisk
	srv.store = store
	h := srv.routes([]string{"*"})

	data := []byte{0x89, 'P', 'N', 'G'}
	body, ct := multipartBody(t, map[string]string{
		"title":   "t",
		"content": "c",
	}, data, "image/png")
	rec := postGenerate(t, h, body, ct)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gen.lastReq.Image)
	assert.Equal(t, ogcard.ImageStored, gen.lastReq.Image.Kind)
	assert.True(t, strings.HasSuffix(gen.lastReq.Image.UploadRef, ".png"))

	// The stored file is servable under /uploads/{name}.
	req := httptest.NewRequest(http.MethodGet, "/uploads/"+gen.lastReq.Image.UploadRef, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, data, rec.Body.Bytes())
}

func TestHandleGenerate_DiskModeRejectsDisallowedTypes(t *testing.T) {
	t.Parallel()

	store, err := uploads.NewStore(t.TempDir())
	require.NoError(t, err)

	gen := &mockGenerator{out: jpegOutput()}
	srv := newTestServer(t, gen)
	srv.imageMode = ImageModeDisk
	srv.store = store
	h := srv.routes([]string{"*"})

	for _, contentType := range []string{
		"application/octet-stream",
		"text/html",
		"image/svg+xml",
	} {
		body, ct := multipartBody(t, map[string]string{
			"title":   "t",
			"content": "c",
		}, []byte{0xde, 0xad}, contentType)
		rec := postGenerate(t, h, body, ct)

		require.Equal(t, http.StatusBadRequest, rec.Code, "content type %q", contentType)
		resp := decodeError(t, rec)
		assert.Equal(t, "asset", resp.Kind, "content type %q", contentType)
	}

	// Rejected uploads must never be persisted.
	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
	// And the render pool is never invoked for them.
	assert.Nil(t, gen.lastReq.Title)
}

func TestHandleGenerate_DiskModeHonorsCustomAllowlist(t *testing.T) {
	t.Parallel()

	store, err := uploads.NewStore(t.TempDir())
	require.NoError(t, err)

	gen := &mockGenerator{out: jpegOutput()}
	srv := newTestServer(t, gen)
	srv.imageMode = ImageModeDisk
	srv.store = store
	srv.allowedTypes = allowedTypeSet([]string{"image/png"})
	h := srv.routes([]string{"*"})

	// JPEG is normally allowed, but not under this configuration.
	body, ct := multipartBody(t, map[string]string{
		"title":   "t",
		"content": "c",
	}, []byte{0xff, 0xd8}, "image/jpeg")
	rec := postGenerate(t, h, body, ct)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "asset", decodeError(t, rec).Kind)
}

func TestHandleUpload_UnknownName(t *testing.T) {
	t.Parallel()

	store, err := uploads.NewStore(t.TempDir())
	require.NoError(t, err)

	srv := newTestServer(t, &mockGenerator{out: jpegOutput()})
	srv.imageMode = ImageModeDisk
	srv.store = store
	h := srv.routes([]string{"*"})

	for _, name := range []string{"nope.png", "deadbeef.png", "plain"} {
		req := httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, "name %q", name)
	}
}

func TestHandleGenerate_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{
			name:       "missing title",
			err:        ogcard.ErrMissingTitle,
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation",
		},
		{
			name:       "disallowed image type",
			err:        ogcard.ErrDisallowedImageType,
			wantStatus: http.StatusBadRequest,
			wantKind:   "asset",
		},
		{
			name:       "pool busy",
			err:        ogcard.ErrPoolBusy,
			wantStatus: http.StatusTooManyRequests,
			wantKind:   "backpressure",
		},
		{
			name:       "engine launch failure",
			err:        ogcard.ErrEngineLaunch,
			wantStatus: http.StatusInternalServerError,
			wantKind:   "engine_launch",
		},
		{
			name:       "screenshot failure",
			err:        ogcard.ErrScreenshot,
			wantStatus: http.StatusInternalServerError,
			wantKind:   "engine_render",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := &mockGenerator{err: tt.err}
			h := newTestServer(t, gen).routes([]string{"*"})

			body, ct := multipartBody(t, map[string]string{
				"title":   "t",
				"content": "c",
			}, nil, "")
			rec := postGenerate(t, h, body, ct)

			require.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantKind, resp.Kind)
		})
	}
}

func TestHandleGenerate_EngineErrorsDoNotLeakDetails(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{err: ogcard.ErrScreenshot}
	h := newTestServer(t, gen).routes([]string{"*"})

	body, ct := multipartBody(t, map[string]string{
		"title":   "t",
		"content": "c",
	}, nil, "")
	rec := postGenerate(t, h, body, ct)

	resp := decodeError(t, rec)
	assert.Equal(t, "image generation failed", resp.Message)
	assert.NotContains(t, resp.Message, "screenshot")
}

func TestHandleGenerate_BusySetsRetryAfter(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{err: ogcard.ErrPoolBusy}
	h := newTestServer(t, gen).routes([]string{"*"})

	body, ct := multipartBody(t, map[string]string{
		"title":   "t",
		"content": "c",
	}, nil, "")
	rec := postGenerate(t, h, body, ct)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHandleGenerate_BodyTooLarge(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{out: jpegOutput()}
	srv := newTestServer(t, gen)
	srv.maxUploadBytes = 128
	h := srv.routes([]string{"*"})

	body, ct := multipartBody(t, map[string]string{
		"title":   "t",
		"content": "c",
	}, bytes.Repeat([]byte{0xab}, 1024), "image/png")
	rec := postGenerate(t, h, body, ct)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "payload_too_large", resp.Kind)
}

func TestHandleGenerate_NotMultipart(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{out: jpegOutput()}
	h := newTestServer(t, gen).routes([]string{"*"})

	req := httptest.NewRequest(http.MethodPost, "/api/generate-og-image",
		strings.NewReader(`{"title":"t"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "validation", resp.Kind)
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &mockGenerator{out: jpegOutput()}).routes([]string{"*"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
