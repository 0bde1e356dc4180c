package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethpandaops/bootstrapoor/pkg/auth"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type formPart struct {
	field    string
	filename string
	content  string
}

func multipartRequest(t *testing.T, parts ...formPart) *http.Request {
	t.Helper()

	var body bytes.Buffer

	w := multipart.NewWriter(&body)

	for _, p := range parts {
		if p.filename == "" {
			require.NoError(t, w.WriteField(p.field, p.content))

			continue
		}

		fw, err := w.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)

		_, err = fw.Write([]byte(p.content))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept-Language", "en")

	return req
}

func uploadVars(extra map[string]string) map[string]string {
	vars := map[string]string{"THROTTLE_LIMIT": "100"}
	for k, v := range extra {
		vars[k] = v
	}

	return vars
}

func TestUploadReportsParts(t *testing.T) {
	s := newTestServer(t, uploadVars(nil), Options{})

	rec := s.do(t, multipartRequest(t,
		formPart{field: "title", content: "holiday"},
		formPart{field: "a", filename: "a.txt", content: "hello"},
		formPart{field: "b", filename: "b.txt", content: "world!"},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeBody[UploadResult](t, rec)
	assert.Equal(t, map[string]string{"title": "holiday"}, result.Fields)
	require.Len(t, result.Files, 2)

	sum := sha256.Sum256([]byte("hello"))
	assert.Equal(t, "a.txt", result.Files[0].Filename)
	assert.Equal(t, "a", result.Files[0].Field)
	assert.Equal(t, int64(5), result.Files[0].Size)
	assert.Equal(t, hex.EncodeToString(sum[:]), result.Files[0].SHA256)
	assert.Equal(t, int64(6), result.Files[1].Size)

	assert.InDelta(t, 2, testutil.ToFloat64(s.metrics.UploadFilesTotal), 0)
	assert.InDelta(t, 11, testutil.ToFloat64(s.metrics.UploadBytesTotal), 0)
}

func TestUploadLimits(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		parts   []formPart
		message string
	}{
		{
			name: "too many files",
			vars: map[string]string{"UPLOAD_MAX_FILES": "1"},
			parts: []formPart{
				{field: "a", filename: "a.txt", content: "1"},
				{field: "b", filename: "b.txt", content: "2"},
			},
			message: "Too many files, at most 1 allowed.",
		},
		{
			name: "too many fields",
			vars: map[string]string{"UPLOAD_MAX_FIELDS": "1"},
			parts: []formPart{
				{field: "a", content: "1"},
				{field: "b", content: "2"},
			},
			message: "Too many fields, at most 1 allowed.",
		},
		{
			name: "file too large",
			vars: map[string]string{"UPLOAD_MAX_FILE_SIZE": "4"},
			parts: []formPart{
				{field: "a", filename: "big.bin", content: "12345"},
			},
			message: `File "big.bin" exceeds the maximum size of 4 bytes.`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, uploadVars(tt.vars), Options{})

			rec := s.do(t, multipartRequest(t, tt.parts...))
			require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

			body := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, http.StatusRequestEntityTooLarge, body.StatusCode)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestUploadAtLimitIsAccepted(t *testing.T) {
	s := newTestServer(t, uploadVars(map[string]string{"UPLOAD_MAX_FILE_SIZE": "5", "UPLOAD_MAX_FILES": "1"}), Options{})

	rec := s.do(t, multipartRequest(t, formPart{field: "a", filename: "a.txt", content: "12345"}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadRequiresMultipart(t *testing.T) {
	s := newTestServer(t, uploadVars(nil), Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "en")

	rec := s.do(t, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "The request is not a valid multipart form.", decodeBody[ErrorResponse](t, rec).Message)
}

func TestUploadRequiresBearerTokenWhenConfigured(t *testing.T) {
	hash, err := auth.HashToken("s3cret", bcrypt.MinCost)
	require.NoError(t, err)

	s := newTestServer(t, uploadVars(map[string]string{"HTTP_AUTH_TOKEN_HASH": hash}), Options{})

	rec := s.do(t, multipartRequest(t, formPart{field: "title", content: "x"}))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "A valid bearer token is required.", decodeBody[ErrorResponse](t, rec).Message)

	req := multipartRequest(t, formPart{field: "title", content: "x"})
	req.Header.Set("Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, s.do(t, req).Code)

	assert.Equal(t, http.StatusOK, s.get(t, "/api/health").Code, "other routes stay open")
}
