package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadRequest(t *testing.T, user, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="palm"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/images", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, user))
	return req
}

func TestUploadImage(t *testing.T) {
	env := setupTestServer(t)

	resp, body := env.do(t, uploadRequest(t, "u1", "image/png", []byte("png bytes")))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	path, _ := body["path"].(string)
	assert.Regexp(t, `^u1/\d{13}\.png$`, path)
	stored, err := os.ReadFile(filepath.Join(env.storeDir, path))
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(stored))

	signed, _ := body["signedUrl"].(string)
	assert.True(t, strings.HasPrefix(signed, "http://localhost:8080/files/palm-images/"+path+"?"))

	// the signed link is served by the local backend
	u, err := url.Parse(signed)
	require.NoError(t, err)
	fileResp, err := env.server.app.Test(httptest.NewRequest("GET", u.RequestURI(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, fileResp.StatusCode)
	content, _ := io.ReadAll(fileResp.Body)
	assert.Equal(t, "png bytes", string(content))

	tampered := strings.Replace(u.RequestURI(), "signature=", "signature=0", 1)
	fileResp, err = env.server.app.Test(httptest.NewRequest("GET", tampered, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, fileResp.StatusCode)
}

func TestUploadImageRejectsBadInput(t *testing.T) {
	env := setupTestServer(t)

	resp, _ := env.do(t, uploadRequest(t, "u1", "application/pdf", []byte("%PDF-1.4")))
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)

	env.cfg.Storage.MaxSize = 4
	resp, _ = env.do(t, uploadRequest(t, "u1", "image/jpeg", []byte("too large")))
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)

	req := httptest.NewRequest("POST", "/api/images", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, "u1"))
	resp, _ = env.do(t, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	entries, err := os.ReadDir(env.storeDir)
	require.NoError(t, err)
	assert.Empty(t, entries, fmt.Sprintf("nothing should be stored, found %d entries", len(entries)))
}
