package storage

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, name, contentType string, body []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["image"][0]
}

func TestLocalUploadAndDelete(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, InitLocalStorage(root))
	assert.Equal(t, "local", Mode())

	fh := fileHeader(t, "photo.PNG", "image/png", []byte("png-bytes"))
	require.NoError(t, ValidateImage(fh))

	url, err := Upload(fh, GalleryPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/gallery/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	path := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(url, "/uploads/")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, Delete(url))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteRejectsTraversal(t *testing.T) {
	require.NoError(t, InitLocalStorage(t.TempDir()))
	assert.Error(t, Delete("/uploads/../../etc/passwd"))
	assert.Error(t, Delete("/etc/passwd"))
}

func TestValidateImage(t *testing.T) {
	assert.Error(t, ValidateImage(fileHeader(t, "doc.pdf", "application/pdf", []byte("x"))))
}

func TestKeyFromURL(t *testing.T) {
	s3Bucket, s3Region, cloudFrontURL = "bucket", "ap-southeast-1", "https://cdn.example.org"
	defer func() { cloudFrontURL = "" }()

	key, err := keyFromURL("https://cdn.example.org/gallery/2026/01/a.png")
	require.NoError(t, err)
	assert.Equal(t, "gallery/2026/01/a.png", key)

	key, err = keyFromURL("https://bucket.s3.ap-southeast-1.amazonaws.com/logos/2026/02/b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "logos/2026/02/b.jpg", key)

	_, err = keyFromURL("https://bucket.s3.amazonaws.com/")
	assert.Error(t, err)
}
