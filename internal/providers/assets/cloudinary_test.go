package assets

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudinaryUploadBuildsSignedDataURI(t *testing.T) {
	var gotPath string
	var gotForm map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"secure_url":"https://res.cloudinary.com/demo/image/upload/v1/propenhance/originals/abc.jpg"}`))
	}))
	defer srv.Close()

	client, err := NewCloudinary(CloudinaryOptions{
		CloudName: "demo",
		APIKey:    "key",
		APISecret: "secret",
		BaseURL:   srv.URL,
	})
	require.NoError(t, err)

	payload := []byte{0xff, 0xd8, 0xff, 0xe0}
	url, err := client.Upload(context.Background(), payload, "image/jpeg", FolderOriginals)
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/v1/propenhance/originals/abc.jpg", url)

	assert.Equal(t, "/v1_1/demo/image/upload", gotPath)
	assert.Equal(t, FolderOriginals, gotForm["folder"])
	assert.Equal(t, "key", gotForm["api_key"])
	assert.NotEmpty(t, gotForm["timestamp"])
	assert.Len(t, gotForm["signature"], 40)

	wantPrefix := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(payload)
	assert.Equal(t, wantPrefix, gotForm["file"])
}

func TestCloudinaryUploadSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid image file"}}`))
	}))
	defer srv.Close()

	client, err := NewCloudinary(CloudinaryOptions{
		CloudName: "demo",
		APIKey:    "key",
		APISecret: "secret",
		BaseURL:   srv.URL,
	})
	require.NoError(t, err)

	_, err = client.Upload(context.Background(), []byte{0x01}, "image/jpeg", FolderOriginals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid image file")
}

func TestCloudinaryUploadRejectsEmptyPayload(t *testing.T) {
	client, err := NewCloudinary(CloudinaryOptions{CloudName: "demo", APIKey: "k", APISecret: "s"})
	require.NoError(t, err)

	_, err = client.Upload(context.Background(), nil, "image/jpeg", FolderOriginals)
	assert.Error(t, err)
}

func TestFileStoreUploadWritesUnderFolder(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), []byte("png-bytes"), "image/png", FolderResults)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/static/"+FolderResults+"/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	key := strings.TrimPrefix(url, "http://localhost:8080/static/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	_, err := sanitizeKey("../etc/passwd")
	assert.Error(t, err)

	_, err = sanitizeKey("a/../../b")
	assert.Error(t, err)

	key, err := sanitizeKey("/propenhance/originals/x.jpg")
	require.NoError(t, err)
	assert.Equal(t, "propenhance/originals/x.jpg", key)
}
