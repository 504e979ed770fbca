package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	c := New("demo", "key", "secret", "", nil)
	got := c.sign(map[string]string{"timestamp": "1700000000", "api_key": "key", "public_id": "avatar_u1", "file": "data:..."})
	want := fmt.Sprintf("%x", sha1.Sum([]byte("public_id=avatar_u1&timestamp=1700000000secret")))
	assert.Equal(t, want, got)
}

func TestUploadAvatar(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/demo/image/upload", r.URL.Path)
		if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			form = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				form[k] = v[0]
			}
		}
		fmt.Fprint(w, `{"public_id":"tahfidz_avatars/avatar_u2","secure_url":"https://res.cloudinary.com/demo/avatar_u2.png","bytes":42}`)
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "tahfidz_avatars", nil)
	c.BaseURL = srv.URL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	url, err := c.UploadAvatar(context.Background(), "u2", "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/avatar_u2.png", url)
	assert.Equal(t, "avatar_u2", form["public_id"])
	assert.Equal(t, "true", form["overwrite"])
	assert.Equal(t, "data:image/png;base64,AAAA", form["file"])
	assert.Equal(t, "1700000000", form["timestamp"])
	want := fmt.Sprintf("%x", sha1.Sum([]byte("folder=tahfidz_avatars&overwrite=true&public_id=avatar_u2&timestamp=1700000000secret")))
	assert.Equal(t, want, form["signature"])
}

func TestUploadErrors(t *testing.T) {
	_, err := New("", "", "", "", nil).UploadAvatar(context.Background(), "u1", "data:image/png;base64,AAAA")
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()
	c := New("demo", "key", "secret", "", nil)
	c.BaseURL = srv.URL
	_, err = c.UploadBytes(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "a.png")
	assert.ErrorContains(t, err, "upload failed (401)")
}

func TestIsDataURL(t *testing.T) {
	assert.True(t, IsDataURL("data:image/jpeg;base64,/9j/"))
	assert.False(t, IsDataURL("https://example.com/a.png"))
}
