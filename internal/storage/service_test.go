package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceUploadVideoAndImage(t *testing.T) {
	svc := NewService(newTestLocal(t))
	ctx := context.Background()

	video, err := svc.UploadVideo(ctx, strings.NewReader("mp4"), 3, "lesson.mp4", "U1")
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", video.ContentType)
	assert.True(t, strings.HasSuffix(video.ObjectKey, "_U1.mp4"), video.ObjectKey)

	image, err := svc.UploadImage(ctx, strings.NewReader("jpg"), 3, "shot.jpg", "U1")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", image.ContentType)
	assert.NotEqual(t, video.URL, image.URL)
}

func TestServiceUniqueKeysWithinSecond(t *testing.T) {
	svc := NewService(newTestLocal(t))
	ctx := context.Background()

	a, err := svc.UploadVideo(ctx, strings.NewReader("a"), 1, "a.mp4", "U1")
	require.NoError(t, err)
	b, err := svc.UploadVideo(ctx, strings.NewReader("b"), 1, "a.mp4", "U1")
	require.NoError(t, err)
	assert.NotEqual(t, a.ObjectKey, b.ObjectKey)
}

func TestServiceExactUploadSupersedes(t *testing.T) {
	local := newTestLocal(t)
	svc := NewService(local)
	ctx := context.Background()

	_, err := svc.UploadImageExact(ctx, strings.NewReader("one"), 3, "frame.jpg")
	require.NoError(t, err)
	obj, err := svc.UploadImageExact(ctx, strings.NewReader("two"), 3, "frame.jpg")
	require.NoError(t, err)
	assert.Equal(t, "frame.jpg", obj.ObjectKey)
	assert.Equal(t, "/uploads/frame.jpg", obj.URL)

	f, err := local.Open("frame.jpg")
	require.NoError(t, err)
	defer f.Close()
	buf := make([]byte, 8)
	n, _ := f.Read(buf)
	assert.Equal(t, "two", string(buf[:n]))
}

func TestServiceValidation(t *testing.T) {
	svc := NewService(newTestLocal(t))
	ctx := context.Background()

	_, err := svc.UploadVideo(ctx, strings.NewReader("x"), 1, "a.mp4", "")
	assert.True(t, errors.Is(err, ErrInvalidIdentifier))

	_, err = svc.UploadImageExact(ctx, strings.NewReader("x"), 1, "../x.jpg")
	assert.True(t, errors.Is(err, ErrInvalidKey))
}

func TestServiceDeleteNeverFails(t *testing.T) {
	svc := NewService(newTestLocal(t))
	ctx := context.Background()

	obj, err := svc.UploadImage(ctx, strings.NewReader("x"), 1, "a.jpg", "U1")
	require.NoError(t, err)

	assert.True(t, svc.Delete(ctx, obj.URL))
	assert.False(t, svc.Delete(ctx, obj.URL))
	assert.False(t, svc.Delete(ctx, "https://elsewhere.test/uploads/a.jpg"))

	exists, err := svc.Exists(ctx, obj.ObjectKey)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestServiceKeyFromURL(t *testing.T) {
	svc := NewService(newTestLocal(t))

	key, err := svc.KeyFromURL("frame.jpg")
	require.NoError(t, err)
	assert.Equal(t, "frame.jpg", key)

	key, err = svc.KeyFromURL(svc.URLFor("frame.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "frame.jpg", key)
}

func TestValidateDeclaredType(t *testing.T) {
	tests := []struct {
		kind     MediaKind
		declared string
		wantErr  bool
	}{
		{Video, "", false},
		{Video, "video/mp4", false},
		{Video, "video/quicktime; codecs=avc1", false},
		{Video, "image/png", true},
		{Image, "image/png", false},
		{Image, "application/octet-stream", true},
		{Image, "not a type", true},
	}
	for _, tt := range tests {
		err := ValidateDeclaredType(tt.kind, tt.declared)
		if tt.wantErr {
			assert.True(t, errors.Is(err, ErrInvalidMediaType), "%s %q", tt.kind, tt.declared)
		} else {
			assert.NoError(t, err, "%s %q", tt.kind, tt.declared)
		}
	}
}

func TestParseMediaKind(t *testing.T) {
	k, err := ParseMediaKind(" Video ")
	require.NoError(t, err)
	assert.Equal(t, Video, k)

	_, err = ParseMediaKind("audio")
	assert.Error(t, err)
}

func TestServiceVideoKeysNeverUseImageExtensions(t *testing.T) {
	svc := NewService(newTestLocal(t))
	ctx := context.Background()

	tests := []struct {
		filename string
		suffix   string
	}{
		{"clip.mp4", ".mp4"},
		{"clip.mov", ".mov"},
		{"clip.jpg", ".mp4"},
		{"clip.JPEG", ".mp4"},
		{"clip.png", ".mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			obj, err := svc.UploadVideo(ctx, strings.NewReader("v"), 1, tt.filename, "U1")
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(obj.ObjectKey, tt.suffix), obj.ObjectKey)
			assert.Equal(t, "video/mp4", obj.ContentType)
		})
	}
}
