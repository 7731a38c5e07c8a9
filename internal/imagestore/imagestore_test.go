package imagestore

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngImage(t *testing.T, width, height int) *bytes.Buffer {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestSave_StoresAndReturnsURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "/uploads/", 1600)
	require.NoError(t, err)

	url, err := store.Save(context.Background(), pngImage(t, 100, 80))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSave_ResizesWideUploads(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "/uploads", 200)
	require.NoError(t, err)

	url, err := store.Save(context.Background(), pngImage(t, 400, 100))
	require.NoError(t, err)

	saved, err := imaging.Open(filepath.Join(dir, strings.TrimPrefix(url, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, 200, saved.Bounds().Dx())
	assert.Equal(t, 50, saved.Bounds().Dy())
}

func TestSave_RejectsNonImage(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/uploads", 1600)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), strings.NewReader("not an image"))
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "/uploads", 1600)
	require.NoError(t, err)

	url, err := store.Save(context.Background(), pngImage(t, 50, 50))
	require.NoError(t, err)

	require.NoError(t, store.Remove(context.Background(), url))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemove_IgnoresForeignAndMissingURLs(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/uploads", 1600)
	require.NoError(t, err)

	assert.NoError(t, store.Remove(context.Background(), "https://elsewhere.example/a.jpg"))
	assert.NoError(t, store.Remove(context.Background(), "/uploads/deadbeef.jpg"))
	assert.NoError(t, store.Remove(context.Background(), "/uploads/../../etc/passwd"))
}
