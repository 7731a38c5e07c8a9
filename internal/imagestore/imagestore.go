// Package imagestore persists uploaded event images and hands back durable
// URLs. The event record is only written after the image URL exists, so the
// store is the first hop of every create/update that carries an image.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"ticketer/utils"
)

// Store is the object-storage contract: upload a file, get a durable URL.
type Store interface {
	Save(ctx context.Context, r io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
}

// DiskStore keeps images on local disk under a directory that the server
// exposes as static files. maxWidth bounds stored image size; wider uploads
// are resized before saving.
type DiskStore struct {
	dir      string
	baseURL  string
	maxWidth int
}

func NewDiskStore(dir, baseURL string, maxWidth int) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &DiskStore{
		dir:      dir,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		maxWidth: maxWidth,
	}, nil
}

func (s *DiskStore) Save(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	if s.maxWidth > 0 && img.Bounds().Dx() > s.maxWidth {
		img = imaging.Resize(img, s.maxWidth, 0, imaging.Lanczos)
	}

	name, err := utils.GenerateCode(8)
	if err != nil {
		return "", err
	}
	fileName := strings.ToLower(name) + ".jpg"

	if err := imaging.Save(img, filepath.Join(s.dir, fileName), imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}

	return s.baseURL + "/" + fileName, nil
}

// Remove deletes a previously saved image. Used as best-effort compensation
// when the record write after an upload fails; unknown URLs are ignored.
func (s *DiskStore) Remove(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !strings.HasPrefix(url, s.baseURL+"/") {
		return nil
	}
	fileName := path.Base(url)
	if fileName == "." || fileName == "/" || strings.Contains(fileName, "..") {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, fileName))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
