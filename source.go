package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageSource supplies decoded rasters by path.
type ImageSource interface {
	Open(ctx context.Context, path string) (image.Image, error)
}

var errPathEscapes = errors.New("path escapes source root")

// cleanSourcePath normalises a slash-separated image path and rejects
// absolute paths and paths that climb above the source root.
func cleanSourcePath(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if path.IsAbs(clean) || filepath.VolumeName(clean) != "" || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%s: %w", name, errPathEscapes)
	}
	return clean, nil
}

// DirSource reads images below a local directory.
type DirSource struct {
	Root string
}

func (d DirSource) Open(ctx context.Context, name string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanSourcePath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(d.Root, filepath.FromSlash(clean)))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return img, nil
}

// HTTPSource fetches images relative to a base URL.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func (h HTTPSource) Open(ctx context.Context, name string) (image.Image, error) {
	clean, err := cleanSourcePath(name)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(h.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	base.Path = path.Join(base.Path, clean)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, err
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: %s", base.String(), resp.Status)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return img, nil
}
