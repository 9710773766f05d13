package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"crypto_dash/internal/domain"

	"github.com/disintegration/imaging"
)

const iconSize = 24

// IconDownloader handles downloading and caching asset icons
type IconDownloader struct {
	basePath string
	client   *http.Client
}

// NewIconDownloader creates a new IconDownloader storing icons under dir
func NewIconDownloader(dir string) (*IconDownloader, error) {
	if dir == "" {
		return nil, &domain.ConfigError{Field: "storage.icons_dir", Err: errors.New("empty path")}
	}

	// Ensure directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create icons directory: %w", err)
	}

	// Optimize HTTP Transport to prevent connection leaks
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &IconDownloader{
		basePath: dir,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// DownloadIcon downloads the icon for an asset if it doesn't exist.
// Returns the local file path on success.
// Images are resized to 24x24 pixels for consistent UI display.
func (d *IconDownloader) DownloadIcon(ctx context.Context, assetID, imageURL string) (string, error) {
	// Security: Sanitize id to prevent path traversal
	safeID := sanitizeID(assetID)
	if safeID == "" {
		return "", fmt.Errorf("invalid asset id: %s", assetID)
	}
	if !strings.HasPrefix(imageURL, "http://") && !strings.HasPrefix(imageURL, "https://") {
		return "", fmt.Errorf("invalid icon url for %s: %q", assetID, imageURL)
	}

	filePath := d.GetIconPath(safeID)

	// Check if exists
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Already exists (Cache Hit)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	// Decode the image
	srcImg, err := imaging.Decode(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Resize with high-quality Lanczos filter
	resizedImg := imaging.Resize(srcImg, iconSize, iconSize, imaging.Lanczos)

	// Save the resized image
	if err := imaging.Save(resizedImg, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}

	return filePath, nil
}

// GetIconPath returns the local path for an asset's icon
func (d *IconDownloader) GetIconPath(assetID string) string {
	return filepath.Join(d.basePath, strings.ToLower(sanitizeID(assetID))+".png")
}

// sanitizeID keeps characters valid in CoinGecko ids.
func sanitizeID(id string) string {
	res := make([]rune, 0, len(id))
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			res = append(res, r)
		}
	}
	return string(res)
}
