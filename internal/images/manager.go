// Package images keeps local copies of recipe images so cached favorites
// render without network access.
package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mrlokans/tastier/internal/logger"
	"github.com/mrlokans/tastier/internal/storage"
)

const (
	fileExt   = ".jpg"
	tmpPrefix = "image_tmp_"
	userAgent = "Tastier/1.0"

	// Temp files younger than this may belong to a running download.
	staleTempAge = time.Hour
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// ErrUnsupportedReference is returned for references that cannot be fetched.
var ErrUnsupportedReference = errors.New("images: unsupported reference")

// Manager downloads and stores one image per recipe at <dir>/<id>.jpg.
type Manager struct {
	fs         afero.Fs
	dir        string
	httpClient *http.Client
	resolver   storage.URLResolver
	log        *zap.Logger
}

type Option func(*Manager)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithResolver sets the resolver used for object-store references.
func WithResolver(r storage.URLResolver) Option {
	return func(m *Manager) { m.resolver = r }
}

// NewManager creates the image directory on fs if needed.
func NewManager(fs afero.Fs, dir string, timeout time.Duration, log *zap.Logger, opts ...Option) (*Manager, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	m := &Manager{
		fs:         fs,
		dir:        dir,
		httpClient: &http.Client{Timeout: timeout},
		resolver:   storage.Resolvers{},
		log:        logger.OrNop(log).Named("images"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Dir returns the image directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns where the image for recipeID is stored, whether or not it exists.
func (m *Manager) Path(recipeID string) string {
	return filepath.Join(m.dir, fileName(recipeID))
}

// Exists reports whether an image is stored for recipeID.
func (m *Manager) Exists(recipeID string) bool {
	info, err := m.fs.Stat(m.Path(recipeID))
	return err == nil && !info.IsDir()
}

// Cache fetches ref and stores it as the image for recipeID, replacing any
// previous file. An empty ref returns an empty path and no error.
func (m *Manager) Cache(ctx context.Context, recipeID, ref string) (string, error) {
	if recipeID == "" {
		return "", errors.New("images: empty recipe id")
	}

	parsed := storage.Parse(ref)
	dest := m.Path(recipeID)

	switch parsed.Kind {
	case storage.KindEmpty:
		return "", nil
	case storage.KindLocal:
		if filepath.Clean(parsed.Path) == dest {
			if m.Exists(recipeID) {
				return dest, nil
			}
			return "", fmt.Errorf("images: %s: %w", dest, os.ErrNotExist)
		}
		src, err := m.fs.Open(parsed.Path)
		if err != nil {
			return "", fmt.Errorf("open local image: %w", err)
		}
		defer src.Close()
		if err := m.writeAtomic(src, dest); err != nil {
			return "", err
		}
	case storage.KindHTTP, storage.KindObject:
		url, err := m.resolver.ResolveURL(ctx, parsed)
		if err != nil {
			return "", err
		}
		if err := m.download(ctx, url, dest); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedReference, ref)
	}

	m.log.Debug("image cached", zap.String("recipe_id", recipeID), zap.String("path", dest))
	return dest, nil
}

// Remove deletes the image for recipeID. Missing files are not an error.
func (m *Manager) Remove(recipeID string) error {
	if err := m.fs.Remove(m.Path(recipeID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Sweep deletes image files whose recipe id is not in keep, plus temp files
// left behind by interrupted downloads. It returns the number of files
// removed.
func (m *Manager) Sweep(keep []string) (int, error) {
	wanted := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		wanted[fileName(id)] = struct{}{}
	}

	entries, err := afero.ReadDir(m.fs, m.dir)
	if err != nil {
		return 0, fmt.Errorf("read image dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if _, ok := wanted[name]; ok {
			continue
		}
		switch {
		case strings.HasPrefix(name, tmpPrefix):
			if time.Since(e.ModTime()) < staleTempAge {
				continue
			}
		case !strings.HasSuffix(name, fileExt):
			continue
		}
		if err := m.fs.Remove(filepath.Join(m.dir, name)); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (m *Manager) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	return m.writeAtomic(resp.Body, dest)
}

// writeAtomic streams r into a temp file in the image directory and renames
// it over dest, so readers never observe a partial image.
func (m *Manager) writeAtomic(r io.Reader, dest string) error {
	tmpFile, err := afero.TempFile(m.fs, m.dir, tmpPrefix)
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = m.fs.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return m.fs.Rename(tmpPath, dest)
}

// fileName maps recipeID to a file name. Ids that needed sanitizing get a
// short hash of the raw id so that "a/b" and "a_b" do not share a file.
func fileName(recipeID string) string {
	safe := unsafeChars.ReplaceAllString(recipeID, "_")
	if safe != recipeID {
		sum := sha256.Sum256([]byte(recipeID))
		safe += "-" + hex.EncodeToString(sum[:4])
	}
	return safe + fileExt
}
