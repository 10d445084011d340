package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/Nixie-Tech-LLC/vakit/internal/model"
)

var ErrInvalidAssetName = errors.New("invalid asset name")

// adhan_<type>.mp3 or adhan_<type>_<prayer>.mp3
var assetName = regexp.MustCompile(`^adhan_([a-z]+)(?:_([a-z]+))?\.mp3$`)

// ValidateAssetName accepts only names that Resolve can find.
func ValidateAssetName(name string) error {
	m := assetName.FindStringSubmatch(name)
	if m == nil {
		return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	if !model.AdhanType(m[1]).Valid() {
		return fmt.Errorf("%w: unknown adhan type %q", ErrInvalidAssetName, m[1])
	}
	if m[2] != "" {
		if p, err := model.ParsePrayerName(m[2]); err != nil || p.String() != m[2] {
			return fmt.Errorf("%w: unknown prayer %q", ErrInvalidAssetName, m[2])
		}
	}
	return nil
}

// Assets is the directory of adhan recordings.
type Assets struct {
	fs  afero.Fs
	dir string
}

func NewAssets(fs afero.Fs, dir string) *Assets {
	return &Assets{fs: fs, dir: dir}
}

func (a *Assets) Fs() afero.Fs { return a.fs }
func (a *Assets) Dir() string  { return a.dir }
func (a *Assets) Path(name string) string {
	return filepath.Join(a.dir, name)
}

func (a *Assets) Exists(name string) bool {
	ok, err := afero.Exists(a.fs, a.Path(name))
	return err == nil && ok
}

// Resolve returns the prayer-specific recording of t when one exists and
// the type's default recording otherwise. The bool reports whether the
// returned file exists.
func (a *Assets) Resolve(t model.AdhanType, prayer *model.PrayerName) (string, bool) {
	if prayer != nil {
		if name := t.PrayerFileName(*prayer); a.Exists(name) {
			log.Debug().Str("file", name).Msg("using prayer-specific adhan")
			return a.Path(name), true
		}
	}
	name := t.FileName()
	return a.Path(name), a.Exists(name)
}

// List returns the valid asset names present, sorted.
func (a *Assets) List() ([]string, error) {
	entries, err := afero.ReadDir(a.fs, a.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", a.dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && ValidateAssetName(e.Name()) == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Save writes r to the asset called name, replacing an existing file.
func (a *Assets) Save(name string, r io.Reader) (string, error) {
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}
	if err := a.fs.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create asset directory: %w", err)
	}

	path := a.Path(name)
	tmp := path + ".part"
	dst, err := a.fs.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		_ = dst.Close()
		_ = a.fs.Remove(tmp)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = a.fs.Remove(tmp)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if err := a.fs.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return path, nil
}

// SaveFile stores an uploaded recording under filename.
func (a *Assets) SaveFile(fileHeader *multipart.FileHeader, filename string) (string, error) {
	filename = strings.ToLower(filepath.Base(filename))
	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	path, err := a.Save(filename, src)
	if err != nil {
		return "", err
	}
	log.Info().Str("file", filename).Int64("size", fileHeader.Size).Msg("adhan recording uploaded")
	return path, nil
}

func getContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
