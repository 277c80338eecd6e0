package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"

	_ "image/jpeg"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

func isImage(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, want := range imageExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// Load discovers assets in fsys laid out as:
//
//	grid/<category>/<image>
//	bg/<image>
//	audio/<digit>.wav
//
// Files that can't be decoded are logged and skipped. Missing directories
// leave the matching pool empty.
func Load(ctx context.Context, fsys fs.FS) (*Libraries, error) {
	result := Empty()

	var lock sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	gridDirs, err := fs.Glob(fsys, "grid/*")
	if err != nil {
		return nil, fmt.Errorf("can't list grid categories: %w", err)
	}

	for _, dir := range gridDirs {
		if st, err := fs.Stat(fsys, dir); err == nil && st.IsDir() {
			result.Grid[path.Base(dir)] = nil
		}
	}

	gridFiles, err := fs.Glob(fsys, "grid/*/*")
	if err != nil {
		return nil, fmt.Errorf("can't list grid images: %w", err)
	}

	for _, fname := range gridFiles {
		if !isImage(fname) {
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			img, err := readImage(fsys, fname, TileSize, TileSize)
			if err != nil {
				slog.Warn("skipping grid image", "file", fname, "err", err)
				return nil
			}

			category := path.Base(path.Dir(fname))
			tile, err := NewTile(category, path.Base(fname), img)
			if err != nil {
				slog.Warn("skipping grid image", "file", fname, "err", err)
				return nil
			}

			lock.Lock()
			result.Grid[category] = append(result.Grid[category], tile)
			lock.Unlock()
			return nil
		})
	}

	bgFiles, err := fs.Glob(fsys, "bg/*")
	if err != nil {
		return nil, fmt.Errorf("can't list slider backgrounds: %w", err)
	}
	sort.Strings(bgFiles)
	backgrounds := make([]image.Image, len(bgFiles))

	for i, fname := range bgFiles {
		if !isImage(fname) {
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			img, err := readImage(fsys, fname, BackgroundWidth, BackgroundHeight)
			if err != nil {
				slog.Warn("skipping slider background", "file", fname, "err", err)
				return nil
			}

			backgrounds[i] = img
			return nil
		})
	}

	audioFiles, err := fs.Glob(fsys, "audio/*.wav")
	if err != nil {
		return nil, fmt.Errorf("can't list audio clips: %w", err)
	}

	for _, fname := range audioFiles {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			digit, err := digitFromName(fname)
			if err != nil {
				slog.Warn("skipping audio clip", "file", fname, "err", err)
				return nil
			}

			data, err := fs.ReadFile(fsys, fname)
			if err != nil {
				slog.Warn("skipping audio clip", "file", fname, "err", err)
				return nil
			}

			clip, err := DecodeClip(bytes.NewReader(data))
			if err != nil {
				slog.Warn("skipping audio clip", "file", fname, "err", err)
				return nil
			}

			lock.Lock()
			result.Digits[digit] = clip
			lock.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for category, tiles := range result.Grid {
		if len(tiles) == 0 {
			slog.Warn("grid category has no usable images", "category", category)
		}
		sort.Slice(tiles, func(i, j int) bool { return tiles[i].Name < tiles[j].Name })
		result.Grid[category] = tiles
	}

	for _, img := range backgrounds {
		if img != nil {
			result.Backgrounds = append(result.Backgrounds, img)
		}
	}

	return result, nil
}

func digitFromName(fname string) (rune, error) {
	base := strings.TrimSuffix(path.Base(fname), path.Ext(fname))
	if len(base) != 1 || base[0] < '0' || base[0] > '9' {
		return 0, fmt.Errorf("%w: %q", ErrNotADigit, base)
	}
	return rune(base[0]), nil
}

func readImage(fsys fs.FS, fname string, w, h int) (image.Image, error) {
	fin, err := fsys.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fin.Close()

	src, _, err := image.Decode(fin)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCantDecodeTile, err)
	}

	return ResizeCover(src, w, h), nil
}

// ResizeCover scales src so it covers a w by h canvas and crops the overflow
// evenly from both sides.
func ResizeCover(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	sb := src.Bounds()
	sx := float64(w) / float64(sb.Dx())
	sy := float64(h) / float64(sb.Dy())
	s := max(sx, sy)

	nw := int(float64(sb.Dx())*s + 0.5)
	nh := int(float64(sb.Dy())*s + 0.5)
	x := (w - nw) / 2
	y := (h - nh) / 2

	draw.CatmullRom.Scale(dst, image.Rect(x, y, x+nw, y+nh), src, sb, draw.Src, nil)
	return dst
}
