package document

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"os"
	"regexp"
	"strconv"

	"ereader/internal/sentinel"
)

var (
	pageObject = regexp.MustCompile(`/Type\s*/Page([^s]|$)`)
	mediaBox   = regexp.MustCompile(`/MediaBox\s*\[\s*([-\d.]+)\s+([-\d.]+)\s+([-\d.]+)\s+([-\d.]+)\s*\]`)
)

// Letter size in points, used when the document declares no MediaBox.
const (
	defaultPageWidth  = 612
	defaultPageHeight = 792
)

// FileRenderer reads page geometry from an uncompressed PDF object table
// and renders blank pages of the right size. It serves front ends without a
// rasterizer, such as the terminal, that only need pagination.
type FileRenderer struct {
	f      *os.File
	pages  int
	width  float64
	height float64
}

// OpenFile opens path and scans its page objects.
func OpenFile(path string) (*FileRenderer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	if err := checkMagic(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	raw, err := io.ReadAll(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read document: %w", err)
	}

	r := &FileRenderer{
		f:      f,
		pages:  len(pageObject.FindAllIndex(raw, -1)),
		width:  defaultPageWidth,
		height: defaultPageHeight,
	}
	if m := mediaBox.FindSubmatch(raw); m != nil {
		x0, _ := strconv.ParseFloat(string(m[1]), 64)
		y0, _ := strconv.ParseFloat(string(m[2]), 64)
		x1, _ := strconv.ParseFloat(string(m[3]), 64)
		y1, _ := strconv.ParseFloat(string(m[4]), 64)
		if x1 > x0 && y1 > y0 {
			r.width, r.height = x1-x0, y1-y0
		}
	}
	return r, nil
}

func (r *FileRenderer) PageCount() int {
	return r.pages
}

// RenderPage returns a white page scaled from points at 72 dpi.
func (r *FileRenderer) RenderPage(ctx context.Context, index int, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= r.pages {
		return nil, fmt.Errorf("page %d: %w", index+1, sentinel.ErrInvalidInput)
	}
	img := image.NewGray(image.Rect(0, 0, int(r.width*scale), int(r.height*scale)))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img, nil
}

func (r *FileRenderer) Close() error {
	return r.f.Close()
}
