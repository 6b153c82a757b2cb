// Package imageview renders the open image into terminal cells. Each cell
// shows two vertically stacked pixels using the upper half block, so a
// viewport of cols x rows cells is cols x 2*rows pixels.
package imageview

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/anthonynsimon/bild/transform"

	"github.com/journal/mediadeck/internal/gesture"
	"github.com/journal/mediadeck/internal/theme"
)

var background = color.RGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff}

// Model holds the decoded image and a copy resampled to its laid-out size.
type Model struct {
	ID      string
	Loading bool
	Err     error

	src    image.Image
	fitted image.Image
}

// New returns an empty image view.
func New() Model {
	return Model{}
}

// ViewportSize returns the pixel size of a cols x rows cell area.
func ViewportSize(cols, rows int) gesture.Size {
	return gesture.Size{Width: float64(cols), Height: float64(2 * rows)}
}

// SetLoading marks id as being fetched.
func (m *Model) SetLoading(id string) {
	m.ID = id
	m.Loading = true
	m.Err = nil
	m.src, m.fitted = nil, nil
}

// SetImage stores the decoded image for id.
func (m *Model) SetImage(id string, img image.Image) {
	m.ID = id
	m.Loading = false
	m.Err = nil
	m.src = img
	m.fitted = nil
}

// SetError records a failed fetch for id.
func (m *Model) SetError(id string, err error) {
	m.ID = id
	m.Loading = false
	m.Err = err
	m.src, m.fitted = nil, nil
}

// Layout resamples the image to content, the size it occupies at scale 1.
// It is a no-op when the size is unchanged.
func (m *Model) Layout(content gesture.Size) {
	if m.src == nil || content.IsZero() {
		m.fitted = nil
		return
	}
	w, h := int(math.Round(content.Width)), int(math.Round(content.Height))
	if w < 1 || h < 1 {
		m.fitted = nil
		return
	}
	if m.fitted != nil {
		b := m.fitted.Bounds()
		if b.Dx() == w && b.Dy() == h {
			return
		}
	}
	m.fitted = transform.Resize(m.src, w, h, transform.Linear)
}

// View renders the image into cols x rows cells with tr applied. content
// must be the size last passed to Layout.
func (m Model) View(cols, rows int, content gesture.Size, tr gesture.Transform) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	switch {
	case m.Err != nil:
		return placeholder(cols, rows, theme.StyleError.Render("could not load image: "+m.Err.Error()))
	case m.Loading || m.fitted == nil:
		return placeholder(cols, rows, theme.StyleDimmed.Render("loading..."))
	}

	vw, vh := float64(cols), float64(2*rows)
	scale := tr.Scale
	if scale <= 0 {
		scale = 1
	}
	b := m.fitted.Bounds()
	fw, fh := float64(b.Dx()), float64(b.Dy())

	// sample maps a viewport pixel back into the fitted image.
	sample := func(px, py int) color.RGBA {
		x := (float64(px)+0.5-vw/2-tr.Translation.X)/scale + content.Width/2
		y := (float64(py)+0.5-vh/2-tr.Translation.Y)/scale + content.Height/2
		if x < 0 || y < 0 || x >= fw || y >= fh {
			return background
		}
		return color.RGBAModel.Convert(m.fitted.At(b.Min.X+int(x), b.Min.Y+int(y))).(color.RGBA)
	}

	var sb strings.Builder
	sb.Grow(cols * rows * 40)
	for cy := 0; cy < rows; cy++ {
		for cx := 0; cx < cols; cx++ {
			top := sample(cx, 2*cy)
			bot := sample(cx, 2*cy+1)
			fmt.Fprintf(&sb, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀", top.R, top.G, top.B, bot.R, bot.G, bot.B)
		}
		sb.WriteString("\x1b[0m")
		if cy < rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func placeholder(cols, rows int, msg string) string {
	lines := make([]string, rows)
	lines[rows/2] = msg
	return strings.Join(lines, "\n")
}
