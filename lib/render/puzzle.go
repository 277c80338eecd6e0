package render

import (
	"image"
	"math/rand/v2"

	"github.com/fogleman/gg"
)

// PuzzleShape is a square with one circular notch. The same shape is used to
// cut the piece and to paint the hole, so the two always line up.
type PuzzleShape struct {
	Size        int
	NotchX      int
	NotchY      int
	NotchRadius int
}

// NewPuzzleShape draws the notch position and radius: radius 8-12, center x
// in the middle half of the square, center y at mid-height. The radius is
// capped at size/4 so the notch never crosses the square's edge.
func NewPuzzleShape(rnd *rand.Rand, size int) PuzzleShape {
	return PuzzleShape{
		Size:        size,
		NotchRadius: min(8+rnd.IntN(5), size/4),
		NotchX:      size/4 + rnd.IntN(max(1, size/2)),
		NotchY:      size / 2,
	}
}

// trace adds the shape outline at (x, y) to the current path. Callers fill or
// clip with the even-odd rule so the notch is left out.
func (p PuzzleShape) trace(dc *gg.Context, x, y float64) {
	dc.NewSubPath()
	dc.DrawRectangle(x, y, float64(p.Size), float64(p.Size))
	dc.DrawCircle(x+float64(p.NotchX), y+float64(p.NotchY), float64(p.NotchRadius))
	dc.SetFillRuleEvenOdd()
}

// contains reports whether the point (px, py), relative to the shape's top
// left corner, is part of the shape.
func (p PuzzleShape) contains(px, py int) bool {
	if px < 0 || py < 0 || px >= p.Size || py >= p.Size {
		return false
	}
	dx, dy := px-p.NotchX, py-p.NotchY
	return dx*dx+dy*dy > p.NotchRadius*p.NotchRadius
}

// Placement is where a slider piece starts and where its hole is. It is
// built from exactly two random draws, and the solution is derived from it.
type Placement struct {
	PieceX int // start of the piece on the slider track
	HoleX  int // left edge of the hole, also where the piece was cut
	Y      int // top edge shared by piece and hole
}

// NewPlacement draws the hole position on a w by h background for a piece of
// the given size. The hole stays at least 50px from the left edge and 50px
// from the right edge, and 30px from the top.
func NewPlacement(rnd *rand.Rand, w, h, size int) Placement {
	y := 30 + rnd.IntN(max(1, h-size-30))
	x := 50 + rnd.IntN(max(1, w-size-100))

	return Placement{
		PieceX: 0,
		HoleX:  x,
		Y:      y,
	}
}

// Distance is how far the piece must be dragged to cover the hole.
func (pl Placement) Distance() int {
	return pl.HoleX - pl.PieceX
}

// Puzzle cuts the piece out of bg at the placement and paints a translucent
// hole in a copy of bg at the same spot. bg is not modified.
func Puzzle(bg image.Image, shape PuzzleShape, pl Placement) (background, piece image.Image) {
	pc := gg.NewContext(shape.Size, shape.Size)
	shape.trace(pc, 0, 0)
	pc.Clip()
	pc.DrawImage(bg, -pl.HoleX, -pl.Y)
	pc.ResetClip()

	shape.trace(pc, 0, 0)
	pc.SetRGBA255(0, 0, 0, 70)
	pc.SetLineWidth(2)
	pc.Stroke()

	bc := gg.NewContextForImage(bg)
	shape.trace(bc, float64(pl.HoleX), float64(pl.Y))
	bc.SetRGBA255(255, 255, 255, 199)
	bc.Fill()

	return bc.Image(), pc.Image()
}
