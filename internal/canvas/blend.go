package canvas

import (
	"image"
	"image/color"
	"image/draw"
)

// composite blends src into dst inside r, weighted by the alpha channel of
// coverage (a premultiplied RGBA buffer with the same width as dst).
// Colour math is done on straight alpha since dst is NRGBA.
func composite(dst *image.NRGBA, coverage []uint8, r image.Rectangle, src color.NRGBA, mode BlendMode) {
	width := dst.Rect.Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cov := uint32(coverage[(y*width+x)*4+3])
			if cov == 0 {
				continue
			}
			i := dst.PixOffset(x, y)
			d := dst.Pix[i : i+4 : i+4]

			if mode == BlendDestinationOut {
				d[3] = uint8((uint32(d[3])*(255-cov) + 127) / 255)
				continue
			}

			sa := (uint32(src.A)*cov + 127) / 255
			da := (uint32(d[3])*(255-sa) + 127) / 255
			oa := sa + da
			if oa == 0 {
				d[0], d[1], d[2], d[3] = 0, 0, 0, 0
				continue
			}
			d[0] = uint8((uint32(src.R)*sa + uint32(d[0])*da) / oa)
			d[1] = uint8((uint32(src.G)*sa + uint32(d[1])*da) / oa)
			d[2] = uint8((uint32(src.B)*sa + uint32(d[2])*da) / oa)
			d[3] = uint8(oa)
		}
	}
}

// clearCoverage zeroes the mask inside r so the next segment starts clean.
func clearCoverage(coverage []uint8, width int, r image.Rectangle) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := coverage[(y*width+r.Min.X)*4 : (y*width+r.Max.X)*4]
		clear(row)
	}
}

func fill(dst *image.NRGBA, c color.NRGBA) {
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i+0] = c.R
		dst.Pix[i+1] = c.G
		dst.Pix[i+2] = c.B
		dst.Pix[i+3] = c.A
	}
}

// copyInto replaces dst pixels with src at the origin, clipped to dst.
// NRGBA sources are copied byte for byte so snapshots round-trip exactly.
func copyInto(dst *image.NRGBA, src image.Image) {
	sb := src.Bounds()
	r := image.Rect(0, 0, sb.Dx(), sb.Dy()).Intersect(dst.Rect)
	if r.Empty() {
		return
	}
	if n, ok := src.(*image.NRGBA); ok {
		for y := 0; y < r.Dy(); y++ {
			si := n.PixOffset(sb.Min.X, sb.Min.Y+y)
			di := dst.PixOffset(0, y)
			copy(dst.Pix[di:di+r.Dx()*4], n.Pix[si:si+r.Dx()*4])
		}
		return
	}
	draw.Draw(dst, r, src, sb.Min, draw.Src)
}
