// Package render converts rendered SVG into other image formats.
//
// The [dot] subpackage draws a resolved composition graph; this package
// holds the format conversion it shares with any other renderer. [ToPDF]
// and [ToPNG] shell out to rsvg-convert (from librsvg):
//
//	svg, err := dot.RenderSVG(ctx, dot.ToDOT(g, dot.Options{}))
//	pdf, err := render.ToPDF(ctx, svg)
//	png, err := render.ToPNG(ctx, svg, 2.0) // 2x scale
//
// [dot]: github.com/matzehuels/witlink/pkg/render/dot
package render
