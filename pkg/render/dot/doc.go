// Package dot renders a resolved composition graph as a node-link diagram.
//
// Every instance is a box; every resolved import is an arrow from the
// providing instance to the consumer, labeled with the import slot. Wires
// decided by an override are drawn dashed, and the exported main instance
// has a double border. Imports left to the runtime are gathered on a
// single "environment" node when [Options.Passthrough] is set.
//
//	src := dot.ToDOT(g, dot.Options{Detailed: true})
//	svg, err := dot.RenderSVG(ctx, src)
//
// [WriteFile] picks the output format from the file extension (.dot,
// .svg, .pdf or .png).
//
// SVG rendering runs Graphviz in-process through
// [github.com/goccy/go-graphviz]. PDF and PNG need rsvg-convert.
package dot
