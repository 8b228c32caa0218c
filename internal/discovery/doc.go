// Package discovery nominates logo candidates from a parsed HTML document and
// ranks them for the resolver.
//
// Discovery is a list of independent strategies, each mapping a document and
// its base URL to scored candidates. The Discoverer concatenates their output
// in list order; strategies flagged as fallbacks only run when nothing before
// them reached StrongScore.
//
// Weights:
//
//	link rel apple-touch-icon-precomposed   4
//	link rel apple-touch-icon               3
//	link rel containing a logo token        3
//	link rel mask-icon                      2
//	link rel icon / shortcut icon / *icon*  1
//	img attribute or filename with "logo"  +3 per attribute
//	img attribute or filename with "brand" +2 per attribute
//	img attribute or filename with "header"+1 per attribute
//	inline <svg> labelled "logo"            3
//	inline <svg> labelled "brand"           2
//	img/object/embed referencing .svg       2 (+1 when the reference mentions "logo")
//	image child of a header-like container  2 (fallback)
//	first image in first header-like element 1 (fallback)
package discovery
