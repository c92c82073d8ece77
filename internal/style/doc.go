// Package style implements the stylesheet task.
//
// A Stylesheet compiles its entry file with a Compiler (dart-sass for SCSS
// and Sass sources, esbuild for plain CSS), runs the result through a
// Prefixer that adds the vendor prefixes the configured browser targets need,
// and writes it next to any extra CSS files matched by globs.distCss. Nothing
// is written when compilation or prefixing fails.
package style
