// Package textgrid reads and writes Praat TextGrid annotation files.
//
// Only the long text format is supported, which is what Praat itself
// writes by default and what the AAA export tooling produces. Files may
// be UTF-8 or UTF-16 with a byte order mark; output is always UTF-8.
package textgrid
