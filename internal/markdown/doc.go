// Package markdown parses standards files: front matter extraction, body
// rendering, corpus discovery over fs.FS, and structure scanning (headings,
// links, code fences, tables) for the audit and reference layers.
package markdown
