package playbook

import (
	"embed"
	"io/fs"
)

//go:embed data/playbook/*.md
var playbookFS embed.FS

// EmbeddedCorpus returns the standards files this module ships with, rooted at
// the corpus directory so file paths match their corpus-relative names
// (README.md, python_style.md, ...). Passing it to the markdown source makes
// the embedded copy interchangeable with an on-disk checkout.
func EmbeddedCorpus() fs.FS {
	sub, err := fs.Sub(playbookFS, "data/playbook")
	if err != nil {
		panic(err)
	}
	return sub
}
