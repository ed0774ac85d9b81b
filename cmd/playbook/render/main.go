package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mwtmurphy/go-playbook/cmd/playbook/internal/bootstrap"
	"github.com/mwtmurphy/go-playbook/internal/render"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to a TOML configuration file")
		corpusDir  = flag.String("corpus", "", "Corpus directory (defaults to the embedded standards)")
		slug       = flag.String("slug", "", "Slug of the standard to render")
		withTOC    = flag.Bool("toc", false, "Include the table of contents")
		metaOnly   = flag.Bool("meta", false, "Print front matter metadata instead of HTML")
	)

	flag.Parse()

	if *slug == "" {
		log.Fatalf("--slug is required")
	}

	ctx := context.Background()

	res, err := bootstrap.Build(ctx, bootstrap.Options{
		ConfigPath: *configPath,
		CorpusDir:  *corpusDir,
	})
	if err != nil {
		log.Fatalf("bootstrap module: %v", err)
	}
	defer res.Close()

	if _, err := res.Module.Sync(ctx); err != nil {
		log.Fatalf("sync corpus: %v", err)
	}

	if *metaOnly {
		standard, err := res.Module.Standards().Get(ctx, *slug)
		if err != nil {
			log.Fatalf("load standard: %v", err)
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(standard); err != nil {
			log.Fatalf("encode standard: %v", err)
		}
		return
	}

	result, err := res.Module.Renderer().Render(ctx, *slug, render.RenderOptions{IncludeTOC: *withTOC})
	if err != nil {
		log.Fatalf("render standard: %v", err)
	}

	if *withTOC {
		for _, entry := range result.TOC {
			fmt.Fprintf(os.Stderr, "%*s%s\n", entry.Level*2, "", entry.Text)
		}
	}
	fmt.Fprintln(os.Stdout, result.HTML)
}
