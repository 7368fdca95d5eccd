// render-report rebuilds a stored case report as HTML or PDF, offline. The
// input is either a report text file or a token in the intake archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/komorreby/PFR-AI-sub000/internal/archive"
	"github.com/komorreby/PFR-AI-sub000/internal/httpapi"
)

func main() {
	var (
		inputPath   = flag.String("input", "", "Path to a stored report text file")
		archivePath = flag.String("archive", "", "Path to the intake archive database (use with -token)")
		token       = flag.String("token", "", "Submission token to load from the archive")
		outputPath  = flag.String("output", "", "Output path; a .pdf extension renders through Chromium, anything else writes HTML (defaults to stdout HTML)")
	)
	flag.Parse()

	text, err := loadReport(*inputPath, *archivePath, *token)
	if err != nil {
		log.Fatal(err)
	}

	if strings.HasSuffix(strings.ToLower(*outputPath), ".pdf") {
		renderer := httpapi.NewChromiumPDFRenderer()
		pdf, err := renderer.Render(context.Background(), text)
		if err != nil {
			log.Fatalf("render pdf: %v", err)
		}
		if err := os.WriteFile(*outputPath, pdf, 0o644); err != nil {
			log.Fatalf("write pdf: %v", err)
		}
		return
	}

	htmlDoc, err := httpapi.RenderHTML(text)
	if err != nil {
		log.Fatalf("render html: %v", err)
	}
	if *outputPath == "" {
		fmt.Print(htmlDoc)
		return
	}
	if err := os.WriteFile(*outputPath, []byte(htmlDoc), 0o644); err != nil {
		log.Fatalf("write html: %v", err)
	}
}

func loadReport(inputPath, archivePath, token string) (string, error) {
	switch {
	case inputPath != "":
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(data), nil
	case archivePath != "" && token != "":
		store, err := archive.Open(archivePath)
		if err != nil {
			return "", err
		}
		defer store.Close()
		entry, err := store.Get(token)
		if err != nil {
			return "", err
		}
		return entry.Text, nil
	default:
		return "", fmt.Errorf("missing required -input, or -archive with -token")
	}
}
