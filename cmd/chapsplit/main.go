package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/islabooks/isla/internal/textbook"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: chapsplit <text_file>")
	}

	path := os.Args[1]

	data, err := os.ReadFile(path) //#nosec G304 -- path comes from the command line
	if err != nil {
		log.Fatalf("Failed to read file: %v", err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	analysis, err := textbook.Analyze(data, textbook.Options{FilenameStem: stem})
	if err != nil {
		log.Fatalf("Failed to analyze file: %v", err)
	}

	fmt.Printf("Title: %s\n", analysis.Title)
	if analysis.Author != "" {
		fmt.Printf("Author: %s\n", analysis.Author)
	}
	fmt.Printf("Language: %s\n", analysis.Language)
	fmt.Printf("Encoding: %s\n", analysis.Encoding)
	fmt.Println()

	fmt.Printf("Chapters: %d\n", len(analysis.Chapters))
	for i, ch := range analysis.Chapters {
		if i < 20 { // Show first 20 chapters
			fmt.Printf("  [%d] %s (%d chars)\n", ch.Number, ch.Title, len(ch.Content))
		}
	}
	if len(analysis.Chapters) > 20 {
		fmt.Printf("  ... and %d more chapters\n", len(analysis.Chapters)-20)
	}
}
