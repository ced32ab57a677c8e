package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"zotero-sync/core/zotero"
	"zotero-sync/feature/tags"
)

// Prints how a dump of the tags endpoint is clustered.
// Usage: go run ./cmd/debug_tags tags.json [letter]
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: debug_tags <tags.json> [letter]")
	}

	b, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		log.Fatal(err)
	}

	records, err := zotero.DecodeTags(raw)
	if err != nil {
		log.Fatal(err)
	}
	m := tags.BuildMap(records)
	idx := tags.Categorize(m)
	fmt.Printf("Loaded %d records, %d distinct tags, %d letters\n", len(records), len(m), len(idx.Letters))

	letters := idx.Letters
	if len(os.Args) > 2 {
		letters = []string{os.Args[2]}
	}

	for _, letter := range letters {
		fmt.Printf("\n=== %s ===\n", letter)
		for _, tk := range idx.Tokens[letter] {
			if len(tk.Zotero) == 1 {
				fmt.Printf("  %s\n", tk.Token)
				continue
			}
			fmt.Printf("  %s (%d spellings)\n", tk.Token, len(tk.Zotero))
			for _, r := range tk.Zotero {
				fmt.Printf("    - %q type=%d\n", r.Tag, r.Type)
			}
		}
	}
}
