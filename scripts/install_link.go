package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/afero"

	"staticcurator/services/manifest"
	"staticcurator/services/recipes"
)

// Prints the personalised install URL for a set of rows, e.g.
//
//	go run ./scripts https://addon.example.org hidden_gems,80s_action
func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: install_link <base_url> <row_id,row_id,...>")
	}

	baseURL := strings.TrimRight(os.Args[1], "/")
	rows := strings.Split(os.Args[2], ",")

	defs := recipes.Default()
	if path := os.Getenv("CURATOR_RECIPES"); path != "" {
		loaded, err := recipes.Load(afero.NewOsFs(), path)
		if err != nil {
			log.Fatalf("Failed to load recipes: %v", err)
		}
		defs = loaded
	}

	selected := make([]string, 0, len(rows))
	for _, id := range rows {
		id = strings.TrimSpace(id)
		if _, ok := defs.Lookup(id); !ok {
			log.Printf("Row %q is not defined, skipping", id)
			continue
		}
		selected = append(selected, id)
	}

	token, err := manifest.EncodePreference(selected)
	if err != nil {
		log.Fatalf("Failed to encode preference: %v", err)
	}
	fmt.Printf("%s/c/%s/manifest.json\n", baseURL, token)
}
