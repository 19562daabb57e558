package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"worldbook/internal/config"
	"worldbook/internal/domain"
	"worldbook/internal/service"
	"worldbook/internal/tui"
	"worldbook/internal/vectorstore/memory"
)

// searchAdapter narrows the retrieval service to the TUI port.
type searchAdapter struct {
	svc *service.Retrieval
}

func (a searchAdapter) Search(query string, limit int, rerank bool) ([]domain.SearchCandidate, error) {
	return a.svc.Query(context.Background(), service.QueryOptions{
		Query:  query,
		Limit:  limit,
		Rerank: rerank,
	})
}

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/worldbook/config.yaml if not provided)")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: worldbook-search [--config=config.yaml] worldbook.json [more.json ...]")
		os.Exit(1)
	}

	var cfg *config.AppConfig
	var path string
	var err error
	if cfgPath == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
		path = cfgPath
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	holder := config.NewHolder(cfg, path)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel) // keep the TUI clean

	svc := service.New(holder, memory.NewStore(), logger)

	totalChunks, totalPoints := 0, 0
	for _, p := range inputs {
		data, err := os.ReadFile(p)
		if err != nil {
			log.Fatalf("failed to read %s: %v", p, err)
		}
		var book domain.WorldBook
		if err := json.Unmarshal(data, &book); err != nil {
			log.Fatalf("failed to parse %s: %v", p, err)
		}
		if book.Entries == nil {
			log.Fatalf("%s: world book document missing entries mapping", p)
		}
		stats, err := svc.Ingest(context.Background(), book, service.IngestOptions{ChunkOverlap: -1})
		if err != nil {
			log.Fatalf("failed to ingest %s: %v", p, err)
		}
		totalChunks += stats.ChunksProcessed
		totalPoints += stats.PointsStored
	}

	banner := fmt.Sprintf("%d file(s) ingested: %d chunks, %d points indexed", len(inputs), totalChunks, totalPoints)
	model := tui.New(searchAdapter{svc: svc}, banner)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("tui error: %v", err)
	}
}
