package main

import (
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"worldbook/internal/config"
	"worldbook/internal/domain"
	"worldbook/internal/server"
	"worldbook/internal/service"
	"worldbook/internal/vectorstore/memory"
	"worldbook/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/worldbook/config.yaml if not provided)")
	flag.Parse()

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
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Assemble the vector store
	var store domain.VectorStore
	switch cfg.VectorStore.Type {
	case "memory", "":
		store = memory.NewStore()
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			log.Fatalf("vector_store.qdrant config missing")
		}
		store = qdrant.NewStore(qdrant.Config{
			URL:     cfg.VectorStore.Qdrant.URL,
			APIKey:  cfg.VectorStore.Qdrant.APIKey,
			Timeout: time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatalf("unknown vector store type: %s", cfg.VectorStore.Type)
	}

	svc := service.New(holder, store, logger)
	srv := server.New(svc, holder, logger)

	logger.WithField("addr", cfg.Server.Addr).Info("starting worldbookd")
	if err := srv.Router().Run(cfg.Server.Addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
