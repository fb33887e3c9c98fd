package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/davitacols/recall-sub001/internal/api"
	"github.com/davitacols/recall-sub001/internal/common"
	"github.com/davitacols/recall-sub001/internal/keywords"
	"github.com/davitacols/recall-sub001/internal/store"
)

func main() {
	logger := common.Logger()

	if err := godotenv.Load(); err != nil {
		logger.Warn("recall: .env file not loaded", "error", err)
	} else {
		logger.Info("recall: environment loaded from .env")
	}

	addr := flag.String("addr", ":8082", "listen address")
	catalogPath := flag.String("catalog", defaultCatalogPath(), "path to the SQLite catalog database")
	flag.Parse()

	logger.Info("recall: startup initiated", "addr", *addr, "catalog", *catalogPath)

	if dir := filepath.Dir(*catalogPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("recall: catalog directory creation failed", "error", err)
			fmt.Println("catalog directory error:", err)
			os.Exit(1)
		}
	}
	catalog, err := store.Open(*catalogPath)
	if err != nil {
		logger.Error("recall: catalog open failed", "error", err)
		fmt.Println("catalog error:", err)
		os.Exit(1)
	}
	defer catalog.Close()

	provider := keywords.NewProvider()

	srv, err := api.NewServer(catalog, provider)
	if err != nil {
		logger.Error("recall: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	logger.Info("recall: listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, srv); err != nil {
		logger.Error("recall: server stopped", "error", err)
		fmt.Println("server stopped:", err)
		os.Exit(1)
	}
}

func defaultCatalogPath() string {
	if env := strings.TrimSpace(os.Getenv("RECALL_CATALOG")); env != "" {
		return env
	}
	return filepath.Join("data", "catalog.db")
}
