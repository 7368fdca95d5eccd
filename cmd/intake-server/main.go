package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/komorreby/PFR-AI-sub000/internal/archive"
	"github.com/komorreby/PFR-AI-sub000/internal/casecheck"
	"github.com/komorreby/PFR-AI-sub000/internal/config"
	"github.com/komorreby/PFR-AI-sub000/internal/docscan"
	"github.com/komorreby/PFR-AI-sub000/internal/httpapi"
	"github.com/komorreby/PFR-AI-sub000/internal/narrative"
	"github.com/komorreby/PFR-AI-sub000/internal/refdata"
	"github.com/komorreby/PFR-AI-sub000/internal/report"
	"github.com/komorreby/PFR-AI-sub000/internal/telemetry"
	"github.com/komorreby/PFR-AI-sub000/internal/wizard"
)

func main() {
	var (
		configPath = flag.String("config", "intake.yaml", "Path to YAML config file")
		addr       = flag.String("addr", "", "Listen address (overrides config)")
		uploadDir  = flag.String("upload-dir", "", "Directory for uploaded scans (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(*addr) != "" {
		cfg.Addr = *addr
	}
	if strings.TrimSpace(*uploadDir) != "" {
		cfg.UploadDir = *uploadDir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	shutdownTraces, err := telemetry.Setup(ctx, "intake-server")
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		if err := shutdownTraces(context.Background()); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	var analyzer narrative.Analyzer
	switch cfg.Narrative.Backend {
	case "http":
		analyzer = narrative.NewClient(cfg.Services.NarrativeURL)
	default:
		llm, err := narrative.NewLLMAnalyzerFromEnv()
		if err != nil {
			log.Fatalf("narrative analyzer: %v", err)
		}
		analyzer = llm
	}

	arch, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		log.Fatalf("open archive: %v", err)
	}
	defer arch.Close()

	handler := httpapi.NewServer(httpapi.Deps{
		Sessions:    wizard.NewStore(),
		Submissions: report.NewStore(),
		Assembler:   report.NewAssembler(casecheck.NewClient(cfg.Services.CaseCheckURL), analyzer),
		Extractor:   docscan.NewClient(cfg.Services.DocScanURL),
		Catalog:     refdata.NewCatalog(refdata.NewClient(cfg.Services.RefDataURL)),
		Archive:     arch,
		PDF:         httpapi.NewChromiumPDFRenderer(),
		UploadDir:   cfg.UploadDir,
	})

	log.Printf("intake server listening on %s (docscan=%s casecheck=%s refdata=%s narrative=%s)",
		cfg.Addr, cfg.Services.DocScanURL, cfg.Services.CaseCheckURL, cfg.Services.RefDataURL, cfg.Narrative.Backend)
	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
