package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/reelscribe/backend/internal/api"
	"github.com/reelscribe/backend/internal/auth"
	"github.com/reelscribe/backend/internal/config"
	"github.com/reelscribe/backend/internal/db"
	"github.com/reelscribe/backend/internal/job"
	"github.com/reelscribe/backend/internal/media"
	"github.com/reelscribe/backend/internal/notify"
	"github.com/reelscribe/backend/internal/pipeline"
	"github.com/reelscribe/backend/internal/transcribe"
)

func main() {
	cfg := config.Load()

	// Ensure data and scratch directories exist
	os.MkdirAll(cfg.DataPath, 0755)
	os.MkdirAll(cfg.WorkPath, 0755)

	// Initialize database
	database, err := db.NewSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Initialize JWT service
	jwtService := auth.NewJWTService(cfg.JWTSecret)

	// Transcription engine: local whisper.cpp server if configured, OpenAI otherwise
	var engine transcribe.Transcriber
	switch {
	case cfg.WhisperURL != "":
		engine = transcribe.NewWhisperCppClient(cfg.WhisperURL)
		log.Printf("Transcription engine: whisper.cpp at %s", cfg.WhisperURL)
	case cfg.OpenAIAPIKey != "":
		engine = transcribe.NewOpenAIClient(cfg.OpenAIAPIKey)
		log.Printf("Transcription engine: OpenAI Whisper API")
	default:
		log.Fatal("No transcription engine configured: set WHISPER_URL or OPENAI_API_KEY")
	}

	// Delivery channels, each enabled only when its credentials are present
	var senders []notify.Sender
	if cfg.SMTPEmail != "" {
		emailSender := notify.NewEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPEmail, cfg.SMTPPassword)
		senders = append(senders, emailSender, notify.NewSMSSender(emailSender))
	}
	if cfg.TwilioAccountSID != "" {
		senders = append(senders, notify.NewWhatsAppSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom))
	}
	dispatcher := notify.NewDispatcher(senders...)
	if len(senders) == 0 {
		log.Println("WARNING: no delivery channels configured, transcripts will only be stored")
	}

	// Pipeline
	fetcher := media.NewFetcher(cfg.YtdlpPath, cfg.MaxDownloadBytes)
	extractor := media.NewExtractor(cfg.FFmpegPath, cfg.FFprobePath)
	orch := pipeline.NewOrchestrator(cfg.WorkPath, fetcher, extractor, engine, dispatcher, database, pipeline.Timeouts{
		Fetch:      cfg.FetchTimeout,
		Extract:    cfg.ExtractTimeout,
		Transcribe: cfg.TranscribeTimeout,
		Delivery:   cfg.DeliveryTimeout,
	})

	// Job queue
	queue := job.NewQueue(database.DB(), cfg.Workers)
	queue.SetHandler(func(ctx context.Context, j *job.Job, onStatus func(pipeline.Status)) error {
		var params job.Params
		if err := json.Unmarshal(j.Params, &params); err != nil {
			return fmt.Errorf("parse job params: %w", err)
		}

		outcome, err := orch.Run(ctx, pipeline.Request{
			JobID:     j.ID,
			UserID:    j.UserID,
			SourceURL: j.SourceURL,
			Language:  params.Language,
			Targets:   params.Targets,
			OnStatus:  onStatus,
		})
		if err != nil {
			return err
		}

		result, err := json.Marshal(outcome)
		if err != nil {
			return fmt.Errorf("marshal job result: %w", err)
		}
		j.Result = result
		return nil
	})
	queue.Start()
	defer queue.Stop()

	// Create router
	router := api.NewRouter(database, jwtService, cfg, queue, orch, dispatcher)

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Starting server on %s", addr)
	log.Printf("Data path: %s", cfg.DataPath)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		queue.Stop()
		database.Close()
		os.Exit(0)
	}()

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
