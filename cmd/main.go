package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/db"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/llmservice"
	"document-qa/internal/parser"
	"document-qa/internal/rag"
	"document-qa/internal/server"
)

const defaultConfigFilePath = "./configs/config.yaml"

func main() {
	configFilePath := flag.String("config", defaultConfigFilePath, "Path to the YAML config file")
	filePath := flag.String("file", "", "Path to a document to index and query once")
	query := flag.String("query", "", "Question to ask about -file")
	dryRun := flag.Bool("dry-run", false, "Only extract and chunk -file, print the chunks")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Note: .env file not found, using system environment")
	}

	cfg, err := config.LoadConfig(*configFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	log.Debug().Interface("rag", cfg.RAG).Str("llm", cfg.LLM.Model).Str("embed_llm", cfg.EmbedLLM.Model).Msg("Loaded config")

	if *filePath != "" {
		runOnce(context.Background(), cfg, *filePath, *query, *dryRun)
		return
	}
	if *query != "" {
		log.Fatal().Msg("The -query flag needs a document given with -file")
	}

	serve(cfg)
}

func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

func serve(cfg *config.Config) {
	r, closeStore := buildRAG(cfg)
	defer closeStore()

	sessions := rag.NewSessionStore(cfg.RAG.SessionTTL, func(s *rag.Session) {
		if err := r.Clear(context.Background(), s); err != nil {
			log.Warn().Err(err).Str("session", s.ID).Msg("Failed to clear expired session")
		}
	})

	srv := server.New(cfg, r, sessions)

	go func() {
		if err := srv.Run(); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error shutting down server")
	}
	log.Info().Msg("Server exited")
}

// runOnce indexes one file and answers a single question from the command line
func runOnce(ctx context.Context, cfg *config.Config, filePath, query string, dryRun bool) {
	text, err := parser.ExtractFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}

	if dryRun {
		splitter, err := parser.NewSplitter(cfg.RAG)
		if err != nil {
			log.Fatal().Err(err).Msg("Error creating splitter")
		}
		chunks, err := parser.Chunk(splitter, text)
		if err != nil {
			log.Fatal().Err(err).Msg("Error chunking document")
		}
		log.Info().Int("chunks", len(chunks)).Msg("Parsed content")
		helper.PrettyPrint(chunks)
		return
	}

	if query == "" {
		log.Fatal().Msg("Please provide a question using the -query flag")
	}

	r, closeStore := buildRAG(cfg)
	defer closeStore()

	sess := rag.NewSession("cli")
	if _, err := r.Upload(ctx, sess, text); err != nil {
		log.Fatal().Err(err).Msg("Error indexing document")
	}
	defer func() {
		if err := r.Clear(ctx, sess); err != nil {
			log.Warn().Err(err).Msg("Error clearing index")
		}
	}()

	answer, err := r.Ask(ctx, sess, query)
	if err != nil {
		log.Error().Err(err).Msg("Error querying")
		return
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer)
}

func buildRAG(cfg *config.Config) (*rag.RAG, func()) {
	splitter, err := parser.NewSplitter(cfg.RAG)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating splitter")
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	llm, err := llmservice.New(&cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM")
	}

	store, closeStore := buildStore(cfg)
	return rag.NewRAG(splitter, embedder, llm, store, cfg), closeStore
}

func buildStore(cfg *config.Config) (rag.IndexStore, func()) {
	switch cfg.RAG.Backend {
	case "chromem":
		store, err := chromemdb.NewStore(cfg.RAG.IndexDir, cfg.RAG.Compress)
		if err != nil {
			log.Fatal().Err(err).Msg("Error creating index directory")
		}
		return store, func() {}
	case "pgvector":
		dbClient, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Error connecting to database")
		}
		dbInstance := db.NewDB(dbClient, cfg.Database.Debug)
		if err := db.InitDB(context.Background(), dbInstance); err != nil {
			log.Fatal().Err(err).Msg("Error initializing database")
		}
		store := db.NewStore(dbInstance)
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Error closing database")
			}
		}
	default:
		log.Fatal().Str("backend", cfg.RAG.Backend).Msg("Unknown index backend")
		return nil, nil
	}
}
