package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"research-assistant/internal/chromemdb"
	"research-assistant/internal/chunker"
	"research-assistant/internal/config"
	"research-assistant/internal/controller"
	"research-assistant/internal/embedding"
	"research-assistant/internal/helper"
	"research-assistant/internal/llmservice"
	"research-assistant/internal/models"
	"research-assistant/internal/parser"
	"research-assistant/internal/quiz"
	"research-assistant/internal/rag"
	"research-assistant/internal/session"
	"research-assistant/internal/tui"
	"research-assistant/internal/vectorstore"
	"research-assistant/internal/watcher"
)

const configFilePath = "./configs/config.yaml"

type app struct {
	cfg   *config.Config
	store vectorstore.Store
	rag   *rag.RAG
	quiz  *quiz.Quiz
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the YAML config file")
	filePath := flag.String("file", "", "Path to a PDF or TXT document to index")
	query := flag.String("query", "", "Question to answer from the indexed documents")
	runQuiz := flag.Bool("quiz", false, "Generate questions about -file and evaluate answers read from stdin")
	dryRun := flag.Bool("dry-run", false, "Parse and chunk -file and print the result, do not index")
	serve := flag.Bool("serve", false, "Start the HTTP API")
	interactive := flag.Bool("tui", false, "Start the terminal UI")
	watchDir := flag.String("watch", "", "Ingest files dropped into this directory")
	count := flag.Bool("count", false, "Print the number of indexed chunks")
	clearIndex := flag.Bool("clear", false, "Remove every indexed chunk")
	export := flag.Bool("export", false, "Export the chromem collection to vector_db.export_file")
	importFile := flag.Bool("import", false, "Import the chromem collection from vector_db.export_file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	setupLogger(cfg.Log)
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *dryRun {
		if *filePath == "" {
			log.Fatal().Msg("-dry-run needs a document file given with -file")
		}
		dryRunFile(cfg, *filePath)
		return
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing pipeline")
	}
	defer a.store.Close()

	switch {
	case *count:
		n, err := a.store.Count(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Error counting documents")
		}
		fmt.Printf("%s: %d chunks\n", cfg.VectorDB.Collection, n)
	case *clearIndex:
		if err := a.store.Clear(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error clearing collection")
		}
		log.Info().Str("collection", cfg.VectorDB.Collection).Msg("Cleared collection")
	case *export, *importFile:
		transfer(a, *export)
	case *serve:
		runServer(ctx, a, *watchDir)
	case *interactive:
		runTUI(ctx, a)
	case *watchDir != "":
		if err := watcher.New(*watchDir, a.rag).Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error watching directory")
		}
	case *filePath != "":
		res := ingest(ctx, a, *filePath)
		if *query != "" {
			answer(ctx, a, *query, res.UploadID)
		}
		if *runQuiz {
			challenge(ctx, a, res)
		}
	case *query != "":
		answer(ctx, a, *query, "")
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func setupLogger(lc config.LogConfig) {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if level > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	if lc.JSON {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg.VectorDB.Backend == config.BackendChromem && !cfg.VectorDB.InMemory {
		if err := helper.CreateFolder(cfg.VectorDB.Path); err != nil {
			return nil, err
		}
	}

	embedder, err := embedding.NewEmbedder(ctx, &cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	generator, err := llmservice.NewGenerator(ctx, &cfg.InferLLM)
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.Open(ctx, cfg, embedder)
	if err != nil {
		return nil, err
	}

	r := rag.NewRAG(store, embedder, generator, cfg)
	return &app{
		cfg:   cfg,
		store: store,
		rag:   r,
		quiz:  quiz.New(generator, r, cfg.Quiz),
	}, nil
}

func dryRunFile(cfg *config.Config, filePath string) {
	upload, err := parser.NewLoader(cfg).LoadFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}
	log.Info().Int("documents", len(upload.Documents)).Msg("Parsed content")

	chunks, err := chunker.New(cfg.RAG).Split(upload.Documents, upload.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Error splitting document")
	}
	log.Info().Int("chunks", len(chunks)).Msg("Split content")
	helper.PrettyPrint(chunks)
}

func ingest(ctx context.Context, a *app, filePath string) *models.IngestResult {
	res, err := a.rag.IngestFile(ctx, filePath)
	if errors.Is(err, parser.ErrUnsupportedFormat) {
		log.Fatal().Str("file", filePath).Msg(models.UnsupportedMsg)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Error indexing document")
	}
	fmt.Printf("Loaded %d document chunks.\n", len(res.Documents))
	fmt.Printf("Index updated: %d chunks added, %d in collection.\n\n", res.Chunks, res.CollectionSize)
	return res
}

func answer(ctx context.Context, a *app, query, uploadID string) {
	response, err := a.rag.Query(ctx, query, uploadID)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)

	log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, s := range response.Sources {
		fmt.Printf("[%s p.%d] %s\n\n", s.Source, s.PageNumber, helper.Preview(s.Content, a.cfg.RAG.SourcePreviewChars))
	}
}

// challenge prints the generated questions and reads one answer line per question from stdin.
func challenge(ctx context.Context, a *app, res *models.IngestResult) {
	questions, err := a.quiz.Generate(ctx, res.Documents)
	if err != nil {
		log.Fatal().Err(err).Msg("Error generating questions")
	}
	if len(questions) == 0 {
		log.Warn().Msg("No questions could be parsed from the model output")
		return
	}

	in := bufio.NewScanner(os.Stdin)
	answers := make([]string, len(questions))
	for i, q := range questions {
		fmt.Printf("Q%d: %s\nYour Answer to Q%d: ", i+1, q, i+1)
		if in.Scan() {
			answers[i] = strings.TrimSpace(in.Text())
		}
	}

	evals, err := a.quiz.EvaluateAll(ctx, questions, answers, res.UploadID)
	if err != nil {
		log.Fatal().Err(err).Msg("Error evaluating answers")
	}
	fmt.Println("\nEvaluation Results")
	for i, e := range evals {
		fmt.Printf("\nQ%d Evaluation:\n%s\n", i+1, e.Verdict)
	}
}

func transfer(a *app, export bool) {
	m, ok := a.store.(*chromemdb.VectorDBManager)
	if !ok {
		log.Fatal().Str("backend", a.cfg.VectorDB.Backend).Msg("Export and import need the chromem backend")
	}
	path := a.cfg.VectorDB.ExportFile
	if export {
		if err := m.Export(path); err != nil {
			log.Fatal().Err(err).Msg("Error exporting collection")
		}
		log.Info().Str("collection", m.Name()).Msg("Exported collection")
		return
	}
	if err := m.Import(path); err != nil {
		log.Fatal().Err(err).Msg("Error importing collection")
	}
	log.Info().Str("collection", m.Name()).Msg("Imported collection")
}

func runServer(ctx context.Context, a *app, watchDir string) {
	manager := session.NewManager(a.rag, a.quiz)
	c := controller.NewController(manager, a.store, a.cfg.VectorDB.Collection, a.cfg.RAG.SourcePreviewChars)

	srv := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: controller.NewRouter(c),
	}

	if watchDir == "" {
		watchDir = a.cfg.Watch.Dir
	}
	if watchDir != "" {
		go func() {
			if err := watcher.New(watchDir, a.rag).Run(ctx); err != nil {
				log.Error().Err(err).Msg("Watcher stopped")
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().Str("addr", srv.Addr).Msg("Server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}

func runTUI(ctx context.Context, a *app) {
	// the terminal belongs to the UI; logs go to a file
	f, err := tea.LogToFile("research-assistant.log", "")
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening log file")
	}
	defer f.Close()
	log.Logger = zerolog.New(f).With().Timestamp().Caller().Logger()

	s := session.New("tui", a.rag, a.quiz)
	p := tea.NewProgram(tui.New(ctx, s, a.cfg.RAG.SourcePreviewChars), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Error().Err(err).Msg("TUI failed")
	}
}
