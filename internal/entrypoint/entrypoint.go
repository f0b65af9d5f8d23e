package entrypoint

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/booklog/internal/auth"
	"github.com/mrlokans/booklog/internal/booksearch"
	"github.com/mrlokans/booklog/internal/catalog"
	"github.com/mrlokans/booklog/internal/config"
	"github.com/mrlokans/booklog/internal/covers"
	"github.com/mrlokans/booklog/internal/database"
	"github.com/mrlokans/booklog/internal/database/books"
	"github.com/mrlokans/booklog/internal/database/shelves"
	"github.com/mrlokans/booklog/internal/database/users"
	"github.com/mrlokans/booklog/internal/exporters"
	http_controllers "github.com/mrlokans/booklog/internal/http"
	"github.com/mrlokans/booklog/internal/scheduler"
	"github.com/mrlokans/booklog/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT; SIGKILL cannot be caught.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the server stops taking requests.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

// NewCatalog builds the Google Books catalog with Open Library cover fallback.
func NewCatalog(cfg config.Catalog) *catalog.Catalog {
	openLibrary := catalog.NewOpenLibraryClient(cfg.OpenLibraryURL, cfg.OpenLibraryInterval)
	return catalog.New(catalog.Config{
		APIKey:  cfg.GoogleBooksAPIKey,
		BaseURL: cfg.GoogleBooksURL,
		Country: cfg.Country,
		Timeout: cfg.Timeout,
		Workers: cfg.Workers,
	}, openLibrary)
}

// searchFetcher is what live pages search through: the remote endpoint when one is
// configured, the in-process catalog otherwise.
func searchFetcher(cfg config.BookSearch, cat booksearch.Fetcher) booksearch.Fetcher {
	if cfg.Endpoint == "" {
		return cat
	}
	log.Printf("[BOOKSEARCH] Searching through %s", cfg.Endpoint)
	return booksearch.NewHTTPFetcher(cfg.Endpoint, cfg.Timeout)
}

func widgetOptions(cfg config.BookSearch) ([]booksearch.Option, error) {
	supersede, err := booksearch.ParseSupersedePolicy(cfg.Supersede)
	if err != nil {
		return nil, err
	}
	failure, err := booksearch.ParseFailurePolicy(cfg.Failure)
	if err != nil {
		return nil, err
	}
	return []booksearch.Option{
		booksearch.WithSupersedePolicy(supersede),
		booksearch.WithFailurePolicy(failure),
	}, nil
}

// csrfSecret decodes a hex AUTH_SESSION_SECRET, falling back to its raw bytes. An
// empty secret is generated and only lives as long as the process.
func csrfSecret(configured string) ([]byte, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, nil
		}
		return []byte(configured), nil
	}
	generated, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, err
	}
	log.Printf("[AUTH] Generated session secret (set AUTH_SESSION_SECRET to persist)")
	return hex.DecodeString(generated)
}

// maintenance collects the scheduled jobs. Nil dependencies drop their job.
type maintenance struct {
	pages       *http_controllers.LivePageStore
	pageIdle    time.Duration
	limiter     *auth.RateLimiter
	limiterIdle time.Duration
	queue       http_controllers.TaskEnqueuer
}

func (m maintenance) jobs(cfg *config.Config) []scheduler.Job {
	var jobs []scheduler.Job

	if m.pages != nil && cfg.LivePages.SweepSchedule != "" {
		jobs = append(jobs, scheduler.Job{
			Name:     "live_page_sweep",
			Schedule: cfg.LivePages.SweepSchedule,
			Run: func(ctx context.Context) {
				if removed := m.pages.Sweep(m.pageIdle); removed > 0 {
					log.Printf("[BOOKSEARCH] Evicted %d idle live pages (%d left)", removed, m.pages.Len())
				}
			},
		})
	}

	if m.limiter != nil {
		jobs = append(jobs, scheduler.Job{
			Name:     "login_limiter_sweep",
			Schedule: "@every 10m",
			Run: func(ctx context.Context) {
				if removed := m.limiter.Sweep(m.limiterIdle); removed > 0 {
					log.Printf("[AUTH] Forgot %d idle login clients", removed)
				}
			},
		})
	}

	if m.queue != nil && cfg.Covers.SweepSchedule != "" {
		jobs = append(jobs, scheduler.Job{
			Name:     "cover_sweep",
			Schedule: cfg.Covers.SweepSchedule,
			Run: func(ctx context.Context) {
				if _, err := m.queue.Enqueue(ctx, tasks.CacheAllCoversTask{}); err != nil {
					log.Printf("[COVERS] Failed to queue cover sweep: %v", err)
				}
			},
		})
	}

	return jobs
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting booklog v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	bookRepo := books.NewRepository(db.DB)
	shelfRepo := shelves.NewRepository(db.DB)

	cat := NewCatalog(cfg.Catalog)
	if cfg.Catalog.GoogleBooksAPIKey == "" {
		log.Printf("WARNING: GOOGLE_BOOKS_API_KEY is not set, catalog searches may be throttled")
	}
	opts, err := widgetOptions(cfg.BookSearch)
	if err != nil {
		log.Fatalf("Invalid book search configuration: %v", err)
	}

	coverCache, err := covers.NewCache(cfg.Covers.Dir, cfg.Covers.Timeout)
	if err != nil {
		log.Printf("WARNING: Failed to initialize cover cache: %v", err)
		coverCache = nil
	} else {
		log.Printf("[COVERS] Cache initialized at %s", coverCache.Dir())
	}

	// taskQueue stays a nil interface when tasks are off; a nil *tasks.Client in it
	// would not compare equal to nil.
	var taskClient *tasks.Client
	var taskQueue http_controllers.TaskQueue
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled && coverCache != nil {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		})
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewCacheCoverQueue(bookRepo, coverCache),
			tasks.NewCacheAllCoversQueue(bookRepo, coverCache),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
		taskQueue = taskClient
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get SQL DB for sessions: %v", err)
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}
	authService := auth.NewService(users.NewRepository(db.DB), cfg.Auth)

	var authController *auth.AuthController
	var secret []byte
	if cfg.Auth.Mode == config.AuthModeLocal {
		log.Printf("[AUTH] Authentication mode: local")
		authController = auth.NewAuthController(authService, sessionManager, cfg.UI.TemplatesPath, cfg.Auth)
		secret, err = csrfSecret(cfg.Auth.SessionSecret)
		if err != nil {
			log.Fatalf("Failed to generate CSRF secret: %v", err)
		}
		if hasUsers, _ := authService.HasUsers(); !hasUsers {
			log.Printf("[AUTH] No users found. Visit /register to create an account.")
		}
	} else {
		log.Printf("[AUTH] Authentication mode: none (no authentication required)")
	}

	pageStore := http_controllers.NewLivePageStore(cfg.LivePages.MaxPages)

	router, err := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:       db,
		Books:          bookRepo,
		Shelves:        shelfRepo,
		Exporter:       exporters.NewCSVExporter(),
		Catalog:        cat,
		Fetcher:        searchFetcher(cfg.BookSearch, cat),
		WidgetOptions:  opts,
		LivePages:      pageStore,
		AuthConfig:     cfg.Auth,
		AuthService:    authService,
		AuthController: authController,
		SessionManager: sessionManager,
		CSRFSecret:     secret,
		TemplatesPath:  cfg.UI.TemplatesPath,
		StaticPath:     cfg.UI.StaticPath,
		CoverCache:     coverCache,
		TaskClient:     taskQueue,
		Version:        version,
	})
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	m := maintenance{pages: pageStore, pageIdle: cfg.LivePages.IdleTimeout}
	if authController != nil {
		m.limiter = authController.RateLimiter()
		m.limiterIdle = cfg.Auth.RateLimitWindow
	}
	if taskQueue != nil {
		m.queue = taskQueue
	}

	sched := scheduler.New()
	for _, job := range m.jobs(cfg) {
		if err := sched.Add(job); err != nil {
			log.Fatalf("Failed to schedule job: %v", err)
		}
	}
	schedCtx, schedCancel := context.WithCancel(context.Background())
	sched.Start(schedCtx)

	onShutdown := func(ctx context.Context) {
		schedCancel()
		sched.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}

// RunBookSearch prints the catalog's answer for query as the JSON the
// /booksearch endpoint serves.
func RunBookSearch(ctx context.Context, cfg *config.Config, query string, out io.Writer) error {
	results, err := NewCatalog(cfg.Catalog).Search(ctx, query)
	if err != nil {
		return fmt.Errorf("book search failed: %w", err)
	}
	if results == nil {
		results = []booksearch.BookResult{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(booksearch.SearchResponse{Books: results})
}
