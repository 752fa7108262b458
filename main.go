package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pubmed-digest/config"
	"pubmed-digest/journals"
	"pubmed-digest/language"
	"pubmed-digest/models"
	"pubmed-digest/pubmed"
	"pubmed-digest/services"
	"pubmed-digest/storage"
	"pubmed-digest/translate"
)

var articlesIngested prometheus.Counter

func init() {
	articlesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "articles_ingested_total",
			Help: "Total number of translated articles written to the database.",
		},
	)
	prometheus.MustRegister(articlesIngested)
}

// searchSession merkt sich die zuletzt gestartete Suche, damit die
// Seitennavigation die Query nicht neu angeben muss. Der Mutex erzwingt
// zugleich die Single-Writer-Disziplin: Der Artikelbestand wird pro Seite
// komplett ersetzt, zwei gleichzeitige Läufe würden sich destruktiv
// überschreiben.
type searchSession struct {
	mu         sync.Mutex
	query      models.SearchQuery
	totalPages int
	active     bool
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	// Ohne DEEPL_API_KEY schlägt Load fehl; fehlende Credentials sind ein
	// Startfehler, kein Laufzeitfehler.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(&models.Journal{}, &models.Article{}); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Komponenten zusammenstecken
	detector := language.NewDetector()
	parser := pubmed.NewParser(detector, logging)
	client := pubmed.NewClient(cfg, logging)
	translator := translate.NewClient(cfg, logging)

	registry, err := journals.NewRegistry(&journals.GormStore{DB: db}, logging)
	if err != nil {
		logging.Fatal("Journal registry load failed", zap.Error(err))
	}

	var archiver *storage.Archiver
	if cfg.ArchiveEnabled() {
		archiver, err = storage.NewArchiver(cfg)
		if err != nil {
			logging.Fatal("S3 archiver creation failed", zap.Error(err))
		}
		logging.Info("Raw page archive enabled", zap.String("bucket", cfg.ArchiveS3Bucket))
	}

	pipeline := services.NewPipeline(cfg, logging, client, parser, translator, registry, archiver)
	session := &searchSession{}

	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	setupSearchRoutes(router, cfg, db, logging, pipeline, client, session)
	setupArticleRoutes(router, db, logging)
	setupJournalRoutes(router, db, logging)

	// Optionaler geplanter Refresh der zuletzt gemerkten Suche (Seite 1).
	if cfg.CronSchedule != "" {
		cronScheduler := cron.New()
		_, err := cronScheduler.AddFunc(cfg.CronSchedule, func() {
			session.mu.Lock()
			defer session.mu.Unlock()
			if !session.active {
				return
			}
			logging.Info("Running scheduled refresh...", zap.String("term", session.query.Term))
			articles, err := pipeline.Run(context.Background(), session.query, 1)
			if err != nil {
				logging.Error("Scheduled refresh failed", zap.Error(err))
				return
			}
			if err := replaceArticles(db, articles); err != nil {
				logging.Error("Scheduled refresh persistence failed", zap.Error(err))
				return
			}
			articlesIngested.Add(float64(len(articles)))
			logging.Info("Scheduled refresh completed", zap.Int("articles", len(articles)))
		})
		if err != nil {
			logging.Fatal("Invalid cron schedule", zap.Error(err))
		}
		cronScheduler.Start()
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// replaceArticles ersetzt den Artikelbestand komplett (erst löschen, dann
// Bulk-Insert) in einer Transaktion. Wird nur nach erfolgreichem
// Pipeline-Durchlauf aufgerufen, damit von einer fehlgeschlagenen Seite nie
// etwas persistiert wird.
func replaceArticles(db *gorm.DB, articles []models.Article) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Article{}).Error; err != nil {
			return err
		}
		if len(articles) == 0 {
			return nil
		}
		return tx.Create(&articles).Error
	})
}

func setupSearchRoutes(router *gin.Engine, cfg *config.Config, db *gorm.DB, log *zap.Logger,
	pipeline *services.Pipeline, client *pubmed.Client, session *searchSession) {
	rg := router.Group("/search")

	// Startet eine neue Suche: zählt die Treffer und merkt sich die Query
	// für die Seitennavigation.
	rg.POST("/", func(c *gin.Context) {
		var req models.SearchQuery
		if err := c.ShouldBindJSON(&req); err != nil || req.Term == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: term is required"})
			return
		}

		total, err := client.Count(c.Request.Context(), req)
		if err != nil {
			log.Error("Count query failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "search service unavailable"})
			return
		}
		pages, err := pubmed.Pages(total, cfg.ItemsPerPage)
		if err != nil {
			log.Error("Page calculation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid paging configuration"})
			return
		}

		session.mu.Lock()
		session.query = req
		session.totalPages = pages
		session.active = true
		session.mu.Unlock()

		c.JSON(http.StatusOK, gin.H{
			"term":        req.Term,
			"total_count": total,
			"total_pages": pages,
		})
	})

	// Holt eine Seite der gemerkten Suche, übersetzt sie und ersetzt den
	// Artikelbestand komplett.
	rg.GET("/page", func(c *gin.Context) {
		page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
		if err != nil || page < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page number"})
			return
		}

		session.mu.Lock()
		defer session.mu.Unlock()
		if !session.active {
			c.JSON(http.StatusConflict, gin.H{"error": "no active search; POST /search first"})
			return
		}

		articles, err := pipeline.Run(c.Request.Context(), session.query, page)
		if err != nil {
			log.Error("Pipeline run failed", zap.Int("page", page), zap.Error(err))
			if errors.Is(err, translate.ErrSegmentMismatch) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "translation protocol violation"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "pipeline failed, page discarded"})
			return
		}

		if err := replaceArticles(db, articles); err != nil {
			log.Error("Failed to persist page", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		articlesIngested.Add(float64(len(articles)))

		var prevPage, nextPage *int
		if page > 1 {
			p := page - 1
			prevPage = &p
		}
		if page < session.totalPages {
			n := page + 1
			nextPage = &n
		}

		c.JSON(http.StatusOK, gin.H{
			"articles":     articles,
			"current_page": page,
			"total_pages":  session.totalPages,
			"prev_page":    prevPage,
			"next_page":    nextPage,
		})
	})
}

func setupArticleRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/articles")

	// Listet den aktuellen Bestand; sort=impact_factor sortiert absteigend
	// nach dem Impact Factor des Journals.
	rg.GET("/", func(c *gin.Context) {
		query := db.Preload("Journal")
		if c.Query("sort") == "impact_factor" {
			query = query.
				Joins("JOIN journals ON journals.id = articles.journal_id").
				Order("journals.impact_factor DESC")
		}

		var articles []models.Article
		if err := query.Find(&articles).Error; err != nil {
			log.Error("Database query for articles failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, articles)
	})
}

func setupJournalRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/journals")

	rg.GET("/", func(c *gin.Context) {
		var journalList []models.Journal
		if err := db.Find(&journalList).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, journalList)
	})

	// Bulk-Update der Impact Factors; unbekannte Journale werden angelegt.
	rg.PUT("/impact-factors", func(c *gin.Context) {
		var req []struct {
			Name         string  `json:"name" binding:"required"`
			ImpactFactor float64 `json:"impact_factor"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		updated := 0
		for _, entry := range req {
			journal := models.Journal{Name: entry.Name, ImpactFactor: entry.ImpactFactor}
			err := db.Where(models.Journal{Name: entry.Name}).
				Assign(map[string]interface{}{"impact_factor": entry.ImpactFactor}).
				FirstOrCreate(&journal).Error
			if err != nil {
				log.Error("Impact factor update failed", zap.String("journal", entry.Name), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				return
			}
			updated++
		}
		c.JSON(http.StatusOK, gin.H{"updated": updated})
	})
}
