package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/squatlab/backend/internal/analysis"
	"github.com/squatlab/backend/internal/config"
	"github.com/squatlab/backend/internal/es"
	"github.com/squatlab/backend/internal/handlers"
	"github.com/squatlab/backend/internal/logging"
	"github.com/squatlab/backend/internal/middleware"
	"github.com/squatlab/backend/internal/mykafka"
	"github.com/squatlab/backend/internal/repo"
	"github.com/squatlab/backend/internal/service"
	"github.com/squatlab/backend/internal/storage"
	"github.com/squatlab/backend/internal/token"
	httpserver "github.com/squatlab/backend/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	store, err := storage.NewS3Store(storage.S3Config{
		Bucket:    configuration.S3_BUCKET,
		Region:    configuration.S3_REGION,
		Endpoint:  configuration.S3_ENDPOINT,
		AccessKey: configuration.S3_ACCESS_KEY,
		SecretKey: configuration.S3_SECRET_KEY,
	})
	if err != nil {
		log.Fatalf("s3 init error: %v", err)
	}

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	gormRepo := repo.New(db)
	codec := &token.Codec{Secret: []byte(configuration.JWT_SECRET)}

	deps := httpserver.Deps{
		Auth: middleware.NewAuth(codec, httpserver.SkipPaths()...),
		AuthHandler: &handlers.AuthHandler{
			Users:      gormRepo,
			Refresh:    gormRepo,
			Verifier:   &service.CredentialVerifier{Users: gormRepo},
			Codec:      codec,
			AccessTTL:  configuration.AccessTTL(),
			RefreshTTL: configuration.RefreshTTL(),
			Producer:   prod,
		},
		UploadHandler: &handlers.UploadHandler{
			Jobs:     gormRepo,
			Store:    store,
			Analyzer: analysis.NewClient(configuration.ANALYSIS_URL),
			Producer: prod,
		},
	}

	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(es.Config{
			URL:      configuration.ES_URL,
			User:     configuration.ES_USER,
			Password: configuration.ES_PASSWORD,
		})
		if err != nil {
			log.Fatalf("es init error: %v", err)
		}
		deps.UploadHandler.Indexer = &es.ResultIndexer{Client: esClient, Index: es.ResultsIndex}
		deps.SearchHandler = &handlers.SearchHandler{ES: esClient, Index: es.ResultsIndex}
	}

	e := echo.New()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover(), echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
