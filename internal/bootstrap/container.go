package bootstrap

import (
	"io"
	"log"
	"os"
	"time"

	"ai-paperchat-client/internal/config"
	"ai-paperchat-client/internal/pkg/logger"
	"ai-paperchat-client/internal/repository/memory"
	"ai-paperchat-client/internal/service"
	"ai-paperchat-client/pkg/api"
	"ai-paperchat-client/pkg/upload"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Container struct {
	// Services
	QueryService   service.IQueryService
	UploadService  service.IUploadService
	LibraryService service.ILibraryService

	// Background Services (Exposed for main.go to run)
	ProgressConsumer service.IProgressConsumer

	// Repositories (Exposed for UI rendering)
	ConversationRepo *memory.ConversationRepository
	PaperRepo        *memory.PaperRepository
	BatchRepo        *memory.BatchRepository
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	flowLog := newPipelineLogger(cfg.App.PipelineLogPath)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. API Client
	client := api.NewClient(
		cfg.Api.BaseURL,
		cfg.Api.ApiKey,
		time.Duration(cfg.Api.TimeoutSeconds)*time.Second,
	)

	// 4. In-Memory Storage
	conversationRepo := memory.NewConversationRepository()
	paperRepo := memory.NewPaperRepository()
	batchRepo := memory.NewBatchRepository()

	// 5. Upload Machinery
	hasher := upload.NewHasher(client, flowLog)
	scheduler := upload.NewScheduler(client, cfg.Upload.Concurrency, flowLog)
	listener := upload.NewListener(client, pubSub, cfg.Upload.ProgressTopic, flowLog)

	// 6. Services
	libraryService := service.NewLibraryService(client, paperRepo, sysLogger)
	queryService := service.NewQueryService(
		client,
		client,
		conversationRepo,
		libraryService,
		sysLogger,
		flowLog,
	)
	uploadService := service.NewUploadService(
		client,
		hasher,
		scheduler,
		listener,
		batchRepo,
		paperRepo,
		sysLogger,
		flowLog,
		cfg.Upload.MaxFiles,
	)
	progressConsumer := service.NewProgressConsumer(
		pubSub,
		cfg.Upload.ProgressTopic,
		batchRepo,
		paperRepo,
		libraryService,
	)

	return &Container{
		QueryService:     queryService,
		UploadService:    uploadService,
		LibraryService:   libraryService,
		ProgressConsumer: progressConsumer,
		ConversationRepo: conversationRepo,
		PaperRepo:        paperRepo,
		BatchRepo:        batchRepo,
	}
}

// newPipelineLogger builds the rotating flow logger the query and upload
// flows write their step traces to. Falls back to stderr if the path is
// empty.
func newPipelineLogger(path string) *log.Logger {
	var w io.Writer = os.Stderr
	if path != "" {
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
	}
	return log.New(w, "", log.LstdFlags)
}
