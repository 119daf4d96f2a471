package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"media_transcode_service/internal/transcode/api/handlers"
	"media_transcode_service/internal/transcode/api/router"
	"media_transcode_service/internal/transcode/app"
	"media_transcode_service/internal/transcode/repository"
	"media_transcode_service/pkg/config"
	"media_transcode_service/pkg/database"
	"media_transcode_service/pkg/logger"
	testtool "media_transcode_service/pkg/test_tool"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.TranscodeService, config.EnvConfig.TranscodeServiceLogPath)

	cfg := config.LoadConfig[config.Transcode](config.EnvConfig.TranscodeService, config.EnvConfig.TranscodeServiceYAMLPath)

	testtool.StartPprof()

	// 1. 連線 MongoDB
	mongoURI := fmt.Sprintf("mongodb://%s:%s@%s:%d",
		cfg.Mongo.User, cfg.Mongo.Password, cfg.Mongo.Host, cfg.Mongo.Port)
	mongoDB, err := database.NewMongoDB(context.Background(), database.Connection{
		ConnectStr:    mongoURI,
		RetryCount:    cfg.Mongo.RetryCount,
		RetryInterval: time.Duration(cfg.Mongo.RetryInterval),
	}, cfg.Mongo.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.Mongo.Host, cfg.Mongo.Port)),
			zap.Error(err),
		)
	}
	defer mongoDB.Close(context.Background())

	// 2. 連線 Redis（sentinel）
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// 3. 初始化 MinIO 客戶端
	minioClient, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:   fmt.Sprintf("%s:%d", cfg.MinIO.Host, cfg.MinIO.Port),
		User:       cfg.MinIO.User,
		Password:   cfg.MinIO.Password,
		BucketName: cfg.MinIO.BucketName,
		UseSSL:     cfg.MinIO.UseSSL,

		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: time.Duration(cfg.MinIO.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to minio after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.MinIO.Host, cfg.MinIO.Port)),
			zap.Error(err),
		)
	}

	// 4. 建立 Kafka Writer，活動事件是輔助功能，連不上就跳過
	kafkaWriter, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.Topic,
		RetryCount:    cfg.Kafka.RetryCount,
		RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
	})
	if err != nil {
		logger.Log.Warn(fmt.Sprintf("Kafka Writer 建立失敗，活動事件停用: %v", err))
		kafkaWriter = nil
	} else {
		defer kafkaWriter.Close()
	}

	// 5. 組裝轉碼管線
	recordRepo := repository.NewMongoRecordRepository(mongoDB.Database)
	progressCache := repository.NewRedisProgressCache(redisClient, cfg.Cache.ProgressTTL, cfg.Cache.FileListTTL)
	activity := repository.NewKafkaActivityProducer(kafkaWriter)

	sm := app.NewJobStateMachine(recordRepo, progressCache)
	worker := app.NewTranscodeWorker(sm, minioClient, app.NewFFmpegEngine(), activity, "")
	pool := app.NewWorkerPool(worker, cfg.Pool.MaxConcurrent, cfg.Pool.QueueDepth, cfg.Pool.JobTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	usecase := app.NewTranscodeUseCase(recordRepo, progressCache, sm, pool, minioClient, activity)
	transcodeHandler := handlers.NewTranscodeHandler(usecase)

	// 6. 建立 Fiber 應用
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.TranscodeServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r, transcodeHandler)

	logger.Log.Info(fmt.Sprintf("TranscodeService listening on : %s", cfg.Port))
	if err := r.Listen(cfg.IP + ":" + cfg.Port); err != nil {
		logger.Log.Fatal("Server failed to start", zap.Error(err))
	}
}
