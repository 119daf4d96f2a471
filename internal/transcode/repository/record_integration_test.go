package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"media_transcode_service/internal/transcode/domain"
	"media_transcode_service/pkg/database"
	"media_transcode_service/pkg/logger"
	testtool "media_transcode_service/pkg/test_tool"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// **測試用的容器**
var (
	records RecordRepository
	cache   ProgressCache
)

// **TestMain 初始化測試環境**
func TestMain(m *testing.M) {
	ctx := context.Background()
	logger.SetNewNop()

	// **啟動 MongoDB**
	mongoContainer, mongoHost, mongoPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "mongo:latest",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	})
	if err != nil {
		log.Fatalf("❌ Failed to start MongoDB container: %v", err)
	}
	fmt.Printf("✅ MongoDB running at %s:%s\n", mongoHost, mongoPort)

	// **啟動 Redis**
	redisContainer, redisHost, redisPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "redis:latest",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	})
	if err != nil {
		log.Fatalf("❌ Failed to start Redis container: %v", err)
	}
	fmt.Printf("✅ Redis running at %s:%s\n", redisHost, redisPort)

	// **初始化 MongoDB**
	mongo, err := database.NewMongoDB(ctx, database.Connection{
		ConnectStr:    fmt.Sprintf("mongodb://%s:%s", mongoHost, mongoPort),
		RetryCount:    5,
		RetryInterval: 5,
	}, "test_transcode_db")
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongo.Close(ctx)

	// **初始化 Redis**
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort),
		DB:   0,
	})

	records = NewMongoRecordRepository(mongo.Database)
	cache = NewRedisProgressCache(redisClient, 60*time.Second, time.Hour)

	// **執行測試**
	code := m.Run()

	// **清理測試環境**
	_ = mongoContainer.Terminate(ctx)
	_ = redisContainer.Terminate(ctx)

	os.Exit(code)
}

func TestRecordRepository_FileRecords(t *testing.T) {
	ctx := context.Background()

	rec := &domain.FileRecord{
		Owner:      "alice",
		FileName:   "movie.mov",
		Format:     "mov",
		UploadTime: time.Now().Truncate(time.Millisecond),
		JobID:      "alice_1700000000000",
		Status:     "uploaded",
	}
	assert.NoError(t, records.SaveFileRecord(ctx, rec))

	// upsert：同一個 (owner, file_name) 再寫一次不會長出第二筆
	rec.Status = "processing"
	assert.NoError(t, records.SaveFileRecord(ctx, rec))

	files, err := records.ListFileRecords(ctx, "alice")
	assert.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "processing", files[0].Status)

	// 其他 owner 看不到
	files, err = records.ListFileRecords(ctx, "bob")
	assert.NoError(t, err)
	assert.Len(t, files, 0)

	assert.NoError(t, records.DeleteFileRecord(ctx, "alice", "movie.mov"))
	assert.ErrorIs(t, records.DeleteFileRecord(ctx, "alice", "movie.mov"), domain.ErrNotFound)
}

func TestRecordRepository_Progress(t *testing.T) {
	ctx := context.Background()

	p := &domain.JobProgress{
		JobID:       "alice_1700000000001",
		Owner:       "alice",
		FileName:    "clip.mov",
		State:       domain.JobTranscoding,
		Percent:     40,
		LastUpdated: time.Now().Truncate(time.Millisecond),
	}
	assert.NoError(t, records.SaveProgress(ctx, p))

	got, err := records.GetProgress(ctx, "alice", p.JobID)
	assert.NoError(t, err)
	assert.Equal(t, domain.JobTranscoding, got.State)
	assert.Equal(t, 40, got.Percent)

	// upsert 後讀到新值
	p.State = domain.JobCompleted
	p.Percent = 100
	assert.NoError(t, records.SaveProgress(ctx, p))
	got, err = records.GetProgress(ctx, "alice", p.JobID)
	assert.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, got.State)

	_, err = records.GetProgress(ctx, "alice", "alice_999")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, records.DeleteProgressByFile(ctx, "alice", "clip.mov"))
	_, err = records.GetProgress(ctx, "alice", p.JobID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProgressCache_RoundTrip(t *testing.T) {
	ctx := context.Background()

	p := &domain.JobProgress{
		JobID:    "alice_1700000000002",
		Owner:    "alice",
		FileName: "clip.mov",
		State:    domain.JobTranscoding,
		Percent:  55,
	}
	cache.SetProgress(ctx, p)

	got, ok := cache.GetProgress(ctx, "alice", p.JobID)
	assert.True(t, ok)
	assert.Equal(t, 55, got.Percent)

	cache.InvalidateProgress(ctx, "alice", p.JobID)
	_, ok = cache.GetProgress(ctx, "alice", p.JobID)
	assert.False(t, ok)
}

func TestProgressCache_FileList(t *testing.T) {
	ctx := context.Background()

	files := []domain.FileRecord{
		{Owner: "alice", FileName: "a.mov"},
		{Owner: "alice", FileName: "b.mov"},
	}
	cache.SetFileList(ctx, "alice", files)

	got, ok := cache.GetFileList(ctx, "alice")
	assert.True(t, ok)
	assert.Len(t, got, 2)

	cache.InvalidateFileList(ctx, "alice")
	_, ok = cache.GetFileList(ctx, "alice")
	assert.False(t, ok)

	// 沒寫過的 owner 是 miss
	_, ok = cache.GetFileList(ctx, "bob")
	assert.False(t, ok)
}
