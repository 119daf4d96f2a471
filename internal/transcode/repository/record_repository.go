package repository

import (
	"context"
	"errors"

	"media_transcode_service/internal/transcode/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RecordRepository 持久層的窄介面，file metadata 與 job progress 都以 owner 作為分區鍵
type RecordRepository interface {
	// SaveFileRecord upsert 一筆 file metadata（(owner, file_name) 唯一）
	SaveFileRecord(ctx context.Context, rec *domain.FileRecord) error
	// ListFileRecords 以 owner 掃描該用戶全部檔案，不會碰到其他用戶的資料
	ListFileRecords(ctx context.Context, owner string) ([]domain.FileRecord, error)
	// ListAllFileRecords 管理端列出所有用戶的檔案
	ListAllFileRecords(ctx context.Context) ([]domain.FileRecord, error)
	// DeleteFileRecord 刪除 metadata，找不到時回傳 domain.ErrNotFound
	DeleteFileRecord(ctx context.Context, owner, fileName string) error

	// SaveProgress upsert 一筆 job progress（point lookup key = (owner, job_id)）
	SaveProgress(ctx context.Context, p *domain.JobProgress) error
	// GetProgress point lookup，找不到時回傳 domain.ErrNotFound
	GetProgress(ctx context.Context, owner, jobID string) (*domain.JobProgress, error)
	// DeleteProgressByFile 刪檔案時順帶清掉關聯的 progress rows
	DeleteProgressByFile(ctx context.Context, owner, fileName string) error
}

type mongoRecordRepository struct {
	files    *mongo.Collection
	progress *mongo.Collection
}

// NewMongoRecordRepository create a RecordRepository
func NewMongoRecordRepository(db *mongo.Database) RecordRepository {
	return &mongoRecordRepository{
		files:    db.Collection("file_records"),
		progress: db.Collection("job_progress"),
	}
}

// SaveFileRecord - upsert 檔案 metadata
func (r *mongoRecordRepository) SaveFileRecord(ctx context.Context, rec *domain.FileRecord) error {
	filter := bson.M{"owner": rec.Owner, "file_name": rec.FileName}
	update := bson.M{"$set": rec}
	opts := options.Update().SetUpsert(true)
	_, err := r.files.UpdateOne(ctx, filter, update, opts)
	return err
}

func (r *mongoRecordRepository) ListFileRecords(ctx context.Context, owner string) ([]domain.FileRecord, error) {
	filter := bson.M{"owner": owner}
	opts := options.Find()
	opts.SetSort(bson.M{"upload_time": 1})
	cur, err := r.files.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var records []domain.FileRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *mongoRecordRepository) ListAllFileRecords(ctx context.Context) ([]domain.FileRecord, error) {
	cur, err := r.files.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var records []domain.FileRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *mongoRecordRepository) DeleteFileRecord(ctx context.Context, owner, fileName string) error {
	res, err := r.files.DeleteOne(ctx, bson.M{"owner": owner, "file_name": fileName})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveProgress - upsert job progress row
func (r *mongoRecordRepository) SaveProgress(ctx context.Context, p *domain.JobProgress) error {
	filter := bson.M{"owner": p.Owner, "job_id": p.JobID}
	update := bson.M{"$set": p}
	opts := options.Update().SetUpsert(true)
	_, err := r.progress.UpdateOne(ctx, filter, update, opts)
	return err
}

func (r *mongoRecordRepository) GetProgress(ctx context.Context, owner, jobID string) (*domain.JobProgress, error) {
	filter := bson.M{"owner": owner, "job_id": jobID}
	var p domain.JobProgress
	err := r.progress.FindOne(ctx, filter).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *mongoRecordRepository) DeleteProgressByFile(ctx context.Context, owner, fileName string) error {
	_, err := r.progress.DeleteMany(ctx, bson.M{"owner": owner, "file_name": fileName})
	return err
}
