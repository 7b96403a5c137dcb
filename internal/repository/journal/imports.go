package journal

import (
	"context"
	"fmt"
	"log"
	"time"

	mg "edudebt_collection/internal/config/connections/mongo"
	"edudebt_collection/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ImportRecordsCollection     = "import_records"
	ImportRecordItemsCollection = "import_record_items"
)

// Imports stores import records and their per-row items.
type Imports struct {
	m *mg.Mongo
}

func NewImports(m *mg.Mongo) *Imports {
	return &Imports{m: m}
}

func (j *Imports) db() (*mongo.Database, error) {
	if j.m == nil || j.m.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}
	return j.m.Database, nil
}

func (j *Imports) CreateRecord(ctx context.Context, rec models.ImportRecord) (string, error) {
	db, err := j.db()
	if err != nil {
		return "", models.StoreError("create import record", err)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = models.ImportStatusParsed
	}

	res, err := db.Collection(ImportRecordsCollection).InsertOne(ctx, rec, options.InsertOne())
	if err != nil {
		return "", models.StoreError("create import record", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

// idFilter matches both ObjectId and plain string ids.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

func (j *Imports) FindRecord(ctx context.Context, id string) (models.ImportRecord, error) {
	db, err := j.db()
	if err != nil {
		return models.ImportRecord{}, models.StoreError("find import record", err)
	}

	var out models.ImportRecord
	err = db.Collection(ImportRecordsCollection).FindOne(ctx, idFilter(id)).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return models.ImportRecord{}, fmt.Errorf("import record %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.ImportRecord{}, models.StoreError("find import record "+id, err)
	}
	out.ID = id
	return out, nil
}

func (j *Imports) SetStatus(ctx context.Context, id, status string, count int, errs string) error {
	if id == "" {
		return nil
	}
	db, err := j.db()
	if err != nil {
		return models.StoreError("update import record", err)
	}

	set := bson.M{"status": status, "updated_at": time.Now().UTC()}
	if count > 0 {
		set["count"] = count
	}
	if errs != "" {
		set["errors"] = errs
	}
	res, err := db.Collection(ImportRecordsCollection).UpdateOne(ctx, idFilter(id), bson.M{"$set": set})
	if err != nil {
		return models.StoreError("update import record "+id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("import record %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (j *Imports) LogItem(ctx context.Context, item models.ImportItem) error {
	db, err := j.db()
	if err != nil {
		return models.StoreError("log import item", err)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if _, err := db.Collection(ImportRecordItemsCollection).InsertOne(ctx, item); err != nil {
		log.Printf("[PROC][%s][MONGO][ERR] id=%s status=%s err=%v", item.ModelType, item.ModelID, item.Status, err)
		return models.StoreError("log import item", err)
	}
	return nil
}
