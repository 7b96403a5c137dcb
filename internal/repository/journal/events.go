package journal

import (
	"context"
	"time"

	mg "edudebt_collection/internal/config/connections/mongo"
	"edudebt_collection/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const EventsCollection = "collection_events"

// Events is the append-only lifecycle journal in Mongo.
type Events struct {
	m *mg.Mongo
}

func NewEvents(m *mg.Mongo) *Events {
	return &Events{m: m}
}

func (j *Events) coll() (*mongo.Collection, error) {
	if j.m == nil || j.m.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}
	return j.m.Database.Collection(EventsCollection), nil
}

// EnsureIndexes creates the per-debt lookup index.
func (j *Events) EnsureIndexes(ctx context.Context) error {
	coll, err := j.coll()
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "debt_id", Value: 1}, {Key: "at", Value: -1}},
	})
	return err
}

func (j *Events) Record(ctx context.Context, e models.Event) error {
	coll, err := j.coll()
	if err != nil {
		return models.StoreError("journal event", err)
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if _, err := coll.InsertOne(ctx, e, options.InsertOne()); err != nil {
		return models.StoreError("journal event "+string(e.Type), err)
	}
	return nil
}

func (j *Events) ListByDebt(ctx context.Context, debtID string, limit int) ([]models.Event, error) {
	coll, err := j.coll()
	if err != nil {
		return nil, models.StoreError("list events", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := coll.Find(ctx, bson.M{"debt_id": debtID}, opts)
	if err != nil {
		return nil, models.StoreError("list events "+debtID, err)
	}
	defer cur.Close(ctx)

	out := make([]models.Event, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, models.StoreError("list events "+debtID, err)
	}
	return out, nil
}
