// Package mongostore stores daily summaries in MongoDB, one document per
// account per day.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/cognicore/handlepulse/pkg/pulse/analytics"
	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
	"github.com/cognicore/handlepulse/pkg/pulse/store"
)

// Config selects the database and collection.
type Config struct {
	URI        string
	Database   string
	Collection string
}

type mongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// document is the stored shape of a summary.
type document struct {
	ID          string                 `bson:"_id"`
	Handle      string                 `bson:"handle"`
	Date        string                 `bson:"date"`
	RunID       string                 `bson:"run_id,omitempty"`
	Total       int                    `bson:"total"`
	Categories  []analytics.LabelCount `bson:"categories"`
	Buckets     []analytics.LabelCount `bson:"buckets"`
	Keywords    []analytics.LabelCount `bson:"keywords"`
	TopPosts    []analytics.PostRef    `bson:"top_posts"`
	TopHashtags []analytics.TermCount  `bson:"top_hashtags"`
	TopMentions []analytics.TermCount  `bson:"top_mentions"`
	TopWords    []analytics.TermCount  `bson:"top_words"`
	GeneratedAt time.Time              `bson:"generated_at"`
}

// Open connects to MongoDB and ensures the (handle, date) unique index.
func Open(ctx context.Context, cfg Config) (store.Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "handle", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &mongoStore{client: client, coll: coll}, nil
}

func (s *mongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *mongoStore) SaveSummary(ctx context.Context, sum *analytics.AccountSummary) error {
	if sum.Handle == "" || sum.Date == "" {
		return fmt.Errorf("%w: summary needs handle and date", internalerr.ErrInvalidInput)
	}

	id := sum.ID
	if id == "" {
		id = store.NewID()
	}
	filter := bson.D{{Key: "handle", Value: sum.Handle}, {Key: "date", Value: sum.Date}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "run_id", Value: sum.RunID},
			{Key: "total", Value: sum.Total},
			{Key: "categories", Value: sum.Categories},
			{Key: "buckets", Value: sum.Buckets},
			{Key: "keywords", Value: sum.Keywords},
			{Key: "top_posts", Value: sum.TopPosts},
			{Key: "top_hashtags", Value: sum.TopHashtags},
			{Key: "top_mentions", Value: sum.TopMentions},
			{Key: "top_words", Value: sum.TopWords},
			{Key: "generated_at", Value: sum.GeneratedAt.UTC()},
		}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "_id", Value: id}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc document
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return fmt.Errorf("save summary %s/%s: %w", sum.Handle, sum.Date, err)
	}
	sum.ID = doc.ID
	return nil
}

func (s *mongoStore) GetSummary(ctx context.Context, handle, date string) (analytics.AccountSummary, bool, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.D{{Key: "handle", Value: handle}, {Key: "date", Value: date}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return analytics.AccountSummary{}, false, nil
	}
	if err != nil {
		return analytics.AccountSummary{}, false, err
	}
	return doc.summary(), true, nil
}

func (s *mongoStore) ListSummaries(ctx context.Context, date string) ([]analytics.AccountSummary, error) {
	cur, err := s.coll.Find(ctx,
		bson.D{{Key: "date", Value: date}},
		options.Find().SetSort(bson.D{{Key: "handle", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]analytics.AccountSummary, len(docs))
	for i, d := range docs {
		out[i] = d.summary()
	}
	return out, nil
}

func (d document) summary() analytics.AccountSummary {
	return analytics.AccountSummary{
		ID:          d.ID,
		Handle:      d.Handle,
		Date:        d.Date,
		RunID:       d.RunID,
		Total:       d.Total,
		Categories:  d.Categories,
		Buckets:     d.Buckets,
		Keywords:    d.Keywords,
		TopPosts:    d.TopPosts,
		TopHashtags: d.TopHashtags,
		TopMentions: d.TopMentions,
		TopWords:    d.TopWords,
		GeneratedAt: d.GeneratedAt.UTC(),
	}
}
