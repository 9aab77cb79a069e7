package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"newsdigest/internal/model"
)

// DefaultCollection holds the articles in MongoDB.
const DefaultCollection = "articles"

// Mongo stores articles as documents with a unique {source, title} index.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo uses collection DefaultCollection of database db.
func NewMongo(client *mongo.Client, db string) *Mongo {
	return &Mongo{client: client, coll: client.Database(db).Collection(DefaultCollection)}
}

// EnsureIndexes creates the uniqueness and read indexes when missing.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "source", Value: 1}, {Key: "title", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("source_title_unique"),
		},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "dateGroup", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}

// Ping implements Backend.
func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: mongo ping: %v", ErrUnavailable, err)
	}
	return nil
}

// Close implements Backend.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Upsert implements Backend with findOneAndUpdate. Two concurrent upserts of
// a new key can both try to insert; the loser gets a duplicate key error and
// is retried once, which then matches the winner's document.
func (m *Mongo) Upsert(ctx context.Context, rec model.Article) (model.Article, error) {
	out, err := m.upsertOnce(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		out, err = m.upsertOnce(ctx, rec)
	}
	if err != nil {
		return model.Article{}, fmt.Errorf("upsert article: %w", err)
	}
	return out, nil
}

func (m *Mongo) upsertOnce(ctx context.Context, rec model.Article) (model.Article, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var out model.Article
	err := m.coll.FindOneAndUpdate(ctx, keyFilter(rec), upsertDocument(rec), opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Article{}, fmt.Errorf("upsert returned no document")
	}
	return out, err
}

// keyFilter selects the document for rec's (source, title).
func keyFilter(rec model.Article) bson.D {
	return bson.D{{Key: "source", Value: rec.Source}, {Key: "title", Value: rec.Title}}
}

// upsertDocument overwrites the mutable fields and sets the identity fields
// only when the document is created.
func upsertDocument(rec model.Article) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "link", Value: rec.Link},
			{Key: "date", Value: rec.PublishedDate},
			{Key: "author", Value: rec.Author},
			{Key: "summary", Value: rec.Summary},
			{Key: "discussionPoints", Value: rec.DiscussionPoints},
			{Key: "updatedAt", Value: rec.UpdatedAt},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "_id", Value: rec.ID},
			{Key: "createdAt", Value: rec.CreatedAt},
			{Key: "dateGroup", Value: rec.DateGroup},
		}},
	}
}

// FindSince implements Backend.
func (m *Mongo) FindSince(ctx context.Context, since time.Time) ([]model.Article, error) {
	filter := bson.D{{Key: "createdAt", Value: bson.D{{Key: "$gt", Value: since}}}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return m.find(ctx, filter, opts)
}

// FindLatest implements Backend.
func (m *Mongo) FindLatest(ctx context.Context, limit int) ([]model.Article, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	return m.find(ctx, bson.D{}, opts)
}

func (m *Mongo) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]model.Article, error) {
	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}
	articles := make([]model.Article, 0)
	if err := cur.All(ctx, &articles); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	return articles, nil
}
