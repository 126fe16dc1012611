package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"divscan-go/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DatabaseService stores rendered annotations and notification anchors in MongoDB
type DatabaseService struct {
	client        *mongo.Client
	db            *mongo.Database
	annotations   *mongo.Collection
	notifications *mongo.Collection
}

func NewDatabaseService(uri, database string) (*DatabaseService, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &DatabaseService{
		client:        client,
		db:            db,
		annotations:   db.Collection("annotations"),
		notifications: db.Collection("notifications"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	log.Println("✅ MongoDB connected successfully")
	return s, nil
}

func (s *DatabaseService) ensureIndexes(ctx context.Context) error {
	_, err := s.annotations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "symbol", Value: 1},
				{Key: "interval", Value: 1},
				{Key: "kind", Value: 1},
				{Key: "price.start_time", Value: 1},
				{Key: "price.end_time", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create annotation indexes: %w", err)
	}

	_, err = s.notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "symbol", Value: 1},
			{Key: "interval", Value: 1},
			{Key: "kind", Value: 1},
			{Key: "anchor_time", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create notification index: %w", err)
	}
	return nil
}

// annotationFilter identifies a divergence by the bars it connects. Tags are
// not used: they count bars since process start and repeat across restarts.
func annotationFilter(a model.Annotation) bson.M {
	return bson.M{
		"symbol":           a.Symbol,
		"interval":         a.Interval,
		"kind":             a.Kind,
		"price.start_time": a.Price.StartTime,
		"price.end_time":   a.Price.EndTime,
	}
}

// notificationFilter identifies a divergence by its recent price peak, which
// stays fixed while later scans pair it with other older peaks.
func notificationFilter(a model.Annotation) bson.M {
	return bson.M{
		"symbol":      a.Symbol,
		"interval":    a.Interval,
		"kind":        a.Kind,
		"anchor_time": a.Price.EndTime,
	}
}

// Draw stores the annotation; a divergence already stored is left untouched
func (s *DatabaseService) Draw(a model.Annotation) error {
	return s.SaveAnnotation(a)
}

// SaveAnnotation upserts an annotation keyed by the bars it connects
func (s *DatabaseService) SaveAnnotation(a model.Annotation) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := annotationFilter(a)
	update := bson.M{"$setOnInsert": a}
	opts := options.Update().SetUpsert(true)

	result, err := s.annotations.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save annotation: %w", err)
	}

	if result.UpsertedCount > 0 {
		log.Printf("💾 [Database] Annotation saved: %s %s", a.Symbol, a.Tag)
	}
	return nil
}

// Notified reports whether the divergence anchored at the annotation's recent
// price peak has already been sent
func (s *DatabaseService) Notified(a model.Annotation) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := s.notifications.CountDocuments(ctx, notificationFilter(a), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check notification: %w", err)
	}
	return n > 0, nil
}

// MarkNotified records that the divergence anchored at the annotation's recent
// price peak has been sent
func (s *DatabaseService) MarkNotified(a model.Annotation) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := bson.M{"$setOnInsert": bson.M{"tag": a.Tag, "notified_at": time.Now()}}
	opts := options.Update().SetUpsert(true)

	if _, err := s.notifications.UpdateOne(ctx, notificationFilter(a), update, opts); err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

// RecentAnnotations returns the newest annotations, optionally filtered by symbol
func (s *DatabaseService) RecentAnnotations(symbol string, limit int64) ([]model.Annotation, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{}
	if symbol != "" {
		filter["symbol"] = symbol
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := s.annotations.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer cursor.Close(ctx)

	var out []model.Annotation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode annotations: %w", err)
	}
	return out, nil
}

// CountSince counts annotations created after t
func (s *DatabaseService) CountSince(t time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.annotations.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": t}})
}

// Close closes the database connection
func (s *DatabaseService) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	log.Println("🔌 MongoDB connection closed")
	return nil
}

// GetDB returns the MongoDB database instance
func (s *DatabaseService) GetDB() *mongo.Database {
	return s.db
}
