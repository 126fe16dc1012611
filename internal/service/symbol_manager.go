package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SymbolManager persists the watchlist of scanned symbols
type SymbolManager struct {
	collection *mongo.Collection
}

type WatchedSymbol struct {
	Symbol   string    `bson:"symbol"`
	AddedAt  time.Time `bson:"added_at"`
	IsActive bool      `bson:"is_active"`
}

// NewSymbolManager seeds the watchlist with defaults when it is empty
func NewSymbolManager(db *mongo.Database, defaults []string) *SymbolManager {
	sm := &SymbolManager{
		collection: db.Collection("watchlist"),
	}
	sm.initializeDefaults(defaults)
	return sm
}

func (sm *SymbolManager) initializeDefaults(defaults []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := sm.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		log.Printf("⚠️ Failed to check watchlist count: %v", err)
		return
	}
	if count > 0 {
		return
	}

	log.Println("🌱 Seeding default watchlist...")
	for _, s := range defaults {
		if err := sm.AddSymbol(s); err != nil {
			log.Printf("⚠️ Failed to seed %s: %v", s, err)
		}
	}
}

// NormalizeSymbol upper-cases a symbol and checks it is a USDT pair
func NormalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if len(symbol) <= len("USDT") || !strings.HasSuffix(symbol, "USDT") {
		return "", fmt.Errorf("symbol must be a USDT pair, got %q", symbol)
	}
	return symbol, nil
}

// AddSymbol adds a symbol to the watchlist or reactivates it
func (sm *SymbolManager) AddSymbol(symbol string) error {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{"symbol": symbol}
	update := bson.M{
		"$set":         bson.M{"symbol": symbol, "is_active": true},
		"$setOnInsert": bson.M{"added_at": time.Now()},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := sm.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to add symbol: %w", err)
	}

	log.Printf("✅ Added %s to watchlist", symbol)
	return nil
}

// RemoveSymbol deactivates a symbol; it stops being scanned on the next poll
func (sm *SymbolManager) RemoveSymbol(symbol string) error {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := sm.collection.UpdateOne(ctx, bson.M{"symbol": symbol}, bson.M{"$set": bson.M{"is_active": false}})
	if err != nil {
		return fmt.Errorf("failed to remove symbol: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%s is not in the watchlist", symbol)
	}

	log.Printf("🗑️ Removed %s from watchlist", symbol)
	return nil
}

// GetWatchlist returns all active symbols
func (sm *SymbolManager) GetWatchlist() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "symbol", Value: 1}})
	cursor, err := sm.collection.Find(ctx, bson.M{"is_active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []WatchedSymbol
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(results))
	for _, s := range results {
		symbols = append(symbols, s.Symbol)
	}
	return symbols, nil
}
