package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/chickenstock/internal/domain/models"
)

// Repository defines the interface for summary storage.
type Repository interface {
	SaveDailySummaries(ctx context.Context, summaries []models.DailySummary) error
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client   *mongo.Client
	dbName   string
	collName string
}

// summaryDocument is the stored shape of a DailySummary.
type summaryDocument struct {
	Date           time.Time            `bson:"date"`
	Company        string               `bson:"company"`
	Entries        int                  `bson:"entries"`
	Birds          int64                `bson:"birds"`
	Weight         primitive.Decimal128 `bson:"weight"`
	Value          primitive.Decimal128 `bson:"value"`
	Collection     int64                `bson:"collection"`
	ClosingBalance primitive.Decimal128 `bson:"closing_balance"`
	UpdatedAt      time.Time            `bson:"updated_at"`
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client:   client,
		dbName:   dbName,
		collName: "daily_summaries",
	}, nil
}

// SaveDailySummaries upserts one document per company and day.
func (r *MongoDBRepository) SaveDailySummaries(ctx context.Context, summaries []models.DailySummary) error {
	collection := r.client.Database(r.dbName).Collection(r.collName)
	now := time.Now().UTC()

	for _, s := range summaries {
		doc, err := toDocument(s, now)
		if err != nil {
			return err
		}

		filter := bson.M{"date": doc.Date, "company": doc.Company}
		update := bson.M{"$set": doc}
		if _, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
			return fmt.Errorf("failed to upsert %s summary: %w", s.Company, err)
		}
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func toDocument(s models.DailySummary, now time.Time) (summaryDocument, error) {
	weight, err := toDecimal128(s.Weight)
	if err != nil {
		return summaryDocument{}, err
	}
	value, err := toDecimal128(s.Value)
	if err != nil {
		return summaryDocument{}, err
	}
	closing, err := toDecimal128(s.ClosingBalance)
	if err != nil {
		return summaryDocument{}, err
	}

	return summaryDocument{
		Date:           s.Date,
		Company:        string(s.Company),
		Entries:        s.Entries,
		Birds:          s.Birds,
		Weight:         weight,
		Value:          value,
		Collection:     s.Collection,
		ClosingBalance: closing,
		UpdatedAt:      now,
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to decimal128: %w", d.String(), err)
	}
	return v, nil
}
