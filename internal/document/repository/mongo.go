package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docuchain/docuchain-backend/internal/document"
)

// MongoRepo implements a MongoDB-backed repository for documents.
type MongoRepo struct {
	col *mongo.Collection
}

// NewMongoRepo prepares the collection indexes. Blob address and ledger doc
// id are unique across active and inactive documents alike.
func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "ledgerDocId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "ipfsHash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "ownerId", Value: 1}}},
		{Keys: bson.D{{Key: "sharedWith.userId", Value: 1}}},
	})
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Create(ctx context.Context, doc *document.Document) error {
	now := time.Now()
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	doc.Active = true
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := m.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (m *MongoRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*document.Document, error) {
	var d document.Document
	err := m.col.FindOne(ctx, bson.M{"_id": id, "active": true}).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (m *MongoRepo) FindByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]*document.Document, error) {
	return m.find(ctx, bson.M{"ownerId": ownerID, "active": true})
}

func (m *MongoRepo) FindSharedWith(ctx context.Context, userID primitive.ObjectID) ([]*document.Document, error) {
	return m.find(ctx, bson.M{"sharedWith.userId": userID, "active": true})
}

func (m *MongoRepo) find(ctx context.Context, filter bson.M) ([]*document.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}

func (m *MongoRepo) Update(ctx context.Context, doc *document.Document) error {
	doc.UpdatedAt = time.Now()
	set := bson.M{
		"title":      doc.Title,
		"sharedWith": doc.SharedWith,
		"updatedAt":  doc.UpdatedAt,
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": doc.ID, "active": true}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.col.UpdateOne(ctx,
		bson.M{"_id": id, "active": true},
		bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) IncrementDownload(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := m.col.UpdateOne(ctx,
		bson.M{"_id": id, "active": true},
		bson.M{
			"$inc": bson.M{"downloadCount": 1},
			"$set": bson.M{"lastAccessed": at, "updatedAt": at},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
