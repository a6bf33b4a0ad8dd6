package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"session-registry/backend/internal/session/domain"
)

// mongoSession is the BSON shape of a session document.
type mongoSession struct {
	SessionID    string    `bson:"session_id"`
	Email        string    `bson:"email"`
	Nickname     string    `bson:"nickname"`
	ClientIP     string    `bson:"client_ip"`
	ClientMAC    string    `bson:"client_mac"`
	ServerIP     string    `bson:"server_ip"`
	ServerMAC    string    `bson:"server_mac"`
	CreatedAt    time.Time `bson:"created_at"`
	LastAccessed time.Time `bson:"last_accessed"`
	Status       string    `bson:"status"`
}

// MongoStore is a Store backed by a MongoDB collection. A unique index on
// session_id makes duplicate-id detection atomic under concurrent writers.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore returns a session store over the "sessions" collection of db
// and ensures the unique session_id index exists.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	coll := db.Collection("sessions")
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &MongoStore{coll: coll}, nil
}

// Create inserts the document. Returns ErrDuplicateID on a unique index conflict.
func (r *MongoStore) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.coll.InsertOne(ctx, toMongo(s))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateID
	}
	return err
}

// Get returns the session for id, or nil if not found.
func (r *MongoStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	var doc mongoSession
	err := r.coll.FindOne(ctx, bson.M{"session_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromMongo(&doc), nil
}

// Update merges the given fields into the document and returns the updated
// record. The IfStatus predicate is part of the FindOneAndUpdate filter, so
// the check-and-write is atomic at the database; last_accessed uses $max and
// never moves backwards. Returns ErrNotFound if the id is unknown and
// ErrStatusConflict if IfStatus no longer matches.
func (r *MongoStore) Update(ctx context.Context, id string, upd Update) (*domain.Session, error) {
	change := bson.M{}
	if upd.Status != nil {
		change["$set"] = bson.M{"status": string(*upd.Status)}
	}
	if upd.LastAccessed != nil {
		change["$max"] = bson.M{"last_accessed": *upd.LastAccessed}
	}
	if len(change) == 0 {
		s, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, ErrNotFound
		}
		if upd.IfStatus != nil && s.Status != *upd.IfStatus {
			return nil, ErrStatusConflict
		}
		return s, nil
	}

	filter := bson.M{"session_id": id}
	if upd.IfStatus != nil {
		filter["status"] = string(*upd.IfStatus)
	}

	var doc mongoSession
	err := r.coll.FindOneAndUpdate(ctx,
		filter,
		change,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if upd.IfStatus != nil {
			cur, gerr := r.Get(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			if cur != nil {
				return nil, ErrStatusConflict
			}
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromMongo(&doc), nil
}

// Remove deletes the document. Returns ErrNotFound if the id is unknown.
func (r *MongoStore) Remove(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"session_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll returns every record sorted by creation time.
func (r *MongoStore) ListAll(ctx context.Context) ([]*domain.Session, error) {
	return r.find(ctx, bson.M{})
}

// ListByStatus returns the records with the given status in creation order.
func (r *MongoStore) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Session, error) {
	return r.find(ctx, bson.M{"status": string(status)})
}

// Clear removes every document unconditionally.
func (r *MongoStore) Clear(ctx context.Context) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{})
	return err
}

func (r *MongoStore) find(ctx context.Context, filter bson.M) ([]*domain.Session, error) {
	cur, err := r.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "session_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*domain.Session
	for cur.Next(ctx) {
		var doc mongoSession
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, fromMongo(&doc))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func toMongo(s *domain.Session) *mongoSession {
	return &mongoSession{
		SessionID:    s.SessionID,
		Email:        s.Email,
		Nickname:     s.Nickname,
		ClientIP:     s.ClientNetwork.IP,
		ClientMAC:    s.ClientNetwork.MAC,
		ServerIP:     s.ServerNetwork.IP,
		ServerMAC:    s.ServerNetwork.MAC,
		CreatedAt:    s.CreatedAt,
		LastAccessed: s.LastAccessed,
		Status:       string(s.Status),
	}
}

func fromMongo(doc *mongoSession) *domain.Session {
	return &domain.Session{
		SessionID:     doc.SessionID,
		Email:         doc.Email,
		Nickname:      doc.Nickname,
		ClientNetwork: domain.NetworkInfo{IP: doc.ClientIP, MAC: doc.ClientMAC},
		ServerNetwork: domain.NetworkInfo{IP: doc.ServerIP, MAC: doc.ServerMAC},
		CreatedAt:     doc.CreatedAt,
		LastAccessed:  doc.LastAccessed,
		Status:        domain.Status(doc.Status),
	}
}
