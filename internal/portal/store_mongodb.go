package portal

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDBStore stores portal records in MongoDB, one collection per record type.
type MongoDBStore struct {
	users     *mongo.Collection
	answers   *mongo.Collection
	summaries *mongo.Collection
}

// NewMongoDBStore creates collection indexes if needed.
func NewMongoDBStore(database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	s := &MongoDBStore{
		users:     database.Collection("users"),
		answers:   database.Collection("answers"),
		summaries: database.Collection("summaries"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "verification_status", Value: 1}}},
			{Keys: bson.D{{Key: "client_id", Value: 1}}},
		},
		s.answers: {
			{Keys: bson.D{{Key: "vendor_id", Value: 1}, {Key: "question_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		s.summaries: {
			{Keys: bson.D{{Key: "vendor_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return nil, fmt.Errorf("create %s indexes: %w", coll.Name(), err)
		}
	}
	return s, nil
}

func userFilterDoc(f UserFilter) bson.M {
	filter := bson.M{}
	if len(f.Roles) > 0 {
		filter["role"] = bson.M{"$in": roleStrings(f.Roles)}
	}
	if f.Status != "" {
		filter["verification_status"] = string(f.Status)
	}
	if f.ClientID != "" {
		filter["client_id"] = f.ClientID
	}
	if f.NameContains != "" {
		filter["name"] = bson.Regex{Pattern: regexp.QuoteMeta(f.NameContains), Options: "i"}
	}
	if f.EmailContains != "" {
		filter["email"] = bson.Regex{Pattern: regexp.QuoteMeta(f.EmailContains), Options: "i"}
	}
	return filter
}

func (s *MongoDBStore) CreateUser(ctx context.Context, u *User) error {
	doc := *u
	doc.Email = normalizeEmail(u.Email)
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoDBStore) findUser(ctx context.Context, filter bson.M) (*User, error) {
	var u User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (s *MongoDBStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoDBStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.findUser(ctx, bson.M{"email": normalizeEmail(email)})
}

func (s *MongoDBStore) ListUsers(ctx context.Context, f UserFilter) ([]*User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.users.Find(ctx, userFilterDoc(f), opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]*User, 0)
	for cursor.Next(ctx) {
		var u User
		if err := cursor.Decode(&u); err != nil {
			return nil, fmt.Errorf("decode user document: %w", err)
		}
		users = append(users, &u)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate users cursor: %w", err)
	}
	return users, nil
}

func (s *MongoDBStore) CountUsers(ctx context.Context, f UserFilter) (int, error) {
	n, err := s.users.CountDocuments(ctx, userFilterDoc(f))
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return int(n), nil
}

func (s *MongoDBStore) UpdateUser(ctx context.Context, u *User) error {
	result, err := s.users.UpdateOne(ctx,
		bson.M{"_id": u.ID},
		bson.M{"$set": bson.M{
			"verification_status":  string(u.VerificationStatus),
			"client_id":            u.ClientID,
			"questionnaire_status": u.QuestionnaireStatus,
		}},
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser runs its deletes in sequence; standalone servers have no
// multi-document transactions.
func (s *MongoDBStore) DeleteUser(ctx context.Context, id string) error {
	result, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := s.answers.DeleteMany(ctx, bson.M{"vendor_id": id}); err != nil {
		return fmt.Errorf("delete user answers: %w", err)
	}
	if _, err := s.summaries.DeleteMany(ctx, bson.M{"vendor_id": id}); err != nil {
		return fmt.Errorf("delete user summary: %w", err)
	}
	if _, err := s.users.UpdateMany(ctx, bson.M{"client_id": id}, bson.M{"$set": bson.M{"client_id": ""}}); err != nil {
		return fmt.Errorf("detach vendors: %w", err)
	}
	return nil
}

func (s *MongoDBStore) SaveAnswer(ctx context.Context, a *Answer) (bool, error) {
	proposed := a.ID
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored Answer
	err := s.answers.FindOneAndUpdate(ctx,
		bson.M{"vendor_id": a.VendorID, "question_key": a.QuestionKey},
		bson.M{
			"$set": bson.M{
				"answer_type": string(a.AnswerType),
				"file_key":    a.FileKey,
				"comment":     a.Comment,
				"updated_at":  a.UpdatedAt,
			},
			"$setOnInsert": bson.M{"_id": a.ID, "created_at": a.CreatedAt},
		},
		opts,
	).Decode(&stored)
	if err != nil {
		return false, fmt.Errorf("save answer: %w", err)
	}
	a.ID = stored.ID
	a.CreatedAt = stored.CreatedAt
	return a.ID == proposed, nil
}

func (s *MongoDBStore) GetAnswer(ctx context.Context, id string) (*Answer, error) {
	var a Answer
	if err := s.answers.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query answer: %w", err)
	}
	return &a, nil
}

func (s *MongoDBStore) UpdateAnswer(ctx context.Context, a *Answer) error {
	result, err := s.answers.UpdateOne(ctx,
		bson.M{"_id": a.ID},
		bson.M{"$set": bson.M{
			"question_key": a.QuestionKey,
			"answer_type":  string(a.AnswerType),
			"file_key":     a.FileKey,
			"comment":      a.Comment,
			"updated_at":   a.UpdatedAt,
		}},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("update answer: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDBStore) DeleteAnswer(ctx context.Context, id string) error {
	result, err := s.answers.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoDBStore) ListAnswers(ctx context.Context, vendorID string) ([]*Answer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.answers.Find(ctx, bson.M{"vendor_id": vendorID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer cursor.Close(ctx)

	answers := make([]*Answer, 0)
	for cursor.Next(ctx) {
		var a Answer
		if err := cursor.Decode(&a); err != nil {
			return nil, fmt.Errorf("decode answer document: %w", err)
		}
		answers = append(answers, &a)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers cursor: %w", err)
	}
	return answers, nil
}

func (s *MongoDBStore) CountAnswers(ctx context.Context, vendorIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(vendorIDs))
	if len(vendorIDs) == 0 {
		return counts, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"vendor_id": bson.M{"$in": vendorIDs}}}},
		{{Key: "$group", Value: bson.M{"_id": "$vendor_id", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.answers.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int    `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode answer count: %w", err)
		}
		counts[row.ID] = row.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate answer counts: %w", err)
	}
	return counts, nil
}

func (s *MongoDBStore) SaveSummary(ctx context.Context, sum *Summary) error {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored Summary
	err := s.summaries.FindOneAndUpdate(ctx,
		bson.M{"vendor_id": sum.VendorID},
		bson.M{
			"$set":         bson.M{"parsed_content": sum.ParsedContent},
			"$setOnInsert": bson.M{"_id": sum.ID, "created_at": sum.CreatedAt},
		},
		opts,
	).Decode(&stored)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	sum.ID = stored.ID
	sum.CreatedAt = stored.CreatedAt
	return nil
}

func (s *MongoDBStore) LatestSummary(ctx context.Context, vendorID string) (*Summary, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var sum Summary
	if err := s.summaries.FindOne(ctx, bson.M{"vendor_id": vendorID}, opts).Decode(&sum); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query summary: %w", err)
	}
	return &sum, nil
}

func (s *MongoDBStore) ListSummaries(ctx context.Context, vendorIDs []string) ([]*Summary, error) {
	out := make([]*Summary, 0)
	if len(vendorIDs) == 0 {
		return out, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.summaries.Find(ctx, bson.M{"vendor_id": bson.M{"$in": vendorIDs}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var sum Summary
		if err := cursor.Decode(&sum); err != nil {
			return nil, fmt.Errorf("decode summary document: %w", err)
		}
		out = append(out, &sum)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries cursor: %w", err)
	}
	return out, nil
}

func (s *MongoDBStore) CountSummaries(ctx context.Context) (int, error) {
	n, err := s.summaries.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count summaries: %w", err)
	}
	return int(n), nil
}

// Close is a no-op; Mongo client lifecycle is managed by storage layer.
func (s *MongoDBStore) Close() error {
	return nil
}
