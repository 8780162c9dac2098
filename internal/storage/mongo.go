package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"inkquiry/internal/domain"
)

// MongoPageStore keeps pages the way the notebook backend does: as a
// notebook_pages array on the owner's document in the users collection.
type MongoPageStore struct {
	client *mongo.Client
	users  *mongo.Collection
	owner  string
}

type mongoPage struct {
	ID          string        `bson:"id"`
	Name        string        `bson:"name"`
	DateCreated time.Time     `bson:"date_created"`
	Content     []mongoResult `bson:"content"`
	CanvasData  *string       `bson:"canvas_data"`
}

type mongoResult struct {
	Expression string `bson:"expression"`
	Answer     string `bson:"answer"`
}

// OpenMongo connects to uri and stores pages under the users document
// whose email is owner. The database name comes from the URI path and
// defaults to "inkquiry".
func OpenMongo(ctx context.Context, uri, owner string) (*MongoPageStore, error) {
	dbName := mongoDatabase(uri)
	log.Printf("[MONGO] Database: %s", dbName)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return NewMongoPageStore(client, dbName, owner), nil
}

func NewMongoPageStore(client *mongo.Client, dbName, owner string) *MongoPageStore {
	return &MongoPageStore{
		client: client,
		users:  client.Database(dbName).Collection("users"),
		owner:  owner,
	}
}

// mongoDatabase extracts the database from user:pass@host/DB_NAME?params.
func mongoDatabase(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.LastIndex(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	if slash := strings.Index(rest, "/"); slash != -1 {
		path := rest[slash+1:]
		if q := strings.Index(path, "?"); q != -1 {
			path = path[:q]
		}
		if path != "" {
			return path
		}
	}
	return "inkquiry"
}

func (s *MongoPageStore) ownerFilter() bson.M {
	return bson.M{"email": s.owner}
}

func (s *MongoPageStore) ListPages(ctx context.Context) ([]domain.Page, error) {
	var doc struct {
		NotebookPages []mongoPage `bson:"notebook_pages"`
	}
	err := s.users.FindOne(ctx, s.ownerFilter()).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	pages := make([]domain.Page, 0, len(doc.NotebookPages))
	for _, mp := range doc.NotebookPages {
		pages = append(pages, mp.toDomain())
	}
	return pages, nil
}

func (s *MongoPageStore) CreatePage(ctx context.Context, p *domain.Page) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	update := bson.M{
		"$push":        bson.M{"notebook_pages": toMongoPage(p)},
		"$setOnInsert": bson.M{"created_at": time.Now().UTC()},
	}
	_, err := s.users.UpdateOne(ctx, s.ownerFilter(), update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

func (s *MongoPageStore) UpdatePage(ctx context.Context, p *domain.Page) error {
	filter := bson.M{"email": s.owner, "notebook_pages.id": p.ID}
	update := bson.M{"$set": bson.M{"notebook_pages.$": toMongoPage(p)}}
	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update page %s: %w", p.ID, ErrPageNotFound)
	}
	return nil
}

func (s *MongoPageStore) DeletePage(ctx context.Context, id string) error {
	update := bson.M{"$pull": bson.M{"notebook_pages": bson.M{"id": id}}}
	if _, err := s.users.UpdateOne(ctx, s.ownerFilter(), update); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return nil
}

func (s *MongoPageStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toMongoPage(p *domain.Page) mongoPage {
	mp := mongoPage{
		ID:          p.ID,
		Name:        p.Name,
		DateCreated: p.CreatedAt.UTC(),
		Content:     make([]mongoResult, 0, len(p.Results)),
	}
	for _, r := range p.Results {
		mp.Content = append(mp.Content, mongoResult{Expression: r.Expression, Answer: r.Answer})
	}
	if !p.Snapshot.IsZero() {
		s := string(p.Snapshot)
		mp.CanvasData = &s
	}
	return mp
}

func (mp mongoPage) toDomain() domain.Page {
	p := domain.Page{
		ID:        mp.ID,
		Name:      mp.Name,
		CreatedAt: mp.DateCreated,
		Results:   make([]domain.Result, 0, len(mp.Content)),
	}
	for _, r := range mp.Content {
		p.Results = append(p.Results, domain.Result{Expression: r.Expression, Answer: r.Answer})
	}
	if mp.CanvasData != nil {
		p.Snapshot = domain.Snapshot(*mp.CanvasData)
	}
	return p
}
