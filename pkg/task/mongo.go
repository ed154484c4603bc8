package task

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sheetshot/sheetshot/pkg/errors"
)

// MongoConfig configures a MongoStore.
type MongoConfig struct {
	URI string
	// Database defaults to "sheetshot".
	Database string
	// Collection defaults to "tasks".
	Collection string
}

// MongoStore keeps task records in a MongoDB collection, keyed by task
// id via the _id field.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = "sheetshot"
	}
	if cfg.Collection == "" {
		cfg.Collection = "tasks"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to reach mongodb")
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

func (s *MongoStore) lock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *MongoStore) dropLock(id string) {
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
}

func (s *MongoStore) Create(ctx context.Context, t *Task) error {
	if _, err := s.coll.InsertOne(ctx, t); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New(errors.ErrCodeInternal, "task %s already exists", t.ID)
		}
		return errors.Wrap(errors.ErrCodeInternal, err, "failed to store task %s", t.ID)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Task, error) {
	var t Task
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, errors.New(errors.ErrCodeTaskNotFound, "task %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to read task %s", id)
	}
	return &t, nil
}

func (s *MongoStore) Update(ctx context.Context, id string, mutate func(*Task) error) (*Task, error) {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(t); err != nil {
		return nil, err
	}

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": id}, t)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to store task %s", id)
	}
	if res.MatchedCount == 0 {
		return nil, errors.New(errors.ErrCodeTaskNotFound, "task %s not found", id)
	}
	return t.Clone(), nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "failed to delete task %s", id)
	}
	if res.DeletedCount == 0 {
		return errors.New(errors.ErrCodeTaskNotFound, "task %s not found", id)
	}
	s.dropLock(id)
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]*Task, error) {
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to list tasks")
	}

	var tasks []*Task
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to decode tasks")
	}
	sortTasks(tasks)
	return tasks, nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

var _ Store = (*MongoStore)(nil)
