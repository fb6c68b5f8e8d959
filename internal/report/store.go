// AngelaMos | 2026
// store.go

package report

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/carterperez-dev/leadboard/internal/core"
)

// Store runs aggregation pipelines against a named collection.
type Store interface {
	Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error)
}

type mongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) Store {
	return &mongoStore{db: db}
}

func (s *mongoStore) Aggregate(
	ctx context.Context,
	collection string,
	pipeline mongo.Pipeline,
) ([]bson.M, error) {
	cursor, err := s.db.Collection(collection).Aggregate(
		ctx,
		pipeline,
		options.Aggregate().SetAllowDiskUse(true),
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w: %w", collection, core.ErrDependency, err)
	}

	rows := make([]bson.M, 0)
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", collection, core.ErrDependency, err)
	}

	return rows, nil
}

// toInt64 reads a numeric aggregation result.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// docs reads a facet result, which the driver may hand back as bson.A of
// either bson.D or bson.M.
func docs(v any) []bson.M {
	var arr []any
	switch a := v.(type) {
	case bson.A:
		arr = a
	case []any:
		arr = a
	default:
		return nil
	}

	out := make([]bson.M, 0, len(arr))
	for _, item := range arr {
		switch doc := item.(type) {
		case bson.M:
			out = append(out, doc)
		case bson.D:
			m := make(bson.M, len(doc))
			for _, e := range doc {
				m[e.Key] = e.Value
			}
			out = append(out, m)
		}
	}
	return out
}
