package search

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/omniql-engine/hfql/engine/executor"
	"github.com/omniql-engine/hfql/engine/models"
	"github.com/omniql-engine/hfql/mapping"
)

// MongoSearcher searches FHIR JSON documents stored one collection per
// resource type, with WHERE pushed down as a filter
type MongoSearcher struct {
	db       *mongo.Database
	searches *searchRegistry[mongoSearch]
}

type mongoSearch struct {
	collection string
	filter     bson.M
}

var _ executor.Searcher = (*MongoSearcher)(nil)

// NewMongoSearcher creates a searcher over db
func NewMongoSearcher(db *mongo.Database, opts ...SearcherOption) *MongoSearcher {
	return &MongoSearcher{db: db, searches: newSearchRegistry[mongoSearch](opts)}
}

// CollectionName returns the collection holding a resource type (Patient -> patients)
func CollectionName(resourceType string) string {
	return inflection.Plural(strings.ToLower(resourceType))
}

// Search builds the filter and remembers it under a new search id. No query
// runs until the first window is fetched.
func (m *MongoSearcher) Search(_ context.Context, resourceType string, where []models.WhereClause) (executor.SearchProvider, error) {
	filter, err := BuildFilter(resourceType, where)
	if err != nil {
		return nil, err
	}

	search := mongoSearch{collection: CollectionName(resourceType), filter: filter}
	id := m.searches.add(search)

	log.WithFields(log.Fields{
		"searchId":   id,
		"collection": search.collection,
		"filter":     filter,
	}).Debug("Mongo search")

	return m.provider(id, search), nil
}

// Resume returns a provider for a search started by this searcher
func (m *MongoSearcher) Resume(_ context.Context, searchID string) (executor.SearchProvider, error) {
	search, ok := m.searches.get(searchID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSearchNotFound, searchID)
	}
	return m.provider(searchID, search), nil
}

func (m *MongoSearcher) provider(id string, search mongoSearch) *mongoProvider {
	return &mongoProvider{id: id, coll: m.db.Collection(search.collection), filter: search.filter}
}

type mongoProvider struct {
	id     string
	coll   *mongo.Collection
	filter bson.M
}

// FetchWindow reads [from, to) in _id order
func (p *mongoProvider) FetchWindow(ctx context.Context, from, to int) ([]models.Resource, error) {
	if to <= from {
		return nil, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(from)).
		SetLimit(int64(to - from))

	cursor, err := p.coll.Find(ctx, p.filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", p.coll.Name(), err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.coll.Name(), err)
	}

	resources := make([]models.Resource, 0, len(docs))
	for _, doc := range docs {
		resources = append(resources, DocumentToResource(doc))
	}
	return resources, nil
}

func (p *mongoProvider) SearchID() string {
	return p.id
}

// ============================================================================
// FILTER BUILDING
// ============================================================================

// BuildFilter translates WHERE terms into a MongoDB filter
func BuildFilter(resourceType string, where []models.WhereClause) (bson.M, error) {
	conditions, err := resolveConditions(resourceType, where)
	if err != nil {
		return nil, err
	}
	if len(conditions) == 0 {
		return bson.M{}, nil
	}

	filters := make([]bson.M, 0, len(conditions))
	for _, cond := range conditions {
		filters = append(filters, buildSingleConditionFilter(cond))
	}
	if len(filters) == 1 {
		return filters[0], nil
	}
	and := bson.A{}
	for _, f := range filters {
		and = append(and, f)
	}
	return bson.M{"$and": and}, nil
}

func buildSingleConditionFilter(cond condition) bson.M {
	field := cond.param.Field

	switch cond.operator {
	case opMissing:
		return bson.M{field: bson.M{"$exists": !strings.EqualFold(cond.values[0], "true")}}
	case string(models.OperatorUnaryBoolean):
		return bson.M{field: bson.M{"$exists": true, "$ne": false}}
	case opContains:
		return bson.M{field: primitive.Regex{Pattern: regexp.QuoteMeta(cond.values[0]), Options: "i"}}
	case string(models.OperatorEquals):
		return bson.M{field: equalityValue(cond, cond.values[0])}
	case string(models.OperatorIn):
		values := bson.A{}
		for _, v := range cond.values {
			values = append(values, equalityValue(cond, v))
		}
		return bson.M{field: bson.M{"$in": values}}
	}

	op := mapping.OperatorMap["MongoDB"][cond.operator]
	if cond.operator == opNotEquals {
		return bson.M{field: bson.M{op: equalityValue(cond, cond.values[0])}}
	}
	return bson.M{field: bson.M{op: ParseMongoValue(cond.values[0])}}
}

// equalityValue matches strings case-insensitively unless the exact modifier
// is given; references also match by their id part
func equalityValue(cond condition, value string) any {
	switch {
	case isOrdered(cond.param):
		return ParseMongoValue(value)
	case cond.param.Type == "reference":
		return primitive.Regex{Pattern: "(^|/)" + regexp.QuoteMeta(value) + "$"}
	case cond.modifier == "exact":
		return value
	}
	if cond.param.Type == "token" && (value == "true" || value == "false") {
		return value == "true"
	}
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(value) + "$", Options: "i"}
}

// ParseMongoValue converts a literal into a number when it parses as one
func ParseMongoValue(value string) any {
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

// ============================================================================
// DOCUMENT CONVERSION
// ============================================================================

// DocumentToResource converts a decoded document into a resource, dropping the
// store's own _id and normalizing BSON types to their JSON equivalents
func DocumentToResource(doc bson.M) models.Resource {
	res := models.Resource{}
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		res[k] = normalize(v)
	}
	return res
}

// normalize converts bson values to the shapes DecodeResource produces.
// Integers and Decimal128 become json.Number; BSON doubles have no written
// form and stay float64.
func normalize(v any) any {
	switch val := v.(type) {
	case bson.M:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[k] = normalize(e)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(val))
		for _, e := range val {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case int32:
		return json.Number(strconv.FormatInt(int64(val), 10))
	case int64:
		return json.Number(strconv.FormatInt(val, 10))
	case primitive.DateTime:
		return val.Time().UTC().Format("2006-01-02T15:04:05.000Z")
	case primitive.ObjectID:
		return val.Hex()
	case primitive.Decimal128:
		// Decimal128 keeps its scale, so 1.50 stays 1.50
		text := val.String()
		if _, err := strconv.ParseFloat(text, 64); err == nil {
			return json.Number(text)
		}
		return text
	}
	return v
}
