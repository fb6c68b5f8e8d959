// AngelaMos | 2026
// query.go

package report

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/carterperez-dev/leadboard/internal/core"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"

	defaultPage   = 1
	defaultLimit  = 10
	defaultSortBy = "createdAt"
	createdAt     = "createdAt"
)

var (
	ErrInvalidFormat = fmt.Errorf("invalid format: %w", core.ErrInvalidInput)
	ErrInvalidSort   = fmt.Errorf("invalid sort field: %w", core.ErrInvalidInput)

	fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)
)

// ViewQuery is a parsed record listing request.
type ViewQuery struct {
	Name      string
	Email     string
	Mobile    string
	AppID     string
	Range     *DateRange
	Page      int
	Limit     int
	SortBy    string
	SortOrder int
	Format    string
}

// ParseViewQuery reads listing parameters. Malformed page and limit values
// fall back to their defaults; limit is capped at maxLimit.
func ParseViewQuery(
	values url.Values,
	now time.Time,
	loc *time.Location,
	maxLimit int,
) (ViewQuery, error) {
	q := ViewQuery{
		Name:      strings.TrimSpace(values.Get("name")),
		Email:     strings.TrimSpace(values.Get("email")),
		Mobile:    strings.TrimSpace(values.Get("mobile")),
		AppID:     strings.TrimSpace(values.Get("app_id")),
		Page:      positiveInt(values.Get("page"), defaultPage),
		Limit:     positiveInt(values.Get("limit"), defaultLimit),
		SortBy:    values.Get("sortBy"),
		SortOrder: -1,
		Format:    values.Get("format"),
	}

	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	if q.SortBy == "" {
		q.SortBy = defaultSortBy
	}
	if !fieldPattern.MatchString(q.SortBy) {
		return ViewQuery{}, fmt.Errorf("%q: %w", q.SortBy, ErrInvalidSort)
	}

	if values.Get("sortOrder") == "asc" {
		q.SortOrder = 1
	}

	switch q.Format {
	case "":
		q.Format = FormatJSON
	case FormatJSON, FormatCSV:
	default:
		return ViewQuery{}, fmt.Errorf("%q: %w", q.Format, ErrInvalidFormat)
	}

	r, err := ResolveRange(
		values.Get("dateRange"),
		firstNonEmpty(values.Get("customStartDate"), values.Get("startDate")),
		firstNonEmpty(values.Get("customEndDate"), values.Get("endDate")),
		now,
		loc,
	)
	if err != nil {
		return ViewQuery{}, err
	}
	q.Range = r

	return q, nil
}

func (q ViewQuery) Skip() int {
	return (q.Page - 1) * q.Limit
}

// filterStages matches name and email by substring, mobile and app_id by
// prefix on their string form, and createdAt by range.
func (q ViewQuery) filterStages() mongo.Pipeline {
	match := bson.D{}
	if q.Name != "" {
		match = append(match, bson.E{Key: "name", Value: containsPattern(q.Name)})
	}
	if q.Email != "" {
		match = append(match, bson.E{Key: "email", Value: containsPattern(q.Email)})
	}
	if q.Range != nil {
		match = append(match, q.Range.match(createdAt))
	}

	stages := mongo.Pipeline{{{Key: "$match", Value: match}}}

	if q.Mobile == "" && q.AppID == "" {
		return stages
	}

	stages = append(stages, bson.D{{Key: "$addFields", Value: bson.D{
		{Key: "mobileStr", Value: bson.D{{Key: "$toString", Value: "$mobile"}}},
		{Key: "appIdStr", Value: bson.D{{Key: "$toString", Value: "$app_id"}}},
	}}})

	prefix := bson.D{}
	if q.Mobile != "" {
		prefix = append(prefix, bson.E{Key: "mobileStr", Value: prefixPattern(q.Mobile)})
	}
	if q.AppID != "" {
		prefix = append(prefix, bson.E{Key: "appIdStr", Value: prefixPattern(q.AppID)})
	}

	return append(stages,
		bson.D{{Key: "$match", Value: prefix}},
		bson.D{{Key: "$project", Value: bson.D{
			{Key: "mobileStr", Value: 0},
			{Key: "appIdStr", Value: 0},
		}}},
	)
}

func (q ViewQuery) sortStage() bson.D {
	keys := bson.D{{Key: q.SortBy, Value: q.SortOrder}}
	if q.SortBy != "_id" {
		keys = append(keys, bson.E{Key: "_id", Value: q.SortOrder})
	}
	return bson.D{{Key: "$sort", Value: keys}}
}

// PagePipeline returns one page of matching records.
func (q ViewQuery) PagePipeline() mongo.Pipeline {
	return append(q.filterStages(),
		q.sortStage(),
		bson.D{{Key: "$skip", Value: int64(q.Skip())}},
		bson.D{{Key: "$limit", Value: int64(q.Limit)}},
	)
}

// ExportPipeline returns every matching record.
func (q ViewQuery) ExportPipeline() mongo.Pipeline {
	return append(q.filterStages(), q.sortStage())
}

func (q ViewQuery) CountPipeline() mongo.Pipeline {
	return append(q.filterStages(), bson.D{{Key: "$count", Value: "total"}})
}

func containsPattern(s string) bson.Regex {
	return bson.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

func prefixPattern(s string) bson.Regex {
	return bson.Regex{Pattern: "^" + regexp.QuoteMeta(s), Options: "i"}
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
