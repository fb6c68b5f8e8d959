// AngelaMos | 2026
// service.go

package report

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/leadboard/internal/config"
	"github.com/carterperez-dev/leadboard/internal/core"
)

const (
	defaultGroupLimit = 10
	maxGroupLimit     = 100
	creditScoreField  = "data.credit_score"
	overviewTopN      = 5
)

var (
	ErrUnknownDataset = fmt.Errorf("unknown dataset: %w", core.ErrNotFound)
	ErrUnknownField   = fmt.Errorf("field cannot be grouped: %w", core.ErrInvalidInput)

	weekdayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	statusLabels  = []string{"Approved", "Pending", "Rejected"}
	creditBuckets = []creditBucket{
		{300, "300-500"},
		{501, "501-700"},
		{701, "701-850"},
	}
)

type creditBucket struct {
	lower int64
	label string
}

type Service struct {
	store       Store
	datasets    map[string]string
	groupable   map[string]struct{}
	loc         *time.Location
	timeout     time.Duration
	maxPageSize int
	tracer      trace.Tracer
	now         func() time.Time
}

func NewService(store Store, cfg config.ReportsConfig) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load reports timezone: %w", err)
	}

	groupable := make(map[string]struct{}, len(cfg.GroupableFields))
	for _, field := range cfg.GroupableFields {
		groupable[field] = struct{}{}
	}

	return &Service{
		store:       store,
		datasets:    cfg.Datasets,
		groupable:   groupable,
		loc:         loc,
		timeout:     cfg.QueryTimeout,
		maxPageSize: cfg.MaxPageSize,
		tracer:      otel.Tracer("github.com/carterperez-dev/leadboard/internal/report"),
		now:         time.Now,
	}, nil
}

// SetTracer replaces the global tracer used for report spans.
func (s *Service) SetTracer(tracer trace.Tracer) { s.tracer = tracer }

func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) MaxPageSize() int { return s.maxPageSize }

func (s *Service) Now() time.Time { return s.now() }

func (s *Service) collection(dataset string) (string, error) {
	name, ok := s.datasets[dataset]
	if !ok {
		return "", fmt.Errorf("%q: %w", dataset, ErrUnknownDataset)
	}
	return name, nil
}

func (s *Service) start(
	ctx context.Context,
	op, dataset string,
) (context.Context, context.CancelFunc, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "report."+op,
		trace.WithAttributes(attribute.String("report.dataset", dataset)))

	cancel := context.CancelFunc(func() {})
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}

	return ctx, cancel, span
}

func (s *Service) aggregate(
	ctx context.Context,
	collection string,
	pipeline mongo.Pipeline,
) ([]bson.M, error) {
	rows, err := s.store.Aggregate(ctx, collection, pipeline)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}
	return rows, nil
}

// View returns one page of records and the total match count.
func (s *Service) View(
	ctx context.Context,
	dataset string,
	q ViewQuery,
) (*Page, error) {
	collection, err := s.collection(dataset)
	if err != nil {
		return nil, err
	}

	ctx, cancel, span := s.start(ctx, "view", dataset)
	defer span.End()
	defer cancel()

	rows, err := s.aggregate(ctx, collection, q.PagePipeline())
	if err != nil {
		return nil, fmt.Errorf("view %s: %w", dataset, err)
	}

	countRows, err := s.aggregate(ctx, collection, q.CountPipeline())
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", dataset, err)
	}

	var total int64
	if len(countRows) > 0 {
		total = toInt64(countRows[0]["total"])
	}

	span.SetAttributes(attribute.Int64("report.total", total))

	return &Page{
		Data:         rows,
		TotalRecords: total,
		TotalPages:   int64(math.Ceil(float64(total) / float64(q.Limit))),
		CurrentPage:  q.Page,
	}, nil
}

// Export returns every matching record, unpaginated.
func (s *Service) Export(
	ctx context.Context,
	dataset string,
	q ViewQuery,
) ([]bson.M, error) {
	collection, err := s.collection(dataset)
	if err != nil {
		return nil, err
	}

	ctx, cancel, span := s.start(ctx, "export", dataset)
	defer span.End()
	defer cancel()

	rows, err := s.aggregate(ctx, collection, q.ExportPipeline())
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", dataset, err)
	}

	return rows, nil
}

// Counts groups records by field, most frequent first.
func (s *Service) Counts(
	ctx context.Context,
	dataset, field string,
	r *DateRange,
	limit int,
) (*Series, error) {
	collection, err := s.collection(dataset)
	if err != nil {
		return nil, err
	}

	if _, ok := s.groupable[field]; !ok {
		return nil, fmt.Errorf("%q: %w", field, ErrUnknownField)
	}

	if limit < 1 {
		limit = defaultGroupLimit
	}
	limit = min(limit, maxGroupLimit)

	ctx, cancel, span := s.start(ctx, "counts", dataset)
	defer span.End()
	defer cancel()
	span.SetAttributes(attribute.String("report.field", field))

	match := bson.D{{Key: field, Value: bson.D{{Key: "$ne", Value: nil}}}}
	if r != nil {
		match = append(match, r.match(createdAt))
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: int64(limit)}},
	}

	rows, err := s.aggregate(ctx, collection, pipeline)
	if err != nil {
		return nil, fmt.Errorf("counts %s.%s: %w", dataset, field, err)
	}

	series := &Series{
		Labels: make([]string, 0, len(rows)),
		Counts: make([]int64, 0, len(rows)),
	}
	for _, row := range rows {
		series.Labels = append(series.Labels, fmt.Sprint(row["_id"]))
		series.Counts = append(series.Counts, toInt64(row["count"]))
	}

	return series, nil
}

// CreditDistribution buckets credit scores into 300-500, 501-700 and
// 701-850. Scores outside 300-850 are ignored.
func (s *Service) CreditDistribution(
	ctx context.Context,
	dataset string,
	r *DateRange,
) (*Series, error) {
	collection, err := s.collection(dataset)
	if err != nil {
		return nil, err
	}

	ctx, cancel, span := s.start(ctx, "credit_distribution", dataset)
	defer span.End()
	defer cancel()

	match := bson.D{{Key: creditScoreField, Value: bson.D{
		{Key: "$gte", Value: 300},
		{Key: "$lte", Value: 850},
	}}}
	if r != nil {
		match = append(match, r.match(createdAt))
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$bucket", Value: bson.D{
			{Key: "groupBy", Value: "$" + creditScoreField},
			{Key: "boundaries", Value: bson.A{300, 501, 701, 851}},
			{Key: "default", Value: "Other"},
			{Key: "output", Value: bson.D{
				{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			}},
		}}},
	}

	rows, err := s.aggregate(ctx, collection, pipeline)
	if err != nil {
		return nil, fmt.Errorf("credit distribution %s: %w", dataset, err)
	}

	series := &Series{
		Labels: make([]string, len(creditBuckets)),
		Counts: make([]int64, len(creditBuckets)),
	}
	for i, bucket := range creditBuckets {
		series.Labels[i] = bucket.label
	}
	for _, row := range rows {
		lower := toInt64(row["_id"])
		idx := slices.IndexFunc(creditBuckets, func(b creditBucket) bool {
			return b.lower == lower
		})
		if idx >= 0 {
			series.Counts[idx] = toInt64(row["count"])
		}
	}

	return series, nil
}

// LeadSummary counts records per weekday, Monday first, in the reporting
// time zone.
func (s *Service) LeadSummary(
	ctx context.Context,
	dataset string,
	r *DateRange,
) (*LeadSummary, error) {
	collection, err := s.collection(dataset)
	if err != nil {
		return nil, err
	}

	ctx, cancel, span := s.start(ctx, "lead_summary", dataset)
	defer span.End()
	defer cancel()

	match := bson.D{}
	if r != nil {
		match = append(match, r.match(createdAt))
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dayOfWeek", Value: bson.D{
				{Key: "date", Value: "$" + createdAt},
				{Key: "timezone", Value: s.loc.String()},
			}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	rows, err := s.aggregate(ctx, collection, pipeline)
	if err != nil {
		return nil, fmt.Errorf("lead summary %s: %w", dataset, err)
	}

	counts := make([]int64, len(weekdayLabels))
	for _, row := range rows {
		// $dayOfWeek is 1 for Sunday through 7 for Saturday.
		day := toInt64(row["_id"])
		if day < 1 || day > 7 {
			continue
		}
		counts[(day+5)%7] = toInt64(row["count"])
	}

	return &LeadSummary{
		Labels:  slices.Clone(weekdayLabels),
		Counts:  counts,
		Changes: PercentageChanges(counts),
	}, nil
}

// Timeline counts records per calendar day in the reporting time zone,
// oldest first. Days without records are absent. A range is required.
func (s *Service) Timeline(
	ctx context.Context,
	dataset string,
	r *DateRange,
) (*Series, error) {
	collection, err := s.collection(dataset)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("timeline needs a date range: %w", ErrInvalidRange)
	}

	ctx, cancel, span := s.start(ctx, "timeline", dataset)
	defer span.End()
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{r.match(createdAt)}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: "%Y-%m-%d"},
				{Key: "date", Value: "$" + createdAt},
				{Key: "timezone", Value: s.loc.String()},
			}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	rows, err := s.aggregate(ctx, collection, pipeline)
	if err != nil {
		return nil, fmt.Errorf("timeline %s: %w", dataset, err)
	}

	series := &Series{
		Labels: make([]string, 0, len(rows)),
		Counts: make([]int64, 0, len(rows)),
	}
	for _, row := range rows {
		series.Labels = append(series.Labels, fmt.Sprint(row["_id"]))
		series.Counts = append(series.Counts, toInt64(row["count"]))
	}

	return series, nil
}

// Overview builds the dashboard summary in a single $facet aggregation.
// Numeric state codes are shown by name; other region labels pass through.
func (s *Service) Overview(
	ctx context.Context,
	dataset string,
	r *DateRange,
) (*Overview, error) {
	collection, err := s.collection(dataset)
	if err != nil {
		return nil, err
	}

	ctx, cancel, span := s.start(ctx, "overview", dataset)
	defer span.End()
	defer cancel()

	var pipeline mongo.Pipeline
	if r != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.D{r.match(createdAt)}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$facet", Value: overviewFacets()}})

	rows, err := s.aggregate(ctx, collection, pipeline)
	if err != nil {
		return nil, fmt.Errorf("overview %s: %w", dataset, err)
	}

	out := &Overview{
		Status:    make(map[string]int64, len(statusLabels)),
		Geography: Series{Labels: []string{}, Counts: []int64{}},
		Recent:    []bson.M{},
	}
	for _, label := range statusLabels {
		out.Status[label] = 0
	}
	if len(rows) == 0 {
		return out, nil
	}
	facets := rows[0]

	if total := docs(facets["total"]); len(total) > 0 {
		out.Total = toInt64(total[0]["count"])
	}
	if credit := docs(facets["credit"]); len(credit) > 0 {
		if avg, ok := credit[0]["average"].(float64); ok {
			out.AverageCreditScore = int64(math.Floor(avg + 0.5))
		}
	}
	for _, row := range docs(facets["status"]) {
		if label, ok := row["_id"].(string); ok && label != "" {
			out.Status[label] += toInt64(row["count"])
		}
	}
	for _, row := range docs(facets["geography"]) {
		label := regionName(fmt.Sprint(row["_id"]))
		if idx := slices.Index(out.Geography.Labels, label); idx >= 0 {
			out.Geography.Counts[idx] += toInt64(row["count"])
			continue
		}
		out.Geography.Labels = append(out.Geography.Labels, label)
		out.Geography.Counts = append(out.Geography.Counts, toInt64(row["count"]))
	}
	out.Recent = append(out.Recent, docs(facets["recent"])...)

	span.SetAttributes(attribute.Int64("report.total", out.Total))

	return out, nil
}

func overviewFacets() bson.D {
	count := bson.D{{Key: "$sum", Value: 1}}

	return bson.D{
		{Key: "total", Value: bson.A{
			bson.D{{Key: "$count", Value: "count"}},
		}},
		{Key: "credit", Value: bson.A{
			bson.D{{Key: "$match", Value: bson.D{
				{Key: creditScoreField, Value: bson.D{{Key: "$type", Value: "number"}}},
			}}},
			bson.D{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: nil},
				{Key: "average", Value: bson.D{{Key: "$avg", Value: "$" + creditScoreField}}},
			}}},
		}},
		{Key: "status", Value: bson.A{
			bson.D{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: "$approval.status"},
				{Key: "count", Value: count},
			}}},
		}},
		{Key: "geography", Value: bson.A{
			bson.D{{Key: "$group", Value: bson.D{
				{Key: "_id", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$d.comm_state", "$state"}}}},
				{Key: "count", Value: count},
			}}},
			bson.D{{Key: "$match", Value: bson.D{{Key: "_id", Value: bson.D{{Key: "$ne", Value: nil}}}}}},
			bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
			bson.D{{Key: "$limit", Value: int64(overviewTopN)}},
		}},
		{Key: "recent", Value: bson.A{
			bson.D{{Key: "$sort", Value: bson.D{{Key: "lastHit", Value: -1}, {Key: createdAt, Value: -1}}}},
			bson.D{{Key: "$limit", Value: int64(overviewTopN)}},
			bson.D{{Key: "$project", Value: bson.D{
				{Key: "_id", Value: 0},
				{Key: "name", Value: 1},
				{Key: "email", Value: 1},
				{Key: "lastHit", Value: 1},
				{Key: createdAt, Value: 1},
			}}},
		}},
	}
}

// PercentageChanges gives each day's change against the previous day,
// rounded half up. A previous count of zero is treated as one and the first
// day is always zero.
func PercentageChanges(counts []int64) []int64 {
	changes := make([]int64, len(counts))
	for i := 1; i < len(counts); i++ {
		prev := counts[i-1]
		if prev == 0 {
			prev = 1
		}
		pct := float64(counts[i]-prev) / float64(prev) * 100
		changes[i] = int64(math.Floor(pct + 0.5))
	}
	return changes
}
