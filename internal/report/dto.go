// AngelaMos | 2026
// dto.go

package report

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

type Page struct {
	Data         []bson.M `json:"data"`
	TotalRecords int64    `json:"totalRecords"`
	TotalPages   int64    `json:"totalPages"`
	CurrentPage  int      `json:"currentPage"`
}

// Series is a chart-ready label/count pair list.
type Series struct {
	Labels []string `json:"labels"`
	Counts []int64  `json:"counts"`
}

type LeadSummary struct {
	Labels  []string `json:"labels"`
	Counts  []int64  `json:"counts"`
	Changes []int64  `json:"changes"`
}

// Overview is the dataset dashboard: totals, status split, top regions and
// the latest activity.
type Overview struct {
	Total              int64            `json:"total"`
	AverageCreditScore int64            `json:"averageCreditScore"`
	Status             map[string]int64 `json:"status"`
	Geography          Series           `json:"geography"`
	Recent             []bson.M         `json:"recent"`
}
