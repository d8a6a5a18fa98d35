package audit

import (
	"context"
	"fmt"
	"time"
)

// TimelineFilters holds the filters of the audit log page.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Action   string
	Target   string
	Page     int
	PageSize int
}

// TimelineQuery is the repository form of TimelineFilters.
type TimelineQuery struct {
	From   time.Time
	To     time.Time
	Actor  string
	Action string
	Target string
	Offset int32
	Limit  int32
}

// TimelineRow is one line of the audit log page.
type TimelineRow struct {
	At        time.Time
	ActorID   int64
	ActorName string
	Action    string
	Target    string
	Memo      string
	IP        string
	RequestID string
}

// PagingInfo stores simple pagination metadata.
type PagingInfo struct {
	Page     int
	HasNext  bool
	PageSize int
	PrevPage int
	NextPage int
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow
	Paging PagingInfo
}

// ViewModel feeds the audit log template.
type ViewModel struct {
	Filters TimelineFilters
	Rows    []TimelineRow
	Paging  PagingInfo
}

// TimelineRepository reads persisted entries.
type TimelineRepository interface {
	TimelineWindow(ctx context.Context, q TimelineQuery) ([]TimelineRow, error)
}

// Service coordinates audit log reads.
type Service struct {
	repo TimelineRepository
}

// NewService creates an audit timeline service.
func NewService(repo TimelineRepository) *Service {
	return &Service{repo: repo}
}

// Timeline fetches one page of entries, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.TimelineWindow(ctx, TimelineQuery{
		From:   filters.From,
		To:     filters.To,
		Actor:  filters.Actor,
		Action: filters.Action,
		Target: filters.Target,
		Offset: int32((page - 1) * pageSize),
		Limit:  int32(pageSize + 1),
	})
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every entry matching filters, capped at limit rows.
func (s *Service) Export(ctx context.Context, filters TimelineFilters, limit int) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	if limit <= 0 {
		limit = 5000
	}
	return s.repo.TimelineWindow(ctx, TimelineQuery{
		From:   filters.From,
		To:     filters.To,
		Actor:  filters.Actor,
		Action: filters.Action,
		Target: filters.Target,
		Limit:  int32(limit),
	})
}
