package marketplace

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"lootwatch/internal/config"
)

// Search status options accepted by the trade API.
const (
	StatusAny          = "any"
	StatusOnline       = "online"
	StatusOnlineLeague = "onlineleague"
)

// StatFilter constrains one stat to an optional range.
type StatFilter struct {
	ID       string
	Min      *float64
	Max      *float64
	Disabled bool
}

// StatGroup combines stat filters with a logical operator.
type StatGroup struct {
	Type     string
	Filters  []StatFilter
	Disabled bool
}

// Query is a trade search request. Results are always sorted newest first.
type Query struct {
	Status string
	Stats  []StatGroup
}

// NewQuery builds the search query described by the search config.
func NewQuery(cfg config.Search) Query {
	group := StatGroup{Type: "and"}
	for _, f := range cfg.StatFilters {
		group.Filters = append(group.Filters, StatFilter{ID: f.ID, Min: f.Min, Max: f.Max})
	}
	status := strings.TrimSpace(cfg.Status)
	if status == "" {
		status = StatusAny
	}
	return Query{Status: status, Stats: []StatGroup{group}}
}

// Validate rejects queries the trade API would answer with "Invalid query".
func (q Query) Validate() error {
	switch q.Status {
	case StatusAny, StatusOnline, StatusOnlineLeague:
	default:
		return fmt.Errorf("unsupported status option %q", q.Status)
	}
	var errs []error
	for i, group := range q.Stats {
		switch group.Type {
		case "and", "not", "if", "count", "weight":
		default:
			errs = append(errs, fmt.Errorf("stat group %d: unsupported type %q", i, group.Type))
		}
		for j, filter := range group.Filters {
			if strings.TrimSpace(filter.ID) == "" {
				errs = append(errs, fmt.Errorf("stat group %d filter %d: id is required", i, j))
			}
			if filter.Min != nil && filter.Max != nil && *filter.Min > *filter.Max {
				errs = append(errs, fmt.Errorf("stat group %d filter %s: min exceeds max", i, filter.ID))
			}
		}
	}
	return errors.Join(errs...)
}

type wireQuery struct {
	Query struct {
		Status struct {
			Option string `json:"option"`
		} `json:"status"`
		Stats []wireStatGroup `json:"stats"`
	} `json:"query"`
	Sort map[string]string `json:"sort"`
}

type wireStatGroup struct {
	Type     string           `json:"type"`
	Filters  []wireStatFilter `json:"filters"`
	Disabled bool             `json:"disabled"`
}

type wireStatFilter struct {
	ID       string     `json:"id"`
	Value    *wireRange `json:"value,omitempty"`
	Disabled bool       `json:"disabled"`
}

type wireRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// MarshalJSON encodes the query in the trade API request shape.
func (q Query) MarshalJSON() ([]byte, error) {
	var w wireQuery
	w.Query.Status.Option = q.Status
	w.Query.Stats = make([]wireStatGroup, 0, len(q.Stats))
	for _, group := range q.Stats {
		wg := wireStatGroup{Type: group.Type, Disabled: group.Disabled, Filters: make([]wireStatFilter, 0, len(group.Filters))}
		for _, f := range group.Filters {
			wf := wireStatFilter{ID: f.ID, Disabled: f.Disabled}
			if f.Min != nil || f.Max != nil {
				wf.Value = &wireRange{Min: f.Min, Max: f.Max}
			}
			wg.Filters = append(wg.Filters, wf)
		}
		w.Query.Stats = append(w.Query.Stats, wg)
	}
	w.Sort = map[string]string{"indexed": "desc"}
	return json.Marshal(w)
}
