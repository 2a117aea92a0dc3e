package service

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/metrics"
	"github.com/pathlab-mcp-server/pkg/refrange"
)

type memoKey struct {
	value          string
	referenceRange string
	gender         domain.Gender
}

// FlagService applies the reference-range classifier to report rows.
type FlagService struct {
	memo     *lru.Cache[memoKey, refrange.Result]
	escalate bool
	logger   *logrus.Logger
}

// NewFlagService creates a flag service. A MemoSize of zero disables
// memoisation.
func NewFlagService(cfg domain.ClassifierConfig, logger *logrus.Logger) (*FlagService, error) {
	s := &FlagService{
		escalate: cfg.CriticalEscalate,
		logger:   logger,
	}
	if cfg.MemoSize > 0 {
		memo, err := lru.New[memoKey, refrange.Result](cfg.MemoSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create classification memo: %w", err)
		}
		s.memo = memo
	}
	return s, nil
}

// Classify classifies a single value.
func (s *FlagService) Classify(value, referenceRange, gender string) refrange.Result {
	if s.memo == nil {
		return refrange.Classify(value, referenceRange, gender)
	}

	key := memoKey{value: value, referenceRange: referenceRange, gender: domain.ParseGender(gender)}
	if res, ok := s.memo.Get(key); ok {
		return res
	}
	res := refrange.Classify(value, referenceRange, string(key.gender))
	s.memo.Add(key, res)
	return res
}

// FlagRows returns a flagged copy of rows. Rows missing a unit or reference
// range take them from the template parameter of the same name. When
// escalation is enabled, a low or high value at or beyond the template's
// panic limit becomes critical.
func (s *FlagService) FlagRows(rows []domain.ResultRow, gender domain.Gender, tmpl *domain.TestTemplate) []domain.ResultRow {
	out := make([]domain.ResultRow, len(rows))
	for i, row := range rows {
		param, hasParam := tmpl.Parameter(row.Parameter)
		if hasParam {
			if row.ReferenceRange == "" {
				row.ReferenceRange = param.ReferenceRange
			}
			if row.Unit == "" {
				row.Unit = param.Unit
			}
		}

		res := s.Classify(row.Value, row.ReferenceRange, string(gender))
		row.Flag = res.Flag
		row.Rule = string(res.Rule)

		if s.escalate && hasParam && exceedsPanicLimit(row, param) {
			row.Flag = domain.FlagCritical
			metrics.CriticalEscalationsTotal.Inc()
			s.logger.WithFields(logrus.Fields{
				"parameter": row.Parameter,
				"value":     row.Value,
			}).Info("Result escalated to critical")
		}

		metrics.FlagsTotal.WithLabelValues(string(row.Flag), row.Rule).Inc()
		out[i] = row
	}
	return out
}

func exceedsPanicLimit(row domain.ResultRow, param domain.TemplateParameter) bool {
	num, ok := refrange.ParseValue(row.Value)
	if !ok {
		return false
	}
	switch row.Flag {
	case domain.FlagLow:
		return param.CriticalLow != nil && num <= *param.CriticalLow
	case domain.FlagHigh:
		return param.CriticalHigh != nil && num >= *param.CriticalHigh
	}
	return false
}

// CountAbnormal returns the number of rows not flagged normal.
func CountAbnormal(rows []domain.ResultRow) int {
	n := 0
	for _, row := range rows {
		if row.Flag.IsAbnormal() {
			n++
		}
	}
	return n
}
