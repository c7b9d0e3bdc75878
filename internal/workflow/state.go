package workflow

import (
	"errors"
	"fmt"

	"stockadvisor/internal/types"
)

// Field names one optional RunState slot.
type Field uint8

const (
	FieldNewsItems Field = 1 << iota
	FieldNewsSummary
	FieldFundamentals
	FieldRecommendation
	FieldGuardrail
)

func (f Field) String() string {
	switch f {
	case FieldNewsItems:
		return "news_items"
	case FieldNewsSummary:
		return "news_summary"
	case FieldFundamentals:
		return "fundamentals"
	case FieldRecommendation:
		return "recommendation"
	case FieldGuardrail:
		return "guardrail"
	default:
		return fmt.Sprintf("field(%d)", uint8(f))
	}
}

var (
	// ErrAlreadyWritten is returned when a patch touches a slot that already holds a value.
	ErrAlreadyWritten = errors.New("field already written")
	// ErrUndeclaredWrite is returned when a node writes a slot it did not declare.
	ErrUndeclaredWrite = errors.New("undeclared field write")
)

// RunState 是单次评估的共享状态；可选字段由且仅由一个节点写入一次。
type RunState struct {
	RunID          string
	Request        types.Request
	NewsItems      []types.NewsItem
	NewsSummary    *types.NewsSummary
	Fundamentals   *types.Fundamentals
	Recommendation *types.Recommendation
	Guardrail      *types.GuardrailOutcome

	written Field
}

// NewRunState returns a state with only the request populated.
func NewRunState(runID string, req types.Request) RunState {
	return RunState{RunID: runID, Request: req}
}

// Has reports whether f has been written.
func (s RunState) Has(f Field) bool { return s.written&f != 0 }

// Patch carries the fields one node produced. Nil means "not written".
type Patch struct {
	NewsItems      *[]types.NewsItem
	NewsSummary    *types.NewsSummary
	Fundamentals   *types.Fundamentals
	Recommendation *types.Recommendation
	Guardrail      *types.GuardrailOutcome
}

func (p Patch) fields() Field {
	var f Field
	if p.NewsItems != nil {
		f |= FieldNewsItems
	}
	if p.NewsSummary != nil {
		f |= FieldNewsSummary
	}
	if p.Fundamentals != nil {
		f |= FieldFundamentals
	}
	if p.Recommendation != nil {
		f |= FieldRecommendation
	}
	if p.Guardrail != nil {
		f |= FieldGuardrail
	}
	return f
}

// apply merges p into s. allowed is the set of fields the writing node declared.
func (s *RunState) apply(p Patch, allowed Field) error {
	touched := p.fields()
	if extra := touched &^ allowed; extra != 0 {
		return fmt.Errorf("%w: %s", ErrUndeclaredWrite, fieldList(extra))
	}
	if dup := touched & s.written; dup != 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyWritten, fieldList(dup))
	}
	if p.NewsItems != nil {
		s.NewsItems = cloneItems(*p.NewsItems)
	}
	if p.NewsSummary != nil {
		v := *p.NewsSummary
		s.NewsSummary = &v
	}
	if p.Fundamentals != nil {
		v := *p.Fundamentals
		s.Fundamentals = &v
	}
	if p.Recommendation != nil {
		v := *p.Recommendation
		s.Recommendation = &v
	}
	if p.Guardrail != nil {
		v := *p.Guardrail
		s.Guardrail = &v
	}
	s.written |= touched
	return nil
}

// snapshot returns a copy that nodes may read without holding the merge lock.
func (s RunState) snapshot() RunState {
	if s.NewsItems != nil {
		s.NewsItems = cloneItems(s.NewsItems)
	}
	if s.NewsSummary != nil {
		v := *s.NewsSummary
		v.Sources = append([]types.Source(nil), v.Sources...)
		s.NewsSummary = &v
	}
	return s
}

func cloneItems(in []types.NewsItem) []types.NewsItem {
	out := make([]types.NewsItem, len(in))
	copy(out, in)
	return out
}

var allFields = []Field{FieldNewsItems, FieldNewsSummary, FieldFundamentals, FieldRecommendation, FieldGuardrail}

func fieldList(set Field) string {
	out := ""
	for _, f := range allFields {
		if set&f == 0 {
			continue
		}
		if out != "" {
			out += ","
		}
		out += f.String()
	}
	return out
}
