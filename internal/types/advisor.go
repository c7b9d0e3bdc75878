package types

import (
	"fmt"
	"strings"
)

// RiskAppetite 表示用户可承受的风险等级。
type RiskAppetite string

const (
	RiskLow    RiskAppetite = "Low"
	RiskMedium RiskAppetite = "Medium"
	RiskHigh   RiskAppetite = "High"
)

// TimeHorizon 表示投资期限。
type TimeHorizon string

const (
	HorizonShort  TimeHorizon = "Short-term"
	HorizonMedium TimeHorizon = "Medium-term"
	HorizonLong   TimeHorizon = "Long-term"
)

// InvestmentExperience is optional; an empty value means the user did not say.
type InvestmentExperience string

const (
	ExperienceBeginner     InvestmentExperience = "Beginner"
	ExperienceIntermediate InvestmentExperience = "Intermediate"
	ExperienceExpert       InvestmentExperience = "Expert"
)

// Action is the suggested investment action.
type Action string

const (
	ActionBuy    Action = "Buy"
	ActionNotBuy Action = "Not Buy"
)

// ParseRiskAppetite accepts the canonical names case-insensitively.
func ParseRiskAppetite(raw string) (RiskAppetite, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	default:
		return "", fmt.Errorf("invalid risk appetite %q", raw)
	}
}

// ParseTimeHorizon accepts "Short-term" as well as the short forms "Short", "short_term".
func ParseTimeHorizon(raw string) (TimeHorizon, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	switch strings.TrimSuffix(s, "-term") {
	case "short":
		return HorizonShort, nil
	case "medium":
		return HorizonMedium, nil
	case "long":
		return HorizonLong, nil
	default:
		return "", fmt.Errorf("invalid time horizon %q", raw)
	}
}

// ParseInvestmentExperience returns "" for an empty input.
func ParseInvestmentExperience(raw string) (InvestmentExperience, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", nil
	case "beginner":
		return ExperienceBeginner, nil
	case "intermediate":
		return ExperienceIntermediate, nil
	case "expert":
		return ExperienceExpert, nil
	default:
		return "", fmt.Errorf("invalid investment experience %q", raw)
	}
}

// ParseAction maps LLM wording onto the two supported actions.
func ParseAction(raw string) (Action, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	switch s {
	case "buy":
		return ActionBuy, nil
	case "not buy", "notbuy", "dont buy", "do not buy", "hold", "sell":
		return ActionNotBuy, nil
	default:
		return "", fmt.Errorf("invalid action %q", raw)
	}
}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Request is an accepted evaluation request. Values are normalized by NewRequest
// and are not changed afterwards.
type Request struct {
	Ticker       string
	RiskAppetite RiskAppetite
	TimeHorizon  TimeHorizon
	Experience   InvestmentExperience
}

// NewRequest validates and normalizes the raw request fields.
func NewRequest(ticker, risk, horizon, experience string) (Request, error) {
	sym := NormalizeTicker(ticker)
	if sym == "" {
		return Request{}, fmt.Errorf("ticker symbol is required")
	}
	r, err := ParseRiskAppetite(risk)
	if err != nil {
		return Request{}, err
	}
	h, err := ParseTimeHorizon(horizon)
	if err != nil {
		return Request{}, err
	}
	exp, err := ParseInvestmentExperience(experience)
	if err != nil {
		return Request{}, err
	}
	return Request{Ticker: sym, RiskAppetite: r, TimeHorizon: h, Experience: exp}, nil
}

// NewsItem is one search hit.
type NewsItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Source references a news article used in a summary.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// NewsSummary is the condensed view of the recent news for one run.
type NewsSummary struct {
	Summary string   `json:"summary"`
	Sources []Source `json:"sources"`
}

// Fundamentals 描述公司基本面；数值字段缺失时为 nil。
type Fundamentals struct {
	Description      string   `json:"description"`
	MarketCap        *float64 `json:"market_cap,omitempty"`
	PERatio          *float64 `json:"pe_ratio,omitempty"`
	PEGRatio         *float64 `json:"peg_ratio,omitempty"`
	BookValue        *float64 `json:"book_value,omitempty"`
	DividendYield    *float64 `json:"dividend_yield,omitempty"`
	DividendPerShare *float64 `json:"dividend_per_share,omitempty"`
	EPS              *float64 `json:"eps,omitempty"`
	Beta             *float64 `json:"beta,omitempty"`
	Sector           string   `json:"sector"`
	Industry         string   `json:"industry"`
}

// Recommendation is the reasoning provider's suggestion before the guardrail.
type Recommendation struct {
	Action    Action `json:"action"`
	Reasoning string `json:"reasoning"`
}

// GuardrailOutcome records whether the guardrail changed the suggested action.
type GuardrailOutcome struct {
	Triggered       bool   `json:"triggered"`
	Reason          string `json:"reason,omitempty"`
	EffectiveAction Action `json:"effective_action"`
}

// RecommendInput is everything the recommendation step may look at.
type RecommendInput struct {
	Ticker       string
	RiskAppetite RiskAppetite
	TimeHorizon  TimeHorizon
	Experience   InvestmentExperience
	Fundamentals Fundamentals
	NewsSummary  NewsSummary
}
