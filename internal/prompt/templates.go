package prompt

// Set 是一组完整的 system/user 模板（text/template 语法）。
type Set struct {
	SummarizeSystem string `yaml:"summarize_system"`
	SummarizeUser   string `yaml:"summarize_user"`
	RecommendSystem string `yaml:"recommend_system"`
	RecommendUser   string `yaml:"recommend_user"`
}

// merge returns s with every empty field taken from base.
func (s Set) merge(base Set) Set {
	if s.SummarizeSystem == "" {
		s.SummarizeSystem = base.SummarizeSystem
	}
	if s.SummarizeUser == "" {
		s.SummarizeUser = base.SummarizeUser
	}
	if s.RecommendSystem == "" {
		s.RecommendSystem = base.RecommendSystem
	}
	if s.RecommendUser == "" {
		s.RecommendUser = base.RecommendUser
	}
	return s
}

// Defaults are used for any template the override file leaves out.
func Defaults() Set {
	return Set{
		SummarizeSystem: defaultSummarizeSystem,
		SummarizeUser:   defaultSummarizeUser,
		RecommendSystem: defaultRecommendSystem,
		RecommendUser:   defaultRecommendUser,
	}
}

const defaultSummarizeSystem = `You are a financial news analyst. Condense news articles into key insights relevant to investment decisions.
Respond with a single JSON object: {"summary": string, "sources": [{"title": string, "url": string}]}.
Only cite sources that appear in the provided articles, in the order you relied on them.`

const defaultSummarizeUser = `Summarize the following news articles about {{.Ticker}} stock.
{{- if .Items}}
{{range $i, $it := .Items}}
[{{inc $i}}] {{$it.Title}}
URL: {{$it.URL}}
{{$it.Content}}
{{end}}
{{- else}}
There is no recent news available for {{.Ticker}}. Say so in the summary and return an empty sources list.
{{- end}}
Provide key insights relevant to investment decisions.`

const defaultRecommendSystem = `You are a research assistant that helps users decide on investment strategies.
You analyze recent news and company fundamentals for a given ticker symbol and, based on the user's
risk appetite, investment experience and time horizon, suggest exactly one action: "Buy" or "Not Buy".
Respond with a single JSON object: {"action": "Buy" | "Not Buy", "reasoning": string}.
Provide a detailed reasoning for your suggestion.`

const defaultRecommendUser = `Ticker Symbol: {{.Ticker}}
Risk Appetite: {{.RiskAppetite}}
Investment Experience: {{if .Experience}}{{.Experience}}{{else}}not specified{{end}}
Time Horizon: {{.TimeHorizon}}

Company Fundamentals:
- Sector: {{.Fundamentals.Sector}}
- Industry: {{.Fundamentals.Industry}}
- Market Capitalization: {{num .Fundamentals.MarketCap}}
- P/E Ratio: {{num .Fundamentals.PERatio}}
- PEG Ratio: {{num .Fundamentals.PEGRatio}}
- Book Value: {{num .Fundamentals.BookValue}}
- Dividend Yield: {{num .Fundamentals.DividendYield}}
- Dividend Per Share: {{num .Fundamentals.DividendPerShare}}
- EPS: {{num .Fundamentals.EPS}}
- Beta: {{num .Fundamentals.Beta}}
- Description: {{.Fundamentals.Description}}

Recent News Summary:
{{.NewsSummary}}`
