// Package prompt 管理推理用的提示词模板，支持 YAML 覆盖文件热更新。
package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"stockadvisor/internal/logger"
	"stockadvisor/internal/types"
)

// SummarizeData feeds the summarize_* templates.
type SummarizeData struct {
	Ticker string
	Items  []types.NewsItem
}

// RecommendData feeds the recommend_* templates.
type RecommendData struct {
	Ticker       string
	RiskAppetite types.RiskAppetite
	TimeHorizon  types.TimeHorizon
	Experience   types.InvestmentExperience
	Fundamentals types.Fundamentals
	NewsSummary  string
}

type compiled struct {
	version         int64
	loadedAt        time.Time
	summarizeSystem *template.Template
	summarizeUser   *template.Template
	recommendSystem *template.Template
	recommendUser   *template.Template
}

// Registry holds the active compiled templates. Safe for concurrent use.
type Registry struct {
	path string
	v    *viper.Viper

	mu  sync.RWMutex
	cur *compiled
}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"num": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	},
}

// NewRegistry 加载默认模板；path 非空且文件存在时叠加覆盖并监听变更。
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: strings.TrimSpace(path)}
	if r.path == "" {
		return r, r.apply(Defaults())
	}
	if _, err := os.Stat(r.path); errors.Is(err, os.ErrNotExist) {
		logger.Warnf("prompt file %s not found, using built-in templates", r.path)
		return r, r.apply(Defaults())
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Watch reloads the override file on change; a broken edit keeps the previous templates.
func (r *Registry) Watch() {
	if r == nil || r.path == "" || r.v != nil {
		return
	}
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		logger.Warnf("prompt watch disabled for %s: %v", r.path, err)
		return
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("prompt reload failed (%s): %v", evt.Name, err)
		}
	})
	v.WatchConfig()
	r.v = v
}

func (r *Registry) reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read prompt file: %w", err)
	}
	set, err := decodeSet(raw)
	if err != nil {
		return fmt.Errorf("parse prompt file %s: %w", filepath.Base(r.path), err)
	}
	if err := r.apply(set.merge(Defaults())); err != nil {
		return err
	}
	logger.Infof("prompt templates reloaded from %s", filepath.Base(r.path))
	return nil
}

func decodeSet(raw []byte) (Set, error) {
	var set Set
	if len(bytes.TrimSpace(raw)) == 0 {
		return set, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil {
		return Set{}, err
	}
	return set, nil
}

func (r *Registry) apply(set Set) error {
	next := &compiled{loadedAt: time.Now()}
	parts := []struct {
		name string
		text string
		dst  **template.Template
	}{
		{"summarize_system", set.SummarizeSystem, &next.summarizeSystem},
		{"summarize_user", set.SummarizeUser, &next.summarizeUser},
		{"recommend_system", set.RecommendSystem, &next.recommendSystem},
		{"recommend_user", set.RecommendUser, &next.recommendUser},
	}
	for _, p := range parts {
		tpl, err := template.New(p.name).Funcs(funcs).Option("missingkey=error").Parse(p.text)
		if err != nil {
			return fmt.Errorf("compile %s: %w", p.name, err)
		}
		*p.dst = tpl
	}
	r.mu.Lock()
	if r.cur != nil {
		next.version = r.cur.version + 1
	} else {
		next.version = 1
	}
	r.cur = next
	r.mu.Unlock()
	return nil
}

func (r *Registry) current() *compiled {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cur
}

// Version increases by one on every successful (re)load.
func (r *Registry) Version() int64 {
	if c := r.current(); c != nil {
		return c.version
	}
	return 0
}

// Summarize renders the system and user prompt for the news summary.
func (r *Registry) Summarize(data SummarizeData) (string, string, error) {
	c := r.current()
	return render(c.summarizeSystem, c.summarizeUser, data)
}

// Recommend renders the system and user prompt for the recommendation.
func (r *Registry) Recommend(data RecommendData) (string, string, error) {
	c := r.current()
	return render(c.recommendSystem, c.recommendUser, data)
}

func render(system, user *template.Template, data any) (string, string, error) {
	var sb, ub strings.Builder
	if err := system.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", system.Name(), err)
	}
	if err := user.Execute(&ub, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", user.Name(), err)
	}
	return strings.TrimSpace(sb.String()), strings.TrimSpace(ub.String()), nil
}
