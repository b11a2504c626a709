package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"quorum/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// rosterFile 映射 strategies.yaml。
type rosterFile struct {
	Strategies []Config `yaml:"strategies"`
}

// Roster 公开的策略快照。
type Roster struct {
	Version  int64
	LoadedAt time.Time
	Configs  []Config
}

// Live 返回 is_live 条目，若无则返回 false。
func (r Roster) Live() (Config, bool) {
	for _, cfg := range r.Configs {
		if cfg.IsLive {
			return cfg, true
		}
	}
	return Config{}, false
}

// Config 返回指定名字的策略配置。
func (r Roster) Config(name string) (Config, bool) {
	name = strings.TrimSpace(name)
	for _, cfg := range r.Configs {
		if cfg.Name == name {
			return cfg, true
		}
	}
	return Config{}, false
}

// ChangeListener 在 registry 重载时触发。
type ChangeListener func(Roster)

// Registry 管理影子策略名单，支持热更新。
type Registry struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema

	mu        sync.RWMutex
	roster    Roster
	listeners []ChangeListener
}

// NewRegistry 读取策略名单文件并监听更新。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("strategy registry requires path")
	}
	schema, err := compileRosterSchema()
	if err != nil {
		return nil, fmt.Errorf("compile roster schema failed: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read strategy roster failed: %w", err)
	}
	r := &Registry{path: path, v: v, schema: schema}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("strategy roster reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Roster 返回当前策略集。
func (r *Registry) Roster() Roster {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneRoster(r.roster)
}

// Subscribe 注册重载回调。回调在独立 goroutine 中执行。
func (r *Registry) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	configs, err := loadRoster(r.path, r.schema)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.roster = Roster{
		Version:  r.roster.Version + 1,
		LoadedAt: time.Now(),
		Configs:  configs,
	}
	version := r.roster.Version
	r.mu.Unlock()
	logger.Infof("Strategy roster loaded %d configs from %s (version=%d)", len(configs), filepath.Base(r.path), version)
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneRoster(r.roster)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if p := recover(); p != nil {
					logger.Errorf("strategy roster listener panic: %v", p)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func cloneRoster(src Roster) Roster {
	dst := Roster{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Configs:  make([]Config, len(src.Configs)),
	}
	copy(dst.Configs, src.Configs)
	return dst
}

// loadRoster 读取并校验名单：先 schema，后数值范围，最后唯一性约束。
func loadRoster(path string, schema *jsonschema.Schema) ([]Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy roster failed: %w", err)
	}
	if schema != nil {
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse strategy roster failed: %w", err)
		}
		if err := schema.Validate(normalizeYAML(doc)); err != nil {
			return nil, fmt.Errorf("strategy roster schema violation: %w", err)
		}
	}
	var file rosterFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse strategy roster failed: %w", err)
	}
	seen := make(map[string]bool, len(file.Strategies))
	liveCount := 0
	out := make([]Config, 0, len(file.Strategies))
	for i := range file.Strategies {
		cfg := file.Strategies[i].withDefaults()
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("strategy %q: %w", cfg.Name, err)
		}
		if seen[cfg.Name] {
			return nil, fmt.Errorf("策略名重复: %s", cfg.Name)
		}
		seen[cfg.Name] = true
		if cfg.IsLive {
			liveCount++
		}
		out = append(out, cfg)
	}
	if liveCount > 1 {
		return nil, fmt.Errorf("最多只允许一个 is_live 策略, 当前 %d 个", liveCount)
	}
	return out, nil
}

func compileRosterSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("roster.json", strings.NewReader(rosterSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("roster.json")
}

// normalizeYAML 把 yaml.v3 解出的值归一化成 jsonschema 认识的类型。
// yaml 的整数是 int，schema 校验需要 json 数值语义。
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = normalizeYAML(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalizeYAML(child)
		}
		return out
	case int:
		return json.Number(strconv.Itoa(val))
	case int64:
		return json.Number(strconv.FormatInt(val, 10))
	case float64:
		return json.Number(strconv.FormatFloat(val, 'g', -1, 64))
	default:
		return val
	}
}
