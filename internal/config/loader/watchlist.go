package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"tpush/internal/logger"
	"tpush/internal/pkg/symbol"
	"tpush/internal/signal"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// 中文说明：
// watchlist.yaml 维护监控币种列表，支持热更新：文件变更后下一轮批量分析
// 自动使用新列表，不需要重启进程。
// 列表项可以是纯符号，也可以带 providers 覆盖该币种的意见来源范围：
//   symbols:
//     - BTCUSDT
//     - symbol: ETHUSDT
//       providers: [technical, ml]

// watchlistFile 映射 watchlist.yaml 的顶层结构。
type watchlistFile struct {
	Symbols []watchlistEntry `yaml:"symbols"`
}

// watchlistEntry 兼容两种写法：纯字符串或 {symbol, providers} 映射。
type watchlistEntry struct {
	Symbol    string   `yaml:"symbol"`
	Providers []string `yaml:"providers"`
}

func (e *watchlistEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&e.Symbol)
	}
	type plain watchlistEntry
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = watchlistEntry(p)
	return nil
}

// Entry 是一个监控币种及其可选的来源范围；Scope 为空表示查询全部来源。
type Entry struct {
	Symbol string
	Scope  []signal.ProviderKind
}

// Snapshot 是某一时刻的监控列表快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Entries  []Entry
}

// Symbols 返回快照内的币种列表。
func (s Snapshot) Symbols() []string {
	out := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, e.Symbol)
	}
	return out
}

// ChangeListener 在监控列表重载后触发。
type ChangeListener func(Snapshot)

// Watchlist 管理监控币种文件及其热更新。
type Watchlist struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewWatchlist 读取监控列表文件并监听更新。
func NewWatchlist(path string) (*Watchlist, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("watchlist requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read watchlist failed: %w", err)
	}
	w := &Watchlist{path: path, v: v}
	if err := w.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := w.reload(); err != nil {
			logger.Errorf("watchlist reload failed: %v", err)
			return
		}
		w.notifyListeners()
	})
	v.WatchConfig()
	return w, nil
}

// StaticWatchlist 用固定列表构造不监听文件的 Watchlist，供配置内联 symbols 使用。
func StaticWatchlist(symbols []string) *Watchlist {
	raw := make([]watchlistEntry, 0, len(symbols))
	for _, s := range symbols {
		raw = append(raw, watchlistEntry{Symbol: s})
	}
	entries, _ := normalizeEntries(raw)
	w := &Watchlist{}
	w.snapshot = Snapshot{
		Version:  1,
		LoadedAt: time.Now(),
		Entries:  entries,
	}
	return w
}

// Snapshot 返回当前监控列表。
func (w *Watchlist) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return cloneSnapshot(w.snapshot)
}

// Entries 返回当前监控项的副本。
func (w *Watchlist) Entries() []Entry {
	return w.Snapshot().Entries
}

// Symbols 返回当前监控币种的副本。
func (w *Watchlist) Symbols() []string {
	return w.Snapshot().Symbols()
}

// OnChange 注册重载回调。
func (w *Watchlist) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

func (w *Watchlist) reload() error {
	cfg, err := readWatchlistFile(w.path)
	if err != nil {
		return err
	}
	entries, err := normalizeEntries(cfg.Symbols)
	if err != nil {
		return fmt.Errorf("watchlist %s: %w", w.path, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("watchlist %s contains no symbols", w.path)
	}
	w.mu.Lock()
	w.snapshot = Snapshot{
		Version:  w.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Entries:  entries,
	}
	w.mu.Unlock()
	logger.Infof("Watchlist loaded %d symbols from %s", len(entries), filepath.Base(w.path))
	return nil
}

func (w *Watchlist) notifyListeners() {
	w.mu.RLock()
	snap := cloneSnapshot(w.snapshot)
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer safeRecover("watchlist listener")
			cb(snap)
		}(fn)
	}
}

func readWatchlistFile(path string) (watchlistFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return watchlistFile{}, fmt.Errorf("read watchlist failed: %w", err)
	}
	var cfg watchlistFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return watchlistFile{}, fmt.Errorf("parse watchlist failed: %w", err)
	}
	return cfg, nil
}

// normalizeEntries 统一为合约符号格式，按符号去重并排序。
// 同一符号多次出现时保留第一条的来源范围；未知来源名称视为配置错误。
func normalizeEntries(raw []watchlistEntry) ([]Entry, error) {
	seen := make(map[string]struct{})
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		norm := symbol.Normalize(item.Symbol)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		scope, err := parseScope(norm, item.Providers)
		if err != nil {
			return nil, err
		}
		seen[norm] = struct{}{}
		out = append(out, Entry{Symbol: norm, Scope: scope})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func parseScope(sym string, names []string) ([]signal.ProviderKind, error) {
	if len(names) == 0 {
		return nil, nil
	}
	seen := make(map[signal.ProviderKind]struct{}, len(names))
	out := make([]signal.ProviderKind, 0, len(names))
	for _, name := range names {
		kind, ok := signal.ParseProviderKind(name)
		if !ok {
			return nil, fmt.Errorf("%s providers contains unknown provider %q", sym, name)
		}
		if _, dup := seen[kind]; dup {
			continue
		}
		seen[kind] = struct{}{}
		out = append(out, kind)
	}
	return out, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	entries := make([]Entry, len(src.Entries))
	for i, e := range src.Entries {
		entries[i] = Entry{
			Symbol: e.Symbol,
			Scope:  append([]signal.ProviderKind(nil), e.Scope...),
		}
	}
	return Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Entries:  entries,
	}
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}
