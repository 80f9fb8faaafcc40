package signalstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tpush/internal/signal"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 中文说明：
// 信号流水存储：每次分析产出的 TradingSignal 以追加方式写入 SQLite，
// 供历史查询接口与事后复盘使用。

// Store 基于 Gorm + SQLite 持久化信号流水。
type Store struct {
	db *gorm.DB
}

type signalModel struct {
	ID              int64          `gorm:"column:id;primaryKey"`
	TraceID         string         `gorm:"column:trace_id;uniqueIndex"`
	Symbol          string         `gorm:"column:symbol;index"`
	FinalAction     string         `gorm:"column:final_action"`
	FinalConfidence float64        `gorm:"column:final_confidence"`
	Strength        string         `gorm:"column:strength"`
	EntryPrice      float64        `gorm:"column:entry_price"`
	StopLoss        float64        `gorm:"column:stop_loss"`
	TakeProfit      float64        `gorm:"column:take_profit"`
	PositionSizeUSD float64        `gorm:"column:position_size_usd"`
	Leverage        int            `gorm:"column:leverage"`
	Regime          string         `gorm:"column:regime"`
	Reasoning       string         `gorm:"column:reasoning;type:TEXT"`
	KeyFactors      datatypes.JSON `gorm:"column:key_factors;type:TEXT"`
	Breakdown       datatypes.JSON `gorm:"column:confidence_breakdown;type:TEXT"`
	Unavailable     datatypes.JSON `gorm:"column:unavailable;type:TEXT"`
	CreatedAtUnix   int64          `gorm:"column:created_at;index"`
	ValidUntilUnix  int64          `gorm:"column:valid_until"`
}

func (signalModel) TableName() string { return "trading_signals" }

// New 打开（必要时创建）指定路径的信号库并完成迁移。
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("signal store: 数据库路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&signalModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: 少量并行即可满足 HTTP 读，避免锁竞争
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save 追加一条信号流水，trace_id 冲突视为重复写入并报错。
func (s *Store) Save(ctx context.Context, sig signal.TradingSignal) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("signal store 未初始化")
	}
	if strings.TrimSpace(sig.TraceID) == "" {
		return fmt.Errorf("signal store: trace_id 必填")
	}
	model, err := newSignalModel(sig)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetByTraceID 按 trace_id 查询，未找到时返回 found=false。
func (s *Store) GetByTraceID(ctx context.Context, traceID string) (signal.TradingSignal, bool, error) {
	if s == nil || s.db == nil {
		return signal.TradingSignal{}, false, fmt.Errorf("signal store 未初始化")
	}
	var model signalModel
	err := s.db.WithContext(ctx).Where("trace_id = ?", strings.TrimSpace(traceID)).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return signal.TradingSignal{}, false, nil
		}
		return signal.TradingSignal{}, false, err
	}
	return signalModelToRecord(model), true, nil
}

// ListRecent 按时间倒序返回最近的信号，symbol 为空时不过滤。
func (s *Store) ListRecent(ctx context.Context, symbol string, limit, offset int) ([]signal.TradingSignal, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("signal store 未初始化")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := s.db.WithContext(ctx).Model(&signalModel{})
	if sym := strings.ToUpper(strings.TrimSpace(symbol)); sym != "" {
		query = query.Where("UPPER(symbol) = ?", sym)
	}
	var models []signalModel
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]signal.TradingSignal, 0, len(models))
	for _, m := range models {
		out = append(out, signalModelToRecord(m))
	}
	return out, nil
}

// CountBySymbol 返回某 symbol 的流水总数，symbol 为空时统计全表。
func (s *Store) CountBySymbol(ctx context.Context, symbol string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("signal store 未初始化")
	}
	query := s.db.WithContext(ctx).Model(&signalModel{})
	if sym := strings.ToUpper(strings.TrimSpace(symbol)); sym != "" {
		query = query.Where("UPPER(symbol) = ?", sym)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

// PurgeBefore 删除生成时间早于 cutoff 的流水，返回删除行数。
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("signal store 未初始化")
	}
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff.UnixMilli()).
		Delete(&signalModel{})
	return res.RowsAffected, res.Error
}

func newSignalModel(sig signal.TradingSignal) (signalModel, error) {
	factors, err := json.Marshal(sig.KeyFactors)
	if err != nil {
		return signalModel{}, err
	}
	breakdown, err := json.Marshal(sig.ConfidenceBreakdown)
	if err != nil {
		return signalModel{}, err
	}
	unavailable, err := json.Marshal(sig.Unavailable)
	if err != nil {
		return signalModel{}, err
	}
	ts := sig.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return signalModel{
		TraceID:         strings.TrimSpace(sig.TraceID),
		Symbol:          strings.ToUpper(strings.TrimSpace(sig.Symbol)),
		FinalAction:     string(sig.FinalAction),
		FinalConfidence: sig.FinalConfidence,
		Strength:        sig.Strength.String(),
		EntryPrice:      sig.EntryPrice,
		StopLoss:        sig.Risk.StopLoss,
		TakeProfit:      sig.Risk.TakeProfit,
		PositionSizeUSD: sig.Risk.PositionSizeUSD,
		Leverage:        sig.Risk.Leverage,
		Regime:          string(sig.Regime),
		Reasoning:       sig.Reasoning,
		KeyFactors:      datatypes.JSON(factors),
		Breakdown:       datatypes.JSON(breakdown),
		Unavailable:     datatypes.JSON(unavailable),
		CreatedAtUnix:   ts.UnixMilli(),
		ValidUntilUnix:  sig.ValidUntil.UnixMilli(),
	}, nil
}

func signalModelToRecord(m signalModel) signal.TradingSignal {
	sig := signal.TradingSignal{
		Symbol:          m.Symbol,
		TraceID:         m.TraceID,
		Timestamp:       time.UnixMilli(m.CreatedAtUnix),
		FinalAction:     signal.Action(m.FinalAction),
		FinalConfidence: m.FinalConfidence,
		Strength:        signal.ParseStrength(m.Strength),
		EntryPrice:      m.EntryPrice,
		Risk: signal.RiskParameters{
			StopLoss:        m.StopLoss,
			TakeProfit:      m.TakeProfit,
			PositionSizeUSD: m.PositionSizeUSD,
			Leverage:        m.Leverage,
		},
		Regime:    signal.MarketRegime(m.Regime),
		Reasoning: m.Reasoning,
	}
	if m.ValidUntilUnix > 0 {
		sig.ValidUntil = time.UnixMilli(m.ValidUntilUnix)
	}
	if len(m.KeyFactors) > 0 {
		_ = json.Unmarshal(m.KeyFactors, &sig.KeyFactors)
	}
	if len(m.Breakdown) > 0 {
		_ = json.Unmarshal(m.Breakdown, &sig.ConfidenceBreakdown)
	}
	if len(m.Unavailable) > 0 {
		_ = json.Unmarshal(m.Unavailable, &sig.Unavailable)
	}
	return sig
}
