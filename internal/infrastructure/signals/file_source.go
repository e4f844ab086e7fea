package signals

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vitos/trade_risk_engine/internal/domain"
	"github.com/vitos/trade_risk_engine/internal/engine"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// decisionFile is the on-disk yaml shape dropped into the spool directory by
// the strategy layer.
type decisionFile struct {
	Type      string  `yaml:"type"` // entry | exit
	Symbol    string  `yaml:"symbol"`
	Strategy  string  `yaml:"strategy"`
	Magic     int64   `yaml:"magic"`
	Direction string  `yaml:"direction"`
	Signal    string  `yaml:"signal"`
	Price     float64 `yaml:"price"`
	Size      float64 `yaml:"size"`

	StopLoss *struct {
		Kind         string  `yaml:"kind"`
		Level        float64 `yaml:"level"`
		Trailing     bool    `yaml:"trailing"`
		TrailingStep float64 `yaml:"trailing_step"`
	} `yaml:"stop_loss"`

	TakeProfit *struct {
		Level   float64 `yaml:"level"`
		Targets []struct {
			Level        float64 `yaml:"level"`
			SizeFraction float64 `yaml:"size_fraction"`
			Percent      float64 `yaml:"percent"`
			MoveStopTo   float64 `yaml:"move_stop_to"`
		} `yaml:"targets"`
	} `yaml:"take_profit"`
}

// FileSource reads strategy decisions from yaml files in a spool directory.
// Files are consumed in name order and deleted after a successful parse;
// unparseable files are renamed aside so they do not wedge the queue.
type FileSource struct {
	dir    string
	logger *zap.Logger
}

func NewFileSource(dir string, logger *zap.Logger) (*FileSource, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &FileSource{dir: dir, logger: logger}, nil
}

func (s *FileSource) NextBatch(ctx context.Context, now time.Time) (engine.TradeBatch, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return engine.TradeBatch{}, fmt.Errorf("read spool dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var batch engine.TradeBatch
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Error("failed to read decision file", zap.String("file", name), zap.Error(err))
			continue
		}

		var df decisionFile
		if err := yaml.Unmarshal(data, &df); err != nil {
			s.logger.Error("unparseable decision file, moving aside",
				zap.String("file", name), zap.Error(err))
			_ = os.Rename(path, path+".rejected")
			continue
		}

		switch df.Type {
		case "entry":
			batch.Entries = append(batch.Entries, s.toEntry(&df, now))
		case "exit":
			batch.Exits = append(batch.Exits, &domain.ExitDecision{
				Symbol:    df.Symbol,
				Strategy:  df.Strategy,
				Magic:     df.Magic,
				Direction: domain.Side(strings.ToUpper(df.Direction)),
				DecidedAt: now,
			})
		default:
			s.logger.Error("decision file with unknown type, moving aside",
				zap.String("file", name), zap.String("type", df.Type))
			_ = os.Rename(path, path+".rejected")
			continue
		}

		if err := os.Remove(path); err != nil {
			s.logger.Error("failed to remove consumed decision file",
				zap.String("file", name), zap.Error(err))
		}
	}

	return batch, nil
}

func (s *FileSource) toEntry(df *decisionFile, now time.Time) *domain.EntryDecision {
	d := &domain.EntryDecision{
		Symbol:       df.Symbol,
		Strategy:     df.Strategy,
		Magic:        df.Magic,
		Direction:    domain.Side(strings.ToUpper(df.Direction)),
		Signal:       domain.SignalKind(strings.ToUpper(df.Signal)),
		Price:        df.Price,
		PositionSize: df.Size,
		DecidedAt:    now,
	}
	if df.StopLoss != nil {
		d.StopLoss = &domain.StopLossSpec{
			Kind:         domain.StopLossKind(df.StopLoss.Kind),
			Level:        df.StopLoss.Level,
			Trailing:     df.StopLoss.Trailing,
			TrailingStep: df.StopLoss.TrailingStep,
		}
	}
	if df.TakeProfit != nil {
		tp := &domain.TakeProfitSpec{Level: df.TakeProfit.Level}
		for _, t := range df.TakeProfit.Targets {
			tp.Targets = append(tp.Targets, domain.TakeProfitTarget{
				Level:        t.Level,
				SizeFraction: t.SizeFraction,
				Percent:      t.Percent,
				MoveStopTo:   t.MoveStopTo,
			})
		}
		d.TakeProfit = tp
	}
	return d
}
