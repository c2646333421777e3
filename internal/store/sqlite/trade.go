package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradepilot/internal/store/model"
)

// tradeRepository implements store.TradeRepository.
type tradeRepository struct {
	db *gorm.DB
}

// NewTradeRepo creates a trade repository over db.
func NewTradeRepo(db *gorm.DB) *tradeRepository {
	return &tradeRepository{db: db}
}

// Save upserts a trade row keyed by order_id.
func (r *tradeRepository) Save(ctx context.Context, trade *model.TradeModel) error {
	if trade == nil {
		return errors.New("trade cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		UpdateAll: true,
	}).Save(trade).Error
}

// FindByOrderID returns the trade or nil when absent.
func (r *tradeRepository) FindByOrderID(ctx context.Context, orderID string) (*model.TradeModel, error) {
	var trade model.TradeModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// FindRecent lists trades created at or after since, newest first.
func (r *tradeRepository) FindRecent(ctx context.Context, since time.Time) ([]model.TradeModel, error) {
	var trades []model.TradeModel
	if err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at DESC, id DESC").
		Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}
