package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradepilot/internal/store/model"
)

// portfolioRepository implements store.PortfolioRepository.
type portfolioRepository struct {
	db *gorm.DB
}

// NewPortfolioRepo creates a portfolio repository over db.
func NewPortfolioRepo(db *gorm.DB) *portfolioRepository {
	return &portfolioRepository{db: db}
}

// Save upserts the account's cash row.
func (r *portfolioRepository) Save(ctx context.Context, portfolio *model.PortfolioModel) error {
	if portfolio == nil {
		return errors.New("portfolio cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		UpdateAll: true,
	}).Save(portfolio).Error
}

// FindByAccountID returns the portfolio or nil when absent.
func (r *portfolioRepository) FindByAccountID(ctx context.Context, accountID string) (*model.PortfolioModel, error) {
	var portfolio model.PortfolioModel
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&portfolio).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &portfolio, nil
}

// positionRepository implements store.PositionRepository.
type positionRepository struct {
	db *gorm.DB
}

// NewPositionRepo creates a position repository over db.
func NewPositionRepo(db *gorm.DB) *positionRepository {
	return &positionRepository{db: db}
}

// Save upserts a position row keyed by (account_id, symbol).
func (r *positionRepository) Save(ctx context.Context, position *model.PositionModel) error {
	if position == nil {
		return errors.New("position cannot be nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "symbol"}},
		UpdateAll: true,
	}).Save(position).Error
}

// FindRow returns the position row or nil when flat.
func (r *positionRepository) FindRow(ctx context.Context, accountID, symbol string) (*model.PositionModel, error) {
	var position model.PositionModel
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND symbol = ?", accountID, symbol).
		First(&position).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &position, nil
}

// Delete removes the position row. 数量归零时调用，行不保留。
func (r *positionRepository) Delete(ctx context.Context, accountID, symbol string) error {
	return r.db.WithContext(ctx).
		Where("account_id = ? AND symbol = ?", accountID, symbol).
		Delete(&model.PositionModel{}).Error
}

// ListByAccount lists all position rows for an account.
func (r *positionRepository) ListByAccount(ctx context.Context, accountID string) ([]model.PositionModel, error) {
	var positions []model.PositionModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("symbol ASC").
		Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}
