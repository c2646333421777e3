package trading

import (
	"gorm.io/datatypes"

	"tradepilot/internal/store/model"
	"tradepilot/internal/types"
)

func tradeToModel(trade *types.Trade) *model.TradeModel {
	row := &model.TradeModel{
		OrderID:      trade.OrderID,
		AccountID:    trade.AccountID,
		Symbol:       trade.Symbol,
		Type:         string(trade.Type),
		Quantity:     trade.Quantity,
		Price:        trade.Price,
		Status:       string(trade.Status),
		StrategyName: trade.StrategyName,
		RealizedPnL:  trade.RealizedPnL,
		CreatedAt:    trade.CreatedAt,
		ExecutedAt:   trade.ExecutedAt,
	}
	if len(trade.SignalMeta) > 0 {
		row.SignalMeta = datatypes.JSON(trade.SignalMeta)
	}
	return row
}

func modelToTrade(row *model.TradeModel) types.Trade {
	trade := types.Trade{
		OrderID:      row.OrderID,
		AccountID:    row.AccountID,
		Symbol:       row.Symbol,
		Type:         types.TradeType(row.Type),
		Quantity:     row.Quantity,
		Price:        row.Price,
		Status:       types.OrderStatus(row.Status),
		StrategyName: row.StrategyName,
		RealizedPnL:  row.RealizedPnL,
		CreatedAt:    row.CreatedAt,
		ExecutedAt:   row.ExecutedAt,
	}
	if len(row.SignalMeta) > 0 {
		trade.SignalMeta = []byte(row.SignalMeta)
	}
	return trade
}
