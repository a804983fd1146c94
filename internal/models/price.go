// Package models defines the domain models used across the application.
package models

import "time"

// PriceTick represents one Bitcoin price observation in the bitcoin_prices table.
// The timestamp carries a unique constraint: replays of the same tick overwrite
// the numeric fields and never create a second row.
type PriceTick struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Timestamp time.Time `gorm:"column:timestamp;uniqueIndex" json:"timestamp"`
	Price     float64   `gorm:"column:price" json:"price"`
	MarketCap *float64  `gorm:"column:market_cap" json:"market_cap"`
	Volume    *float64  `gorm:"column:volume" json:"volume"`
	Date      time.Time `gorm:"column:date;type:date" json:"date"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (PriceTick) TableName() string {
	return "bitcoin_prices"
}
