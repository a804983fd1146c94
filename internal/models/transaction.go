package models

import "time"

// WhaleTransaction represents a large-value Bitcoin transaction in the
// whale_transactions table. Rows are immutable once stored: inserts with a
// duplicate tx_hash are ignored.
type WhaleTransaction struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TxHash      string     `gorm:"column:tx_hash;uniqueIndex" json:"tx_hash"`
	BlockHash   *string    `gorm:"column:block_hash" json:"block_hash"`
	Timestamp   *time.Time `gorm:"column:timestamp" json:"timestamp"`
	ValueBTC    float64    `gorm:"column:value_btc" json:"value_btc"`
	Fee         *float64   `gorm:"column:fee" json:"fee"`
	Size        *int       `gorm:"column:size" json:"size"`
	InputCount  int        `gorm:"column:input_count" json:"input_count"`
	OutputCount int        `gorm:"column:output_count" json:"output_count"`
	IsCoinbase  bool       `gorm:"column:is_coinbase" json:"is_coinbase"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (WhaleTransaction) TableName() string {
	return "whale_transactions"
}
