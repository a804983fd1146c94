package models

import "time"

// NewsArticle represents one article in the crypto_news table. The link is the
// natural key: a conflicting insert is ignored and yields no id, and only rows
// that received an id are handed to the embedding indexer.
type NewsArticle struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title         string     `gorm:"column:title" json:"title"`
	Link          string     `gorm:"column:link;uniqueIndex" json:"link"`
	Summary       string     `gorm:"column:summary" json:"summary"`
	PublishedDate *time.Time `gorm:"column:published_date" json:"published_date"`
	Source        string     `gorm:"column:source" json:"source"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (NewsArticle) TableName() string {
	return "crypto_news"
}
