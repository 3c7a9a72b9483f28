package storage

// HistoryRecord mirrors a task once it reaches a terminal state, for
// queryable history distinct from the crash-recovery snapshot in
// tasks.json (SPEC_FULL.md §4.4).
type HistoryRecord struct {
	ID           string `gorm:"primaryKey" json:"id"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	Status       string `gorm:"index" json:"status"`
	Progress     float64 `json:"progress"`
	FinalPath    string `json:"final_path"`
	ErrorMessage string `json:"error_message,omitempty"`
	FinishedAt   string `json:"finished_at"`
}

// TableName specifies the table name for HistoryRecord.
func (HistoryRecord) TableName() string {
	return "download_history"
}

// DailyStat is one day's aggregate download volume, upserted as each
// download completes. Backs the analytics stats endpoint.
type DailyStat struct {
	Date  string `gorm:"primaryKey" json:"date"` // YYYY-MM-DD, local time
	Bytes int64  `json:"bytes"`
	Files int64  `json:"files"`
}

// TableName specifies the table name for DailyStat.
func (DailyStat) TableName() string {
	return "daily_stats"
}
