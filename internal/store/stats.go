package store

// Stats 聚合了证明状态的统计信息，常用于仪表盘或健康检查。
type Stats struct {
	Total           int   `json:"total"`
	Publishing      int   `json:"publishing"`
	Confirmed       int   `json:"confirmed"`
	Verified        int   `json:"verified"`
	WithCredential  int   `json:"withCredential"`
	TotalSteps      int   `json:"totalSteps"`
	OldestCreatedAt int64 `json:"oldestCreatedAt,omitempty"`
	NewestCreatedAt int64 `json:"newestCreatedAt,omitempty"`
}
