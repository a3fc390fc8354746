package domain

import (
	"time"

	"gorm.io/gorm"
)

// RunStatus 对账运行状态
type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// ReconciliationRun 一次对账运行的审计记录
type ReconciliationRun struct {
	gorm.Model
	// 运行 ID (业务主键)
	RunID string `gorm:"column:run_id;type:varchar(32);uniqueIndex;not null" json:"run_id"`
	// 状态（RUNNING/COMPLETED/FAILED）
	Status RunStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	// 开始时间
	StartedAt time.Time `gorm:"column:started_at;not null" json:"started_at"`
	// 结束时间
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	// 匹配阶段检出问题数
	IssueCount int `gorm:"column:issue_count;default:0" json:"issue_count"`
	// 异常检测阶段检出问题数
	AnomalyCount int `gorm:"column:anomaly_count;default:0" json:"anomaly_count"`
	// 合计
	TotalCount int `gorm:"column:total_count;default:0" json:"total_count"`
}

// TableName 指定表名
func (ReconciliationRun) TableName() string { return "reconciliation_runs" }

// NewRun 创建一次运行记录
func NewRun(runID string) *ReconciliationRun {
	return &ReconciliationRun{
		RunID:     runID,
		Status:    RunRunning,
		StartedAt: time.Now(),
	}
}

// Complete 标记运行完成并记录检出数量
func (r *ReconciliationRun) Complete(issueCount, anomalyCount int) {
	now := time.Now()
	r.Status = RunCompleted
	r.FinishedAt = &now
	r.IssueCount = issueCount
	r.AnomalyCount = anomalyCount
	r.TotalCount = issueCount + anomalyCount
}

// Fail 标记运行失败
func (r *ReconciliationRun) Fail() {
	now := time.Now()
	r.Status = RunFailed
	r.FinishedAt = &now
}
