package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"smiles/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SmileGoal is the number of smiles the whole site is counting towards
const SmileGoal int64 = 1_000_000_000_000

// freeEmailDomains are personal providers, which never count as a company
var freeEmailDomains = map[string]struct{}{
	"gmail.com":   {},
	"yahoo.com":   {},
	"hotmail.com": {},
	"outlook.com": {},
	"aol.com":     {},
	"icloud.com":  {},
}

// CompanyFromEmail returns the lower-cased domain of email, or false for personal
// providers and malformed addresses
func CompanyFromEmail(email string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}

	domain := strings.ToLower(parts[1])
	if _, free := freeEmailDomains[domain]; free {
		return "", false
	}
	return domain, true
}

type CompanySmiles struct {
	Domain     string `json:"domain"`
	SmileCount int64  `json:"smile_count"`
}

type SenderSmiles struct {
	SenderID   uint   `json:"id"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
	SmileCount int64  `json:"smile_count"`
}

type CompanyStats struct {
	Domain     string         `json:"company"`
	SmileCount int64          `json:"smile_count"`
	TopSenders []SenderSmiles `json:"top_senders"`
}

// senderSmileRow is one sender with the number of their messages that were smiled at
type senderSmileRow struct {
	ID         uint
	Name       string
	Email      string
	Avatar     string
	SmileCount int64
}

type StatsService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStatsService(db *gorm.DB, log *zap.Logger) *StatsService {
	return &StatsService{db: db, log: log}
}

// IncrementSmileCount adds one to the global counter inside tx
func (s *StatsService) IncrementSmileCount(tx *gorm.DB, now time.Time) error {
	result := tx.Model(&models.Stats{}).
		Where("id = ?", models.StatsID).
		Updates(map[string]interface{}{
			"smile_count":  gorm.Expr("smile_count + ?", 1),
			"last_updated": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment smile count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return tx.Create(&models.Stats{ID: models.StatsID, SmileCount: 1, LastUpdated: now}).Error
	}
	return nil
}

// GlobalSmileCount reads the stored counter without recounting messages
func (s *StatsService) GlobalSmileCount(ctx context.Context) (int64, error) {
	var stats models.Stats
	result := s.db.WithContext(ctx).Where("id = ?", models.StatsID).Limit(1).Find(&stats)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to read smile count: %w", result.Error)
	}
	return stats.SmileCount, nil
}

// GlobalProgress is count as a percentage of SmileGoal
func GlobalProgress(count int64) float64 {
	return float64(count) / float64(SmileGoal) * 100
}

// SenderSmileCount counts the sender's smiled messages from the message rows
func (s *StatsService) SenderSmileCount(ctx context.Context, senderID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND smiled_at IS NOT NULL", senderID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count sender smiles: %w", err)
	}
	return count, nil
}

func (s *StatsService) senderSmiles(ctx context.Context) ([]senderSmileRow, error) {
	var rows []senderSmileRow
	if err := s.db.WithContext(ctx).
		Table("senders").
		Select("senders.id, senders.name, senders.email, senders.avatar, COUNT(messages.id) AS smile_count").
		Joins("JOIN messages ON messages.sender_id = senders.id").
		Where("messages.smiled_at IS NOT NULL").
		Group("senders.id, senders.name, senders.email, senders.avatar").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate sender smiles: %w", err)
	}
	return rows, nil
}

func rankSenders(rows []senderSmileRow, limit int) []SenderSmiles {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SmileCount != rows[j].SmileCount {
			return rows[i].SmileCount > rows[j].SmileCount
		}
		return rows[i].Name < rows[j].Name
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	ranked := make([]SenderSmiles, 0, len(rows))
	for _, row := range rows {
		ranked = append(ranked, SenderSmiles{
			SenderID:   row.ID,
			Name:       row.Name,
			Avatar:     row.Avatar,
			SmileCount: row.SmileCount,
		})
	}
	return ranked
}

// CompanyStats totals smiles for senders at domain and ranks them
func (s *StatsService) CompanyStats(ctx context.Context, domain string, limit int) (*CompanyStats, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))

	rows, err := s.senderSmiles(ctx)
	if err != nil {
		return nil, err
	}

	stats := &CompanyStats{Domain: domain}
	var matching []senderSmileRow
	for _, row := range rows {
		if company, ok := CompanyFromEmail(row.Email); ok && company == domain {
			stats.SmileCount += row.SmileCount
			matching = append(matching, row)
		}
	}
	stats.TopSenders = rankSenders(matching, limit)
	return stats, nil
}

// TopCompanies ranks company domains by smile count, ties broken by domain
func (s *StatsService) TopCompanies(ctx context.Context, limit int) ([]CompanySmiles, error) {
	rows, err := s.senderSmiles(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int64)
	for _, row := range rows {
		if company, ok := CompanyFromEmail(row.Email); ok {
			totals[company] += row.SmileCount
		}
	}

	companies := make([]CompanySmiles, 0, len(totals))
	for domain, count := range totals {
		companies = append(companies, CompanySmiles{Domain: domain, SmileCount: count})
	}
	sort.Slice(companies, func(i, j int) bool {
		if companies[i].SmileCount != companies[j].SmileCount {
			return companies[i].SmileCount > companies[j].SmileCount
		}
		return companies[i].Domain < companies[j].Domain
	})

	if limit > 0 && len(companies) > limit {
		companies = companies[:limit]
	}
	return companies, nil
}

// TopSendersGlobal ranks every sender with at least one smile
func (s *StatsService) TopSendersGlobal(ctx context.Context, limit int) ([]SenderSmiles, error) {
	rows, err := s.senderSmiles(ctx)
	if err != nil {
		return nil, err
	}
	return rankSenders(rows, limit), nil
}

// TotalCompanies counts distinct company domains across all senders
func (s *StatsService) TotalCompanies(ctx context.Context) (int, error) {
	var emails []string
	if err := s.db.WithContext(ctx).Model(&models.Sender{}).Pluck("email", &emails).Error; err != nil {
		return 0, fmt.Errorf("failed to list sender emails: %w", err)
	}

	companies := make(map[string]struct{})
	for _, email := range emails {
		if company, ok := CompanyFromEmail(email); ok {
			companies[company] = struct{}{}
		}
	}
	return len(companies), nil
}
