package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const historyLimit = 20

// Filter narrows user listings
type Filter struct {
	Search string
	Limit  int
	Offset int
}

// UserDetail is a user together with their recent program activity
type UserDetail struct {
	models.User
	Referrer       *models.User            `json:"referrer,omitempty"`
	ReferralCount  int64                   `json:"referral_count"`
	Submissions    []models.TaskSubmission `json:"submissions"`
	RedeemRequests []models.RedeemRequest  `json:"redeem_requests"`
	Certificates   []models.Certificate    `json:"certificates"`
}

// Referral links a referred user to the user whose code they joined with
type Referral struct {
	User     models.User  `json:"user"`
	Referrer *models.User `json:"referrer"`
}

// Summary holds dashboard totals
type Summary struct {
	Users                  int64           `json:"users"`
	PointsOutstanding      int64           `json:"points_outstanding"`
	PendingSubmissions     int64           `json:"pending_submissions"`
	PendingRedeemRequests  int64           `json:"pending_redeem_requests"`
	PayoutsCompleted       int64           `json:"payouts_completed"`
	PayoutsCompletedAmount decimal.Decimal `json:"payouts_completed_amount"`
	CertificatesIssued     int64           `json:"certificates_issued"`
	Referrals              int64           `json:"referrals"`
}

// Service reads the program's users, referrals and totals
type Service struct {
	db *gorm.DB
}

// NewService creates a user service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

// List returns users newest first with the total match count
func (s *Service) List(ctx context.Context, filter Filter) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	query := s.db.WithContext(ctx).Model(&models.User{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR referral_code = ?", like, like, search)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errutil.Internal("failed to count users", err)
	}

	if err := query.Order("created_at DESC").Offset(filter.Offset).Limit(pageLimit(filter.Limit)).Find(&users).Error; err != nil {
		return nil, 0, errutil.Internal("failed to list users", err)
	}

	return users, total, nil
}

// Get loads a user with their referrer and recent activity
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*UserDetail, error) {
	db := s.db.WithContext(ctx)

	var detail UserDetail
	if err := db.First(&detail.User, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("user %s not found", id)
		}
		return nil, errutil.Internal("failed to load user", err)
	}

	if detail.ReferredByCode != nil {
		var referrer models.User
		err := db.Where("referral_code = ?", *detail.ReferredByCode).First(&referrer).Error
		switch {
		case err == nil:
			detail.Referrer = &referrer
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, errutil.Internal("failed to load referrer", err)
		}
	}

	if err := db.Model(&models.User{}).Where("referred_by_code = ?", detail.ReferralCode).Count(&detail.ReferralCount).Error; err != nil {
		return nil, errutil.Internal("failed to count referrals", err)
	}

	if err := db.Preload("Task").Where("user_id = ?", id).Order("created_at DESC").Limit(historyLimit).Find(&detail.Submissions).Error; err != nil {
		return nil, errutil.Internal("failed to load submissions", err)
	}
	if err := db.Where("user_id = ?", id).Order("created_at DESC").Limit(historyLimit).Find(&detail.RedeemRequests).Error; err != nil {
		return nil, errutil.Internal("failed to load redeem requests", err)
	}
	if err := db.Where("user_id = ?", id).Order("issued_at DESC").Limit(historyLimit).Find(&detail.Certificates).Error; err != nil {
		return nil, errutil.Internal("failed to load certificates", err)
	}

	return &detail, nil
}

// ListReferrals returns referred users newest first, each with their referrer.
// A referrer is nil when the code no longer matches a user.
func (s *Service) ListReferrals(ctx context.Context, limit, offset int) ([]Referral, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	query := db.Model(&models.User{}).Where("referred_by_code IS NOT NULL AND referred_by_code <> ''")
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errutil.Internal("failed to count referrals", err)
	}

	var referred []models.User
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageLimit(limit)).Find(&referred).Error; err != nil {
		return nil, 0, errutil.Internal("failed to list referrals", err)
	}

	codes := make([]string, 0, len(referred))
	for _, u := range referred {
		codes = append(codes, *u.ReferredByCode)
	}

	referrers := map[string]*models.User{}
	if len(codes) > 0 {
		var found []models.User
		if err := db.Where("referral_code IN ?", codes).Find(&found).Error; err != nil {
			return nil, 0, errutil.Internal("failed to load referrers", err)
		}
		for i := range found {
			referrers[found[i].ReferralCode] = &found[i]
		}
	}

	referrals := make([]Referral, 0, len(referred))
	for _, u := range referred {
		referrals = append(referrals, Referral{User: u, Referrer: referrers[*u.ReferredByCode]})
	}

	return referrals, total, nil
}

// Summary computes the dashboard totals
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var summary Summary

	counts := []struct {
		dest  *int64
		model interface{}
		where []interface{}
	}{
		{&summary.Users, &models.User{}, nil},
		{&summary.PendingSubmissions, &models.TaskSubmission{}, []interface{}{"status = ?", models.SubmissionPending}},
		{&summary.PendingRedeemRequests, &models.RedeemRequest{}, []interface{}{"status = ?", models.RedeemPending}},
		{&summary.PayoutsCompleted, &models.Payout{}, []interface{}{"status = ?", models.PayoutCompleted}},
		{&summary.CertificatesIssued, &models.Certificate{}, nil},
		{&summary.Referrals, &models.User{}, []interface{}{"referred_by_code IS NOT NULL AND referred_by_code <> ''"}},
	}

	g, gctx := errgroup.WithContext(ctx)
	db := s.db.WithContext(gctx)

	for _, c := range counts {
		g.Go(func() error {
			query := db.Model(c.model)
			if len(c.where) > 0 {
				query = query.Where(c.where[0], c.where[1:]...)
			}
			return query.Count(c.dest).Error
		})
	}

	g.Go(func() error {
		return db.Model(&models.User{}).Select("COALESCE(SUM(points), 0)").Row().Scan(&summary.PointsOutstanding)
	})

	var paid decimal.NullDecimal
	g.Go(func() error {
		return db.Model(&models.Payout{}).
			Select("SUM(amount)").
			Where("status = ?", models.PayoutCompleted).
			Row().Scan(&paid)
	})

	if err := g.Wait(); err != nil {
		return nil, errutil.Internal("failed to compute summary", err)
	}

	if paid.Valid {
		summary.PayoutsCompletedAmount = paid.Decimal.Round(2)
	}

	return &summary, nil
}
