package repositories

import (
	"context"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/errs"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"time"
)

type Borrows struct {
	db *gorm.DB
}

func NewBorrowsRepository(db *gorm.DB) *Borrows {
	return &Borrows{db: db}
}

func (repo *Borrows) AddRequest(ctx context.Context, request models.BorrowRequest) error {
	request.NormalizedLocation = models.NormalizeLocation(request.Location)
	return translate(repo.db.WithContext(ctx).Create(&request).Error, "borrow request")
}

func (repo *Borrows) GetRequest(ctx context.Context, id snowflake.ID) (*models.BorrowRequest, error) {
	var request models.BorrowRequest
	if err := repo.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, translate(err, "borrow request")
	}
	return &request, nil
}

func (repo *Borrows) GetOffer(ctx context.Context, id snowflake.ID) (*models.BorrowOffer, error) {
	var offer models.BorrowOffer
	if err := repo.db.WithContext(ctx).First(&offer, "id = ?", id).Error; err != nil {
		return nil, translate(err, "borrow offer")
	}
	return &offer, nil
}

// InsertOffers adds pending offers for the request, skipping candidates that already have one.
// It returns only the offers this call created.
func (repo *Borrows) InsertOffers(ctx context.Context, requestID snowflake.ID, offers []models.BorrowOffer) ([]models.BorrowOffer, error) {
	var created []models.BorrowOffer

	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request models.BorrowRequest
		if err := tx.Select("id", "status").First(&request, "id = ?", requestID).Error; err != nil {
			return err
		}
		if request.Status != models.BorrowRequestOpen {
			return errs.Newf(errs.InvalidStatus, "borrow request is %s", request.Status)
		}

		for _, offer := range offers {
			offer := offer
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "request_id"}, {Name: "candidate_id"}},
				DoNothing: true,
			}).Create(&offer)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected > 0 {
				created = append(created, offer)
			}
		}
		return nil
	})

	if err != nil {
		return nil, translate(err, "borrow request")
	}
	return created, nil
}

// Accept is the single-fill guard: the offer flips pending → accepted only while its request is open
// and the candidate has no booking overlapping the window. The request flips open → filled in the same
// transaction, pending siblings are closed and the booking written.
// ok is false when another acceptance, a decline or a close got there first, or when the candidate is
// booked or blocked during the window.
func (repo *Borrows) Accept(ctx context.Context, offerID, candidateID snowflake.ID, booking models.Booking,
	now time.Time) (acceptance *models.BorrowAcceptance, ok bool, err error) {

	err = repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`UPDATE borrow_offers
			 SET status = ?, responded_at = ?, updated_at = ?
			 WHERE id = ? AND candidate_id = ? AND status = ?
			   AND request_id IN (
			     SELECT r.id FROM borrow_requests AS r
			     WHERE r.status = ?
			       AND NOT EXISTS (
			         SELECT 1 FROM bookings AS b
			         WHERE b.candidate_id = ? AND b.starts_at < r.window_end AND b.ends_at > r.window_start
			       )
			       AND NOT EXISTS (
			         SELECT 1 FROM availability_blocks AS a
			         WHERE a.candidate_id = ? AND a.starts_at < r.window_end AND a.ends_at > r.window_start
			       )
			   )`,
			models.BorrowOfferAccepted, now, now,
			offerID, candidateID, models.BorrowOfferPending,
			models.BorrowRequestOpen,
			candidateID, candidateID,
		)
		if result.Error != nil {
			if isUniqueViolation(result.Error) {
				return errNotApplied
			}
			return result.Error
		}
		if result.RowsAffected != 1 {
			return errNotApplied
		}

		var offer models.BorrowOffer
		if err := tx.First(&offer, "id = ?", offerID).Error; err != nil {
			return err
		}

		result = tx.Model(&models.BorrowRequest{}).
			Where("id = ? AND status = ?", offer.RequestID, models.BorrowRequestOpen).
			Updates(map[string]any{"status": models.BorrowRequestFilled, "filled_by_offer_id": offer.ID, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return errNotApplied
		}

		closed := tx.Model(&models.BorrowOffer{}).
			Where("request_id = ? AND id <> ? AND status = ?", offer.RequestID, offer.ID, models.BorrowOfferPending).
			Updates(map[string]any{"status": models.BorrowOfferClosed, "updated_at": now})
		if closed.Error != nil {
			return closed.Error
		}

		var request models.BorrowRequest
		if err := tx.First(&request, "id = ?", offer.RequestID).Error; err != nil {
			return err
		}

		booking.OrgID = request.OrgID
		booking.CandidateID = offer.CandidateID
		booking.StartsAt = request.WindowStart
		booking.EndsAt = request.WindowEnd
		booking.Source = models.BookingFromBorrow
		booking.SourceID = offer.ID
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}

		acceptance = &models.BorrowAcceptance{Offer: offer, Request: request, Booking: booking, Closed: closed.RowsAffected}
		return nil
	})

	if errors.Is(err, errNotApplied) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, translate(err, "borrow offer")
	}
	return acceptance, true, nil
}

func (repo *Borrows) Decline(ctx context.Context, offerID, candidateID snowflake.ID, now time.Time) (bool, error) {
	result := repo.db.WithContext(ctx).Model(&models.BorrowOffer{}).
		Where("id = ? AND candidate_id = ? AND status = ?", offerID, candidateID, models.BorrowOfferPending).
		Updates(map[string]any{"status": models.BorrowOfferDeclined, "responded_at": now, "updated_at": now})
	if result.Error != nil {
		return false, translate(result.Error, "borrow offer")
	}
	return result.RowsAffected == 1, nil
}

// Close ends an open request without a fill and closes its pending offers.
func (repo *Borrows) Close(ctx context.Context, requestID snowflake.ID, now time.Time) (bool, error) {
	var ok bool
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ok, err = closeRequest(tx, requestID, now)
		return err
	})
	return ok, translate(err, "borrow request")
}

func closeRequest(tx *gorm.DB, requestID snowflake.ID, now time.Time) (bool, error) {
	result := tx.Model(&models.BorrowRequest{}).
		Where("id = ? AND status = ?", requestID, models.BorrowRequestOpen).
		Updates(map[string]any{"status": models.BorrowRequestClosed, "updated_at": now})
	if result.Error != nil || result.RowsAffected != 1 {
		return false, result.Error
	}

	err := tx.Model(&models.BorrowOffer{}).
		Where("request_id = ? AND status = ?", requestID, models.BorrowOfferPending).
		Updates(map[string]any{"status": models.BorrowOfferClosed, "updated_at": now}).Error
	return err == nil, err
}

// ExpireRequests closes open requests whose window has already ended.
func (repo *Borrows) ExpireRequests(ctx context.Context, now time.Time) (int64, error) {
	var expired int64
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []snowflake.ID
		if err := tx.Model(&models.BorrowRequest{}).
			Where("status = ? AND window_end <= ?", models.BorrowRequestOpen, now).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		for _, id := range ids {
			ok, err := closeRequest(tx, id, now)
			if err != nil {
				return err
			}
			if ok {
				expired++
			}
		}
		return nil
	})
	return expired, translate(err, "borrow request")
}

func (repo *Borrows) ListOffersByRequest(ctx context.Context, requestID snowflake.ID) ([]models.BorrowOffer, error) {
	var offers []models.BorrowOffer
	err := repo.db.WithContext(ctx).Order("id").Find(&offers, "request_id = ?", requestID).Error
	return offers, translate(err, "borrow offer")
}

func (repo *Borrows) ListOffersByCandidate(ctx context.Context, candidateID snowflake.ID,
	statuses []models.BorrowOfferStatus) ([]models.BorrowOffer, error) {

	query := repo.db.WithContext(ctx).Where("candidate_id = ?", candidateID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var offers []models.BorrowOffer
	err := query.Order("created_at DESC").Find(&offers).Error
	return offers, translate(err, "borrow offer")
}

func (repo *Borrows) ListOpenRequestsByOrg(ctx context.Context, orgID snowflake.ID) ([]models.BorrowRequest, error) {
	var requests []models.BorrowRequest
	err := repo.db.WithContext(ctx).Order("window_start").
		Find(&requests, "org_id = ? AND status = ?", orgID, models.BorrowRequestOpen).Error
	return requests, translate(err, "borrow request")
}
