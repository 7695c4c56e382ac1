package services

import (
	"context"
	"github.com/maxaizer/shiftmatch/internal/metrics"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"time"
)

type offerExpirer interface {
	Expire(ctx context.Context, now time.Time) (int64, error)
}

type borrowExpirer interface {
	ExpireRequests(ctx context.Context, now time.Time) (int64, error)
}

// Expirer assigns the passive terminal states: sent offers past their deadline and borrow requests
// whose window has ended.
type Expirer struct {
	offers  offerExpirer
	borrows borrowExpirer
	cron    *cron.Cron
}

func NewExpirer(offers offerExpirer, borrows borrowExpirer, schedule string) (*Expirer, error) {

	if schedule == "" {
		return nil, errors.New("expiry schedule must not be empty")
	}

	e := &Expirer{
		offers:  offers,
		borrows: borrows,
		cron:    cron.New(),
	}

	_, err := e.cron.AddFunc(schedule, func() { e.RunOnce(context.Background(), time.Now().UTC()) })
	if err != nil {
		return nil, err
	}

	e.cron.Start()
	log.Infof("expirer started, schedule: %s", schedule)
	return e, nil
}

func (e *Expirer) Stop() {
	<-e.cron.Stop().Done()
}

// RunOnce expires everything due at now and reports how many offers and requests it closed.
func (e *Expirer) RunOnce(ctx context.Context, now time.Time) (offers int64, requests int64) {

	offers, err := e.offers.Expire(ctx, now)
	if err != nil {
		log.Errorf("failed to expire offers: %v", err)
	} else if offers > 0 {
		metrics.ExpiredCounter.WithLabelValues("offer").Add(float64(offers))
		log.Infof("expired %v offers", offers)
	}

	requests, err = e.borrows.ExpireRequests(ctx, now)
	if err != nil {
		log.Errorf("failed to expire borrow requests: %v", err)
	} else if requests > 0 {
		metrics.ExpiredCounter.WithLabelValues("borrow_request").Add(float64(requests))
		log.Infof("closed %v borrow requests past their window", requests)
	}

	return offers, requests
}
