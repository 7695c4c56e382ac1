package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"net/http"
	"sync"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftmatch_errors_total",
			Help: "Logged failures by error type and level.",
		},
		[]string{"type", "level"},
	)
	SwipesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftmatch_swipes_total",
			Help: "Total number of recorded swipes.",
		},
		[]string{"side", "direction"},
	)
	MatchesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shiftmatch_matches_created_total",
			Help: "Total number of created matches.",
		},
	)
	OfferTransitionsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftmatch_offer_transitions_total",
			Help: "Total number of offer status transitions.",
		},
		[]string{"status"},
	)
	OfferConflictsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shiftmatch_offer_conflicts_total",
			Help: "Total number of offer sends rejected because another offer was active.",
		},
	)
	BorrowAcceptsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftmatch_borrow_accepts_total",
			Help: "Total number of borrow offer accept attempts by outcome.",
		},
		[]string{"outcome"},
	)
	FanOutSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shiftmatch_borrow_fan_out_size",
			Help:    "Number of borrow offers created by one fan-out.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)
	ScoringDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "shiftmatch_scoring_duration_seconds",
			Help:       "Duration of scoring requests.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"target"},
	)
	ExpiredCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftmatch_expired_total",
			Help: "Total number of offers and borrow requests expired by the scheduler.",
		},
		[]string{"kind"},
	)
)

var registerOnce sync.Once

func register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ErrorsCounter)
		prometheus.MustRegister(SwipesCounter)
		prometheus.MustRegister(MatchesCounter)
		prometheus.MustRegister(OfferTransitionsCounter)
		prometheus.MustRegister(OfferConflictsCounter)
		prometheus.MustRegister(BorrowAcceptsCounter)
		prometheus.MustRegister(FanOutSize)
		prometheus.MustRegister(ScoringDuration)
		prometheus.MustRegister(ExpiredCounter)
	})
}

func StartMetricsServer(address string) {

	register()

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Fatal(http.ListenAndServe(address, nil))
	}()
}
