package main

import (
	"context"
	"github.com/asaskevich/EventBus"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/clients/gemini"
	"github.com/maxaizer/shiftmatch/internal/config"
	"github.com/maxaizer/shiftmatch/internal/logger"
	"github.com/maxaizer/shiftmatch/internal/metrics"
	"github.com/maxaizer/shiftmatch/internal/notifier"
	"github.com/maxaizer/shiftmatch/internal/ranking"
	"github.com/maxaizer/shiftmatch/internal/repositories"
	"github.com/maxaizer/shiftmatch/internal/services"
	log "github.com/sirupsen/logrus"
	"os/signal"
	"syscall"
	"time"
)

const membershipCacheTTL = time.Minute

// app holds the marketplace core. Transports embed it and call the services directly.
type app struct {
	Tracker *services.JobTracker
	Swipes  *services.SwipeEngine
	Offers  *services.OfferService
	Borrows *services.BorrowService
	Circles *services.CircleService
	Feed    *services.FeedService

	expirer  *services.Expirer
	notifier *notifier.Notifier
	aiClient *gemini.Client
}

func buildApp(ctx context.Context, cfg *config.Config, dbContext *repositories.DbContext) *app {

	node, err := snowflake.NewNode(cfg.Marketplace.NodeID)
	if err != nil {
		log.Fatalf("can't create id node: %v", err)
	}
	bus := EventBus.New()

	db := dbContext.DB
	memberships := repositories.NewMembershipsRepository(db)
	cachedMemberships := repositories.NewCachedMemberships(memberships, membershipCacheTTL)
	listings := repositories.NewListingsRepository(db)
	candidates := repositories.NewCandidatesRepository(db)
	matches := repositories.NewMatchesRepository(db)
	circles := repositories.NewCirclesRepository(db)

	a := &app{
		Tracker: services.NewJobTracker(node, repositories.NewJobStatesRepository(db), listings),
		Swipes: services.NewSwipeEngine(bus, node, listings, candidates, repositories.NewSwipesRepository(db),
			matches, cachedMemberships),
		Offers: services.NewOfferService(bus, node, repositories.NewOffersRepository(db), matches, listings,
			candidates, cachedMemberships, cfg.Marketplace.OfferTTL),
		Borrows: services.NewBorrowService(bus, node, repositories.NewBorrowsRepository(db), candidates, circles,
			cachedMemberships),
		Circles: services.NewCircleService(bus, node, circles, memberships, cachedMemberships),
	}

	var scorer services.Scorer
	if cfg.Scoring.Enabled() {
		a.aiClient, err = gemini.NewClient(ctx, gemini.Options{
			APIKey:               cfg.Scoring.AIKey,
			Model:                gemini.Model(cfg.Scoring.Model),
			MaxRequestsPerMinute: cfg.Scoring.AiMaxRequestsPerMinute,
			MaxRequestsPerDay:    cfg.Scoring.AiMaxRequestsPerDay,
		})
		if err != nil {
			log.Fatalf("can't create AI client: %v", err)
		}
		scorer = services.NewAIScorer(a.aiClient, listings, candidates)
	} else {
		log.Info("scoring disabled, feeds are served in base order")
	}

	scoring := services.NewScoringService(scorer, cfg.Scoring.Timeout, cfg.Scoring.CacheTTL)
	a.Feed = services.NewFeedService(listings, candidates, cachedMemberships, scoring,
		ranking.NewManager(cfg.Marketplace.StackTTL))

	if cfg.Notifier.Enabled {
		a.notifier, err = notifier.NewNotifier(cfg.Notifier.Token, bus, node,
			repositories.NewTelegramLinksRepository(db), memberships)
		if err != nil {
			log.Fatalf("can't create notifier: %v", err)
		}
	}

	a.expirer, err = services.NewExpirer(a.Offers, a.Borrows, cfg.Marketplace.ExpirySchedule)
	if err != nil {
		log.Fatalf("can't create expirer: %v", err)
	}

	return a
}

func (a *app) run(ctx context.Context) {
	if a.notifier != nil {
		go a.notifier.Run(ctx)
	}
}

func (a *app) stop() {
	a.expirer.Stop()
	if a.notifier != nil {
		a.notifier.Stop()
	}
	if a.aiClient != nil {
		if err := a.aiClient.Close(); err != nil {
			log.Warnf("can't close AI client: %v", err)
		}
	}
}

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()

	logger.Setup(ctx, cfg.Logger)
	defer logger.Cleanup()

	metrics.StartMetricsServer(cfg.Metrics.Address)

	dbContext, err := repositories.NewDbContext(cfg.DB)
	if err != nil {
		log.Fatalf("can't create db context: %v", err)
	}
	defer dbContext.Close()

	err = dbContext.Migrate()
	if err != nil {
		log.Fatalf("can't migrate db context: %v", err)
	}

	a := buildApp(ctx, cfg, dbContext)
	a.run(ctx)
	log.Info("shiftmatch started")

	<-ctx.Done()

	log.Info("Shutting down services...")
	a.stop()
	log.Info("Services stopped.")
}
