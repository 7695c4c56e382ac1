// Package notifier delivers marketplace events to users over Telegram.
package notifier

import (
	"context"
	"fmt"
	"github.com/asaskevich/EventBus"
	"github.com/bwmarrin/snowflake"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/maxaizer/shiftmatch/internal/domain/events"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/maxaizer/shiftmatch/internal/logger"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"strings"
)

type botAPI interface {
	Send(chattable botApi.Chattable) (botApi.Message, error)
	GetUpdatesChan(config botApi.UpdateConfig) botApi.UpdatesChannel
	StopReceivingUpdates()
}

type linkRepository interface {
	Issue(ctx context.Context, link models.TelegramLink) error
	Bind(ctx context.Context, code string, chatID int64) (bool, error)
	ChatID(ctx context.Context, userID snowflake.ID) (int64, error)
}

type memberLister interface {
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error)
}

type Notifier struct {
	api     botAPI
	bus     EventBus.Bus
	node    *snowflake.Node
	links   linkRepository
	members memberLister
}

func NewNotifier(token string, bus EventBus.Bus, node *snowflake.Node, links linkRepository,
	members memberLister) (*Notifier, error) {

	api, err := botApi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Infof("Authorized on account %s", api.Self.UserName)

	if err = botApi.SetLogger(log.StandardLogger()); err != nil {
		return nil, err
	}

	return newNotifier(api, bus, node, links, members)
}

func newNotifier(api botAPI, bus EventBus.Bus, node *snowflake.Node, links linkRepository,
	members memberLister) (*Notifier, error) {

	if bus == nil {
		return nil, errors.New("bus is nil")
	}
	if links == nil {
		return nil, errors.New("link repository is nil")
	}
	if members == nil {
		return nil, errors.New("member lister is nil")
	}

	n := &Notifier{api: api, bus: bus, node: node, links: links, members: members}

	handlers := map[string]any{
		events.MatchCreatedTopic:        n.onMatchCreated,
		events.OfferSentTopic:           n.onOfferSent,
		events.OfferResolvedTopic:       n.onOfferResolved,
		events.BorrowOfferReceivedTopic: n.onBorrowOfferReceived,
		events.BorrowRequestFilledTopic: n.onBorrowRequestFilled,
		events.CircleInviteTopic:        n.onCircleInvite,
	}
	for topic, handler := range handlers {
		if err := bus.SubscribeAsync(topic, handler, false); err != nil {
			return nil, errors.Wrapf(err, "failed to subscribe to %s", topic)
		}
	}
	return n, nil
}

// IssueLinkCode creates the code a user sends as "/start <code>" to receive notifications in that chat.
func (n *Notifier) IssueLinkCode(ctx context.Context, userID snowflake.ID) (string, error) {
	code := strings.ReplaceAll(uuid.NewString(), "-", "")
	err := n.links.Issue(ctx, models.TelegramLink{
		Record: models.Record{ID: n.node.Generate()},
		UserID: userID,
		Code:   code,
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// Run serves chat link requests until ctx is done.
func (n *Notifier) Run(ctx context.Context) {

	updateConfig := botApi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := n.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			n.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			n.handleMessage(ctx, update.Message)
		}
	}
}

// Stop waits for notifications already being delivered.
func (n *Notifier) Stop() {
	n.bus.WaitAsync()
}

func (n *Notifier) handleMessage(ctx context.Context, message *botApi.Message) {

	var text string
	switch message.Command() {
	case "start":
		text = n.bindChat(ctx, message.Chat.ID, strings.TrimSpace(message.CommandArguments()))
	case "":
		text = "Use the link from your profile to connect this chat."
	default:
		text = "Unknown command."
	}

	n.send(message.Chat.ID, text)
}

func (n *Notifier) bindChat(ctx context.Context, chatID int64, code string) string {
	if code == "" {
		return "Hello! Open the marketplace and use \"Connect Telegram\" to get notifications here."
	}

	bound, err := n.links.Bind(ctx, code, chatID)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to bind chat %d: %v", chatID, err)
		return "Something went wrong, please try again."
	}
	if !bound {
		return "This link is no longer valid, please request a new one."
	}
	return "Done! You will get your matches, offers and shift requests here."
}

func (n *Notifier) onMatchCreated(event events.MatchCreated) {
	ctx := context.Background()
	n.notifyUser(ctx, event.Match.CandidateID, "It's a match! An employer is interested in you too.")
	n.notifyOrg(ctx, event.Match.OrgID, fmt.Sprintf("New match for listing %v.", event.Match.ListingID))
}

func (n *Notifier) onOfferSent(event events.OfferSent) {
	offer := event.Offer
	text := fmt.Sprintf("You have a new offer: %s from %s.", offer.Payload.Role, offer.Payload.StartDate.Format("2 Jan 2006"))
	if offer.ExpiresAt != nil {
		text += fmt.Sprintf(" Answer before %s.", offer.ExpiresAt.Format("2 Jan 15:04 MST"))
	}
	n.notifyUser(context.Background(), offer.CandidateID, text)
}

func (n *Notifier) onOfferResolved(event events.OfferResolved) {
	offer := event.Offer
	if offer.Status == models.OfferWithdrawn {
		n.notifyUser(context.Background(), offer.CandidateID, fmt.Sprintf("The %s offer was withdrawn.", offer.Payload.Role))
		return
	}
	n.notifyOrg(context.Background(), offer.OrgID, fmt.Sprintf("Your %s offer was %s.", offer.Payload.Role, offer.Status))
}

func (n *Notifier) onBorrowOfferReceived(event events.BorrowOfferReceived) {
	request := event.Request
	n.notifyUser(context.Background(), event.Offer.CandidateID,
		fmt.Sprintf("A shift needs cover: %s in %s, %s - %s. First to accept gets it.", request.Role, request.Location,
			request.WindowStart.Format("2 Jan 15:04"), request.WindowEnd.Format("2 Jan 15:04")))
}

func (n *Notifier) onBorrowRequestFilled(event events.BorrowRequestFilled) {
	acceptance := event.Acceptance
	ctx := context.Background()
	n.notifyUser(ctx, acceptance.Offer.CandidateID,
		fmt.Sprintf("The %s shift is yours. See you on %s!", acceptance.Request.Role,
			acceptance.Booking.StartsAt.Format("2 Jan 15:04")))
	n.notifyOrg(ctx, acceptance.Request.OrgID, fmt.Sprintf("Your %s shift was filled.", acceptance.Request.Role))
}

func (n *Notifier) onCircleInvite(event events.CircleInvite) {
	n.notifyOrg(context.Background(), event.Link.TargetOrgID, "Your organization was invited to a trusted circle.")
}

func (n *Notifier) notifyOrg(ctx context.Context, orgID snowflake.ID, text string) {
	userIDs, err := n.members.ListMembers(ctx, orgID)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to list members of org %v: %v", orgID, err)
		return
	}
	for _, userID := range userIDs {
		n.notifyUser(ctx, userID, text)
	}
}

func (n *Notifier) notifyUser(ctx context.Context, userID snowflake.ID, text string) {
	chatID, err := n.links.ChatID(ctx, userID)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to resolve chat of user %v: %v", userID, err)
		return
	}
	if chatID == 0 {
		return
	}
	n.send(chatID, text)
}

func (n *Notifier) send(chatID int64, text string) {
	if _, err := n.api.Send(botApi.NewMessage(chatID, text)); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
			Errorf("error occured while sending message: %v", err)
	}
}
