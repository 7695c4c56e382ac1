package services

import (
	"context"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/errs"
	"github.com/maxaizer/shiftmatch/internal/logger"
	log "github.com/sirupsen/logrus"
	"time"
)

type membershipChecker interface {
	IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error)
}

func requireMember(ctx context.Context, memberships membershipChecker, orgID, userID snowflake.ID) error {
	isMember, err := memberships.IsMember(ctx, orgID, userID)
	if err != nil {
		return failure("failed to check org membership", err)
	}
	if !isMember {
		return errs.New(errs.Forbidden, "you are not a member of this organization")
	}
	return nil
}

// failure logs storage errors and returns err classified for the caller.
func failure(message string, err error) error {
	if err == nil {
		return nil
	}
	if errs.KindOf(err) == errs.Unknown {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("%s: %v", message, err)
	}
	return errs.Classify(message, err)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
