package services

import (
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/errs"
	"github.com/maxaizer/shiftmatch/internal/domain/events"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func Test_DeclinedInvite_NeverWidensCirclePool(t *testing.T) {
	f := newFixture(t)
	orgA, employerA := f.org("Visby Hamn")
	orgB, employerB := f.org("Slite Bakery")
	candidate := f.candidate("Alva", "Slite", models.VisibilityPublic)
	f.match(employerB, candidate, f.listing(orgB, models.ListingJob, "baker", "Slite"))

	link, err := f.circles.Invite(f.ctx, employerA, orgA, orgB)
	require.NoError(t, err)
	assert.Equal(t, models.CircleLinkPending, link.Status)
	assert.Equal(t, 1, f.events(events.CircleInviteTopic))

	trusted, err := f.circles.IsTrusted(f.ctx, orgA, orgB)
	require.NoError(t, err)
	assert.False(t, trusted, "pending links grant nothing")

	declined, err := f.circles.Decline(f.ctx, employerB, link.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CircleLinkDeclined, declined.Status)
	require.NotNil(t, declined.RespondedBy)
	assert.Equal(t, employerB.UserID, *declined.RespondedBy)

	trusted, err = f.circles.IsTrusted(f.ctx, orgA, orgB)
	require.NoError(t, err)
	assert.False(t, trusted)

	request := f.borrowRequest(employerA, orgA, models.ScopeCircle, nil)
	pool, err := f.borrows.ResolvePool(f.ctx, request.ID)
	require.NoError(t, err)
	assert.Empty(t, pool)

	_, err = f.circles.Accept(f.ctx, employerB, link.ID)
	assert.True(t, errs.Is(err, errs.InvalidStatus))
}

func Test_AcceptedInvite_IsSymmetric(t *testing.T) {
	f := newFixture(t)
	orgA, employerA := f.org("Visby Hamn")
	orgB, employerB := f.org("Slite Bakery")

	f.trust(employerA, orgA, employerB, orgB)

	trusted, err := f.circles.IsTrusted(f.ctx, orgA, orgB)
	require.NoError(t, err)
	assert.True(t, trusted)
	trusted, err = f.circles.IsTrusted(f.ctx, orgB, orgA)
	require.NoError(t, err)
	assert.True(t, trusted)

	partners, err := f.circles.TrustedPartners(f.ctx, orgB)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{orgA}, partners)

	_, err = f.circles.Invite(f.ctx, employerB, orgB, orgA)
	assert.True(t, errs.Is(err, errs.Conflict), "already trusted in the other direction")
}

func Test_Invite_Conflicts(t *testing.T) {
	f := newFixture(t)
	orgA, employerA := f.org("Visby Hamn")
	orgB, employerB := f.org("Slite Bakery")

	_, err := f.circles.Invite(f.ctx, employerA, orgA, orgA)
	assert.True(t, errs.Is(err, errs.Validation))

	_, err = f.circles.Invite(f.ctx, employerB, orgA, orgB)
	assert.True(t, errs.Is(err, errs.Forbidden))

	_, err = f.circles.Invite(f.ctx, employerA, orgA, f.node.Generate())
	assert.True(t, errs.Is(err, errs.NotFound))

	link, err := f.circles.Invite(f.ctx, employerA, orgA, orgB)
	require.NoError(t, err)

	_, err = f.circles.Invite(f.ctx, employerB, orgB, orgA)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Conflict))
	assert.Equal(t, link.ID, errs.BlockingID(err))

	pending, err := f.circles.PendingInvites(f.ctx, employerB, orgB)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, link.ID, pending[0].ID)

	// a declined link does not block a new invitation
	_, err = f.circles.Decline(f.ctx, employerB, link.ID)
	require.NoError(t, err)
	_, err = f.circles.Invite(f.ctx, employerB, orgB, orgA)
	assert.NoError(t, err)
}

func Test_OnlyTargetOrg_AnswersInvite(t *testing.T) {
	f := newFixture(t)
	orgA, employerA := f.org("Visby Hamn")
	orgB, _ := f.org("Slite Bakery")
	_, outsider := f.org("Fårö Café")

	link, err := f.circles.Invite(f.ctx, employerA, orgA, orgB)
	require.NoError(t, err)

	_, err = f.circles.Accept(f.ctx, employerA, link.ID)
	assert.True(t, errs.Is(err, errs.Forbidden), "the inviting org can't accept its own invitation")
	_, err = f.circles.Accept(f.ctx, outsider, link.ID)
	assert.True(t, errs.Is(err, errs.Forbidden))

	trusted, err := f.circles.IsTrusted(f.ctx, orgA, orgB)
	require.NoError(t, err)
	assert.False(t, trusted)
}

func Test_NamedCircle_Membership(t *testing.T) {
	f := newFixture(t)
	orgA, employerA := f.org("Visby Hamn")
	orgB, employerB := f.org("Slite Bakery")
	orgC, _ := f.org("Fårö Café")
	f.trust(employerA, orgA, employerB, orgB)

	circle, err := f.circles.CreateCircle(f.ctx, employerA, orgA, "  Norra Kusten ")
	require.NoError(t, err)
	assert.Equal(t, "Norra Kusten", circle.Name)
	assert.Equal(t, "norra-kusten", circle.Slug)

	_, err = f.circles.CreateCircle(f.ctx, employerA, orgA, "norra kusten")
	assert.True(t, errs.Is(err, errs.Conflict))
	_, err = f.circles.CreateCircle(f.ctx, employerA, orgA, " ")
	assert.True(t, errs.Is(err, errs.Validation))

	err = f.circles.AddMember(f.ctx, employerA, circle.ID, orgC)
	assert.True(t, errs.Is(err, errs.Validation), "untrusted orgs can't join")
	err = f.circles.AddMember(f.ctx, employerA, circle.ID, orgA)
	assert.True(t, errs.Is(err, errs.Validation))
	err = f.circles.AddMember(f.ctx, employerB, circle.ID, orgB)
	assert.True(t, errs.Is(err, errs.Forbidden), "only the owner manages the circle")

	require.NoError(t, f.circles.AddMember(f.ctx, employerA, circle.ID, orgB))
	require.NoError(t, f.circles.AddMember(f.ctx, employerA, circle.ID, orgB), "adding twice is a no-op")

	members, err := f.circles.Members(f.ctx, employerA, circle.ID)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{orgB}, members)

	require.NoError(t, f.circles.RemoveMember(f.ctx, employerA, circle.ID, orgB))
	err = f.circles.RemoveMember(f.ctx, employerA, circle.ID, orgB)
	assert.True(t, errs.Is(err, errs.NotFound))
}
