package adminauth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/conferenceportal/internal/auth"
	"github.com/Lllllllleong/conferenceportal/internal/models"
	"github.com/Lllllllleong/conferenceportal/internal/store/memstore"
)

// stubStrategy records calls and returns a fixed answer.
type stubStrategy struct {
	name   string
	answer bool
	err    error
	calls  int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) IsAdmin(ctx context.Context, userID string) (bool, error) {
	s.calls++
	return s.answer, s.err
}

func TestResolver_ShortCircuitsOnFirstGrant(t *testing.T) {
	first := &stubStrategy{name: "first", answer: true}
	second := &stubStrategy{name: "second", answer: true}

	ok, err := NewResolver(first, second).IsAdmin(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestResolver_FallsThroughInOrder(t *testing.T) {
	first := &stubStrategy{name: "first"}
	second := &stubStrategy{name: "second"}
	third := &stubStrategy{name: "third", answer: true}

	ok, err := NewResolver(first, second, third).IsAdmin(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int{1, 1, 1}, []int{first.calls, second.calls, third.calls})
}

func TestResolver_NoneGrant(t *testing.T) {
	ok, err := NewResolver(&stubStrategy{name: "a"}, &stubStrategy{name: "b"}).IsAdmin(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolver_ErrorDoesNotBlockLaterGrant(t *testing.T) {
	broken := &stubStrategy{name: "broken", err: errors.New("registry unavailable")}
	granting := &stubStrategy{name: "role", answer: true}

	ok, err := NewResolver(broken, granting).IsAdmin(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolver_ErrorSurfacesWhenNothingGrants(t *testing.T) {
	broken := &stubStrategy{name: "broken", err: errors.New("registry unavailable")}

	ok, err := NewResolver(broken, &stubStrategy{name: "role"}).IsAdmin(context.Background(), "u1")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "registry unavailable")
}

func TestResolver_EmptyUserIsNeverAdmin(t *testing.T) {
	ok, err := NewResolver(&stubStrategy{name: "yes", answer: true}).IsAdmin(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDefaultResolver_Strategies(t *testing.T) {
	st := memstore.New()
	st.PutUser(&models.User{ID: "role-admin", Role: models.RoleAdmin})
	st.PutUser(&models.User{ID: "author", Role: models.RoleStudent})
	require.NoError(t, st.RegisterAdmin(context.Background(), "registry-admin"))

	r := NewDefaultResolver(st)

	claimCtx := auth.WithIdentity(context.Background(), auth.Identity{UserID: "claim-admin", AdminClaim: true})
	ok, err := r.IsAdmin(claimCtx, "claim-admin")
	require.NoError(t, err)
	assert.True(t, ok, "claim strategy")

	// A claim belonging to someone else does not transfer.
	ok, err = r.IsAdmin(claimCtx, "author")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.IsAdmin(context.Background(), "registry-admin")
	require.NoError(t, err)
	assert.True(t, ok, "registry strategy")

	ok, err = r.IsAdmin(context.Background(), "role-admin")
	require.NoError(t, err)
	assert.True(t, ok, "role strategy")

	ok, err = r.IsAdmin(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}
