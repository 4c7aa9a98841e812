package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"Lee_Social/internal/model"
	"Lee_Social/internal/pkg"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFollow(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob := w.addUser("alice"), w.addUser("bob")

	require.NoError(t, svc.Follow(ctx, alice, bob))

	ok, err := svc.FollowStatus(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 1, w.user(alice).FollowingCount)
	assert.EqualValues(t, 1, w.user(bob).FollowersCount)
	assert.Equal(t, []string{model.EventFollow}, w.notifier.types())

	err = svc.Follow(ctx, alice, bob)
	assert.Equal(t, pkg.KindAlreadyExists, kindOf(err))
	assert.EqualValues(t, 1, w.user(bob).FollowersCount)
}

type slowNotifier struct{ delay time.Duration }

func (n slowNotifier) Notify(context.Context, model.RelationEvent) error {
	time.Sleep(n.delay)
	return nil
}

func TestFollowDoesNotWaitOnSlowNotifier(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	d := w.deps()
	d.Notifier = slowNotifier{delay: 2 * time.Second}
	d.NotifyTimeout = 50 * time.Millisecond
	svc := NewRelationService(d)
	alice, bob := w.addUser("alice"), w.addUser("bob")

	start := time.Now()
	require.NoError(t, svc.Follow(ctx, alice, bob))
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, w.hasFollow(alice, bob))
	assert.EqualValues(t, 1, w.user(bob).FollowersCount)
}

func TestFollowUnfollowRoundTrip(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob := w.addUser("alice"), w.addUser("bob")

	require.NoError(t, svc.Follow(ctx, alice, bob))
	require.NoError(t, svc.Unfollow(ctx, alice, bob))

	assert.False(t, w.hasFollow(alice, bob))
	assert.Zero(t, w.user(alice).FollowingCount)
	assert.Zero(t, w.user(bob).FollowersCount)

	err := svc.Unfollow(ctx, alice, bob)
	assert.Equal(t, pkg.KindInvalidState, kindOf(err))
	assert.Zero(t, w.user(bob).FollowersCount)
}

func TestFollowSelfAndMissing(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	ghost := primitive.NewObjectID().Hex()

	// 自关注先于用户存在性检查
	assert.Equal(t, pkg.KindSelfReference, kindOf(svc.Follow(ctx, ghost, ghost)))
	assert.Equal(t, pkg.KindSelfReference, kindOf(svc.Unfollow(ctx, ghost, ghost)))

	alice := w.addUser("alice")
	assert.Equal(t, pkg.KindNotFound, kindOf(svc.Follow(ctx, alice, ghost)))
	assert.Equal(t, pkg.KindNotFound, kindOf(svc.Unfollow(ctx, alice, ghost)))
}

func TestFollowGraphDown(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob := w.addUser("alice"), w.addUser("bob")
	w.breakGraph()

	err := svc.Follow(ctx, alice, bob)
	assert.Equal(t, pkg.KindStoreUnavailable, kindOf(err))
	assert.True(t, errors.Is(err, errGraphDown))
	assert.Zero(t, w.user(bob).FollowersCount)
	assert.Empty(t, w.repair.kinds(), "state-determining writes are not queued")
}

func TestFollowCounterFailure(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob := w.addUser("alice"), w.addUser("bob")
	w.failCounter = errors.New("mongo: write timeout")

	err := svc.Follow(ctx, alice, bob)
	assert.Equal(t, pkg.KindInternal, kindOf(err))
	// 边已建立，计数留给对账任务
	assert.True(t, w.hasFollow(alice, bob))
}

func TestFollowersPagination(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	target := w.addUser("target")
	var fans []string
	for _, name := range []string{"ann", "ben", "cat"} {
		id := w.addUser(name)
		fans = append(fans, id)
		require.NoError(t, svc.Follow(ctx, id, target))
	}
	// 访问者关注了 ben
	require.NoError(t, svc.Follow(ctx, fans[0], fans[1]))

	page, err := svc.Followers(ctx, target, fans[0], pkg.NewPage(1, 2))
	require.NoError(t, err)
	assert.Equal(t, pkg.Pagination{Page: 1, Limit: 2, Total: 3, Pages: 2}, page.Pagination)
	require.Len(t, page.Users, 2)

	page2, err := svc.Followers(ctx, target, fans[0], pkg.NewPage(2, 2))
	require.NoError(t, err)
	require.Len(t, page2.Users, 1)

	following := map[string]bool{}
	for _, u := range append(page.Users, page2.Users...) {
		following[u.ID] = u.IsFollowing
	}
	assert.Equal(t, map[string]bool{fans[0]: false, fans[1]: true, fans[2]: false}, following)
}

func TestFollowingSkipsDeletedUsers(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob, carl := w.addUser("alice"), w.addUser("bob"), w.addUser("carl")
	require.NoError(t, svc.Follow(ctx, alice, bob))
	require.NoError(t, svc.Follow(ctx, alice, carl))
	require.NoError(t, fakeUsers{w.memStore}.SoftDelete(ctx, carl, w.now))

	page, err := svc.Following(ctx, alice, "", pkg.NewPage(1, 20))
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, bob, page.Users[0].ID)
	// 总数来自图库
	assert.EqualValues(t, 2, page.Pagination.Total)
}

func TestSuggestions(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	me := w.addUser("me")

	got, err := svc.Suggestions(ctx, me, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	a, b := w.addUser("a"), w.addUser("b")
	x, y := w.addUser("x"), w.addUser("y")
	require.NoError(t, svc.Follow(ctx, me, a))
	require.NoError(t, svc.Follow(ctx, me, b))
	require.NoError(t, svc.Follow(ctx, a, x))
	require.NoError(t, svc.Follow(ctx, b, x))
	require.NoError(t, svc.Follow(ctx, a, y))
	require.NoError(t, svc.Follow(ctx, a, me))

	got, err = svc.Suggestions(ctx, me, 50)
	require.NoError(t, err)
	type row struct {
		ID     string
		Mutual int64
	}
	var rows []row
	for _, s := range got {
		rows = append(rows, row{s.ID, s.MutualCount})
	}
	want := []row{{x, 2}, {y, 1}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("suggestions mismatch (-want +got):\n%s", diff)
	}
}

func TestMutualFollowing(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	a, b, c, d := w.addUser("a"), w.addUser("b"), w.addUser("c"), w.addUser("d")
	require.NoError(t, svc.Follow(ctx, a, c))
	require.NoError(t, svc.Follow(ctx, b, c))
	require.NoError(t, svc.Follow(ctx, a, d))

	got, err := svc.MutualFollowing(ctx, a, b)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c, got[0].ID)
}

// befriend 走完整的请求-接受流程
func befriend(t *testing.T, svc *RelationService, a, b string) *model.FriendRequest {
	t.Helper()
	ctx := context.Background()
	fr, err := svc.SendFriendRequest(ctx, a, b)
	require.NoError(t, err)
	res, err := svc.AcceptFriendRequest(ctx, fr.ID.Hex(), b)
	require.NoError(t, err)
	require.True(t, res.Graph.OK())
	return res.Request
}

func TestSendFriendRequest(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob := w.addUser("alice"), w.addUser("bob")

	_, err := svc.SendFriendRequest(ctx, alice, alice)
	assert.Equal(t, pkg.KindSelfReference, kindOf(err))

	_, err = svc.SendFriendRequest(ctx, alice, primitive.NewObjectID().Hex())
	assert.Equal(t, pkg.KindNotFound, kindOf(err))

	fr, err := svc.SendFriendRequest(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, model.FriendPending, fr.Status)

	// 任一方向已有未结束的请求
	_, err = svc.SendFriendRequest(ctx, bob, alice)
	require.Error(t, err)
	assert.Equal(t, pkg.KindAlreadyExists, kindOf(err))
	assert.Contains(t, err.Error(), "pending")

	_, err = svc.AcceptFriendRequest(ctx, fr.ID.Hex(), bob)
	require.NoError(t, err)
	_, err = svc.SendFriendRequest(ctx, alice, bob)
	assert.Equal(t, pkg.KindAlreadyExists, kindOf(err))
	assert.Contains(t, err.Error(), "already friends")
}

func TestSendFriendRequestIgnoresGraphErrors(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob := w.addUser("alice"), w.addUser("bob")
	w.breakGraph()

	fr, err := svc.SendFriendRequest(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, model.FriendPending, fr.Status)
}

func TestSendFriendRequestIgnoresStaleFriendEdge(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob := w.addUser("alice"), w.addUser("bob")
	// 图库残留边，文档库中没有已接受的请求
	require.NoError(t, fakeGraph{w.memStore}.Befriend(ctx, alice, bob))

	fr, err := svc.SendFriendRequest(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, model.FriendPending, fr.Status)
}

func TestAcceptFriendRequest(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob, carl := w.addUser("alice"), w.addUser("bob"), w.addUser("carl")

	fr, err := svc.SendFriendRequest(ctx, alice, bob)
	require.NoError(t, err)

	// 只有接收方能接受
	_, err = svc.AcceptFriendRequest(ctx, fr.ID.Hex(), carl)
	assert.Equal(t, pkg.KindNotFound, kindOf(err))
	_, err = svc.AcceptFriendRequest(ctx, fr.ID.Hex(), alice)
	assert.Equal(t, pkg.KindNotFound, kindOf(err))

	res, err := svc.AcceptFriendRequest(ctx, fr.ID.Hex(), bob)
	require.NoError(t, err)
	assert.Equal(t, model.FriendAccepted, res.Request.Status)
	assert.True(t, w.hasFriend(alice, bob))
	assert.True(t, w.hasFriend(bob, alice))

	status, err := svc.FriendStatus(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, status.IsFriend)
}

func TestAcceptNonPendingLeavesStoresUntouched(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob := w.addUser("alice"), w.addUser("bob")

	fr, err := svc.SendFriendRequest(ctx, alice, bob)
	require.NoError(t, err)
	_, err = svc.DeleteFriendRequest(ctx, fr.ID.Hex(), bob)
	require.NoError(t, err)
	before := w.request(fr.ID.Hex())

	_, err = svc.AcceptFriendRequest(ctx, fr.ID.Hex(), bob)
	assert.Equal(t, pkg.KindInvalidState, kindOf(err))
	assert.Equal(t, before, w.request(fr.ID.Hex()))
	assert.False(t, w.hasFriend(alice, bob))
}

func TestAcceptWithGraphDownStillSucceeds(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob := w.addUser("alice"), w.addUser("bob")

	fr, err := svc.SendFriendRequest(ctx, alice, bob)
	require.NoError(t, err)
	w.breakGraph()

	res, err := svc.AcceptFriendRequest(ctx, fr.ID.Hex(), bob)
	require.NoError(t, err)
	assert.False(t, res.Graph.OK())
	assert.Equal(t, model.OpBefriend, res.Graph.Op.Kind)
	assert.Equal(t, model.FriendAccepted, w.request(fr.ID.Hex()).Status)
	assert.Equal(t, []model.GraphOpKind{model.OpBefriend}, w.repair.kinds())

	// 文档库为准
	w.healGraph()
	status, err := svc.FriendStatus(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, status.IsFriend)
}

func TestDeleteFriendRequest(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob, carl := w.addUser("alice"), w.addUser("bob"), w.addUser("carl")

	fr, err := svc.SendFriendRequest(ctx, alice, bob)
	require.NoError(t, err)

	_, err = svc.DeleteFriendRequest(ctx, fr.ID.Hex(), carl)
	assert.Equal(t, pkg.KindForbidden, kindOf(err))

	got, err := svc.DeleteFriendRequest(ctx, fr.ID.Hex(), alice)
	require.NoError(t, err)
	assert.Equal(t, model.FriendCancelled, got.Status)

	_, err = svc.DeleteFriendRequest(ctx, fr.ID.Hex(), bob)
	assert.Equal(t, pkg.KindNotFound, kindOf(err))

	fr2, err := svc.SendFriendRequest(ctx, alice, bob)
	require.NoError(t, err)
	got, err = svc.DeleteFriendRequest(ctx, fr2.ID.Hex(), bob)
	require.NoError(t, err)
	assert.Equal(t, model.FriendRejected, got.Status)
}

func TestUnfriend(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob, carl := w.addUser("alice"), w.addUser("bob"), w.addUser("carl")

	fr := befriend(t, svc, alice, bob)
	other := befriend(t, svc, alice, carl)
	require.NoError(t, svc.Follow(ctx, alice, bob))
	require.NoError(t, svc.Follow(ctx, bob, alice))
	require.NoError(t, svc.Follow(ctx, alice, carl))

	report, err := svc.Unfriend(ctx, alice, bob)
	require.NoError(t, err)
	assert.Empty(t, report.Failed())

	status, err := svc.FriendStatus(ctx, alice, bob)
	require.NoError(t, err)
	assert.False(t, status.IsFriend)
	assert.Equal(t, model.FriendCancelled, w.request(fr.ID.Hex()).Status)
	assert.False(t, w.hasFriend(alice, bob))
	assert.False(t, w.hasFriend(bob, alice))
	assert.False(t, w.hasFollow(alice, bob))
	assert.False(t, w.hasFollow(bob, alice))
	assert.EqualValues(t, 1, w.user(alice).FollowingCount)
	assert.Zero(t, w.user(alice).FollowersCount)
	assert.Zero(t, w.user(bob).FollowingCount)

	// 其他关系不受影响
	assert.Equal(t, model.FriendAccepted, w.request(other.ID.Hex()).Status)
	assert.True(t, w.hasFriend(alice, carl))
	assert.True(t, w.hasFollow(alice, carl))

	_, err = svc.Unfriend(ctx, alice, bob)
	assert.Equal(t, pkg.KindNotFound, kindOf(err))
	_, err = svc.Unfriend(ctx, alice, alice)
	assert.Equal(t, pkg.KindSelfReference, kindOf(err))
}

func TestUnfriendGraphDown(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob := w.addUser("alice"), w.addUser("bob")
	fr := befriend(t, svc, alice, bob)
	w.breakGraph()

	// 图库不可用时以已接受的请求判定好友关系
	report, err := svc.Unfriend(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, model.FriendCancelled, w.request(fr.ID.Hex()).Status)

	var failed []model.GraphOpKind
	for _, b := range report.Failed() {
		failed = append(failed, b.Op.Kind)
	}
	want := []model.GraphOpKind{model.OpUnfriend, model.OpUnfollow, model.OpUnfollow}
	assert.Equal(t, want, failed)
	assert.Equal(t, want, w.repair.kinds())
}

func TestFriendsAndRequests(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := NewRelationService(w.deps())
	alice, bob, carl, dan := w.addUser("alice"), w.addUser("bob"), w.addUser("carl"), w.addUser("dan")
	befriend(t, svc, alice, bob)
	befriend(t, svc, alice, carl)
	befriend(t, svc, bob, carl)

	friends, err := svc.Friends(ctx, alice, alice, pkg.NewPage(1, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 2, friends.Pagination.Total)
	assert.Len(t, friends.Users, 1)

	mutual, err := svc.MutualFriends(ctx, alice, bob)
	require.NoError(t, err)
	require.Len(t, mutual, 1)
	assert.Equal(t, carl, mutual[0].ID)

	_, err = svc.SendFriendRequest(ctx, dan, alice)
	require.NoError(t, err)
	received, err := svc.FriendRequests(ctx, alice, false, pkg.NewPage(1, 20))
	require.NoError(t, err)
	require.Len(t, received.Requests, 1)
	assert.Equal(t, dan, received.Requests[0].User.ID)

	sent, err := svc.FriendRequests(ctx, dan, true, pkg.NewPage(1, 20))
	require.NoError(t, err)
	require.Len(t, sent.Requests, 1)
	assert.Equal(t, alice, sent.Requests[0].User.ID)

	status, err := svc.FriendStatus(ctx, alice, dan)
	require.NoError(t, err)
	assert.False(t, status.IsFriend)
	require.NotNil(t, status.Pending)
}
