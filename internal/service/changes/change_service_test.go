package changes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/weiwangfds/photosync/internal/database"
)

func newTestService(t *testing.T) *changeService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return NewService(db).(*changeService)
}

func TestRecordAndVisibility(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Record("alice", []int64{1, 2}, []string{"alice"})
	require.NoError(t, err)
	_, err = svc.Record("alice", []int64{3}, []string{"alice", "bob"})
	require.NoError(t, err)
	_, err = svc.Record("carol", []int64{4}, []string{"carol", "public"})
	require.NoError(t, err)

	aliceIDs, err := svc.FileIDsSince("alice", 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, aliceIDs)

	bobIDs, err := svc.FileIDsSince("bob", 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, bobIDs)

	// A user addressed by nothing still sees public changes.
	daveIDs, err := svc.FileIDsSince("dave", 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, daveIDs)
}

func TestRecordRejectsEmptyFileSet(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Record("alice", nil, []string{"alice"})
	assert.Error(t, err)
}

func TestRecordDeduplicatesRecipients(t *testing.T) {
	svc := newTestService(t)

	changeID, err := svc.Record("alice", []int64{1}, []string{"alice", "alice", "bob", ""})
	require.NoError(t, err)

	var count int64
	require.NoError(t, svc.db.Model(&database.ChangeRecipient{}).
		Where("change_id = ?", changeID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestFileIDsSinceFiltersByTimestamp(t *testing.T) {
	svc := newTestService(t)

	base := time.Now().Unix()
	svc.now = func() time.Time { return time.Unix(base, 0) }
	_, err := svc.Record("alice", []int64{1}, []string{"alice"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Unix(base+100, 0) }
	_, err = svc.Record("alice", []int64{2}, []string{"alice"})
	require.NoError(t, err)

	ids, err := svc.FileIDsSince("alice", base+50)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)

	// A change stamped exactly at the cursor was already delivered with
	// the previous sync; the boundary is exclusive.
	ids, err = svc.FileIDsSince("alice", base)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)

	all, err := svc.FileIDsSince("alice", base-1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, all)
}

func TestFileIDsSinceID(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.Record("alice", []int64{1}, []string{"alice"})
	require.NoError(t, err)
	_, err = svc.Record("alice", []int64{2}, []string{"alice"})
	require.NoError(t, err)

	ids, err := svc.FileIDsSinceID("alice", first)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)

	all, err := svc.FileIDsSinceID("alice", 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, all)
}

func TestEntriesSince(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Record("alice", []int64{5, 6}, []string{"alice", "bob"})
	require.NoError(t, err)
	_, err = svc.Record("bob", []int64{7}, []string{"bob"})
	require.NoError(t, err)

	entries, err := svc.EntriesSince("bob", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].User)
	assert.Equal(t, []int64{5, 6}, entries[0].FileIDs)
	assert.Equal(t, []int64{7}, entries[1].FileIDs)
}

func TestLatestID(t *testing.T) {
	svc := newTestService(t)

	latest, err := svc.LatestID()
	require.NoError(t, err)
	assert.Equal(t, int64(0), latest)

	id, err := svc.Record("alice", []int64{1}, []string{"alice"})
	require.NoError(t, err)
	latest, err = svc.LatestID()
	require.NoError(t, err)
	assert.Equal(t, id, latest)
}

func TestRecipientsHelper(t *testing.T) {
	got := Recipients("alice", []string{"bob", "public"})
	assert.Equal(t, []string{"alice", "bob", "public"}, got)
	assert.Equal(t, []string{"carol"}, Recipients("carol", nil))
}
