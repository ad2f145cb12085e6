package provision

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupLog_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stripe-emails.log")
	l := NewBackupLog(path)
	l.now = func() time.Time { return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, l.Append("ada@example.com", "checkout.session.completed", true))
	require.NoError(t, l.Append("bea@example.com", "customer.subscription.deleted_cancellation", false))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		`{"email":"ada@example.com","eventType":"checkout.session.completed","timestamp":"2025-07-01T12:00:00Z","isPro":true}`+"\n"+
			`{"email":"bea@example.com","eventType":"customer.subscription.deleted_cancellation","timestamp":"2025-07-01T12:00:00Z","isPro":false}`+"\n",
		string(raw))

	records, err := l.Read()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ada@example.com", records[0].Email)
	assert.True(t, records[0].IsPro)
	assert.False(t, records[1].IsPro)
}

func TestBackupLog_ReadMissingFile(t *testing.T) {
	l := NewBackupLog(filepath.Join(t.TempDir(), "absent.log"))

	records, err := l.Read()

	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestBackupLog_ReadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stripe-emails.log")
	content := `{"email":"ada@example.com","eventType":"x","timestamp":"2025-07-01T12:00:00Z","isPro":true}
not json at all

{"email":"bea@example.com","eventType":"y","timestamp":"2025-07-01T12:00:00Z","isPro":false}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, err := NewBackupLog(path).Read()

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "bea@example.com", records[1].Email)
}

func TestBackupLog_ConcurrentAppendsKeepLinesWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stripe-emails.log")
	l := NewBackupLog(path)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Append("ada@example.com", "charge.succeeded", true))
		}()
	}
	wg.Wait()

	records, err := l.Read()
	require.NoError(t, err)
	assert.Len(t, records, 50)
}

func TestBackupLog_AppendUnwritablePath(t *testing.T) {
	l := NewBackupLog(filepath.Join(t.TempDir(), "missing-dir", "log"))
	assert.Error(t, l.Append("ada@example.com", "x", true))
}
