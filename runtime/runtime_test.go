package runtime

import (
	"io"
	"log/slog"
	"testing"

	"careerlink/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testRepos opens a throwaway BadgerDB and returns the repositories the
// runtime components collaborate with.
func testRepos(t *testing.T) (repositories.MessageRepository, repositories.ConversationRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	log := slogDiscard()
	return repositories.NewMessageRepository(db, log, nil),
		repositories.NewConversationRepository(db, log)
}
