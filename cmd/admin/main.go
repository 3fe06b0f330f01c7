// Command admin is the moderation/cleanup tooling around the realtime store.
// It inspects queued messages and notifications straight from BadgerDB and
// can purge a user's queued backlog. Run it against a stopped server or a
// copy of the data directory; badger allows a single process at a time.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"careerlink/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "", "path to the badger data directory")
	user := flag.String("user", "", "user id to inspect")
	mode := flag.String("mode", "queued", "queued | notifications | summary")
	purge := flag.Bool("purge", false, "drop the user's queued index entries (queued mode only)")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "missing -db")
		os.Exit(1)
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening badger: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	switch *mode {
	case "queued":
		err = showQueued(db, *user, *purge)
	case "notifications":
		err = showNotifications(db, *user)
	case "summary":
		err = showSummary(db)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// showQueued lists (and optionally purges) the queued backlog of one user.
func showQueued(db *badger.DB, user string, purge bool) error {
	if user == "" {
		return fmt.Errorf("queued mode needs -user")
	}
	prefix := []byte(fmt.Sprintf("queued:%s:", user))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Message ID", "Conversation", "Sender", "Created At", "Content"})

	var queuedKeys [][]byte
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			queuedKeys = append(queuedKeys, it.Item().KeyCopy(nil))
			var primary []byte
			if err := it.Item().Value(func(val []byte) error {
				primary = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}
			item, err := txn.Get(primary)
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var m domain.Message
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			table.Append([]string{
				m.ID.String()[:8],
				m.ConversationID.String()[:8],
				m.SenderID,
				m.CreatedAt.Format("2006-01-02 15:04:05"),
				truncate(m.Content, 40),
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	color.Bold.Printf("Queued backlog for %s (%d entries)\n", user, len(queuedKeys))
	table.Render()

	if !purge || len(queuedKeys) == 0 {
		return nil
	}
	err = db.Update(func(txn *badger.Txn) error {
		for _, key := range queuedKeys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	color.Yellow.Printf("Purged %d queued index entries\n", len(queuedKeys))
	return nil
}

func showNotifications(db *badger.DB, user string) error {
	if user == "" {
		return fmt.Errorf("notifications mode needs -user")
	}
	prefix := []byte(fmt.Sprintf("notif:%s:", user))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Type", "Priority", "Read", "Title"})

	count := 0
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var n domain.Notification
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return err
			}
			table.Append([]string{
				n.ID.String()[:8],
				string(n.Type),
				string(n.Priority),
				strconv.FormatBool(n.Read),
				truncate(n.Title, 40),
			})
			count++
		}
		return nil
	})
	if err != nil {
		return err
	}

	color.Bold.Printf("Notifications for %s (%d)\n", user, count)
	table.Render()
	return nil
}

// showSummary counts entities per key namespace.
func showSummary(db *badger.DB) error {
	counts := map[string]int{}
	err := db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			for i, b := range key {
				if b == ':' {
					counts[string(key[:i])]++
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Namespace", "Keys"})
	for ns, count := range counts {
		table.Append([]string{ns, strconv.Itoa(count)})
	}
	color.Bold.Println("Store summary")
	table.Render()
	return nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
