package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/olekukonko/tablewriter"
)

// Disk shapes mirror the repository encoding so the inspector stays a
// standalone read-only binary.
type diskSubscription struct {
	SubscriberID string `cbor:"1,keyasint"`
	ChannelID    string `cbor:"2,keyasint"`
	CreatedAt    int64  `cbor:"3,keyasint"`
}

type diskChannel struct {
	ID        string `cbor:"1,keyasint"`
	Name      string `cbor:"2,keyasint"`
	URL       string `cbor:"3,keyasint"`
	Cursor    int64  `cbor:"4,keyasint"`
	CreatedAt int64  `cbor:"5,keyasint"`
}

type diskSubscriber struct {
	ID        string `cbor:"1,keyasint"`
	Private   bool   `cbor:"2,keyasint"`
	CreatedAt int64  `cbor:"3,keyasint"`
}

type diskDelivery struct {
	ChannelID    string `cbor:"1,keyasint"`
	ItemID       string `cbor:"2,keyasint"`
	SubscriberID string `cbor:"3,keyasint"`
	Delivered    bool   `cbor:"4,keyasint"`
	Attempts     int    `cbor:"5,keyasint"`
	LastError    string `cbor:"6,keyasint"`
	At           int64  `cbor:"7,keyasint"`
}

func main() {
	dbPath := flag.String("db", "/tmp/subcast/badger", "Path to badger DB")
	// Par défaut on regarde les abonnements, les autres préfixes sont
	// chan:, dlv:, rsub: et subr:
	prefix := flag.String("prefix", "sub:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			err := item.Value(func(v []byte) error {
				kind, at, detail, err := describe(rawKey, v)
				if err != nil {
					// Au lieu de stopper tout le script, on log l'erreur et on continue
					fmt.Printf("Error unmarshaling key %s: %v\n", rawKey, err)
					return nil
				}
				table.Append([]string{rawKey, kind, at.Format("15:04:05"), detail})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func describe(key string, value []byte) (kind string, at time.Time, detail string, err error) {
	switch {
	case strings.HasPrefix(key, "chan:"):
		var c diskChannel
		if err = cbor.Unmarshal(value, &c); err != nil {
			return
		}
		return "CHANNEL", time.Unix(0, c.CreatedAt),
			fmt.Sprintf("%s (@%s) cursor=%d", c.Name, c.URL, c.Cursor), nil
	case strings.HasPrefix(key, "dlv:"):
		var d diskDelivery
		if err = cbor.Unmarshal(value, &d); err != nil {
			return
		}
		outcome := "OK"
		if !d.Delivered {
			outcome = "FAILED " + d.LastError
		}
		return "DELIVERY", time.Unix(0, d.At),
			fmt.Sprintf("%s -> %s attempts=%d %s", d.ItemID, d.SubscriberID, d.Attempts, outcome), nil
	case strings.HasPrefix(key, "subr:"):
		var s diskSubscriber
		if err = cbor.Unmarshal(value, &s); err != nil {
			return
		}
		return "SUBSCRIBER", time.Unix(0, s.CreatedAt),
			fmt.Sprintf("%s private=%t", s.ID, s.Private), nil
	default:
		var s diskSubscription
		if err = cbor.Unmarshal(value, &s); err != nil {
			return
		}
		return "SUBSCRIPTION", time.Unix(0, s.CreatedAt),
			fmt.Sprintf("%s -> %s", s.SubscriberID, s.ChannelID), nil
	}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// Si corruption détectée, essaie un open en write pour truncate
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			// Ferme et réouvre en read-only
			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
