package main

import (
	"chat-relay/repositories"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// inspect prints what the relay stored: a summary per room, or the latest
// messages of one room. The database is opened read-only so it can run
// next to a live server.
func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	room := flag.String("room", "", "Room to list, summary of all rooms when empty")
	limit := flag.Int("limit", 20, "Number of messages to list")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	repository := repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelWarn))
	ctx := context.Background()

	if *room == "" {
		err = printStats(ctx, repository)
	} else {
		err = printMessages(ctx, repository, *room, *limit)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func printStats(ctx context.Context, repository repositories.MessageRepository) error {
	stats, err := repository.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(" ROOMS "))

	table := newTable([]string{"Room", "Messages", "Oldest", "Newest"})
	total := 0
	for _, stat := range stats {
		total += stat.Count
		table.Append([]string{
			stat.Room,
			strconv.Itoa(stat.Count),
			stat.Oldest.Format(time.RFC3339),
			stat.Newest.Format(time.RFC3339),
		})
	}
	table.Render()
	fmt.Printf("%s %d messages in %d rooms\n", color.Cyan.Sprint("Total:"), total, len(stats))
	return nil
}

func printMessages(ctx context.Context, repository repositories.MessageRepository, room string, limit int) error {
	messages, err := repository.GetMessages(ctx, room, nil, limit)
	if err != nil {
		return err
	}
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(" " + room + " "))
	if len(messages) == 0 {
		fmt.Println(color.Yellow.Sprint("No message stored for this room"))
		return nil
	}

	table := newTable([]string{"Created", "ID", "Sender", "Text", "Attachment"})
	// Newest first from storage, printed oldest first.
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		table.Append([]string{
			m.At.Format(time.RFC3339Nano),
			m.ID.String(),
			m.Author,
			m.Content,
			m.AttachmentURL,
		})
	}
	table.Render()
	return nil
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
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
	return table
}
