package main

import (
	"bufio"
	"chat-relay/client"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	ServerURL  string        `env:"CHAT_SERVER_URL,default=ws://localhost:8080/ws"`
	Room       string        `env:"CHAT_ROOM,default=general"`
	User       string        `env:"CHAT_USER,required=true"`
	Token      string        `env:"CHAT_TOKEN"`
	AckTimeout time.Duration `env:"ACK_TIMEOUT,default=10s"`
	LogLevel   string        `env:"LOG_LEVEL,default=WARN"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run joins a room, prints its history then relays stdin lines.
// Lines starting with "/join " or "/search " are commands.
func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, log, config.ServerURL, config.Token, config.User, client.Options{AckTimeout: config.AckTimeout})
	if err != nil {
		return exitRuntime, err
	}
	defer c.Close()

	errChan := make(chan error, 1)
	go func() { errChan <- c.Run(ctx) }()
	go printEvents(ctx, c, config.User)

	if err := join(ctx, c, chat.RoomName(config.Room)); err != nil {
		return exitRuntime, err
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case err := <-errChan:
			if err != nil {
				return exitRuntime, err
			}
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if err := handleLine(ctx, c, line); err != nil {
				fmt.Println(color.Red.Sprint(err.Error()))
			}
		}
	}
}

func handleLine(ctx context.Context, c *client.Client, line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case strings.HasPrefix(line, "/join "):
		return join(ctx, c, chat.RoomName(strings.TrimSpace(strings.TrimPrefix(line, "/join "))))
	case strings.HasPrefix(line, "/search "):
		found, total, err := c.Search(ctx, strings.TrimPrefix(line, "/search "), 0)
		if err != nil {
			return err
		}
		fmt.Println(color.Cyan.Sprintf("%d hits", total))
		for _, m := range found {
			printMessage(m, "")
		}
		return nil
	default:
		_, err := c.Send(line)
		return err
	}
}

func join(ctx context.Context, c *client.Client, room chat.RoomName) error {
	if err := c.Join(room); err != nil {
		return err
	}
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(" " + string(room) + " "))
	if _, err := c.Backfill(ctx); err != nil {
		return err
	}
	for _, entry := range c.Timeline() {
		printMessage(entry.Message, "")
	}
	return nil
}

func printEvents(ctx context.Context, c *client.Client, user string) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-c.Events():
			switch e := evt.(type) {
			case event.MessageReceived:
				if e.Message.Sender != user {
					printMessage(e.Message, "")
				} else {
					printMessage(e.Message, color.Gray.Sprint(" ✓"))
				}
			case event.PresenceUpdated:
				fmt.Println(color.Magenta.Sprintf("[%s] online: %s", e.Room, strings.Join(e.Users, ", ")))
			case event.TypingStarted:
				fmt.Println(color.Gray.Sprintf("%s is typing...", e.User))
			}
		}
	}
}

func printMessage(m chat.Message, suffix string) {
	text := m.Text
	if m.AttachmentURL != "" {
		text = strings.TrimSpace(text + " " + color.Blue.Sprint(m.AttachmentURL))
	}
	fmt.Printf("[%s] %s: %s%s\n",
		m.CreatedAt.Local().Format(time.TimeOnly),
		color.Yellow.Sprint(m.Sender),
		text,
		suffix,
	)
}
