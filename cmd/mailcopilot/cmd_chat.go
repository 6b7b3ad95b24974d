package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/mailcopilot/internal/config"
	"github.com/user/mailcopilot/internal/contextstore"
	"github.com/user/mailcopilot/internal/engine"
	"github.com/user/mailcopilot/internal/engine/tools"
	"github.com/user/mailcopilot/internal/mailbox"
	"github.com/user/mailcopilot/pkg/llm"
	"github.com/user/mailcopilot/pkg/llm/openai"
)

var mailboxPath string

func init() {
	chatCmd.Flags().StringVar(&mailboxPath, "mailbox", "", "JSON mailbox file (overrides config)")
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive assistant session",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	path := mailboxPath
	if path == "" {
		path = cfg.Mailbox.Path
	}

	var box *mailbox.Memory
	if path != "" {
		var err error
		if box, err = mailbox.LoadFile(path); err != nil {
			return err
		}
	} else {
		box = mailbox.NewMemory()
	}

	store := contextstore.New()
	registry := engine.NewRegistry(tools.Catalog(box)...)
	for _, def := range registry.Definitions() {
		registry.SetEnabled(def.ID, true)
	}

	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}, config.NewSettings(cfgPath))

	eng, err := engine.New(provider, config.NewSettings(cfgPath), store, registry, engine.Config{
		Model:            cfg.LLM.Model,
		MaxContextTokens: cfg.LLM.MaxContextTokens,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	eng.Subscribe(printEvent)

	fmt.Println("mailcopilot chat. Type /help for commands, /quit to exit.")

	ctx := cmd.Context()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, line, box, store, registry); quit {
				return nil
			}
			continue
		}

		if err := eng.Send(ctx, line); err != nil {
			if err == engine.ErrTurnInFlight {
				fmt.Println("(still thinking, hold on)")
			}
			continue
		}
	}
}

// runCommand handles one slash command and reports whether to quit.
func runCommand(ctx context.Context, line string, box *mailbox.Memory, store *contextstore.Store, registry *engine.Registry) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Print(`Commands:
  /email             attach the displayed email
  /selected          attach the selected emails
  /contacts          attach the address book
  /select <text>     attach a text selection
  /drop <kind> <n>   remove context item n (kind: email|contact|selection)
  /clear             clear all context
  /context           show the serialized context
  /tools             list tools
  /enable <id>       enable a tool
  /disable <id>      disable a tool
  /quit              exit
`)

	case "/email":
		email, err := box.DisplayedEmail(ctx)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		if body, err := box.MessageBody(ctx, email.ID); err == nil {
			email.Body = body
		}
		email.IsPrimary = true
		store.AddEmail(email)
		fmt.Printf("attached %q\n", email.Subject)

	case "/selected":
		emails, err := box.SelectedEmails(ctx, true)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		for i := range emails {
			if body, err := box.MessageBody(ctx, emails[i].ID); err == nil {
				emails[i].Body = body
			}
		}
		added := store.AddSelectedEmails(emails)
		fmt.Printf("attached %d of %d selected email(s)\n", added, len(emails))

	case "/contacts":
		contacts, err := box.Contacts(ctx)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		store.ReplaceContacts(contacts)
		fmt.Printf("attached %d contact(s)\n", len(contacts))

	case "/select":
		text := strings.TrimSpace(strings.TrimPrefix(line, "/select"))
		if text == "" {
			fmt.Println("usage: /select <text>")
			return false
		}
		store.AddSelection(contextstore.NewSelection(text, "", "chat"))
		fmt.Println("selection attached")

	case "/drop":
		if len(args) != 2 {
			fmt.Println("usage: /drop <email|contact|selection> <index>")
			return false
		}
		index, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Println("index must be a number")
			return false
		}
		store.Remove(contextstore.Kind(args[0]), index)

	case "/clear":
		store.ClearAll()
		fmt.Println("context cleared")

	case "/context":
		content := store.Serialize()
		if content == "" {
			fmt.Println("(no context attached)")
		} else {
			fmt.Println(content)
		}

	case "/tools":
		for _, def := range registry.Definitions() {
			state := "off"
			if def.Enabled {
				state = "on"
			}
			fmt.Printf("  [%s] %s %s: %s\n", state, def.Icon, def.ID, def.Description)
		}

	case "/enable", "/disable":
		if len(args) != 1 {
			fmt.Printf("usage: %s <tool-id>\n", cmd)
			return false
		}
		if !registry.SetEnabled(args[0], cmd == "/enable") {
			fmt.Println("unknown tool:", args[0])
		}

	default:
		fmt.Println("unknown command:", cmd)
	}
	return false
}

// printEvent renders one transcript event to the terminal.
func printEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.EventUser:
		for _, tag := range ev.Tags {
			fmt.Printf("  %s %s\n", tag.Icon, tag.Label)
		}
	case engine.EventAssistant:
		fmt.Println(ev.Text)
	case engine.EventSystem:
		fmt.Println(ev.Text)
	case engine.EventTool:
		fmt.Printf("  [%s] %s\n", ev.Tool, ev.Text)
	}
}
