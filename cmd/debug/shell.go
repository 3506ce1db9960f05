package debug

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"pointsbank/application"
	"pointsbank/domain/entities"

	"github.com/pterm/pterm"
	log "github.com/sirupsen/logrus"
)

// Dispatcher runs chat lines on behalf of a user
type Dispatcher interface {
	Handle(ctx context.Context, username, line string) (*application.CommandResult, error)
	Commands() []string
}

// Sweeper settles expired sessions and duels on demand
type Sweeper interface {
	SweepBlackjack(ctx context.Context) int
	SweepDuels(ctx context.Context) int
}

// Shell is an interactive console that plays chat commands against the economy core
type Shell struct {
	dispatcher Dispatcher
	sweeper    Sweeper
	in         io.Reader
	commands   map[string]Command
	history    []string
	user       string
	confirm    func(prompt string) bool
	running    bool
}

// Command is a shell built-in
type Command struct {
	Handler     CommandHandler
	Description string
	Usage       string
}

// CommandHandler is a function that handles a shell built-in
type CommandHandler func(ctx context.Context, args []string) error

// NewShell creates a shell acting as user
func NewShell(dispatcher Dispatcher, sweeper Sweeper, user string) *Shell {
	s := &Shell{
		dispatcher: dispatcher,
		sweeper:    sweeper,
		in:         os.Stdin,
		user:       entities.NormalizeUsername(user),
		confirm:    confirmAction,
		running:    true,
	}
	s.initializeCommands()
	return s
}

func (s *Shell) initializeCommands() {
	s.commands = map[string]Command{
		"help": {
			Handler:     s.handleHelp,
			Description: "Show shell built-ins",
			Usage:       "help",
		},
		"as": {
			Handler:     s.handleAs,
			Description: "Switch the user commands run as",
			Usage:       "as <username>",
		},
		"whoami": {
			Handler:     s.handleWhoami,
			Description: "Show the current user",
			Usage:       "whoami",
		},
		"sweep": {
			Handler:     s.handleSweep,
			Description: "Expire idle blackjack sessions and stale duels now",
			Usage:       "sweep",
		},
		"history": {
			Handler:     s.handleHistory,
			Description: "Show lines entered in this shell",
			Usage:       "history",
		},
	}
}

// Run reads lines until EOF, exit or ctx cancellation
func (s *Shell) Run(ctx context.Context) error {
	pterm.DefaultHeader.Println("pointsbank debug shell")
	pterm.Info.Printfln("Acting as %s. Chat commands run through the router; type 'help' for built-ins.", pterm.LightCyan(s.user))

	scanner := bufio.NewScanner(s.in)
	for s.running {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		pterm.Printf("\n%s> ", pterm.LightGreen(s.user))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		s.history = append(s.history, input)

		if err := s.Execute(ctx, input); err != nil {
			pterm.Error.Println(err.Error())
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

// Execute runs one line, either a shell built-in or a chat command
func (s *Shell) Execute(ctx context.Context, input string) error {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "exit", "quit":
		s.running = false
		pterm.Info.Println("Exiting debug shell")
		return nil
	case "clear":
		pterm.Print("\033[H\033[2J")
		return nil
	}

	if cmd, ok := s.commands[parts[0]]; ok {
		return cmd.Handler(ctx, parts[1:])
	}

	command, _ := application.Tokenize(input)
	if command == "reset" && !s.confirm("Reset every balance to zero?") {
		pterm.Warning.Println("Reset cancelled")
		return nil
	}

	start := time.Now()
	result, err := s.dispatcher.Handle(ctx, s.user, input)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user":     s.user,
		"command":  result.Command,
		"duration": time.Since(start),
		"source":   "debug_shell",
	}).Debug("Shell command executed")

	pterm.Println(RenderResult(result))
	return nil
}

func (s *Shell) handleHelp(_ context.Context, _ []string) error {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	data := pterm.TableData{{"Built-in", "Usage", "Description"}}
	for _, name := range names {
		cmd := s.commands[name]
		data = append(data, []string{name, cmd.Usage, cmd.Description})
	}
	data = append(data, []string{"exit", "exit", "Leave the shell"})
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	chat := s.dispatcher.Commands()
	sort.Strings(chat)
	pterm.Info.Printfln("Chat commands: %s", strings.Join(chat, ", "))
	return nil
}

func (s *Shell) handleAs(_ context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: as <username>")
	}
	user := entities.NormalizeUsername(args[0])
	if user == "" {
		return fmt.Errorf("username is required")
	}
	s.user = user
	pterm.Success.Printfln("Now acting as %s", user)
	return nil
}

func (s *Shell) handleWhoami(_ context.Context, _ []string) error {
	pterm.Info.Println(s.user)
	return nil
}

func (s *Shell) handleSweep(ctx context.Context, _ []string) error {
	sessions := s.sweeper.SweepBlackjack(ctx)
	duels := s.sweeper.SweepDuels(ctx)
	pterm.Success.Printfln("Expired %d blackjack sessions and %d duels", sessions, duels)
	return nil
}

func (s *Shell) handleHistory(_ context.Context, _ []string) error {
	for i, line := range s.history {
		pterm.Printfln("%3d  %s", i+1, line)
	}
	return nil
}

func confirmAction(prompt string) bool {
	ok, err := pterm.DefaultInteractiveConfirm.WithDefaultValue(false).Show(prompt)
	if err != nil {
		return false
	}
	return ok
}
