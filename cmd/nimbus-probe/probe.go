package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"

	"github.com/nimbusdb/nimbus-go/pkg/conn"
)

// Probe holds the interactive session state.
type Probe struct {
	cfg    *Config
	logger *slog.Logger
	rl     *readline.Instance

	conn          *conn.Conn
	authenticated bool
}

// NewProbe creates the interactive probe.
func NewProbe(cfg *Config, logger *slog.Logger) (*Probe, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "nimbus> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Probe{cfg: cfg, logger: logger, rl: rl}, nil
}

// Run starts the interactive command loop.
func (p *Probe) Run(ctx context.Context) {
	defer p.rl.Close()
	defer p.disconnect()

	p.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := p.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(p.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "help", "?":
			p.printHelp()
		case "connect":
			p.cmdConnect(ctx)
		case "auth":
			p.cmdAuth(ctx)
		case "ping":
			p.cmdPing(ctx)
		case "status":
			p.cmdStatus()
		case "quit", "exit":
			return
		default:
			fmt.Fprintf(p.rl.Stdout(), "Unknown command %q, try 'help'\n", input)
		}
	}
}

func (p *Probe) printHelp() {
	fmt.Fprint(p.rl.Stdout(), `Commands:
  connect   Connect to the configured server
  auth      Authenticate with the configured credential
  ping      Check server connectivity
  status    Show connection state
  quit      Exit
`)
}

func (p *Probe) cmdConnect(ctx context.Context) {
	p.disconnect()

	tlsCfg, err := p.cfg.TLSClientConfig()
	if err != nil {
		fmt.Fprintf(p.rl.Stdout(), "TLS configuration error: %v\n", err)
		return
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.OperationTimeout())
	defer cancel()

	c, err := conn.Dial(dialCtx, conn.Config{
		Addr:   p.cfg.Address,
		TLS:    tlsCfg,
		Logger: p.logger,
	})
	if err != nil {
		fmt.Fprintf(p.rl.Stdout(), "Connect failed: %v\n", err)
		return
	}
	p.conn = c
	fmt.Fprintf(p.rl.Stdout(), "Connected to %s (conn %s)\n", c.RemoteAddr(), c.ID())
}

func (p *Probe) cmdAuth(ctx context.Context) {
	if p.conn == nil {
		fmt.Fprintln(p.rl.Stdout(), "Not connected, run 'connect' first")
		return
	}

	authCtx, cancel := context.WithTimeout(ctx, p.cfg.OperationTimeout())
	defer cancel()

	cred := p.cfg.AuthCredential()
	res, err := p.conn.Authenticate(authCtx, cred, nil)
	if err != nil {
		fmt.Fprintf(p.rl.Stdout(), "Authentication failed: %v\n", err)
		return
	}
	p.authenticated = true
	fmt.Fprintf(p.rl.Stdout(), "Authenticated as %s (conversation %d)\n", cred, res.ConversationID)
}

func (p *Probe) cmdPing(ctx context.Context) {
	if p.conn == nil {
		fmt.Fprintln(p.rl.Stdout(), "Not connected, run 'connect' first")
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, p.cfg.OperationTimeout())
	defer cancel()

	if err := p.conn.Ping(pingCtx); err != nil {
		fmt.Fprintf(p.rl.Stdout(), "Ping failed: %v\n", err)
		return
	}
	fmt.Fprintln(p.rl.Stdout(), "OK")
}

func (p *Probe) cmdStatus() {
	out := p.rl.Stdout()
	if p.conn == nil {
		fmt.Fprintln(out, "Disconnected")
		return
	}
	fmt.Fprintf(out, "Connected to %s\n", p.conn.RemoteAddr())
	fmt.Fprintf(out, "  conn id:       %s\n", p.conn.ID())
	fmt.Fprintf(out, "  authenticated: %v\n", p.authenticated)
}

func (p *Probe) disconnect() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
		p.authenticated = false
	}
}
