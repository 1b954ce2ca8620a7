package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/saeidalz13/battleship-server/internal/botclient"
	"github.com/saeidalz13/battleship-server/internal/observability"
	mb "github.com/saeidalz13/battleship-server/models/battleship"
	"github.com/saeidalz13/battleship-server/models/packet"
)

func main() {
	addrFlag := flag.String("addr", "127.0.0.1:27000", "game server TCP address")
	wsFlag := flag.String("ws", "", "websocket URL, e.g. ws://127.0.0.1:9191/battleship; overrides -addr")
	refreshFlag := flag.Int("refresh", 0, "fleet reshuffles before confirming")
	delayFlag := flag.Duration("delay", 300*time.Millisecond, "pause before each shot")
	flag.Parse()

	observability.InitLogger("bsclient", "dev", "warn")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	area, _ := pterm.DefaultArea.Start()
	defer func() { _ = area.Stop() }()

	hook := func(board botclient.Board) {
		status := pterm.LightCyan("waiting")
		if board.Turn {
			status = pterm.LightGreen("your turn")
		}
		if board.Flags&packet.FlagGridShipSunk != 0 {
			status += pterm.LightRed("  ship sunk")
		}
		panel := pterm.DefaultBox.
			WithTitle(fmt.Sprintf("%s (%s)", board.Player, status)).
			Sprint(mb.Render(board.Cells, board.Player))
		area.Update(panel)
		if board.Turn {
			time.Sleep(*delayFlag)
		}
	}

	opts := []botclient.Option{
		botclient.WithRefreshes(*refreshFlag),
		botclient.WithBoardHook(hook),
	}

	spinner, _ := pterm.DefaultSpinner.Start("Connecting to the game server...")
	var (
		bot *botclient.Bot
		err error
	)
	if *wsFlag != "" {
		bot, err = botclient.DialWebSocket(ctx, *wsFlag, opts...)
	} else {
		bot, err = botclient.Dial(ctx, *addrFlag, opts...)
	}
	if err != nil {
		spinner.Fail(err.Error())
		os.Exit(1)
	}
	defer bot.Close()
	spinner.Success("Connected, waiting for an opponent")

	result, err := bot.Play(ctx)
	if err != nil {
		pterm.Error.Printfln("Game ended: %v", err)
		os.Exit(1)
	}

	if result.Won {
		pterm.Success.Printfln("You won after %d shots, Congratulations!", result.Shots)
		return
	}
	pterm.Info.Printfln("You lost after %d shots, better luck next time!", result.Shots)
}
