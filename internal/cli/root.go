package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) root(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("fv (%s)> ", a.eng.UserID())
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			fmt.Println("Available commands: (l)ist, add, show, sync, profile, snapshot, restore, delete-account, exit")

		case "add":
			a.add(ctx)
		case "l", "list":
			a.list(ctx)
		case "show":
			if len(args) == 0 {
				fmt.Println("Usage: show <id>")
				continue
			}
			a.show(ctx, args[0])
		case "sync":
			a.sync(ctx)
		case "profile":
			a.profile(ctx, args)
		case "snapshot":
			a.snapshot(ctx)
		case "restore":
			if len(args) == 0 {
				fmt.Println("Usage: restore <key>")
				continue
			}
			a.restore(ctx, args[0])
		case "delete-account":
			a.deleteAccount(ctx)
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}
