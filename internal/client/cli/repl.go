package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error

	List(ctx context.Context, args []string) error
	Add(ctx context.Context) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error

	Users(ctx context.Context) error
	AddUser(ctx context.Context) error
	EditUser(ctx context.Context, args []string) error
	DeleteUser(ctx context.Context, args []string) error
}

// runREPL reads commands from reader and dispatches them to a until EOF,
// "exit" or "quit".
//
//	Not logged in:
//	  help, login, exit | quit
//
//	Logged in:
//	  (l)ist [type=...] [city=...]   list locations
//	  add                            add a location
//	  edit <id>                      edit a location
//	  delete <id>                    delete a location
//	  sync                           reconcile pending changes now
//	  status                         show connectivity and pending work
//	  whoami, logout
//	  users, adduser, edituser <id>, deluser <id>
//
// Command errors are reported to w and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "wetmap %s> ", statusFn())
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if !a.isLoggedIn() {
			switch cmd {
			case "help":
				fmt.Fprintln(w, "Available commands: login, exit")
			case "login":
				report(w, a.Login(ctx))
			case "exit", "quit":
				fmt.Fprintln(w, "Bye!")
				return
			default:
				fmt.Fprintln(w, "Please log in first (type 'login').")
			}
			continue
		}

		switch cmd {
		case "help":
			fmt.Fprintln(w, "Available commands: (l)ist, add, edit, delete, sync, status, whoami, users, adduser, edituser, deluser, logout, exit")
		case "login":
			report(w, a.Login(ctx))
		case "logout":
			report(w, a.Logout(ctx))
		case "whoami":
			report(w, a.Whoami(ctx))
		case "l", "list":
			report(w, a.List(ctx, args))
		case "add":
			report(w, a.Add(ctx))
		case "edit":
			report(w, a.Edit(ctx, args))
		case "delete", "rm":
			report(w, a.Delete(ctx, args))
		case "sync":
			report(w, a.Sync(ctx))
		case "status":
			report(w, a.Status(ctx))
		case "users":
			report(w, a.Users(ctx))
		case "adduser":
			report(w, a.AddUser(ctx))
		case "edituser":
			report(w, a.EditUser(ctx, args))
		case "deluser":
			report(w, a.DeleteUser(ctx, args))
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}
	}
}

var errUsage = errors.New("usage")

func report(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(w, "Error:", describe(err))
}
