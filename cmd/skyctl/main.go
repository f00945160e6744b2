// Package main implements skyctl, the interactive terminal client for the
// SkyKeeper API.
//
// It keeps a session context in a JSON file (so login survives restarts) and
// mirrors the server's saved snapshots in a local cache. All mutations go
// through the cache so that the terminal view stays consistent with what the
// server confirmed.
//
// Usage:
//
//	skyctl                          # interactive session against localhost
//	skyctl --server=https://sky.example.com
//	skyctl --session-file=/tmp/session.json
//
// Operation failures print a status line and return to the menu; they never
// terminate the session loop.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"skykeeper/internal/client"
	"skykeeper/internal/types"
)

const defaultServerURL = "http://localhost:8080"

func main() {
	serverURL := flagValue("--server", defaultServerURL)
	sessionFile := flagValue("--session-file", defaultSessionPath())

	app := &app{
		api:      client.NewAPIClient(serverURL, nil),
		sessions: client.NewSessionStore(sessionFile),
		in:       bufio.NewReader(os.Stdin),
	}

	if err := app.run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "skyctl: %v\n", err)
		os.Exit(1)
	}
}

// flagValue extracts a --name=value argument, falling back to def. The flag
// surface is small enough that the stdlib flag package's usage machinery
// would be more ceremony than help.
func flagValue(name, def string) string {
	prefix := name + "="
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, prefix) {
			return strings.TrimPrefix(arg, prefix)
		}
	}
	return def
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".skykeeper-session.json"
	}
	return filepath.Join(home, ".skykeeper", "session.json")
}

type app struct {
	api      *client.APIClient
	sessions *client.SessionStore
	in       *bufio.Reader

	session *client.SessionContext
	cache   *client.SnapshotCache
}

func (a *app) run(ctx context.Context) error {
	fmt.Println("SkyKeeper terminal client")

	if err := a.restoreSession(); err != nil {
		return err
	}
	for a.session == nil {
		if err := a.authenticate(ctx); err != nil {
			return err
		}
	}

	fmt.Printf("Signed in as %s.\n", a.session.Name)

	a.cache = client.NewSnapshotCache(a.api, a.session.UserID, nil)
	if err := a.cache.Load(ctx); err != nil {
		fmt.Printf("Could not load saved snapshots: %v\n", errorMessage(err))
	} else {
		fmt.Printf("Loaded %d saved snapshot(s).\n", a.cache.Len())
	}

	a.menuLoop(ctx)
	return nil
}

// restoreSession loads a previously saved session context, discarding it if
// the token has expired.
func (a *app) restoreSession() error {
	sess, err := a.sessions.Load()
	if err != nil {
		return fmt.Errorf("reading session file: %w", err)
	}
	if sess == nil {
		return nil
	}
	if !sess.Valid(time.Now()) {
		fmt.Println("Stored session has expired; please log in again.")
		return a.sessions.Clear()
	}
	a.session = sess
	a.api.SetToken(sess.Token)
	return nil
}

// authenticate runs the signup/login prompt until a session is established
// or the user quits.
func (a *app) authenticate(ctx context.Context) error {
	choice := a.prompt("(l)ogin, (s)ignup, or (q)uit? ")
	switch strings.ToLower(choice) {
	case "l", "login":
		email := a.prompt("Email: ")
		password := a.prompt("Password: ")
		result, err := a.api.Login(ctx, email, password)
		if err != nil {
			fmt.Printf("Login failed: %v\n", errorMessage(err))
			return nil
		}
		return a.storeSession(result)
	case "s", "signup":
		name := a.prompt("Name: ")
		email := a.prompt("Email: ")
		password := a.prompt("Password (min 8 chars): ")
		result, err := a.api.Signup(ctx, name, email, password)
		if err != nil {
			fmt.Printf("Signup failed: %v\n", errorMessage(err))
			return nil
		}
		fmt.Println("Account created.")
		return a.storeSession(result)
	case "q", "quit":
		return errors.New("no session established")
	default:
		fmt.Println("Please answer l, s, or q.")
		return nil
	}
}

func (a *app) storeSession(result *client.AuthResult) error {
	sess := &client.SessionContext{
		UserID:    result.User.ID,
		Name:      result.User.Name,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	}
	if err := a.sessions.Save(sess); err != nil {
		return fmt.Errorf("saving session file: %w", err)
	}
	a.session = sess
	a.api.SetToken(sess.Token)
	return nil
}

func (a *app) menuLoop(ctx context.Context) {
	for {
		fmt.Println()
		fmt.Println("1) Look up a city")
		fmt.Println("2) List saved snapshots")
		fmt.Println("3) Refresh a snapshot")
		fmt.Println("4) Refresh all snapshots")
		fmt.Println("5) Delete a snapshot")
		fmt.Println("6) Log out")
		fmt.Println("q) Quit")

		switch a.prompt("> ") {
		case "1":
			a.lookupAndSave(ctx)
		case "2":
			a.listSaved()
		case "3":
			a.refreshOne(ctx)
		case "4":
			a.refreshAll(ctx)
		case "5":
			a.deleteOne(ctx)
		case "6":
			if err := a.sessions.Clear(); err != nil {
				fmt.Printf("Could not clear session: %v\n", err)
				continue
			}
			fmt.Println("Logged out.")
			return
		case "q", "quit":
			fmt.Println("Bye.")
			return
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

func (a *app) lookupAndSave(ctx context.Context) {
	city := a.prompt("City: ")
	reading, err := a.api.LookupWeather(ctx, city)
	if err != nil {
		fmt.Printf("Lookup failed: %v\n", errorMessage(err))
		return
	}

	printReading(reading)

	if !a.confirm("Save this snapshot? [y/N] ") {
		return
	}
	snap, err := a.api.SaveSnapshot(ctx, client.SavePayload{
		City:        reading.City,
		Temperature: reading.Temperature,
		Description: reading.Description,
		Humidity:    reading.Humidity,
	})
	if err != nil {
		fmt.Printf("Save failed: %v\n", errorMessage(err))
		return
	}
	fmt.Printf("Saved %s as %s.\n", snap.City, snap.ID)

	// The server list is the ordering authority; re-load instead of
	// inserting locally.
	if err := a.cache.Load(ctx); err != nil {
		fmt.Printf("Saved, but refreshing the local list failed: %v\n", errorMessage(err))
	}
}

func (a *app) listSaved() {
	entries := a.cache.Entries()
	if len(entries) == 0 {
		fmt.Println("No saved snapshots yet.")
		return
	}
	fmt.Printf("%-3s %-20s %-8s %-24s %s\n", "#", "City", "Temp", "Description", "Refreshed")
	for i, e := range entries {
		refreshed := "never"
		if e.Snapshot.RefreshedAt != nil {
			refreshed = e.Snapshot.RefreshedAt.Local().Format("2006-01-02 15:04")
		}
		suffix := ""
		if e.State == client.StateRolledBack {
			suffix = " (server out of sync)"
		}
		fmt.Printf("%-3d %-20s %-8s %-24s %s%s\n",
			i+1,
			e.Snapshot.City,
			fmt.Sprintf("%.1f°C", e.Snapshot.Temperature),
			e.Snapshot.Description,
			refreshed,
			suffix,
		)
	}
}

func (a *app) refreshOne(ctx context.Context) {
	entry, ok := a.pickEntry("Refresh which snapshot? ")
	if !ok {
		return
	}
	if err := a.cache.Refresh(ctx, entry.Snapshot.ID); err != nil {
		fmt.Printf("Refresh of %s failed: %v\n", entry.Snapshot.City, errorMessage(err))
		return
	}
	fmt.Printf("%s refreshed.\n", entry.Snapshot.City)
}

func (a *app) refreshAll(ctx context.Context) {
	if a.cache.Len() == 0 {
		fmt.Println("Nothing to refresh.")
		return
	}
	err := a.cache.RefreshAll(ctx)
	if err != nil {
		fmt.Printf("Some snapshots could not be refreshed: %v\n", errorMessage(err))
	} else {
		fmt.Println("All snapshots refreshed.")
	}
	if err := a.cache.Load(ctx); err != nil {
		fmt.Printf("Reloading the list failed: %v\n", errorMessage(err))
	}
}

func (a *app) deleteOne(ctx context.Context) {
	entry, ok := a.pickEntry("Delete which snapshot? ")
	if !ok {
		return
	}
	if !a.confirm(fmt.Sprintf("Delete %s (%s)? [y/N] ", entry.Snapshot.City, entry.Snapshot.ID)) {
		return
	}
	if err := a.cache.Delete(ctx, entry.Snapshot.ID); err != nil {
		fmt.Printf("Delete failed: %v\n", errorMessage(err))
		return
	}
	fmt.Printf("%s deleted.\n", entry.Snapshot.City)
}

// pickEntry shows the saved list and prompts for a 1-based index.
func (a *app) pickEntry(promptText string) (client.Entry, bool) {
	entries := a.cache.Entries()
	if len(entries) == 0 {
		fmt.Println("No saved snapshots yet.")
		return client.Entry{}, false
	}
	a.listSaved()
	raw := a.prompt(promptText)
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 1 || idx > len(entries) {
		fmt.Printf("Pick a number between 1 and %d.\n", len(entries))
		return client.Entry{}, false
	}
	return entries[idx-1], true
}

func (a *app) prompt(text string) string {
	fmt.Print(text)
	line, err := a.in.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func (a *app) confirm(text string) bool {
	answer := strings.ToLower(a.prompt(text))
	return answer == "y" || answer == "yes"
}

func printReading(r *types.Reading) {
	header := fmt.Sprintf("Current weather for %s:", r.City)
	fmt.Println(header)
	fmt.Println(strings.Repeat("-", len(header)))
	fmt.Printf("Conditions:  %s\n", r.Description)
	fmt.Printf("Temperature: %.1f°C\n", r.Temperature)
	fmt.Printf("Humidity:    %.0f%%\n", r.Humidity)
}

// errorMessage renders an error for terminal display, preferring the API
// error's human message over the wrapped chain.
func errorMessage(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
