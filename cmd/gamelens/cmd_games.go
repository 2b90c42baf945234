package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/ryanm101/gamelens/internal/db"
	"github.com/ryanm101/gamelens/internal/metadata"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
)

type searchArgs struct {
	query    string
	page     int
	pageSize int
}

// parseSearchArgs joins the positional words into the query and reads the
// optional --page and --page-size flags.
func parseSearchArgs(args []string) (searchArgs, error) {
	out := searchArgs{page: defaultPage, pageSize: defaultPageSize}
	var words []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--page", "--page-size":
			if i+1 >= len(args) {
				return out, fmt.Errorf("%s requires a value", args[i])
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return out, fmt.Errorf("invalid %s value %q", args[i], args[i+1])
			}
			if args[i] == "--page" {
				out.page = n
			} else {
				out.pageSize = n
			}
			i++
		default:
			words = append(words, args[i])
		}
	}

	out.query = strings.Join(words, " ")
	return out, nil
}

func handleSearchCommand(ctx context.Context, args []string) {
	sa, err := parseSearchArgs(args)
	if err != nil {
		PrintError("Error: %v\n", err)
		os.Exit(1)
	}
	if sa.query == "" {
		fmt.Println("Usage: gamelens search <query> [--page N] [--page-size N]")
		os.Exit(1)
	}

	a := openApp(ctx)
	defer a.Close()

	games, err := a.service.Search(ctx, sa.query, sa.page, sa.pageSize)
	if err != nil {
		exitForError(err)
	}

	if outputCfg.JSON {
		PrintJSON(games)
		return
	}

	if len(games) == 0 {
		PrintInfo("No games found for %q\n", sa.query)
		return
	}

	rows := make([][]string, 0, len(games))
	for _, g := range games {
		rows = append(rows, []string{
			strconv.Itoa(g.ID),
			g.Name,
			formatReleased(g),
			formatMetacritic(g),
			joinNames(g.Platforms),
		})
	}
	PrintTable([]string{"ID", "NAME", "RELEASED", "METACRITIC", "PLATFORMS"}, rows)
}

func handleGetCommand(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: gamelens get <id>")
		os.Exit(1)
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		PrintError("Error: invalid game id: %v\n", err)
		os.Exit(1)
	}

	a := openApp(ctx)
	defer a.Close()

	g, err := a.service.GetByID(ctx, id)
	if err != nil {
		exitForError(err)
	}

	if outputCfg.JSON {
		PrintJSON(g)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "ID:\t%d\n", g.ID)
	_, _ = fmt.Fprintf(w, "Name:\t%s\n", g.Name)
	_, _ = fmt.Fprintf(w, "Released:\t%s\n", formatReleased(g))
	_, _ = fmt.Fprintf(w, "Metacritic:\t%s\n", formatMetacritic(g))
	_, _ = fmt.Fprintf(w, "Genres:\t%s\n", joinNames(g.Genres))
	_, _ = fmt.Fprintf(w, "Platforms:\t%s\n", joinNames(g.Platforms))
	_, _ = fmt.Fprintf(w, "Developers:\t%s\n", joinNames(g.Developers))
	_, _ = fmt.Fprintf(w, "Publishers:\t%s\n", joinNames(g.Publishers))
	if g.LocalBackgroundImage != "" {
		_, _ = fmt.Fprintf(w, "Image:\t%s\n", g.LocalBackgroundImage)
	}
	_ = w.Flush()

	if desc := metadata.PlainText(g.Description); desc != "" {
		fmt.Println()
		fmt.Println(desc)
	}
}

func handleStatsCommand(ctx context.Context) {
	database, err := openDB(ctx)
	if err != nil {
		PrintError("Error: failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = database.Close() }()

	stats, err := database.GetStats(ctx)
	if err != nil {
		PrintError("Error: failed to read stats: %v\n", err)
		os.Exit(1)
	}

	if outputCfg.JSON {
		PrintJSON(stats)
		return
	}

	rows := [][]string{{"games", strconv.Itoa(stats.Games)}}
	for _, c := range db.Categories {
		rows = append(rows, []string{string(c) + "s", strconv.Itoa(stats.References[c])})
	}
	PrintTable([]string{"TABLE", "ROWS"}, rows)
}

// exitForError prints a service failure and exits with a code per kind.
func exitForError(err error) {
	PrintError("Error: %v\n", err)
	switch {
	case errors.Is(err, metadata.ErrInvalidArgument):
		os.Exit(2)
	case errors.Is(err, metadata.ErrNotFound):
		os.Exit(3)
	case errors.Is(err, metadata.ErrUpstreamUnavailable):
		os.Exit(4)
	default:
		os.Exit(1)
	}
}

func formatReleased(g *db.Game) string {
	if g.Released == nil {
		return "-"
	}
	return g.Released.Format("2006-01-02")
}

func formatMetacritic(g *db.Game) string {
	if g.Metacritic == nil {
		return "-"
	}
	return strconv.Itoa(*g.Metacritic)
}

func joinNames(refs []*db.Reference) string {
	if len(refs) == 0 {
		return "-"
	}
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}
