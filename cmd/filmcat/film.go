package main

import (
	"fmt"
	"time"

	"filmcat/internal/app"
	"filmcat/internal/catalog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var filmCmd = &cobra.Command{
	Use:   "film",
	Short: "Browse and moderate the film catalog",
}

func filmInput(flags *pflag.FlagSet) app.FilmInput {
	var in app.FilmInput
	in.Title, _ = flags.GetString("title")
	in.Genre, _ = flags.GetString("genre")
	in.ReleaseDate, _ = flags.GetString("released")
	in.PosterPath, _ = flags.GetString("poster")
	in.TrailerURL, _ = flags.GetString("trailer")
	in.Description, _ = flags.GetString("description")
	return in
}

func addFilmFlags(flags *pflag.FlagSet) {
	flags.StringP("title", "t", "", "Film title")
	flags.StringP("genre", "g", "", "Genre")
	flags.StringP("released", "r", "", "Release date (YYYY-MM-DD)")
	flags.String("poster", "", "Poster image path")
	flags.String("trailer", "", "Trailer URL")
	flags.String("description", "", "Short description")
}

func printFilm(f *catalog.Film) {
	status := "pending"
	if f.Approved {
		status = "approved"
	}
	fmt.Printf("%d\t%s\t%s\t%s\t%s\n",
		f.ID, f.Title, f.Genre, f.ReleaseDate.Format("2006-01-02"), status)
}

func printFilms(films []*catalog.Film) {
	if len(films) == 0 {
		fmt.Println("No films found")
		return
	}
	for _, f := range films {
		printFilm(f)
	}
}

var filmProposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Submit a film for approval",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newSession("film propose")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := a.ProposeFilm(filmInput(cmd.Flags()))
		if err != nil {
			return err
		}
		fmt.Printf("Proposed film %d (%s), awaiting approval\n", f.ID, f.Title)
		return nil
	},
}

var filmAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an approved film (administrators only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newSession("film add")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := a.AddFilm(filmInput(cmd.Flags()))
		if err != nil {
			return err
		}
		fmt.Printf("Added film %d (%s)\n", f.ID, f.Title)
		return nil
	},
}

var filmApproveCmd = &cobra.Command{
	Use:   "approve FILM_ID",
	Short: "Approve a pending film",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := newSession("film approve")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := a.ApproveFilm(id)
		if err != nil {
			return err
		}
		fmt.Printf("Film %d (%s) approved\n", f.ID, f.Title)
		return nil
	},
}

var filmRejectCmd = &cobra.Command{
	Use:   "reject FILM_ID",
	Short: "Mark a film unapproved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := newSession("film reject")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := a.RejectFilm(id)
		if err != nil {
			return err
		}
		fmt.Printf("Film %d (%s) rejected\n", f.ID, f.Title)
		return nil
	},
}

var filmUpdateCmd = &cobra.Command{
	Use:   "update FILM_ID",
	Short: "Change a film's attributes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		changed := func(name string) *string {
			if !cmd.Flags().Changed(name) {
				return nil
			}
			v, _ := cmd.Flags().GetString(name)
			return &v
		}
		upd := app.FilmUpdate{
			Title:       changed("title"),
			Genre:       changed("genre"),
			ReleaseDate: changed("released"),
			PosterPath:  changed("poster"),
			TrailerURL:  changed("trailer"),
			Description: changed("description"),
		}

		a, err := newSession("film update")
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := a.UpdateFilm(id, upd)
		if err != nil {
			return err
		}
		fmt.Printf("Film %d updated: %s\n", f.ID, f.Logs[len(f.Logs)-1].Action)
		return nil
	},
}

var filmDeleteCmd = &cobra.Command{
	Use:   "delete FILM_ID",
	Short: "Remove a film",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := newSession("film delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteFilm(id); err != nil {
			return err
		}
		fmt.Printf("Film %d deleted\n", id)
		return nil
	},
}

var filmSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search films by title, genre and release date",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		genre, _ := cmd.Flags().GetString("genre")
		released, _ := cmd.Flags().GetString("released")
		includePending, _ := cmd.Flags().GetBool("include-pending")

		a, err := newApp("film search")
		if err != nil {
			return err
		}
		defer a.Close()

		films, err := a.SearchFilms(title, genre, released, !includePending)
		if err != nil {
			return err
		}
		printFilms(films)
		return nil
	},
}

var filmPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List films awaiting approval",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("film pending")
		if err != nil {
			return err
		}
		defer a.Close()

		printFilms(a.PendingFilms())
		total, approved := a.FilmCounts()
		fmt.Printf("%d of %d films approved\n", approved, total)
		return nil
	},
}

var filmShowCmd = &cobra.Command{
	Use:   "show FILM_ID",
	Short: "Show a film and its recent history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("film show")
		if err != nil {
			return err
		}
		defer a.Close()

		f, history, err := a.Film(id, limit)
		if err != nil {
			return err
		}

		status := "pending"
		if f.Approved {
			status = "approved"
		}
		fmt.Printf("ID:          %d\n", f.ID)
		fmt.Printf("Title:       %s\n", f.Title)
		fmt.Printf("Genre:       %s\n", f.Genre)
		fmt.Printf("Released:    %s (%d years ago)\n", f.ReleaseDate.Format("2006-01-02"), f.Age(time.Now()))
		fmt.Printf("Status:      %s\n", status)
		fmt.Printf("Added by:    %d\n", f.AddedByUserID)
		if f.PosterPath != "" {
			fmt.Printf("Poster:      %s\n", f.PosterPath)
		}
		if f.TrailerURL != "" {
			fmt.Printf("Trailer:     %s\n", f.TrailerURL)
		}
		if f.Description != "" {
			fmt.Printf("Description: %s\n", f.Description)
		}

		fmt.Println()
		for _, e := range history {
			fmt.Printf("%s\tuser %d\t%s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.UserID, e.Action)
		}
		return nil
	},
}

func init() {
	filmCmd.AddCommand(filmProposeCmd)
	addFilmFlags(filmProposeCmd.Flags())
	filmCmd.AddCommand(filmAddCmd)
	addFilmFlags(filmAddCmd.Flags())
	filmCmd.AddCommand(filmUpdateCmd)
	addFilmFlags(filmUpdateCmd.Flags())

	filmCmd.AddCommand(filmApproveCmd)
	filmCmd.AddCommand(filmRejectCmd)
	filmCmd.AddCommand(filmDeleteCmd)

	filmCmd.AddCommand(filmSearchCmd)
	filmSearchCmd.Flags().StringP("title", "t", "", "Case-insensitive title substring")
	filmSearchCmd.Flags().StringP("genre", "g", "", "Genre")
	filmSearchCmd.Flags().StringP("released", "r", "", "Release year (YYYY) or date (YYYY-MM-DD)")
	filmSearchCmd.Flags().Bool("include-pending", false, "Include films awaiting approval")

	filmCmd.AddCommand(filmPendingCmd)

	filmCmd.AddCommand(filmShowCmd)
	filmShowCmd.Flags().IntP("limit", "n", catalog.MaxAuditEntries, "Maximum number of history entries to show")
}
