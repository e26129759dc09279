package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Alp4ka/storypager"
	"github.com/samber/lo"
)

func runRegister(ctx context.Context, a *app, args []string) error {
	flagSet := newFlagSet("register", a.out)
	name := flagSet.String("name", "", "display name")
	email := flagSet.String("email", "", "account email")
	password := flagSet.String("password", "", "password, at least 8 characters")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if *name == "" || *email == "" || *password == "" {
		return errors.New("--name, --email and --password are required")
	}

	if err := a.client.Register(ctx, *name, *email, *password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered %s\n", *email)

	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	flagSet := newFlagSet("login", a.out)
	email := flagSet.String("email", "", "account email")
	password := flagSet.String("password", "", "password")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("--email and --password are required")
	}

	result, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s\n", result.Name)

	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet("logout", a.out), args); err != nil {
		return err
	}
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")

	return nil
}

func runFeed(ctx context.Context, a *app, args []string) error {
	flagSet := newFlagSet("feed", a.out)
	pages := flagSet.Int("pages", 1, "number of pages to load")
	size := flagSet.Int("size", a.cfg.PageSize, "stories per page")
	location := flagSet.Bool("location", false, "only stories with a location")
	anchor := flagSet.Int("refresh-anchor", -1, "after loading, refresh around this position and print the changes")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}

	fetcher := a.client.Fetcher()
	if *location {
		fetcher = fetcher.WithLocationOnly()
	}
	seq := storypager.NewSequence(fetcher, *size).WithLogger(a.logger)
	defer seq.Close()

	if err := loadPages(ctx, seq, *pages, a.cfg.MaxRetries); err != nil {
		return err
	}
	snap := seq.Snapshot()
	printItems(a.out, snap.Items)
	fmt.Fprintf(a.out, "%d stories, %s\n", snap.Len(), snap.State)

	if !*location {
		if err := a.feed.Replace(ctx, snap.Items); err != nil {
			return err
		}
	}

	if *anchor < 0 {
		return nil
	}
	refreshed, err := refreshAround(ctx, seq, *anchor)
	if err != nil {
		return err
	}
	printOps(a.out, storypager.Diff(snap.Items, refreshed.Items))

	return nil
}

// loadPages loads up to pages pages, retrying retryable failures up to
// maxRetries times per page. Reaching the end of the feed is not an error.
func loadPages(ctx context.Context, seq *storypager.Sequence, pages, maxRetries int) error {
	for range pages {
		_, err := seq.LoadNext(ctx)
		for attempt := 0; err != nil && storypager.IsRetryable(err) && attempt < maxRetries; attempt++ {
			_, err = seq.Retry(ctx)
		}

		switch {
		case errors.Is(err, storypager.ErrEndOfSequence):
			return nil
		case err != nil:
			return err
		}
	}

	return nil
}

// refreshAround reloads the page holding anchor and returns the new snapshot.
func refreshAround(ctx context.Context, seq *storypager.Sequence, anchor int) (storypager.Snapshot, error) {
	if _, err := seq.Refresh(ctx, anchor); err != nil {
		return storypager.Snapshot{}, err
	}

	return seq.Snapshot(), nil
}

func runMap(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet("map", a.out), args); err != nil {
		return err
	}

	items, err := a.client.StoriesWithLocation(ctx)
	if err != nil {
		return err
	}
	printItems(a.out, items)

	return nil
}

func runAdd(ctx context.Context, a *app, args []string) error {
	flagSet := newFlagSet("add", a.out)
	photoPath := flagSet.String("photo", "", "path of the photo to upload")
	description := flagSet.String("description", "", "story description")
	lat := flagSet.Float64("lat", 0, "latitude")
	lon := flagSet.Float64("lon", 0, "longitude")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if *photoPath == "" || *description == "" {
		return errors.New("--photo and --description are required")
	}
	if flagSet.Changed("lat") != flagSet.Changed("lon") {
		return errors.New("--lat and --lon must be given together")
	}

	photo, err := os.Open(*photoPath)
	if err != nil {
		return fmt.Errorf("cannot open photo: %w", err)
	}
	defer photo.Close()

	story := storypager.NewStory{
		Description: *description,
		Photo:       photo,
		PhotoName:   *photoPath,
	}
	if flagSet.Changed("lat") {
		story.Lat, story.Lon = lat, lon
	}

	if err = a.client.AddStory(ctx, story); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "story uploaded")

	return nil
}

func runWidget(ctx context.Context, a *app, args []string) error {
	flagSet := newFlagSet("widget", a.out)
	limit := flagSet.Int("limit", 5, "number of stories to list")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}

	items, err := a.feed.List(ctx, *limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "no cached stories, run 'storyfeed feed' first")
		return nil
	}
	printItems(a.out, items)

	return nil
}

func printItems(w io.Writer, items []storypager.Item) {
	for i, item := range items {
		fmt.Fprintf(w, "%3d  %s  %-16s %s%s\n",
			i,
			item.CreatedAt.Format("2006-01-02 15:04"),
			item.Name,
			oneLine(item.Description),
			formatLocation(item),
		)
	}
}

func printOps(w io.Writer, ops []storypager.Op) {
	if len(ops) == 0 {
		fmt.Fprintln(w, "no changes")
		return
	}

	for _, op := range ops {
		switch op.Kind {
		case storypager.OpRemove:
			fmt.Fprintf(w, "- %3d  %s\n", op.OldIndex, op.Item.ID)
		case storypager.OpInsert:
			fmt.Fprintf(w, "+ %3d  %s\n", op.NewIndex, op.Item.ID)
		case storypager.OpMove:
			fmt.Fprintf(w, "~ %3d  %s (from %d)\n", op.NewIndex, op.Item.ID, op.OldIndex)
		case storypager.OpChange:
			fmt.Fprintf(w, "* %3d  %s\n", op.NewIndex, op.Item.ID)
		}
	}
}

func formatLocation(item storypager.Item) string {
	if !item.HasLocation() {
		return ""
	}

	return fmt.Sprintf("  (%.4f, %.4f)", lo.FromPtr(item.Lat), lo.FromPtr(item.Lon))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
