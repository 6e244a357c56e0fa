package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"voicedesk/internal/store"
)

// Консольный просмотрщик базы. Единственная мутация — отметка пункта
// списка через -toggle.
func main() {
	dbPath := flag.String("db", "voicedesk.db", "путь к базе")
	toggle := flag.Int64("toggle", 0, "переключить отметку пункта списка по id")
	setDefault := flag.String("set-default", "", "запомнить раздел по умолчанию")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: notes [-db path] [-toggle id] [notes|lists|agenda|reminders|all]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()

	if *toggle != 0 {
		if err := st.ToggleItem(ctx, *toggle); err != nil {
			fail(err)
		}
		fmt.Printf("Toggled item #%d\n", *toggle)
	}
	if *setDefault != "" {
		if err := st.SetSetting(ctx, "viewer.default_section", *setDefault); err != nil {
			fail(err)
		}
	}

	section, err := st.Setting(ctx, "viewer.default_section", "all")
	if err != nil {
		fail(err)
	}
	if flag.NArg() > 0 {
		section = flag.Arg(0)
	}

	ok := false

	if section == "notes" || section == "all" {
		ok = true
		if err := printNotes(ctx, st); err != nil {
			fail(err)
		}
	}
	if section == "lists" || section == "all" {
		ok = true
		if err := printLists(ctx, st); err != nil {
			fail(err)
		}
	}
	if section == "agenda" || section == "all" {
		ok = true
		if err := printAgenda(ctx, st); err != nil {
			fail(err)
		}
	}
	if section == "reminders" || section == "all" {
		ok = true
		if err := printReminders(ctx, st); err != nil {
			fail(err)
		}
	}
	if !ok {
		flag.Usage()
		os.Exit(2)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func printNotes(ctx context.Context, st *store.Store) error {
	notes, err := st.Notes(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Notes (%d):\n", len(notes))
	for _, n := range notes {
		fmt.Printf("  #%-4d [%s] %s\n", n.ID, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Text)
	}
	return nil
}

func printLists(ctx context.Context, st *store.Store) error {
	lists, err := st.Lists(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Lists (%d):\n", len(lists))
	for _, l := range lists {
		fmt.Printf("  #%-4d %s\n", l.ID, l.Name)
		items, err := st.Items(ctx, l.ID)
		if err != nil {
			return err
		}
		for _, it := range items {
			mark := " "
			if it.Done {
				mark = "x"
			}
			fmt.Printf("    [%s] #%-4d %s\n", mark, it.ID, it.Text)
		}
	}
	return nil
}

func printAgenda(ctx context.Context, st *store.Store) error {
	appts, err := st.Agenda(ctx, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Agenda (%d):\n", len(appts))
	for _, a := range appts {
		fmt.Printf("  #%-4d %s  %s (remind %d min before)\n",
			a.ID, a.StartAt.Local().Format("2006-01-02 15:04"), a.Title, int(a.Lead.Minutes()))
	}
	return nil
}

func printReminders(ctx context.Context, st *store.Store) error {
	reminders, err := st.PendingReminders(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Pending reminders (%d):\n", len(reminders))
	for _, r := range reminders {
		fmt.Printf("  #%-4d %s  %s\n", r.ID, r.FireAt.Local().Format("2006-01-02 15:04"), r.Text)
	}
	return nil
}
