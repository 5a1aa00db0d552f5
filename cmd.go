package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cli holds what the commands share. The app is built lazily so that the
// persistent flags are parsed before the database is opened.
type cli struct {
	home   string
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	picker Picker

	configPath string
	dbPath     string
	logLevel   string

	cfg  *Config
	log  zerolog.Logger
	repo *Repo
	app  *App
}

func newCLI(home string, in io.Reader, out, errOut io.Writer, picker Picker) *cli {
	return &cli{
		home:   home,
		in:     in,
		out:    out,
		errOut: errOut,
		picker: picker,
	}
}

func (c *cli) init() error {
	if c.app != nil {
		return nil
	}

	configPath := c.configPath
	if configPath == "" {
		configPath = DefaultConfigPath(c.home)
	}
	cfg, err := LoadConfig(configPath, c.home)
	if err != nil {
		return err
	}
	if c.dbPath != "" {
		cfg.Database = expandHome(c.dbPath, c.home)
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	logger, err := NewLogger(c.errOut, cfg.LogLevel)
	if err != nil {
		return err
	}

	repo, err := NewRepo(cfg.Database, logger)
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.log = logger
	c.repo = repo
	c.app = NewApp(repo, cfg, c.out, c.picker, logger)
	return nil
}

func (c *cli) close() {
	if c.repo != nil {
		if err := c.repo.Close(); err != nil {
			c.log.Error().Err(err).Msg("closing database failed")
		}
		c.repo = nil
		c.app = nil
	}
}

// completes stored dates for the first argument and their times for the second
func (c *cli) completeEntryArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if err := c.init(); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var entries []Entry
	var err error
	if len(args) == 0 {
		entries, err = c.app.Entries(true)
	} else {
		_, entries, err = c.app.DayEntries(args[0])
	}
	if err != nil {
		c.log.Debug().Err(err).Msg("completion failed")
		return nil, cobra.ShellCompDirectiveError
	}

	var values []string
	for _, e := range entries {
		if len(args) == 0 {
			values = append(values, e.Date)
		} else {
			values = append(values, e.Time)
		}
	}
	return uniqueStrings(values...), cobra.ShellCompDirectiveNoFileComp
}

// reads one line of optional text from the user
func (c *cli) prompt(label string) string {
	fmt.Fprint(c.out, label)
	reader := bufio.NewReader(c.in)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func SetupCommands(c *cli) *cobra.Command {
	// root command
	rootCmd := &cobra.Command{
		Use:           "kalender",
		Short:         "A personal calendar kept in a local SQLite database",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.config/kalender/config.toml)")
	rootCmd.PersistentFlags().StringVar(&c.dbPath, "db", "", "database file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	// month view with day list
	var (
		monthDate string
		monthPick bool
	)
	monthCmd := &cobra.Command{
		Use:   "month [year [month]]",
		Short: "Show the days of a month with their number of entries",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			selected := c.app.today()
			if monthDate != "" {
				d, err := NormalizeDate(monthDate)
				if err != nil {
					return err
				}
				selected = d
			}
			at, _ := ParseDate(selected)
			year, month := at.Year(), at.Month()

			if len(args) > 0 {
				y, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid year %q", args[0])
				}
				year = y
			}
			if len(args) > 1 {
				m, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid month %q", args[1])
				}
				month = time.Month(m)
			}

			shifted, err := ShiftDay(selected, year, month)
			if err != nil {
				return err
			}
			return c.app.Month(year, month, shifted, monthPick)
		},
	}
	monthCmd.Flags().StringVarP(&monthDate, "date", "d", "", "selected date (default today)")
	monthCmd.Flags().BoolVarP(&monthPick, "pick", "p", false, "choose a day interactively and show its entries")

	// entries of a single day
	dayCmd := &cobra.Command{
		Use:               "day [date]",
		Short:             "Show the entries of one day",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: c.completeEntryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date := c.app.today()
			if len(args) > 0 {
				date = args[0]
			}
			return c.app.Day(date)
		},
	}

	// list of all entries
	var listAll bool
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List entries from today on, sorted by date and time",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.List(listAll)
		},
	}
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include past entries")

	// add a new entry
	var addTime, addInfo, addWeekday, addRepeat string
	addCmd := &cobra.Command{
		Use:   "add [date]",
		Short: "Add an entry (default today at 00:00)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := EntryInput{Repeat: addRepeat}
			if len(args) > 0 {
				in.Date = &args[0]
			}
			if cmd.Flags().Changed("time") {
				in.Time = &addTime
			}
			if cmd.Flags().Changed("weekday") {
				in.DayOfWeek = &addWeekday
			}
			if !cmd.Flags().Changed("info") {
				addInfo = c.prompt("Additional information (press Enter to skip): ")
			}
			in.AdditionalInfo = &addInfo
			return c.app.Add(in)
		},
	}
	addCmd.Flags().StringVarP(&addTime, "time", "t", defaultClock, "time hh:mm")
	addCmd.Flags().StringVarP(&addInfo, "info", "i", "", "additional information")
	addCmd.Flags().StringVarP(&addWeekday, "weekday", "w", "", "weekday label (default derived from date)")
	addCmd.Flags().StringVarP(&addRepeat, "repeat", "r", "", `recurrence rule, e.g. "FREQ=WEEKLY;COUNT=4"`)

	// edit an existing entry
	var editDate, editTime, editInfo, editWeekday string
	editCmd := &cobra.Command{
		Use:               "edit [date [time]]",
		Short:             "Edit an entry, chosen interactively when not named",
		Args:              cobra.MaximumNArgs(2),
		ValidArgsFunction: c.completeEntryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in EntryInput
			if cmd.Flags().Changed("date") {
				in.Date = &editDate
			}
			if cmd.Flags().Changed("time") {
				in.Time = &editTime
			}
			if cmd.Flags().Changed("info") {
				in.AdditionalInfo = &editInfo
			}
			if cmd.Flags().Changed("weekday") {
				in.DayOfWeek = &editWeekday
			}
			return c.app.Edit(args, in)
		},
	}
	editCmd.Flags().StringVar(&editDate, "date", "", "new date dd.mm.yyyy")
	editCmd.Flags().StringVar(&editTime, "time", "", "new time hh:mm")
	editCmd.Flags().StringVar(&editInfo, "info", "", "new additional information")
	editCmd.Flags().StringVar(&editWeekday, "weekday", "", "new weekday label")

	// delete an entry
	deleteCmd := &cobra.Command{
		Use:               "delete [date [time]]",
		Aliases:           []string{"rm"},
		Short:             "Delete an entry, chosen interactively when not named",
		Args:              cobra.MaximumNArgs(2),
		ValidArgsFunction: c.completeEntryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Delete(args)
		},
	}

	// show an entry in full
	showCmd := &cobra.Command{
		Use:               "show [date [time]]",
		Short:             "Show an entry with its full text",
		Args:              cobra.MaximumNArgs(2),
		ValidArgsFunction: c.completeEntryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Show(args)
		},
	}

	// database information
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show database information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Info()
		},
	}

	// iCalendar export
	var exportUpcoming bool
	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export entries as iCalendar to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return c.app.Export(c.out, !exportUpcoming)
			}

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", args[0], err)
			}
			if err := c.app.Export(f, !exportUpcoming); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Calendar written to %s\n", args[0])
			return nil
		},
	}
	exportCmd.Flags().BoolVarP(&exportUpcoming, "upcoming", "u", false, "export only entries from today on")

	// iCalendar import
	importICSCmd := &cobra.Command{
		Use:   "import-ics <file>",
		Short: "Import events from an iCalendar file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			res, err := c.app.ImportICS(f)
			if err != nil {
				return err
			}
			c.app.PrintImportResult(res)
			return nil
		},
	}

	// import from a remote server
	importCmd := &cobra.Command{
		Use:   "import <url>",
		Short: "Import all entries from a running kalender server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Import(args[0])
			if err != nil {
				return err
			}
			c.app.PrintImportResult(res)
			return nil
		},
	}

	// push to a remote server
	var pushAll bool
	pushCmd := &cobra.Command{
		Use:   "push <url>",
		Short: "Send local entries to a running kalender server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.Push(args[0], pushAll)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Pushed %d entries, skipped %d already present.\n", res.Imported, res.Skipped)
			return nil
		},
	}
	pushCmd.Flags().BoolVarP(&pushAll, "all", "a", false, "include past entries")

	// http api
	var (
		serveHost   string
		servePort   int
		serveRemind string
		serveAhead  time.Duration
	)
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calendar over HTTP and log reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *c.cfg
			if cmd.Flags().Changed("host") {
				cfg.ServerHost = serveHost
			}
			if cmd.Flags().Changed("port") {
				cfg.ServerPort = servePort
			}
			if cmd.Flags().Changed("remind") {
				cfg.RemindSpec = serveRemind
			}
			if cmd.Flags().Changed("remind-ahead") {
				cfg.RemindAhead = serveAhead
			}
			return Serve(cmd.Context(), c.app, &cfg, c.log)
		},
	}
	serveCmd.Flags().StringVar(&serveHost, "host", defaultServerHost, "listen host")
	serveCmd.Flags().IntVar(&servePort, "port", defaultServerPort, "listen port")
	serveCmd.Flags().StringVar(&serveRemind, "remind", defaultRemindSpec, "cron schedule for reminder checks")
	serveCmd.Flags().DurationVar(&serveAhead, "remind-ahead", defaultRemindAhead, "how early to remind")

	// add commands
	rootCmd.AddCommand(monthCmd)
	rootCmd.AddCommand(dayCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importICSCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(serveCmd)

	return rootCmd
}
