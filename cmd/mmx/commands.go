package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/mmx/internal/backend"
	"github.com/kalambet/mmx/internal/config"
	"github.com/kalambet/mmx/internal/controller"
)

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Similarity search by text, image, or audio",
	Long: `Similarity search against the active collection.

Examples:
  mmx search sunset over the ocean
  mmx search --image ./query.jpg --results 10
  mmx search --audio ./hum.wav --collection field_recordings
  mmx search waves crashing --audio-only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		imagePath, _ := cmd.Flags().GetString("image")
		audioPath, _ := cmd.Flags().GetString("audio")
		numResults, _ := cmd.Flags().GetInt("results")
		collection, _ := cmd.Flags().GetString("collection")
		imagesOnly, _ := cmd.Flags().GetBool("images-only")
		audioOnly, _ := cmd.Flags().GetBool("audio-only")

		if imagePath != "" && audioPath != "" {
			return fmt.Errorf("--image and --audio are mutually exclusive")
		}
		if imagesOnly && audioOnly {
			return fmt.Errorf("--images-only and --audio-only are mutually exclusive")
		}

		q := controller.Query{
			Modality:   controller.ModalityText,
			Text:       strings.Join(args, " "),
			NumResults: numResults,
		}
		switch {
		case imagePath != "":
			q.Modality = controller.ModalityImage
			q.FilePath = imagePath
		case audioPath != "":
			q.Modality = controller.ModalityAudio
			q.FilePath = audioPath
		}
		if err := q.Validate(); err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := a.selectCollection(ctx, collection); err != nil {
			return err
		}

		if _, err := a.session.DispatchQuery(ctx, q); err != nil {
			return err
		}

		// Filter flags are a derived view over the stored result set; the
		// dispatcher already reset the filter to show everything.
		filter := a.session.Search.Filter()
		filter.ShowAudio = !imagesOnly
		filter.ShowImages = !audioOnly
		a.session.Search.SetFilter(filter)

		renderResults(a.client,
			a.session.Search.Displayed(),
			a.session.Search.Counts(),
			len(a.session.Search.Results()))
		return nil
	},
}

func init() {
	searchCmd.Flags().String("image", "", "search by example image file")
	searchCmd.Flags().String("audio", "", "search by example audio file")
	searchCmd.Flags().Int("results", 5, "requested result count (3, 5, 8, 10, 15 or 20)")
	searchCmd.Flags().String("collection", "", "target collection (default: configured or first available)")
	searchCmd.Flags().Bool("images-only", false, "show only image results")
	searchCmd.Flags().Bool("audio-only", false, "show only audio results")
}

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Index image and audio files into the active collection",
	Long: `Index media files into the active collection.

Files are validated by content type; anything that is neither image nor audio
is skipped. Accepted files are submitted one at a time, in order, and a
failure on one file never blocks the rest.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		collection, _ := cmd.Flags().GetString("collection")

		a, err := newApp()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := a.selectCollection(ctx, collection); err != nil {
			return err
		}

		accepted := a.session.Uploads.Enqueue(args)
		if skipped := len(args) - len(accepted); skipped > 0 {
			printWarning("Skipped %d unsupported file(s)", skipped)
		}
		if len(accepted) == 0 {
			return fmt.Errorf("nothing to upload: no image or audio files given")
		}

		printStep("Uploading %d file(s) to %s...", len(accepted), a.session.Registry.Active())
		a.session.Uploads.RunBatch(ctx)

		failed := 0
		for _, item := range a.session.Uploads.Items() {
			if item.Status == controller.UploadFailed {
				printError("%s: %s", item.Filename, item.Err)
				failed++
			}
		}

		renderRecent(a.client, a.session.Activity.Records(), a.session.Activity.Total())

		if failed > 0 {
			return fmt.Errorf("%d of %d file(s) failed", failed, len(accepted))
		}
		return nil
	},
}

func init() {
	uploadCmd.Flags().String("collection", "", "target collection (default: configured or first available)")
}

// --- collections ---

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Manage content collections",
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		cols, err := a.session.Registry.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			fmt.Println("No collections yet. Create one with `mmx collections create <name>`.")
			return nil
		}

		active := a.session.Registry.Active()
		if a.cfg.Collection.Default != "" {
			a.session.Registry.SetActive(a.cfg.Collection.Default)
			active = a.session.Registry.Active()
		}
		for _, c := range cols {
			marker := "  "
			if c.Name == active {
				marker = colorize(colorGreen, "* ")
			}
			fmt.Printf("%s%s  %d items  updated %s\n",
				marker,
				colorize(colorBold, c.Name),
				c.ItemCount,
				c.LastUpdated.Format("2006-01-02 15:04"),
			)
		}
		return nil
	},
}

var collectionsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new collection and make it active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		col, err := a.session.Registry.Create(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printSuccess("Created collection %s", col.Name)
		return nil
	},
}

var collectionsUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the default collection for future commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		if _, err := a.session.Registry.Refresh(cmd.Context()); err != nil {
			return err
		}
		a.session.Registry.SetActive(args[0])
		if a.session.Registry.Active() != args[0] {
			return fmt.Errorf("unknown collection %q", args[0])
		}

		if err := config.SetKey("collection.default", args[0]); err != nil {
			return err
		}
		printSuccess("Using collection %s", args[0])
		return nil
	},
}

func init() {
	collectionsCmd.AddCommand(collectionsListCmd)
	collectionsCmd.AddCommand(collectionsCreateCmd)
	collectionsCmd.AddCommand(collectionsUseCmd)
}

// --- recent ---

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recently indexed items",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		if err := a.session.Activity.Refresh(cmd.Context()); err != nil {
			return err
		}

		records := a.session.Activity.Records()
		if len(records) == 0 {
			fmt.Println("No recent uploads.")
			return nil
		}
		renderRecent(a.client, records, a.session.Activity.Total())
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend status, collections, and recent activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		// Independent reads; no ordering between them.
		var (
			info backend.StatusInfo
			cols []backend.Collection
		)
		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			var err error
			info, err = a.client.Status(ctx)
			return err
		})
		g.Go(func() error {
			var err error
			cols, err = a.session.Registry.Refresh(ctx)
			return err
		})
		g.Go(func() error {
			return a.session.Activity.Refresh(ctx)
		})
		if err := g.Wait(); err != nil {
			return err
		}

		printStatus("Backend", "%s", a.cfg.Backend.BaseURL)
		printStatus("Indexed items", "%d", info.IndexedItems)
		printStatus("Cross-modal search", "%v", info.CrossModalEnabled)
		printStatus("Collections", "%d", len(cols))
		printStatus("Recent uploads", "%d", a.session.Activity.Total())
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
