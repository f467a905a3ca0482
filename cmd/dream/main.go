// Command dream is a thin CLI over the tag index library: a root
// command carrying shared persistent flags (config path, store path),
// one subcommand per operation, each wiring its own flags.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mentalblood0/dream"
	"github.com/mentalblood0/dream/config"
	"github.com/mentalblood0/dream/kv/bolt"
	"github.com/mentalblood0/dream/logger"
)

var (
	configPath string
	storePath  string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dream",
		Short: "Query and maintain a persistent tag index",
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the TOML config file")
	cmd.PersistentFlags().StringVar(&storePath, "store", "", "path to the bbolt database file (overrides config)")

	cmd.AddCommand(addCmd(), deleteCmd(), deleteTagsCmd(), findCmd(), resolveCmd(), checkpointCmd(), clearCmd())
	return cmd
}

// openIndex loads config, opens the bbolt-backed store, and returns a
// ready Index. Callers are responsible for calling Close.
func openIndex(ctx context.Context) (*dream.Index, error) {
	cfg, err := config.FromTomlFile(configPath)
	if err != nil {
		return nil, err
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.New(os.Stderr, cfg.Logging)
	store := bolt.NewStore(cfg.Store.Path)
	store.WithLogger(log)

	ix, err := dream.Open(ctx, store)
	if err != nil {
		return nil, err
	}
	ix.WithLogger(log)
	return ix, nil
}

func addCmd() *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "add <object>",
		Short: "Attach tags to an object, creating it if new",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := openIndex(cmd.Context())
			if err != nil {
				return err
			}
			defer ix.Close()

			tagBlobs := make([]dream.BlobOrId, len(tags))
			for i, t := range tags {
				tagBlobs[i] = dream.Raw([]byte(t))
			}

			return ix.Update(cmd.Context(), func(tx *dream.Tx) error {
				if err := tx.Add(dream.Raw([]byte(args[0])), tagBlobs...); err != nil {
					return err
				}
				return tx.Commit()
			})
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to attach (repeatable)")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <object>",
		Short: "Remove an object and every tag attached to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := openIndex(cmd.Context())
			if err != nil {
				return err
			}
			defer ix.Close()

			return ix.Update(cmd.Context(), func(tx *dream.Tx) error {
				if err := tx.Delete(dream.Raw([]byte(args[0]))); err != nil {
					return err
				}
				return tx.Commit()
			})
		},
	}
}

func deleteTagsCmd() *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "delete-tags <object>",
		Short: "Remove specific tags from an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := openIndex(cmd.Context())
			if err != nil {
				return err
			}
			defer ix.Close()

			tagBlobs := make([]dream.BlobOrId, len(tags))
			for i, t := range tags {
				tagBlobs[i] = dream.Raw([]byte(t))
			}

			return ix.Update(cmd.Context(), func(tx *dream.Tx) error {
				if err := tx.DeleteTags(dream.Raw([]byte(args[0])), tagBlobs...); err != nil {
					return err
				}
				return tx.Commit()
			})
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to remove (repeatable)")
	return cmd
}

func findCmd() *cobra.Command {
	var present, absent []string
	var limit int
	var startAfter string
	cmd := &cobra.Command{
		Use:   "find",
		Short: "List objects bearing every --present tag and no --absent tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := openIndex(cmd.Context())
			if err != nil {
				return err
			}
			defer ix.Close()

			q := dream.Query{Limit: limit}
			for _, p := range present {
				q.Present = append(q.Present, dream.Raw([]byte(p)))
			}
			for _, a := range absent {
				q.Absent = append(q.Absent, dream.Raw([]byte(a)))
			}
			if startAfter != "" {
				id, err := dream.IdFromHex(startAfter)
				if err != nil {
					return err
				}
				q.StartAfter = &id
			}

			var result dream.FindResult
			err = ix.View(cmd.Context(), func(tx *dream.Tx) error {
				result, err = tx.Find(q)
				return err
			})
			if err != nil {
				return err
			}

			ids := make([]string, len(result.Ids))
			for i, id := range result.Ids {
				ids[i] = id.String()
			}
			fmt.Println(strings.Join(ids, "\n"))
			if result.Next != nil {
				fmt.Fprintf(os.Stderr, "next: %s\n", result.Next.String())
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&present, "present", nil, "tag that must be present (repeatable)")
	cmd.Flags().StringSliceVar(&absent, "absent", nil, "tag that must be absent (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results (0 = unbounded)")
	cmd.Flags().StringVar(&startAfter, "start-after", "", "resume a paginated scan after this object id (hex)")
	return cmd
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id-hex>",
		Short: "Print the original blob for an id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := openIndex(cmd.Context())
			if err != nil {
				return err
			}
			defer ix.Close()

			id, err := dream.IdFromHex(args[0])
			if err != nil {
				return err
			}

			var blob []byte
			err = ix.View(cmd.Context(), func(tx *dream.Tx) error {
				blob, err = tx.Resolve(id)
				return err
			})
			if err != nil {
				return err
			}
			os.Stdout.Write(blob)
			return nil
		},
	}
}

func checkpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint",
		Short: "Force buffered writes to durable storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := openIndex(cmd.Context())
			if err != nil {
				return err
			}
			defer ix.Close()
			return ix.Checkpoint(cmd.Context())
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every object and tag from the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := openIndex(cmd.Context())
			if err != nil {
				return err
			}
			defer ix.Close()
			return ix.Clear(cmd.Context())
		},
	}
}
