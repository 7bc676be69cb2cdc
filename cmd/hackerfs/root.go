package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hackeros/hackerfs/pkg/hackerfs"
	"github.com/hackeros/hackerfs/pkg/hackerfs/access"
	"github.com/hackeros/hackerfs/pkg/hackerfs/core"
)

var (
	dbPath   string
	cfgPath  string
	actorUID int
	actorGID int
	groups   []int
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hackerfs",
	Short: "A virtual filesystem with Unix permission semantics",
	Long: `hackerfs manages a persistent virtual filesystem: a node tree with full
Unix permission bits (including setuid, setgid and the sticky bit),
per-operation access control, and snapshot persistence. Every command
acts as the identity given by --uid/--gid/--groups.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "hackerfs.db", "database file holding the filesystem tree")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().IntVar(&actorUID, "uid", 0, "acting user id")
	rootCmd.PersistentFlags().IntVar(&actorGID, "gid", 0, "acting primary group id")
	rootCmd.PersistentFlags().IntSliceVar(&groups, "groups", nil, "supplementary group ids")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newMkdirCommand())
	rootCmd.AddCommand(newLsCommand())
	rootCmd.AddCommand(newCatCommand())
	rootCmd.AddCommand(newWriteCommand())
	rootCmd.AddCommand(newRmCommand())
	rootCmd.AddCommand(newMvCommand())
	rootCmd.AddCommand(newCpCommand())
	rootCmd.AddCommand(newChmodCommand())
	rootCmd.AddCommand(newChownCommand())
	rootCmd.AddCommand(newLnCommand())
	rootCmd.AddCommand(newStatCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newImportCommand())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Print the version number of hackerfs`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hackerfs version %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func identity() access.Identity {
	return access.Identity{UID: actorUID, GID: actorGID, Groups: groups}
}

// withFS opens the store, loads the persisted tree (an empty store
// yields a fresh root), runs fn, and flushes the tree back when persist
// is set.
func withFS(persist bool, fn func(ctx context.Context, v *hackerfs.VFS) error) error {
	cfg, err := hackerfs.LoadConfigOrDefault(cfgPath)
	if err != nil {
		return err
	}

	store, err := hackerfs.OpenBoltStore(dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", dbPath, err)
	}
	defer store.Close()

	level, err := hackerfs.LogLevelFromString(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logger := hackerfs.NewLogger(os.Stderr, level)
	v := hackerfs.New(
		hackerfs.WithConfig(cfg),
		hackerfs.WithStore(store),
		hackerfs.WithLogger(logger),
	)

	ctx := context.Background()
	if err := v.LoadFrom(ctx); err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("load tree: %w", err)
	}

	if err := fn(ctx, v); err != nil {
		return err
	}
	if persist {
		return v.Flush(ctx)
	}
	return nil
}

func formatEntry(fi hackerfs.FileInfo) string {
	name := fi.Name
	if fi.Kind.String() == "symlink" {
		name = fmt.Sprintf("%s -> %s", name, fi.Target)
	}
	return fmt.Sprintf("%s %4d %4d %8d %s %s",
		fi.ModeString(), fi.OwnerID, fi.GroupID, fi.Size,
		fi.ModifiedAt.Format("Jan _2 15:04"), name)
}
