package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hackeros/hackerfs/pkg/hackerfs"
	"github.com/hackeros/hackerfs/pkg/hackerfs/perms"
)

func parseMode(s string) (perms.Permissions, error) {
	octal, err := strconv.ParseInt(s, 8, 32)
	if err != nil {
		return perms.Permissions{}, fmt.Errorf("invalid mode %q: expected octal digits", s)
	}
	return perms.FromOctal(int(octal))
}

func newMkdirCommand() *cobra.Command {
	var (
		mode    string
		parents bool
	)

	cmd := &cobra.Command{
		Use:   "mkdir [path]",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFS(true, func(ctx context.Context, v *hackerfs.VFS) error {
				m := v.DefaultDirMode()
				if mode != "" {
					var err error
					if m, err = parseMode(mode); err != nil {
						return err
					}
				}
				return v.CreateDirectory(ctx, args[0], m, identity(), parents)
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "permission mode (octal, default from config)")
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parent directories")

	return cmd
}

func newLsCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			return withFS(false, func(ctx context.Context, v *hackerfs.VFS) error {
				entries, err := v.ListDirectory(ctx, path, identity(), hackerfs.ListOptions{IncludeHidden: all})
				if err != nil {
					return err
				}
				for _, fi := range entries {
					fmt.Println(formatEntry(fi))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include hidden entries")

	return cmd
}

func newCatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat [path]",
		Short: "Print a file's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Persist: reading updates access time.
			return withFS(true, func(ctx context.Context, v *hackerfs.VFS) error {
				data, err := v.ReadFile(ctx, args[0], identity())
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			})
		},
	}
}

func newWriteCommand() *cobra.Command {
	var (
		appendTo bool
		mode     string
	)

	cmd := &cobra.Command{
		Use:   "write [path] [content]",
		Short: "Write content to a file, creating it if absent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFS(true, func(ctx context.Context, v *hackerfs.VFS) error {
				if mode != "" {
					m, err := parseMode(mode)
					if err != nil {
						return err
					}
					return v.CreateFile(ctx, args[0], []byte(args[1]), m, identity())
				}
				return v.WriteFile(ctx, args[0], []byte(args[1]), identity(), appendTo)
			})
		},
	}

	cmd.Flags().BoolVar(&appendTo, "append", false, "append instead of replacing")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "create with explicit mode (octal); fails if the file exists")

	return cmd
}

func newRmCommand() *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "rm [path]",
		Short: "Remove a file, symlink or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFS(true, func(ctx context.Context, v *hackerfs.VFS) error {
				return v.Delete(ctx, args[0], identity(), recursive)
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove directories and their contents")

	return cmd
}

func newMvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mv [src] [dst]",
		Short: "Move or rename an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFS(true, func(ctx context.Context, v *hackerfs.VFS) error {
				return v.Move(ctx, args[0], args[1], identity())
			})
		},
	}
}

func newCpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cp [src] [dst]",
		Short: "Copy an entry (directories are copied recursively)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFS(true, func(ctx context.Context, v *hackerfs.VFS) error {
				return v.Copy(ctx, args[0], args[1], identity())
			})
		},
	}
}

func newChmodCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chmod [mode] [path]",
		Short: "Change permission bits (octal, up to 7777)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMode(args[0])
			if err != nil {
				return err
			}
			return withFS(true, func(ctx context.Context, v *hackerfs.VFS) error {
				return v.SetPermissions(ctx, args[1], m, identity())
			})
		},
	}
}

func newChownCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chown [owner][:group] [path]",
		Short: "Change owner and/or group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, gid, err := parseOwnerSpec(args[0])
			if err != nil {
				return err
			}
			return withFS(true, func(ctx context.Context, v *hackerfs.VFS) error {
				return v.SetOwnership(ctx, args[1], uid, gid, identity())
			})
		},
	}
}

// parseOwnerSpec parses "uid", ":gid" or "uid:gid"; omitted parts are
// left unchanged.
func parseOwnerSpec(spec string) (uid, gid int, err error) {
	uid, gid = hackerfs.KeepID, hackerfs.KeepID
	owner, group, hasGroup := strings.Cut(spec, ":")
	if owner != "" {
		if uid, err = strconv.Atoi(owner); err != nil {
			return 0, 0, fmt.Errorf("invalid owner %q", owner)
		}
	}
	if hasGroup && group != "" {
		if gid, err = strconv.Atoi(group); err != nil {
			return 0, 0, fmt.Errorf("invalid group %q", group)
		}
	}
	if uid == hackerfs.KeepID && gid == hackerfs.KeepID {
		return 0, 0, fmt.Errorf("empty owner spec %q", spec)
	}
	return uid, gid, nil
}

func newLnCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ln [target] [link]",
		Short: "Create a symbolic link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFS(true, func(ctx context.Context, v *hackerfs.VFS) error {
				return v.Symlink(ctx, args[0], args[1], identity())
			})
		},
	}
}

func newStatCommand() *cobra.Command {
	var noFollow bool

	cmd := &cobra.Command{
		Use:   "stat [path]",
		Short: "Show entry metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFS(false, func(ctx context.Context, v *hackerfs.VFS) error {
				var fi hackerfs.FileInfo
				var err error
				if noFollow {
					fi, err = v.Lstat(ctx, args[0], identity())
				} else {
					fi, err = v.Stat(ctx, args[0], identity())
				}
				if err != nil {
					return err
				}
				fmt.Printf("  File: %s\n", fi.Path)
				if fi.Target != "" {
					fmt.Printf("Target: %s\n", fi.Target)
				}
				fmt.Printf("  Kind: %s\n", fi.Kind)
				fmt.Printf("  Size: %d\n", fi.Size)
				fmt.Printf("  Mode: %s (%04o)\n", fi.ModeString(), fi.Mode.ToOctal())
				fmt.Printf(" Owner: %d:%d\n", fi.OwnerID, fi.GroupID)
				fmt.Printf("Create: %s\n", fi.CreatedAt.Format("2006-01-02 15:04:05"))
				fmt.Printf("Modify: %s\n", fi.ModifiedAt.Format("2006-01-02 15:04:05"))
				fmt.Printf("Access: %s\n", fi.AccessedAt.Format("2006-01-02 15:04:05"))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "stat the symlink itself")

	return cmd
}

func newExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export the tree as a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFS(false, func(ctx context.Context, v *hackerfs.VFS) error {
				data, err := v.Snapshot(ctx)
				if err != nil {
					return err
				}
				return os.WriteFile(args[0], data, 0o644)
			})
		},
	}
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Replace the tree from a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withFS(true, func(ctx context.Context, v *hackerfs.VFS) error {
				return v.Restore(ctx, data)
			})
		},
	}
}
