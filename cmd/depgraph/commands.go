package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/depcache"
	"github.com/unkn0wn-root/depcache/config"
)

type cli struct {
	root       *cobra.Command
	configFile string
	graph      depcache.Cache[struct{}]
}

func newCLI() *cli {
	c := &cli{}
	c.root = &cobra.Command{
		Use:           "depgraph",
		Short:         "Inspect depcache type dependencies",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}
	c.root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "configuration file (yaml)")

	c.root.AddCommand(
		c.newEdgesCmd(),
		c.newClosureCmd(),
		c.newDependentsCmd(),
		c.newAffectedCmd(),
	)
	return c
}

// load reads the configuration (file plus DEPCACHE_ environment) into a
// disabled cache, which keeps the dependency graph and stores nothing.
func (c *cli) load(cmd *cobra.Command) error {
	var files []string
	if c.configFile != "" {
		files = append(files, c.configFile)
	}
	cfg, err := config.NewLoader(config.EnvPrefix, files...).Load(cmd.Context())
	if err != nil {
		return err
	}
	c.graph = depcache.NewNop[struct{}]()
	config.ApplyDependencies(c.graph, cfg)
	return nil
}

func (c *cli) newEdgesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edges",
		Short: "List every dependency edge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, e := range c.graph.Dependencies() {
				if _, err := fmt.Fprintf(out, "%s -> %s\n", e.From, e.To); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (c *cli) newClosureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "closure TYPE...",
		Short: "Print the types a key tagged with TYPE is recorded under",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printTypes(cmd.OutOrStdout(), c.graph.Closure(toTypes(args)...))
		},
	}
}

func (c *cli) newDependentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dependents TYPE",
		Short: "Print the direct targets of TYPE's edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printTypes(cmd.OutOrStdout(), c.graph.Dependents(depcache.Type(args[0])))
		},
	}
}

func (c *cli) newAffectedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "affected TYPE",
		Short: "Print the tag types whose keys are dropped when TYPE is invalidated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printTypes(cmd.OutOrStdout(), affected(c.graph, depcache.Type(args[0])))
		},
	}
}

// affected returns every type whose closure contains target, target included.
func affected(g depcache.Cache[struct{}], target depcache.Type) []depcache.Type {
	candidates := map[depcache.Type]struct{}{target: {}}
	for _, e := range g.Dependencies() {
		candidates[e.From] = struct{}{}
	}
	var out []depcache.Type
	for t := range candidates {
		if slices.Contains(g.Closure(t), target) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

func toTypes(args []string) []depcache.Type {
	out := make([]depcache.Type, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, depcache.Type(a))
		}
	}
	return out
}

func printTypes(w io.Writer, types []depcache.Type) error {
	for _, t := range types {
		if _, err := fmt.Fprintln(w, t); err != nil {
			return err
		}
	}
	return nil
}
