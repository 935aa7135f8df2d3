package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var processorsJSON bool

var processorsCmd = &cobra.Command{
	Use:   "processors",
	Short: "List registered processors and their arguments",
	RunE:  runProcessors,
}

type processorListing struct {
	Name       string       `json:"name"`
	Kind       string       `json:"kind"`
	UseThreads bool         `json:"useThreads"`
	Arguments  []argListing `json:"arguments,omitempty"`
}

type argListing struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Required bool   `json:"required,omitempty"`
	Default  any    `json:"default,omitempty"`
}

func runProcessors(cmd *cobra.Command, args []string) error {
	var listings []processorListing
	for _, info := range buildRegistry(cfg).Describe() {
		l := processorListing{Name: info.Name, Kind: string(info.Kind), UseThreads: info.Traits.UseThreads}
		for _, a := range info.Arguments {
			l.Arguments = append(l.Arguments, argListing{Name: a.Name, Kind: a.Kind.String(), Required: a.Required, Default: a.Default})
		}
		listings = append(listings, l)
	}

	out := cmd.OutOrStdout()
	if processorsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(listings)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tARGUMENTS")
	for _, l := range listings {
		parts := make([]string, 0, len(l.Arguments))
		for _, a := range l.Arguments {
			s := a.Name + ":" + a.Kind
			if a.Required {
				s += "*"
			}
			parts = append(parts, s)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", l.Name, l.Kind, strings.Join(parts, " "))
	}
	return w.Flush()
}
