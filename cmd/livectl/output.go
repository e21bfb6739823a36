package main

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/spf13/cobra"

	"reddit-live/pkg/reddit"
)

type attributed interface {
	Attributes() map[string]any
}

// plain converts API results into values encoding/json renders usefully.
// Objects become their attribute maps and listings their children.
func plain(v any) any {
	switch x := v.(type) {
	case attributed:
		attrs := x.Attributes()
		out := make(map[string]any, len(attrs))
		for k, val := range attrs {
			out[k] = plain(val)
		}
		return out
	case *reddit.Listing:
		children := make([]any, len(x.Children))
		for i, c := range x.Children {
			children[i] = plain(c)
		}
		return map[string]any{"children": children, "after": x.After, "before": x.Before}
	case []*reddit.Redditor:
		out := make([]any, len(x))
		for i, u := range x {
			out[i] = plain(u)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = plain(val)
		}
		return out
	default:
		return v
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plain(v)); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func writeListing[T any](cmd *cobra.Command, seq iter.Seq2[T, error]) error {
	items := []any{}
	for item, err := range seq {
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	return writeJSON(cmd.OutOrStdout(), items)
}
