//go:build linux

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/rogeraird/rgo/internal/channel"
	"github.com/rogeraird/rgo/internal/codec"
	"github.com/rogeraird/rgo/internal/models"
	"github.com/spf13/cobra"
)

func newListCommand(opts *cliOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every link the server holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			links, err := fetchLinks(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(links)
			}
			keys := make([]string, 0, len(links))
			for k := range links {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				if _, err := fmt.Fprintf(out, "%s\t%s\n", k, links[k]); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the table as JSON")
	return cmd
}

func newAddCommand(opts *cliOptions) *cobra.Command {
	var key, value string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, opts, models.Add{Key: key, Value: value})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "short key (path segment)")
	cmd.Flags().StringVar(&value, "value", "", "target URL")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func newRemoveCommand(opts *cliOptions) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, opts, models.Remove{Key: key})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "short key (path segment)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newPersistCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "persist",
		Short: "Ask the server to write its table to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, opts, models.Persist{})
		},
	}
}

// sendCommand encodes cmd and writes it to the server's pipe. Delivery is
// fire-and-forget: success means the bytes reached the pipe.
func sendCommand(cmd *cobra.Command, opts *cliOptions, c models.Command) error {
	payload, err := codec.Encode(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	if err := channel.Send(ctx, opts.pipe, payload); err != nil {
		if errors.Is(err, channel.ErrNoReader) {
			return fmt.Errorf("no server is reading %s: %w", opts.pipe, err)
		}
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", c)
	return err
}

func fetchLinks(ctx context.Context, opts *cliOptions) (models.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	url := strings.TrimRight(opts.server, "/") + "/priv/list"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("list: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var links models.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&links); err != nil {
		return nil, fmt.Errorf("list: decode response: %w", err)
	}
	return links, nil
}
