package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// gamectl is a thin operator CLI over the gamed HTTP API.

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	server := "http://127.0.0.1:8080"
	if v := os.Getenv("GAMECTL_SERVER"); v != "" {
		server = v
	}

	root := &cobra.Command{
		Use:           "gamectl",
		Short:         "Control a gamed orchestrator over its HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&server, "server", server, "gamed base URL (defaults GAMECTL_SERVER)")

	var id, name, password, file string

	upload := &cobra.Command{
		Use:     "upload",
		Short:   "Upload a map, launching the instance if needed",
		Example: "  gamectl upload --id 4f7c... --file foo.map --name \"my server\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			q := url.Values{
				"server_id":       {id},
				"map_filename":    {filepath.Base(file)},
				"server_name":     {name},
				"server_password": {password},
			}
			resp, err := http.Post(server+"/update-map?"+q.Encode(), "application/octet-stream", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return report(cmd, resp)
		},
	}
	upload.Flags().StringVar(&id, "id", "", "server instance UUID")
	upload.Flags().StringVar(&file, "file", "", "map file to upload")
	upload.Flags().StringVar(&name, "name", "trashmap server", "server display name")
	upload.Flags().StringVar(&password, "password", "", "server join password")
	_ = upload.MarkFlagRequired("id")
	_ = upload.MarkFlagRequired("file")

	settings := &cobra.Command{
		Use:     "settings",
		Short:   "Change a live instance's name and password",
		Example: "  gamectl settings --id 4f7c... --name \"renamed\" --password hunter2",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{
				"server_id":       {id},
				"server_name":     {name},
				"server_password": {password},
			}
			resp, err := http.Get(server + "/update-settings?" + q.Encode())
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return report(cmd, resp)
		},
	}
	settings.Flags().StringVar(&id, "id", "", "server instance UUID")
	settings.Flags().StringVar(&name, "name", "", "server display name")
	settings.Flags().StringVar(&password, "password", "", "server join password")
	_ = settings.MarkFlagRequired("id")

	watch := &cobra.Command{
		Use:     "watch",
		Short:   "Stream lifecycle events for an instance",
		Example: "  gamectl watch --id 4f7c...",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"server_id": {id}}
			resp, err := http.Get(server + "/server-events?" + q.Encode())
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			sc := bufio.NewScanner(resp.Body)
			for sc.Scan() {
				line := sc.Text()
				if line == "" || strings.HasPrefix(line, ":") {
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return sc.Err()
		},
	}
	watch.Flags().StringVar(&id, "id", "", "server instance UUID")
	_ = watch.MarkFlagRequired("id")

	root.AddCommand(upload, settings, watch)
	return root
}

func report(cmd *cobra.Command, resp *http.Response) error {
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Status)
	return nil
}
