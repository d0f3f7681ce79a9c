// ABOUTME: Admin CLI for the toolmux gateway
// ABOUTME: Manages tool providers, the catalog, and quests over the HTTP API

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var host string

func gatewayURL(path string) string {
	return "http://" + host + path
}

func main() {
	root := &cobra.Command{
		Use:   "toolmux-admin",
		Short: "Manage a running toolmux gateway",
	}
	root.PersistentFlags().StringVar(&host, "host", defaultHost(), "gateway admin address")

	root.AddCommand(
		serversCmd(),
		toolsCmd(),
		sendCmd(),
		questsCmd(),
		statusCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func defaultHost() string {
	if h := os.Getenv("TOOLMUX_HOST"); h != "" {
		return h
	}
	return "localhost:8080"
}

func serversCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "List and manage tool providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listServers()
		},
	}

	var argsFlag []string
	var connect bool
	add := &cobra.Command{
		Use:   "add <alias> <command>",
		Short: "Register a provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"alias":   args[0],
				"command": args[1],
				"args":    argsFlag,
				"connect": connect,
			}
			var out map[string]any
			if err := call(http.MethodPost, "/api/servers", body, &out); err != nil {
				return err
			}
			color.Green("registered %s", args[0])
			return nil
		},
	}
	add.Flags().StringSliceVar(&argsFlag, "arg", nil, "provider argument (repeatable)")
	add.Flags().BoolVar(&connect, "connect", false, "connect immediately")

	connectCmd := &cobra.Command{
		Use:   "connect <alias>",
		Short: "Connect a provider now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := call(http.MethodPost, "/api/servers/"+args[0]+"/connect", nil, &out); err != nil {
				return err
			}
			color.Green("connected %s", args[0])
			return nil
		},
	}

	var forget bool
	disconnect := &cobra.Command{
		Use:   "disconnect <alias>",
		Short: "Disconnect a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/servers/" + args[0]
			if forget {
				path += "?forget=true"
			}
			var out map[string]any
			if err := call(http.MethodDelete, path, nil, &out); err != nil {
				return err
			}
			color.Yellow("disconnected %s", args[0])
			return nil
		},
	}
	disconnect.Flags().BoolVar(&forget, "forget", false, "also remove the registration")

	cmd.AddCommand(add, connectCmd, disconnect)
	return cmd
}

func listServers() error {
	var resp struct {
		Servers []struct {
			Alias     string   `json:"alias"`
			Command   string   `json:"command"`
			Args      []string `json:"args"`
			Connected bool     `json:"connected"`
			Default   bool     `json:"default"`
		} `json:"servers"`
	}
	if err := call(http.MethodGet, "/api/servers", nil, &resp); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tCOMMAND\tSTATE\tDEFAULT")
	for _, s := range resp.Servers {
		state := color.RedString("disconnected")
		if s.Connected {
			state = color.GreenString("connected")
		}
		def := ""
		if s.Default {
			def = "*"
		}
		cmdline := s.Command
		if len(s.Args) > 0 {
			cmdline += " " + strings.Join(s.Args, " ")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Alias, cmdline, state, def)
	}
	return w.Flush()
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the namespaced tool catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Tools []struct {
					Name        string `json:"name"`
					Description string `json:"description"`
				} `json:"tools"`
			}
			if err := call(http.MethodGet, "/api/tools", nil, &resp); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOOL\tDESCRIPTION")
			for _, t := range resp.Tools {
				fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Description)
			}
			return w.Flush()
		},
	}
}

func sendCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "send <text>",
		Short: "Run one message through the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Reply string `json:"reply"`
			}
			body := map[string]string{"user_id": user, "text": strings.Join(args, " ")}
			if err := call(http.MethodPost, "/api/message", body, &resp); err != nil {
				return err
			}
			fmt.Println(resp.Reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "admin", "user id for conversation context")
	return cmd
}

func questsCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "quests",
		Short: "List and manage quests",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Quests []struct {
					ID        string `json:"id"`
					Title     string `json:"title"`
					Completed bool   `json:"completed"`
				} `json:"quests"`
			}
			if err := call(http.MethodGet, "/api/quests?user_id="+user, nil, &resp); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tTITLE")
			for _, q := range resp.Quests {
				state := "open"
				if q.Completed {
					state = color.GreenString("done")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", q.ID, state, q.Title)
			}
			return w.Flush()
		},
	}
	cmd.PersistentFlags().StringVar(&user, "user", "admin", "quest owner")

	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a quest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"user_id": user, "title": strings.Join(args, " ")}
			var out map[string]any
			if err := call(http.MethodPost, "/api/quests", body, &out); err != nil {
				return err
			}
			color.Green("quest created")
			return nil
		},
	}
	complete := &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a quest done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := call(http.MethodPost, "/api/quests/"+args[0]+"/complete", nil, &out); err != nil {
				return err
			}
			color.Green("quest completed")
			return nil
		},
	}
	cmd.AddCommand(add, complete)
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check gateway health",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(gatewayURL("/health"))
			if err != nil {
				return fmt.Errorf("gateway unreachable: %w", err)
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
			}
			color.Green("healthy")
			return nil
		},
	}
}

// call performs one JSON round trip against the admin API.
func call(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, gatewayURL(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}
