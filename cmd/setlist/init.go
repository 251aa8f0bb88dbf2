package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/mmcdole/setlist/internal/config"
)

func initCommand(_ *viper.Viper, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Store the server URL, user id and token in the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			in := bufio.NewReader(cmd.InOrStdin())

			var server config.ServerConfig
			var err error
			if server.URL, err = prompt(out, in, "Server URL: "); err != nil {
				return err
			}
			if server.UserID, err = prompt(out, in, "User ID: "); err != nil {
				return err
			}
			if server.Token, err = readSecret(cmd, out, in, "Token: "); err != nil {
				return err
			}
			if server.URL == "" || server.UserID == "" || server.Token == "" {
				return errors.New("server URL, user id and token are all required")
			}

			path := flags.configFile
			if path == "" {
				path = config.DefaultConfigFile()
			}
			if err := config.WriteServerConfig(path, server); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s\n", path)
			return nil
		},
	}
}

func prompt(out io.Writer, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo when stdin is a terminal
func readSecret(cmd *cobra.Command, out io.Writer, in *bufio.Reader, label string) (string, error) {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return prompt(out, in, label)
	}

	fmt.Fprint(out, label)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}
