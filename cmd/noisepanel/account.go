package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/noisepanel/internal/config"
	"github.com/muurk/noisepanel/internal/session"
	"github.com/muurk/noisepanel/internal/ui"
)

var (
	loginPassword  string
	deviceNickname string
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configAddDeviceCmd)

	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (prompted for when omitted)")
	configAddDeviceCmd.Flags().StringVar(&deviceNickname, "nickname", "", "Friendly name shown in listings")
}

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Log in to the identity provider",
	Long: `Log in with email and password. The access token and user id are kept in
the system keyring and shared by every noisepanel command and the dashboard.

Only accounts with the admin role can change device controls.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := newIdentity()
		if err != nil {
			return err
		}

		email := ""
		if len(args) == 1 {
			email = args[0]
		} else {
			fmt.Fprint(os.Stderr, "Email: ")
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			email = line
		}
		email = strings.TrimSpace(email)
		if email == "" {
			return fmt.Errorf("email is required")
		}

		pw := loginPassword
		if pw == "" {
			if pw, err = readSecret("Password: "); err != nil {
				return err
			}
		}

		sess, err := id.Login(cmd.Context(), email, pw)
		if err != nil {
			fmt.Print(ui.NewFailureResult("Login failed", err, nil).String())
			return err
		}
		if err := newSessionStore().Save(sess); err != nil {
			return fmt.Errorf("failed to store session: %w", err)
		}

		role, err := id.Role(cmd.Context(), sess)
		if err != nil {
			fmt.Print(ui.NewWarningResult("Logged in, role unavailable",
				ui.Param{Key: "User", Value: sess.UserID},
				ui.Param{Key: "Reason", Value: err.Error()},
			).String())
			return nil
		}
		if role == "" {
			role = "(none)"
		}

		if role != session.RoleAdmin {
			fmt.Print(ui.NewWarningResult("Logged in (not authorized)",
				ui.Param{Key: "User", Value: sess.UserID},
				ui.Param{Key: "Role", Value: role},
			).String())
			return nil
		}
		fmt.Print(ui.NewSuccessResult("Logged in",
			ui.Param{Key: "User", Value: sess.UserID},
			ui.Param{Key: "Role", Value: role},
		).String())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newSessionStore().Clear(); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		fmt.Println("Logged out")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			path = p
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		var err error
		if configPath != "" {
			err = config.NewRegistry().SaveFile(configPath)
		} else {
			err = config.CreateDefaultConfig()
		}
		if err != nil {
			return err
		}
		fmt.Print(ui.NewSuccessResult("Configuration written", ui.Param{Key: "Path", Value: path}).String())
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			fmt.Println(configPath)
			return nil
		}
		p, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}

var configAddDeviceCmd = &cobra.Command{
	Use:   "add-device <name> <address>",
	Short: "Add or update a named device",
	Example: `  noisepanel config add-device lab 192.168.1.40
  noisepanel config add-device attic 10.0.0.12:8080 --nickname "Attic sensor"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		host, port, err := splitAddress(args[1], devicePort)
		if err != nil {
			return err
		}

		d := registry.EnsureDevice(name)
		d.Address = host
		d.Port = port
		if deviceNickname != "" {
			registry.SetDeviceNickname(name, deviceNickname)
		}
		if registry.Preferences.DefaultDevice == "" {
			registry.Preferences.DefaultDevice = name
		}
		if err := saveRegistry(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Print(ui.NewSuccessResult("Device saved",
			ui.Param{Key: "Name", Value: name},
			ui.Param{Key: "Address", Value: (&target{Host: host, Port: port}).String()},
		).String())
		return nil
	},
}
