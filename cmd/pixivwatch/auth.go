package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pixivwatch/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Pixiv credentials",
	Long: `Manage the stored Pixiv refresh token securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variable (PIXIVWATCH_REFRESH_TOKEN, read-only)

Never share your refresh token!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Store a Pixiv refresh token securely",
	Long: `Store a Pixiv refresh token in the system keychain or an encrypted file.

You will be prompted for:
  - An account name (if not provided)
  - The refresh token (input is hidden)`,
	Example: `  # Interactive login
  pixivwatch auth login

  # Login with an account name
  pixivwatch auth login myaccount`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	RunE:  runList,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <account>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	name := ""
	if len(args) == 1 {
		name = strings.TrimSpace(args[0])
	}
	if name == "" {
		fmt.Print("Account name: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read account name: %w", err)
		}
		name = strings.TrimSpace(line)
	}
	if name == "" {
		return fmt.Errorf("account name is required")
	}

	token, err := readSecret(reader, "Refresh token: ")
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("refresh token is required")
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Store(&auth.Account{Name: name, RefreshToken: token}); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	fmt.Printf("Credentials stored for account %q\n", name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		fmt.Println("No stored accounts. Use 'pixivwatch auth login' to add one.")
		return nil
	}

	for _, account := range accounts {
		fmt.Printf("%s (updated %s)\n", account.Name, account.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := strings.TrimSpace(args[0])
	if err := manager.Delete(name); err != nil {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}

	fmt.Printf("Credentials removed for account %q\n", name)
	return nil
}

// readSecret reads a secret without echo when stdin is a terminal
func readSecret(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
