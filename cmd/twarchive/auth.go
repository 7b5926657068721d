package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"twarchive/pkg/auth"
)

// authCmd groups the credential management commands
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored API credentials",
	Long: `Manage stored API credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation

The CONSUMER_KEY, CONSUMER_SECRET, ACCESS_TOKEN and ACCESS_TOKEN_SECRET
environment variables always take precedence over stored credentials.`,
}

// loginCmd stores a set of credentials under a profile
var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store API credentials securely",
	Long: `Store API credentials in the system keychain or an encrypted file.

You will be prompted for:
  - Consumer key
  - Consumer secret (hidden)
  - Access token
  - Access token secret (hidden)

Create an application at apps.twitter.com to obtain these values.`,
	Example: `  # Store credentials under the default profile
  twarchive auth login

  # Store credentials under a named profile
  twarchive auth login research`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd removes stored credentials
var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove stored credentials",
	Long: `Remove stored API credentials.

If no profile is given you will be shown the stored profiles to choose
from, including an option to remove all of them at once.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// authListCmd shows the stored profiles with secrets masked
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credential profiles",
	Long:  `List all stored credential profiles with secrets masked.`,
	RunE:  runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authListCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	profile := auth.DefaultProfile
	if len(args) > 0 {
		profile = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if existing, _ := manager.Retrieve(profile); existing != nil {
		fmt.Printf("Profile %q already exists. Update credentials? (y/N): ", profile)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
		fmt.Println()
	}

	fmt.Println("Enter the application credentials from apps.twitter.com.")
	fmt.Println("Secrets are hidden as you type.")
	fmt.Println()

	consumerKey, err := promptValue(reader, "consumer key: ")
	if err != nil {
		return err
	}
	consumerSecret, err := promptSecret(reader, "consumer secret: ")
	if err != nil {
		return err
	}
	accessToken, err := promptValue(reader, "access token: ")
	if err != nil {
		return err
	}
	accessTokenSecret, err := promptSecret(reader, "access token secret: ")
	if err != nil {
		return err
	}

	creds := &auth.Credentials{
		Profile:           profile,
		ConsumerKey:       consumerKey,
		ConsumerSecret:    consumerSecret,
		AccessToken:       accessToken,
		AccessTokenSecret: accessTokenSecret,
	}

	sanitized := creds.Sanitize()
	fmt.Println("\nSummary:")
	fmt.Printf("   Profile: %s\n", profile)
	fmt.Printf("   Consumer key: %s\n", sanitized.ConsumerKey)
	fmt.Printf("   Consumer secret: %s\n", sanitized.ConsumerSecret)
	fmt.Printf("   Access token: %s\n", sanitized.AccessToken)
	fmt.Printf("   Access token secret: %s\n", sanitized.AccessTokenSecret)

	if err := manager.Store(creds); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	fmt.Println("\nCredentials stored in:")
	for _, backend := range manager.Backends() {
		fmt.Printf("   - %s\n", backend)
	}

	fmt.Println("\nArchive a query with:")
	fmt.Println(`   twarchive "#ferguson"`)
	if profile != auth.DefaultProfile {
		fmt.Printf("   twarchive --profile %s \"#ferguson\"\n", profile)
	}

	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if len(args) > 0 {
		profile := args[0]
		if err := manager.Delete(profile); err != nil {
			return err
		}
		fmt.Println("Removed profile:", profile)
		return nil
	}

	stored, err := manager.List()
	if err != nil || len(stored) == 0 {
		fmt.Println("No stored credentials found.")
		return nil
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Profile < stored[j].Profile })

	reader := bufio.NewReader(os.Stdin)

	if len(stored) == 1 {
		profile := stored[0].Profile
		fmt.Printf("Remove profile %q? (y/N): ", profile)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
		if err := manager.Delete(profile); err != nil {
			return err
		}
		fmt.Println("Removed profile:", profile)
		return nil
	}

	fmt.Println("Select profile to remove:")
	for i, creds := range stored {
		fmt.Printf("  %d. %s\n", i+1, creds.Profile)
	}
	fmt.Printf("  %d. Remove all profiles\n", len(stored)+1)
	fmt.Println("  0. Cancel")
	fmt.Println()
	fmt.Print("Choice: ")
	input, _ := reader.ReadString('\n')

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

	switch {
	case choice == 0:
		return nil
	case choice == len(stored)+1:
		fmt.Print("Remove ALL profiles? This cannot be undone. (yes/N): ")
		confirm, _ := reader.ReadString('\n')
		if strings.TrimSpace(confirm) != "yes" {
			return nil
		}
		if err := manager.DeleteAll(); err != nil {
			return err
		}
		fmt.Println("All profiles removed.")
	case choice > 0 && choice <= len(stored):
		profile := stored[choice-1].Profile
		if err := manager.Delete(profile); err != nil {
			return err
		}
		fmt.Println("Removed profile:", profile)
	default:
		return errors.New("invalid choice")
	}

	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	stored, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	if len(stored) == 0 {
		fmt.Println("No stored credentials. Use 'twarchive auth login' to add some.")
		return nil
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Profile < stored[j].Profile })

	for i, creds := range stored {
		sanitized := creds.Sanitize()
		fmt.Printf("%d. Profile: %s\n", i+1, sanitized.Profile)
		fmt.Printf("   Consumer key: %s\n", sanitized.ConsumerKey)
		fmt.Printf("   Consumer secret: %s\n", sanitized.ConsumerSecret)
		fmt.Printf("   Access token: %s\n", sanitized.AccessToken)
		fmt.Printf("   Access token secret: %s\n", sanitized.AccessTokenSecret)
		fmt.Printf("   Last modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}

	return nil
}

func promptValue(reader *bufio.Reader, label string) (string, error) {
	for {
		fmt.Print(label)
		input, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		if value := strings.TrimSpace(input); value != "" {
			return value, nil
		}
	}
}

func promptSecret(reader *bufio.Reader, label string) (string, error) {
	for {
		fmt.Print(label)
		value, err := readSecret(reader)
		if err != nil {
			return "", err
		}
		if value != "" {
			return value, nil
		}
	}
}

// readSecret reads a value from stdin without echoing it
func readSecret(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after the hidden input
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	// Fallback to regular input
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
